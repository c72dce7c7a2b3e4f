// test/helpers/fake_store.go
package helpers

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/ammerola/stockbook/internal/core/ports"
)

type fakeDoc struct {
	data    []byte
	version ports.VersionToken
}

// FakeStore is an in-memory versioned DocumentStore. Every write produces a
// new version token and saves enforce the expected version.
type FakeStore struct {
	mu       sync.Mutex
	docs     map[string]fakeDoc
	seq      int
	failSave map[string][]error
	failLoad map[string][]error
	saves    map[string]int
}

var _ ports.DocumentStore = (*FakeStore)(nil)

// NewFakeStore creates an empty store
func NewFakeStore() *FakeStore {
	return &FakeStore{
		docs:     make(map[string]fakeDoc),
		failSave: make(map[string][]error),
		failLoad: make(map[string][]error),
		saves:    make(map[string]int),
	}
}

func (f *FakeStore) nextVersion() ports.VersionToken {
	f.seq++
	return ports.VersionToken(fmt.Sprintf("v%d", f.seq))
}

// Seed writes data as another writer would and returns the new version.
func (f *FakeStore) Seed(p string, data []byte) ports.VersionToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := f.nextVersion()
	f.docs[p] = fakeDoc{data: append([]byte(nil), data...), version: v}
	return v
}

// FailNextSave makes the next Save of p return err.
func (f *FakeStore) FailNextSave(p string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSave[p] = append(f.failSave[p], err)
}

// FailNextLoad makes the next Load of p return err.
func (f *FakeStore) FailNextLoad(p string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failLoad[p] = append(f.failLoad[p], err)
}

// Data returns the stored bytes of p.
func (f *FakeStore) Data(p string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[p]
	return doc.data, ok
}

// VersionOf returns the current version of p.
func (f *FakeStore) VersionOf(p string) ports.VersionToken {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs[p].version
}

// Saves returns how many successful saves p has received.
func (f *FakeStore) Saves(p string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves[p]
}

// Paths lists every stored path.
func (f *FakeStore) Paths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.docs))
	for p := range f.docs {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func popErr(m map[string][]error, p string) error {
	queue := m[p]
	if len(queue) == 0 {
		return nil
	}
	m[p] = queue[1:]
	return queue[0]
}

func (f *FakeStore) Load(ctx context.Context, p string) (ports.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := popErr(f.failLoad, p); err != nil {
		return ports.Document{}, err
	}
	doc, ok := f.docs[p]
	if !ok {
		return ports.Document{}, fmt.Errorf("%s: %w", p, ports.ErrNotFound)
	}
	return ports.Document{Path: p, Data: append([]byte(nil), doc.data...), Version: doc.version}, nil
}

func (f *FakeStore) Save(ctx context.Context, p string, data []byte, expected ports.VersionToken, message string) (ports.VersionToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := popErr(f.failSave, p); err != nil {
		return "", err
	}
	current := f.docs[p].version
	if current != expected {
		return "", &ports.ConflictError{Path: p, Expected: expected, Current: current}
	}
	v := f.nextVersion()
	f.docs[p] = fakeDoc{data: append([]byte(nil), data...), version: v}
	f.saves[p]++
	return v, nil
}

func (f *FakeStore) Delete(ctx context.Context, p string, version ports.VersionToken, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[p]; !ok {
		return fmt.Errorf("%s: %w", p, ports.ErrNotFound)
	}
	delete(f.docs, p)
	return nil
}

func (f *FakeStore) List(ctx context.Context, dir string) ([]ports.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(dir, "/") + "/"
	var out []ports.Entry
	for p, doc := range f.docs {
		if strings.HasPrefix(p, prefix) && path.Dir(p) == strings.TrimSuffix(dir, "/") {
			out = append(out, ports.Entry{Path: p, Version: doc.version, Size: int64(len(doc.data))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// MemoryMirror is an in-memory LocalMirror.
type MemoryMirror struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	failErr error
	writes  int
}

var _ ports.LocalMirror = (*MemoryMirror)(nil)

// NewMemoryMirror creates an empty mirror
func NewMemoryMirror() *MemoryMirror {
	return &MemoryMirror{blobs: make(map[string][]byte)}
}

// FailWrites makes every following write return err. Nil restores writes.
func (m *MemoryMirror) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// Writes returns the number of successful writes.
func (m *MemoryMirror) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *MemoryMirror) Read(ctx context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[name]
	if !ok {
		return nil, fmt.Errorf("mirror %s: %w", name, ports.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (m *MemoryMirror) Write(ctx context.Context, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.blobs[name] = append([]byte(nil), data...)
	m.writes++
	return nil
}

func jsonMarshal(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// RecordingNotifier keeps every notification it receives.
type RecordingNotifier struct {
	mu   sync.Mutex
	sent []ports.Notification
}

var _ ports.Notifier = (*RecordingNotifier)(nil)

func (r *RecordingNotifier) Notify(ctx context.Context, n ports.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

// Kinds returns the kinds received so far, in order.
func (r *RecordingNotifier) Kinds() []ports.NotificationKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ports.NotificationKind, len(r.sent))
	for i, n := range r.sent {
		out[i] = n.Kind
	}
	return out
}

// Last returns the most recent notification.
func (r *RecordingNotifier) Last() (ports.Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return ports.Notification{}, false
	}
	return r.sent[len(r.sent)-1], true
}

// Sent returns a copy of every notification.
func (r *RecordingNotifier) Sent() []ports.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ports.Notification(nil), r.sent...)
}
