// internal/core/syncer/synchronizer.go
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/core/ports"
)

var (
	// ErrBusy is returned when a transaction is already in flight and the
	// synchronizer was configured to reject instead of queueing.
	ErrBusy = errors.New("collection busy")
	// ErrNoChange lets a mutation report that it changed nothing. No commit
	// is attempted.
	ErrNoChange = errors.New("no change")
)

// Cloneable is implemented by every collection document.
type Cloneable[T any] interface {
	Clone() T
}

// Precondition runs after the local mutation and before the remote commit.
// It receives the version held for the collection. A non-nil error rolls the
// mutation back.
type Precondition func(ctx context.Context, held ports.VersionToken) error

// Config configures a Synchronizer.
type Config[T Cloneable[T]] struct {
	Name  domain.CollectionName
	Path  string
	Store ports.DocumentStore
	// Mirror receives every in-memory state change.
	Mirror ports.LocalMirror
	// New returns the empty document.
	New func() T
	// Migrate upgrades a loaded document in place and reports whether it
	// rewrote anything. Optional.
	Migrate  func(*T) bool
	Renderer ports.Renderer
	Logger   *slog.Logger
	// RejectWhenBusy makes concurrent transactions fail with ErrBusy
	// instead of queueing.
	RejectWhenBusy bool
}

// Result describes one finished transaction.
type Result struct {
	Collection domain.CollectionName `json:"collection"`
	Phase      Phase                 `json:"phase"`
	Version    ports.VersionToken    `json:"version"`
}

// LoadResult describes one load.
type LoadResult struct {
	Collection domain.CollectionName `json:"collection"`
	Source     Source                `json:"source"`
	Version    ports.VersionToken    `json:"version"`
	Migrated   bool                  `json:"migrated"`
	// RemoteErr is set when the remote could not be read and the mirror
	// was used instead.
	RemoteErr error `json:"-"`
	// MigrationErr is set when the upgraded shape could not be committed.
	MigrationErr error `json:"-"`
}

// Status is a point-in-time view of a synchronizer.
type Status struct {
	Collection  domain.CollectionName `json:"collection"`
	Version     ports.VersionToken    `json:"version"`
	Phase       Phase                 `json:"phase"`
	LastOutcome Phase                 `json:"lastOutcome,omitempty"`
	Source      Source                `json:"source,omitempty"`
	LoadedAt    time.Time             `json:"loadedAt"`
}

// Synchronizer owns one collection: its in-memory value, the version token
// last observed remotely and the mutate/commit/rollback protocol.
type Synchronizer[T Cloneable[T]] struct {
	name     domain.CollectionName
	path     string
	store    ports.DocumentStore
	mirror   ports.LocalMirror
	newFn    func() T
	migrate  func(*T) bool
	renderer ports.Renderer
	logger   *slog.Logger
	reject   bool

	// txn serializes transactions. Holding it spans the network call.
	txn chan struct{}

	mu          sync.RWMutex
	state       T
	version     ports.VersionToken
	phase       Phase
	lastOutcome Phase
	source      Source
	loadedAt    time.Time
}

// New creates a synchronizer holding the empty document.
func New[T Cloneable[T]](cfg Config[T]) *Synchronizer[T] {
	if cfg.Path == "" {
		cfg.Path = cfg.Name.DocumentPath()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.New == nil {
		cfg.New = func() T {
			var zero T
			return zero
		}
	}
	return &Synchronizer[T]{
		name:     cfg.Name,
		path:     cfg.Path,
		store:    cfg.Store,
		mirror:   cfg.Mirror,
		newFn:    cfg.New,
		migrate:  cfg.Migrate,
		renderer: cfg.Renderer,
		logger:   cfg.Logger.With(slog.String("collection", string(cfg.Name))),
		reject:   cfg.RejectWhenBusy,
		txn:      make(chan struct{}, 1),
		state:    cfg.New(),
		phase:    PhaseIdle,
	}
}

// Name returns the collection name.
func (s *Synchronizer[T]) Name() domain.CollectionName { return s.name }

// Path returns the remote document path.
func (s *Synchronizer[T]) Path() string { return s.path }

// View returns a deep copy of the current in-memory value.
func (s *Synchronizer[T]) View() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Version returns the version token currently held.
func (s *Synchronizer[T]) Version() ports.VersionToken {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Status returns the current phase, version and last outcome.
func (s *Synchronizer[T]) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		Collection:  s.name,
		Version:     s.version,
		Phase:       s.phase,
		LastOutcome: s.lastOutcome,
		Source:      s.source,
		LoadedAt:    s.loadedAt,
	}
}

func (s *Synchronizer[T]) acquire(ctx context.Context) error {
	if s.reject {
		select {
		case s.txn <- struct{}{}:
			return nil
		default:
			return fmt.Errorf("%s: %w", s.name, ErrBusy)
		}
	}
	select {
	case s.txn <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Synchronizer[T]) release() {
	<-s.txn
}

// Load reads the collection from the store, falling back to the mirror when
// the store is unreachable or unconfigured. The migration pass runs before
// the value is exposed; an upgraded remote document is committed back.
func (s *Synchronizer[T]) Load(ctx context.Context) (LoadResult, error) {
	res := LoadResult{Collection: s.name}
	if err := s.acquire(ctx); err != nil {
		return res, err
	}
	defer s.release()

	f, err := s.fetch(ctx)
	if err != nil {
		return res, err
	}
	res.RemoteErr = f.remoteErr

	if s.migrate != nil {
		res.Migrated = s.migrate(&f.state)
	}

	s.mu.Lock()
	s.state = f.state
	s.version = f.version
	s.source = f.source
	s.phase = PhaseIdle
	s.loadedAt = time.Now()
	s.mu.Unlock()

	s.writeMirror(ctx, f.state, f.version)
	s.render(ctx, f.state)

	if res.Migrated && f.source == SourceRemote {
		newVersion, err := s.commit(ctx, f.state, f.version, fmt.Sprintf("Migrate %s", s.path))
		if err != nil {
			// The upgraded shape stays in memory and in the mirror. The next
			// successful commit carries it.
			s.logger.WarnContext(ctx, "failed to commit migrated document",
				slog.String("error", err.Error()))
			res.MigrationErr = err
			s.mu.Lock()
			s.lastOutcome = failedPhase(err)
			s.mu.Unlock()
		} else {
			s.mu.Lock()
			s.version = newVersion
			s.lastOutcome = PhaseCommitted
			s.mu.Unlock()
			f.version = newVersion
			s.writeMirrorVersion(ctx, newVersion)
		}
	}

	res.Source = f.source
	res.Version = f.version
	s.logger.InfoContext(ctx, "collection loaded",
		slog.String("source", string(f.source)),
		slog.String("version", string(f.version)),
		slog.Bool("migrated", res.Migrated))
	return res, nil
}

type fetched[T any] struct {
	state     T
	version   ports.VersionToken
	source    Source
	remoteErr error
}

func (s *Synchronizer[T]) fetch(ctx context.Context) (fetched[T], error) {
	if s.store == nil {
		return s.fromMirror(ctx, nil)
	}

	doc, err := s.store.Load(ctx, s.path)
	switch {
	case err == nil:
		state, err := decode[T](doc.Data)
		if err != nil {
			return fetched[T]{}, fmt.Errorf("load %s: %w", s.path, err)
		}
		return fetched[T]{state: state, version: doc.Version, source: SourceRemote}, nil
	case errors.Is(err, ports.ErrNotFound):
		return fetched[T]{state: s.newFn(), version: ports.NoVersion, source: SourceEmpty}, nil
	case errors.Is(err, context.Canceled):
		return fetched[T]{}, err
	default:
		s.logger.WarnContext(ctx, "remote load failed, using local mirror",
			slog.String("error", err.Error()))
		return s.fromMirror(ctx, err)
	}
}

// fromMirror keeps the version already held: the mirror always reflects the
// in-memory value based on that version. With nothing held yet, the version
// saved next to the mirrored document is used.
func (s *Synchronizer[T]) fromMirror(ctx context.Context, remoteErr error) (fetched[T], error) {
	f := fetched[T]{version: s.Version(), source: SourceMirror, remoteErr: remoteErr}
	if s.mirror == nil {
		f.state, f.source = s.newFn(), SourceEmpty
		return f, nil
	}

	data, err := s.mirror.Read(ctx, string(s.name))
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			s.logger.WarnContext(ctx, "local mirror read failed",
				slog.String("error", err.Error()))
		}
		f.state, f.source = s.newFn(), SourceEmpty
		return f, nil
	}

	state, err := decode[T](data)
	if err != nil {
		return fetched[T]{}, fmt.Errorf("read local mirror %s: %w", s.name, err)
	}
	f.state = state
	if f.version.IsNull() {
		f.version = s.mirroredVersion(ctx)
	}
	return f, nil
}

func (s *Synchronizer[T]) mirroredVersion(ctx context.Context) ports.VersionToken {
	data, err := s.mirror.Read(ctx, s.versionKey())
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			s.logger.WarnContext(ctx, "local mirror version read failed",
				slog.String("error", err.Error()))
		}
		return ports.NoVersion
	}
	return ports.VersionToken(data)
}

type mutateOptions struct {
	message       string
	preconditions []Precondition
}

// MutateOption configures one call to Mutate.
type MutateOption func(*mutateOptions)

// WithMessage sets the commit message sent to the store.
func WithMessage(message string) MutateOption {
	return func(o *mutateOptions) {
		o.message = message
	}
}

// WithPrecondition registers a check that runs between the local mutation
// and the remote commit.
func WithPrecondition(check Precondition) MutateOption {
	return func(o *mutateOptions) {
		o.preconditions = append(o.preconditions, check)
	}
}

// Mutate runs one transaction. fn edits a deep copy of the current value; an
// error from fn aborts before anything changes. Otherwise the new value is
// installed, written to the mirror and rendered, then committed against the
// held version. A failed commit restores the previous value, mirror and
// rendering and returns the store error wrapped.
func (s *Synchronizer[T]) Mutate(ctx context.Context, fn func(*T) error, opts ...MutateOption) (Result, error) {
	o := mutateOptions{message: fmt.Sprintf("Update %s", s.path)}
	for _, opt := range opts {
		opt(&o)
	}

	if err := s.acquire(ctx); err != nil {
		return Result{Collection: s.name, Phase: PhaseIdle, Version: s.Version()}, err
	}
	defer s.release()

	s.mu.RLock()
	snapshot := s.state
	base := s.version
	s.mu.RUnlock()

	draft := snapshot.Clone()
	if err := fn(&draft); err != nil {
		res := Result{Collection: s.name, Phase: PhaseIdle, Version: base}
		if errors.Is(err, ErrNoChange) {
			return res, nil
		}
		return res, err
	}

	s.mu.Lock()
	s.state = draft
	s.phase = PhaseMutated
	s.mu.Unlock()
	s.writeMirror(ctx, draft, base)
	s.render(ctx, draft)

	for _, check := range o.preconditions {
		if err := check(ctx, base); err != nil {
			return s.rollback(ctx, snapshot, base, err)
		}
	}

	s.mu.Lock()
	s.phase = PhaseCommitting
	s.mu.Unlock()

	newVersion, err := s.commit(ctx, draft, base, o.message)
	if err != nil {
		return s.rollback(ctx, snapshot, base, err)
	}

	s.mu.Lock()
	s.version = newVersion
	s.phase = PhaseIdle
	s.lastOutcome = PhaseCommitted
	s.mu.Unlock()
	s.writeMirrorVersion(ctx, newVersion)

	s.logger.InfoContext(ctx, "collection committed",
		slog.String("phase", string(PhaseCommitted)),
		slog.String("version", string(newVersion)))
	return Result{Collection: s.name, Phase: PhaseCommitted, Version: newVersion}, nil
}

// Replace installs value as one transaction. Restore uses it.
func (s *Synchronizer[T]) Replace(ctx context.Context, value T, opts ...MutateOption) (Result, error) {
	return s.Mutate(ctx, func(state *T) error {
		*state = value.Clone()
		return nil
	}, opts...)
}

func (s *Synchronizer[T]) rollback(ctx context.Context, snapshot T, base ports.VersionToken, cause error) (Result, error) {
	phase := failedPhase(cause)

	s.mu.Lock()
	s.state = snapshot
	s.version = base
	s.phase = PhaseIdle
	s.lastOutcome = phase
	s.mu.Unlock()

	s.writeMirror(ctx, snapshot, base)
	s.render(ctx, snapshot)

	s.logger.WarnContext(ctx, "commit rolled back",
		slog.String("phase", string(phase)),
		slog.String("version", string(base)),
		slog.String("error", cause.Error()))
	return Result{Collection: s.name, Phase: phase, Version: base}, fmt.Errorf("commit %s: %w", s.path, cause)
}

func failedPhase(err error) Phase {
	if errors.Is(err, ports.ErrConflict) {
		return PhaseConflicted
	}
	return PhaseFailed
}

func (s *Synchronizer[T]) commit(ctx context.Context, state T, base ports.VersionToken, message string) (ports.VersionToken, error) {
	data, err := encode(state)
	if err != nil {
		return base, err
	}
	if s.store == nil {
		return base, nil
	}
	return s.store.Save(ctx, s.path, data, base, message)
}

func (s *Synchronizer[T]) versionKey() string {
	return string(s.name) + ".version"
}

// writeMirror stores state and the version it is based on. It never fails
// the caller. Mirror errors are logged only and the write survives
// cancellation of ctx.
func (s *Synchronizer[T]) writeMirror(ctx context.Context, state T, version ports.VersionToken) {
	if s.mirror == nil {
		return
	}
	data, err := encode(state)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode mirror copy", slog.String("error", err.Error()))
		return
	}
	if err := s.mirror.Write(context.WithoutCancel(ctx), string(s.name), data); err != nil {
		s.logger.ErrorContext(ctx, "local mirror write failed", slog.String("error", err.Error()))
		return
	}
	s.writeMirrorVersion(ctx, version)
}

func (s *Synchronizer[T]) writeMirrorVersion(ctx context.Context, version ports.VersionToken) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.Write(context.WithoutCancel(ctx), s.versionKey(), []byte(version)); err != nil {
		s.logger.ErrorContext(ctx, "local mirror version write failed", slog.String("error", err.Error()))
	}
}

func (s *Synchronizer[T]) render(ctx context.Context, state T) {
	if s.renderer == nil {
		return
	}
	s.renderer.Render(ctx, s.name, state.Clone())
}

// Encode serializes a collection document the way it is stored.
func Encode[T any](v T) ([]byte, error) {
	return encode(v)
}

func encode[T any](v T) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: encode: %v", ports.ErrCorrupt, err)
	}
	return data, nil
}

func decode[T any](data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ports.ErrCorrupt, err)
	}
	return v, nil
}
