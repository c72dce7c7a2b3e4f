// internal/core/audit/recorder_test.go
package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ammerola/stockbook/internal/core/audit"
	"github.com/ammerola/stockbook/internal/core/domain"
	"github.com/ammerola/stockbook/internal/core/ports"
	"github.com/ammerola/stockbook/internal/core/syncer"
	"github.com/ammerola/stockbook/test/helpers"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newRecorder(t *testing.T) (*audit.Recorder, *syncer.Synchronizer[domain.AuditLog], *helpers.FakeStore) {
	t.Helper()
	store := helpers.NewFakeStore()
	log := syncer.New(syncer.Config[domain.AuditLog]{
		Name:   domain.CollectionAuditLog,
		Store:  store,
		Mirror: helpers.NewMemoryMirror(),
		New:    func() domain.AuditLog { return domain.AuditLog{} },
		Logger: helpers.TestLogger(),
	})
	_, err := log.Load(context.Background())
	require.NoError(t, err)

	rec := audit.NewRecorder(log, store, helpers.TestLogger()).WithClock(func() time.Time { return fixedNow })
	return rec, log, store
}

func TestRecorder_Record(t *testing.T) {
	ctx := context.Background()
	rec, log, store := newRecorder(t)

	err := rec.Record(ctx, "alex", domain.ActionItemCreated, "item-1", "Brake Pads",
		domain.ItemSnapshotDetails{Quantity: 4, SalePrice: "9.99", Categories: []string{"Brakes"}})
	require.NoError(t, err)

	entries := log.View()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.ActionItemCreated, entries[0].Action)
	assert.Equal(t, "alex", entries[0].User)
	assert.Equal(t, fixedNow, entries[0].Timestamp)
	assert.Equal(t, 1, store.Saves(domain.CollectionAuditLog.DocumentPath()))

	details, err := entries[0].DecodeDetails()
	require.NoError(t, err)
	assert.Equal(t, &domain.ItemSnapshotDetails{Quantity: 4, SalePrice: "9.99", Categories: []string{"Brakes"}}, details)
}

func TestRecorder_Record_FailureIsWarning(t *testing.T) {
	ctx := context.Background()
	rec, log, store := newRecorder(t)

	store.FailNextSave(domain.CollectionAuditLog.DocumentPath(), &ports.TransportError{Op: "save", StatusCode: 502})

	err := rec.Record(ctx, "alex", domain.ActionItemDeleted, "item-1", "Brake Pads", nil)
	require.Error(t, err)

	w, ok := audit.AsWarning(err)
	require.True(t, ok)
	assert.Equal(t, domain.ActionItemDeleted, w.Action)
	assert.Empty(t, log.View(), "failed audit entry must be rolled back")
}

func TestRecorder_Entries(t *testing.T) {
	ctx := context.Background()
	rec, _, _ := newRecorder(t)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, rec.Record(ctx, "alex", domain.ActionItemCreated, id, id, nil))
	}

	entries := rec.Entries(2)
	require.Len(t, entries, 2)
	assert.Equal(t, "c", entries[0].TargetID)
	assert.Equal(t, "b", entries[1].TargetID)
	assert.Len(t, rec.Entries(0), 3)
}

func TestRecorder_Clear(t *testing.T) {
	ctx := context.Background()

	t.Run("clears_when_remote_unchanged", func(t *testing.T) {
		rec, log, _ := newRecorder(t)
		require.NoError(t, rec.Record(ctx, "alex", domain.ActionItemCreated, "a", "a", nil))
		require.NoError(t, rec.Record(ctx, "alex", domain.ActionItemCreated, "b", "b", nil))

		removed, err := rec.Clear(ctx, "alex")
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		entries := log.View()
		require.Len(t, entries, 1)
		assert.Equal(t, domain.ActionAuditLogCleared, entries[0].Action)
	})

	t.Run("remote_moved_aborts_and_restores", func(t *testing.T) {
		rec, log, store := newRecorder(t)
		require.NoError(t, rec.Record(ctx, "alex", domain.ActionItemCreated, "a", "a", nil))
		before := log.View()

		path := domain.CollectionAuditLog.DocumentPath()
		store.Seed(path, []byte(`[]`))
		saves := store.Saves(path)

		_, err := rec.Clear(ctx, "alex")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ports.ErrConflict))

		var conflict *ports.ConflictError
		require.True(t, errors.As(err, &conflict))
		assert.Equal(t, store.VersionOf(path), conflict.Current)

		assert.Equal(t, before, log.View())
		assert.Equal(t, saves, store.Saves(path), "no save may be attempted")
		assert.Equal(t, syncer.PhaseConflicted, log.Status().LastOutcome)
	})

	t.Run("precondition_transport_failure_restores", func(t *testing.T) {
		rec, log, store := newRecorder(t)
		require.NoError(t, rec.Record(ctx, "alex", domain.ActionItemCreated, "a", "a", nil))

		store.FailNextLoad(domain.CollectionAuditLog.DocumentPath(), &ports.TransportError{Op: "load"})

		_, err := rec.Clear(ctx, "alex")
		require.Error(t, err)
		var transport *ports.TransportError
		assert.True(t, errors.As(err, &transport))
		assert.Len(t, log.View(), 1)
		assert.Equal(t, syncer.PhaseFailed, log.Status().LastOutcome)
	})
}
