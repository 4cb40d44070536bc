package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetkeeper/fleetkeeper/internal/models"
	"github.com/fleetkeeper/fleetkeeper/internal/server/storage"
)

func TestLedger_AppendAndGet(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	entry := testLedgerEntry()
	require.NoError(t, s.AppendConflicts(ctx, []models.ConflictLedgerEntry{entry}))

	got, err := s.GetConflict(ctx, entry.ID)
	require.NoError(t, err)

	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, models.KindWorkOrder, got.Conflict.Kind)
	assert.Equal(t, "status", got.Conflict.FieldName)
	assert.Equal(t, "in_progress", got.Conflict.Local.Value)
	assert.Equal(t, "open", got.Conflict.Server.Value)
	assert.Equal(t, "user-2", got.Conflict.Local.UserID)
	assert.Equal(t, int64(2), got.Conflict.Server.Version)
	assert.True(t, got.Conflict.HasSuggestion)
	assert.Equal(t, "in_progress", got.Conflict.Suggested)
	assert.False(t, got.Resolved)
}

func TestLedger_GetNotFound(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	_, err := s.GetConflict(ctx, uuid.New().String())
	assert.ErrorIs(t, err, storage.ErrConflictNotFound)
}

// Очередь ручного разрешения: safety-critical всегда первыми,
// внутри уровня — старые раньше новых (FIFO).
func TestLedger_PendingOrdering(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	base := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

	oldRegular := testLedgerEntry()
	oldRegular.ID = "entry-old-regular"
	oldRegular.CreatedAt = base

	newRegular := testLedgerEntry()
	newRegular.ID = "entry-new-regular"
	newRegular.CreatedAt = base.Add(2 * time.Hour)

	newCritical := testLedgerEntry()
	newCritical.ID = "entry-new-critical"
	newCritical.CreatedAt = base.Add(3 * time.Hour)
	newCritical.Conflict.SafetyCritical = true
	newCritical.Conflict.HasSuggestion = false
	newCritical.Conflict.Suggested = nil

	oldCritical := testLedgerEntry()
	oldCritical.ID = "entry-old-critical"
	oldCritical.CreatedAt = base.Add(time.Hour)
	oldCritical.Conflict.SafetyCritical = true
	oldCritical.Conflict.HasSuggestion = false
	oldCritical.Conflict.Suggested = nil

	require.NoError(t, s.AppendConflicts(ctx, []models.ConflictLedgerEntry{
		oldRegular, newRegular, newCritical, oldCritical,
	}))

	pending, err := s.PendingConflicts(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, pending, 4)

	assert.Equal(t, "entry-old-critical", pending[0].ID)
	assert.Equal(t, "entry-new-critical", pending[1].ID)
	assert.Equal(t, "entry-old-regular", pending[2].ID)
	assert.Equal(t, "entry-new-regular", pending[3].ID)
}

func TestLedger_PendingScopedToOrg(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	mine := testLedgerEntry()
	other := testLedgerEntry()
	other.ID = uuid.New().String()
	other.Conflict.OrgID = "org-2"

	require.NoError(t, s.AppendConflicts(ctx, []models.ConflictLedgerEntry{mine, other}))

	pending, err := s.PendingConflicts(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, mine.ID, pending[0].ID)
}

func TestLedger_ResolveConflict(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	// Конфликт ссылается на существующую canonical record
	require.NoError(t, s.InsertRecord(ctx, testRecord(2)))

	entry := testLedgerEntry()
	require.NoError(t, s.AppendConflicts(ctx, []models.ConflictLedgerEntry{entry}))

	resolved, err := s.ResolveConflict(ctx, entry.ID, "completed", "fleet-manager")
	require.NoError(t, err)

	assert.True(t, resolved.Resolved)
	assert.Equal(t, "completed", resolved.ResolvedValue)
	assert.Equal(t, "fleet-manager", resolved.ResolvedBy)
	assert.False(t, resolved.ResolvedAt.IsZero())

	// Round-trip: повторное чтение показывает то же состояние
	got, err := s.GetConflict(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, got.Resolved)
	assert.Equal(t, "completed", got.ResolvedValue)
	assert.Equal(t, "fleet-manager", got.ResolvedBy)

	// Значение применено к canonical record, версия выросла
	record, err := s.GetRecord(ctx, models.KindWorkOrder, "wo-1")
	require.NoError(t, err)
	assert.Equal(t, "completed", record.Fields["status"])
	assert.Equal(t, int64(3), record.Version)
	assert.Equal(t, "fleet-manager", record.Provenance.UserID)

	// Из очереди ручного разрешения запись исчезла
	pending, err := s.PendingConflicts(ctx, "org-1")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestLedger_ResolveTwiceFails(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	require.NoError(t, s.InsertRecord(ctx, testRecord(2)))

	entry := testLedgerEntry()
	require.NoError(t, s.AppendConflicts(ctx, []models.ConflictLedgerEntry{entry}))

	_, err := s.ResolveConflict(ctx, entry.ID, "completed", "fleet-manager")
	require.NoError(t, err)

	// Повторный resolve — явная ошибка, не молчаливый no-op
	_, err = s.ResolveConflict(ctx, entry.ID, "open", "someone-else")
	assert.ErrorIs(t, err, storage.ErrAlreadyResolved)

	// Первое решение осталось неизменным
	got, err := s.GetConflict(ctx, entry.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", got.ResolvedValue)
	assert.Equal(t, "fleet-manager", got.ResolvedBy)
}

func TestLedger_ResolveNotFound(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	_, err := s.ResolveConflict(ctx, uuid.New().String(), "x", "someone")
	assert.ErrorIs(t, err, storage.ErrConflictNotFound)
}
