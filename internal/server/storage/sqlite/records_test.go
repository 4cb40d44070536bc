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

// setupTestStorage создает in-memory SQLite storage для тестов
func setupTestStorage(t *testing.T) (*Storage, func()) {
	t.Helper()

	s, err := New(context.Background(), ":memory:")
	require.NoError(t, err)

	return s, func() {
		require.NoError(t, s.Close())
	}
}

func testRecord(version int64) *models.CanonicalRecord {
	return &models.CanonicalRecord{
		Kind:     models.KindWorkOrder,
		RecordID: "wo-1",
		OrgID:    "org-1",
		Version:  version,
		Fields: models.FieldMap{
			"status": "open",
			"notes":  "initial",
		},
		Provenance: models.Provenance{
			UserID:     "user-1",
			DeviceID:   "device-1",
			ModifiedAt: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
		},
	}
}

func TestRecordStorage_InsertAndGet(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	record := testRecord(1)
	require.NoError(t, s.InsertRecord(ctx, record))

	got, err := s.GetRecord(ctx, models.KindWorkOrder, "wo-1")
	require.NoError(t, err)

	assert.Equal(t, models.KindWorkOrder, got.Kind)
	assert.Equal(t, "wo-1", got.RecordID)
	assert.Equal(t, "org-1", got.OrgID)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, "open", got.Fields["status"])
	assert.Equal(t, "user-1", got.Provenance.UserID)
	assert.Equal(t, "device-1", got.Provenance.DeviceID)
}

func TestRecordStorage_GetNotFound(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	_, err := s.GetRecord(ctx, models.KindWorkOrder, "missing")
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}

func TestRecordStorage_InsertDuplicate(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	require.NoError(t, s.InsertRecord(ctx, testRecord(1)))

	err := s.InsertRecord(ctx, testRecord(1))
	assert.ErrorIs(t, err, storage.ErrRecordAlreadyExists)
}

func TestRecordStorage_CommitRecord(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	require.NoError(t, s.InsertRecord(ctx, testRecord(1)))

	updated := testRecord(1)
	updated.Fields["status"] = "in_progress"
	updated.Provenance.UserID = "user-2"

	newVersion, err := s.CommitRecord(ctx, updated, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), newVersion)

	got, err := s.GetRecord(ctx, models.KindWorkOrder, "wo-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, "in_progress", got.Fields["status"])
	assert.Equal(t, "user-2", got.Provenance.UserID)
}

func TestRecordStorage_CommitVersionMismatch(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	require.NoError(t, s.InsertRecord(ctx, testRecord(1)))

	updated := testRecord(1)
	updated.Fields["status"] = "completed"

	// Ожидаемая версия не совпадает с фактической — CAS не проходит
	_, err := s.CommitRecord(ctx, updated, 5, nil)
	assert.ErrorIs(t, err, storage.ErrVersionMismatch)

	// Запись не изменилась
	got, err := s.GetRecord(ctx, models.KindWorkOrder, "wo-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, "open", got.Fields["status"])
}

// Журнальные записи появляются только вместе с успешным CAS.
func TestRecordStorage_CommitWithLedgerEntries(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	require.NoError(t, s.InsertRecord(ctx, testRecord(1)))

	entry := testLedgerEntry()
	entry.Resolved = true
	entry.ResolvedValue = "in_progress"
	entry.ResolvedBy = models.ResolvedBySystem
	entry.ResolvedAt = time.Now()

	updated := testRecord(1)
	updated.Fields["status"] = "in_progress"

	_, err := s.CommitRecord(ctx, updated, 1, []models.ConflictLedgerEntry{entry})
	require.NoError(t, err)

	got, err := s.GetConflict(ctx, entry.ID)
	require.NoError(t, err)
	assert.True(t, got.Resolved)
	assert.Equal(t, models.ResolvedBySystem, got.ResolvedBy)
	assert.Equal(t, "in_progress", got.ResolvedValue)
}

// CAS-отказ откатывает и журнальные записи той же транзакции.
func TestRecordStorage_FailedCommitWritesNoLedger(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	require.NoError(t, s.InsertRecord(ctx, testRecord(1)))

	entry := testLedgerEntry()
	updated := testRecord(1)

	_, err := s.CommitRecord(ctx, updated, 9, []models.ConflictLedgerEntry{entry})
	require.ErrorIs(t, err, storage.ErrVersionMismatch)

	_, err = s.GetConflict(ctx, entry.ID)
	assert.ErrorIs(t, err, storage.ErrConflictNotFound)
}

func testLedgerEntry() models.ConflictLedgerEntry {
	return models.ConflictLedgerEntry{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		Conflict: models.FieldConflict{
			Kind:      models.KindWorkOrder,
			RecordID:  "wo-1",
			OrgID:     "org-1",
			FieldName: "status",
			Strategy:  "priority",
			Local: models.ConflictSide{
				Value:     "in_progress",
				Version:   1,
				Timestamp: time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
				UserID:    "user-2",
				DeviceID:  "device-2",
			},
			Server: models.ConflictSide{
				Value:     "open",
				Version:   2,
				Timestamp: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
				UserID:    "user-1",
				DeviceID:  "device-1",
			},
			Suggested:     "in_progress",
			HasSuggestion: true,
		},
	}
}
