package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fleetkeeper/fleetkeeper/internal/models"
	"github.com/fleetkeeper/fleetkeeper/internal/server/storage"
)

// GetRecord retrieves the canonical record for (kind, recordID)
// Returns ErrRecordNotFound if the record does not exist
func (s *Storage) GetRecord(ctx context.Context, kind models.EntityKind, recordID string) (*models.CanonicalRecord, error) {
	query := `
		SELECT entity_kind, record_id, org_id, fields, version,
		       last_modified_by, last_modified_device, last_modified_at
		FROM canonical_records
		WHERE entity_kind = ? AND record_id = ?
	`

	record := &models.CanonicalRecord{}
	var fieldsJSON string
	var modifiedAt int64

	err := s.db.QueryRowContext(ctx, query, string(kind), recordID).Scan(
		&record.Kind,
		&record.RecordID,
		&record.OrgID,
		&fieldsJSON,
		&record.Version,
		&record.Provenance.UserID,
		&record.Provenance.DeviceID,
		&modifiedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	if err := json.Unmarshal([]byte(fieldsJSON), &record.Fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record fields: %w", err)
	}
	record.Provenance.ModifiedAt = unixToTime(modifiedAt)

	return record, nil
}

// InsertRecord creates a new canonical record at version 1
// Returns ErrRecordAlreadyExists if a concurrent insert won the race
func (s *Storage) InsertRecord(ctx context.Context, record *models.CanonicalRecord) error {
	fieldsJSON, err := json.Marshal(record.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal record fields: %w", err)
	}

	query := `
		INSERT INTO canonical_records (
			entity_kind, record_id, org_id, fields, version,
			last_modified_by, last_modified_device, last_modified_at,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().Unix()
	_, err = s.db.ExecContext(ctx, query,
		string(record.Kind),
		record.RecordID,
		record.OrgID,
		string(fieldsJSON),
		record.Version,
		record.Provenance.UserID,
		record.Provenance.DeviceID,
		record.Provenance.ModifiedAt.Unix(),
		now,
		now,
	)

	if err != nil {
		// PK (entity_kind, record_id) нарушен — параллельный blind insert
		// успел первым
		if isUniqueViolation(err) {
			return storage.ErrRecordAlreadyExists
		}
		return fmt.Errorf("failed to insert record: %w", err)
	}

	return nil
}

// CommitRecord performs the version-gated compare-and-swap commit and
// appends the accompanying ledger entries in the same transaction.
// Returns the new version, or ErrVersionMismatch if another writer
// committed in between.
func (s *Storage) CommitRecord(ctx context.Context, record *models.CanonicalRecord, expectedVersion int64, entries []models.ConflictLedgerEntry) (int64, error) {
	fieldsJSON, err := json.Marshal(record.Fields)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal record fields: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Условный апдейт: ровно один compare-and-swap на уровне хранилища,
	// не два round-trip'а
	query := `
		UPDATE canonical_records
		SET fields = ?, version = version + 1,
		    last_modified_by = ?, last_modified_device = ?, last_modified_at = ?,
		    updated_at = ?
		WHERE entity_kind = ? AND record_id = ? AND version = ?
	`

	result, err := tx.ExecContext(ctx, query,
		string(fieldsJSON),
		record.Provenance.UserID,
		record.Provenance.DeviceID,
		record.Provenance.ModifiedAt.Unix(),
		time.Now().Unix(),
		string(record.Kind),
		record.RecordID,
		expectedVersion,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to commit record: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// Версия ушла вперед между детекцией и коммитом; транзакция
		// откатывается целиком, журнальные записи не появляются
		return 0, storage.ErrVersionMismatch
	}

	for i := range entries {
		if err := insertLedgerEntry(ctx, tx, &entries[i]); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return expectedVersion + 1, nil
}

// isUniqueViolation распознает нарушение уникальности в modernc.org/sqlite
// по тексту ошибки (драйвер не экспортирует типизированные коды)
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func unixToTime(timestamp int64) time.Time {
	return time.Unix(timestamp, 0)
}
