package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fleetkeeper/fleetkeeper/internal/models"
	"github.com/fleetkeeper/fleetkeeper/internal/server/storage"
)

// execer общий интерфейс для *sql.DB и *sql.Tx
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// AppendConflicts durably records detected conflicts. The batch is
// appended in a single transaction: a conflict must never be lost
// between detection and persistence.
func (s *Storage) AppendConflicts(ctx context.Context, entries []models.ConflictLedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i := range entries {
		if err := insertLedgerEntry(ctx, tx, &entries[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// insertLedgerEntry вставляет одну запись журнала в рамках переданной
// транзакции (или напрямую в db)
func insertLedgerEntry(ctx context.Context, ex execer, entry *models.ConflictLedgerEntry) error {
	localValue, err := marshalValue(entry.Conflict.Local.Value)
	if err != nil {
		return fmt.Errorf("failed to marshal local value: %w", err)
	}
	serverValue, err := marshalValue(entry.Conflict.Server.Value)
	if err != nil {
		return fmt.Errorf("failed to marshal server value: %w", err)
	}

	var suggested sql.NullString
	if entry.Conflict.HasSuggestion {
		v, err := marshalValue(entry.Conflict.Suggested)
		if err != nil {
			return fmt.Errorf("failed to marshal suggested value: %w", err)
		}
		suggested = sql.NullString{String: v, Valid: true}
	}

	var resolvedValue sql.NullString
	if entry.Resolved {
		v, err := marshalValue(entry.ResolvedValue)
		if err != nil {
			return fmt.Errorf("failed to marshal resolved value: %w", err)
		}
		resolvedValue = sql.NullString{String: v, Valid: true}
	}

	var resolvedAt int64
	if !entry.ResolvedAt.IsZero() {
		resolvedAt = entry.ResolvedAt.Unix()
	}

	query := `
		INSERT INTO conflict_ledger (
			id, org_id, entity_kind, record_id, field_name,
			local_value, local_version, local_ts, local_user, local_device,
			server_value, server_version, server_ts, server_user, server_device,
			strategy, safety_critical, has_suggestion, suggested_value, downgrade_reason,
			resolved, resolved_value, resolved_by, resolved_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = ex.ExecContext(ctx, query,
		entry.ID,
		entry.Conflict.OrgID,
		string(entry.Conflict.Kind),
		entry.Conflict.RecordID,
		entry.Conflict.FieldName,
		localValue,
		entry.Conflict.Local.Version,
		entry.Conflict.Local.Timestamp.Unix(),
		entry.Conflict.Local.UserID,
		entry.Conflict.Local.DeviceID,
		serverValue,
		entry.Conflict.Server.Version,
		entry.Conflict.Server.Timestamp.Unix(),
		entry.Conflict.Server.UserID,
		entry.Conflict.Server.DeviceID,
		entry.Conflict.Strategy,
		boolToInt(entry.Conflict.SafetyCritical),
		boolToInt(entry.Conflict.HasSuggestion),
		suggested,
		entry.Conflict.DowngradeReason,
		boolToInt(entry.Resolved),
		resolvedValue,
		entry.ResolvedBy,
		resolvedAt,
		entry.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert ledger entry: %w", err)
	}

	return nil
}

// GetConflict retrieves a single ledger entry by id
// Returns ErrConflictNotFound if the entry does not exist
func (s *Storage) GetConflict(ctx context.Context, id string) (*models.ConflictLedgerEntry, error) {
	query := ledgerSelect + ` WHERE id = ?`

	entry, err := scanLedgerEntry(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrConflictNotFound
		}
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	return entry, nil
}

// PendingConflicts returns unresolved entries for an organization:
// safety-critical first regardless of age, oldest first within each tier
func (s *Storage) PendingConflicts(ctx context.Context, orgID string) ([]models.ConflictLedgerEntry, error) {
	query := ledgerSelect + `
		WHERE org_id = ? AND resolved = 0
		ORDER BY safety_critical DESC, created_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending conflicts: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var entries []models.ConflictLedgerEntry
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entries, nil
}

// ResolveConflict flips the ledger entry to resolved and patches the
// resolved value into the canonical record in one transaction.
// Returns ErrAlreadyResolved if the entry was resolved before.
func (s *Storage) ResolveConflict(ctx context.Context, id string, value any, resolvedBy string) (*models.ConflictLedgerEntry, error) {
	resolvedValue, err := marshalValue(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal resolved value: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Запись журнала нужна до апдейта: по ней находим canonical record
	entry, err := scanLedgerEntry(tx.QueryRowContext(ctx, ledgerSelect+` WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrConflictNotFound
		}
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	now := time.Now()

	// Guard resolved = 0: повторный resolve получает явную ошибку,
	// а не молчаливый no-op — retry клиента не должен маскироваться
	// под второе, другое решение
	result, err := tx.ExecContext(ctx, `
		UPDATE conflict_ledger
		SET resolved = 1, resolved_value = ?, resolved_by = ?, resolved_at = ?
		WHERE id = ? AND resolved = 0
	`, resolvedValue, resolvedBy, now.Unix(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve ledger entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, storage.ErrAlreadyResolved
	}

	// Применяем решение к canonical record: читаем поля, патчим одно
	// поле, поднимаем версию. Один коннект в пуле и транзакция
	// сериализуют нас с CAS-коммитами submit_write.
	var fieldsJSON string
	var version int64
	err = tx.QueryRowContext(ctx, `
		SELECT fields, version FROM canonical_records
		WHERE entity_kind = ? AND record_id = ?
	`, string(entry.Conflict.Kind), entry.Conflict.RecordID).Scan(&fieldsJSON, &version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get record for resolution: %w", err)
	}

	var fields models.FieldMap
	if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record fields: %w", err)
	}
	fields[entry.Conflict.FieldName] = value

	patched, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal patched fields: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE canonical_records
		SET fields = ?, version = version + 1,
		    last_modified_by = ?, last_modified_at = ?, updated_at = ?
		WHERE entity_kind = ? AND record_id = ? AND version = ?
	`, string(patched), resolvedBy, now.Unix(), now.Unix(),
		string(entry.Conflict.Kind), entry.Conflict.RecordID, version)
	if err != nil {
		return nil, fmt.Errorf("failed to patch record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	entry.Resolved = true
	entry.ResolvedValue = value
	entry.ResolvedBy = resolvedBy
	entry.ResolvedAt = now

	return entry, nil
}

const ledgerSelect = `
	SELECT id, org_id, entity_kind, record_id, field_name,
	       local_value, local_version, local_ts, local_user, local_device,
	       server_value, server_version, server_ts, server_user, server_device,
	       strategy, safety_critical, has_suggestion, suggested_value, downgrade_reason,
	       resolved, resolved_value, resolved_by, resolved_at, created_at
	FROM conflict_ledger`

// rowScanner общий интерфейс для *sql.Row и *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanLedgerEntry(row rowScanner) (*models.ConflictLedgerEntry, error) {
	entry := &models.ConflictLedgerEntry{}
	var (
		localValue, serverValue   string
		suggested, resolvedValue  sql.NullString
		localTS, serverTS         int64
		resolvedAt, createdAt     int64
		safety, suggestionFlag    int
		resolvedFlag              int
	)

	err := row.Scan(
		&entry.ID,
		&entry.Conflict.OrgID,
		&entry.Conflict.Kind,
		&entry.Conflict.RecordID,
		&entry.Conflict.FieldName,
		&localValue,
		&entry.Conflict.Local.Version,
		&localTS,
		&entry.Conflict.Local.UserID,
		&entry.Conflict.Local.DeviceID,
		&serverValue,
		&entry.Conflict.Server.Version,
		&serverTS,
		&entry.Conflict.Server.UserID,
		&entry.Conflict.Server.DeviceID,
		&entry.Conflict.Strategy,
		&safety,
		&suggestionFlag,
		&suggested,
		&entry.Conflict.DowngradeReason,
		&resolvedFlag,
		&resolvedValue,
		&entry.ResolvedBy,
		&resolvedAt,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	entry.Conflict.Local.Value, err = unmarshalValue(localValue)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal local value: %w", err)
	}
	entry.Conflict.Server.Value, err = unmarshalValue(serverValue)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal server value: %w", err)
	}

	entry.Conflict.SafetyCritical = intToBool(safety)
	entry.Conflict.HasSuggestion = intToBool(suggestionFlag)
	if suggested.Valid {
		entry.Conflict.Suggested, err = unmarshalValue(suggested.String)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal suggested value: %w", err)
		}
	}

	entry.Resolved = intToBool(resolvedFlag)
	if resolvedValue.Valid {
		entry.ResolvedValue, err = unmarshalValue(resolvedValue.String)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal resolved value: %w", err)
		}
	}
	if resolvedAt != 0 {
		entry.ResolvedAt = unixToTime(resolvedAt)
	}

	entry.Conflict.Local.Timestamp = unixToTime(localTS)
	entry.Conflict.Server.Timestamp = unixToTime(serverTS)
	entry.CreatedAt = unixToTime(createdAt)

	return entry, nil
}

// marshalValue сериализует произвольное значение поля в JSON-текст
func marshalValue(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// unmarshalValue обратная операция для marshalValue
func unmarshalValue(s string) (any, error) {
	if s == "" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Helper functions for bool/int conversion
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func intToBool(i int) bool {
	return i != 0
}
