// Package sync реализует Commit Coordinator: прием клиентских записей,
// детекцию конфликтов, автослияние и version-gated коммит в canonical
// store, плюс очередь ручного разрешения поверх журнала конфликтов.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/fleetkeeper/fleetkeeper/internal/models"
	"github.com/fleetkeeper/fleetkeeper/internal/resolve"
	"github.com/fleetkeeper/fleetkeeper/internal/server/storage"
	"github.com/fleetkeeper/fleetkeeper/internal/validation"
)

// maxCommitAttempts предел повторов детекции при проигранном CAS.
// Повтор идет через повторную детекцию на актуальной записи, а не
// вслепую; после предела наружу уходит retryable ошибка, запись
// не теряется молча.
const maxCommitAttempts = 3

// ErrCommitRace возвращается после исчерпания попыток коммита.
// Ошибка retryable: клиент может переотправить тот же IncomingWrite
// (идемпотентно за счет base_version).
var ErrCommitRace = errors.New("commit retry limit exceeded, resubmit the write")

// Store объединяет доступ к canonical store и журналу конфликтов,
// который нужен координатору
type Store interface {
	GetRecord(ctx context.Context, kind models.EntityKind, recordID string) (*models.CanonicalRecord, error)
	InsertRecord(ctx context.Context, record *models.CanonicalRecord) error
	CommitRecord(ctx context.Context, record *models.CanonicalRecord, expectedVersion int64, entries []models.ConflictLedgerEntry) (int64, error)
	AppendConflicts(ctx context.Context, entries []models.ConflictLedgerEntry) error
	GetConflict(ctx context.Context, id string) (*models.ConflictLedgerEntry, error)
	PendingConflicts(ctx context.Context, orgID string) ([]models.ConflictLedgerEntry, error)
	ResolveConflict(ctx context.Context, id string, value any, resolvedBy string) (*models.ConflictLedgerEntry, error)
}

// Service координирует detect -> evaluate -> apply -> commit
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new sync service
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// SubmitWrite принимает клиентскую запись и доводит ее до одного из
// исходов: Committed (версия выросла), Escalated (конфликт в очереди
// ручного разрешения, canonical record не тронута), Rejected (валидация
// или авторизация). Инфраструктурные сбои возвращаются ошибкой.
func (s *Service) SubmitWrite(ctx context.Context, write *models.IncomingWrite) (*models.CommitOutcome, error) {
	if outcome := validateWrite(write); outcome != nil {
		return outcome, nil
	}

	for attempt := 1; attempt <= maxCommitAttempts; attempt++ {
		outcome, err := s.tryCommit(ctx, write)
		if err != nil {
			if errors.Is(err, storage.ErrVersionMismatch) || errors.Is(err, storage.ErrRecordAlreadyExists) {
				// Другой писатель успел закоммититься между детекцией
				// и коммитом — повторяем детекцию на свежей записи
				s.logger.Debug("commit race, re-detecting",
					"entity_kind", write.Kind,
					"record_id", write.RecordID,
					"attempt", attempt)
				continue
			}
			return nil, err
		}
		return outcome, nil
	}

	s.logger.Warn("commit retry limit exceeded",
		"entity_kind", write.Kind,
		"record_id", write.RecordID,
		"attempts", maxCommitAttempts)

	return nil, ErrCommitRace
}

// tryCommit одна попытка: детекция на текущем снимке и коммит.
// Возвращает storage.ErrVersionMismatch / ErrRecordAlreadyExists,
// если снимок устарел к моменту коммита.
func (s *Service) tryCommit(ctx context.Context, write *models.IncomingWrite) (*models.CommitOutcome, error) {
	canonical, err := s.store.GetRecord(ctx, write.Kind, write.RecordID)
	if err != nil {
		if !errors.Is(err, storage.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to load canonical record: %w", err)
		}
		canonical = nil
	}

	detection, err := resolve.Detect(write, canonical)
	if err != nil {
		if errors.Is(err, resolve.ErrOrgMismatch) {
			// Авторизация, а не конфликт: без повторов и без журнала
			s.logger.Warn("cross-org write rejected",
				"entity_kind", write.Kind,
				"record_id", write.RecordID,
				"org_id", write.OrgID)
			return &models.CommitOutcome{
				Status: models.CommitRejected,
				Reason: err.Error(),
			}, nil
		}
		return nil, fmt.Errorf("conflict detection failed: %w", err)
	}

	// Blind insert: записи еще нет
	if canonical == nil {
		record := &models.CanonicalRecord{
			Kind:       write.Kind,
			RecordID:   write.RecordID,
			OrgID:      write.OrgID,
			Fields:     stripMetadata(write.Fields),
			Version:    1,
			Provenance: write.Provenance,
		}
		if err := s.store.InsertRecord(ctx, record); err != nil {
			return nil, err
		}
		s.logger.Info("record created",
			"entity_kind", write.Kind,
			"record_id", write.RecordID,
			"version", 1)
		return &models.CommitOutcome{Status: models.CommitCommitted, NewVersion: 1}, nil
	}

	// Версия клиента актуальна либо все расхождения совпали по значению
	if !detection.HasConflict {
		return s.commitMerged(ctx, write, canonical, nil, nil)
	}

	// Хотя бы одно поле требует человека: весь набор уходит в очередь,
	// canonical record не меняется (никакого частичного слияния)
	if !detection.CanAutoResolve {
		return s.escalate(ctx, write, detection.Conflicts)
	}

	patch, err := resolve.Apply(detection.Conflicts)
	if err != nil {
		// Apply не должен отказывать при CanAutoResolve, но если
		// отказал — эскалация безопаснее потери записи
		var escalation *resolve.EscalationError
		if errors.As(err, &escalation) {
			return s.escalate(ctx, write, detection.Conflicts)
		}
		return nil, fmt.Errorf("auto-resolution failed: %w", err)
	}

	entries := makeLedgerEntries(detection.Conflicts, true)
	return s.commitMerged(ctx, write, canonical, patch, entries)
}

// commitMerged собирает новое состояние полей и выполняет CAS-коммит.
// Порядок наложения: canonical поля, затем тронутые клиентом поля,
// затем вычисленные разрешения конфликтов.
func (s *Service) commitMerged(ctx context.Context, write *models.IncomingWrite, canonical *models.CanonicalRecord, patch models.FieldMap, entries []models.ConflictLedgerEntry) (*models.CommitOutcome, error) {
	merged := canonical.Fields.Clone()
	if merged == nil {
		merged = make(models.FieldMap)
	}
	for name, value := range stripMetadata(write.Fields) {
		merged[name] = value
	}
	for name, value := range patch {
		merged[name] = value
	}

	record := &models.CanonicalRecord{
		Kind:       canonical.Kind,
		RecordID:   canonical.RecordID,
		OrgID:      canonical.OrgID,
		Fields:     merged,
		Provenance: write.Provenance,
	}

	newVersion, err := s.store.CommitRecord(ctx, record, canonical.Version, entries)
	if err != nil {
		return nil, err
	}

	s.logger.Info("record committed",
		"entity_kind", write.Kind,
		"record_id", write.RecordID,
		"version", newVersion,
		"auto_resolved", len(entries))

	return &models.CommitOutcome{Status: models.CommitCommitted, NewVersion: newVersion}, nil
}

// escalate записывает неразрешенные конфликты в журнал и возвращает
// Escalated с их идентификаторами
func (s *Service) escalate(ctx context.Context, write *models.IncomingWrite, conflicts []models.FieldConflict) (*models.CommitOutcome, error) {
	entries := makeLedgerEntries(conflicts, false)

	// Сбой журнала фатален для всей операции: конфликт не должен
	// потеряться между детекцией и записью
	if err := s.store.AppendConflicts(ctx, entries); err != nil {
		return nil, fmt.Errorf("failed to append conflicts to ledger: %w", err)
	}

	ids := make([]string, len(entries))
	for i := range entries {
		ids[i] = entries[i].ID
	}

	s.logger.Info("write escalated to manual resolution",
		"entity_kind", write.Kind,
		"record_id", write.RecordID,
		"conflicts", len(ids))

	return &models.CommitOutcome{Status: models.CommitEscalated, ConflictIDs: ids}, nil
}

// ListPending возвращает очередь ручного разрешения для организации:
// safety-critical первыми, внутри уровня — FIFO
func (s *Service) ListPending(ctx context.Context, orgID string) ([]models.ConflictLedgerEntry, error) {
	return s.store.PendingConflicts(ctx, orgID)
}

// Resolve применяет ручное решение к записи журнала. Повторное
// разрешение возвращает storage.ErrAlreadyResolved; чужая организация —
// resolve.ErrOrgMismatch.
func (s *Service) Resolve(ctx context.Context, orgID, entryID string, value any, resolvedBy string) (*models.ConflictLedgerEntry, error) {
	entry, err := s.store.GetConflict(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Conflict.OrgID != orgID {
		return nil, resolve.ErrOrgMismatch
	}

	resolved, err := s.store.ResolveConflict(ctx, entryID, value, resolvedBy)
	if err != nil {
		return nil, err
	}

	s.logger.Info("conflict resolved manually",
		"entry_id", entryID,
		"field", resolved.Conflict.FieldName,
		"resolved_by", resolvedBy)

	return resolved, nil
}

// validateWrite проверяет входящую запись на границе; ошибки валидации
// превращаются в Rejected, а не в error
func validateWrite(write *models.IncomingWrite) *models.CommitOutcome {
	reject := func(reason string) *models.CommitOutcome {
		return &models.CommitOutcome{Status: models.CommitRejected, Reason: reason}
	}

	if !write.Kind.Valid() {
		return reject(fmt.Sprintf("unknown entity kind %q", write.Kind))
	}
	if err := validation.ValidateID("record id", write.RecordID); err != nil {
		return reject(err.Error())
	}
	if err := validation.ValidateID("org id", write.OrgID); err != nil {
		return reject(err.Error())
	}
	updatable := stripMetadata(write.Fields)
	if len(updatable) == 0 {
		return reject("write contains no updatable fields")
	}
	for name := range updatable {
		if err := validation.ValidateFieldName(name); err != nil {
			return reject(err.Error())
		}
	}
	if write.BaseVersion < 0 {
		return reject("base version must not be negative")
	}
	return nil
}

// stripMetadata возвращает копию FieldMap без служебных полей
func stripMetadata(fields models.FieldMap) models.FieldMap {
	out := make(models.FieldMap, len(fields))
	for name, value := range fields {
		if models.IsMetadataField(name) {
			continue
		}
		out[name] = value
	}
	return out
}

// makeLedgerEntries превращает конфликты в записи журнала.
// resolved=true используется на пути автослияния: записи журнала
// коммитятся той же транзакцией, что и CAS canonical record.
func makeLedgerEntries(conflicts []models.FieldConflict, autoResolved bool) []models.ConflictLedgerEntry {
	now := time.Now()
	entries := make([]models.ConflictLedgerEntry, len(conflicts))
	for i := range conflicts {
		entries[i] = models.ConflictLedgerEntry{
			ID:        uuid.New().String(),
			CreatedAt: now,
			Conflict:  conflicts[i],
		}
		if autoResolved {
			entries[i].Resolved = true
			entries[i].ResolvedValue = conflicts[i].Suggested
			entries[i].ResolvedBy = models.ResolvedBySystem
			entries[i].ResolvedAt = now
		}
	}
	return entries
}
