package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fleetkeeper/fleetkeeper/internal/models"
	"github.com/fleetkeeper/fleetkeeper/internal/resolve"
	"github.com/fleetkeeper/fleetkeeper/internal/server/storage"
	syncsvc "github.com/fleetkeeper/fleetkeeper/internal/sync"
	"github.com/fleetkeeper/fleetkeeper/pkg/api"
)

// SyncService интерфейс координатора коммитов, нужный HTTP-слою
type SyncService interface {
	SubmitWrite(ctx context.Context, write *models.IncomingWrite) (*models.CommitOutcome, error)
	ListPending(ctx context.Context, orgID string) ([]models.ConflictLedgerEntry, error)
	Resolve(ctx context.Context, orgID, entryID string, value any, resolvedBy string) (*models.ConflictLedgerEntry, error)
}

// SyncHandler обрабатывает запись и разрешение конфликтов
type SyncHandler struct {
	logger  *slog.Logger
	service SyncService
}

// NewSyncHandler создает новый handler синхронизации
func NewSyncHandler(logger *slog.Logger, service SyncService) *SyncHandler {
	return &SyncHandler{
		logger:  logger,
		service: service,
	}
}

// HandleWrite обрабатывает POST /api/v1/records/write
func (h *SyncHandler) HandleWrite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID, ok := GetOrgID(ctx)
	if !ok {
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}
	userID, _ := GetUserID(ctx)
	deviceID, _ := GetDeviceID(ctx)

	var req api.WriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode write request", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	write := &models.IncomingWrite{
		Kind:        models.EntityKind(req.EntityKind),
		RecordID:    req.RecordID,
		OrgID:       orgID,
		Fields:      models.FieldMap(req.Fields),
		BaseVersion: req.BaseVersion,
		Provenance: models.Provenance{
			ModifiedAt: req.ModifiedAt,
			UserID:     userID,
			DeviceID:   deviceID,
		},
	}

	outcome, err := h.service.SubmitWrite(ctx, write)
	if err != nil {
		if errors.Is(err, syncsvc.ErrCommitRace) {
			// Retryable: клиент переотправляет тот же write
			sendError(h.logger, w, "commit contention, retry the write", http.StatusConflict)
			return
		}
		h.logger.ErrorContext(ctx, "submit write failed",
			slog.Any("error", err),
			slog.String("entity_kind", req.EntityKind),
			slog.String("record_id", req.RecordID))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := api.WriteResponse{
		Status:      string(outcome.Status),
		Reason:      outcome.Reason,
		ConflictIDs: outcome.ConflictIDs,
		NewVersion:  outcome.NewVersion,
	}

	status := http.StatusOK
	switch outcome.Status {
	case models.CommitRejected:
		status = http.StatusUnprocessableEntity
	case models.CommitEscalated:
		status = http.StatusAccepted
	}

	sendJSON(h.logger, w, resp, status)
}

// HandleListConflicts обрабатывает GET /api/v1/conflicts
// Очередь ручного разрешения: safety-critical первыми, внутри уровня FIFO
func (h *SyncHandler) HandleListConflicts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID, ok := GetOrgID(ctx)
	if !ok {
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	entries, err := h.service.ListPending(ctx, orgID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list pending conflicts", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	resp := api.ConflictListResponse{
		Conflicts: make([]api.ConflictEntry, 0, len(entries)),
		Total:     len(entries),
	}
	for i := range entries {
		resp.Conflicts = append(resp.Conflicts, toAPIConflict(&entries[i]))
	}

	sendJSON(h.logger, w, resp, http.StatusOK)
}

// HandleResolve обрабатывает POST /api/v1/conflicts/resolve
func (h *SyncHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orgID, ok := GetOrgID(ctx)
	if !ok {
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}
	userID, ok := GetUserID(ctx)
	if !ok {
		sendError(h.logger, w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode resolve request", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.EntryID == "" {
		sendError(h.logger, w, "entry_id is required", http.StatusBadRequest)
		return
	}

	entry, err := h.service.Resolve(ctx, orgID, req.EntryID, req.Value, userID)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrConflictNotFound):
			sendError(h.logger, w, "conflict not found", http.StatusNotFound)
		case errors.Is(err, storage.ErrAlreadyResolved):
			sendError(h.logger, w, "conflict already resolved", http.StatusConflict)
		case errors.Is(err, resolve.ErrOrgMismatch):
			sendError(h.logger, w, "forbidden", http.StatusForbidden)
		default:
			h.logger.ErrorContext(ctx, "failed to resolve conflict",
				slog.Any("error", err),
				slog.String("entry_id", req.EntryID))
			sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	sendJSON(h.logger, w, toAPIConflict(entry), http.StatusOK)
}

// toAPIConflict переводит запись журнала во внешнее представление
func toAPIConflict(e *models.ConflictLedgerEntry) api.ConflictEntry {
	return api.ConflictEntry{
		CreatedAt:       e.CreatedAt,
		ResolvedAt:      e.ResolvedAt,
		Local:           toAPISide(e.Conflict.Local),
		Server:          toAPISide(e.Conflict.Server),
		ID:              e.ID,
		EntityKind:      string(e.Conflict.Kind),
		RecordID:        e.Conflict.RecordID,
		FieldName:       e.Conflict.FieldName,
		Strategy:        e.Conflict.Strategy,
		DowngradeReason: e.Conflict.DowngradeReason,
		ResolvedBy:      e.ResolvedBy,
		Suggested:       e.Conflict.Suggested,
		ResolvedValue:   e.ResolvedValue,
		SafetyCritical:  e.Conflict.SafetyCritical,
		Resolved:        e.Resolved,
	}
}

func toAPISide(s models.ConflictSide) api.ConflictSide {
	return api.ConflictSide{
		Timestamp: s.Timestamp,
		Value:     s.Value,
		UserID:    s.UserID,
		DeviceID:  s.DeviceID,
		Version:   s.Version,
	}
}
