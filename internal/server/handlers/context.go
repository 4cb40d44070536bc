package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/fleetkeeper/fleetkeeper/pkg/api"
)

// contextKey тип для ключей контекста
type contextKey string

const (
	// OrgIDKey ключ для хранения org scope в контексте
	OrgIDKey contextKey = "org_id"
	// UserIDKey ключ для хранения user_id в контексте
	UserIDKey contextKey = "user_id"
	// DeviceIDKey ключ для хранения device_id в контексте
	DeviceIDKey contextKey = "device_id"
)

// GetOrgID извлекает org scope из контекста запроса
func GetOrgID(ctx context.Context) (string, bool) {
	orgID, ok := ctx.Value(OrgIDKey).(string)
	return orgID, ok
}

// GetUserID извлекает user_id из контекста запроса
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok
}

// GetDeviceID извлекает device_id из контекста запроса
func GetDeviceID(ctx context.Context) (string, bool) {
	deviceID, ok := ctx.Value(DeviceIDKey).(string)
	return deviceID, ok
}

// sendJSON сериализует ответ и пишет его с заданным статусом
func sendJSON(logger *slog.Logger, w http.ResponseWriter, v any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}

// sendError пишет JSON-ошибку с заданным статусом
func sendError(logger *slog.Logger, w http.ResponseWriter, message string, status int) {
	sendJSON(logger, w, api.ErrorResponse{Error: message}, status)
}
