package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fleetkeeper/fleetkeeper/internal/models"
	"github.com/fleetkeeper/fleetkeeper/internal/server/storage"
	"github.com/fleetkeeper/fleetkeeper/internal/validation"
	"github.com/fleetkeeper/fleetkeeper/pkg/api"
)

// AuthHandler обрабатывает регистрацию и аутентификацию устройств
type AuthHandler struct {
	logger        *slog.Logger
	deviceStorage storage.DeviceStorage
	jwtConfig     JWTConfig
}

// NewAuthHandler создает новый handler для авторизации
func NewAuthHandler(logger *slog.Logger, deviceStorage storage.DeviceStorage, jwtConfig JWTConfig) *AuthHandler {
	return &AuthHandler{
		logger:        logger,
		deviceStorage: deviceStorage,
		jwtConfig:     jwtConfig,
	}
}

// Register обрабатывает POST /api/v1/auth/register
// Регистрация нового судового устройства
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode register request", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.OrgID == "" {
		sendError(h.logger, w, "org_id is required", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateID("org id", req.OrgID); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		sendError(h.logger, w, "name is required", http.StatusBadRequest)
		return
	}
	if err := validation.ValidateSecret(req.Secret); err != nil {
		sendError(h.logger, w, err.Error(), http.StatusBadRequest)
		return
	}

	// Храним только bcrypt-хеш секрета
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Secret), bcrypt.DefaultCost)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to hash secret", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	device := &models.Device{
		ID:         uuid.New().String(),
		OrgID:      req.OrgID,
		Name:       req.Name,
		SecretHash: string(hash),
		CreatedAt:  time.Now(),
	}

	if err := h.deviceStorage.CreateDevice(ctx, device); err != nil {
		if errors.Is(err, storage.ErrDeviceAlreadyExists) {
			sendError(h.logger, w, "device already registered", http.StatusConflict)
			return
		}
		h.logger.ErrorContext(ctx, "failed to create device", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "device registered",
		slog.String("device_id", device.ID),
		slog.String("org_id", device.OrgID),
		slog.String("name", device.Name))

	resp := api.RegisterResponse{
		DeviceID: device.ID,
		Message:  "Device registered successfully",
	}

	sendJSON(h.logger, w, resp, http.StatusCreated)
}

// Login обрабатывает POST /api/v1/auth/login
// Аутентификация устройства, выдача org-scoped access token
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.ErrorContext(ctx, "failed to decode login request", slog.Any("error", err))
		sendError(h.logger, w, "invalid request body", http.StatusBadRequest)
		return
	}

	if req.DeviceID == "" || req.Secret == "" {
		sendError(h.logger, w, "device_id and secret are required", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		sendError(h.logger, w, "user_id is required", http.StatusBadRequest)
		return
	}

	device, err := h.deviceStorage.GetDevice(ctx, req.DeviceID)
	if err != nil {
		if errors.Is(err, storage.ErrDeviceNotFound) {
			h.logger.WarnContext(ctx, "login failed: device not found", slog.String("device_id", req.DeviceID))
			sendError(h.logger, w, "invalid credentials", http.StatusUnauthorized)
			return
		}
		h.logger.ErrorContext(ctx, "failed to get device", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(device.SecretHash), []byte(req.Secret)); err != nil {
		h.logger.WarnContext(ctx, "login failed: invalid secret", slog.String("device_id", req.DeviceID))
		sendError(h.logger, w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	accessToken, expiresIn, err := GenerateAccessToken(h.jwtConfig, device.OrgID, req.UserID, device.ID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to generate access token", slog.Any("error", err))
		sendError(h.logger, w, "internal server error", http.StatusInternalServerError)
		return
	}

	h.logger.InfoContext(ctx, "device logged in",
		slog.String("device_id", device.ID),
		slog.String("org_id", device.OrgID),
		slog.String("user_id", req.UserID))

	resp := api.TokenResponse{
		AccessToken: accessToken,
		ExpiresIn:   expiresIn,
	}

	sendJSON(h.logger, w, resp, http.StatusOK)
}
