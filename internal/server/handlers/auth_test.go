package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/fleetkeeper/fleetkeeper/internal/models"
	"github.com/fleetkeeper/fleetkeeper/internal/server/storage"
	"github.com/fleetkeeper/fleetkeeper/pkg/api"
)

// mockDeviceStorage is a mock implementation of DeviceStorage for testing
type mockDeviceStorage struct {
	devices     map[string]*models.Device // device id -> Device
	createError error
	getError    error
}

func newMockDeviceStorage() *mockDeviceStorage {
	return &mockDeviceStorage{devices: make(map[string]*models.Device)}
}

func (m *mockDeviceStorage) CreateDevice(ctx context.Context, device *models.Device) error {
	if m.createError != nil {
		return m.createError
	}
	if _, exists := m.devices[device.ID]; exists {
		return storage.ErrDeviceAlreadyExists
	}
	m.devices[device.ID] = device
	return nil
}

func (m *mockDeviceStorage) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	device, ok := m.devices[id]
	if !ok {
		return nil, storage.ErrDeviceNotFound
	}
	return device, nil
}

// setupTestLogger creates a logger for testing
func setupTestLogger() *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: slog.LevelError,
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func testJWTConfig() JWTConfig {
	return JWTConfig{
		Secret:         []byte("test-secret-key"),
		AccessTokenTTL: 15 * time.Minute,
	}
}

func TestAuthHandler_Register_Success(t *testing.T) {
	deviceStorage := newMockDeviceStorage()
	handler := NewAuthHandler(setupTestLogger(), deviceStorage, testJWTConfig())

	reqBody := api.RegisterRequest{
		OrgID:  "org-nordic",
		Name:   "MV Aurora bridge tablet",
		Secret: "enrollment-secret-1",
	}
	body, err := json.Marshal(reqBody)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handler.Register(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp api.RegisterResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.NotEmpty(t, resp.DeviceID)

	device, ok := deviceStorage.devices[resp.DeviceID]
	require.True(t, ok, "device should be persisted")
	assert.Equal(t, "org-nordic", device.OrgID)
	assert.Equal(t, "MV Aurora bridge tablet", device.Name)

	// Секрет хранится только как bcrypt-хеш
	assert.NotEqual(t, reqBody.Secret, device.SecretHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(device.SecretHash), []byte(reqBody.Secret)))
}

func TestAuthHandler_Register_Validation(t *testing.T) {
	handler := NewAuthHandler(setupTestLogger(), newMockDeviceStorage(), testJWTConfig())

	tests := []struct {
		name    string
		request api.RegisterRequest
		wantMsg string
	}{
		{
			name:    "missing org_id",
			request: api.RegisterRequest{Name: "tablet", Secret: "enrollment-secret-1"},
			wantMsg: "org_id is required",
		},
		{
			name:    "missing name",
			request: api.RegisterRequest{OrgID: "org-nordic", Secret: "enrollment-secret-1"},
			wantMsg: "name is required",
		},
		{
			name:    "secret too short",
			request: api.RegisterRequest{OrgID: "org-nordic", Name: "tablet", Secret: "short"},
			wantMsg: "secret must be at least 12 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := json.Marshal(tt.request)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body))
			w := httptest.NewRecorder()

			handler.Register(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantMsg)
		})
	}
}

func TestAuthHandler_Register_InvalidBody(t *testing.T) {
	handler := NewAuthHandler(setupTestLogger(), newMockDeviceStorage(), testJWTConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()

	handler.Register(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthHandler_Register_StorageError(t *testing.T) {
	deviceStorage := newMockDeviceStorage()
	deviceStorage.createError = errors.New("disk full")
	handler := NewAuthHandler(setupTestLogger(), deviceStorage, testJWTConfig())

	body, err := json.Marshal(api.RegisterRequest{
		OrgID:  "org-nordic",
		Name:   "tablet",
		Secret: "enrollment-secret-1",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/register", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handler.Register(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

// registerTestDevice регистрирует устройство напрямую в моке
func registerTestDevice(t *testing.T, deviceStorage *mockDeviceStorage, orgID, secret string) string {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	require.NoError(t, err)

	device := &models.Device{
		ID:         "device-test-1",
		OrgID:      orgID,
		Name:       "engine room laptop",
		SecretHash: string(hash),
		CreatedAt:  time.Now(),
	}
	require.NoError(t, deviceStorage.CreateDevice(context.Background(), device))
	return device.ID
}

func TestAuthHandler_Login_Success(t *testing.T) {
	deviceStorage := newMockDeviceStorage()
	deviceID := registerTestDevice(t, deviceStorage, "org-nordic", "enrollment-secret-1")

	cfg := testJWTConfig()
	handler := NewAuthHandler(setupTestLogger(), deviceStorage, cfg)

	body, err := json.Marshal(api.LoginRequest{
		DeviceID: deviceID,
		Secret:   "enrollment-secret-1",
		UserID:   "chief-engineer",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handler.Login(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp api.TokenResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, int64(cfg.AccessTokenTTL.Seconds()), resp.ExpiresIn)

	// Токен несет org scope и identity
	claims, err := ValidateAccessToken(cfg, resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "org-nordic", claims.OrgID)
	assert.Equal(t, "chief-engineer", claims.UserID)
	assert.Equal(t, deviceID, claims.DeviceID)
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	deviceStorage := newMockDeviceStorage()
	deviceID := registerTestDevice(t, deviceStorage, "org-nordic", "enrollment-secret-1")

	handler := NewAuthHandler(setupTestLogger(), deviceStorage, testJWTConfig())

	tests := []struct {
		name    string
		request api.LoginRequest
	}{
		{
			name:    "unknown device",
			request: api.LoginRequest{DeviceID: "no-such-device", Secret: "enrollment-secret-1", UserID: "u"},
		},
		{
			name:    "wrong secret",
			request: api.LoginRequest{DeviceID: deviceID, Secret: "wrong-secret-value", UserID: "u"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := json.Marshal(tt.request)
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
			w := httptest.NewRecorder()

			handler.Login(w, req)

			// Одинаковый ответ для обоих случаев: не раскрываем, что именно не так
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), "invalid credentials")
		})
	}
}

func TestAuthHandler_Login_MissingUserID(t *testing.T) {
	deviceStorage := newMockDeviceStorage()
	deviceID := registerTestDevice(t, deviceStorage, "org-nordic", "enrollment-secret-1")

	handler := NewAuthHandler(setupTestLogger(), deviceStorage, testJWTConfig())

	body, err := json.Marshal(api.LoginRequest{DeviceID: deviceID, Secret: "enrollment-secret-1"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	w := httptest.NewRecorder()

	handler.Login(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "user_id is required")
}
