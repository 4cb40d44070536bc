package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/fleetkeeper/fleetkeeper/pkg/api"
)

// IsNetworkError сообщает, вызвана ли ошибка недоступностью сервера
// (таймаут, отказ соединения), а не ответом сервера. Такие записи
// клиент ставит в оффлайн-очередь вместо того чтобы терять.
func IsNetworkError(err error) bool {
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	baseURL    string
	authToken  string
}

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовок Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// SetAuthToken устанавливает access token для последующих запросов
func (c *Client) SetAuthToken(token string) {
	c.authToken = token
}

// Register регистрирует новое судовое устройство
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
	var resp api.RegisterResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/register", req, &resp); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// Login выполняет аутентификацию устройства
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", req, &resp); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// SubmitWrite отправляет запись на синхронизацию
func (c *Client) SubmitWrite(ctx context.Context, req api.WriteRequest) (*api.WriteResponse, error) {
	var resp api.WriteResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/records/write", req, &resp); err != nil {
		return nil, fmt.Errorf("write request failed: %w", err)
	}
	return &resp, nil
}

// ListConflicts возвращает очередь ручного разрешения организации
func (c *Client) ListConflicts(ctx context.Context) (*api.ConflictListResponse, error) {
	var resp api.ConflictListResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/conflicts", nil, &resp); err != nil {
		return nil, fmt.Errorf("list conflicts request failed: %w", err)
	}
	return &resp, nil
}

// ResolveConflict отправляет ручное решение конфликта
func (c *Client) ResolveConflict(ctx context.Context, req api.ResolveRequest) (*api.ConflictEntry, error) {
	var resp api.ConflictEntry
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/conflicts/resolve", req, &resp); err != nil {
		return nil, fmt.Errorf("resolve request failed: %w", err)
	}
	return &resp, nil
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path string, body, result interface{}) error {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	// 2xx плюс 202 Accepted (escalated write) считаются успехом
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
