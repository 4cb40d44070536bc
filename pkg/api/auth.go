package api

// RegisterRequest представляет запрос на регистрацию судового устройства
type RegisterRequest struct {
	OrgID  string `json:"org_id"`  // организация (судовладелец/оператор)
	Name   string `json:"name"`    // человекочитаемое имя устройства
	Secret string `json:"secret"`  // enrollment-секрет устройства
}

// RegisterResponse представляет ответ на успешную регистрацию
type RegisterResponse struct {
	DeviceID string `json:"device_id"` // UUID устройства
	Message  string `json:"message"`
}

// LoginRequest представляет запрос на аутентификацию устройства
type LoginRequest struct {
	DeviceID string `json:"device_id"`
	Secret   string `json:"secret"`
	UserID   string `json:"user_id"` // кто работает за устройством
}

// TokenResponse представляет ответ с токеном доступа
type TokenResponse struct {
	AccessToken string `json:"access_token"` // JWT access token с org scope
	ExpiresIn   int64  `json:"expires_in"`   // время жизни токена в секундах
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
