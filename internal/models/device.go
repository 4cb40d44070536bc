package models

import "time"

// Device зарегистрированное судовое устройство. Устройства проходят
// enrollment с секретом; сервер хранит только bcrypt-хеш секрета.
type Device struct {
	CreatedAt  time.Time `json:"created_at"`
	ID         string    `json:"id"`
	OrgID      string    `json:"org_id"`
	Name       string    `json:"name"`
	SecretHash string    `json:"-"`
}
