package api

import "time"

// WriteRequest представляет одну клиентскую запись для синхронизации.
// Fields содержит только тронутые клиентом поля; BaseVersion — версия,
// которую клиент считал актуальной, начиная правку.
type WriteRequest struct {
	Fields      map[string]any `json:"fields"`
	EntityKind  string         `json:"entity_kind"`
	RecordID    string         `json:"record_id"`
	ModifiedAt  time.Time      `json:"modified_at"`
	BaseVersion int64          `json:"base_version"`
}

// WriteResponse представляет исход submit_write
type WriteResponse struct {
	Status      string   `json:"status"` // committed | escalated | rejected
	Reason      string   `json:"reason,omitempty"`
	ConflictIDs []string `json:"conflict_ids,omitempty"`
	NewVersion  int64    `json:"new_version,omitempty"`
}

// ConflictSide одна из сторон конфликта в API-представлении
type ConflictSide struct {
	Timestamp time.Time `json:"timestamp"`
	Value     any       `json:"value"`
	UserID    string    `json:"user_id"`
	DeviceID  string    `json:"device_id"`
	Version   int64     `json:"version"`
}

// ConflictEntry запись журнала конфликтов в API-представлении
type ConflictEntry struct {
	CreatedAt       time.Time    `json:"created_at"`
	ResolvedAt      time.Time    `json:"resolved_at,omitzero"`
	Local           ConflictSide `json:"local"`
	Server          ConflictSide `json:"server"`
	ID              string       `json:"id"`
	EntityKind      string       `json:"entity_kind"`
	RecordID        string       `json:"record_id"`
	FieldName       string       `json:"field_name"`
	Strategy        string       `json:"strategy"`
	DowngradeReason string       `json:"downgrade_reason,omitempty"`
	ResolvedBy      string       `json:"resolved_by,omitempty"`
	Suggested       any          `json:"suggested_resolution,omitempty"`
	ResolvedValue   any          `json:"resolved_value,omitempty"`
	SafetyCritical  bool         `json:"safety_critical"`
	Resolved        bool         `json:"resolved"`
}

// ConflictListResponse ответ на запрос очереди ручного разрешения
type ConflictListResponse struct {
	Conflicts []ConflictEntry `json:"conflicts"`
	Total     int             `json:"total"`
}

// ResolveRequest запрос на ручное разрешение конфликта
type ResolveRequest struct {
	EntryID string `json:"entry_id"`
	Value   any    `json:"value"`
}
