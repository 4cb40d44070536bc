package models

import "time"

// ResolvedBySystem значение resolved_by для автоматически разрешенных
// конфликтов (в отличие от user id при ручном разрешении).
const ResolvedBySystem = "system:auto"

// ConflictSide значения и provenance одной из сторон конфликта.
type ConflictSide struct {
	Timestamp time.Time `json:"timestamp"`
	Value     any       `json:"value"`
	UserID    string    `json:"user_id"`
	DeviceID  string    `json:"device_id"`
	Version   int64     `json:"version"`
}

// FieldConflict одно обнаруженное расхождение по полю между локальной
// (клиентской) и серверной версиями записи. Создается Conflict Detector'ом,
// после создания не изменяется.
type FieldConflict struct {
	Local           ConflictSide `json:"local"`
	Server          ConflictSide `json:"server"`
	Kind            EntityKind   `json:"entity_kind"`
	RecordID        string       `json:"record_id"`
	OrgID           string       `json:"org_id"`
	FieldName       string       `json:"field_name"`
	Strategy        string       `json:"strategy"`
	DowngradeReason string       `json:"downgrade_reason,omitempty"`
	Suggested       any          `json:"suggested_resolution,omitempty"`
	SafetyCritical  bool         `json:"safety_critical"`
	HasSuggestion   bool         `json:"has_suggestion"`
}

// RequiresManual сообщает, требует ли конфликт ручного разрешения:
// поле safety-critical, либо стратегия manual, либо автоматическое
// вычисление не удалось (downgrade).
func (c *FieldConflict) RequiresManual() bool {
	return c.SafetyCritical || !c.HasSuggestion
}

// DetectionResult результат работы Conflict Detector для одной записи.
type DetectionResult struct {
	Conflicts []FieldConflict `json:"conflicts"`
	// HasConflict true, если версия клиента устарела и хотя бы одно
	// поле реально расходится по значению.
	HasConflict bool `json:"has_conflict"`
	// CanAutoResolve true, если каждый конфликт в наборе вычислим
	// автоматически и ни один не является safety-critical.
	CanAutoResolve bool `json:"can_auto_resolve"`
	// RequiresManualResolution true, если хотя бы один конфликт
	// safety-critical или manual-only. Не является отрицанием
	// CanAutoResolve: оба могут быть false при пустом наборе.
	RequiresManualResolution bool `json:"requires_manual_resolution"`
}

// ConflictLedgerEntry durable запись журнала конфликтов: обнаруженный
// FieldConflict плюс исход разрешения. Записи никогда не удаляются
// (требование аудита); resolved меняется ровно один раз.
type ConflictLedgerEntry struct {
	CreatedAt  time.Time     `json:"created_at"`
	ResolvedAt time.Time     `json:"resolved_at,omitzero"`
	Conflict   FieldConflict `json:"conflict"`
	ID         string        `json:"id"`
	ResolvedBy string        `json:"resolved_by,omitempty"`
	ResolvedValue any        `json:"resolved_value,omitempty"`
	Resolved   bool          `json:"resolved"`
}

// CommitStatus исход submit_write.
type CommitStatus string

const (
	// CommitCommitted запись применена, версия canonical record выросла.
	CommitCommitted CommitStatus = "committed"
	// CommitEscalated конфликт передан в очередь ручного разрешения,
	// canonical record не изменена.
	CommitEscalated CommitStatus = "escalated"
	// CommitRejected запись отклонена (авторизация, валидация).
	CommitRejected CommitStatus = "rejected"
)

// CommitOutcome результат submit_write, возвращаемый вызывающей стороне.
type CommitOutcome struct {
	Status      CommitStatus `json:"status"`
	Reason      string       `json:"reason,omitempty"`
	ConflictIDs []string     `json:"conflict_ids,omitempty"`
	NewVersion  int64        `json:"new_version,omitempty"`
}
