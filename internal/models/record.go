package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// EntityKind тип синхронизируемой сущности. Используется как ключ
// для Policy Registry и для canonical store вместо runtime-строк,
// чтобы неизвестная таблица обнаруживалась на границе API, а не в глубине.
type EntityKind string

// Поддерживаемые типы сущностей
const (
	KindWorkOrder      EntityKind = "work_order"
	KindCrewAssignment EntityKind = "crew_assignment"
	KindRestHour       EntityKind = "rest_hour"
	KindEquipment      EntityKind = "equipment"
)

// Valid проверяет, что kind входит в известный набор сущностей.
func (k EntityKind) Valid() bool {
	switch k {
	case KindWorkOrder, KindCrewAssignment, KindRestHour, KindEquipment:
		return true
	}
	return false
}

// FieldMap представляет значения полей записи: имя поля -> JSON-значение.
type FieldMap map[string]any

// Clone создает глубокую копию FieldMap через JSON round-trip.
// Round-trip также нормализует типы значений (все числа становятся float64).
func (m FieldMap) Clone() FieldMap {
	if m == nil {
		return nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		// FieldMap приходит из json.Decode и всегда сериализуем обратно
		panic("models: unmarshalable field map: " + err.Error())
	}
	out := make(FieldMap, len(m))
	if err := json.Unmarshal(data, &out); err != nil {
		panic("models: field map round-trip failed: " + err.Error())
	}
	return out
}

// metadataFields поля записи, которые никогда не участвуют в полевом
// сравнении конфликтов: идентификаторы, версия и provenance управляются
// сервером, а не политиками слияния.
var metadataFields = map[string]struct{}{
	"id":                   {},
	"org_id":               {},
	"version":              {},
	"created_at":           {},
	"updated_at":           {},
	"last_modified_by":     {},
	"last_modified_device": {},
	"last_modified_at":     {},
}

// IsMetadataField сообщает, относится ли имя поля к служебным метаданным.
func IsMetadataField(name string) bool {
	_, ok := metadataFields[name]
	return ok
}

// ValuesEqual сравнивает два значения полей структурно: оба значения
// нормализуются через JSON и сравниваются побайтово после канонической
// сериализации. Порядок ключей в map не влияет на результат
// (encoding/json сортирует ключи при Marshal).
func ValuesEqual(a, b any) bool {
	aj, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bj, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(normalizeJSON(aj), normalizeJSON(bj))
}

// normalizeJSON выполняет decode/encode round-trip, чтобы 3 и 3.0
// (int и float64 в Go) давали одинаковое представление.
func normalizeJSON(data []byte) []byte {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return data
	}
	out, err := json.Marshal(v)
	if err != nil {
		return data
	}
	return out
}

// Provenance описывает происхождение изменения: кто, с какого устройства
// и когда. Сервер никогда не выводит идентичность сам — она приходит
// с каждой записью от вызывающей стороны.
type Provenance struct {
	ModifiedAt time.Time `json:"modified_at"`
	UserID     string    `json:"user_id"`
	DeviceID   string    `json:"device_id"`
}

// CanonicalRecord текущее серверное состояние одной синхронизируемой
// записи. Версия монотонно растет; изменяется только через успешный
// compare-and-swap коммит.
type CanonicalRecord struct {
	Provenance Provenance `json:"provenance"`
	Kind       EntityKind `json:"entity_kind"`
	RecordID   string     `json:"record_id"`
	OrgID      string     `json:"org_id"`
	Fields     FieldMap   `json:"fields"`
	Version    int64      `json:"version"`
}

// IncomingWrite изменение, присланное клиентом: только тронутые поля
// и версия, которую клиент считал актуальной на момент редактирования.
type IncomingWrite struct {
	Provenance  Provenance `json:"provenance"`
	Kind        EntityKind `json:"entity_kind"`
	RecordID    string     `json:"record_id"`
	OrgID       string     `json:"org_id"`
	Fields      FieldMap   `json:"fields"`
	BaseVersion int64      `json:"base_version"`
}
