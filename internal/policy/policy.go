// Package policy содержит Policy Registry: статическое соответствие
// (тип сущности, имя поля) -> политика разрешения конфликтов.
// Реестр детерминирован, без состояния и без побочных эффектов.
package policy

import "github.com/fleetkeeper/fleetkeeper/internal/models"

// Strategy способ разрешения конфликта для одного поля.
type Strategy string

const (
	// StrategyMax численное сравнение, побеждает большее значение.
	StrategyMax Strategy = "max"
	// StrategyMin численное сравнение, побеждает меньшее значение.
	StrategyMin Strategy = "min"
	// StrategyAppend конкатенация строк: серверный текст, разделитель,
	// локальный текст — сохраняет правки обоих авторов.
	StrategyAppend Strategy = "append"
	// StrategyLastWriteWins побеждает более поздний timestamp;
	// при равенстве — серверное значение.
	StrategyLastWriteWins Strategy = "last-write-wins"
	// StrategyPriority доменный порядок значений (Policy.Ranking);
	// побеждает значение с большим рангом.
	StrategyPriority Strategy = "priority"
	// StrategyOr булево ИЛИ: true от любого из писателей сохраняется.
	StrategyOr Strategy = "or"
	// StrategyServer всегда серверное значение: локальные правки
	// никогда не перекрывают авторитетный источник.
	StrategyServer Strategy = "server"
	// StrategyManual автослияние запрещено, решение принимает человек.
	StrategyManual Strategy = "manual"
)

// Policy политика разрешения конфликтов для одного поля.
// Ranking заполняется только для StrategyPriority: порядок значений
// от младшего к старшему. Неизвестные значения получают ранг 0.
type Policy struct {
	Strategy       Strategy `json:"strategy"`
	Rationale      string   `json:"rationale"`
	Ranking        []string `json:"ranking,omitempty"`
	SafetyCritical bool     `json:"safety_critical"`
}

// Rank возвращает ранг значения в Ranking (позиция + 1) или 0,
// если значение неизвестно.
func (p Policy) Rank(value string) int {
	for i, v := range p.Ranking {
		if v == value {
			return i + 1
		}
	}
	return 0
}

// Default политика по умолчанию для полей без явной записи в реестре:
// last-write-wins, не safety-critical.
var Default = Policy{
	Strategy:  StrategyLastWriteWins,
	Rationale: "no explicit policy, latest edit wins",
}

type fieldKey struct {
	kind  models.EntityKind
	field string
}

// registry полный список явных политик. Каждое safety-critical поле
// домена обязано присутствовать здесь: отсутствие записи — дефект
// конфигурации, а не ошибка времени выполнения (такие поля молча
// получили бы last-write-wins).
var registry = map[fieldKey]Policy{
	// Наряды на работы: статус движется только вперед по workflow,
	// заметки двух авторов склеиваются, оценка трудозатрат берется
	// пессимистичная.
	{models.KindWorkOrder, "status"}: {
		Strategy:  StrategyPriority,
		Ranking:   []string{"open", "in_progress", "completed"},
		Rationale: "work progresses forward, completed beats in_progress beats open",
	},
	{models.KindWorkOrder, "notes"}: {
		Strategy:  StrategyAppend,
		Rationale: "keep both crews' notes instead of discarding either",
	},
	{models.KindWorkOrder, "estimated_hours"}: {
		Strategy:  StrategyMax,
		Rationale: "pessimistic estimate wins for planning",
	},
	{models.KindWorkOrder, "flagged"}: {
		Strategy:  StrategyOr,
		Rationale: "a flag raised by any writer must stick",
	},
	{models.KindWorkOrder, "created_by"}: {
		Strategy:  StrategyServer,
		Rationale: "authorship is assigned once by the server",
	},

	// Назначения экипажа: статус влияет на укомплектованность вахты,
	// расхождение решает человек.
	{models.KindCrewAssignment, "status"}: {
		Strategy:       StrategyManual,
		SafetyCritical: true,
		Rationale:      "watch manning depends on assignment status, never merge silently",
	},
	{models.KindCrewAssignment, "notes"}: {
		Strategy:  StrategyAppend,
		Rationale: "keep both authors' notes",
	},

	// Часы отдыха: регуляторная отчетность (MLC/STCW), автослияние
	// часов недопустимо.
	{models.KindRestHour, "hours"}: {
		Strategy:       StrategyManual,
		SafetyCritical: true,
		Rationale:      "rest-hour compliance records require human adjudication",
	},
	{models.KindRestHour, "notes"}: {
		Strategy:  StrategyAppend,
		Rationale: "keep both authors' notes",
	},

	// Оборудование: operational_status определяет допуск к эксплуатации.
	{models.KindEquipment, "operational_status"}: {
		Strategy:       StrategyManual,
		SafetyCritical: true,
		Rationale:      "operational clearance must never be auto-merged",
	},
	{models.KindEquipment, "running_hours"}: {
		Strategy:  StrategyMax,
		Rationale: "hour counters only accumulate, the higher reading is current",
	},
	{models.KindEquipment, "serial_number"}: {
		Strategy:  StrategyServer,
		Rationale: "identity data is server-authoritative",
	},
	{models.KindEquipment, "last_inspected_at"}: {
		Strategy:  StrategyLastWriteWins,
		Rationale: "latest recorded inspection is the relevant one",
	},
}

// Lookup возвращает политику для пары (тип сущности, поле).
// Для полей без явной записи возвращается Default.
func Lookup(kind models.EntityKind, field string) Policy {
	if p, ok := registry[fieldKey{kind: kind, field: field}]; ok {
		return p
	}
	return Default
}
