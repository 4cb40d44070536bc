package resolve

import (
	"errors"
	"sort"

	"github.com/fleetkeeper/fleetkeeper/internal/models"
	"github.com/fleetkeeper/fleetkeeper/internal/policy"
)

// ErrOrgMismatch запись принадлежит другой организации.
// Это отказ в авторизации, а не конфликт: наружу уходит Rejected,
// без повторов и без записи в журнал.
var ErrOrgMismatch = errors.New("record belongs to a different organization")

// Detect сравнивает входящую запись с canonical-состоянием и перечисляет
// полевые конфликты. Функция только читает и безопасна на устаревшем
// снимке canonical record — устаревание и есть то, что она обнаруживает.
//
// canonical == nil означает blind insert: записи еще нет, конфликта нет.
func Detect(incoming *models.IncomingWrite, canonical *models.CanonicalRecord) (*models.DetectionResult, error) {
	if canonical == nil {
		return &models.DetectionResult{}, nil
	}

	if canonical.OrgID != incoming.OrgID {
		return nil, ErrOrgMismatch
	}

	// Версия клиента не устарела: сюда же попадает повторная отправка
	// уже закоммиченной записи с base_version == текущей версии
	if incoming.BaseVersion >= canonical.Version {
		return &models.DetectionResult{}, nil
	}

	// Сортируем имена полей: детерминированный порядок конфликтов
	// нужен журналу и тестам
	names := make([]string, 0, len(incoming.Fields))
	for name := range incoming.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	result := &models.DetectionResult{}
	for _, name := range names {
		// Служебные поля не подчиняются полевым политикам
		if models.IsMetadataField(name) {
			continue
		}

		serverValue, exists := canonical.Fields[name]
		if !exists {
			// Сервер никогда не писал это поле: расхождения нет,
			// клиентское значение применимо напрямую
			continue
		}

		localValue := incoming.Fields[name]
		if models.ValuesEqual(localValue, serverValue) {
			// Версии разошлись, но значения совпали — конфликта нет
			continue
		}

		result.Conflicts = append(result.Conflicts, buildConflict(incoming, canonical, name, localValue, serverValue))
	}

	result.HasConflict = len(result.Conflicts) > 0
	if !result.HasConflict {
		return result, nil
	}

	// requires_manual_resolution — объединение "safety-critical" и
	// "manual/downgraded"; can_auto_resolve истинно, только если каждый
	// конфликт вычислим автоматически. На пустом наборе оба флага false.
	result.CanAutoResolve = true
	for i := range result.Conflicts {
		if result.Conflicts[i].RequiresManual() {
			result.CanAutoResolve = false
			result.RequiresManualResolution = true
		}
	}

	return result, nil
}

// buildConflict собирает FieldConflict и сразу вычисляет предлагаемое
// разрешение для автоматических стратегий. Ошибка вычисления (например,
// нечисловое значение под max) понижает поле до manual с записанной
// причиной, а не валит запрос.
func buildConflict(incoming *models.IncomingWrite, canonical *models.CanonicalRecord, name string, localValue, serverValue any) models.FieldConflict {
	p := policy.Lookup(incoming.Kind, name)

	conflict := models.FieldConflict{
		Kind:      incoming.Kind,
		RecordID:  incoming.RecordID,
		OrgID:     incoming.OrgID,
		FieldName: name,
		Local: models.ConflictSide{
			Value:     localValue,
			Version:   incoming.BaseVersion,
			Timestamp: incoming.Provenance.ModifiedAt,
			UserID:    incoming.Provenance.UserID,
			DeviceID:  incoming.Provenance.DeviceID,
		},
		Server: models.ConflictSide{
			Value:     serverValue,
			Version:   canonical.Version,
			Timestamp: canonical.Provenance.ModifiedAt,
			UserID:    canonical.Provenance.UserID,
			DeviceID:  canonical.Provenance.DeviceID,
		},
		Strategy:       string(p.Strategy),
		SafetyCritical: p.SafetyCritical,
	}

	if p.Strategy == policy.StrategyManual {
		return conflict
	}

	suggested, err := Evaluate(p, localValue, serverValue,
		incoming.Provenance.ModifiedAt, canonical.Provenance.ModifiedAt)
	if err != nil {
		conflict.DowngradeReason = err.Error()
		return conflict
	}

	conflict.Suggested = suggested
	conflict.HasSuggestion = true
	return conflict
}
