package resolve

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetkeeper/fleetkeeper/internal/models"
	"github.com/fleetkeeper/fleetkeeper/internal/policy"
)

func testCanonical() *models.CanonicalRecord {
	return &models.CanonicalRecord{
		Kind:     models.KindWorkOrder,
		RecordID: "wo-1",
		OrgID:    "org-1",
		Version:  2,
		Fields: models.FieldMap{
			"status":          "in_progress",
			"notes":           "pump inspected",
			"estimated_hours": 4.0,
		},
		Provenance: models.Provenance{
			UserID:     "chief-engineer",
			DeviceID:   "bridge-tablet",
			ModifiedAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		},
	}
}

func testWrite(fields models.FieldMap) *models.IncomingWrite {
	return &models.IncomingWrite{
		Kind:        models.KindWorkOrder,
		RecordID:    "wo-1",
		OrgID:       "org-1",
		BaseVersion: 1,
		Fields:      fields,
		Provenance: models.Provenance{
			UserID:     "second-engineer",
			DeviceID:   "engine-room-tablet",
			ModifiedAt: time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
		},
	}
}

func TestDetect_BlindInsert(t *testing.T) {
	write := testWrite(models.FieldMap{"status": "open"})

	result, err := Detect(write, nil)
	require.NoError(t, err)

	assert.False(t, result.HasConflict)
	assert.Empty(t, result.Conflicts)
}

func TestDetect_FreshBaseVersion(t *testing.T) {
	canonical := testCanonical()

	// Версия клиента совпадает с текущей — обычный апдейт
	write := testWrite(models.FieldMap{"status": "completed"})
	write.BaseVersion = 2

	result, err := Detect(write, canonical)
	require.NoError(t, err)
	assert.False(t, result.HasConflict)

	// Версия клиента опережает (повторная отправка после коммита) —
	// тоже не конфликт
	write.BaseVersion = 3
	result, err = Detect(write, canonical)
	require.NoError(t, err)
	assert.False(t, result.HasConflict)
}

func TestDetect_OrgMismatch(t *testing.T) {
	canonical := testCanonical()
	write := testWrite(models.FieldMap{"status": "completed"})
	write.OrgID = "org-2"

	_, err := Detect(write, canonical)
	assert.ErrorIs(t, err, ErrOrgMismatch)
}

// Сценарий из двух устройств: status (priority) и notes (append)
// правятся одновременно от base_version=1, пока canonical на версии 2.
func TestDetect_TwoAutoResolvableConflicts(t *testing.T) {
	canonical := testCanonical()
	write := testWrite(models.FieldMap{
		"status": "completed",
		"notes":  "replaced seal",
	})

	result, err := Detect(write, canonical)
	require.NoError(t, err)

	assert.True(t, result.HasConflict)
	assert.True(t, result.CanAutoResolve)
	assert.False(t, result.RequiresManualResolution)
	require.Len(t, result.Conflicts, 2)

	// Поля в детерминированном (отсортированном) порядке
	notes := result.Conflicts[0]
	assert.Equal(t, "notes", notes.FieldName)
	assert.Equal(t, string(policy.StrategyAppend), notes.Strategy)
	assert.True(t, notes.HasSuggestion)
	assert.Equal(t, "pump inspected\n---\nreplaced seal", notes.Suggested)

	status := result.Conflicts[1]
	assert.Equal(t, "status", status.FieldName)
	assert.Equal(t, string(policy.StrategyPriority), status.Strategy)
	assert.True(t, status.HasSuggestion)
	assert.Equal(t, "completed", status.Suggested)

	// Provenance обеих сторон зафиксирован
	assert.Equal(t, "second-engineer", status.Local.UserID)
	assert.Equal(t, "chief-engineer", status.Server.UserID)
	assert.Equal(t, int64(1), status.Local.Version)
	assert.Equal(t, int64(2), status.Server.Version)
}

func TestDetect_EqualValuesAreNotConflicts(t *testing.T) {
	canonical := testCanonical()
	// Версии разошлись, но клиент прислал то же значение
	write := testWrite(models.FieldMap{"status": "in_progress"})

	result, err := Detect(write, canonical)
	require.NoError(t, err)
	assert.False(t, result.HasConflict)
}

func TestDetect_MetadataFieldsSkipped(t *testing.T) {
	canonical := testCanonical()
	canonical.Fields["version"] = 2
	write := testWrite(models.FieldMap{
		"version":          99,
		"last_modified_by": "someone",
	})

	result, err := Detect(write, canonical)
	require.NoError(t, err)
	assert.False(t, result.HasConflict)
}

func TestDetect_FieldAbsentOnServer(t *testing.T) {
	canonical := testCanonical()
	// Сервер никогда не писал это поле — расхождения нет
	write := testWrite(models.FieldMap{"location": "engine room"})

	result, err := Detect(write, canonical)
	require.NoError(t, err)
	assert.False(t, result.HasConflict)
}

// Сценарий safety-critical: два устройства правят часы отдыха.
func TestDetect_SafetyCriticalRequiresManual(t *testing.T) {
	canonical := &models.CanonicalRecord{
		Kind:     models.KindRestHour,
		RecordID: "rh-1",
		OrgID:    "org-1",
		Version:  2,
		Fields:   models.FieldMap{"hours": 8.0},
		Provenance: models.Provenance{
			UserID:     "chief-mate",
			ModifiedAt: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		},
	}
	write := &models.IncomingWrite{
		Kind:        models.KindRestHour,
		RecordID:    "rh-1",
		OrgID:       "org-1",
		BaseVersion: 1,
		Fields:      models.FieldMap{"hours": 6.5},
		Provenance: models.Provenance{
			UserID:     "able-seaman",
			ModifiedAt: time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC),
		},
	}

	result, err := Detect(write, canonical)
	require.NoError(t, err)

	assert.True(t, result.HasConflict)
	assert.True(t, result.RequiresManualResolution)
	assert.False(t, result.CanAutoResolve)
	require.Len(t, result.Conflicts, 1)
	assert.True(t, result.Conflicts[0].SafetyCritical)
	assert.False(t, result.Conflicts[0].HasSuggestion)
}

// Ошибка вычисления понижает поле до manual, не валит запрос.
func TestDetect_EvaluationFailureDowngrades(t *testing.T) {
	canonical := testCanonical()
	canonical.Fields["estimated_hours"] = "unknown" // не число под стратегией max
	write := testWrite(models.FieldMap{"estimated_hours": 6.0})

	result, err := Detect(write, canonical)
	require.NoError(t, err)

	require.Len(t, result.Conflicts, 1)
	conflict := result.Conflicts[0]
	assert.False(t, conflict.HasSuggestion)
	assert.NotEmpty(t, conflict.DowngradeReason)
	assert.True(t, result.RequiresManualResolution)
	assert.False(t, result.CanAutoResolve)
	// Поле не safety-critical, но вычислить его нельзя
	assert.False(t, conflict.SafetyCritical)
}

// Non-safety-critical manual поле: requires_manual=true при том,
// что safety-critical конфликтов нет.
func TestDetect_ManualStrategyWithoutSafetyCritical(t *testing.T) {
	canonical := testCanonical()
	write := testWrite(models.FieldMap{
		"status": "completed",
	})
	// estimated_hours под нечисловым значением понижается до manual
	canonical.Fields["estimated_hours"] = "n/a"
	write.Fields["estimated_hours"] = 3.0

	result, err := Detect(write, canonical)
	require.NoError(t, err)

	assert.True(t, result.RequiresManualResolution)
	assert.False(t, result.CanAutoResolve)
	for i := range result.Conflicts {
		assert.False(t, result.Conflicts[i].SafetyCritical)
	}
}
