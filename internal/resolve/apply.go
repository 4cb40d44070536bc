package resolve

import (
	"fmt"
	"strings"

	"github.com/fleetkeeper/fleetkeeper/internal/models"
)

// EscalationError возвращается Apply, когда набор конфликтов нельзя
// слить автоматически. Называет блокирующие поля; частичное слияние
// не выполняется.
type EscalationError struct {
	Fields []string
}

func (e *EscalationError) Error() string {
	return fmt.Sprintf("manual resolution required for fields: %s", strings.Join(e.Fields, ", "))
}

// Apply превращает набор конфликтов в merge patch из предложенных
// разрешений. Все или ничего: если хотя бы одно поле safety-critical
// или не имеет вычисленного разрешения, возвращается EscalationError
// и никакого частичного patch — запись не должна оказаться наполовину
// слитой, наполовину ожидающей решения.
func Apply(conflicts []models.FieldConflict) (models.FieldMap, error) {
	var blocking []string
	for i := range conflicts {
		if conflicts[i].RequiresManual() {
			blocking = append(blocking, conflicts[i].FieldName)
		}
	}
	if len(blocking) > 0 {
		return nil, &EscalationError{Fields: blocking}
	}

	patch := make(models.FieldMap, len(conflicts))
	for i := range conflicts {
		patch[conflicts[i].FieldName] = conflicts[i].Suggested
	}
	return patch, nil
}
