// Package resolve реализует движок полевого разрешения конфликтов:
// детектор расхождений, вычислитель стратегий и применение автослияния.
// Все функции пакета чистые: детекция безопасна на устаревшем снимке
// данных, побочные эффекты (журнал, коммит) принадлежат вызывающему.
package resolve

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fleetkeeper/fleetkeeper/internal/policy"
)

// AppendDelimiter разделитель между серверным и локальным текстом
// при стратегии append.
const AppendDelimiter = "\n---\n"

var (
	// ErrManualStrategy возвращается при попытке вычислить значение
	// для manual-стратегии: вычислитель не вправе принимать это решение.
	ErrManualStrategy = errors.New("manual strategy produces no value")

	// ErrNotNumeric значение не приводится к числу (стратегии max/min).
	ErrNotNumeric = errors.New("value is not numeric")

	// ErrNotString значение не является строкой (стратегия append).
	ErrNotString = errors.New("value is not a string")

	// ErrNotBool значение не приводится к булеву (стратегия or).
	ErrNotBool = errors.New("value is not a boolean")

	// ErrUnknownStrategy стратегия отсутствует в наборе вычислимых.
	ErrUnknownStrategy = errors.New("unknown resolution strategy")
)

// Evaluate вычисляет предлагаемое разрешение конфликта для пары значений
// по заданной политике. Тотальна для всех автоматических стратегий;
// ошибка означает, что поле должно быть передано на ручное разрешение
// (evaluation error не является ошибкой запроса).
func Evaluate(p policy.Policy, local, server any, localTS, serverTS time.Time) (any, error) {
	switch p.Strategy {
	case policy.StrategyMax:
		return evaluateNumeric(local, server, true)
	case policy.StrategyMin:
		return evaluateNumeric(local, server, false)
	case policy.StrategyAppend:
		return evaluateAppend(local, server)
	case policy.StrategyLastWriteWins:
		// Ничья трактуется в пользу сервера: уже закоммиченное
		// состояние надежнее гоняющихся локальных часов
		if localTS.After(serverTS) {
			return local, nil
		}
		return server, nil
	case policy.StrategyPriority:
		return evaluatePriority(p, local, server)
	case policy.StrategyOr:
		return evaluateOr(local, server)
	case policy.StrategyServer:
		return server, nil
	case policy.StrategyManual:
		return nil, ErrManualStrategy
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, p.Strategy)
	}
}

// evaluateNumeric возвращает исходное значение стороны, чье число
// победило (а не приведенный float64), чтобы не терять исходный тип.
func evaluateNumeric(local, server any, max bool) (any, error) {
	ln, err := toNumber(local)
	if err != nil {
		return nil, fmt.Errorf("local value: %w", err)
	}
	sn, err := toNumber(server)
	if err != nil {
		return nil, fmt.Errorf("server value: %w", err)
	}

	if max {
		if ln > sn {
			return local, nil
		}
		return server, nil
	}
	if ln < sn {
		return local, nil
	}
	return server, nil
}

// evaluateAppend склеивает тексты: серверный первым, локальный вторым.
func evaluateAppend(local, server any) (any, error) {
	ls, ok := local.(string)
	if !ok {
		return nil, fmt.Errorf("local value: %w", ErrNotString)
	}
	ss, ok := server.(string)
	if !ok {
		return nil, fmt.Errorf("server value: %w", ErrNotString)
	}
	return ss + AppendDelimiter + ls, nil
}

// evaluatePriority сравнивает ранги значений по Policy.Ranking.
// Неизвестные значения получают ранг 0; при равных рангах побеждает
// серверное значение (детерминизм в пользу закоммиченного состояния).
func evaluatePriority(p policy.Policy, local, server any) (any, error) {
	ls, ok := local.(string)
	if !ok {
		return nil, fmt.Errorf("local value: %w", ErrNotString)
	}
	ss, ok := server.(string)
	if !ok {
		return nil, fmt.Errorf("server value: %w", ErrNotString)
	}

	if p.Rank(ls) > p.Rank(ss) {
		return local, nil
	}
	return server, nil
}

func evaluateOr(local, server any) (any, error) {
	lb, err := toBool(local)
	if err != nil {
		return nil, fmt.Errorf("local value: %w", err)
	}
	sb, err := toBool(server)
	if err != nil {
		return nil, fmt.Errorf("server value: %w", err)
	}
	return lb || sb, nil
}

// toNumber приводит значение к float64. Значения полей приходят из
// encoding/json (float64, json.Number), но canonical-поля, записанные
// Go-кодом, могут быть int/int64.
func toNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrNotNumeric, v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("%w: %T", ErrNotNumeric, v)
	}
}

// toBool приводит значение к bool; nil считается false
// (отсутствующий флаг эквивалентен невзведенному).
func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case nil:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %T", ErrNotBool, v)
	}
}
