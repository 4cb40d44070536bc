package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/fleetkeeper/fleetkeeper/internal/client/storage"
)

// readInput читает строку из stdin с приглашением
func readInput(prompt string) (string, error) {
	fmt.Print(prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// readSecret читает секрет без эха в терминал
func readSecret(prompt string) (string, error) {
	fmt.Print(prompt)
	data, err := term.ReadPassword(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// requireSession загружает живую сессию и настраивает API клиент
func (c *Cli) requireSession(ctx context.Context) (*storage.Session, error) {
	session, err := c.sessions.GetSession(ctx)
	if err != nil {
		if err == storage.ErrSessionNotFound {
			return nil, fmt.Errorf("not authenticated, run 'fleetctl login' first")
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if time.Now().Unix() >= session.ExpiresAt {
		return nil, fmt.Errorf("session expired, run 'fleetctl login' again")
	}

	c.apiClient.SetAuthToken(session.AccessToken)
	return session, nil
}

// parseFieldArgs разбирает аргументы вида key=value в карту полей.
// Значение парсится как JSON (числа, bool, null, объекты); все
// остальное трактуется как строка: status=completed, hours=7.5,
// flagged=true.
func parseFieldArgs(args []string) (map[string]any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("at least one field=value argument is required")
	}

	fields := make(map[string]any, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid field argument %q, expected field=value", arg)
		}

		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		fields[name] = value
	}

	return fields, nil
}

// formatValue печатает значение поля компактным JSON
func formatValue(v any) string {
	if v == nil {
		return "<none>"
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
