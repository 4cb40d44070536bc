package validation

import (
	"fmt"
	"regexp"
)

// IDPattern определяет допустимый формат идентификаторов (record_id,
// org_id, user_id). Латинские буквы, цифры, дефис, подчеркивание,
// точка и двоеточие; длина 1-64 символа.
var IDPattern = regexp.MustCompile(`^[a-zA-Z0-9_.:-]{1,64}$`)

// FieldNamePattern определяет допустимый формат имени поля записи:
// snake_case, начинается с буквы, до 64 символов.
var FieldNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

const (
	// MaxIDLen максимальная длина идентификатора
	MaxIDLen = 64
	// MinSecretLen минимальная длина enrollment-секрета устройства
	MinSecretLen = 12
)

// ValidateID проверяет, что идентификатор соответствует требованиям.
// label используется в тексте ошибки ("record id", "org id").
func ValidateID(label, value string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", label)
	}

	if len(value) > MaxIDLen {
		return fmt.Errorf("%s must not exceed %d characters", label, MaxIDLen)
	}

	if !IDPattern.MatchString(value) {
		return fmt.Errorf("%s can only contain letters, numbers, and _ . : - separators", label)
	}

	return nil
}

// ValidateFieldName проверяет имя поля записи: snake_case, начинается
// с буквы. Имена полей попадают в журнал конфликтов и в ответы API,
// поэтому произвольные строки здесь не допускаются.
func ValidateFieldName(name string) error {
	if name == "" {
		return fmt.Errorf("field name cannot be empty")
	}

	if !FieldNamePattern.MatchString(name) {
		return fmt.Errorf("field name %q must be snake_case starting with a letter", name)
	}

	return nil
}

// ValidateSecret проверяет минимальные требования к enrollment-секрету
func ValidateSecret(secret string) error {
	if secret == "" {
		return fmt.Errorf("secret cannot be empty")
	}

	if len(secret) < MinSecretLen {
		return fmt.Errorf("secret must be at least %d characters long", MinSecretLen)
	}

	return nil
}
