package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
		errMsg  string
	}{
		{
			name:  "valid simple id",
			value: "wo-100",
		},
		{
			name:  "valid uuid",
			value: "3f2c9a4e-0b1d-4e5f-8a6b-7c8d9e0f1a2b",
		},
		{
			name:  "valid namespaced id",
			value: "org.nordic:fleet_7",
		},
		{
			name:    "empty",
			value:   "",
			wantErr: true,
			errMsg:  "cannot be empty",
		},
		{
			name:    "too long",
			value:   strings.Repeat("a", 65),
			wantErr: true,
			errMsg:  "must not exceed 64 characters",
		},
		{
			name:    "whitespace",
			value:   "wo 100",
			wantErr: true,
			errMsg:  "can only contain",
		},
		{
			name:    "path traversal characters",
			value:   "../etc/passwd",
			wantErr: true,
			errMsg:  "can only contain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateID("record id", tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateFieldName(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		wantErr bool
	}{
		{name: "valid snake_case", field: "running_hours"},
		{name: "valid single letter", field: "x"},
		{name: "empty", field: "", wantErr: true},
		{name: "starts with digit", field: "1hours", wantErr: true},
		{name: "uppercase", field: "RunningHours", wantErr: true},
		{name: "dash", field: "running-hours", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFieldName(tt.field)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateSecret(t *testing.T) {
	assert.Error(t, ValidateSecret(""))
	assert.Error(t, ValidateSecret("short"))
	assert.NoError(t, ValidateSecret("long-enough-secret"))
}
