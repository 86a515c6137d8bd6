package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandEnv(t *testing.T) {
	t.Setenv("DA_TEST_HOST", "db.internal")
	t.Setenv("DA_TEST_PORT", "5432")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "single variable",
			input: "host: {{.DA_TEST_HOST}}",
			want:  "host: db.internal",
		},
		{
			name:  "multiple variables in one value",
			input: "dsn: {{.DA_TEST_HOST}}:{{.DA_TEST_PORT}}",
			want:  "dsn: db.internal:5432",
		},
		{
			name:  "missing variable expands to empty",
			input: "key: {{.DA_TEST_MISSING}}",
			want:  "key: ",
		},
		{
			name:  "dollar signs preserved literally",
			input: `pattern: "^secret.*$"`,
			want:  `pattern: "^secret.*$"`,
		},
		{
			name:  "shell style vars untouched",
			input: "path: $PATH and ${HOME}",
			want:  "path: $PATH and ${HOME}",
		},
		{
			name:  "malformed template passes through",
			input: "value: {{.unterminated",
			want:  "value: {{.unterminated",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(ExpandEnv([]byte(tt.input))))
		})
	}
}
