package app

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCommand(args ...string) error {
	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	return root.Execute()
}

func TestNewRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()

	names := make(map[string]bool)
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"serve", "run", "list-sessions", "reset-agent"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestUsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"run without message", []string{"run"}},
		{"run with empty message", []string{"run", "  "}},
		{"run with extra args", []string{"run", "one", "two"}},
		{"reset-agent without id", []string{"reset-agent"}},
		{"list-sessions without user", []string{"list-sessions"}},
		{"unknown flag", []string{"serve", "--no-such-flag"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := executeCommand(tt.args...)
			require.Error(t, err)
			assert.True(t, IsUsageError(err), "expected usage error, got: %v", err)
		})
	}
}

func TestIsUsageError(t *testing.T) {
	assert.True(t, IsUsageError(usageErrorf("bad flag")))
	assert.False(t, IsUsageError(errors.New("boom")))
	assert.False(t, IsUsageError(nil))
}
