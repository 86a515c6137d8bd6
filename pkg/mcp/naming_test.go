package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinToolName(t *testing.T) {
	assert.Equal(t, "github__create_issue", JoinToolName("github", "create_issue"))
}

func TestNormalizeToolName(t *testing.T) {
	assert.Equal(t, "github__create_issue", NormalizeToolName("github.create_issue"))
	assert.Equal(t, "github__create_issue", NormalizeToolName("github__create_issue"))
}

func TestSplitToolName(t *testing.T) {
	server, tool, err := SplitToolName("github__create_issue")
	require.NoError(t, err)
	assert.Equal(t, "github", server)
	assert.Equal(t, "create_issue", tool)

	server, tool, err = SplitToolName("files.search")
	require.NoError(t, err)
	assert.Equal(t, "files", server)
	assert.Equal(t, "search", tool)

	for _, bad := range []string{"", "noseparator", "__tool", "server__", "a b__c"} {
		_, _, err := SplitToolName(bad)
		assert.Error(t, err, "name %q", bad)
	}
}
