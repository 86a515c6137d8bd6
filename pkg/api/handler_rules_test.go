package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dataagent-io/dataagent/pkg/rules"
)

// newRulesTestServer backs each user's store with temp directories.
func newRulesTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	base := t.TempDir()
	globalDir := filepath.Join(base, "global")
	require.NoError(t, os.MkdirAll(globalDir, 0o750))

	stores := map[string]*rules.Store{}
	s := NewServer(ServerOptions{
		RuleStores: func(userID string) (*rules.Store, error) {
			if store, ok := stores[userID]; ok {
				return store, nil
			}
			store := rules.NewStore(globalDir, filepath.Join(base, "users", userID, "rules"), "", nil)
			if err := store.Reload(); err != nil {
				return nil, err
			}
			stores[userID] = store
			return store, nil
		},
	})
	return s, globalDir
}

func TestRuleHandlers_CRUD(t *testing.T) {
	s, _ := newRulesTestServer(t)

	t.Run("put creates a user rule", func(t *testing.T) {
		rec := doRequest(s, http.MethodPut, "/api/v1/users/alice/rules/deploy-safety",
			`{"description":"Deployment guardrails","priority":80,"content":"Never deploy on Fridays."}`,
			"alice")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var resp RuleResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "deploy-safety", resp.Name)
		assert.Equal(t, "user", resp.Scope)
		assert.Equal(t, 80, resp.Priority)
		assert.True(t, resp.Enabled)
	})

	t.Run("get and list round-trip", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/api/v1/users/alice/rules/deploy-safety", "", "alice")
		require.Equal(t, http.StatusOK, rec.Code)

		var resp RuleResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "Never deploy on Fridays.", resp.Content)

		rec = doRequest(s, http.MethodGet, "/api/v1/users/alice/rules", "", "alice")
		require.Equal(t, http.StatusOK, rec.Code)
		var list RuleListResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		require.Len(t, list.Rules, 1)
	})

	t.Run("put validation", func(t *testing.T) {
		tests := []struct {
			name string
			body string
		}{
			{name: "missing content", body: `{"description":"d"}`},
			{name: "missing description", body: `{"content":"c"}`},
			{name: "bad scope", body: `{"description":"d","content":"c","scope":"galaxy"}`},
			{name: "bad inclusion", body: `{"description":"d","content":"c","inclusion":"sometimes"}`},
			{name: "fileMatch without pattern", body: `{"description":"d","content":"c","inclusion":"fileMatch"}`},
			{name: "priority out of range", body: `{"description":"d","content":"c","priority":500}`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := doRequest(s, http.MethodPut, "/api/v1/users/alice/rules/bad", tt.body, "alice")
				assert.Equal(t, http.StatusBadRequest, rec.Code)
			})
		}
	})

	t.Run("delete", func(t *testing.T) {
		rec := doRequest(s, http.MethodDelete, "/api/v1/users/alice/rules/deploy-safety", "", "alice")
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = doRequest(s, http.MethodGet, "/api/v1/users/alice/rules/deploy-safety", "", "alice")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("cross-user access is denied", func(t *testing.T) {
		rec := doRequest(s, http.MethodGet, "/api/v1/users/alice/rules", "", "bob")
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestValidateRuleHandler(t *testing.T) {
	s, _ := newRulesTestServer(t)

	validate := func(content string) ValidateRuleResponse {
		body, err := json.Marshal(ValidateRuleRequest{Content: content})
		require.NoError(t, err)
		rec := doRequest(s, http.MethodPost, "/api/v1/users/alice/rules/validate", string(body), "alice")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var resp ValidateRuleResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		return resp
	}

	t.Run("valid rule", func(t *testing.T) {
		resp := validate("---\nname: tidy\ndescription: Keep answers short\n---\n\nBe brief.\n")
		assert.True(t, resp.Valid)
		assert.Empty(t, resp.Errors)
		assert.Empty(t, resp.Warnings)
	})

	t.Run("missing frontmatter", func(t *testing.T) {
		resp := validate("just some text")
		assert.False(t, resp.Valid)
		require.NotEmpty(t, resp.Errors)
		assert.Contains(t, resp.Errors[0], "frontmatter")
	})

	t.Run("missing name", func(t *testing.T) {
		resp := validate("---\ndescription: d\n---\nbody")
		assert.False(t, resp.Valid)
		require.NotEmpty(t, resp.Errors)
		assert.Contains(t, resp.Errors[0], "name")
	})

	t.Run("warnings for suspicious but loadable rules", func(t *testing.T) {
		resp := validate("---\nname: quiet\ndescription: d\nenabled: false\nfileMatchPattern: \"*.go\"\n---\nbody")
		assert.True(t, resp.Valid)
		assert.Len(t, resp.Warnings, 2)
	})

	t.Run("empty body warning", func(t *testing.T) {
		resp := validate("---\nname: hollow\ndescription: d\n---\n")
		assert.True(t, resp.Valid)
		require.Len(t, resp.Warnings, 1)
		assert.Contains(t, resp.Warnings[0], "empty")
	})
}

func TestRuleConflictsHandler(t *testing.T) {
	s, globalDir := newRulesTestServer(t)

	// Same rule name in global and user scope.
	global := "---\nname: style\ndescription: Global style guide\n---\n\nUse tabs.\n"
	require.NoError(t, os.WriteFile(filepath.Join(globalDir, "style.md"), []byte(global), 0o640))

	rec := doRequest(s, http.MethodPost, "/api/v1/users/alice/rules/reload", "", "alice")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(s, http.MethodPut, "/api/v1/users/alice/rules/style",
		`{"description":"Personal style","content":"Use spaces."}`, "alice")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/v1/users/alice/rules/conflicts", "", "alice")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp RuleConflictsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Conflicts, 1)
	assert.Equal(t, "style", resp.Conflicts[0].Name)
	assert.Equal(t, rules.ScopeUser, resp.Conflicts[0].Winner)
	assert.Equal(t, rules.ScopeGlobal, resp.Conflicts[0].Loser)
}
