package masking

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func secretYAML(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func TestKubernetesSecretMasker_AppliesTo(t *testing.T) {
	m := &KubernetesSecretMasker{}

	tests := []struct {
		name string
		data string
		want bool
	}{
		{"yaml secret", "apiVersion: v1\nkind: Secret\n", true},
		{"json secret", `{"kind": "Secret"}`, true},
		{"configmap", "kind: ConfigMap\n", false},
		{"mentions secret in prose", "the Secret ingredient", false},
		{"plain text", "nothing to see", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.AppliesTo(tt.data))
		})
	}
}

func TestKubernetesSecretMasker_YAML(t *testing.T) {
	m := &KubernetesSecretMasker{}

	t.Run("masks data and stringData", func(t *testing.T) {
		in := secretYAML(
			"apiVersion: v1",
			"kind: Secret",
			"metadata:",
			"  name: db-credentials",
			"data:",
			"  password: aHVudGVyMg==",
			"stringData:",
			"  token: super-secret",
		)
		got := m.Mask(in)

		assert.NotContains(t, got, "aHVudGVyMg==")
		assert.NotContains(t, got, "super-secret")
		assert.Contains(t, got, MaskedSecretValue)
		assert.Contains(t, got, "db-credentials", "metadata survives")
		assert.True(t, strings.HasSuffix(got, "\n"), "trailing newline preserved")
	})

	t.Run("leaves configmaps alone", func(t *testing.T) {
		in := secretYAML(
			"apiVersion: v1",
			"kind: ConfigMap",
			"data:",
			"  log_level: debug",
		)
		assert.Equal(t, in, m.Mask(in))
	})

	t.Run("multi-document masks only secrets", func(t *testing.T) {
		in := secretYAML(
			"kind: Secret",
			"data:",
			"  key: dmFsdWU=",
			"---",
			"kind: ConfigMap",
			"data:",
			"  setting: enabled",
		)
		got := m.Mask(in)

		assert.NotContains(t, got, "dmFsdWU=")
		assert.Contains(t, got, "setting: enabled")
		assert.Contains(t, got, "---", "document boundary preserved")
	})

	t.Run("list with mixed kinds", func(t *testing.T) {
		in := secretYAML(
			"kind: List",
			"items:",
			"  - kind: Secret",
			"    data:",
			"      password: cGFzcw==",
			"  - kind: ConfigMap",
			"    data:",
			"      mode: fast",
		)
		got := m.Mask(in)

		assert.NotContains(t, got, "cGFzcw==")
		assert.Contains(t, got, "mode: fast")
	})

	t.Run("invalid yaml returned unchanged", func(t *testing.T) {
		in := "kind: Secret\n  bad indent: [unclosed"
		assert.Equal(t, in, m.Mask(in))
	})
}

func TestKubernetesSecretMasker_JSON(t *testing.T) {
	m := &KubernetesSecretMasker{}

	t.Run("masks secret object", func(t *testing.T) {
		in := `{"kind": "Secret", "metadata": {"name": "creds"}, "data": {"password": "aHVudGVyMg=="}}`
		got := m.Mask(in)

		assert.NotContains(t, got, "aHVudGVyMg==")
		assert.Contains(t, got, MaskedSecretValue)

		var parsed map[string]any
		require.NoError(t, json.Unmarshal([]byte(got), &parsed), "output stays valid JSON")
	})

	t.Run("masks SecretList items", func(t *testing.T) {
		in := `{"kind": "SecretList", "items": [{"kind": "Secret", "data": {"key": "dmFsdWU="}}]}`
		got := m.Mask(in)
		assert.NotContains(t, got, "dmFsdWU=")
	})

	t.Run("non-secret json unchanged", func(t *testing.T) {
		in := `{"kind": "Secret"}` // no data fields, but kind matches
		got := m.Mask(in)
		var parsed map[string]any
		require.NoError(t, json.Unmarshal([]byte(got), &parsed))
	})
}

func TestKubernetesSecretMasker_AnnotationCopy(t *testing.T) {
	m := &KubernetesSecretMasker{}

	lastApplied := `{"kind":"Secret","data":{"password":"aHVudGVyMg=="}}`
	doc := map[string]any{
		"apiVersion": "v1",
		"kind":       "Secret",
		"metadata": map[string]any{
			"name": "creds",
			"annotations": map[string]any{
				"kubectl.kubernetes.io/last-applied-configuration": lastApplied,
			},
		},
		"data": map[string]any{"password": "aHVudGVyMg=="},
	}
	raw, err := yaml.Marshal(doc)
	require.NoError(t, err)

	got := m.Mask(string(raw))
	assert.NotContains(t, got, "aHVudGVyMg==",
		"secret value must not survive in the annotation copy")
}
