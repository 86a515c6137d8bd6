package masking

import (
	"bytes"
	"encoding/json"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaskedSecretValue replaces every data value of a masked Secret.
const MaskedSecretValue = "[MASKED_SECRET_DATA]"

var (
	yamlSecretKind = regexp.MustCompile(`(?m)^kind:\s*Secret\s*$`)
	jsonSecretKind = regexp.MustCompile(`"kind"\s*:\s*"Secret"`)
)

// KubernetesSecretMasker blanks the data and stringData maps of Kubernetes
// Secret manifests that tool servers return, without touching ConfigMaps or
// other kinds. Regex patterns cannot do this: a Secret's values are opaque
// base64 under arbitrary keys, so the manifest has to be parsed.
type KubernetesSecretMasker struct{}

// Name implements Masker.
func (m *KubernetesSecretMasker) Name() string { return "kubernetes_secret" }

// AppliesTo implements Masker with a cheap pre-check; Mask does the parse.
func (m *KubernetesSecretMasker) AppliesTo(data string) bool {
	if !strings.Contains(data, "Secret") {
		return false
	}
	return yamlSecretKind.MatchString(data) || jsonSecretKind.MatchString(data)
}

// Mask implements Masker. Anything that fails to parse or round-trip comes
// back unchanged; the regex patterns still get their pass afterwards.
func (m *KubernetesSecretMasker) Mask(data string) string {
	trimmed := strings.TrimSpace(data)

	// JSON input must not reach the YAML parser: YAML accepts JSON and
	// would re-serialize it as YAML.
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		if masked := m.maskJSON(data); masked != data {
			return masked
		}
	}
	return m.maskYAML(data)
}

func (m *KubernetesSecretMasker) maskYAML(data string) string {
	decoder := yaml.NewDecoder(strings.NewReader(data))
	var docs []map[string]any
	masked := false

	for {
		var doc map[string]any
		err := decoder.Decode(&doc)
		if err == io.EOF {
			break
		}
		if err != nil {
			return data
		}
		if doc == nil {
			continue
		}
		if maskResource(doc) {
			masked = true
		}
		docs = append(docs, doc)
	}
	if !masked || len(docs) == 0 {
		return data
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	for _, doc := range docs {
		if err := encoder.Encode(doc); err != nil {
			return data
		}
	}
	if err := encoder.Close(); err != nil {
		return data
	}

	// Match the input's trailing-newline convention; the encoder always
	// appends one.
	out := strings.TrimRight(buf.String(), "\n")
	if strings.HasSuffix(data, "\n") {
		out += "\n"
	}
	return out
}

func (m *KubernetesSecretMasker) maskJSON(data string) string {
	var obj map[string]any
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return data
	}
	if !maskResource(obj) {
		return data
	}

	result, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return data
	}
	out := string(result)
	if strings.HasSuffix(data, "\n") {
		out += "\n"
	}
	return out
}

// maskResource masks one parsed manifest in place: a Secret directly, or
// the Secret items of a List/SecretList. Reports whether anything changed.
func maskResource(resource map[string]any) bool {
	if isSecretKind(resource) {
		maskSecretData(resource)
		maskEmbeddedAnnotations(resource)
		return true
	}

	kind, _ := resource["kind"].(string)
	if !strings.HasSuffix(kind, "List") {
		return false
	}
	items, _ := resource["items"].([]any)
	masked := false
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if isSecretKind(entry) {
			maskSecretData(entry)
			maskEmbeddedAnnotations(entry)
			masked = true
		}
	}
	return masked
}

func isSecretKind(resource map[string]any) bool {
	kind, _ := resource["kind"].(string)
	return kind == "Secret" || kind == "SecretList"
}

func maskSecretData(resource map[string]any) {
	if kind, _ := resource["kind"].(string); kind == "SecretList" {
		items, _ := resource["items"].([]any)
		for _, item := range items {
			if entry, ok := item.(map[string]any); ok {
				blankDataMaps(entry)
			}
		}
		return
	}
	blankDataMaps(resource)
}

func blankDataMaps(resource map[string]any) {
	for _, field := range []string{"data", "stringData"} {
		values, ok := resource[field].(map[string]any)
		if !ok {
			continue
		}
		for key := range values {
			values[key] = MaskedSecretValue
		}
	}
}

// maskEmbeddedAnnotations catches Secrets smuggled through annotations,
// notably kubectl.kubernetes.io/last-applied-configuration which carries a
// full JSON copy of the applied Secret.
func maskEmbeddedAnnotations(resource map[string]any) {
	metadata, ok := resource["metadata"].(map[string]any)
	if !ok {
		return
	}
	annotations, ok := metadata["annotations"].(map[string]any)
	if !ok {
		return
	}

	for key, val := range annotations {
		text, ok := val.(string)
		if !ok || !strings.Contains(text, "Secret") {
			continue
		}
		var embedded map[string]any
		if err := json.Unmarshal([]byte(text), &embedded); err != nil {
			continue
		}
		if !isSecretKind(embedded) {
			continue
		}
		maskSecretData(embedded)
		if masked, err := json.Marshal(embedded); err == nil {
			annotations[key] = string(masked)
		}
	}
}
