package masking

// Masker is a code-based masker for content that regex patterns cannot
// handle safely, such as structured manifests where the sensitive values
// are opaque strings under arbitrary keys.
type Masker interface {
	// Name identifies the masker; it must match an entry in
	// builtinCodeMaskers.
	Name() string

	// AppliesTo is a cheap pre-check (string containment, no parsing)
	// deciding whether Mask should run at all.
	AppliesTo(data string) bool

	// Mask rewrites the data. Implementations return the input
	// unchanged on any parse or processing error.
	Mask(data string) string
}
