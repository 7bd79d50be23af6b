package pausectl

import "strings"

// NameCodec converts between the canonical queue names kept in the shared
// store and the expanded key form kept in the local mirror. The two forms
// must round-trip without loss.
type NameCodec interface {
	// Canonical normalizes an arbitrary queue identifier.
	Canonical(name string) string
	// MirrorKey expands a canonical name to the mirror's key form.
	MirrorKey(canonical string) string
	// CanonicalFromMirror inverts MirrorKey.
	CanonicalFromMirror(key string) string
}

// DefaultCodec trims and lowercases names and namespaces mirror keys with a
// fixed prefix.
type DefaultCodec struct {
	// Prefix namespaces mirror keys. Defaults to "queue:".
	Prefix string
}

func (c DefaultCodec) prefix() string {
	if c.Prefix == "" {
		return "queue:"
	}
	return c.Prefix
}

// Canonical lowercases and trims name, stripping the mirror prefix if a
// mirror-form key is passed in.
func (c DefaultCodec) Canonical(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.TrimPrefix(name, c.prefix())
}

// MirrorKey prefixes a canonical name for local storage.
func (c DefaultCodec) MirrorKey(canonical string) string {
	return c.prefix() + canonical
}

// CanonicalFromMirror strips the prefix added by MirrorKey.
func (c DefaultCodec) CanonicalFromMirror(key string) string {
	return strings.TrimPrefix(key, c.prefix())
}
