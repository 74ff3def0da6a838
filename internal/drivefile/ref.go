package drivefile

import "strings"

// Ref distinguishes a planned folder that exists only in a proposal from a
// committed provider identifier.
type Ref struct {
	value   string
	pending bool
}

// Pending builds a placeholder reference. The key is prefixed on the wire when needed.
func Pending(key string) Ref {
	trimmed := strings.TrimSpace(key)
	if !strings.HasPrefix(trimmed, PlaceholderPrefix) {
		trimmed = PlaceholderPrefix + trimmed
	}
	return Ref{value: trimmed, pending: true}
}

// Committed builds a reference to an identifier known to the provider.
func Committed(id string) Ref {
	return Ref{value: strings.TrimSpace(id)}
}

// ParseRef interprets a wire identifier.
func ParseRef(id string) Ref {
	trimmed := strings.TrimSpace(id)
	if strings.HasPrefix(trimmed, PlaceholderPrefix) {
		return Ref{value: trimmed, pending: true}
	}
	return Ref{value: trimmed}
}

func (ref Ref) IsPending() bool { return ref.pending }

func (ref Ref) IsZero() bool { return ref.value == "" }

func (ref Ref) IsRoot() bool { return !ref.pending && ref.value == RootID }

func (ref Ref) String() string { return ref.value }

func (ref Ref) MarshalText() ([]byte, error) { return []byte(ref.value), nil }

func (ref *Ref) UnmarshalText(text []byte) error {
	*ref = ParseRef(string(text))
	return nil
}
