package payload

import (
	"sort"
	"strings"
)

// ResourceSet is a comma-separated set of resource tokens (AS numbers or
// IP prefixes). Canonical emission sorts lexicographically and joins
// without whitespace (spec.md §4.3); an empty ResourceSet is emitted as an
// absent attribute, never as an empty string (spec.md §4.3 tie-break).
type ResourceSet []string

// String returns the canonical, sorted, comma-joined form.
func (r ResourceSet) String() string {
	if len(r) == 0 {
		return ""
	}
	sorted := append([]string(nil), r...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// IsEmpty reports whether the set has no members.
func (r ResourceSet) IsEmpty() bool {
	return len(r) == 0
}

// ParseResourceSet splits a comma-separated attribute value into a
// ResourceSet, rejecting embedded whitespace in any token (errKind
// MalformedResourceSet, spec.md §4.3).
func ParseResourceSet(s string) (ResourceSet, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make(ResourceSet, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			return nil, &CodecError{Kind: MalformedResourceSet, Detail: "empty resource token in " + s}
		}
		if strings.ContainsAny(p, " \t\n\r") {
			return nil, &CodecError{Kind: MalformedResourceSet, Detail: "whitespace in resource token " + p}
		}
		out = append(out, p)
	}
	return out, nil
}
