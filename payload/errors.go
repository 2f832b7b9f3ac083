package payload

import "fmt"

// CodecErrorKind is the closed set of ways an XML payload document can fail
// to round-trip (spec.md §4.3).
type CodecErrorKind int

const (
	SchemaValidation CodecErrorKind = iota
	UnknownType
	MissingRequiredAttribute
	MalformedResourceSet
	MalformedBase64
)

func (k CodecErrorKind) String() string {
	switch k {
	case SchemaValidation:
		return "SchemaValidation"
	case UnknownType:
		return "UnknownType"
	case MissingRequiredAttribute:
		return "MissingRequiredAttribute"
	case MalformedResourceSet:
		return "MalformedResourceSet"
	case MalformedBase64:
		return "MalformedBase64"
	default:
		return "Unknown"
	}
}

// CodecError is returned by Unmarshal and UnmarshalInto for any of the five
// named failure kinds in spec.md §4.3. Marshal does not return it.
type CodecError struct {
	Kind   CodecErrorKind
	Key    string
	Detail string
}

func (e *CodecError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Key, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// IsCodecErrorKind reports whether err is a *CodecError of the given kind.
func IsCodecErrorKind(err error, kind CodecErrorKind) bool {
	ce, ok := err.(*CodecError)
	if !ok {
		return false
	}
	return ce.Kind == kind
}
