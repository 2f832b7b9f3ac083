package payload

import "encoding/base64"

// Binary carries a DER-encoded body (a PKCS#10 CSR or a certificate) which
// the wire format represents as Base64 with the standard alphabet and no
// line wrapping (spec.md §4.3). This mirrors core.JSONBuffer's
// MarshalJSON/UnmarshalJSON pair in the teacher's core/objects.go, ported
// from JSON's base64 convention to this codec's text-attribute convention.
type Binary []byte

// MarshalText implements encoding.TextMarshaler.
func (b Binary) MarshalText() ([]byte, error) {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(b)))
	base64.StdEncoding.Encode(out, b)
	return out, nil
}

// UnmarshalText implements encoding.TextUnmarshaler. A failure here is
// reported by the caller as errKind MalformedBase64 (spec.md §4.3).
func (b *Binary) UnmarshalText(text []byte) error {
	out := make([]byte, base64.StdEncoding.DecodedLen(len(text)))
	n, err := base64.StdEncoding.Decode(out, text)
	if err != nil {
		return &CodecError{Kind: MalformedBase64, Detail: err.Error()}
	}
	*b = out[:n]
	return nil
}
