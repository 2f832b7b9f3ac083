// Package keyid computes the canonical Subject Key Identifier used both in
// X.509 certificates and in revoke-request/-response XML bodies: the SHA-1
// digest of the DER-encoded SubjectPublicKeyInfo (RFC 5280 §4.2.1.2 method
// (1)), grounded on the oidSubjectKeyIdentifier lookup pattern in
// other_examples/177e1b46_sloppyjuicy-ietf-cms__protocol-protocol.go.go.
package keyid

import (
	"crypto"
	"crypto/sha1" // #nosec G505 -- RFC 5280 mandates SHA-1 for key identifiers, not for signatures
	"crypto/x509"
	"encoding/base64"
)

// SKI returns the raw SHA-1 digest of pub's DER SubjectPublicKeyInfo.
func SKI(pub crypto.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, err
	}
	sum := sha1.Sum(der)
	return sum[:], nil
}

// String returns the URL-safe, unpadded Base64 encoding of SKI(pub), which
// is how revoke-request/-response payloads carry a "ski" attribute
// (spec.md §3).
func String(pub crypto.PublicKey) (string, error) {
	ski, err := SKI(pub)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(ski), nil
}

// Equal reports whether encodedSKI (as carried in a revoke key element)
// matches pub's canonical SKI.
func Equal(pub crypto.PublicKey, encodedSKI string) (bool, error) {
	want, err := String(pub)
	if err != nil {
		return false, err
	}
	return want == encodedSKI, nil
}
