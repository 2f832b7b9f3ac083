package keyid

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" // #nosec G505
	"crypto/x509"
	"encoding/base64"
	"testing"

	"github.com/apnic-rpki/provisioning-cms/internal/test"
)

func testKey(t *testing.T) *rsa.PublicKey {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	test.AssertNotError(t, err, "generating test key")
	return &priv.PublicKey
}

func TestSKIMatchesManualComputation(t *testing.T) {
	pub := testKey(t)
	der, err := x509.MarshalPKIXPublicKey(pub)
	test.AssertNotError(t, err, "marshaling public key")
	want := sha1.Sum(der)

	got, err := SKI(pub)
	test.AssertNotError(t, err, "computing SKI")
	test.AssertByteEquals(t, got, want[:])
}

func TestStringIsURLSafeBase64(t *testing.T) {
	pub := testKey(t)
	s, err := String(pub)
	test.AssertNotError(t, err, "computing SKI string")

	decoded, err := base64.RawURLEncoding.DecodeString(s)
	test.AssertNotError(t, err, "decoding SKI string")

	want, err := SKI(pub)
	test.AssertNotError(t, err, "computing SKI")
	test.AssertByteEquals(t, decoded, want)
}

func TestEqual(t *testing.T) {
	pub := testKey(t)
	s, err := String(pub)
	test.AssertNotError(t, err, "computing SKI string")

	ok, err := Equal(pub, s)
	test.AssertNotError(t, err, "comparing SKI")
	test.Assert(t, ok, "expected SKI to match itself")

	ok, err = Equal(pub, "wrong-ski-value")
	test.AssertNotError(t, err, "comparing SKI")
	test.Assert(t, !ok, "expected mismatched SKI to not match")
}
