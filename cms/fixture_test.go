package cms

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/apnic-rpki/provisioning-cms/internal/keyid"
	"github.com/apnic-rpki/provisioning-cms/internal/test"
)

// eeFixture is a self-signed RSA-2048 end-entity certificate and key
// satisfying spec.md §4.5's EE discipline: Basic Constraints cA=false and a
// populated SubjectKeyId. It also carries the cRLSign key usage so that
// newCRLFixture can sign a CRL with it.
type eeFixture struct {
	key  *rsa.PrivateKey
	cert *x509.Certificate
}

func newEeFixture(t *testing.T) eeFixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	test.AssertNotError(t, err, "generating EE key")

	ski, err := keyid.SKI(&key.PublicKey)
	test.AssertNotError(t, err, "computing SKI")

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test EE"},
		NotBefore:             time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:              time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		BasicConstraintsValid: true,
		IsCA:                  false,
		SubjectKeyId:          ski,
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCRLSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	test.AssertNotError(t, err, "creating EE certificate")
	cert, err := x509.ParseCertificate(der)
	test.AssertNotError(t, err, "parsing EE certificate")

	return eeFixture{key: key, cert: cert}
}

// newCRLFixture returns a minimal CRL signed by ee, the same key the EE
// certificate itself uses -- the cms package never validates a CRL's
// issuer against the EE certificate (spec.md §4.4 step 7 only checks
// cardinality and parseability).
func newCRLFixture(t *testing.T, ee eeFixture, number int64) *x509.RevocationList {
	t.Helper()
	tmpl := &x509.RevocationList{
		Number:     big.NewInt(number),
		ThisUpdate: time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC),
		NextUpdate: time.Date(2020, 6, 8, 0, 0, 0, 0, time.UTC),
	}
	der, err := x509.CreateRevocationList(rand.Reader, tmpl, ee.cert, ee.key)
	test.AssertNotError(t, err, "creating CRL")
	crl, err := x509.ParseRevocationList(der)
	test.AssertNotError(t, err, "parsing CRL")
	return crl
}
