// Package cms implements the RFC 5652 SignedData profile the up-down
// provisioning protocol wraps every payload in: parsing a DER blob into a
// validated ProvisioningCmsObject (spec.md §4.4), and building one from a
// payload and EE signing material (spec.md §4.5). Grounded on the teacher's
// ca/certificate-authority.go for the processor-with-config-and-logger
// shape, and on other_examples/177e1b46_sloppyjuicy-ietf-cms__protocol-protocol.go.go
// for the underlying ASN.1 types via the asn1util facade.
package cms

import (
	"crypto"
	"crypto/x509"
	"time"

	"github.com/jmhodges/clock"

	"github.com/apnic-rpki/provisioning-cms/config"
	"github.com/apnic-rpki/provisioning-cms/metrics"
	"github.com/apnic-rpki/provisioning-cms/payload"
	"github.com/apnic-rpki/provisioning-cms/pkilog"
)

// ProvisioningCmsObject is the immutable result of a successful Parse: the
// original encoded bytes alongside the certificates, CRL, and decoded
// payload the profile in spec.md §4.4 extracted from them.
type ProvisioningCmsObject struct {
	encoded        []byte
	eeCertificate  *x509.Certificate
	caCertificates []*x509.Certificate
	crl            *x509.RevocationList
	payload        payload.Payload
}

// Encoded returns the original DER bytes this object was parsed from.
func (o *ProvisioningCmsObject) Encoded() []byte { return append([]byte(nil), o.encoded...) }

// EeCertificate returns the single EE certificate the CMS object was
// signed with.
func (o *ProvisioningCmsObject) EeCertificate() *x509.Certificate { return o.eeCertificate }

// CaCertificates returns any non-EE certificates carried alongside the EE
// certificate (spec.md §3: "usually empty in valid messages").
func (o *ProvisioningCmsObject) CaCertificates() []*x509.Certificate {
	return append([]*x509.Certificate(nil), o.caCertificates...)
}

// CRL returns the single CRL the CMS object carried.
func (o *ProvisioningCmsObject) CRL() *x509.RevocationList { return o.crl }

// Payload returns the decoded payload value.
func (o *ProvisioningCmsObject) Payload() payload.Payload { return o.payload }

// BuildInput carries everything Processor.Build needs to construct a
// signed CMS object (spec.md §4.5).
type BuildInput struct {
	// Payload is serialized via the XML payload codec to form eContent.
	Payload payload.Payload

	// EeCertificate is embedded verbatim; it must already have Basic
	// Constraints absent or cA=false and a populated SubjectKeyId.
	EeCertificate *x509.Certificate

	// Signer signs the encoded SignedAttributes; its public key must match
	// EeCertificate's.
	Signer crypto.Signer

	// CaCertificates are embedded alongside the EE certificate, typically
	// empty (spec.md §3).
	CaCertificates []*x509.Certificate

	// CRL is embedded as the object's single revocation list.
	CRL *x509.RevocationList

	// SigningTime is the value of the signed signingTime attribute. It is
	// always supplied by the caller, never sampled from a clock inside the
	// core, so Build is deterministic for identical inputs (spec.md §4.5,
	// §5). Build rejects a zero value.
	SigningTime time.Time
}

// Processor parses and builds ProvisioningCmsObjects under a fixed policy
// configuration, mirroring the teacher's SQLStorageAuthority's
// config/logger/clock-holding constructor shape
// (sa/storage-authority.go's clk clock.Clock field). The clock is used only
// for audit-log timestamps, never as a source for BuildInput.SigningTime.
type Processor struct {
	cfg   config.Config
	log   pkilog.Logger
	scope metrics.Scope
	clk   clock.Clock
}

// NewProcessor returns a Processor governed by cfg, logging through log. A
// nil scope disables per-check Prometheus counters (metrics.NewNoopScope()
// is used internally).
func NewProcessor(cfg config.Config, log pkilog.Logger, scope metrics.Scope) *Processor {
	return NewProcessorWithClock(cfg, log, scope, clock.New())
}

// NewProcessorWithClock is NewProcessor with an explicit clock, the way the
// teacher's test suites construct a SQLStorageAuthority over
// clock.NewFake() (sa/sa_test.go). The clock only timestamps audit log
// entries; it is never consulted for BuildInput.SigningTime.
func NewProcessorWithClock(cfg config.Config, log pkilog.Logger, scope metrics.Scope, clk clock.Clock) *Processor {
	if scope == nil {
		scope = metrics.NewNoopScope()
	}
	return &Processor{cfg: cfg, log: log, scope: scope, clk: clk}
}
