package cms

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"time"

	"github.com/github/ietf-cms/protocol"

	"github.com/apnic-rpki/provisioning-cms/asn1util"
	"github.com/apnic-rpki/provisioning-cms/config"
	"github.com/apnic-rpki/provisioning-cms/payload"
	"github.com/apnic-rpki/provisioning-cms/perrors"
)

// Build constructs a DER-encoded CMS SignedData object matching spec.md
// §4.5: a single EE certificate and CRL, SHA-256 and RSA-with-SHA-256
// throughout, SignedData.version and SignerInfo.version both 3, exactly
// the three named signed attributes, and no unsigned attributes. It does
// not accumulate: every precondition violation surfaces immediately as one
// of the three named errors (spec.md §4.5).
func (p *Processor) Build(in BuildInput) ([]byte, error) {
	eeCert := in.EeCertificate
	if eeCert == nil {
		return nil, perrors.MissingEeCertError("no EE certificate supplied")
	}
	if len(eeCert.SubjectKeyId) == 0 {
		return nil, perrors.MissingEeCertError("EE certificate has no SubjectKeyId")
	}
	if eeCert.BasicConstraintsValid && eeCert.IsCA {
		return nil, perrors.MissingEeCertError("EE certificate has Basic Constraints cA=true")
	}
	if in.Signer == nil {
		return nil, perrors.MissingEeCertError("no signer supplied")
	}
	if in.CRL == nil {
		return nil, perrors.SigningFailedError("no CRL supplied")
	}
	if in.SigningTime.IsZero() {
		return nil, perrors.SigningFailedError("no SigningTime supplied")
	}

	eePub, ok := eeCert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, perrors.KeyAlgorithmMismatchError("EE certificate public key is not RSA")
	}
	signerPub, ok := in.Signer.Public().(*rsa.PublicKey)
	if !ok || signerPub.E != eePub.E || signerPub.N.Cmp(eePub.N) != 0 {
		return nil, perrors.KeyAlgorithmMismatchError("signer public key does not match EE certificate public key")
	}
	if p.cfg.RejectNonStandardRSAKeySize && eePub.N.BitLen() != config.StandardRSAKeySizeBits {
		return nil, perrors.KeyAlgorithmMismatchError("EE key size %d bits is non-standard", eePub.N.BitLen())
	}

	xmlBytes, err := payload.Marshal(in.Payload)
	if err != nil {
		return nil, perrors.SigningFailedError("marshaling payload: %s", err)
	}

	der, err := p.assemble(assembleInput{
		content:        xmlBytes,
		eeCert:         eeCert,
		signer:         in.Signer,
		caCertificates: in.CaCertificates,
		crls:           []*x509.RevocationList{in.CRL},
		signingTime:    in.SigningTime,
		signedAttrs:    allThreeAttrs,
	})
	if err != nil {
		return nil, err
	}

	p.log.Notice("built provisioning CMS object", "type", string(in.Payload.MessageType()), "at", p.clk.Now())
	return der, nil
}

// signedAttrSet selects which of the three named signed attributes
// assemble includes, so tests can reproduce the "missing signingTime"
// scenario (spec.md §8 end-to-end scenario 4) without duplicating the CMS
// assembly logic.
type signedAttrSet int

const (
	allThreeAttrs signedAttrSet = iota
	omitSigningTimeAttr
)

// assembleInput carries the low-level pieces Build and malformed-fixture
// tests need to construct a SignedData directly, bypassing the payload
// codec and BuildInput's precondition checks.
type assembleInput struct {
	content        []byte
	eeCert         *x509.Certificate
	signer         crypto.Signer
	caCertificates []*x509.Certificate
	crls           []*x509.RevocationList
	signingTime    time.Time
	signedAttrs    signedAttrSet
}

// assemble builds and DER-encodes a SignedData from in, applying the same
// algorithm and attribute choices Build uses (spec.md §4.5).
func (p *Processor) assemble(in assembleInput) ([]byte, error) {
	eci, err := asn1util.NewEncapsulatedContentInfo(in.content, oidProvisioning)
	if err != nil {
		return nil, perrors.SigningFailedError("building eContent: %s", err)
	}

	digest := sha256.Sum256(in.content)

	ctAttr, err := asn1util.NewAttribute(asn1util.OIDContentTypeAttribute, oidProvisioning)
	if err != nil {
		return nil, perrors.SigningFailedError("building contentType attribute: %s", err)
	}
	mdAttr, err := asn1util.NewAttribute(asn1util.OIDMessageDigestAttribute, digest[:])
	if err != nil {
		return nil, perrors.SigningFailedError("building messageDigest attribute: %s", err)
	}

	signedAttrs := protocol.Attributes{ctAttr, mdAttr}
	if in.signedAttrs == allThreeAttrs {
		stAttr, err := asn1util.NewAttribute(asn1util.OIDSigningTimeAttribute, in.signingTime.UTC())
		if err != nil {
			return nil, perrors.SigningFailedError("building signingTime attribute: %s", err)
		}
		signedAttrs = append(signedAttrs, stAttr)
	}

	si := protocol.SignerInfo{
		Version: 3,
		SID: asn1.RawValue{
			Class: asn1.ClassContextSpecific,
			Tag:   0,
			Bytes: in.eeCert.SubjectKeyId,
		},
		DigestAlgorithm:    pkix.AlgorithmIdentifier{Algorithm: oidSHA256},
		SignedAttrs:        signedAttrs,
		SignatureAlgorithm: pkix.AlgorithmIdentifier{Algorithm: oidRSAEncryption},
	}

	signedAttrDER, err := asn1util.SignedAttributesForSigning(si)
	if err != nil {
		return nil, perrors.SigningFailedError("encoding signed attributes: %s", err)
	}
	hashed := sha256.Sum256(signedAttrDER)
	sig, err := in.signer.Sign(rand.Reader, hashed[:], crypto.SHA256)
	if err != nil {
		return nil, perrors.SigningFailedError("signing: %s", err)
	}
	si.Signature = sig

	certs := make([]asn1.RawValue, 0, 1+len(in.caCertificates))
	eeRaw, err := wrapDER(in.eeCert.Raw)
	if err != nil {
		return nil, perrors.SigningFailedError("encoding EE certificate: %s", err)
	}
	certs = append(certs, eeRaw)
	for _, c := range in.caCertificates {
		raw, err := wrapDER(c.Raw)
		if err != nil {
			return nil, perrors.SigningFailedError("encoding CA certificate: %s", err)
		}
		certs = append(certs, raw)
	}

	crls := make([]asn1.RawValue, 0, len(in.crls))
	for _, crl := range in.crls {
		raw, err := wrapDER(crl.Raw)
		if err != nil {
			return nil, perrors.SigningFailedError("encoding CRL: %s", err)
		}
		crls = append(crls, raw)
	}

	sd := &protocol.SignedData{
		Version:          3,
		DigestAlgorithms: []pkix.AlgorithmIdentifier{{Algorithm: oidSHA256}},
		EncapContentInfo: eci,
		Certificates:     certs,
		CRLs:             crls,
		SignerInfos:      []protocol.SignerInfo{si},
	}

	der, err := sd.ContentInfoDER()
	if err != nil {
		return nil, perrors.SigningFailedError("encoding ContentInfo: %s", err)
	}
	return der, nil
}

// wrapDER re-decodes an already-DER-encoded structure into an asn1.RawValue
// whose FullBytes is the original encoding, the same pattern
// protocol.SignedData.addCertificate uses in
// other_examples/177e1b46_sloppyjuicy-ietf-cms__protocol-protocol.go.go.
func wrapDER(der []byte) (asn1.RawValue, error) {
	var rv asn1.RawValue
	if _, err := asn1.Unmarshal(der, &rv); err != nil {
		return asn1.RawValue{}, err
	}
	return rv, nil
}
