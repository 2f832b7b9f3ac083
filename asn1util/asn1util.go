// Package asn1util is a thin facade over the CMS ASN.1/DER types, grounded
// on other_examples/177e1b46_sloppyjuicy-ietf-cms__protocol-protocol.go.go
// and backed by the real upstream module it was lifted from,
// github.com/github/ietf-cms/protocol. It carries typed accessors only: no
// validation policy lives here (spec.md §4.2). Accessors that can fail return
// a *perrors.ProvisioningError of type MalformedDer; the two constructors
// (NewEncapsulatedContentInfo, NewAttribute) return one of type
// InternalServer.
package asn1util

import (
	"crypto/x509"
	"encoding/asn1"
	"time"

	"github.com/github/ietf-cms/protocol"

	"github.com/apnic-rpki/provisioning-cms/perrors"
)

// ParseContentInfo parses der as a CMS ContentInfo.
func ParseContentInfo(der []byte) (protocol.ContentInfo, error) {
	ci, err := protocol.ParseContentInfo(der)
	if err != nil {
		return protocol.ContentInfo{}, perrors.MalformedDerError("parsing ContentInfo: %s", err)
	}
	return ci, nil
}

// SignedDataOf extracts the SignedData content from ci, assuming
// ci.ContentType is signedData.
func SignedDataOf(ci protocol.ContentInfo) (*protocol.SignedData, error) {
	sd, err := ci.SignedDataContent()
	if err != nil {
		return nil, perrors.MalformedDerError("extracting SignedData: %s", err)
	}
	return sd, nil
}

// DigestAlgorithmOIDs returns the OIDs of sd's digestAlgorithms set.
func DigestAlgorithmOIDs(sd *protocol.SignedData) []asn1.ObjectIdentifier {
	oids := make([]asn1.ObjectIdentifier, 0, len(sd.DigestAlgorithms))
	for _, alg := range sd.DigestAlgorithms {
		oids = append(oids, alg.Algorithm)
	}
	return oids
}

// EContent returns the decoded eContent octet string, or nil if the
// optional field is absent.
func EContent(sd *protocol.SignedData) ([]byte, error) {
	content, err := sd.EncapContentInfo.EContentValue()
	if err != nil {
		return nil, perrors.MalformedDerError("decoding eContent: %s", err)
	}
	return content, nil
}

// Certificates returns sd's certificate set, parsed as X.509.
func Certificates(sd *protocol.SignedData) ([]*x509.Certificate, error) {
	certs, err := sd.X509Certificates()
	if err != nil {
		return nil, perrors.MalformedDerError("parsing certificates: %s", err)
	}
	return certs, nil
}

// CRLs returns sd's revocation list set, parsed as X.509 CRLs.
func CRLs(sd *protocol.SignedData) ([]*x509.RevocationList, error) {
	out := make([]*x509.RevocationList, 0, len(sd.CRLs))
	for _, raw := range sd.CRLs {
		crl, err := x509.ParseRevocationList(raw.FullBytes)
		if err != nil {
			return nil, perrors.MalformedDerError("parsing CRL: %s", err)
		}
		out = append(out, crl)
	}
	return out, nil
}

// SignerInfos returns sd's SignerInfo set.
func SignerInfos(sd *protocol.SignedData) []protocol.SignerInfo {
	return sd.SignerInfos
}

// IsSubjectKeyIdentifierSID reports whether si's SignerIdentifier is the
// SubjectKeyIdentifier CHOICE (tag [0]) rather than issuerAndSerialNumber,
// and if so returns the raw SKI bytes.
func IsSubjectKeyIdentifierSID(si protocol.SignerInfo) (ski []byte, ok bool) {
	if si.SID.Class != asn1.ClassContextSpecific || si.SID.Tag != 0 {
		return nil, false
	}
	return si.SID.Bytes, true
}

// ContentTypeAttributeValues returns the signed contentType attribute's OID
// values (zero, one, or more -- callers enforce cardinality).
func ContentTypeAttributeValues(si protocol.SignerInfo) ([]asn1.ObjectIdentifier, error) {
	sets, err := si.SignedAttrs.GetValues(OIDContentTypeAttribute)
	if err != nil {
		return nil, perrors.MalformedDerError("decoding contentType attribute: %s", err)
	}
	var oids []asn1.ObjectIdentifier
	for _, set := range sets {
		for _, el := range set.Elements {
			var oid asn1.ObjectIdentifier
			if _, err := asn1.Unmarshal(el.FullBytes, &oid); err != nil {
				return nil, perrors.MalformedDerError("decoding contentType value: %s", err)
			}
			oids = append(oids, oid)
		}
	}
	return oids, nil
}

// MessageDigestAttributeValues returns the signed messageDigest attribute's
// octet-string values.
func MessageDigestAttributeValues(si protocol.SignerInfo) ([][]byte, error) {
	sets, err := si.SignedAttrs.GetValues(OIDMessageDigestAttribute)
	if err != nil {
		return nil, perrors.MalformedDerError("decoding messageDigest attribute: %s", err)
	}
	var out [][]byte
	for _, set := range sets {
		for _, el := range set.Elements {
			out = append(out, el.Bytes)
		}
	}
	return out, nil
}

// SigningTimeAttributeValues returns the signed signingTime attribute's
// time values.
func SigningTimeAttributeValues(si protocol.SignerInfo) ([]time.Time, error) {
	sets, err := si.SignedAttrs.GetValues(OIDSigningTimeAttribute)
	if err != nil {
		return nil, perrors.MalformedDerError("decoding signingTime attribute: %s", err)
	}
	var out []time.Time
	for _, set := range sets {
		for _, el := range set.Elements {
			var t time.Time
			if _, err := asn1.Unmarshal(el.FullBytes, &t); err != nil {
				return nil, perrors.MalformedDerError("decoding signingTime value: %s", err)
			}
			out = append(out, t)
		}
	}
	return out, nil
}

// SignedAttributesForSigning returns the DER bytes over which a SignerInfo's
// signature is computed (RFC 5652 §5.4: an EXPLICIT SET OF tag, not the
// IMPLICIT [0] used on the wire).
func SignedAttributesForSigning(si protocol.SignerInfo) ([]byte, error) {
	der, err := si.SignedAttrs.MarshaledForSigning()
	if err != nil {
		return nil, perrors.MalformedDerError("re-encoding signed attributes: %s", err)
	}
	return der, nil
}

// The CMS authenticated attribute OIDs this profile's SignerInfo always
// carries (spec.md §4.4 steps 13-15, §4.5).
var (
	OIDContentTypeAttribute   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	OIDMessageDigestAttribute = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
	OIDSigningTimeAttribute   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 5}
)

// NewEncapsulatedContentInfo builds an EncapsulatedContentInfo carrying
// content under the given eContentType OID.
func NewEncapsulatedContentInfo(content []byte, oid asn1.ObjectIdentifier) (protocol.EncapsulatedContentInfo, error) {
	eci, err := protocol.NewEncapsulatedContentInfo(content, oid)
	if err != nil {
		return protocol.EncapsulatedContentInfo{}, perrors.InternalServerError("building eContent: %s", err)
	}
	return eci, nil
}

// NewAttribute builds a single-value signed or unsigned Attribute.
func NewAttribute(oid asn1.ObjectIdentifier, val interface{}) (protocol.Attribute, error) {
	attr, err := protocol.NewAttribute(oid, val)
	if err != nil {
		return protocol.Attribute{}, perrors.InternalServerError("building attribute %s: %s", oid, err)
	}
	return attr, nil
}
