package cms

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"

	"github.com/github/ietf-cms/protocol"

	"github.com/apnic-rpki/provisioning-cms/asn1util"
	"github.com/apnic-rpki/provisioning-cms/config"
	"github.com/apnic-rpki/provisioning-cms/payload"
	"github.com/apnic-rpki/provisioning-cms/perrors"
	"github.com/apnic-rpki/provisioning-cms/validation"
)

// Parse drives the ordered RFC §3.1.1 profile checks of spec.md §4.4 against
// der, recording every conformance deviation on a fresh Accumulator scoped
// to loc. It returns a non-nil *ProvisioningCmsObject only when every check
// passed; otherwise the returned error is a *perrors.ProvisioningError of
// type ParserFailed carrying the accumulated ValidationResult.
func (p *Processor) Parse(loc validation.ValidationLocation, der []byte) (*ProvisioningCmsObject, *validation.Accumulator, error) {
	acc := validation.NewWithScope(p.scope)
	acc.SetLocation(loc)

	// Step 1: outer parse. On failure, abort this object entirely.
	ci, err := asn1util.ParseContentInfo(der)
	var sd *protocol.SignedData
	if err == nil {
		sd, err = asn1util.SignedDataOf(ci)
	}
	if !acc.RejectIfFalse(err == nil, "cms.data.parsing") {
		p.log.AuditErr(err, "loc", string(loc))
		return nil, acc, perrors.NewParserFailed(loc, acc.Result())
	}

	// Step 2: SignedData version.
	acc.RejectIfFalse(sd.Version == 3, "cms.signeddata.version")

	// Step 3: digest algorithm.
	digestOIDs := asn1util.DigestAlgorithmOIDs(sd)
	acc.RejectIfFalse(len(digestOIDs) == 1 && digestOIDs[0].Equal(oidSHA256), "cms.signeddata.digest.algorithm")

	// Step 4: content type.
	acc.RejectIfFalse(sd.EncapContentInfo.EContentType.Equal(oidProvisioning), "cms.content.type")

	// Step 5: content parse. A codec failure is recorded here; parsing
	// continues so certificate and signature checks still run.
	content, contentErr := asn1util.EContent(sd)
	var decoded payload.Payload
	if contentErr == nil && content != nil {
		decoded, contentErr = payload.UnmarshalInto(content, acc)
	}
	acc.RejectIfFalse(contentErr == nil, "cms.content.parsing")

	// Step 6: certificates.
	certs, certsErr := asn1util.Certificates(sd)
	acc.RejectIfFalse(certsErr == nil, "get.certs.and.crls")
	acc.RejectIfFalse(certsErr == nil, "cert.is.x509cert")

	var eeCert *x509.Certificate
	var caCerts []*x509.Certificate
	if certsErr == nil {
		var eeCandidates []*x509.Certificate
		for _, c := range certs {
			if !c.BasicConstraintsValid || !c.IsCA {
				eeCandidates = append(eeCandidates, c)
			} else {
				caCerts = append(caCerts, c)
			}
		}
		acc.RejectIfFalse(len(eeCandidates) == 1, "only.one.ee.cert.allowed")
		if len(eeCandidates) >= 1 {
			eeCert = eeCandidates[0]
		}
		for _, extra := range eeCandidates[minInt(1, len(eeCandidates)):] {
			caCerts = append(caCerts, extra)
		}
	} else {
		acc.RejectIfFalse(false, "only.one.ee.cert.allowed")
	}
	acc.RejectIfFalse(eeCert != nil && (!eeCert.BasicConstraintsValid || !eeCert.IsCA), "cert.is.ee.cert")
	acc.RejectIfFalse(eeCert != nil && len(eeCert.SubjectKeyId) > 0, "cert.has.ski")

	p.checkEeKeySize(acc, eeCert)

	// Step 7: CRL.
	acc.RejectIfFalse(len(sd.CRLs) == 1, "only.one.crl.allowed")
	crls, crlErr := asn1util.CRLs(sd)
	acc.RejectIfFalse(crlErr == nil, "crl.is.x509crl")
	var crl *x509.RevocationList
	if crlErr == nil && len(crls) > 0 {
		crl = crls[0]
	}

	// Step 8: signer infos.
	sis := asn1util.SignerInfos(sd)
	acc.RejectIfFalse(len(sis) >= 1, "get.signer.info")
	acc.RejectIfFalse(len(sis) == 1, "only.one.signer")
	var si protocol.SignerInfo
	if len(sis) >= 1 {
		si = sis[0]
	}

	// Step 9: signer version.
	acc.RejectIfFalse(si.Version == 3, "cms.signer.info.version")

	// Step 10: signer SID.
	ski, isSKIForm := asn1util.IsSubjectKeyIdentifierSID(si)
	acc.RejectIfFalse(isSKIForm, "cms.signer.info.ski.only")
	acc.RejectIfFalse(isSKIForm && eeCert != nil && bytes.Equal(ski, eeCert.SubjectKeyId), "cms.signer.info.ski")

	// Step 11: signer digest algorithm.
	acc.RejectIfFalse(si.DigestAlgorithm.Algorithm.Equal(oidSHA256), "cms.signer.info.digest.algorithm")

	// Step 12: signed attributes present.
	acc.RejectIfFalse(len(si.SignedAttrs) > 0, "signed.attrs.present")

	// Step 13: contentType attribute.
	ctVals, ctErr := asn1util.ContentTypeAttributeValues(si)
	acc.RejectIfFalse(ctErr == nil && len(ctVals) > 0, "content.type.attr.present")
	acc.RejectIfFalse(len(ctVals) == 1, "content.type.value.count")
	acc.RejectIfFalse(len(ctVals) == 1 && ctVals[0].Equal(oidProvisioning), "content.type.value")

	// Step 14: messageDigest attribute.
	mdVals, mdErr := asn1util.MessageDigestAttributeValues(si)
	acc.RejectIfFalse(mdErr == nil && len(mdVals) > 0, "msg.digest.attr.present")
	acc.RejectIfFalse(len(mdVals) == 1, "msg.digest.value.count")

	// Step 15: signingTime attribute.
	stVals, stErr := asn1util.SigningTimeAttributeValues(si)
	acc.RejectIfFalse(stErr == nil && len(stVals) > 0, "signing.time.attr.present")
	acc.RejectIfFalse(len(stVals) == 1, "only.one.signing.time.attr")

	// Step 16: encryption algorithm.
	acc.RejectIfFalse(si.SignatureAlgorithm.Algorithm.Equal(oidRSAEncryption), "encryption.algorithm")

	// Step 17: signature verification.
	acc.RejectIfFalse(p.verifySignature(eeCert, si, content, mdVals), "signature.verification")

	// Step 18: unsigned attributes.
	acc.RejectIfFalse(len(si.UnsignedAttrs) == 0, "unsigned.attrs.omitted")

	if p.cfg.CheckSigningTimeAgainstEeValidity && eeCert != nil && len(stVals) == 1 {
		t := stVals[0]
		acc.RejectIfFalse(!t.Before(eeCert.NotBefore) && !t.After(eeCert.NotAfter), "signing.time.within.ee.validity")
	}

	if acc.HasFailures() {
		p.log.Notice("parsed provisioning CMS object", "loc", string(loc), "result", "fail", "at", p.clk.Now())
		return nil, acc, perrors.NewParserFailed(loc, acc.Result())
	}

	p.log.Notice("parsed provisioning CMS object", "loc", string(loc), "result", "pass", "at", p.clk.Now())
	return &ProvisioningCmsObject{
		encoded:        append([]byte(nil), der...),
		eeCertificate:  eeCert,
		caCertificates: caCerts,
		crl:            crl,
		payload:        decoded,
	}, acc, nil
}

// checkEeKeySize applies spec.md §9 Open Question 2: a non-2048-bit RSA EE
// key warns by default, or fails when the Processor's config requests it.
func (p *Processor) checkEeKeySize(acc *validation.Accumulator, eeCert *x509.Certificate) {
	if eeCert == nil {
		return
	}
	pub, ok := eeCert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return
	}
	standard := pub.N.BitLen() == config.StandardRSAKeySizeBits
	if p.cfg.RejectNonStandardRSAKeySize {
		acc.RejectIfFalse(standard, "cert.ee.rsa.key.size")
	} else {
		acc.WarnIfFalse(standard, "cert.ee.rsa.key.size")
	}
}

// verifySignature reports whether si's signature verifies under eeCert's
// public key and the messageDigest attribute matches content's actual
// digest (spec.md §4.4 step 17 -- both collapse to one failure key).
func (p *Processor) verifySignature(eeCert *x509.Certificate, si protocol.SignerInfo, content []byte, mdVals [][]byte) bool {
	if eeCert == nil || content == nil || len(mdVals) != 1 {
		return false
	}
	pub, ok := eeCert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return false
	}
	sum := sha256.Sum256(content)
	if !bytes.Equal(sum[:], mdVals[0]) {
		return false
	}
	signedAttrDER, err := asn1util.SignedAttributesForSigning(si)
	if err != nil {
		return false
	}
	hashed := sha256.Sum256(signedAttrDER)
	return rsa.VerifyPKCS1v15(pub, crypto.SHA256, hashed[:], si.Signature) == nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
