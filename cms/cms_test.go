package cms

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/asn1"
	"testing"
	"time"

	"github.com/apnic-rpki/provisioning-cms/asn1util"
	"github.com/apnic-rpki/provisioning-cms/config"
	"github.com/apnic-rpki/provisioning-cms/internal/test"
	"github.com/apnic-rpki/provisioning-cms/payload"
	"github.com/apnic-rpki/provisioning-cms/pkilog"
	"github.com/apnic-rpki/provisioning-cms/validation"
)

// oidSHA1 stands in for "anything other than oidSHA256" in the digest
// algorithm substitution test; this profile never accepts it (spec.md §4.4
// steps 3 and 11).
var oidSHA1 = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}

func testProcessor() *Processor {
	return NewProcessor(config.Default(), pkilog.NewStdLogger(), nil)
}

func configWithRejectNonStandardRSAKeySize() config.Config {
	cfg := config.Default()
	cfg.RejectNonStandardRSAKeySize = true
	return cfg
}

func listRequestInput(ee eeFixture, crl *x509.RevocationList) BuildInput {
	return BuildInput{
		Payload: payload.ListRequest{
			Sender:    "alice",
			Recipient: "bob",
		},
		EeCertificate: ee.cert,
		Signer:        ee.key,
		CRL:           crl,
		SigningTime:   time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

// TestRoundtrip covers the round-trip law: parse(build(P)) carries P back
// unchanged, and two builds from identical inputs are byte-identical
// (spec.md §8).
func TestRoundtrip(t *testing.T) {
	p := testProcessor()
	ee := newEeFixture(t)
	crl := newCRLFixture(t, ee, 1)
	in := listRequestInput(ee, crl)

	der1, err := p.Build(in)
	test.AssertNotError(t, err, "building")
	der2, err := p.Build(in)
	test.AssertNotError(t, err, "building again")
	test.AssertByteEquals(t, der1, der2)

	obj, acc, err := p.Parse("loc", der1)
	test.AssertNotError(t, err, "parsing")
	test.Assert(t, !acc.HasFailures(), "expected no validation failures")
	test.AssertDeepEquals(t, obj.Payload(), in.Payload)
}

// TestRoundtripAllVariants builds and parses one instance of every payload
// variant, confirming the codec and CMS profile compose for each.
func TestRoundtripAllVariants(t *testing.T) {
	p := testProcessor()
	ee := newEeFixture(t)
	crl := newCRLFixture(t, ee, 1)

	variants := []payload.Payload{
		payload.ListRequest{Sender: "alice", Recipient: "bob"},
		payload.ListResponse{
			Sender: "bob", Recipient: "alice",
			Class: payload.ResourceClass{
				ClassName:           "default",
				CertURIs:            []string{"rsync://example/ca.cer"},
				ResourceSetAS:       nil,
				ResourceSetIPv4:     nil,
				ResourceSetIPv6:     nil,
				ResourceSetNotAfter: "2021-12-31T23:59:59Z",
			},
		},
		payload.IssueResponse{
			Sender: "bob", Recipient: "alice",
			Class: payload.ResourceClass{
				ClassName:           "default",
				CertURIs:            []string{"rsync://example/ca.cer"},
				ResourceSetNotAfter: "2021-12-31T23:59:59Z",
				Certificates: []payload.IssuedCertificate{
					{CertURIs: []string{"rsync://example/ee.cer"}, Cert: payload.Binary("not a real certificate")},
				},
			},
		},
		payload.IssueRequest{
			Sender: "alice", Recipient: "bob",
			ClassName: "default",
			PKCS10:    payload.Binary("not a real pkcs10"),
		},
		payload.RevokeRequest{
			Sender: "alice", Recipient: "bob",
			Key: payload.RevokeKey{ClassName: "default", SKI: "aW52YWxpZA"},
		},
		payload.RevokeResponse{
			Sender: "bob", Recipient: "alice",
			Key: payload.RevokeKey{ClassName: "default", SKI: "aW52YWxpZA"},
		},
		payload.ErrorResponse{
			Sender: "bob", Recipient: "alice",
			Status:       1101,
			Descriptions: []payload.Description{{Text: "already processing request"}},
		},
	}

	for _, pl := range variants {
		pl := pl
		t.Run(string(pl.MessageType()), func(t *testing.T) {
			in := BuildInput{
				Payload:       pl,
				EeCertificate: ee.cert,
				Signer:        ee.key,
				CRL:           crl,
				SigningTime:   time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC),
			}
			der, err := p.Build(in)
			test.AssertNotError(t, err, "building "+string(pl.MessageType()))
			obj, acc, err := p.Parse("loc", der)
			test.AssertNotError(t, err, "parsing "+string(pl.MessageType()))
			test.Assert(t, !acc.HasFailures(), "expected no failures for "+string(pl.MessageType()))
			test.AssertDeepEquals(t, obj.Payload(), pl)
		})
	}
}

// TestParseRejectsTamperedSignature confirms that flipping the last byte of
// the encoding (the last signature byte) makes Parse record a failure
// (spec.md §8 mutation invariant 1).
func TestParseRejectsTamperedSignature(t *testing.T) {
	p := testProcessor()
	ee := newEeFixture(t)
	crl := newCRLFixture(t, ee, 1)
	der, err := p.Build(listRequestInput(ee, crl))
	test.AssertNotError(t, err, "building")

	tampered := append([]byte(nil), der...)
	tampered[len(tampered)-1] ^= 0xFF

	_, acc, err := p.Parse("loc", tampered)
	test.AssertError(t, err, "expected a parse failure")
	test.Assert(t, acc.HasFailures(), "expected at least one recorded failure")
}

// TestParseRejectsWrongSignerSKI confirms a SignerInfo SID that does not
// match the embedded EE certificate's SubjectKeyId fails
// cms.signer.info.ski (spec.md §8 mutation invariant 2).
func TestParseRejectsWrongSignerSKI(t *testing.T) {
	p := testProcessor()
	ee := newEeFixture(t)
	other := newEeFixture(t)
	crl := newCRLFixture(t, ee, 1)

	xmlBytes, err := payload.Marshal(payload.ListRequest{Sender: "alice", Recipient: "bob"})
	test.AssertNotError(t, err, "marshaling payload")

	// Embed `ee`'s certificate and sign with `ee`'s key, but take the
	// SignerInfo SID from `other`'s SubjectKeyId, so the SID no longer
	// matches the embedded certificate.
	wrongSKI := *ee.cert
	wrongSKI.SubjectKeyId = other.cert.SubjectKeyId
	der, err := p.assemble(assembleInput{
		content:     xmlBytes,
		eeCert:      &wrongSKI,
		signer:      ee.key,
		crls:        []*x509.RevocationList{crl},
		signingTime: time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC),
		signedAttrs: allThreeAttrs,
	})
	test.AssertNotError(t, err, "assembling with mismatched SKI")

	_, acc, err := p.Parse("loc", der)
	test.AssertError(t, err, "expected a parse failure")
	found := false
	for _, loc := range acc.Result().Locations() {
		for _, c := range acc.Result().ChecksFor(loc) {
			if c.Key == "cms.signer.info.ski" && c.Status == validation.Fail {
				found = true
			}
		}
	}
	test.Assert(t, found, "expected cms.signer.info.ski to fail")
}

// TestParseRejectsMissingCRL confirms an object carrying zero CRLs is
// rejected with a failure recorded at its location (spec.md §8 mutation
// invariant 3).
func TestParseRejectsMissingCRL(t *testing.T) {
	p := testProcessor()
	ee := newEeFixture(t)
	xmlBytes, err := payload.Marshal(payload.ListRequest{Sender: "alice", Recipient: "bob"})
	test.AssertNotError(t, err, "marshaling payload")

	der, err := p.assemble(assembleInput{
		content:     xmlBytes,
		eeCert:      ee.cert,
		signer:      ee.key,
		crls:        nil,
		signingTime: time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC),
		signedAttrs: allThreeAttrs,
	})
	test.AssertNotError(t, err, "assembling")

	_, acc, err := p.Parse("loc", der)
	test.AssertError(t, err, "expected a parse failure")
	test.Assert(t, acc.Result().HasFailureFor("loc"), "expected failures at loc")
}

// TestParseRejectsDuplicateEeCert confirms two non-CA certificates in the
// certificate set fails only.one.ee.cert.allowed (spec.md §8 mutation
// invariant 4).
func TestParseRejectsDuplicateEeCert(t *testing.T) {
	p := testProcessor()
	ee := newEeFixture(t)
	other := newEeFixture(t)
	crl := newCRLFixture(t, ee, 1)
	xmlBytes, err := payload.Marshal(payload.ListRequest{Sender: "alice", Recipient: "bob"})
	test.AssertNotError(t, err, "marshaling payload")

	der, err := p.assemble(assembleInput{
		content:        xmlBytes,
		eeCert:         ee.cert,
		signer:         ee.key,
		caCertificates: []*x509.Certificate{other.cert},
		crls:           []*x509.RevocationList{crl},
		signingTime:    time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC),
		signedAttrs:    allThreeAttrs,
	})
	test.AssertNotError(t, err, "assembling")

	_, acc, err := p.Parse("loc", der)
	test.AssertError(t, err, "expected a parse failure")
	failed := false
	for _, c := range acc.Result().ChecksFor("loc") {
		if c.Key == "only.one.ee.cert.allowed" && c.Status == validation.Fail {
			failed = true
		}
	}
	test.Assert(t, failed, "expected only.one.ee.cert.allowed to fail")
}

// TestParseRejectsUnknownDigestAlgorithm confirms a non-SHA-256
// digestAlgorithm fails cms.signeddata.digest.algorithm (spec.md §8
// mutation invariant 5). SHA-1's OID stands in for "not SHA-256".
func TestParseRejectsUnknownDigestAlgorithm(t *testing.T) {
	p := testProcessor()
	ee := newEeFixture(t)
	crl := newCRLFixture(t, ee, 1)
	der, err := p.Build(listRequestInput(ee, crl))
	test.AssertNotError(t, err, "building")

	ci, err := asn1util.ParseContentInfo(der)
	test.AssertNotError(t, err, "parsing ContentInfo")
	sd, err := asn1util.SignedDataOf(ci)
	test.AssertNotError(t, err, "extracting SignedData")
	sd.DigestAlgorithms[0].Algorithm = oidSHA1
	redone, err := sd.ContentInfoDER()
	test.AssertNotError(t, err, "re-encoding ContentInfo")

	_, acc, err := p.Parse("loc", redone)
	test.AssertError(t, err, "expected a parse failure")
	failed := false
	for _, c := range acc.Result().ChecksFor("loc") {
		if c.Key == "cms.signeddata.digest.algorithm" && c.Status == validation.Fail {
			failed = true
		}
	}
	test.Assert(t, failed, "expected cms.signeddata.digest.algorithm to fail")
}

// TestBuildMissingSigningTime exercises spec.md §8 end-to-end scenario 4:
// a CMS object built without the signingTime signed attribute fails
// signing.time.attr.present but every other check still runs.
func TestBuildMissingSigningTime(t *testing.T) {
	p := testProcessor()
	ee := newEeFixture(t)
	crl := newCRLFixture(t, ee, 1)
	xmlBytes, err := payload.Marshal(payload.ListRequest{Sender: "alice", Recipient: "bob"})
	test.AssertNotError(t, err, "marshaling payload")

	der, err := p.assemble(assembleInput{
		content:     xmlBytes,
		eeCert:      ee.cert,
		signer:      ee.key,
		crls:        []*x509.RevocationList{crl},
		signedAttrs: omitSigningTimeAttr,
	})
	test.AssertNotError(t, err, "assembling")

	obj, acc, err := p.Parse("loc", der)
	test.AssertError(t, err, "expected a parse failure")
	test.Assert(t, obj == nil, "expected no object on failure")
	failed := false
	for _, c := range acc.Result().ChecksFor("loc") {
		if c.Key == "signing.time.attr.present" && c.Status == validation.Fail {
			failed = true
		}
		if c.Key == "signature.verification" && c.Status == validation.Fail {
			t.Fatalf("signature should still verify even without signingTime")
		}
	}
	test.Assert(t, failed, "expected signing.time.attr.present to fail")
}

// TestParseRejectsUnknownPayloadType exercises spec.md §8 end-to-end
// scenario 5: eContent whose <message type="..."> names an unrecognized
// value fails payload.type.unknown, while the surrounding CMS checks still
// run and pass.
func TestParseRejectsUnknownPayloadType(t *testing.T) {
	p := testProcessor()
	ee := newEeFixture(t)
	crl := newCRLFixture(t, ee, 1)

	bogus := []byte(`<message xmlns="http://www.apnic.net/specs/rescerts/up-down/" version="1" sender="alice" recipient="bob" type="bogus"/>`)

	der, err := p.assemble(assembleInput{
		content:     bogus,
		eeCert:      ee.cert,
		signer:      ee.key,
		crls:        []*x509.RevocationList{crl},
		signingTime: time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC),
		signedAttrs: allThreeAttrs,
	})
	test.AssertNotError(t, err, "assembling")

	_, acc, err := p.Parse("loc", der)
	test.AssertError(t, err, "expected a parse failure")
	var contentParsingFailed, sigPassed bool
	for _, c := range acc.Result().ChecksFor("loc") {
		if c.Key == "cms.content.parsing" && c.Status == validation.Fail {
			contentParsingFailed = true
		}
		if c.Key == "signature.verification" && c.Status == validation.Pass {
			sigPassed = true
		}
	}
	test.Assert(t, contentParsingFailed, "expected cms.content.parsing to fail")
	test.Assert(t, sigPassed, "expected the signature itself to still verify")
}

// TestParseRejectsTwoCRLs exercises spec.md §8 end-to-end scenario 6: a
// second CRL fails only.one.crl.allowed while the rest of the object
// parses and verifies cleanly.
func TestParseRejectsTwoCRLs(t *testing.T) {
	p := testProcessor()
	ee := newEeFixture(t)
	crl1 := newCRLFixture(t, ee, 1)
	crl2 := newCRLFixture(t, ee, 2)
	xmlBytes, err := payload.Marshal(payload.ListRequest{Sender: "alice", Recipient: "bob"})
	test.AssertNotError(t, err, "marshaling payload")

	der, err := p.assemble(assembleInput{
		content:     xmlBytes,
		eeCert:      ee.cert,
		signer:      ee.key,
		crls:        []*x509.RevocationList{crl1, crl2},
		signingTime: time.Date(2020, 6, 1, 12, 0, 0, 0, time.UTC),
		signedAttrs: allThreeAttrs,
	})
	test.AssertNotError(t, err, "assembling")

	_, acc, err := p.Parse("loc", der)
	test.AssertError(t, err, "expected a parse failure")
	var crlFailed, sigPassed bool
	for _, c := range acc.Result().ChecksFor("loc") {
		if c.Key == "only.one.crl.allowed" && c.Status == validation.Fail {
			crlFailed = true
		}
		if c.Key == "signature.verification" && c.Status == validation.Pass {
			sigPassed = true
		}
	}
	test.Assert(t, crlFailed, "expected only.one.crl.allowed to fail")
	test.Assert(t, sigPassed, "expected the signature to still verify")
}

// TestBuildRejectsMismatchedSigner confirms the builder's precondition
// checks surface as KeyAlgorithmMismatch rather than silently signing with
// the wrong key.
func TestBuildRejectsMismatchedSigner(t *testing.T) {
	p := testProcessor()
	ee := newEeFixture(t)
	other := newEeFixture(t)
	crl := newCRLFixture(t, ee, 1)

	in := listRequestInput(ee, crl)
	in.Signer = other.key

	_, err := p.Build(in)
	test.AssertError(t, err, "expected a key mismatch error")
}

// TestBuildRejectsMissingCRL confirms Build's precondition check for a nil
// CRL.
func TestBuildRejectsMissingCRL(t *testing.T) {
	p := testProcessor()
	ee := newEeFixture(t)
	in := listRequestInput(ee, nil)

	_, err := p.Build(in)
	test.AssertError(t, err, "expected an error for a missing CRL")
}

// TestBuildRejectsMissingSigningTime confirms Build treats a zero
// BuildInput.SigningTime as a hard precondition failure rather than
// silently sampling the Processor's clock, preserving the determinism
// guarantee of spec.md §5: identical inputs, including signing time, must
// produce identical output.
func TestBuildRejectsMissingSigningTime(t *testing.T) {
	p := testProcessor()
	ee := newEeFixture(t)
	crl := newCRLFixture(t, ee, 1)

	in := listRequestInput(ee, crl)
	in.SigningTime = time.Time{}

	_, err := p.Build(in)
	test.AssertError(t, err, "expected an error for a missing SigningTime")
}

// TestCheckEeKeySizeWarnsByDefault confirms a non-2048-bit RSA EE key warns
// rather than fails unless RejectNonStandardRSAKeySize is set (spec.md §9
// Open Question 2).
func TestCheckEeKeySizeWarnsByDefault(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 3072)
	test.AssertNotError(t, err, "generating a non-standard key")

	acc := validation.New()
	p := testProcessor()
	p.checkEeKeySize(acc, &x509.Certificate{PublicKey: &key.PublicKey})
	test.Assert(t, !acc.HasFailures(), "a non-standard key size should only warn by default")

	strict := NewProcessor(configWithRejectNonStandardRSAKeySize(), pkilog.NewStdLogger(), nil)
	acc2 := validation.New()
	strict.checkEeKeySize(acc2, &x509.Certificate{PublicKey: &key.PublicKey})
	test.Assert(t, acc2.HasFailures(), "a non-standard key size should fail under the strict config")
}
