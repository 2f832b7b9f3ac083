package payload

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	validatorpkg "github.com/letsencrypt/validator/v10"

	"github.com/apnic-rpki/provisioning-cms/validation"
)

const xmlNamespaceNS = "http://www.w3.org/XML/1998/namespace"

// header is the struct letsencrypt/validator/v10 checks before the codec's
// own semantic checks run (SPEC_FULL.md §4.3): non-empty sender/recipient.
type header struct {
	Sender    string `validate:"required"`
	Recipient string `validate:"required"`
}

var headerValidator = validatorpkg.New()

type rawMessage struct {
	XMLName   xml.Name `xml:"http://www.apnic.net/specs/rescerts/up-down/ message"`
	Sender    string   `xml:"sender,attr"`
	Recipient string   `xml:"recipient,attr"`
	Type      string   `xml:"type,attr"`
	Version   string   `xml:"version,attr"`

	Class   *rawClass   `xml:"http://www.apnic.net/specs/rescerts/up-down/ class"`
	Request *rawRequest `xml:"http://www.apnic.net/specs/rescerts/up-down/ request"`
	Key     *rawKey     `xml:"http://www.apnic.net/specs/rescerts/up-down/ key"`
	Status  *int        `xml:"http://www.apnic.net/specs/rescerts/up-down/ status"`

	Descriptions []rawDescription `xml:"http://www.apnic.net/specs/rescerts/up-down/ description"`
}

type rawClass struct {
	ClassName           string `xml:"class_name,attr"`
	CertURL             string `xml:"cert_url,attr"`
	ResourceSetAS       string `xml:"resource_set_as,attr"`
	ResourceSetIPv4     string `xml:"resource_set_ipv4,attr"`
	ResourceSetIPv6     string `xml:"resource_set_ipv6,attr"`
	ResourceSetNotAfter string `xml:"resource_set_notafter,attr"`
	SuggestedSIAHead    string `xml:"suggested_sia_head,attr"`

	Certificates []rawCertificate `xml:"http://www.apnic.net/specs/rescerts/up-down/ certificate"`
}

type rawCertificate struct {
	CertURL            string `xml:"cert_url,attr"`
	ReqResourceSetAS   string `xml:"req_resource_set_as,attr"`
	ReqResourceSetIPv4 string `xml:"req_resource_set_ipv4,attr"`
	ReqResourceSetIPv6 string `xml:"req_resource_set_ipv6,attr"`
	Body               string `xml:",chardata"`
}

type rawRequest struct {
	ClassName           string `xml:"class_name,attr"`
	ResourceSetAS       string `xml:"resource_set_as,attr"`
	ResourceSetIPv4     string `xml:"resource_set_ipv4,attr"`
	ResourceSetIPv6     string `xml:"resource_set_ipv6,attr"`
	ResourceSetNotAfter string `xml:"resource_set_notafter,attr"`
	Body                string `xml:",chardata"`
}

type rawKey struct {
	ClassName string `xml:"class_name,attr"`
	SKI       string `xml:"ski,attr"`
}

type rawDescription struct {
	Lang string `xml:"http://www.w3.org/XML/1998/namespace lang,attr"`
	Text string `xml:",chardata"`
}

// Unmarshal parses a canonical (or any whitespace variant of a) up-down
// provisioning XML document into a Payload (spec.md §4.3).
func Unmarshal(data []byte) (Payload, error) {
	acc := validation.New()
	acc.SetLocation("payload")
	p, err := UnmarshalInto(data, acc)
	if err != nil {
		return nil, err
	}
	if acc.HasFailures() {
		return nil, &CodecError{Kind: SchemaValidation, Detail: "payload failed validation"}
	}
	return p, nil
}

// UnmarshalInto parses data the same way Unmarshal does, but routes
// recoverable defects through the caller's accumulator instead of
// returning early, so a CMS parse (spec.md §4.4 step 5) can continue past
// a malformed payload to still validate the surrounding CMS envelope.
// A non-nil error is returned only when the document could not be
// interpreted as a message at all.
func UnmarshalInto(data []byte, acc *validation.Accumulator) (Payload, error) {
	if err := checkNamespaceStrictness(data); err != nil {
		acc.RejectIfFalse(false, "payload.namespace", err.Error())
		return nil, err
	}

	var raw rawMessage
	if err := xml.Unmarshal(data, &raw); err != nil {
		cerr := &CodecError{Kind: SchemaValidation, Detail: err.Error()}
		acc.RejectIfFalse(false, "payload.parse", cerr.Error())
		return nil, cerr
	}

	hdrErr := headerValidator.Struct(header{Sender: raw.Sender, Recipient: raw.Recipient})
	acc.RejectIfFalse(hdrErr == nil, "payload.header")

	version, verr := strconv.Atoi(raw.Version)
	if !acc.RejectIfFalse(verr == nil && version == Version, "payload.version", raw.Version) {
		err := &CodecError{Kind: SchemaValidation, Key: "payload.version", Detail: fmt.Sprintf("unsupported version %q", raw.Version)}
		return nil, err
	}

	msgType := MessageType(raw.Type)
	if !acc.RejectIfFalse(knownTypes[msgType], "payload.type.unknown", raw.Type) {
		err := &CodecError{Kind: UnknownType, Key: "payload.type.unknown", Detail: fmt.Sprintf("unknown payload type %q", raw.Type)}
		return nil, err
	}

	p, err := buildPayload(msgType, raw)
	if err != nil {
		cerr, ok := err.(*CodecError)
		key := "payload.body"
		if ok {
			key = "payload." + strings.ToLower(cerr.Kind.String())
		}
		acc.RejectIfFalse(false, key, err.Error())
		return nil, err
	}
	acc.RejectIfFalse(true, "payload.body")
	return p, nil
}

func buildPayload(msgType MessageType, raw rawMessage) (Payload, error) {
	switch msgType {
	case TypeList:
		return ListRequest{Sender: raw.Sender, Recipient: raw.Recipient}, nil

	case TypeListResponse, TypeIssueResponse:
		if raw.Class == nil {
			return nil, &CodecError{Kind: MissingRequiredAttribute, Detail: "missing class element"}
		}
		class, err := classFromRaw(*raw.Class)
		if err != nil {
			return nil, err
		}
		if msgType == TypeListResponse {
			return ListResponse{Sender: raw.Sender, Recipient: raw.Recipient, Class: class}, nil
		}
		return IssueResponse{Sender: raw.Sender, Recipient: raw.Recipient, Class: class}, nil

	case TypeIssue:
		if raw.Request == nil {
			return nil, &CodecError{Kind: MissingRequiredAttribute, Detail: "missing request element"}
		}
		return requestFromRaw(raw, *raw.Request)

	case TypeRevoke, TypeRevokeResponse:
		if raw.Key == nil {
			return nil, &CodecError{Kind: MissingRequiredAttribute, Detail: "missing key element"}
		}
		key := RevokeKey{ClassName: raw.Key.ClassName, SKI: raw.Key.SKI}
		if msgType == TypeRevoke {
			return RevokeRequest{Sender: raw.Sender, Recipient: raw.Recipient, Key: key}, nil
		}
		return RevokeResponse{Sender: raw.Sender, Recipient: raw.Recipient, Key: key}, nil

	case TypeErrorResponse:
		if raw.Status == nil {
			return nil, &CodecError{Kind: MissingRequiredAttribute, Detail: "missing status element"}
		}
		if !errorStatusInRange(*raw.Status) {
			return nil, &CodecError{Kind: SchemaValidation, Detail: fmt.Sprintf("status %d out of range 1101-1204", *raw.Status)}
		}
		descs := make([]Description, 0, len(raw.Descriptions))
		for _, d := range raw.Descriptions {
			descs = append(descs, Description{Lang: d.Lang, Text: d.Text})
		}
		return ErrorResponse{Sender: raw.Sender, Recipient: raw.Recipient, Status: *raw.Status, Descriptions: descs}, nil

	default:
		return nil, &CodecError{Kind: UnknownType, Detail: string(msgType)}
	}
}

func classFromRaw(raw rawClass) (ResourceClass, error) {
	as, err := ParseResourceSet(raw.ResourceSetAS)
	if err != nil {
		return ResourceClass{}, err
	}
	ipv4, err := ParseResourceSet(raw.ResourceSetIPv4)
	if err != nil {
		return ResourceClass{}, err
	}
	ipv6, err := ParseResourceSet(raw.ResourceSetIPv6)
	if err != nil {
		return ResourceClass{}, err
	}
	if raw.ClassName == "" || raw.CertURL == "" || raw.ResourceSetNotAfter == "" {
		return ResourceClass{}, &CodecError{Kind: MissingRequiredAttribute, Detail: "class requires class_name, cert_url, and resource_set_notafter"}
	}

	var certs []IssuedCertificate
	for _, rc := range raw.Certificates {
		reqAS, err := ParseResourceSet(rc.ReqResourceSetAS)
		if err != nil {
			return ResourceClass{}, err
		}
		reqIPv4, err := ParseResourceSet(rc.ReqResourceSetIPv4)
		if err != nil {
			return ResourceClass{}, err
		}
		reqIPv6, err := ParseResourceSet(rc.ReqResourceSetIPv6)
		if err != nil {
			return ResourceClass{}, err
		}
		var body Binary
		if err := body.UnmarshalText([]byte(strings.TrimSpace(rc.Body))); err != nil {
			return ResourceClass{}, err
		}
		certs = append(certs, IssuedCertificate{
			CertURIs:           splitURIs(rc.CertURL),
			ReqResourceSetAS:   reqAS,
			ReqResourceSetIPv4: reqIPv4,
			ReqResourceSetIPv6: reqIPv6,
			Cert:               body,
		})
	}

	return ResourceClass{
		ClassName:           raw.ClassName,
		CertURIs:            splitURIs(raw.CertURL),
		ResourceSetAS:       as,
		ResourceSetIPv4:     ipv4,
		ResourceSetIPv6:     ipv6,
		ResourceSetNotAfter: raw.ResourceSetNotAfter,
		SuggestedSIAHead:    raw.SuggestedSIAHead,
		Certificates:        certs,
	}, nil
}

func requestFromRaw(raw rawMessage, rr rawRequest) (Payload, error) {
	if rr.ClassName == "" {
		return nil, &CodecError{Kind: MissingRequiredAttribute, Detail: "request requires class_name"}
	}
	as, err := ParseResourceSet(rr.ResourceSetAS)
	if err != nil {
		return nil, err
	}
	ipv4, err := ParseResourceSet(rr.ResourceSetIPv4)
	if err != nil {
		return nil, err
	}
	ipv6, err := ParseResourceSet(rr.ResourceSetIPv6)
	if err != nil {
		return nil, err
	}
	var body Binary
	if err := body.UnmarshalText([]byte(strings.TrimSpace(rr.Body))); err != nil {
		return nil, err
	}
	return IssueRequest{
		Sender:              raw.Sender,
		Recipient:           raw.Recipient,
		ClassName:           rr.ClassName,
		ResourceSetAS:       as,
		ResourceSetIPv4:     ipv4,
		ResourceSetIPv6:     ipv6,
		ResourceSetNotAfter: rr.ResourceSetNotAfter,
		PKCS10:              body,
	}, nil
}

func splitURIs(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// checkNamespaceStrictness walks the document's start elements and rejects
// any whose namespace is not the provisioning namespace (spec.md §4.3:
// "must reject elements or attributes not in the namespace") or, for the
// xml:lang attribute, the reserved XML namespace.
func checkNamespaceStrictness(data []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(data))
	sawRoot := false
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return &CodecError{Kind: SchemaValidation, Detail: err.Error()}
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if se.Name.Space != Namespace {
			return &CodecError{Kind: SchemaValidation, Detail: fmt.Sprintf("element %q not in provisioning namespace", se.Name.Local)}
		}
		if !sawRoot {
			if se.Name.Local != "message" {
				return &CodecError{Kind: SchemaValidation, Detail: fmt.Sprintf("unexpected root element %q", se.Name.Local)}
			}
			sawRoot = true
		}
		for _, attr := range se.Attr {
			if attr.Name.Space != "" && attr.Name.Space != xmlNamespaceNS && attr.Name.Space != "xmlns" {
				return &CodecError{Kind: SchemaValidation, Detail: fmt.Sprintf("attribute %q not in provisioning or xml namespace", attr.Name.Local)}
			}
		}
	}
	if !sawRoot {
		return &CodecError{Kind: SchemaValidation, Detail: "no message element found"}
	}
	return nil
}
