// Package payload implements the bidirectional mapping between the seven
// up-down provisioning payload variants and their canonical XML
// representation under the http://www.apnic.net/specs/rescerts/up-down/
// namespace (spec.md §3, §4.3, §6).
package payload

// Namespace is the XML namespace every element and the schema validation
// pass is anchored to.
const Namespace = "http://www.apnic.net/specs/rescerts/up-down/"

// Version is the only protocol version this codec understands. Any other
// value on the wire fails with errKey "payload.version" (spec.md §4.3).
const Version = 1

// MessageType is the closed enumeration of payload variants (spec.md §3).
type MessageType string

const (
	TypeList           MessageType = "list"
	TypeListResponse   MessageType = "list_response"
	TypeIssue          MessageType = "issue"
	TypeIssueResponse  MessageType = "issue_response"
	TypeRevoke         MessageType = "revoke"
	TypeRevokeResponse MessageType = "revoke_response"
	TypeErrorResponse  MessageType = "error_response"
)

// knownTypes is the closed set; Unmarshal rejects any type not in it with
// errKey "payload.type.unknown" (spec.md §4.3, §8 scenario 5).
var knownTypes = map[MessageType]bool{
	TypeList:           true,
	TypeListResponse:   true,
	TypeIssue:          true,
	TypeIssueResponse:  true,
	TypeRevoke:         true,
	TypeRevokeResponse: true,
	TypeErrorResponse:  true,
}

// Header carries the common fields every payload variant embeds (spec.md
// §3: AbstractProvisioningPayload). Version is always 1 and is not stored
// here since it is a codec-level invariant, not a per-payload value.
type Header struct {
	Sender    string
	Recipient string
}

// Payload is the closed tagged union of the seven payload variants,
// replacing the source's abstract-base-class-with-subclasses idiom per
// spec.md §9 ("Inheritance in source → closed tagged union").
type Payload interface {
	Header() Header
	MessageType() MessageType
	isPayload()
}

// ListRequest has no body (spec.md §3).
type ListRequest struct {
	Sender, Recipient string
}

func (p ListRequest) Header() Header          { return Header{p.Sender, p.Recipient} }
func (p ListRequest) MessageType() MessageType { return TypeList }
func (ListRequest) isPayload()                 {}

// IssuedCertificate is one <certificate/> element of a resource class
// (spec.md §3).
type IssuedCertificate struct {
	// CertURIs is one or more comma-separated URIs (spec.md §3).
	CertURIs []string

	ReqResourceSetAS    ResourceSet
	ReqResourceSetIPv4  ResourceSet
	ReqResourceSetIPv6  ResourceSet

	// Cert is the DER-encoded certificate body.
	Cert Binary
}

// ResourceClass is the <class/> element carried by list_response and
// issue_response payloads (spec.md §3).
type ResourceClass struct {
	ClassName string

	// CertURIs is one or more comma-separated URIs (cert_url).
	CertURIs []string

	ResourceSetAS   ResourceSet
	ResourceSetIPv4 ResourceSet
	ResourceSetIPv6 ResourceSet

	// ResourceSetNotAfter carries the ISO-8601 (actually RFC 3339-ish, per
	// the up-down draft) timestamp string for resource_set_notafter as-is;
	// this codec does not reparse it into a time.Time, matching the spec's
	// silence on any additional validation beyond presence.
	ResourceSetNotAfter string

	// SuggestedSIAHead is optional.
	SuggestedSIAHead string

	// Certificates preserves document order (spec.md §4.3 tie-break).
	Certificates []IssuedCertificate
}

type ListResponse struct {
	Sender, Recipient string
	Class             ResourceClass
}

func (p ListResponse) Header() Header          { return Header{p.Sender, p.Recipient} }
func (p ListResponse) MessageType() MessageType { return TypeListResponse }
func (ListResponse) isPayload()                 {}

type IssueResponse struct {
	Sender, Recipient string
	Class             ResourceClass
}

func (p IssueResponse) Header() Header           { return Header{p.Sender, p.Recipient} }
func (p IssueResponse) MessageType() MessageType { return TypeIssueResponse }
func (IssueResponse) isPayload()                 {}

// IssueRequest is the <request/> element (spec.md §3).
type IssueRequest struct {
	Sender, Recipient string

	ClassName           string
	ResourceSetAS       ResourceSet
	ResourceSetIPv4     ResourceSet
	ResourceSetIPv6     ResourceSet
	ResourceSetNotAfter string

	// PKCS10 is the DER-encoded certificate request body.
	PKCS10 Binary
}

func (p IssueRequest) Header() Header          { return Header{p.Sender, p.Recipient} }
func (p IssueRequest) MessageType() MessageType { return TypeIssue }
func (IssueRequest) isPayload()                 {}

// RevokeKey is the <key/> element shared by revoke requests and responses
// (spec.md §3). The spec leaves open whether the direction belongs on this
// type or on a role parameter (§9 Open Question 1); this module resolves it
// by giving request and response distinct Go types that embed the same key
// body, so a caller's type system -- not a runtime flag -- carries the
// direction.
type RevokeKey struct {
	ClassName string

	// SKI is the URL-safe Base64 SHA-1 of the referenced public key's DER
	// SubjectPublicKeyInfo (spec.md §3; see internal/keyid).
	SKI string
}

type RevokeRequest struct {
	Sender, Recipient string
	Key               RevokeKey
}

func (p RevokeRequest) Header() Header          { return Header{p.Sender, p.Recipient} }
func (p RevokeRequest) MessageType() MessageType { return TypeRevoke }
func (RevokeRequest) isPayload()                 {}

type RevokeResponse struct {
	Sender, Recipient string
	Key               RevokeKey
}

func (p RevokeResponse) Header() Header           { return Header{p.Sender, p.Recipient} }
func (p RevokeResponse) MessageType() MessageType { return TypeRevokeResponse }
func (RevokeResponse) isPayload()                 {}

// Description is one <description/> element of an error_response (spec.md
// §3). Lang is empty for the default-language description.
type Description struct {
	Lang string
	Text string
}

// ErrorResponse carries an RFC error number (1101-1204) and zero or more
// per-language descriptions (spec.md §3).
type ErrorResponse struct {
	Sender, Recipient string

	Status       int
	Descriptions []Description
}

func (p ErrorResponse) Header() Header          { return Header{p.Sender, p.Recipient} }
func (p ErrorResponse) MessageType() MessageType { return TypeErrorResponse }
func (ErrorResponse) isPayload()                 {}
