package payload

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

const childIndent = "   " // three spaces, spec.md §4.3

// Marshal renders p as the canonical up-down provisioning XML document
// (spec.md §4.3, §6): the xml.Header, a <message/> root with its four
// attributes in alphabetical order, one three-space-indented child element
// per line, and a trailing newline.
func Marshal(p Payload) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	hdr := p.Header()
	fmt.Fprintf(&buf, "<message xmlns=%q\n", Namespace)
	fmt.Fprintf(&buf, "         recipient=%s sender=%s type=%s version=\"%d\">\n",
		attrQuote(hdr.Recipient), attrQuote(hdr.Sender), attrQuote(string(p.MessageType())), Version)

	if err := marshalBody(&buf, p); err != nil {
		return nil, err
	}

	buf.WriteString("</message>\n")
	return buf.Bytes(), nil
}

func marshalBody(buf *bytes.Buffer, p Payload) error {
	switch v := p.(type) {
	case ListRequest:
		return nil
	case ListResponse:
		return writeClass(buf, v.Class)
	case IssueResponse:
		return writeClass(buf, v.Class)
	case IssueRequest:
		return writeRequest(buf, v)
	case RevokeRequest:
		return writeKey(buf, v.Key)
	case RevokeResponse:
		return writeKey(buf, v.Key)
	case ErrorResponse:
		return writeErrorBody(buf, v)
	default:
		return fmt.Errorf("payload: unknown payload type %T", p)
	}
}

func writeClass(buf *bytes.Buffer, c ResourceClass) error {
	fmt.Fprintf(buf, "%s<class cert_url=%s class_name=%s", childIndent, attrQuote(joinURIs(c.CertURIs)), attrQuote(c.ClassName))
	writeOptionalAttr(buf, "resource_set_as", c.ResourceSetAS.String())
	writeOptionalAttr(buf, "resource_set_ipv4", c.ResourceSetIPv4.String())
	writeOptionalAttr(buf, "resource_set_ipv6", c.ResourceSetIPv6.String())
	if c.ResourceSetNotAfter != "" {
		fmt.Fprintf(buf, " resource_set_notafter=%s", attrQuote(c.ResourceSetNotAfter))
	}
	if c.SuggestedSIAHead != "" {
		fmt.Fprintf(buf, " suggested_sia_head=%s", attrQuote(c.SuggestedSIAHead))
	}
	if len(c.Certificates) == 0 {
		buf.WriteString("/>\n")
		return nil
	}
	buf.WriteString(">\n")
	for _, cert := range c.Certificates {
		if err := writeCertificate(buf, cert); err != nil {
			return err
		}
	}
	fmt.Fprintf(buf, "%s</class>\n", childIndent)
	return nil
}

func writeCertificate(buf *bytes.Buffer, c IssuedCertificate) error {
	fmt.Fprintf(buf, "%s%s<certificate cert_url=%s", childIndent, childIndent, attrQuote(joinURIs(c.CertURIs)))
	writeOptionalAttr(buf, "req_resource_set_as", c.ReqResourceSetAS.String())
	writeOptionalAttr(buf, "req_resource_set_ipv4", c.ReqResourceSetIPv4.String())
	writeOptionalAttr(buf, "req_resource_set_ipv6", c.ReqResourceSetIPv6.String())
	text, err := c.Cert.MarshalText()
	if err != nil {
		return err
	}
	buf.WriteString(">")
	buf.Write(text)
	buf.WriteString("</certificate>\n")
	return nil
}

func writeRequest(buf *bytes.Buffer, r IssueRequest) error {
	fmt.Fprintf(buf, "%s<request class_name=%s", childIndent, attrQuote(r.ClassName))
	writeOptionalAttr(buf, "resource_set_as", r.ResourceSetAS.String())
	writeOptionalAttr(buf, "resource_set_ipv4", r.ResourceSetIPv4.String())
	writeOptionalAttr(buf, "resource_set_ipv6", r.ResourceSetIPv6.String())
	if r.ResourceSetNotAfter != "" {
		fmt.Fprintf(buf, " resource_set_notafter=%s", attrQuote(r.ResourceSetNotAfter))
	}
	text, err := r.PKCS10.MarshalText()
	if err != nil {
		return err
	}
	buf.WriteString(">")
	buf.Write(text)
	buf.WriteString("</request>\n")
	return nil
}

func writeKey(buf *bytes.Buffer, k RevokeKey) error {
	fmt.Fprintf(buf, "%s<key class_name=%s ski=%s/>\n", childIndent, attrQuote(k.ClassName), attrQuote(k.SKI))
	return nil
}

func writeErrorBody(buf *bytes.Buffer, e ErrorResponse) error {
	fmt.Fprintf(buf, "%s<status>%d</status>\n", childIndent, e.Status)
	for _, d := range e.Descriptions {
		if d.Lang == "" {
			fmt.Fprintf(buf, "%s<description>%s</description>\n", childIndent, escapeText(d.Text))
		} else {
			fmt.Fprintf(buf, "%s<description xml:lang=%s>%s</description>\n", childIndent, attrQuote(d.Lang), escapeText(d.Text))
		}
	}
	return nil
}

func writeOptionalAttr(buf *bytes.Buffer, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(buf, " %s=%s", name, attrQuote(value))
}

func joinURIs(uris []string) string {
	out := ""
	for i, u := range uris {
		if i > 0 {
			out += ","
		}
		out += u
	}
	return out
}

func attrQuote(s string) string {
	var buf bytes.Buffer
	buf.WriteByte('"')
	xml.EscapeText(&buf, []byte(s))
	buf.WriteByte('"')
	return buf.String()
}

func escapeText(s string) string {
	var buf bytes.Buffer
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// errorStatusInRange validates that an error_response status code falls
// within the RFC error numbers 1101-1204 (spec.md §3).
func errorStatusInRange(status int) bool {
	return status >= 1101 && status <= 1204
}
