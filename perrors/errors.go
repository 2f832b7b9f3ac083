// Package perrors defines the internal error channel for this module,
// disjoint from the validation.Accumulator's accumulated check results
// (see validation.ValidationResult). A perrors.ProvisioningError is raised
// only for conditions the accumulator cannot or should not swallow: DER the
// facade can't parse at all, a parser result with outstanding failures, or a
// builder precondition that was never satisfiable in the first place.
package perrors

import (
	"fmt"

	"github.com/apnic-rpki/provisioning-cms/validation"
)

// ErrorType provides a coarse category for a ProvisioningError.
type ErrorType int

const (
	// InternalServer covers conditions outside the protocol's error model:
	// I/O failures reading an input buffer, an unsupported crypto provider,
	// or any other defect the validation profile has no key for.
	InternalServer ErrorType = iota

	// MalformedDer is raised by the DER/ASN.1 facade when the input bytes
	// cannot be parsed as a ContentInfo at all (spec.md §4.2, §4.4 step 1).
	MalformedDer

	// ParserFailed is raised by cms.Parse when the accumulated
	// validation.ValidationResult for the parse location has a failure.
	// The originating ValidationResult is attached via Result.
	ParserFailed

	// SigningFailed is raised by cms.Build when the underlying signing
	// primitive returns an error.
	SigningFailed

	// MissingEeCert is raised by cms.Build when no EE certificate was
	// supplied to sign with.
	MissingEeCert

	// KeyAlgorithmMismatch is raised by cms.Build when the EE certificate's
	// public key algorithm does not match the signer's.
	KeyAlgorithmMismatch
)

func (t ErrorType) String() string {
	switch t {
	case InternalServer:
		return "InternalServer"
	case MalformedDer:
		return "MalformedDer"
	case ParserFailed:
		return "ParserFailed"
	case SigningFailed:
		return "SigningFailed"
	case MissingEeCert:
		return "MissingEeCert"
	case KeyAlgorithmMismatch:
		return "KeyAlgorithmMismatch"
	default:
		return "Unknown"
	}
}

// ProvisioningError is the error type returned by the asn1util and cms
// packages. The payload codec returns its own *payload.CodecError, and
// config.Load returns plain wrapped errors.
type ProvisioningError struct {
	Type   ErrorType
	Detail string

	// Result holds the accumulated validation failures when Type is
	// ParserFailed. Nil for every other ErrorType.
	Result *validation.ValidationResult
}

func (pe *ProvisioningError) Error() string {
	return pe.Detail
}

// New is a convenience constructor for a ProvisioningError without an
// attached ValidationResult.
func New(errType ErrorType, msg string, args ...interface{}) error {
	return &ProvisioningError{
		Type:   errType,
		Detail: fmt.Sprintf(msg, args...),
	}
}

// Is reports whether err is a *ProvisioningError of the given type.
func Is(err error, errType ErrorType) bool {
	pe, ok := err.(*ProvisioningError)
	if !ok {
		return false
	}
	return pe.Type == errType
}

// NewParserFailed wraps an accumulated ValidationResult as the error
// surfaced from cms.Parse (spec.md §4.4: "fails with
// ProvisioningCmsObjectParserError carrying the accumulated failure list").
func NewParserFailed(loc validation.ValidationLocation, result validation.ValidationResult) error {
	return &ProvisioningError{
		Type:   ParserFailed,
		Detail: fmt.Sprintf("provisioning CMS object at %q has validation failures", loc),
		Result: &result,
	}
}

func MalformedDerError(msg string, args ...interface{}) error {
	return New(MalformedDer, msg, args...)
}

func InternalServerError(msg string, args ...interface{}) error {
	return New(InternalServer, msg, args...)
}

func SigningFailedError(msg string, args ...interface{}) error {
	return New(SigningFailed, msg, args...)
}

func MissingEeCertError(msg string, args ...interface{}) error {
	return New(MissingEeCert, msg, args...)
}

func KeyAlgorithmMismatchError(msg string, args ...interface{}) error {
	return New(KeyAlgorithmMismatch, msg, args...)
}
