// Package validation implements the location-scoped validation accumulator
// that every other package in this module routes its checks through. It
// never throws: every check records a pass, warn, or fail fact under a
// stable key, so a single parse surfaces every RFC-conformance defect in
// one pass instead of aborting on the first bad byte (spec.md §4.1, §7).
package validation

import "fmt"

// ValidationLocation is an opaque label identifying the object under
// validation, typically a URI or filename.
type ValidationLocation string

// CheckStatus is the outcome of a single validation check.
type CheckStatus int

const (
	Pass CheckStatus = iota
	Warn
	Fail
)

func (s CheckStatus) String() string {
	switch s {
	case Pass:
		return "pass"
	case Warn:
		return "warn"
	case Fail:
		return "fail"
	default:
		return "unknown"
	}
}

// ValidationCheck records one pass/warn/fail fact under a stable key, such
// as "cms.signeddata.version".
type ValidationCheck struct {
	Key    string
	Status CheckStatus
	Params []string
}

// ValidationResult maps each ValidationLocation visited during a parse to
// the ordered list of checks recorded against it.
type ValidationResult struct {
	order  []ValidationLocation
	checks map[ValidationLocation][]ValidationCheck
}

// NewResult returns an empty ValidationResult.
func NewResult() ValidationResult {
	return ValidationResult{checks: make(map[ValidationLocation][]ValidationCheck)}
}

// Locations returns the locations visited, in the order they were first
// set via Accumulator.SetLocation.
func (r ValidationResult) Locations() []ValidationLocation {
	return append([]ValidationLocation(nil), r.order...)
}

// ChecksFor returns the checks recorded at loc, in insertion order.
func (r ValidationResult) ChecksFor(loc ValidationLocation) []ValidationCheck {
	return r.checks[loc]
}

// HasFailureFor reports whether any check at loc has status Fail.
func (r ValidationResult) HasFailureFor(loc ValidationLocation) bool {
	for _, c := range r.checks[loc] {
		if c.Status == Fail {
			return true
		}
	}
	return false
}

// HasFailures reports whether any check at any location has status Fail.
func (r ValidationResult) HasFailures() bool {
	for _, loc := range r.order {
		if r.HasFailureFor(loc) {
			return true
		}
	}
	return false
}

func (r *ValidationResult) add(loc ValidationLocation, c ValidationCheck) {
	if _, ok := r.checks[loc]; !ok {
		r.order = append(r.order, loc)
	}
	r.checks[loc] = append(r.checks[loc], c)
}

// Scope is the subset of metrics.Scope the accumulator depends on. Defined
// here (rather than importing the metrics package directly into every
// caller) so validation has no mandatory third-party dependency; callers
// who want Prometheus counters pass a *metrics.promScope satisfying this
// interface via NewWithScope.
type Scope interface {
	Inc(stat string, value int64) error
}

type noopScope struct{}

func (noopScope) Inc(string, int64) error { return nil }

// Accumulator is a location-scoped validation collector. One Accumulator is
// constructed per parse (spec.md §5); it is not safe for concurrent use by
// multiple parses.
type Accumulator struct {
	result  ValidationResult
	current ValidationLocation
	scope   Scope
}

// New returns an Accumulator with no metrics wiring.
func New() *Accumulator {
	return &Accumulator{result: NewResult(), scope: noopScope{}}
}

// NewWithScope returns an Accumulator that additionally increments a
// counter per recorded check, labeled by key and status.
func NewWithScope(scope Scope) *Accumulator {
	if scope == nil {
		scope = noopScope{}
	}
	return &Accumulator{result: NewResult(), scope: scope}
}

// SetLocation pushes a new current location; subsequent checks attach to it.
func (a *Accumulator) SetLocation(loc ValidationLocation) {
	a.current = loc
}

// CurrentLocation returns the location set by the most recent SetLocation
// call.
func (a *Accumulator) CurrentLocation() ValidationLocation {
	return a.current
}

func (a *Accumulator) record(status CheckStatus, key string, params ...string) {
	a.result.add(a.current, ValidationCheck{Key: key, Status: status, Params: params})
	_ = a.scope.Inc(fmt.Sprintf("%s.%s", key, status), 1)
}

// RejectIfFalse records Pass when cond is true, Fail otherwise, and returns
// cond unchanged so callers can gate follow-up checks without throwing.
func (a *Accumulator) RejectIfFalse(cond bool, key string, params ...string) bool {
	if cond {
		a.record(Pass, key, params...)
	} else {
		a.record(Fail, key, params...)
	}
	return cond
}

// RejectIfNil is RejectIfFalse with a nil/absent value treated as failure.
func (a *Accumulator) RejectIfNil(value interface{}, key string, params ...string) bool {
	return a.RejectIfFalse(value != nil, key, params...)
}

// WarnIfFalse records Warn (never Fail) on failure, Pass on success.
func (a *Accumulator) WarnIfFalse(cond bool, key string, params ...string) bool {
	if cond {
		a.record(Pass, key, params...)
	} else {
		a.record(Warn, key, params...)
	}
	return cond
}

// HasFailures reports whether any check recorded so far, at any location,
// has status Fail.
func (a *Accumulator) HasFailures() bool {
	return a.result.HasFailures()
}

// HasFailureForCurrentLocation reports whether the current location has
// any Fail check recorded against it.
func (a *Accumulator) HasFailureForCurrentLocation() bool {
	return a.result.HasFailureFor(a.current)
}

// FailuresForCurrentLocation returns the Fail checks recorded against the
// current location, in insertion order.
func (a *Accumulator) FailuresForCurrentLocation() []ValidationCheck {
	var out []ValidationCheck
	for _, c := range a.result.checks[a.current] {
		if c.Status == Fail {
			out = append(out, c)
		}
	}
	return out
}

// Result returns everything accumulated so far. The returned value shares
// its check storage with the Accumulator; it is not a copy.
func (a *Accumulator) Result() ValidationResult {
	return a.result
}
