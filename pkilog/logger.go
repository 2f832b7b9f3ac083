// Package pkilog is this module's audit-grade logger, a rework of the
// teacher's blog.AuditLogger (see the AUDIT[...] call sites still visible in
// ca/certificate-authority.go) on top of github.com/go-logr/logr, with
// github.com/go-logr/stdr providing the default backend so a caller who
// hasn't wired their own logr.Logger still gets output on stderr.
package pkilog

import (
	"log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

// Logger wraps a logr.Logger with the two severities this module's parser
// and builder actually emit: Notice for routine outcomes operators may want
// in an audit trail, and AuditErr for internal (non-validation) errors.
type Logger struct {
	l logr.Logger
}

// New wraps an existing logr.Logger.
func New(l logr.Logger) Logger {
	return Logger{l: l}
}

// NewStdLogger returns a Logger backed by the standard library's log
// package via go-logr/stdr, the way a caller who hasn't set up structured
// logging still gets something useful.
func NewStdLogger() Logger {
	std := log.New(os.Stderr, "", log.LstdFlags)
	return Logger{l: stdr.New(std)}
}

// Notice logs a routine, audit-trail-worthy event: a completed parse or
// build, with structured key/value context.
func (l Logger) Notice(msg string, keysAndValues ...interface{}) {
	l.l.Info(msg, keysAndValues...)
}

// AuditErr logs an internal error that is not itself a validation failure
// (spec.md §7): malformed DER the facade gave up on, a signing primitive
// failure, or any other condition the caller needs operational visibility
// into beyond the returned error value.
func (l Logger) AuditErr(err error, keysAndValues ...interface{}) {
	l.l.Error(err, "provisioning-cms internal error", keysAndValues...)
}

// V returns a Logger at the given verbosity level, for Warning-equivalent
// diagnostics that shouldn't show up at the default log level.
func (l Logger) V(level int) Logger {
	return Logger{l: l.l.V(level)}
}
