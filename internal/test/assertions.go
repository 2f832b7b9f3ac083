// Package test provides assertion helpers used across this module's
// _test.go files, the way the teacher's own test files call into a
// package-level "test" helper (csr_test.go, grpc/errors_test.go,
// web/send_error_test.go) rather than raw t.Fatalf.
package test

import (
	"bytes"
	"reflect"
	"testing"
)

// Assert fails the test with msg if cond is false.
func Assert(t *testing.T, cond bool, msg string) {
	t.Helper()
	if !cond {
		t.Fatal(msg)
	}
}

// AssertNotError fails the test if err is non-nil, including err's message.
func AssertNotError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %s", msg, err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Fatalf("%s: expected error, got none", msg)
	}
}

// AssertDeepEquals fails the test if a and b are not reflect.DeepEqual.
func AssertDeepEquals(t *testing.T, a, b interface{}) {
	t.Helper()
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("expected %#v to equal %#v", a, b)
	}
}

// AssertByteEquals fails the test if a and b are not byte-for-byte equal.
func AssertByteEquals(t *testing.T, a, b []byte) {
	t.Helper()
	if !bytes.Equal(a, b) {
		t.Fatalf("expected byte slices to be equal:\n%x\nvs\n%x", a, b)
	}
}

// AssertIntEquals fails the test if a != b.
func AssertIntEquals(t *testing.T, a, b int) {
	t.Helper()
	if a != b {
		t.Fatalf("expected %d to equal %d", a, b)
	}
}

// AssertStringEquals fails the test if a != b.
func AssertStringEquals(t *testing.T, a, b string) {
	t.Helper()
	if a != b {
		t.Fatalf("expected %q to equal %q", a, b)
	}
}

// AssertContains fails the test if haystack does not contain needle.
func AssertContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !bytes.Contains([]byte(haystack), []byte(needle)) {
		t.Fatalf("expected %q to contain %q", haystack, needle)
	}
}
