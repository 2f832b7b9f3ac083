package validation

import (
	"testing"

	"github.com/apnic-rpki/provisioning-cms/internal/test"
)

func TestAccumulatorRecordsInOrder(t *testing.T) {
	a := New()
	a.SetLocation("loc-1")
	a.RejectIfFalse(true, "check.one")
	a.RejectIfFalse(false, "check.two")
	a.WarnIfFalse(false, "check.three")

	test.Assert(t, a.HasFailures(), "expected a recorded failure")
	test.Assert(t, a.HasFailureForCurrentLocation(), "expected failure at current location")

	checks := a.Result().ChecksFor("loc-1")
	test.AssertIntEquals(t, len(checks), 3)
	test.AssertDeepEquals(t, checks[0].Status, Pass)
	test.AssertDeepEquals(t, checks[1].Status, Fail)
	test.AssertDeepEquals(t, checks[2].Status, Warn)
}

func TestWarnNeverFails(t *testing.T) {
	a := New()
	a.SetLocation("loc-1")
	a.WarnIfFalse(false, "check.warn-only")
	test.Assert(t, !a.HasFailures(), "warn must never register as a failure")
}

func TestMultipleLocationsIndependent(t *testing.T) {
	a := New()
	a.SetLocation("loc-1")
	a.RejectIfFalse(false, "check.one")
	a.SetLocation("loc-2")
	a.RejectIfFalse(true, "check.one")

	test.Assert(t, a.result.HasFailureFor("loc-1"), "loc-1 should have a failure")
	test.Assert(t, !a.result.HasFailureFor("loc-2"), "loc-2 should not have a failure")
	test.AssertDeepEquals(t, a.Result().Locations(), []ValidationLocation{"loc-1", "loc-2"})
}

func TestRejectIfNil(t *testing.T) {
	a := New()
	a.SetLocation("loc-1")
	test.Assert(t, !a.RejectIfNil(nil, "check.present"), "nil should fail the check")
	test.Assert(t, a.RejectIfNil("x", "check.present"), "non-nil should pass the check")
}

type countingScope struct {
	incs map[string]int64
}

func (c *countingScope) Inc(stat string, value int64) error {
	if c.incs == nil {
		c.incs = make(map[string]int64)
	}
	c.incs[stat] += value
	return nil
}

func TestAccumulatorIncrementsScope(t *testing.T) {
	scope := &countingScope{}
	a := NewWithScope(scope)
	a.SetLocation("loc-1")
	a.RejectIfFalse(true, "check.one")
	a.RejectIfFalse(false, "check.one")

	test.AssertIntEquals(t, int(scope.incs["check.one.pass"]), 1)
	test.AssertIntEquals(t, int(scope.incs["check.one.fail"]), 1)
}
