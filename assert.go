package strata

import "fmt"

// Contract violations (double add, oversized add, degenerate query radius,
// removing an object from a tree it is not in) are programming errors and
// panic. Builds with the strata_release tag trust the contract and compile
// the checks out; see assert_on.go and assert_off.go.

func assertf(cond bool, format string, args ...any) {
	if assertionsEnabled && !cond {
		panic(fmt.Sprintf("strata: "+format, args...))
	}
}

// assertRadius rejects query radii that would make every overlap test
// meaningless.
func assertRadius(op string, r float64) {
	if assertionsEnabled && !(r > 0) {
		panic(fmt.Sprintf("strata: %s: degenerate query radius %v", op, r))
	}
}
