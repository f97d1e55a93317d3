// Package testing provides fakes and helpers shared by the tests of the
// walker and its sources.
package testing

// T is the subset of testing.TB used by the helpers.
type T interface {
	Helper()
	Fatalf(format string, args ...any)
}
