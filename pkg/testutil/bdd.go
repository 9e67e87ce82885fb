package testutil

import "testing"

// Given, When, and Then wrap t.Run so lifecycle tests read as scenarios.
// Nested closures share state and run in declaration order, which suits the
// log-flush-query flows these tests exercise.
func Given(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Given "+desc, fn)
}

func When(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("When "+desc, fn)
}

func Then(t *testing.T, desc string, fn func(t *testing.T)) {
	t.Helper()
	t.Run("Then "+desc, fn)
}
