// Package testutil provides Postgres and Redis fixtures for integration tests.
// Tests skip when the backing service is unreachable unless TEST_REQUIRE_INFRA
// (or the service-specific TEST_REQUIRE_DB / TEST_REQUIRE_REDIS) is set.
package testutil

import (
	"os"
	"strings"
)

// TB is the subset of testing.TB the fixtures need.
type TB interface {
	Helper()
	Skip(args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	Logf(format string, args ...any)
	Cleanup(func())
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func truthy(key string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

// unavailable fails the test when the dependency is mandatory and skips it otherwise.
func unavailable(t TB, required bool, what string, err error) {
	t.Helper()
	if required || truthy("TEST_REQUIRE_INFRA") {
		t.Fatalf("%s not available: %v", what, err)
	}
	t.Skip(what+" not available:", err)
}
