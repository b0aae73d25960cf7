// Package testing is blank-imported by package tests. It switches the binaries into test mode
// and fills the settings LoadConfig requires so config-dependent code can run without a
// deployment environment.
package testing

import (
	"os"
	stdtesting "testing"
)

var testEnv = map[string]string{
	"PLATI_TEST_MODE": "1",
	"API_BASE_URL":    "http://127.0.0.1:0",
	"GOTENBERG_URL":   "http://127.0.0.1:0",
	"SESSION_SECRET":  "test-session-secret",
	"CSRF_SECRET":     "test-csrf-secret",
}

func init() {
	for key, value := range testEnv {
		if _, set := os.LookupEnv(key); !set {
			_ = os.Setenv(key, value)
		}
	}
}

// TestMain runs m; packages that define no TestMain of their own may delegate to it.
func TestMain(m *stdtesting.M) {
	os.Exit(m.Run())
}
