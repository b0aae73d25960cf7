package app

import (
	"os"
	"strconv"
)

// TestModeEnv is set by the testing helper package. Both binaries return before dialing redis
// or binding ports when it is on.
const TestModeEnv = "PLATI_TEST_MODE"

// InTestMode reports whether PLATI_TEST_MODE holds a true value ("1", "true", ...).
func InTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	return err == nil && on
}
