package app

import (
	"os"
	"strconv"
)

// TestModeEnv makes the binaries exit before touching Postgres or Redis.
const TestModeEnv = "PLANTDESK_TEST_MODE"

// InTestMode reports whether PLANTDESK_TEST_MODE holds a true value.
func InTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(TestModeEnv))
	return err == nil && on
}
