package app

import (
	"os"
	"strconv"
)

const testModeEnv = "CATALOG_TEST_MODE"

// InTestMode reports whether binaries should exit before touching external
// services. It is enabled by CATALOG_TEST_MODE=1 (or any true value).
func InTestMode() bool {
	on, err := strconv.ParseBool(os.Getenv(testModeEnv))
	return err == nil && on
}
