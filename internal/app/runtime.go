package app

import (
	"os"
	"sync"
)

// TestModeEnv makes binaries skip network side effects when set to "1".
const TestModeEnv = "CLUBDESK_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return os.Getenv(TestModeEnv) == "1"
})

// InTestMode reports whether the process runs under the test-mode guard.
func InTestMode() bool {
	return testMode()
}
