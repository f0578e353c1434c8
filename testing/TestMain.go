// Package testing switches binaries into test mode. Test files import it for
// its side effect so nothing under test opens network connections at startup.
package testing

import "os"

func init() {
	if os.Getenv("CLUBDESK_TEST_MODE") == "" {
		_ = os.Setenv("CLUBDESK_TEST_MODE", "1")
	}
}
