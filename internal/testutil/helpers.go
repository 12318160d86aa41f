package testutil

import (
	"context"
	"testing"
	"time"
)

const testTimeout = 30 * time.Second

// TestContext returns a context that expires with the test or after
// testTimeout, whichever comes first. A hung store call then fails that
// one test instead of stalling the whole run.
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}
