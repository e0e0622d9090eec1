package indicator

import (
	"os"
	"testing"

	"github.com/ausocean/utils/logging"
)

// TestDisabledLED checks that an empty pin name yields a no-op LED rather
// than touching any GPIO hardware, so daemons without an indicator wired
// up don't need to special-case it.
func TestDisabledLED(t *testing.T) {
	l := logging.New(logging.Debug, os.Stderr, true)
	led, err := New("", l)
	if err != nil {
		t.Fatalf("New(\"\"): %v", err)
	}
	led.Set(StateHealthy)
	if err := led.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
