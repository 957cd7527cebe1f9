package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Measure/Check need a real Chrome binary and have no tests in this
// repository; here we cover the deterministic, browser-independent parts.

func TestNewDefaultsWindow(t *testing.T) {
	a := New(true, 0)
	assert.Equal(t, 3*time.Second, a.window)
}

func TestNewKeepsExplicitWindow(t *testing.T) {
	a := New(true, 7*time.Second)
	assert.Equal(t, 7*time.Second, a.window)
}

func TestStringifyArgsEmptyInputIsEmptyString(t *testing.T) {
	got := stringifyArgs(nil)
	assert.Equal(t, "", got)
}
