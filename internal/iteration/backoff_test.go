package iteration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWithBackoffReturnsNilOnFirstSuccess(t *testing.T) {
	calls := 0
	err := withBackoff(context.Background(), "test", func() error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithBackoffStopsRetryingWhenContextIsDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	boom := errors.New("transient")
	err := withBackoff(ctx, "test", func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestWithBackoffReturnsErrorWhenDeadlineCutsRetriesShort(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	calls := 0
	boom := errors.New("still failing")
	err := withBackoff(ctx, "test", func() error {
		calls++
		return boom
	})
	assert.Error(t, err)
	assert.Less(t, calls, maxModelRetries+1)
}
