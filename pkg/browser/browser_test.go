package browser

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHandleCloseWithNilResources(t *testing.T) {
	h := &Handle{ID: "test-handle", CreatedAt: time.Now()}
	assert.NoError(t, h.Close())
}

func TestNewHandleRespectsCancelledContext(t *testing.T) {
	l := NewPlaywrightLauncher(Config{Headless: true}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h, err := l.NewHandle(ctx)
	assert.Nil(t, h)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestShutdownBeforeStartIsNoop(t *testing.T) {
	l := NewPlaywrightLauncher(Config{}, nil)
	assert.NoError(t, l.Shutdown())
}
