package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/BaSui01/streamflow/testutil"
)

func TestChunkHandle_ResolvesOnce(t *testing.T) {
	h := newChunkHandle(7)
	assert.Equal(t, uint64(7), h.Seq())
	assert.NoError(t, h.Err(), "Err reads nil until resolution")
	select {
	case <-h.Done():
		t.Fatal("handle resolved before its job finished")
	default:
	}

	first := errors.New("first outcome")
	h.resolve(first)
	h.resolve(errors.New("second outcome"))

	<-h.Done()
	assert.Equal(t, first, h.Err(), "only the first resolution sticks")
}

func TestChunkHandle_WaitHonorsContext(t *testing.T) {
	h := newChunkHandle(1)

	assert.ErrorIs(t, h.Wait(testutil.CancelledContext()), context.Canceled)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, h.Wait(ctx), context.DeadlineExceeded)

	h.resolve(nil)
	assert.NoError(t, h.Wait(context.Background()))
}
