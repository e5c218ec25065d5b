package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/BaSui01/streamflow/testutil/fixtures"
	"github.com/BaSui01/streamflow/testutil/mocks"
	"github.com/BaSui01/streamflow/types"
)

// TestEngine_RandomOpSequences drives one stream through random
// operation sequences and checks the lifecycle invariants at every
// step: snapshots reflect exactly the accepted chunks in order, a
// final chunk is the only road to COMPLETED, and a terminal state is
// entered at most once.
func TestEngine_RandomOpSequences(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := Config{
			WorkerCount:           2,
			BufferSizeBytes:       1024,
			BufferPoolCapacity:    4,
			BackpressureThreshold: 32,
			MaxConcurrentStreams:  4,
			ChunkTimeout:          2 * time.Second,
			StreamTimeout:         30 * time.Second,
			ResultRetention:       time.Minute,
			SupervisorInterval:    50 * time.Millisecond,
		}
		e, err := New(cfg, zap.NewNop())
		require.NoError(rt, err)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		defer e.Close(ctx)

		id, err := e.CreateStream(ctx, fixtures.SimpleStreamContext(), mocks.NewEchoFormatter())
		require.NoError(rt, err)

		var want strings.Builder
		finalSent := false
		cancelled := false

		steps := rapid.IntRange(1, 15).Draw(rt, "steps")
		for i := 0; i < steps && !finalSent && !cancelled; i++ {
			switch rapid.IntRange(0, 9).Draw(rt, fmt.Sprintf("op%d", i)) {
			case 8: // final chunk
				h, perr := e.ProcessChunk(ctx, id, []byte("eos"), true)
				require.NoError(rt, perr)
				require.NoError(rt, h.Wait(ctx))
				want.WriteString("eos")
				finalSent = true
			case 9: // cancel
				require.True(rt, e.CancelStream(id), "cancel of a live stream must win")
				cancelled = true
			case 6, 7: // snapshot
				res, gerr := e.GetResult(ctx, id)
				require.NoError(rt, gerr)
				require.Equal(rt, types.StreamActive, res.State)
				require.Equal(rt, want.String(), res.Content)
				require.False(rt, res.Final)
			default: // regular chunk
				text := rapid.StringMatching(`[a-z]{1,8}`).Draw(rt, fmt.Sprintf("chunk%d", i))
				h, perr := e.ProcessChunk(ctx, id, []byte(text), false)
				require.NoError(rt, perr)
				require.NoError(rt, h.Wait(ctx))
				want.WriteString(text)
			}
		}

		res, err := e.GetResult(ctx, id)
		require.NoError(rt, err)
		require.Equal(rt, want.String(), res.Content)

		switch {
		case cancelled:
			require.Equal(rt, types.StreamCancelled, res.State)
			require.False(rt, res.Success)
			require.False(rt, e.CancelStream(id), "terminal streams cannot be cancelled twice")
		case finalSent:
			require.Equal(rt, types.StreamCompleted, res.State)
			require.True(rt, res.Final)
			_, perr := e.ProcessChunk(ctx, id, []byte("late"), false)
			require.Equal(rt, types.ErrInvalidTransition, types.GetErrorCode(perr))
		default:
			require.Equal(rt, types.StreamActive, res.State)
		}
	})
}

// TestEngine_AtMostOneCancelWins races several cancellers against a
// completing stream and checks the terminal transition happens once.
func TestEngine_AtMostOneCancelWins(t *testing.T) {
	e := newTestEngine(t, testConfig())

	for round := 0; round < 20; round++ {
		id := mustCreate(t, e, mocks.NewEchoFormatter())
		h := mustProcess(t, e, id, []byte("x"), true)

		var wins atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if e.CancelStream(id) {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		waitHandle(t, h)

		res := waitTerminal(t, e, id)
		switch res.State {
		case types.StreamCancelled:
			assert.Equal(t, int32(1), wins.Load(), "exactly one canceller may win")
		case types.StreamCompleted:
			assert.Equal(t, int32(0), wins.Load(), "completion excludes cancellation")
		default:
			t.Fatalf("round %d: unexpected terminal state %s", round, res.State)
		}
	}
}
