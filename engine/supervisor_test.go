package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/streamflow/testutil/mocks"
	"github.com/BaSui01/streamflow/types"
)

func TestSupervisor_IdleStreamTimesOut(t *testing.T) {
	cfg := testConfig()
	cfg.StreamTimeout = 80 * time.Millisecond
	cfg.SupervisorInterval = 10 * time.Millisecond
	e := newTestEngine(t, cfg)
	id := mustCreate(t, e, mocks.NewEchoFormatter())

	res := waitState(t, e, id, types.StreamTimedOut)
	assert.False(t, res.Success)
	assert.Equal(t, types.ErrTimeout, res.ErrorCode)
	assert.Contains(t, res.Error, "exceeded")
	assert.False(t, e.IsStreamActive(id))
	assert.Equal(t, uint64(1), e.Statistics().StreamsTimedOut)
}

func TestSupervisor_ActivityDefersIdleTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.StreamTimeout = 250 * time.Millisecond
	cfg.SupervisorInterval = 10 * time.Millisecond
	e := newTestEngine(t, cfg)
	id := mustCreate(t, e, mocks.NewEchoFormatter())

	// Keep touching the stream well past one idle window.
	for i := 0; i < 6; i++ {
		require.NoError(t, waitHandle(t, mustProcess(t, e, id, []byte("k"), false)))
		time.Sleep(50 * time.Millisecond)
	}
	assert.True(t, e.IsStreamActive(id), "active stream must outlive the idle window")

	// Gone quiet, the idle timeout applies again.
	waitState(t, e, id, types.StreamTimedOut)
}

func TestSupervisor_AgeCeilingCapsBusyStream(t *testing.T) {
	cfg := testConfig()
	cfg.StreamTimeout = 100 * time.Millisecond
	cfg.SupervisorInterval = 10 * time.Millisecond
	e := newTestEngine(t, cfg)

	started := time.Now()
	id := mustCreate(t, e, mocks.NewEchoFormatter())

	// A steady trickle keeps idle time near zero, but cannot keep the
	// stream alive past twice the stream timeout.
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := e.ProcessChunk(context.Background(), id, []byte("k"), false); err != nil {
			break
		}
		time.Sleep(25 * time.Millisecond)
	}

	res := waitState(t, e, id, types.StreamTimedOut)
	assert.Equal(t, types.ErrTimeout, res.ErrorCode)
	assert.GreaterOrEqual(t, time.Since(started), 190*time.Millisecond,
		"the hard cap is twice the stream timeout")
}

func TestSupervisor_TimeoutResolvesPendingJobs(t *testing.T) {
	cfg := testConfig()
	cfg.StreamTimeout = 60 * time.Millisecond
	cfg.SupervisorInterval = 10 * time.Millisecond
	e := newTestEngine(t, cfg)

	release := make(chan struct{})
	f := mocks.NewMockFormatter().WithEcho().WithBlockUntil(release)
	id := mustCreate(t, e, f)
	h := mustProcess(t, e, id, []byte("stuck"), false)

	waitState(t, e, id, types.StreamTimedOut)

	close(release)
	err := waitHandle(t, h)
	require.Error(t, err)
	assert.Equal(t, types.ErrTimeout, types.GetErrorCode(err))

	// With its jobs drained the stream stays readable until retention.
	res, err := e.GetResult(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, types.StreamTimedOut, res.State)
}

func TestSupervisor_EvictsAfterRetention(t *testing.T) {
	cfg := testConfig()
	cfg.ResultRetention = 300 * time.Millisecond
	cfg.SupervisorInterval = 10 * time.Millisecond
	e := newTestEngine(t, cfg)

	id := mustCreate(t, e, mocks.NewEchoFormatter())
	require.NoError(t, waitHandle(t, mustProcess(t, e, id, []byte("done"), true)))
	waitState(t, e, id, types.StreamCompleted)

	// Inside the retention window the result stays readable.
	res, err := e.GetResult(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, types.StreamCompleted, res.State)
	assert.Equal(t, 1, e.Statistics().TrackedStreams)

	require.Eventually(t, func() bool {
		return e.Statistics().TrackedStreams == 0
	}, 2*time.Second, 10*time.Millisecond, "terminal stream never evicted")

	_, err = e.GetResult(context.Background(), id)
	assert.Equal(t, types.ErrStreamNotFound, types.GetErrorCode(err))

	// Eviction drops the stream, not its contribution to the counters.
	assert.Equal(t, uint64(1), e.Statistics().StreamsCompleted)
}

func TestSupervisor_EvictsReadResultsBackedBySink(t *testing.T) {
	sink := mocks.NewMemorySink()
	cfg := testConfig()
	cfg.ResultRetention = time.Minute
	cfg.SupervisorInterval = 10 * time.Millisecond
	e := newTestEngine(t, cfg, WithResultSink(sink))

	id := mustCreate(t, e, mocks.NewEchoFormatter())
	require.NoError(t, waitHandle(t, mustProcess(t, e, id, []byte("archived"), true)))

	// Reading the terminal result releases the in-memory copy early,
	// because the sink holds a durable one.
	waitState(t, e, id, types.StreamCompleted)
	require.Eventually(t, func() bool {
		return e.Statistics().TrackedStreams == 0
	}, 2*time.Second, 10*time.Millisecond, "read result never evicted")

	res, err := e.GetResult(context.Background(), id)
	require.NoError(t, err, "evicted result must be served from the sink")
	assert.Equal(t, types.StreamCompleted, res.State)
	assert.Equal(t, "archived", res.Content)
}
