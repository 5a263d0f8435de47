package page

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/keilerkonzept/follower-dashboard/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedFetcher returns one scripted outcome per call.
type scriptedFetcher struct {
	calls    atomic.Int32
	outcomes []outcome
}

type outcome struct {
	cycle telemetry.Cycle
	err   error
}

func (f *scriptedFetcher) FetchCycle(ctx context.Context) (telemetry.Cycle, error) {
	i := int(f.calls.Add(1)) - 1
	if err := ctx.Err(); err != nil {
		return telemetry.Cycle{}, err
	}
	o := f.outcomes[i%len(f.outcomes)]
	return o.cycle, o.err
}

func ok(center0 float64, velX float64) outcome {
	return outcome{cycle: telemetry.Cycle{
		Tracker:  telemetry.Sample{"center": []any{center0, 2.0}},
		Follower: telemetry.Sample{"vel_x": velX},
	}}
}

func failed(reason string) outcome {
	return outcome{err: &telemetry.FetchError{Kind: telemetry.KindTracker, Err: errors.New(reason)}}
}

func runCycle(t *testing.T, p *Page) Result {
	t.Helper()
	seq, started := p.BeginCycle()
	require.True(t, started)
	assert.Equal(t, StatusIdle, p.Status(), "status resets to idle when a cycle starts")
	r := p.Fetch(seq)
	require.True(t, p.CompleteCycle(r))
	return r
}

func assertInvariants(t *testing.T, p *Page) {
	t.Helper()
	s := p.Store()
	assert.Equal(t, len(s.Tracker()), len(s.Follower()))
	assert.Equal(t, 2*len(s.Tracker()), len(s.Raw()))
}

func TestSuccessfulCycleAppends(t *testing.T) {
	p := New(&scriptedFetcher{outcomes: []outcome{ok(1, 0.1)}}, Options{})
	assert.True(t, p.Loading())
	assert.Equal(t, StatusIdle, p.Status())

	runCycle(t, p)

	assert.Equal(t, StatusSuccess, p.Status())
	assert.False(t, p.Loading())
	assert.Equal(t, 1, p.Store().Len())
	raw := p.Store().Raw()
	require.Len(t, raw, 2)
	assert.Equal(t, telemetry.KindTracker, raw[0].Kind)
	assert.Equal(t, telemetry.KindFollower, raw[1].Kind)
	assertInvariants(t, p)
}

func TestFailedCycleAppendsNothing(t *testing.T) {
	p := New(&scriptedFetcher{outcomes: []outcome{ok(1, 0.1), failed("connection refused")}}, Options{})

	runCycle(t, p)
	runCycle(t, p)

	assert.Equal(t, StatusError, p.Status())
	assert.Error(t, p.LastError())
	assert.Equal(t, 1, p.Store().Len(), "history unchanged by the failed cycle")
	assertInvariants(t, p)

	c := p.Counters()
	assert.Equal(t, uint64(2), c.Started)
	assert.Equal(t, uint64(1), c.Succeeded)
	assert.Equal(t, uint64(1), c.Failed)
}

func TestStatusReflectsLatestCycleOnly(t *testing.T) {
	p := New(&scriptedFetcher{outcomes: []outcome{failed("x"), ok(1, 0), failed("y"), ok(2, 0)}}, Options{})
	want := []Status{StatusError, StatusSuccess, StatusError, StatusSuccess}
	for i, w := range want {
		runCycle(t, p)
		assert.Equal(t, w, p.Status(), "cycle %d", i+1)
		assertInvariants(t, p)
	}
	assert.Nil(t, p.LastError())
	assert.Equal(t, 2, p.Store().Len())
}

func TestOverlappingTickIsSkipped(t *testing.T) {
	p := New(&scriptedFetcher{outcomes: []outcome{ok(1, 0)}}, Options{})

	seq, started := p.BeginCycle()
	require.True(t, started)
	assert.True(t, p.InFlight())

	_, again := p.BeginCycle()
	assert.False(t, again, "no second cycle while one is in flight")
	assert.Equal(t, uint64(1), p.Counters().Skipped)

	require.True(t, p.CompleteCycle(p.Fetch(seq)))
	_, started = p.BeginCycle()
	assert.True(t, started)
}

func TestStaleResultIsDiscarded(t *testing.T) {
	p := New(&scriptedFetcher{outcomes: []outcome{ok(1, 0)}}, Options{})
	seq, _ := p.BeginCycle()
	r := p.Fetch(seq)
	r.Seq = seq + 7

	assert.False(t, p.CompleteCycle(r))
	assert.True(t, p.Loading())
	assert.Equal(t, uint64(1), p.Counters().Discarded)
}

func TestCloseDropsInFlightResult(t *testing.T) {
	p := New(&scriptedFetcher{outcomes: []outcome{ok(1, 0)}}, Options{})
	seq, _ := p.BeginCycle()
	r := Result{Seq: seq, Cycle: telemetry.Cycle{Tracker: telemetry.Sample{}, Follower: telemetry.Sample{}}}

	p.Close()

	assert.False(t, p.CompleteCycle(r), "late completion after teardown")
	assert.True(t, p.Loading())
	assert.Equal(t, StatusIdle, p.Status())
	_, started := p.BeginCycle()
	assert.False(t, started, "no cycle starts after teardown")
}

func TestCloseCancelsRequestsInFlight(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	p := New(telemetry.NewClient(srv.URL, srv.Client()), Options{})
	seq, _ := p.BeginCycle()
	done := make(chan Result, 1)
	go func() { done <- p.Fetch(seq) }()

	p.Close()
	select {
	case r := <-done:
		require.Error(t, r.Err)
		assert.ErrorIs(t, r.Err, context.Canceled)
		assert.False(t, p.CompleteCycle(r))
	case <-time.After(5 * time.Second):
		t.Fatal("fetch did not return after Close")
	}
	assert.True(t, p.Loading())
}

func TestToggleRaw(t *testing.T) {
	p := New(&scriptedFetcher{outcomes: []outcome{ok(1, 0)}}, Options{})
	before := p.ShowRaw()
	assert.Equal(t, !before, p.ToggleRaw())
	assert.Equal(t, before, p.ToggleRaw())
	assert.Equal(t, before, p.ShowRaw())

	_, started := p.BeginCycle()
	assert.True(t, started, "toggle does not touch polling")
}

func TestRetention(t *testing.T) {
	p := New(&scriptedFetcher{outcomes: []outcome{ok(1, 0), ok(2, 0), ok(3, 0)}}, Options{Retention: 2})
	for i := 0; i < 3; i++ {
		runCycle(t, p)
		assertInvariants(t, p)
	}
	tr := p.Store().Tracker()
	require.Len(t, tr, 2)
	x, _ := telemetry.Lookup(tr[0], "center.0")
	assert.Equal(t, 2.0, x)
}

func TestTopFailures(t *testing.T) {
	tracker500 := outcome{err: &telemetry.FetchError{Kind: telemetry.KindTracker, Code: 500}}
	follower503 := outcome{err: &telemetry.FetchError{Kind: telemetry.KindFollower, Code: 503}}
	p := New(&scriptedFetcher{outcomes: []outcome{
		tracker500, tracker500, tracker500, follower503, ok(1, 0),
	}}, Options{DiagnosticsTopK: 2, DiagnosticsWindow: 100})
	for i := 0; i < 5; i++ {
		runCycle(t, p)
	}

	top := p.TopFailures()
	require.NotEmpty(t, top)
	assert.Equal(t, "tracker: HTTP 500", top[0].Reason)
	assert.GreaterOrEqual(t, top[0].Count, uint32(1))
	assert.LessOrEqual(t, len(top), 2)
}

func TestLatency(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var calls int
	now := func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * 10 * time.Millisecond)
	}
	p := New(&scriptedFetcher{outcomes: []outcome{ok(1, 0)}}, Options{Now: now})
	runCycle(t, p)

	lat := p.Latency()
	assert.Equal(t, 1, lat.N)
	assert.Equal(t, 10*time.Millisecond, lat.Last)
	assert.Equal(t, base.Add(20*time.Millisecond), lat.LastSuccess)
}

// The worked example: a 200/200 cycle followed by a tracker network error.
func TestExampleTimeline(t *testing.T) {
	tracker := telemetry.Sample{"center": []any{1.0, 2.0}}
	follower := telemetry.Sample{"vel_x": 0.1}
	p := New(&scriptedFetcher{outcomes: []outcome{
		{cycle: telemetry.Cycle{Tracker: tracker, Follower: follower}},
		{err: &telemetry.FetchError{Kind: telemetry.KindTracker, Err: errors.New("dial tcp: connection refused")}},
	}}, Options{})

	runCycle(t, p)
	assert.Equal(t, []telemetry.Sample{tracker}, p.Store().Tracker())
	assert.Equal(t, []telemetry.Sample{follower}, p.Store().Follower())
	assert.Len(t, p.Store().Raw(), 2)
	assert.Equal(t, StatusSuccess, p.Status())

	runCycle(t, p)
	assert.Len(t, p.Store().Tracker(), 1)
	assert.Len(t, p.Store().Follower(), 1)
	assert.Equal(t, StatusError, p.Status())
}

func TestPollRunsCyclesUntilCanceled(t *testing.T) {
	p := New(&scriptedFetcher{outcomes: []outcome{ok(1, 0)}}, Options{})
	ctx, cancel := context.WithCancel(context.Background())

	var applied atomic.Int32
	done := make(chan struct{})
	go func() {
		Poll(ctx, p, 5*time.Millisecond, func(Result) {
			if applied.Add(1) == 3 {
				cancel()
			}
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("Poll did not stop")
	}
	assert.True(t, p.Closed())
	assert.GreaterOrEqual(t, p.Store().Len(), 3)
	assertInvariants(t, p)
}
