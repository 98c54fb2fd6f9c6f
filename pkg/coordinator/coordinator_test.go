package coordinator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	Temp float64
}

// scriptedFetch returns results in order, repeating the last one.
type scriptedFetch struct {
	mu      sync.Mutex
	results []fetchResult
	calls   []time.Time
}

type fetchResult struct {
	data snapshot
	err  error
}

func (s *scriptedFetch) fetch(context.Context) (snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, time.Now())
	r := s.results[0]
	if len(s.results) > 1 {
		s.results = s.results[1:]
	}
	return r.data, r.err
}

func (s *scriptedFetch) callTimes() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.calls...)
}

type recordingObserver struct {
	mu   sync.Mutex
	errs []error
}

func (o *recordingObserver) ObservePoll(_ string, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, err)
}

func TestCoordinator_RefreshSuccess(t *testing.T) {
	f := &scriptedFetch{results: []fetchResult{{data: snapshot{Temp: 70}}}}
	c := New("radiotherm Kitchen", time.Minute, f.fetch)

	_, ok := c.Data()
	assert.False(t, ok)
	assert.False(t, c.LastUpdateSuccess())

	require.NoError(t, c.Refresh(context.Background()))

	data, ok := c.Data()
	require.True(t, ok)
	assert.Equal(t, snapshot{Temp: 70}, data)
	assert.True(t, c.LastUpdateSuccess())
	assert.NoError(t, c.LastError())
	assert.Zero(t, c.Failures())
	assert.False(t, c.LastUpdated().IsZero())
	assert.Equal(t, "radiotherm Kitchen", c.Name())
	assert.Equal(t, time.Minute, c.Interval())
}

func TestCoordinator_CacheTracksLatestSnapshot(t *testing.T) {
	f := &scriptedFetch{results: []fetchResult{
		{data: snapshot{Temp: 70}},
		{data: snapshot{Temp: 71}},
		{data: snapshot{Temp: 72}},
	}}
	c := New("test", time.Minute, f.fetch)

	for _, want := range []float64{70, 71, 72} {
		require.NoError(t, c.Refresh(context.Background()))
		data, _ := c.Data()
		assert.Equal(t, want, data.Temp)
	}
}

func TestCoordinator_IdenticalFetchesAreIdempotent(t *testing.T) {
	f := &scriptedFetch{results: []fetchResult{{data: snapshot{Temp: 70}}}}
	c := New("test", time.Minute, f.fetch)

	for range 3 {
		require.NoError(t, c.Refresh(context.Background()))
		data, _ := c.Data()
		assert.Equal(t, snapshot{Temp: 70}, data)
	}
	assert.True(t, c.LastUpdateSuccess())
}

func TestCoordinator_UpdateFailedKeepsPreviousData(t *testing.T) {
	failure := UpdateFailed(errors.New("bad value"), "Kitchen (10.0.0.5) was busy (invalid value returned): %s", "bad value")
	f := &scriptedFetch{results: []fetchResult{
		{data: snapshot{Temp: 70}},
		{err: failure},
		{err: failure},
		{data: snapshot{Temp: 71}},
	}}
	c := New("test", time.Minute, f.fetch)
	ctx := context.Background()

	require.NoError(t, c.Refresh(ctx))

	err := c.Refresh(ctx)
	require.Error(t, err)
	var failed *UpdateFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "Kitchen (10.0.0.5) was busy (invalid value returned): bad value", err.Error())

	data, ok := c.Data()
	require.True(t, ok)
	assert.Equal(t, 70.0, data.Temp, "previous data is retained")
	assert.False(t, c.LastUpdateSuccess())
	assert.Equal(t, failure, c.LastError())

	require.Error(t, c.Refresh(ctx))
	assert.Equal(t, 2, c.Failures())

	require.NoError(t, c.Refresh(ctx))
	assert.Zero(t, c.Failures(), "success resets the failure count")
	assert.True(t, c.LastUpdateSuccess())
}

func TestCoordinator_UnclassifiedErrorPropagates(t *testing.T) {
	unexpected := errors.New("boom")
	f := &scriptedFetch{results: []fetchResult{{err: unexpected}}}
	c := New("test", time.Minute, f.fetch)

	err := c.Refresh(context.Background())
	assert.Same(t, unexpected, err)
	assert.False(t, c.LastUpdateSuccess())
}

func TestCoordinator_SingleFetchInFlight(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	fetch := func(context.Context) (snapshot, error) {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return snapshot{}, nil
	}
	c := New("test", time.Minute, fetch)

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.Refresh(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load())
}

func TestCoordinator_NotifiesSubscribers(t *testing.T) {
	f := &scriptedFetch{results: []fetchResult{
		{data: snapshot{Temp: 70}},
		{err: UpdateFailed(nil, "failed")},
	}}
	c := New("test", time.Minute, f.fetch)

	ch := c.Subscribe()
	assert.Equal(t, 1, c.Subscribers())

	require.NoError(t, c.Refresh(context.Background()))
	n := <-ch
	assert.True(t, n.Success)
	assert.Equal(t, 70.0, n.Data.Temp)

	require.Error(t, c.Refresh(context.Background()))
	n = <-ch
	assert.False(t, n.Success)
	assert.EqualError(t, n.Err, "failed")
	assert.Equal(t, 70.0, n.Data.Temp)

	c.Unsubscribe(ch)
	assert.Zero(t, c.Subscribers())
}

func TestCoordinator_SlowSubscriberSeesLatest(t *testing.T) {
	f := &scriptedFetch{results: []fetchResult{
		{data: snapshot{Temp: 70}},
		{data: snapshot{Temp: 71}},
		{data: snapshot{Temp: 72}},
	}}
	c := New("test", time.Minute, f.fetch)
	ch := c.Subscribe()

	for range 3 {
		require.NoError(t, c.Refresh(context.Background()))
	}

	n := <-ch
	assert.Equal(t, 72.0, n.Data.Temp)
	assert.Empty(t, ch)
}

func TestCoordinator_ObserverSeesEveryPoll(t *testing.T) {
	observer := &recordingObserver{}
	f := &scriptedFetch{results: []fetchResult{{data: snapshot{}}, {err: errors.New("boom")}}}
	c := New("test", time.Minute, f.fetch, WithObserver(observer))

	_ = c.Refresh(context.Background())
	_ = c.Refresh(context.Background())

	require.Len(t, observer.errs, 2)
	assert.NoError(t, observer.errs[0])
	assert.EqualError(t, observer.errs[1], "boom")
}

func TestCoordinator_RequestRefreshIsDebounced(t *testing.T) {
	const delay = 50 * time.Millisecond
	f := &scriptedFetch{results: []fetchResult{{data: snapshot{Temp: 70}}}}
	c := New("test", time.Hour, f.fetch, WithRequestRefreshDelay(delay))
	require.NoError(t, c.Refresh(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- c.Run(ctx) }()

	var last time.Time
	for range 5 {
		last = time.Now()
		c.RequestRefresh()
		time.Sleep(5 * time.Millisecond)
	}
	assert.True(t, c.RefreshPending())
	assert.Len(t, f.callTimes(), 1, "refresh is not immediate")

	require.Eventually(t, func() bool { return len(f.callTimes()) == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(2 * delay)

	calls := f.callTimes()
	require.Len(t, calls, 2)
	assert.GreaterOrEqual(t, calls[1].Sub(last), delay)

	cancel()
	assert.NoError(t, <-done)
}

func TestCoordinator_RunPollsOnInterval(t *testing.T) {
	f := &scriptedFetch{results: []fetchResult{{data: snapshot{Temp: 70}}}}
	c := New("test", 20*time.Millisecond, f.fetch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool { return len(f.callTimes()) >= 2 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestCoordinator_ShutdownDropsPendingRefresh(t *testing.T) {
	const delay = 30 * time.Millisecond
	f := &scriptedFetch{results: []fetchResult{{data: snapshot{}}}}
	c := New("test", time.Hour, f.fetch, WithRequestRefreshDelay(delay))
	require.NoError(t, c.Refresh(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx) }()

	c.RequestRefresh()
	c.Shutdown()
	assert.False(t, c.RefreshPending())

	time.Sleep(3 * delay)
	assert.Len(t, f.callTimes(), 1)
}

func TestCoordinator_RunRefreshesBeforeFirstTick(t *testing.T) {
	f := &scriptedFetch{results: []fetchResult{{data: snapshot{Temp: 70}}}}
	c := New("test", time.Hour, f.fetch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- c.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, ok := c.Data()
		return ok
	}, time.Second, 5*time.Millisecond)
	data, _ := c.Data()
	assert.Equal(t, 70.0, data.Temp)
	assert.Len(t, f.callTimes(), 1)

	cancel()
	assert.NoError(t, <-done)
}

func TestCoordinator_RunSkipsInitialRefreshWithData(t *testing.T) {
	f := &scriptedFetch{results: []fetchResult{{data: snapshot{Temp: 70}}}}
	c := New("test", time.Hour, f.fetch)
	require.NoError(t, c.Refresh(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- c.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	assert.Len(t, f.callTimes(), 1)

	cancel()
	assert.NoError(t, <-done)
}

func TestCoordinator_CancelledFetchIsNotAFailure(t *testing.T) {
	observer := &recordingObserver{}
	started := make(chan struct{})
	fetch := func(ctx context.Context) (snapshot, error) {
		close(started)
		<-ctx.Done()
		return snapshot{}, ctx.Err()
	}
	c := New("test", time.Hour, fetch, WithObserver(observer))
	notifications := c.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- c.Refresh(ctx) }()

	<-started
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	assert.Equal(t, 0, c.Failures())
	assert.NoError(t, c.LastError())
	assert.Empty(t, observer.errs)
	select {
	case n := <-notifications:
		t.Fatalf("unexpected notification: %+v", n)
	case <-time.After(20 * time.Millisecond):
	}
}
