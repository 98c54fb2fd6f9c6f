// Package coordinator implements a generic poll, cache and notify loop.
//
// A Coordinator calls its FetchFunc on a fixed interval, keeps the last good
// result and tells subscribers about every refresh. Refresh requests made
// after writes go through a debouncer so bursts collapse into one fetch.
package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/andreweacott/radiotherm-coordinator/pkg/debounce"
	"github.com/andreweacott/radiotherm-coordinator/pkg/logger"
)

const (
	DefaultRequestRefreshDelay = 3 * time.Second
)

// FetchFunc retrieves a fresh snapshot. Expected failures should be returned
// as *UpdateFailedError; anything else is logged as unexpected.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// PollObserver is told about every fetch attempt.
type PollObserver interface {
	ObservePoll(name string, duration time.Duration, err error)
}

// Notification is delivered to subscribers after every refresh.
type Notification[T any] struct {
	Data    T
	Success bool
	Err     error
}

type options struct {
	log                 *logger.Logger
	observer            PollObserver
	requestRefreshDelay time.Duration
	immediateRefresh    bool
}

// Option configures a Coordinator.
type Option func(*options)

func WithLogger(log *logger.Logger) Option {
	return func(o *options) { o.log = log }
}

func WithObserver(observer PollObserver) Option {
	return func(o *options) { o.observer = observer }
}

// WithRequestRefreshDelay sets the debounce cooldown for RequestRefresh.
func WithRequestRefreshDelay(delay time.Duration) Option {
	return func(o *options) { o.requestRefreshDelay = delay }
}

// WithImmediateRefresh makes the first RequestRefresh of a burst run at once.
func WithImmediateRefresh(immediate bool) Option {
	return func(o *options) { o.immediateRefresh = immediate }
}

// Coordinator polls a data source and caches the latest good result.
type Coordinator[T any] struct {
	name     string
	interval time.Duration
	fetch    FetchFunc[T]
	log      *logger.Entry
	observer PollObserver

	debouncer *debounce.Debouncer
	publisher *publisher[Notification[T]]
	refresh   chan struct{}

	// fetchMu keeps a single fetch in flight
	fetchMu sync.Mutex

	mu                sync.RWMutex
	data              T
	hasData           bool
	lastUpdateSuccess bool
	lastErr           error
	failures          int
	lastUpdated       time.Time
}

// New creates a Coordinator polling fetch every interval.
func New[T any](name string, interval time.Duration, fetch FetchFunc[T], opts ...Option) *Coordinator[T] {
	o := options{requestRefreshDelay: DefaultRequestRefreshDelay}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = logger.Discard()
	}
	log := o.log.WithComponent("coordinator").With("name", name)

	c := &Coordinator[T]{
		name:      name,
		interval:  interval,
		fetch:     fetch,
		log:       log,
		observer:  o.observer,
		publisher: newPublisher[Notification[T]](log),
		refresh:   make(chan struct{}, 1),
	}
	c.debouncer = debounce.New(o.requestRefreshDelay, o.immediateRefresh, c.signalRefresh)
	return c
}

// Name returns the coordinator name.
func (c *Coordinator[T]) Name() string {
	return c.name
}

// Interval returns the polling interval.
func (c *Coordinator[T]) Interval() time.Duration {
	return c.interval
}

// Run polls on the interval and serves debounced refresh requests until ctx is done.
// Without cached data it refreshes once before the first tick.
func (c *Coordinator[T]) Run(ctx context.Context) error {
	c.log.Debug("started", "interval", c.interval.String())
	defer c.log.Debug("stopped")
	defer c.debouncer.Cancel()

	if _, ok := c.Data(); !ok {
		_ = c.Refresh(ctx)
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = c.Refresh(ctx)
		case <-c.refresh:
			_ = c.Refresh(ctx)
			ticker.Reset(c.interval)
		}
	}
}

// Refresh fetches now. On failure the previous data is kept and the error
// is returned as produced by the FetchFunc. A fetch cut short by ctx is not
// counted as a failure.
func (c *Coordinator[T]) Refresh(ctx context.Context) error {
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	start := time.Now()
	data, err := c.fetch(ctx)
	if err != nil && ctx.Err() != nil {
		c.log.Debug("refresh cancelled", "error", err)
		return err
	}
	if c.observer != nil {
		c.observer.ObservePoll(c.name, time.Since(start), err)
	}

	if err != nil {
		c.recordFailure(err)
		c.publisher.publish(Notification[T]{Data: c.current(), Success: false, Err: err})
		return err
	}

	c.mu.Lock()
	recovered := c.failures > 0
	c.data = data
	c.hasData = true
	c.lastUpdateSuccess = true
	c.lastErr = nil
	c.failures = 0
	c.lastUpdated = time.Now()
	c.mu.Unlock()

	if recovered {
		c.log.Info("fetching data recovered")
	}
	c.log.Debug("refresh completed", "duration", time.Since(start).String())
	c.publisher.publish(Notification[T]{Data: data, Success: true})
	return nil
}

func (c *Coordinator[T]) recordFailure(err error) {
	c.mu.Lock()
	c.lastUpdateSuccess = false
	c.lastErr = err
	c.failures++
	failures := c.failures
	c.mu.Unlock()

	var failed *UpdateFailedError
	switch {
	case !errors.As(err, &failed):
		c.log.Error("unexpected error fetching data", "error", err)
	case failures == 1:
		c.log.Warn("error fetching data", "error", err)
	default:
		c.log.Debug("error fetching data", "error", err, "failures", failures)
	}
}

// RequestRefresh asks for a refresh after the debounce cooldown.
func (c *Coordinator[T]) RequestRefresh() {
	c.debouncer.Call()
}

// RefreshPending reports whether a debounced refresh is waiting.
func (c *Coordinator[T]) RefreshPending() bool {
	return c.debouncer.Pending()
}

// Shutdown drops any pending debounced refresh.
func (c *Coordinator[T]) Shutdown() {
	c.debouncer.Cancel()
}

func (c *Coordinator[T]) signalRefresh() {
	select {
	case c.refresh <- struct{}{}:
	default:
	}
}

// Data returns the cached snapshot and whether one has been fetched yet.
func (c *Coordinator[T]) Data() (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data, c.hasData
}

func (c *Coordinator[T]) current() T {
	data, _ := c.Data()
	return data
}

// LastUpdateSuccess reports whether the most recent refresh succeeded.
func (c *Coordinator[T]) LastUpdateSuccess() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdateSuccess
}

// LastError returns the error of the most recent refresh, if it failed.
func (c *Coordinator[T]) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Failures returns the number of consecutive failed refreshes.
func (c *Coordinator[T]) Failures() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.failures
}

// LastUpdated returns when data was last replaced.
func (c *Coordinator[T]) LastUpdated() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastUpdated
}

// Subscribe returns a channel receiving a Notification after every refresh.
func (c *Coordinator[T]) Subscribe() <-chan Notification[T] {
	return c.publisher.subscribe()
}

// Unsubscribe removes a channel returned by Subscribe.
func (c *Coordinator[T]) Unsubscribe(ch <-chan Notification[T]) {
	c.publisher.unsubscribe(ch)
}

// Subscribers returns the current number of subscribers.
func (c *Coordinator[T]) Subscribers() int {
	return c.publisher.subscribers()
}
