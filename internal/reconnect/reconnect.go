// Package reconnect implements the capped-exponential-backoff retry policy
// used to reopen a synthesis channel after a transient failure (§4.5),
// built on top of go-pkgz/repeater's pluggable strategy.
package reconnect

import (
	"context"
	"sync"
	"time"

	"github.com/go-pkgz/repeater"
	"github.com/go-pkgz/repeater/strategy"
)

// EventKind classifies a single Event emitted during Execute.
type EventKind int

const (
	EventAttempt EventKind = iota
	EventSuccess
	EventFailure
	EventAbort
)

// Event describes one attempt of a retried operation.
type Event struct {
	Kind    EventKind
	Attempt int
	Delay   time.Duration
	Elapsed time.Duration
	Err     error
}

// Settings configures a Policy's backoff shape and retry budget.
//
// MaxRetries is the total number of attempts Execute makes, counting the
// first try: after MaxRetries attempts have all failed, Execute stops and
// returns the last error, matching the attempt counter in spec §4.5/§8.
type Settings struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	OnEvent       func(Event)
}

// DefaultSettings mirrors the teacher's own retry posture for outbound
// network calls: a handful of attempts with a short capped backoff.
func DefaultSettings() Settings {
	return Settings{
		MaxRetries:    3,
		InitialDelay:  time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.MaxRetries <= 0 {
		s.MaxRetries = d.MaxRetries
	}
	if s.InitialDelay <= 0 {
		s.InitialDelay = d.InitialDelay
	}
	if s.MaxDelay <= 0 {
		s.MaxDelay = d.MaxDelay
	}
	if s.BackoffFactor <= 0 {
		s.BackoffFactor = d.BackoffFactor
	}
	return s
}

// Policy retries an operation with capped exponential backoff, treating a
// caller-designated set of errors as non-retryable.
type Policy struct {
	settings Settings
}

// New builds a Policy, filling any zero-valued Settings fields with
// DefaultSettings.
func New(settings Settings) *Policy {
	return &Policy{settings: settings.withDefaults()}
}

// Result summarizes the outcome of an Execute call.
type Result struct {
	Attempts int
	Elapsed  time.Duration
	Err      error
}

// Execute runs op, retrying on failure per the policy's backoff settings,
// unless the returned error matches one of nonRetryable (checked via
// errors.Is by the underlying repeater), in which case it stops immediately.
func (p *Policy) Execute(ctx context.Context, op func(context.Context) error, nonRetryable ...error) Result {
	start := time.Now()
	attempts := 0

	// MaxRetries counts the first attempt, so the strategy only needs to
	// arm MaxRetries-1 further ticks to reach exactly MaxRetries total
	// attempts.
	backoff := &cappedBackoff{
		max:    p.settings.MaxDelay,
		delay:  p.settings.InitialDelay,
		factor: p.settings.BackoffFactor,
		repeat: p.settings.MaxRetries - 1,
	}

	wrapped := func() error {
		attempts++
		p.emit(Event{Kind: EventAttempt, Attempt: attempts, Elapsed: time.Since(start)})
		err := op(ctx)
		if err != nil {
			p.emit(Event{Kind: EventFailure, Attempt: attempts, Elapsed: time.Since(start), Err: err})
			return err
		}
		p.emit(Event{Kind: EventSuccess, Attempt: attempts, Elapsed: time.Since(start)})
		return nil
	}

	err := repeater.New(backoff).Do(ctx, wrapped, nonRetryable...)
	if err != nil {
		p.emit(Event{Kind: EventAbort, Attempt: attempts, Elapsed: time.Since(start), Err: err})
	}

	return Result{Attempts: attempts, Elapsed: time.Since(start), Err: err}
}

func (p *Policy) emit(e Event) {
	if p.settings.OnEvent != nil {
		p.settings.OnEvent(e)
	}
}

// cappedBackoff implements strategy.Interface with a capped exponential
// delay: delay = min(delay*factor, max), re-armed from InitialDelay on
// every new Start (one Start call per Policy.Execute invocation).
type cappedBackoff struct {
	mu     sync.Mutex
	repeat int
	delay  time.Duration
	max    time.Duration
	factor float64
}

// Start returns a channel the repeater reads from before each retry; it
// closes after repeat values have been sent, bounding the total attempts
// at repeat+1 (the initial try plus repeat further ticks). Policy.Execute
// arms repeat as MaxRetries-1 so the total comes out to MaxRetries.
func (b *cappedBackoff) Start(ctx context.Context) chan struct{} {
	ch := make(chan struct{})

	b.mu.Lock()
	initial := b.delay
	b.mu.Unlock()
	current := initial

	go func() {
		defer close(ch)
		for i := 0; i < b.repeat; i++ {
			select {
			case <-ctx.Done():
				return
			case <-time.After(current):
			}

			select {
			case ch <- struct{}{}:
			case <-ctx.Done():
				return
			}

			current = b.next(current)
		}
	}()

	return ch
}

func (b *cappedBackoff) next(current time.Duration) time.Duration {
	next := time.Duration(float64(current) * b.factor)
	if next > b.max {
		next = b.max
	}
	return next
}

var _ strategy.Interface = (*cappedBackoff)(nil)
