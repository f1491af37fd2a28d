package sequencer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/kbukum/capdir/discovery"
	"github.com/kbukum/capdir/errors"
	"github.com/kbukum/capdir/logger"
	"github.com/kbukum/capdir/observability"
	"github.com/kbukum/capdir/resilience"
)

// ErrStopped is returned by Add after Stop and handed to the Done hook of
// tasks abandoned by Stop.
var ErrStopped = errors.Shutdown("global directory task")

// Task outcomes reported to metrics.
const (
	outcomeOK       = "ok"
	outcomeError    = "error"
	outcomeShutdown = "shutdown"
	outcomePanic    = "panic"
)

// Option configures a Sequencer.
type Option func(*Sequencer)

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(s *Sequencer) { s.log = log }
}

// WithClock sets the time source.
func WithClock(clk clock.Clock) Option {
	return func(s *Sequencer) { s.clock = clk }
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Sequencer) { s.metrics = m }
}

// Sequencer executes global directory tasks one at a time in FIFO order.
type Sequencer struct {
	client  discovery.GlobalDirectory
	cfg     Config
	log     *logger.Logger
	clock   clock.Clock
	metrics *observability.Metrics
	limiter *resilience.RateLimiter

	mu      sync.Mutex
	queue   []*Task
	wake    chan struct{}
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a Sequencer calling client. Start must be called before tasks run.
func New(client discovery.GlobalDirectory, cfg Config, opts ...Option) *Sequencer {
	cfg.ApplyDefaults()
	s := &Sequencer{
		client: client,
		cfg:    cfg,
		log:    logger.NewNop(),
		clock:  clock.New(),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithComponent("sequencer")
	s.limiter = resilience.NewRateLimiter(resilience.RateLimiterConfig{
		Name:  "global-directory",
		Rate:  cfg.RateLimit,
		Burst: cfg.RateBurst,
		Clock: s.clock,
		OnLimit: func(name string) {
			s.log.Debug("remote call rate limited", logger.Fields("limiter", name))
		},
	})
	return s
}

// Start launches the worker goroutine. Calling Start more than once, or
// after Stop, has no effect.
func (s *Sequencer) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.run(ctx)
}

// Add enqueues task. It returns ErrStopped once Stop has been called; the
// task's Done hook is not invoked in that case.
func (s *Sequencer) Add(task *Task) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	s.queue = append(s.queue, task)
	s.mu.Unlock()

	s.metrics.RecordTaskEnqueued(context.Background(), task.Mode.String())
	select {
	case s.wake <- struct{}{}:
	default:
	}
	return nil
}

// Len returns the number of tasks waiting to be started.
func (s *Sequencer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Stop cancels the in-flight call, waits for the worker to exit and resolves
// every queued task with ErrStopped. It returns ctx.Err() if ctx ends before
// the worker exits; queued tasks are resolved in either case.
func (s *Sequencer) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	started := s.started
	cancel := s.cancel
	s.mu.Unlock()

	var err error
	if started {
		cancel()
		select {
		case <-s.done:
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	s.mu.Lock()
	pending := s.queue
	s.queue = nil
	s.mu.Unlock()

	for _, t := range pending {
		s.finish(t, ErrStopped, outcomeShutdown)
	}
	if len(pending) > 0 {
		s.log.Info("abandoned queued tasks on stop", logger.Fields(logger.FieldCount, len(pending)))
	}
	return err
}

func (s *Sequencer) run(ctx context.Context) {
	defer close(s.done)
	for {
		t, ok := s.next(ctx)
		if !ok {
			return
		}
		s.process(ctx, t)
	}
}

// next blocks until a task is queued or ctx ends.
func (s *Sequencer) next(ctx context.Context) (*Task, bool) {
	for {
		s.mu.Lock()
		if ctx.Err() != nil {
			s.mu.Unlock()
			return nil, false
		}
		if len(s.queue) > 0 {
			t := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return t, true
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, false
		case <-s.wake:
		}
	}
}

// process runs t until it reaches a terminal outcome.
func (s *Sequencer) process(ctx context.Context, t *Task) {
	log := s.log.WithParticipant(t.ParticipantID).WithFields(logger.Fields(
		logger.FieldTaskMode, t.Mode.String(),
		logger.FieldGbids, t.Gbids,
		logger.FieldAwait, t.Await,
	))

	for attempt := 1; ; attempt++ {
		panicked, err := s.attempt(ctx, t, attempt)

		switch {
		case ctx.Err() != nil:
			s.finish(t, ErrStopped, outcomeShutdown)
			return
		case panicked:
			log.Error("global directory task panicked", logger.ErrorFields("task", err))
			s.finish(t, err, outcomePanic)
			return
		case err == nil:
			log.Debug("global directory task succeeded", logger.Fields(logger.FieldAttempt, attempt))
			s.finish(t, nil, outcomeOK)
			return
		case !t.Await && errors.IsTimeout(err):
			log.Warn("global directory task timed out, retrying", logger.Fields(
				logger.FieldAttempt, attempt,
				logger.FieldError, err.Error(),
			))
			if !s.sleep(ctx, s.cfg.RetryDelay) {
				s.finish(t, ErrStopped, outcomeShutdown)
				return
			}
		default:
			if !t.Await {
				log.Error("global directory task failed", logger.ErrorFields("task", err))
			}
			s.finish(t, err, outcomeError)
			return
		}
	}
}

// attempt performs one remote call for t. A panic in the client is reported
// as panicked with an INTERNAL_ERROR.
func (s *Sequencer) attempt(ctx context.Context, t *Task, n int) (panicked bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			panicked, err = true, errors.Internal(fmt.Errorf("panic in %s task: %v", t.Mode, r))
		}
	}()

	if err := s.limiter.Wait(ctx); err != nil {
		return false, err
	}

	ttl := t.remainingTTL(s.clock.Now(), s.cfg.MinTTL)
	callCtx, cancel := s.clock.WithTimeout(ctx, ttl)
	defer cancel()

	s.metrics.RecordTaskAttempt(ctx, t.Mode.String(), n)
	switch t.Mode {
	case ModeAdd:
		return false, s.client.Add(callCtx, t.Entry, ttl, t.Gbids)
	case ModeRemove:
		return false, s.client.Remove(callCtx, t.ParticipantID, t.Gbids)
	default:
		return false, errors.Internal(fmt.Errorf("unknown task mode %v", t.Mode))
	}
}

// finish hands the outcome to t.Done. A panicking hook is logged and does
// not stop the worker.
func (s *Sequencer) finish(t *Task, err error, outcome string) {
	s.metrics.RecordTaskCompleted(context.Background(), t.Mode.String(), outcome, s.clock.Since(t.CreatedAt))
	if t.Done == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("task completion hook panicked", logger.Fields(
				logger.FieldParticipantID, t.ParticipantID,
				logger.FieldTaskMode, t.Mode.String(),
				"panic", fmt.Sprint(r),
			))
		}
	}()
	t.Done(err)
}

// sleep waits d on the sequencer clock; it reports false if ctx ends first.
func (s *Sequencer) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := s.clock.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
