package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/camuig/llm-arena/internal/logger"
	"github.com/camuig/llm-arena/internal/metrics"
	"github.com/camuig/llm-arena/internal/models"
)

// Runner is one trading agent driven by the engine.
type Runner interface {
	ID() string
	DecideAndTrade(ctx context.Context) error
	State(ctx context.Context) models.AgentState
}

type Notifier interface {
	NotifyStatus(message string)
	NotifyError(context string, err error)
}

type Status struct {
	IsRunning bool `json:"is_running"`
}

type Option func(*Engine)

func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithSleep replaces the wait between loop iterations. The function must
// return early when ctx is done.
func WithSleep(sleep func(ctx context.Context, d time.Duration)) Option {
	return func(e *Engine) { e.sleep = sleep }
}

// Engine runs every agent's decision cycle on a fixed interval while the
// trading window is open.
type Engine struct {
	agents   []Runner
	calendar *Calendar
	interval time.Duration

	notifier Notifier
	metrics  *metrics.Metrics
	logger   *logger.Logger
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration)

	running atomic.Bool
	wake    chan struct{}

	mu   sync.Mutex
	done chan struct{}
}

func New(agents []Runner, calendar *Calendar, interval time.Duration, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		agents:   agents,
		calendar: calendar,
		interval: interval,
		logger:   log,
		now:      time.Now,
		wake:     make(chan struct{}, 1),
	}
	e.sleep = e.wait
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start launches the loop in the background. It reports false when a loop
// is already running.
func (e *Engine) Start(ctx context.Context) bool {
	_, ok := e.start(ctx)
	return ok
}

func (e *Engine) start(ctx context.Context) (<-chan struct{}, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.done != nil {
		select {
		case <-e.done:
		default:
			return nil, false
		}
	}
	done := make(chan struct{})
	e.done = done
	e.running.Store(true)

	go func() {
		defer close(done)
		e.loop(ctx)
	}()
	return done, true
}

// Stop asks the loop to exit at the top of its next iteration and wakes a
// pending sleep. An in-flight cycle is not interrupted.
func (e *Engine) Stop() bool {
	wasRunning := e.running.Swap(false)
	select {
	case e.wake <- struct{}{}:
	default:
	}
	return wasRunning
}

// Done is closed when a loop launched by Start has returned.
func (e *Engine) Done() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return e.done
}

func (e *Engine) Status() Status {
	return Status{IsRunning: e.running.Load()}
}

// Run starts the loop and blocks until Stop or ctx cancellation ends it.
// Outside the trading window the loop sleeps until the next opening without
// running any agent. Run reports false at once when a loop is already
// running, so Start and Run never drive two loops.
func (e *Engine) Run(ctx context.Context) bool {
	done, ok := e.start(ctx)
	if !ok {
		return false
	}
	<-done
	return true
}

func (e *Engine) loop(ctx context.Context) {
	select {
	case <-e.wake:
	default:
	}
	e.metrics.SetEngineRunning(true)
	e.logger.Info("engine started", "agents", len(e.agents), "interval", e.interval.String())
	e.notify(fmt.Sprintf("Trading engine started with %d agents", len(e.agents)))

	defer func() {
		e.running.Store(false)
		e.metrics.SetEngineRunning(false)
		e.logger.Info("engine stopped")
		e.notify("Trading engine stopped")
	}()

	for {
		if !e.running.Load() || ctx.Err() != nil {
			return
		}

		now := e.now()
		if !e.calendar.IsOpen(now) {
			next := e.calendar.NextOpen(now)
			e.logger.Info("outside trading hours, sleeping until next open",
				"now", now.Format(time.RFC3339), "next_open", next.Format(time.RFC3339))
			e.sleep(ctx, next.Sub(now))
			continue
		}

		e.RunCycle(ctx)
		e.sleep(ctx, e.interval)
	}
}

// RunCycle runs every agent's decision cycle concurrently and waits for all
// of them. Errors and panics stay with the agent that raised them.
func (e *Engine) RunCycle(ctx context.Context) {
	e.logger.Info("starting decision cycle", "agents", len(e.agents))
	started := e.now()

	var g errgroup.Group
	for _, a := range e.agents {
		g.Go(func() error {
			e.runAgent(ctx, a)
			return nil
		})
	}
	_ = g.Wait()

	e.logger.Info("decision cycle completed", "elapsed", e.now().Sub(started).String())
}

func (e *Engine) runAgent(ctx context.Context, a Runner) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("panic in agent cycle", "agent", a.ID(), "panic", fmt.Sprint(r))
			e.metrics.ObserveCycle(a.ID(), "panic")
			e.notifyError("agent "+a.ID()+" panic", fmt.Errorf("%v", r))
		}
	}()

	if err := a.DecideAndTrade(ctx); err != nil {
		e.logger.Error("agent cycle failed", "agent", a.ID(), "error", err)
		e.metrics.ObserveCycle(a.ID(), "error")
		e.notifyError("agent "+a.ID(), err)
		return
	}
	e.metrics.ObserveCycle(a.ID(), "ok")
}

// AgentStates collects the reporting view of every agent, in engine order.
func (e *Engine) AgentStates(ctx context.Context) []models.AgentState {
	states := make([]models.AgentState, len(e.agents))
	for i, a := range e.agents {
		states[i] = a.State(ctx)
	}
	return states
}

// HasAgent reports whether an agent with id is registered. Unlike AgentState
// it touches no portfolio.
func (e *Engine) HasAgent(id string) bool {
	for _, a := range e.agents {
		if a.ID() == id {
			return true
		}
	}
	return false
}

// AgentState returns the state of one agent by id.
func (e *Engine) AgentState(ctx context.Context, id string) (models.AgentState, bool) {
	for _, a := range e.agents {
		if a.ID() == id {
			return a.State(ctx), true
		}
	}
	return models.AgentState{}, false
}

func (e *Engine) wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	case <-e.wake:
	}
}

func (e *Engine) notify(msg string) {
	if e.notifier != nil {
		e.notifier.NotifyStatus(msg)
	}
}

func (e *Engine) notifyError(context string, err error) {
	if e.notifier != nil {
		e.notifier.NotifyError(context, err)
	}
}
