package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/convoprobe/internal/assistant"
	"github.com/roach88/convoprobe/internal/catalog"
	"github.com/roach88/convoprobe/internal/turn"
)

// ErrRunActive is returned when Run is called while another run is in progress.
var ErrRunActive = errors.New("a run is already active")

// MaxConcurrency caps the number of scenarios in flight.
const MaxConcurrency = 20

// Harness runs scenarios against one assistant.
//
// A Harness owns its run state: at most one run is active at a time, and
// the history of finished runs lives on the instance.
//
// Thread-safety: all methods are safe for concurrent use. Hooks are invoked
// one at a time from worker goroutines.
type Harness struct {
	client      assistant.Client
	exec        *turn.Executor
	turnOptions []turn.Option
	selector    ModeSelector
	logger      *slog.Logger
	now         func() time.Time
	ids         IDGenerator
	recorder    RunRecorder
	history     *History

	// stateMu guards the active-run state below. cancelled is also read
	// lock-free by workers between claims.
	stateMu   sync.Mutex
	running   bool
	cancelled atomic.Bool
	abort     context.CancelFunc

	hookMu     sync.Mutex
	onProgress func(Progress)
	onComplete func(*ScenarioResult)
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the logger. The default discards.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithSelector replaces DefaultSelector.
func WithSelector(s ModeSelector) Option {
	return func(h *Harness) {
		if s != nil {
			h.selector = s
		}
	}
}

// WithClock replaces time.Now for elapsed times, timestamps and turn latency.
func WithClock(now func() time.Time) Option {
	return func(h *Harness) {
		if now != nil {
			h.now = now
		}
	}
}

// WithIDGenerator replaces UUIDv7Generator for run ids.
func WithIDGenerator(g IDGenerator) Option {
	return func(h *Harness) {
		if g != nil {
			h.ids = g
		}
	}
}

// WithRecorder persists every finished run.
func WithRecorder(r RunRecorder) Option {
	return func(h *Harness) {
		h.recorder = r
	}
}

// WithHistoryLimit bounds the in-memory run history.
func WithHistoryLimit(n int) Option {
	return func(h *Harness) {
		h.history = NewHistory(n)
	}
}

// WithTurnOptions passes options through to the turn executor.
func WithTurnOptions(opts ...turn.Option) Option {
	return func(h *Harness) {
		h.turnOptions = append(h.turnOptions, opts...)
	}
}

// New creates a harness for client.
func New(client assistant.Client, opts ...Option) *Harness {
	h := &Harness{
		client:   client,
		selector: DefaultSelector(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      time.Now,
		ids:      UUIDv7Generator{},
		history:  NewHistory(DefaultHistoryLimit),
	}
	for _, opt := range opts {
		opt(h)
	}
	topts := append([]turn.Option{turn.WithClock(h.now)}, h.turnOptions...)
	h.exec = turn.NewExecutor(client, topts...)
	return h
}

// OnProgress registers a hook called after each scenario completes.
// Hooks registered during a run take effect on the next run.
func (h *Harness) OnProgress(fn func(Progress)) {
	h.hookMu.Lock()
	defer h.hookMu.Unlock()
	h.onProgress = fn
}

// OnScenarioComplete registers a hook receiving each finished scenario.
func (h *Harness) OnScenarioComplete(fn func(*ScenarioResult)) {
	h.hookMu.Lock()
	defer h.hookMu.Unlock()
	h.onComplete = fn
}

// RequestCancel asks the active run to stop claiming scenarios. Scenarios
// already claimed finish normally. It has no effect when no run is active.
func (h *Harness) RequestCancel() {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	if h.running {
		h.cancelled.Store(true)
	}
}

// Abort stops the active run hard: no further scenarios are claimed and
// in-flight scenarios stop before their next turn, with the pending turn's
// request cancelled. Aborted scenarios fail. It has no effect when no run
// is active.
func (h *Harness) Abort() {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	if !h.running {
		return
	}
	h.cancelled.Store(true)
	h.abort()
}

// Running reports whether a run is active.
func (h *Harness) Running() bool {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	return h.running
}

// begin marks a run active. A cancel request can only land after begin
// returns, so it is never lost to the reset of the previous run's flag.
func (h *Harness) begin(abort context.CancelFunc) bool {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	if h.running {
		return false
	}
	h.running = true
	h.cancelled.Store(false)
	h.abort = abort
	return true
}

func (h *Harness) end() {
	h.stateMu.Lock()
	defer h.stateMu.Unlock()
	h.running = false
	h.abort = nil
}

// History returns finished runs, most recent first.
func (h *Harness) History() []RunSummary {
	return h.history.Runs()
}

// SelectAndRun resolves filter against idx and runs the selection.
func (h *Harness) SelectAndRun(ctx context.Context, idx *catalog.Index, filter string, concurrency int) (*RunSummary, error) {
	f, err := catalog.ParseFilter(filter)
	if err != nil {
		return nil, err
	}
	scenarios, err := idx.Select(f)
	if err != nil {
		return nil, err
	}
	return h.run(ctx, scenarios, concurrency, f.String())
}

// Run executes scenarios with at most concurrency in flight (clamped to
// [1, MaxConcurrency]) and returns the summary.
//
// Results are index-stable: Results[i] belongs to scenarios[i], regardless
// of which worker ran it or when it finished. The only errors are harness
// misuse; scenario failures are reported in the summary.
func (h *Harness) Run(ctx context.Context, scenarios []catalog.Scenario, concurrency int) (*RunSummary, error) {
	return h.run(ctx, scenarios, concurrency, "")
}

func (h *Harness) run(ctx context.Context, scenarios []catalog.Scenario, concurrency int, selection string) (*RunSummary, error) {
	// Claimed scenarios finish even if ctx is cancelled mid-conversation;
	// per-turn timeouts still apply. Only Abort reaches them.
	scenarioCtx, abort := context.WithCancel(context.WithoutCancel(ctx))
	defer abort()
	if !h.begin(abort) {
		return nil, ErrRunActive
	}
	defer h.end()

	h.hookMu.Lock()
	onProgress, onComplete := h.onProgress, h.onComplete
	h.hookMu.Unlock()

	total := len(scenarios)
	workers := clampWorkers(concurrency, total)
	start := h.now()
	results := make([]*ScenarioResult, total)

	h.logger.Info("run started", "scenarios", total, "workers", workers, "selection", selection)

	stopping := func() bool {
		return h.cancelled.Load() || ctx.Err() != nil
	}

	var (
		cursor atomic.Int64
		mu     sync.Mutex
		live   = Progress{Total: total}
		wg     sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !stopping() {
				i := int(cursor.Add(1) - 1)
				if i >= total {
					return
				}

				res := h.runScenario(scenarioCtx, scenarios[i], start)
				results[i] = res
				h.logger.Debug("scenario finished", "scenario", res.Scenario.ID, "status", res.Status, "elapsed_ms", res.ElapsedMs)

				mu.Lock()
				live.advance(res)
				p := live
				if onComplete != nil {
					onComplete(res)
				}
				if onProgress != nil {
					onProgress(p)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	summary := summarize(results, start, h.now())
	summary.ID = h.ids.Generate()
	summary.Selection = selection

	h.history.Add(summary)
	h.logger.Info("run finished",
		"run", summary.ID,
		"pass", summary.PassCount,
		"warn", summary.WarnCount,
		"fail", summary.FailCount,
		"completed", summary.Completed,
		"total", summary.Total,
		"elapsed_ms", summary.TotalElapsedMs,
	)

	if h.recorder != nil {
		if err := h.recorder.RecordRun(context.WithoutCancel(ctx), summary); err != nil {
			h.logger.Error("failed to record run", "run", summary.ID, "error", err)
		}
	}
	return summary, nil
}

func clampWorkers(concurrency, total int) int {
	n := concurrency
	if n < 1 {
		n = 1
	}
	if n > MaxConcurrency {
		n = MaxConcurrency
	}
	if total > 0 && n > total {
		n = total
	}
	return n
}

func (p *Progress) advance(res *ScenarioResult) {
	p.Completed++
	p.Current = res.Scenario.Name
	p.ScenarioID = res.Scenario.ID
	switch res.Status {
	case StatusPass:
		p.PassCount++
	case StatusWarn:
		p.WarnCount++
	default:
		p.FailCount++
	}
}

// String renders a one-line progress message.
func (p Progress) String() string {
	return fmt.Sprintf("[%d/%d] %s (%d pass, %d warn, %d fail)",
		p.Completed, p.Total, p.Current, p.PassCount, p.WarnCount, p.FailCount)
}
