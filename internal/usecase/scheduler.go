package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ForumWatcher/internal/domain"
	"ForumWatcher/internal/ports"
)

// DefaultPollInterval is the pause between polling cycles.
const DefaultPollInterval = 600 * time.Second

const defaultMaxConcurrentSources = 4

// Ingester consumes parsed batches.
type Ingester interface {
	Ingest(ctx context.Context, batch domain.Batch) (BatchReport, error)
}

// PollerDeps wires the collaborators of one polling cycle.
type PollerDeps struct {
	Source        ports.BatchSource
	Ingester      Ingester
	Metrics       ports.Metrics
	Logger        *slog.Logger
	Sources       []domain.Source
	MaxConcurrent int
}

// Poller runs one cycle over every configured source, isolating their failures.
type Poller struct {
	source   ports.BatchSource
	ingester Ingester
	metrics  ports.Metrics
	logger   *slog.Logger

	mu            sync.RWMutex
	sources       []domain.Source
	maxConcurrent int

	cycleMu    sync.Mutex
	running    int
	afterCycle []func()
}

// CycleReport summarizes one polling cycle.
type CycleReport struct {
	ID       string
	Started  time.Time
	Duration time.Duration
	Sources  int
	Failures map[string]error
	Outcomes map[Outcome]int
}

// NewPoller builds a poller from its dependencies.
func NewPoller(deps PollerDeps) *Poller {
	p := &Poller{
		source:   deps.Source,
		ingester: deps.Ingester,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
	if p.metrics == nil {
		p.metrics = noopMetrics{}
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	p.SetSources(deps.Sources, deps.MaxConcurrent)
	return p
}

// SetSources replaces the polled sources from the next cycle on.
func (p *Poller) SetSources(sources []domain.Source, maxConcurrent int) {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentSources
	}
	cloned := append([]domain.Source(nil), sources...)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.sources = cloned
	p.maxConcurrent = maxConcurrent
}

// Sources returns the sources polled by the next cycle.
func (p *Poller) Sources() []domain.Source {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]domain.Source(nil), p.sources...)
}

// AfterCycle runs fn once no cycle is in flight: immediately when idle, otherwise
// when the last running cycle returns.
func (p *Poller) AfterCycle(fn func()) {
	p.cycleMu.Lock()
	if p.running > 0 {
		p.afterCycle = append(p.afterCycle, fn)
		p.cycleMu.Unlock()
		return
	}
	p.cycleMu.Unlock()
	fn()
}

func (p *Poller) enterCycle() {
	p.cycleMu.Lock()
	p.running++
	p.cycleMu.Unlock()
}

func (p *Poller) leaveCycle() {
	p.cycleMu.Lock()
	p.running--
	var pending []func()
	if p.running == 0 {
		pending, p.afterCycle = p.afterCycle, nil
	}
	p.cycleMu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

// RunCycle polls every source once. Failures are logged and reported, never returned.
func (p *Poller) RunCycle(ctx context.Context) CycleReport {
	p.enterCycle()
	defer p.leaveCycle()

	p.mu.RLock()
	sources := append([]domain.Source(nil), p.sources...)
	limit := p.maxConcurrent
	p.mu.RUnlock()

	report := CycleReport{
		ID:       uuid.NewString(),
		Started:  time.Now(),
		Sources:  len(sources),
		Failures: map[string]error{},
		Outcomes: map[Outcome]int{},
	}
	log := p.logger.With("cycle", report.ID)
	log.Info("cycle started", "sources", len(sources))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(limit)

	for _, src := range sources {
		g.Go(func() error {
			batch, err := p.pollSource(ctx, src)
			mu.Lock()
			defer mu.Unlock()
			for outcome, n := range batch.Outcomes {
				report.Outcomes[outcome] += n
			}
			if err != nil {
				report.Failures[src.Name] = err
				p.metrics.SourceFailed(src.Name)
				log.Error("source failed", "source", src.Name, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	report.Duration = time.Since(report.Started)
	p.metrics.CycleCompleted(report.Duration)
	log.Info("cycle finished",
		"duration", report.Duration.Round(time.Millisecond),
		"failed_sources", len(report.Failures),
		"notified", report.Outcomes[OutcomeNotified],
	)
	return report
}

func (p *Poller) pollSource(ctx context.Context, src domain.Source) (report BatchReport, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("source %s panicked: %v", src.Name, r)
		}
	}()

	if p.source == nil || p.ingester == nil {
		return BatchReport{}, fmt.Errorf("source %s: poller is not configured", src.Name)
	}

	batch, err := p.source.Collect(ctx, src)
	if err != nil {
		return BatchReport{}, err
	}
	p.logger.Debug("source collected", "source", src.Name, "items", batch.Len())

	return p.ingester.Ingest(ctx, batch)
}

// Scheduler wires the interval driver with the poller.
type Scheduler struct {
	driver ports.Scheduler
	poller *Poller
}

// NewScheduler returns a helper to start/stop the polling loop.
func NewScheduler(driver ports.Scheduler, poller *Poller) *Scheduler {
	return &Scheduler{driver: driver, poller: poller}
}

// Start registers the polling cycle with the driver. Cancelling ctx stops the loop
// between cycles; a running cycle completes under its per-call timeouts.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.poller == nil {
		return nil
	}

	cycleCtx := context.WithoutCancel(ctx)
	job := func(time.Time) {
		s.poller.RunCycle(cycleCtx)
	}

	return s.driver.Start(ctx, job)
}

// Stop tears down the driver and waits for the running cycle.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
