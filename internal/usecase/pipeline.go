package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ForumWatcher/internal/domain"
	"ForumWatcher/internal/ports"
)

// Outcome is the terminal state of one candidate item.
type Outcome string

const (
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeDiscarded      Outcome = "discarded"
	OutcomeStoredStale    Outcome = "stored_stale"
	OutcomeNotified       Outcome = "notified"
	OutcomeSuppressed     Outcome = "suppressed"
	OutcomeClassifyFailed Outcome = "classify_failed"
	OutcomeNotifyFailed   Outcome = "notify_failed"
)

const (
	kindThread  = "thread"
	kindComment = "comment"
)

var errNoNotifier = errors.New("notifier is not configured")

// PipelineSettings are the reloadable knobs of the ingestion pipeline.
type PipelineSettings struct {
	FreshnessWindow time.Duration
	NotifyTimeout   time.Duration
	Formatter       AlertFormatter
}

// PipelineDeps wires all driven adapters into the ingestion pipeline.
type PipelineDeps struct {
	Store      ports.RecordStore
	Classifier ports.ContentClassifier
	Notifier   ports.Notifier
	Metrics    ports.Metrics
	Logger     *slog.Logger
	Clock      func() time.Time
	Settings   PipelineSettings
}

// Pipeline decides, per candidate item, whether it is stored, classified and announced.
type Pipeline struct {
	store      ports.RecordStore
	classifier ports.ContentClassifier
	metrics    ports.Metrics
	logger     *slog.Logger
	now        func() time.Time

	mu       sync.RWMutex
	notifier ports.Notifier
	settings PipelineSettings
}

// BatchReport counts item outcomes for one batch.
type BatchReport struct {
	Source   string
	Outcomes map[Outcome]int
}

func (r BatchReport) add(o Outcome) {
	r.Outcomes[o]++
}

// NewPipeline constructs the ingestion component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	p := &Pipeline{
		store:      deps.Store,
		classifier: deps.Classifier,
		metrics:    deps.Metrics,
		logger:     deps.Logger,
		now:        deps.Clock,
		notifier:   deps.Notifier,
		settings:   deps.Settings,
	}
	if p.metrics == nil {
		p.metrics = noopMetrics{}
	}
	if p.logger == nil {
		p.logger = slog.New(slog.DiscardHandler)
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.settings.FreshnessWindow <= 0 {
		p.settings.FreshnessWindow = DefaultFreshnessWindow
	}
	return p
}

// Apply swaps the notifier and settings. Items already in flight finish with the old values.
func (p *Pipeline) Apply(notifier ports.Notifier, settings PipelineSettings) {
	if settings.FreshnessWindow <= 0 {
		settings.FreshnessWindow = DefaultFreshnessWindow
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifier = notifier
	p.settings = settings
}

// Notifier returns the notifier the next item will use.
func (p *Pipeline) Notifier() ports.Notifier {
	n, _ := p.snapshot()
	return n
}

func (p *Pipeline) snapshot() (ports.Notifier, PipelineSettings) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.notifier, p.settings
}

// Ingest processes threads first, then comments. A storage failure stops the batch
// and is returned; every other failure is item-local.
func (p *Pipeline) Ingest(ctx context.Context, batch domain.Batch) (BatchReport, error) {
	report := BatchReport{Source: batch.Source, Outcomes: map[Outcome]int{}}
	if p.store == nil {
		return report, fmt.Errorf("ingest %s: %w", batch.Source, domain.ErrStorageUnavailable)
	}

	for _, thread := range batch.Threads {
		outcome, err := p.HandleThread(ctx, thread)
		if err != nil {
			return report, fmt.Errorf("ingest %s: %w", batch.Source, err)
		}
		report.add(outcome)
	}

	for _, comment := range batch.Comments {
		outcome, err := p.HandleComment(ctx, comment)
		if err != nil {
			return report, fmt.Errorf("ingest %s: %w", batch.Source, err)
		}
		report.add(outcome)
	}

	return report, nil
}

// HandleThread stores a thread once and announces it with a summary when it is fresh.
func (p *Pipeline) HandleThread(ctx context.Context, thread domain.ThreadRecord) (Outcome, error) {
	notifier, settings := p.snapshot()
	log := p.logger.With("kind", kindThread, "link", thread.Link)

	inserted, err := p.store.PutThreadIfAbsent(ctx, thread)
	if err != nil {
		return "", fmt.Errorf("store thread %s: %w", thread.Link, err)
	}
	if !inserted {
		return p.done(log, kindThread, OutcomeDuplicate), nil
	}
	log.Info("thread stored", "title", thread.Title)

	if !IsFresh(thread.PublishedAt, p.now(), settings.FreshnessWindow) {
		return p.done(log, kindThread, OutcomeStoredStale), nil
	}

	summary, err := p.summarize(ctx, thread.Description)
	if err != nil {
		log.Warn("summarize failed", "error", err)
		return p.done(log, kindThread, OutcomeClassifyFailed), nil
	}

	message := settings.Formatter.Thread(thread, summary)
	return p.notify(ctx, log, kindThread, notifier, settings, message), nil
}

// HandleComment drops short messages, upserts the rest and announces new, fresh, relevant ones.
func (p *Pipeline) HandleComment(ctx context.Context, comment domain.CommentRecord) (Outcome, error) {
	notifier, settings := p.snapshot()
	log := p.logger.With("kind", kindComment, "comment_id", comment.CommentID)

	if comment.TooShort() {
		return p.done(log, kindComment, OutcomeDiscarded), nil
	}

	wasNew, err := p.store.UpsertComment(ctx, comment)
	if err != nil {
		return "", fmt.Errorf("store comment %s: %w", comment.CommentID, err)
	}
	if !wasNew {
		return p.done(log, kindComment, OutcomeDuplicate), nil
	}
	log.Info("comment stored", "author", comment.Author)

	if !IsFresh(comment.CreatedAt, p.now(), settings.FreshnessWindow) {
		return p.done(log, kindComment, OutcomeStoredStale), nil
	}

	verdict, err := p.filter(ctx, comment.Message)
	if err != nil {
		log.Warn("relevance filter failed", "error", err)
		return p.done(log, kindComment, OutcomeClassifyFailed), nil
	}
	if IsSuppressed(verdict) {
		log.Info("comment suppressed by filter", "message", settings.Formatter.Truncation.Apply(comment.Message))
		return p.done(log, kindComment, OutcomeSuppressed), nil
	}

	message := settings.Formatter.Comment(comment, verdict)
	return p.notify(ctx, log, kindComment, notifier, settings, message), nil
}

func (p *Pipeline) summarize(ctx context.Context, description string) (string, error) {
	if p.classifier == nil {
		return "", &domain.ClassificationError{Op: "summarize", Err: errNoBackend}
	}
	return p.classifier.Summarize(ctx, description)
}

func (p *Pipeline) filter(ctx context.Context, message string) (string, error) {
	if p.classifier == nil {
		return "", &domain.ClassificationError{Op: "filter", Err: errNoBackend}
	}
	return p.classifier.FilterRelevance(ctx, message)
}

func (p *Pipeline) notify(ctx context.Context, log *slog.Logger, kind string, notifier ports.Notifier, settings PipelineSettings, message string) Outcome {
	if notifier == nil {
		log.Warn("notification dropped", "error", &domain.NotifyError{Channel: "none", Err: errNoNotifier})
		return p.done(log, kind, OutcomeNotifyFailed)
	}

	if settings.NotifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.NotifyTimeout)
		defer cancel()
	}

	if err := notifier.Send(ctx, message); err != nil {
		log.Warn("notification failed", "error", err)
		return p.done(log, kind, OutcomeNotifyFailed)
	}
	return p.done(log, kind, OutcomeNotified)
}

func (p *Pipeline) done(log *slog.Logger, kind string, outcome Outcome) Outcome {
	log.Debug("item processed", "outcome", outcome)
	p.metrics.ItemProcessed(kind, string(outcome))
	return outcome
}

type noopMetrics struct{}

func (noopMetrics) ItemProcessed(string, string) {}
func (noopMetrics) SourceFailed(string)          {}
func (noopMetrics) CycleCompleted(time.Duration) {}
