package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ForumWatcher/internal/config"
	"ForumWatcher/internal/domain"
	"ForumWatcher/internal/infrastructure/fetch"
	"ForumWatcher/internal/infrastructure/httpapi"
	"ForumWatcher/internal/infrastructure/llm"
	"ForumWatcher/internal/infrastructure/metrics"
	"ForumWatcher/internal/infrastructure/notify"
	"ForumWatcher/internal/infrastructure/parser"
	"ForumWatcher/internal/infrastructure/queue"
	"ForumWatcher/internal/infrastructure/scheduler"
	"ForumWatcher/internal/infrastructure/storage"
	"ForumWatcher/internal/infrastructure/telegram"
	"ForumWatcher/internal/logging"
	"ForumWatcher/internal/ports"
	"ForumWatcher/internal/scanner"
	"ForumWatcher/internal/usecase"
)

const shutdownTimeout = 30 * time.Second

// Options tune application construction.
type Options struct {
	// ConfigPath is re-read on Reload. Empty means defaults plus environment.
	ConfigPath string
	Logger     *slog.Logger
	// Store replaces the configured storage driver when set.
	Store ports.Store
	// NewNotifier replaces the notifier factory used at startup and on reload.
	NewNotifier func(config.NotifierConfig, *slog.Logger) (ports.Notifier, error)
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	configPath string
	logger     *slog.Logger

	store      ports.Store
	metrics    *metrics.Metrics
	classifier *usecase.Classifier
	pipeline   *usecase.Pipeline
	poller     *usecase.Poller
	driver     *scheduler.IntervalScheduler
	scheduler  *usecase.Scheduler
	admin      *httpapi.Server

	newNotifier func(config.NotifierConfig, *slog.Logger) (ports.Notifier, error)
	reloadMu    sync.Mutex

	mu       sync.Mutex
	cfg      config.Config
	notifier ports.Notifier
}

// New builds a runnable application instance from cfg.
func New(ctx context.Context, cfg config.Config, opts Options) (*Application, error) {
	baseLogger := opts.Logger
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store := opts.Store
	if store == nil {
		var err error
		store, err = storage.Open(ctx, cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Driver, err)
		}
	}

	fetcher, err := fetch.NewClient(fetch.Options{
		Timeout:   cfg.FetchTimeout(),
		UserAgent: cfg.Monitor.UserAgent,
		ProxyURL:  cfg.Monitor.Proxy,
	})
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}

	backend, err := newBackend(ctx, cfg.Classifier)
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}

	notifierFactory := opts.NewNotifier
	if notifierFactory == nil {
		notifierFactory = newNotifier
	}
	notifier, err := notifierFactory(cfg.Notifier, baseLogger.With("component", "notifier"))
	if err != nil {
		_ = store.Close(ctx)
		return nil, err
	}

	registry := scanner.NewRegistry(
		parser.NewRSSThreadsParser(),
		parser.NewProfileCommentsParser(),
	)
	source := parser.NewStrategySource(registry, fetcher, baseLogger.With("component", "source"))

	m := metrics.New()
	classifier := usecase.NewClassifier(backend, classifierSettings(cfg))

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Store:      store,
		Classifier: classifier,
		Notifier:   notifier,
		Metrics:    m,
		Logger:     baseLogger.With("component", "pipeline"),
		Settings:   pipelineSettings(cfg),
	})

	poller := usecase.NewPoller(usecase.PollerDeps{
		Source:        source,
		Ingester:      pipeline,
		Metrics:       m,
		Logger:        baseLogger.With("component", "poller"),
		Sources:       cfg.EnabledSources(),
		MaxConcurrent: cfg.Monitor.MaxConcurrentSources,
	})

	driver := scheduler.NewIntervalScheduler(cfg.PollInterval())

	a := &Application{
		configPath: opts.ConfigPath,
		logger:     baseLogger,
		store:      store,
		metrics:    m,
		classifier: classifier,
		pipeline:   pipeline,
		poller:     poller,
		driver:     driver,
		scheduler:  usecase.NewScheduler(driver, poller),

		newNotifier: notifierFactory,
		cfg:         cfg,
		notifier:    notifier,
	}

	if cfg.Admin.On() {
		router := httpapi.NewRouter(httpapi.Deps{
			Store:      store,
			Controller: a,
			Metrics:    promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}),
			Logger:     baseLogger.With("component", "admin"),
		})
		a.admin = httpapi.NewServer(cfg.Admin.Listen, router, baseLogger.With("component", "admin"))
	}

	return a, nil
}

// Run starts the polling loop and blocks until ctx is cancelled. SIGHUP reloads the configuration.
func (a *Application) Run(ctx context.Context) error {
	if a.admin != nil {
		a.admin.Start()
	}

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("monitoring started",
		"interval", a.driver.Interval(),
		"sources", len(a.poller.Sources()),
	)

	for {
		select {
		case <-hup:
			if err := a.Reload(ctx); err != nil {
				a.logger.Error("reload failed, keeping previous configuration", "error", err)
			}
		case <-ctx.Done():
			return a.shutdown()
		}
	}
}

// RunOnce polls every source a single time. Source failures are joined into the error.
// Cancelling ctx does not interrupt items already stored; per-call timeouts bound the cycle.
func (a *Application) RunOnce(ctx context.Context) (usecase.CycleReport, error) {
	report := a.poller.RunCycle(context.WithoutCancel(ctx))
	if len(report.Failures) == 0 {
		return report, nil
	}

	errs := make([]error, 0, len(report.Failures))
	for name, err := range report.Failures {
		errs = append(errs, fmt.Errorf("source %s: %w", name, err))
	}
	return report, errors.Join(errs...)
}

// Reload re-reads the configuration file and applies the reloadable settings:
// sources, interval, freshness window, classifier and notifier. Storage, fetch
// and admin settings require a restart. Concurrent calls are applied one at a time;
// the replaced notifier is closed once no polling cycle still uses it.
func (a *Application) Reload(ctx context.Context) error {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	backend, err := newBackend(ctx, cfg.Classifier)
	if err != nil {
		return err
	}
	notifier, err := a.newNotifier(cfg.Notifier, a.logger.With("component", "notifier"))
	if err != nil {
		return err
	}

	a.mu.Lock()
	previous := a.notifier
	a.cfg = cfg
	a.notifier = notifier
	a.mu.Unlock()

	a.classifier.Apply(backend, classifierSettings(cfg))
	a.pipeline.Apply(notifier, pipelineSettings(cfg))
	a.poller.SetSources(cfg.EnabledSources(), cfg.Monitor.MaxConcurrentSources)
	a.driver.SetInterval(cfg.PollInterval())
	a.poller.AfterCycle(func() { closeNotifier(previous) })

	a.logger.Info("configuration reloaded",
		"sources", len(cfg.EnabledSources()),
		"interval", cfg.PollInterval(),
		"classifier", cfg.Classifier.Backend,
		"notifier", cfg.Notifier.Kind,
	)
	return nil
}

// TriggerPoll starts a cycle without waiting for the current pause to end.
func (a *Application) TriggerPoll() {
	a.driver.Trigger()
}

// Config returns the active configuration.
func (a *Application) Config() config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// Metrics exposes the application collectors.
func (a *Application) Metrics() *metrics.Metrics {
	return a.metrics
}

func (a *Application) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.scheduler.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop scheduler: %w", err))
	}
	if a.admin != nil {
		if err := a.admin.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop admin server: %w", err))
		}
	}
	if err := a.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	a.logger.Info("monitoring stopped")
	return errors.Join(errs...)
}

// Close releases storage and the notifier. Run calls it on shutdown.
func (a *Application) Close(ctx context.Context) error {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	a.mu.Lock()
	n := a.notifier
	a.notifier = nil
	a.mu.Unlock()
	closeNotifier(n)

	if err := a.store.Close(ctx); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	return nil
}

func closeNotifier(n ports.Notifier) {
	if c, ok := n.(io.Closer); ok {
		_ = c.Close()
	}
}

func newBackend(ctx context.Context, cfg config.ClassifierConfig) (ports.ClassifierBackend, error) {
	switch cfg.Backend {
	case config.BackendWorkersAI:
		return llm.NewWorkersAIBackend(cfg), nil
	case config.BackendOpenAI:
		return llm.NewChatGPTBackend(cfg), nil
	case config.BackendGemini:
		backend, err := llm.NewGeminiBackend(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return backend, nil
	case config.BackendNone:
		return llm.NoopBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", cfg.Backend)
	}
}

func newNotifier(cfg config.NotifierConfig, logger *slog.Logger) (ports.Notifier, error) {
	switch cfg.Kind {
	case config.NotifierTelegram:
		return telegram.NewNotifier(cfg.Telegram), nil
	case config.NotifierAMQP:
		n, err := queue.Dial(cfg.AMQP)
		if err != nil {
			return nil, &domain.NotifyError{Channel: "amqp", Err: err}
		}
		return n, nil
	case config.NotifierLog:
		return notify.NewLogNotifier(logger), nil
	default:
		return nil, fmt.Errorf("unknown notifier %q", cfg.Kind)
	}
}

func classifierSettings(cfg config.Config) usecase.ClassifierSettings {
	return usecase.ClassifierSettings{
		Model:        cfg.Classifier.Model,
		ThreadPrompt: cfg.Classifier.ThreadPrompt,
		FilterPrompt: cfg.Classifier.FilterPrompt,
		Timeout:      cfg.ClassifierTimeout(),
	}
}

func pipelineSettings(cfg config.Config) usecase.PipelineSettings {
	return usecase.PipelineSettings{
		FreshnessWindow: cfg.FreshnessWindow(),
		NotifyTimeout:   cfg.NotifyTimeout(),
		Formatter: usecase.AlertFormatter{
			Truncation: usecase.Truncation{MaxRunes: cfg.Monitor.TruncateRunes},
			Location:   cfg.Location(),
		},
	}
}
