package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ForumWatcher/internal/config"
	"ForumWatcher/internal/infrastructure/storage"
	"ForumWatcher/internal/ports"
	"ForumWatcher/internal/usecase"
)

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	fresh := time.Now().UTC().Add(-time.Hour).Format(time.RFC1123Z)
	stale := time.Now().UTC().Add(-72 * time.Hour).Format(time.RFC1123Z)
	body := fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<rss version="2.0">
  <channel>
    <title>Offers</title>
    <item>
      <title>Fresh VPS</title>
      <link>https://forum.example/discussion/10/fresh-vps</link>
      <pubDate>%s</pubDate>
      <description>1 vCPU for 1 USD.</description>
    </item>
    <item>
      <title>Old VPS</title>
      <link>https://forum.example/discussion/9/old-vps</link>
      <pubDate>%s</pubDate>
      <description>Expired deal.</description>
    </item>
  </channel>
</rss>`, fresh, stale)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/feed.rss":
			w.Header().Set("Content-Type", "application/rss+xml")
			_, _ = w.Write([]byte(body))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, path, feedURL string, frequency int, extraSource bool) {
	t.Helper()
	cfg := fmt.Sprintf(`
monitor:
  frequencySeconds: %d
storage:
  driver: memory
classifier:
  backend: none
notifier:
  kind: log
admin:
  enabled: false
sources:
  - name: offers
    kind: rss-threads
    url: %s/feed.rss
    category: offers
`, frequency, feedURL)
	if extraSource {
		cfg += fmt.Sprintf(`  - name: broken
    kind: rss-threads
    url: %s/missing.rss
    category: offers
`, feedURL)
	}
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
}

func newTestApp(t *testing.T, path string) *Application {
	t.Helper()
	cfg, err := config.Load(path)
	require.NoError(t, err)

	a, err := New(context.Background(), cfg, Options{
		ConfigPath: path,
		Logger:     slog.New(slog.DiscardHandler),
		Store:      storage.NewMemoryStore(),
	})
	require.NoError(t, err)
	return a
}

func TestRunOnceNotifiesFreshThreadsOnce(t *testing.T) {
	srv := feedServer(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, srv.URL, 600, false)
	a := newTestApp(t, path)
	ctx := context.Background()

	report, err := a.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Outcomes[usecase.OutcomeNotified])
	assert.Equal(t, 1, report.Outcomes[usecase.OutcomeStoredStale])

	report, err = a.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Outcomes[usecase.OutcomeDuplicate])
	assert.Zero(t, report.Outcomes[usecase.OutcomeNotified])

	require.NoError(t, a.Close(ctx))
}

func TestRunOnceReportsFailingSource(t *testing.T) {
	srv := feedServer(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, srv.URL, 600, true)
	a := newTestApp(t, path)

	report, err := a.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source broken")
	assert.Contains(t, report.Failures, "broken")
	assert.Equal(t, 1, report.Outcomes[usecase.OutcomeNotified])
}

func TestReloadAppliesNewSettings(t *testing.T) {
	srv := feedServer(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, srv.URL, 600, false)
	a := newTestApp(t, path)

	writeConfig(t, path, srv.URL, 120, true)
	require.NoError(t, a.Reload(context.Background()))

	assert.Equal(t, 120*time.Second, a.driver.Interval())
	assert.Len(t, a.poller.Sources(), 2)
	assert.Equal(t, 120, a.Config().Monitor.FrequencySeconds)
}

func TestReloadKeepsPreviousConfigOnError(t *testing.T) {
	srv := feedServer(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, srv.URL, 600, false)
	a := newTestApp(t, path)

	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: cassandra\n"), 0o600))
	require.Error(t, a.Reload(context.Background()))

	assert.Equal(t, 600*time.Second, a.driver.Interval())
	assert.Equal(t, config.DriverMemory, a.Config().Storage.Driver)
}

func TestRunPollsUntilCancelled(t *testing.T) {
	srv := feedServer(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, srv.URL, 600, false)
	a := newTestApp(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	assert.Eventually(t, func() bool {
		stats, err := a.store.Stats(context.Background())
		return err == nil && stats.Threads == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

type closingNotifier struct {
	id     int
	closed atomic.Bool
}

func (n *closingNotifier) Send(context.Context, string) error {
	if n.closed.Load() {
		return errors.New("channel closed")
	}
	return nil
}

func (n *closingNotifier) Close() error {
	n.closed.Store(true)
	return nil
}

type notifierFactory struct {
	mu      sync.Mutex
	created []*closingNotifier
}

func (f *notifierFactory) build(config.NotifierConfig, *slog.Logger) (ports.Notifier, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := &closingNotifier{id: len(f.created)}
	f.created = append(f.created, n)
	return n, nil
}

func TestConcurrentReloadsLeaveOneLiveNotifier(t *testing.T) {
	srv := feedServer(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	writeConfig(t, path, srv.URL, 600, false)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	factory := &notifierFactory{}
	a, err := New(context.Background(), cfg, Options{
		ConfigPath:  path,
		Logger:      slog.New(slog.DiscardHandler),
		Store:       storage.NewMemoryStore(),
		NewNotifier: factory.build,
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, a.Reload(context.Background()))
		}()
	}
	wg.Wait()

	live, ok := a.pipeline.Notifier().(*closingNotifier)
	require.True(t, ok)
	assert.Same(t, live, a.notifier)
	assert.False(t, live.closed.Load())

	require.Len(t, factory.created, 9)
	for _, n := range factory.created {
		if n != live {
			assert.True(t, n.closed.Load(), "notifier %d left open", n.id)
		}
	}
}
