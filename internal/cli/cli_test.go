package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ForumWatcher/internal/usecase"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestMigrateSQLite(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "data", "watch.db")
	path := writeFile(t, fmt.Sprintf("storage:\n  driver: sqlite\n  sqlite:\n    path: %s\n", dbPath))

	out, err := execute(t, "--config", path, "--log-level", "error", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "sqlite schema at version 1")
	assert.FileExists(t, dbPath)
}

func TestMigrateMemoryIsNoop(t *testing.T) {
	path := writeFile(t, "storage:\n  driver: memory\n")

	out, err := execute(t, "--config", path, "--log-level", "error", "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "no schema to migrate")
}

func TestInvalidConfigFails(t *testing.T) {
	path := writeFile(t, "notifier:\n  kind: pigeon\n")

	_, err := execute(t, "--config", path, "once")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `notifier.kind "pigeon" is not supported`)
}

func TestOncePrintsJSONReport(t *testing.T) {
	pub := time.Now().UTC().Add(-10 * time.Minute).Format(time.RFC1123Z)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<?xml version="1.0"?><rss version="2.0"><channel><title>x</title>
<item><title>Deal</title><link>https://forum.example/discussion/5/deal</link><pubDate>%s</pubDate><description>cheap</description></item>
</channel></rss>`, pub)
	}))
	defer srv.Close()

	path := writeFile(t, fmt.Sprintf(`
logging:
  level: error
storage:
  driver: memory
classifier:
  backend: none
notifier:
  kind: log
sources:
  - name: deals
    kind: rss-threads
    url: %s
    category: deals
`, srv.URL))

	out, err := execute(t, "--config", path, "once", "--json")
	require.NoError(t, err)

	start := bytes.IndexByte([]byte(out), '{')
	require.GreaterOrEqual(t, start, 0, out)
	var summary cycleSummary
	require.NoError(t, json.Unmarshal([]byte(out[start:]), &summary))
	assert.Equal(t, 1, summary.Sources)
	assert.Equal(t, 1, summary.Outcomes[usecase.OutcomeNotified])
	assert.Empty(t, summary.Failures)
}

func TestPrintReportText(t *testing.T) {
	var buf bytes.Buffer
	err := printReport(&buf, usecase.CycleReport{
		ID:       "c1",
		Duration: 2 * time.Second,
		Sources:  2,
		Failures: map[string]error{"broken": errors.New("status 503")},
		Outcomes: map[usecase.Outcome]int{usecase.OutcomeNotified: 1, usecase.OutcomeDuplicate: 3},
	}, false)
	require.NoError(t, err)

	assert.Equal(t, "cycle c1: 2 sources in 2s\n"+
		"  duplicate        3\n"+
		"  notified         1\n"+
		"  failed broken: status 503\n", buf.String())
}
