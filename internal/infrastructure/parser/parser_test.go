package parser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"ForumWatcher/internal/domain"
	"ForumWatcher/internal/infrastructure/fetch"
	"ForumWatcher/internal/scanner"
)

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	raw, err := os.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return raw
}

func ndtnSource(url string) domain.Source {
	return domain.Source{
		Name:      "ndtn-comments",
		Kind:      domain.KindProfileComments,
		URL:       url,
		Category:  "ndtn",
		Namespace: "ndtn",
		Options:   map[string]string{OptionRequiredClass: "Role_PatronProvider"},
	}
}

func TestProfileCommentsParse(t *testing.T) {
	t.Parallel()

	src := ndtnSource("https://forum.example/profile/comments/NDTN")
	batch, err := NewProfileCommentsParser().Parse(src, readFixture(t, "profile_comments.html"))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if len(batch.Comments) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(batch.Comments))
	}

	first := batch.Comments[0]
	if first.CommentID != "ndtn_4001" {
		t.Fatalf("unexpected id: %s", first.CommentID)
	}
	if first.Author != "NDTN" {
		t.Fatalf("unexpected author: %s", first.Author)
	}
	if first.Message != "Restocked the 1 GB plan in Frankfurt." {
		t.Fatalf("unexpected message: %q", first.Message)
	}
	if first.URL != "https://forum.example/profile/comments/4001" {
		t.Fatalf("unexpected url: %s", first.URL)
	}
	if first.ParentCategory != "ndtn" || first.ParentLink != src.URL {
		t.Fatalf("unexpected parent: %s %s", first.ParentCategory, first.ParentLink)
	}
	want := time.Date(2026, time.November, 27, 18, 30, 0, 0, time.UTC)
	if !first.CreatedAt.Equal(want) {
		t.Fatalf("unexpected created at: %v", first.CreatedAt)
	}

	// Short messages are left to the pipeline.
	if batch.Comments[1].CommentID != "ndtn_4003" || batch.Comments[1].Message != "ok" {
		t.Fatalf("unexpected second comment: %+v", batch.Comments[1])
	}
}

func TestProfileCommentsWithoutRoleFilter(t *testing.T) {
	t.Parallel()

	src := ndtnSource("https://forum.example/profile/comments/NDTN")
	src.Options = map[string]string{OptionPermalink: "https://forum.example/discussion/comment/{id}"}

	batch, err := NewProfileCommentsParser().Parse(src, readFixture(t, "profile_comments.html"))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(batch.Comments) != 3 {
		t.Fatalf("expected 3 comments, got %d", len(batch.Comments))
	}
	if batch.Comments[1].URL != "https://forum.example/discussion/comment/4002" {
		t.Fatalf("unexpected permalink: %s", batch.Comments[1].URL)
	}
}

func TestRSSThreadsParse(t *testing.T) {
	t.Parallel()

	src := domain.Source{Name: "offers", Kind: domain.KindRSSThreads, Category: "offers"}
	batch, err := NewRSSThreadsParser().Parse(src, readFixture(t, "offers.rss"))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if len(batch.Threads) != 2 {
		t.Fatalf("expected 2 threads, got %d", len(batch.Threads))
	}

	first := batch.Threads[0]
	if first.Link != "https://forum.example/discussion/1/black-friday-vps" {
		t.Fatalf("unexpected link: %s", first.Link)
	}
	if first.Creator != "hostco" {
		t.Fatalf("unexpected creator: %s", first.Creator)
	}
	if first.Category != "offers" {
		t.Fatalf("unexpected category: %s", first.Category)
	}
	if first.Description != "2 vCPU, 4 GB RAM, 80 GB NVMe." {
		t.Fatalf("unexpected description: %s", first.Description)
	}

	second := batch.Threads[1].PublishedAt
	want := time.Date(2026, time.November, 26, 21, 0, 0, 0, time.UTC)
	if !second.Equal(want) || second.Location() != time.UTC {
		t.Fatalf("unexpected published at: %v", second)
	}
}

func TestRSSThreadsParseRejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := NewRSSThreadsParser().Parse(domain.Source{Name: "offers"}, []byte("definitely not a feed"))

	var pe *domain.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestStrategySourceCollect(t *testing.T) {
	t.Parallel()

	rss := readFixture(t, "offers.rss")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(rss)
	}))
	defer server.Close()

	registry := scanner.NewRegistry(NewRSSThreadsParser(), NewProfileCommentsParser())
	source := NewStrategySource(registry, fetch.NewClientWith(server.Client(), ""), nil)
	ctx := context.Background()

	batch, err := source.Collect(ctx, domain.Source{Name: "offers", Kind: domain.KindRSSThreads, URL: server.URL + "/feed"})
	if err != nil {
		t.Fatalf("Collect error: %v", err)
	}
	if batch.Source != "offers" || len(batch.Threads) != 2 {
		t.Fatalf("unexpected batch: %s with %d threads", batch.Source, len(batch.Threads))
	}

	_, err = source.Collect(ctx, domain.Source{Name: "gone", Kind: domain.KindRSSThreads, URL: server.URL + "/missing"})
	var fe *domain.FetchError
	if !errors.As(err, &fe) || fe.StatusCode != http.StatusNotFound {
		t.Fatalf("expected FetchError 404, got %v", err)
	}

	_, err = source.Collect(ctx, domain.Source{Name: "odd", Kind: "unknown", URL: server.URL})
	if err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}
