package ports

import (
	"context"
	"time"

	"ForumWatcher/internal/domain"
)

// RecordStore persists threads and comments and enforces their uniqueness.
type RecordStore interface {
	// PutThreadIfAbsent reports inserted=false when a thread with the same link already exists.
	PutThreadIfAbsent(ctx context.Context, thread domain.ThreadRecord) (bool, error)
	// UpsertComment reports wasNew=true only when no record with the same id existed.
	UpsertComment(ctx context.Context, comment domain.CommentRecord) (bool, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// StoreStats is a snapshot of record counts.
type StoreStats struct {
	Threads  int64 `json:"threads"`
	Comments int64 `json:"comments"`
}

// RecordReader exposes read access for the admin surface.
type RecordReader interface {
	FindThread(ctx context.Context, link string) (domain.ThreadRecord, error)
	FindComment(ctx context.Context, commentID string) (domain.CommentRecord, error)
	Stats(ctx context.Context) (StoreStats, error)
}

// Store combines write and read access.
type Store interface {
	RecordStore
	RecordReader
}

// Fetcher retrieves raw source payloads.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// BatchSource turns a configured source into a batch of candidate records.
type BatchSource interface {
	Collect(ctx context.Context, src domain.Source) (domain.Batch, error)
}

// ClassifierBackend sends a system/user exchange to a hosted model and returns the raw reply text.
type ClassifierBackend interface {
	Invoke(ctx context.Context, model string, messages []domain.Message) (string, error)
}

// ContentClassifier produces summaries and relevance verdicts.
type ContentClassifier interface {
	Summarize(ctx context.Context, description string) (string, error)
	FilterRelevance(ctx context.Context, message string) (string, error)
}

// Notifier delivers a formatted alert to the operator channel.
type Notifier interface {
	Send(ctx context.Context, message string) error
}

// Metrics receives pipeline and scheduler observations.
type Metrics interface {
	ItemProcessed(kind, outcome string)
	SourceFailed(source string)
	CycleCompleted(duration time.Duration)
}

// Scheduler controls when polling cycles execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
