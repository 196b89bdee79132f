package llm

import (
	"context"

	"ForumWatcher/internal/domain"
	"ForumWatcher/internal/ports"
)

// NoopBackend answers every exchange with an empty reply: no summary, never suppressed.
type NoopBackend struct{}

var _ ports.ClassifierBackend = NoopBackend{}

func (NoopBackend) Invoke(context.Context, string, []domain.Message) (string, error) {
	return "", nil
}
