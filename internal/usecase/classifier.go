package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"ForumWatcher/internal/domain"
	"ForumWatcher/internal/ports"
)

const (
	// EndMarker terminates the useful part of a classifier reply.
	EndMarker = "END"
	// SuppressMarker anywhere in a filter verdict suppresses the alert.
	SuppressMarker = "FALSE"
)

var errNoBackend = errors.New("classifier backend is not configured")

// FirstSegment returns the reply text before the first EndMarker, or the whole reply.
func FirstSegment(reply string) string {
	head, _, _ := strings.Cut(reply, EndMarker)
	return head
}

// IsSuppressed reports whether a filter verdict vetoes the notification.
func IsSuppressed(verdict string) bool {
	return strings.Contains(verdict, SuppressMarker)
}

// ClassifierSettings are the reloadable parameters of the classifier.
type ClassifierSettings struct {
	Model        string
	ThreadPrompt string
	FilterPrompt string
	Timeout      time.Duration
}

// Classifier implements ports.ContentClassifier on top of a model backend.
type Classifier struct {
	mu       sync.RWMutex
	backend  ports.ClassifierBackend
	settings ClassifierSettings
}

var _ ports.ContentClassifier = (*Classifier)(nil)

// NewClassifier wires a backend with its settings.
func NewClassifier(backend ports.ClassifierBackend, settings ClassifierSettings) *Classifier {
	return &Classifier{backend: backend, settings: settings}
}

// Apply swaps backend and settings; in-flight calls keep the previous values.
func (c *Classifier) Apply(backend ports.ClassifierBackend, settings ClassifierSettings) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backend = backend
	c.settings = settings
}

// Summarize condenses a thread description using the thread prompt.
func (c *Classifier) Summarize(ctx context.Context, description string) (string, error) {
	backend, settings := c.snapshot()
	return c.run(ctx, "summarize", backend, settings, settings.ThreadPrompt, description)
}

// FilterRelevance asks the model whether a comment is worth an alert.
// Callers check the verdict with IsSuppressed.
func (c *Classifier) FilterRelevance(ctx context.Context, message string) (string, error) {
	backend, settings := c.snapshot()
	return c.run(ctx, "filter", backend, settings, settings.FilterPrompt, message)
}

func (c *Classifier) snapshot() (ports.ClassifierBackend, ClassifierSettings) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.backend, c.settings
}

func (c *Classifier) run(ctx context.Context, op string, backend ports.ClassifierBackend, settings ClassifierSettings, prompt, content string) (string, error) {
	if backend == nil {
		return "", &domain.ClassificationError{Op: op, Err: errNoBackend}
	}

	if settings.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, settings.Timeout)
		defer cancel()
	}

	reply, err := backend.Invoke(ctx, settings.Model, []domain.Message{
		{Role: domain.RoleSystem, Content: prompt},
		{Role: domain.RoleUser, Content: content},
	})
	if err != nil {
		var ce *domain.ClassificationError
		if errors.As(err, &ce) {
			return "", err
		}
		return "", &domain.ClassificationError{Op: op, Err: err}
	}

	return FirstSegment(reply), nil
}
