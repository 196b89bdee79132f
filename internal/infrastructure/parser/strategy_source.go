package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"ForumWatcher/internal/domain"
	"ForumWatcher/internal/ports"
	"ForumWatcher/internal/scanner"
)

// StrategySource implements ports.BatchSource via registered parser strategies.
type StrategySource struct {
	registry *scanner.Registry
	fetcher  ports.Fetcher
	logger   *slog.Logger
}

var _ ports.BatchSource = (*StrategySource)(nil)

// NewStrategySource wires the parser registry with the fetch client.
func NewStrategySource(reg *scanner.Registry, fetcher ports.Fetcher, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		fetcher:  fetcher,
		logger:   log,
	}
}

// Collect fetches the source URL and parses it with the strategy registered for its kind.
func (s *StrategySource) Collect(ctx context.Context, src domain.Source) (domain.Batch, error) {
	if s.registry == nil || s.fetcher == nil {
		return domain.Batch{}, fmt.Errorf("source %s: strategy source is not configured", src.Name)
	}

	strategy, err := s.registry.Resolve(src.Kind)
	if err != nil {
		return domain.Batch{}, fmt.Errorf("source %s: %w", src.Name, err)
	}

	s.debug("fetch source", "source", src.Name, "kind", src.Kind, "url", src.URL)
	raw, err := s.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		return domain.Batch{}, fmt.Errorf("source %s: %w", src.Name, err)
	}

	batch, err := strategy.Parse(src, raw)
	if err != nil {
		var pe *domain.ParseError
		if !errors.As(err, &pe) {
			err = &domain.ParseError{Source: src.Name, Err: err}
		}
		return domain.Batch{}, err
	}
	if batch.Source == "" {
		batch.Source = src.Name
	}

	s.debug("source parsed", "source", src.Name, "threads", len(batch.Threads), "comments", len(batch.Comments))
	return batch, nil
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
