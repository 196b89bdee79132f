package parser

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"ForumWatcher/internal/domain"
	"ForumWatcher/internal/scanner"
)

// RSSThreadsParser reads a category feed where every item is a discussion thread.
type RSSThreadsParser struct{}

var _ scanner.Parser = RSSThreadsParser{}

// NewRSSThreadsParser returns the feed strategy.
func NewRSSThreadsParser() RSSThreadsParser {
	return RSSThreadsParser{}
}

// Name identifies the strategy inside the registry.
func (RSSThreadsParser) Name() string {
	return domain.KindRSSThreads
}

// Parse normalizes feed items into thread records. Items without a link are skipped.
func (RSSThreadsParser) Parse(src domain.Source, raw []byte) (domain.Batch, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return domain.Batch{}, &domain.ParseError{Source: src.Name, Err: fmt.Errorf("parse feed: %w", err)}
	}

	batch := domain.Batch{Source: src.Name}
	for _, item := range feed.Items {
		if item == nil || strings.TrimSpace(item.Link) == "" {
			continue
		}
		batch.Threads = append(batch.Threads, domain.ThreadRecord{
			Link:        strings.TrimSpace(item.Link),
			Title:       strings.TrimSpace(item.Title),
			Creator:     creatorOf(item),
			Category:    src.Category,
			Description: strings.TrimSpace(item.Description),
			PublishedAt: publishedAt(item),
		})
	}

	return batch, nil
}

func creatorOf(item *gofeed.Item) string {
	for _, author := range item.Authors {
		if author != nil && author.Name != "" {
			return author.Name
		}
	}
	if item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0 {
		return item.DublinCoreExt.Creator[0]
	}
	return ""
}

func publishedAt(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	return time.Time{}
}
