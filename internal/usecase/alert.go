package usecase

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"ForumWatcher/internal/domain"
)

const (
	// DefaultTruncateRunes limits quoted bodies inside alerts.
	DefaultTruncateRunes = 200
	alertTimeLayout      = "2006/01/02 15:04"
	ellipsis             = "..."
)

// Truncation cuts quoted text to MaxRunes runes when alerts are formatted.
// Stored records always keep the full text.
type Truncation struct {
	MaxRunes int
}

// Apply returns s shortened to MaxRunes runes with an ellipsis, or s unchanged when it fits.
func (t Truncation) Apply(s string) string {
	if t.MaxRunes <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= t.MaxRunes {
		return s
	}
	return string(runes[:t.MaxRunes]) + ellipsis
}

// AlertFormatter renders notification text.
type AlertFormatter struct {
	Truncation Truncation
	Location   *time.Location
}

// Thread renders the alert for a fresh thread.
func (f AlertFormatter) Thread(thread domain.ThreadRecord, summary string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s New thread\n", headline(thread.Category))
	fmt.Fprintf(&b, "Title: %s\n", thread.Title)
	fmt.Fprintf(&b, "Author: %s\n", thread.Creator)
	fmt.Fprintf(&b, "Published: %s\n\n", f.timestamp(thread.PublishedAt))
	fmt.Fprintf(&b, "%s\n\n", f.Truncation.Apply(strings.TrimSpace(thread.Description)))
	if summary = strings.TrimSpace(summary); summary != "" {
		fmt.Fprintf(&b, "%s\n\n", summary)
	}
	b.WriteString(thread.Link)
	return b.String()
}

// Comment renders the alert for a fresh, relevant comment.
func (f AlertFormatter) Comment(comment domain.CommentRecord, verdict string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s New comment\n", headline(comment.ParentCategory))
	fmt.Fprintf(&b, "Author: %s\n", comment.Author)
	fmt.Fprintf(&b, "Published: %s\n\n", f.timestamp(comment.CreatedAt))
	fmt.Fprintf(&b, "%s\n", f.Truncation.Apply(strings.TrimSpace(comment.Message)))
	if verdict = strings.TrimSpace(verdict); verdict != "" {
		fmt.Fprintf(&b, "%s\n", f.Truncation.Apply(verdict))
	}
	b.WriteString("\n")
	b.WriteString(comment.URL)
	return b.String()
}

func (f AlertFormatter) timestamp(ts time.Time) string {
	loc := f.Location
	if loc == nil {
		loc = time.UTC
	}
	return ts.In(loc).Format(alertTimeLayout)
}

// Casers are stateful, so each call gets its own.
func headline(category string) string {
	return cases.Upper(language.Und).String(category)
}
