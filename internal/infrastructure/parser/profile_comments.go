package parser

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"ForumWatcher/internal/domain"
	"ForumWatcher/internal/scanner"
)

const (
	// OptionRequiredClass keeps only comments whose item carries this class (e.g. a role badge).
	OptionRequiredClass = "requiredClass"
	// OptionPermalink is a URL template where "{id}" is replaced with the native comment id.
	OptionPermalink = "permalink"

	commentIDPrefix = "Comment_"
)

// ProfileCommentsParser extracts comments from a forum profile comment stream.
type ProfileCommentsParser struct{}

var _ scanner.Parser = ProfileCommentsParser{}

// NewProfileCommentsParser returns the profile comments strategy.
func NewProfileCommentsParser() ProfileCommentsParser {
	return ProfileCommentsParser{}
}

// Name identifies the strategy inside the registry.
func (ProfileCommentsParser) Name() string {
	return domain.KindProfileComments
}

// Parse walks li.ItemComment entries. Entries without an id, author or timestamp are skipped.
func (p ProfileCommentsParser) Parse(src domain.Source, raw []byte) (domain.Batch, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return domain.Batch{}, &domain.ParseError{Source: src.Name, Err: fmt.Errorf("parse document: %w", err)}
	}

	required := src.Option(OptionRequiredClass, "")
	permalink := src.Option(OptionPermalink, defaultPermalink(src.URL))
	namespace := src.Namespace
	if namespace == "" {
		namespace = src.Name
	}

	batch := domain.Batch{Source: src.Name}
	doc.Find("li.ItemComment").Each(func(_ int, item *goquery.Selection) {
		if required != "" && !item.HasClass(required) {
			return
		}
		comment, ok := parseComment(item, src, namespace, permalink)
		if !ok {
			return
		}
		batch.Comments = append(batch.Comments, comment)
	})

	return batch, nil
}

func parseComment(item *goquery.Selection, src domain.Source, namespace, permalink string) (domain.CommentRecord, bool) {
	elementID, _ := item.Attr("id")
	nativeID, found := strings.CutPrefix(elementID, commentIDPrefix)
	if !found || nativeID == "" {
		return domain.CommentRecord{}, false
	}

	author := strings.TrimSpace(item.Find("a.Username").First().Text())
	message := strings.TrimSpace(item.Find("div.Message").First().Text())

	stamp, _ := item.Find("time").First().Attr("datetime")
	createdAt, err := time.Parse(time.RFC3339, strings.TrimSpace(stamp))
	if err != nil || author == "" {
		return domain.CommentRecord{}, false
	}

	return domain.CommentRecord{
		CommentID:      domain.CommentID(namespace, nativeID),
		Author:         author,
		Message:        message,
		CreatedAt:      createdAt.UTC(),
		URL:            strings.ReplaceAll(permalink, "{id}", nativeID),
		ParentCategory: src.Category,
		ParentLink:     src.URL,
	}, true
}

func defaultPermalink(streamURL string) string {
	parsed, err := url.Parse(streamURL)
	if err != nil || parsed.Host == "" {
		return "{id}"
	}
	return fmt.Sprintf("%s://%s/profile/comments/{id}", parsed.Scheme, parsed.Host)
}
