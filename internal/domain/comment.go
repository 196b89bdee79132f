package domain

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// MinCommentRunes is the shortest message accepted for storage.
const MinCommentRunes = 5

// CommentRecord is a forum comment keyed by a namespaced identifier.
type CommentRecord struct {
	CommentID      string    `bson:"comment_id" json:"comment_id"`
	Author         string    `bson:"author" json:"author"`
	Message        string    `bson:"message" json:"message"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
	URL            string    `bson:"url" json:"url"`
	ParentCategory string    `bson:"category" json:"category"`
	ParentLink     string    `bson:"thread_url" json:"thread_url"`
}

// CommentID builds the namespaced identifier, e.g. "ndtn_123".
func CommentID(namespace, nativeID string) string {
	return fmt.Sprintf("%s_%s", namespace, nativeID)
}

// TooShort reports whether the message is below the storage threshold.
func (c CommentRecord) TooShort() bool {
	return utf8.RuneCountInString(c.Message) < MinCommentRunes
}
