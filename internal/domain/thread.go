package domain

import "time"

// ThreadRecord is a discussion thread keyed by its link. Stored once, never modified.
type ThreadRecord struct {
	Link        string    `bson:"link" json:"link"`
	Title       string    `bson:"title" json:"title"`
	Creator     string    `bson:"creator" json:"creator"`
	Category    string    `bson:"category" json:"category"`
	Description string    `bson:"description" json:"description"`
	PublishedAt time.Time `bson:"pub_date" json:"pub_date"`
}

// Batch is the normalized output of one source parse.
type Batch struct {
	Source   string
	Threads  []ThreadRecord
	Comments []CommentRecord
}

// Len reports the number of candidate items in the batch.
func (b Batch) Len() int {
	return len(b.Threads) + len(b.Comments)
}

// Role of a classifier exchange message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Message is one entry of a classifier exchange.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
