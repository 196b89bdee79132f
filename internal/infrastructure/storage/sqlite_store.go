package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"ForumWatcher/internal/domain"
	"ForumWatcher/internal/ports"
)

const sqliteTimeLayout = time.RFC3339Nano

// SQLiteStore persists records in an embedded SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ ports.Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database file and applies migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, domain.StorageError("open sqlite", err)
	}
	// Writers are serialized on a single connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, domain.StorageError("ping sqlite", err)
	}

	if _, _, err := MigrateSQLite(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return NewSQLiteStore(db), nil
}

// NewSQLiteStore wires an already migrated sql.DB.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// PutThreadIfAbsent relies on the primary key on link.
func (s *SQLiteStore) PutThreadIfAbsent(ctx context.Context, thread domain.ThreadRecord) (bool, error) {
	query, args, err := sq.Insert("threads").
		Columns("link", "title", "creator", "category", "description", "published_at", "created_at").
		Values(thread.Link, thread.Title, thread.Creator, thread.Category, thread.Description,
			formatTime(thread.PublishedAt), formatTime(time.Now())).
		Suffix("ON CONFLICT(link) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert thread: %w", err)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, domain.StorageError("insert thread", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, domain.StorageError("insert thread", err)
	}
	return affected == 1, nil
}

// UpsertComment inserts or overwrites a comment inside one transaction.
func (s *SQLiteStore) UpsertComment(ctx context.Context, comment domain.CommentRecord) (wasNew bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, domain.StorageError("begin upsert comment", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := formatTime(time.Now())
	insert, args, err := sq.Insert("comments").
		Columns("comment_id", "author", "message", "created_at", "url", "category", "thread_url", "recorded_at", "updated_at").
		Values(comment.CommentID, comment.Author, comment.Message, formatTime(comment.CreatedAt),
			comment.URL, comment.ParentCategory, comment.ParentLink, now, now).
		Suffix("ON CONFLICT(comment_id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build insert comment: %w", err)
	}

	res, err := tx.ExecContext(ctx, insert, args...)
	if err != nil {
		return false, domain.StorageError("insert comment", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, domain.StorageError("insert comment", err)
	}

	if affected == 0 {
		update, uargs, buildErr := sq.Update("comments").
			Set("author", comment.Author).
			Set("message", comment.Message).
			Set("created_at", formatTime(comment.CreatedAt)).
			Set("url", comment.URL).
			Set("category", comment.ParentCategory).
			Set("thread_url", comment.ParentLink).
			Set("updated_at", now).
			Where(sq.Eq{"comment_id": comment.CommentID}).
			ToSql()
		if buildErr != nil {
			err = fmt.Errorf("build update comment: %w", buildErr)
			return false, err
		}
		if _, err = tx.ExecContext(ctx, update, uargs...); err != nil {
			return false, domain.StorageError("update comment", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return false, domain.StorageError("commit upsert comment", err)
	}
	return affected == 1, nil
}

// FindThread looks a thread up by link.
func (s *SQLiteStore) FindThread(ctx context.Context, link string) (domain.ThreadRecord, error) {
	query, args, err := sq.Select("link", "title", "creator", "category", "description", "published_at").
		From("threads").
		Where(sq.Eq{"link": link}).
		ToSql()
	if err != nil {
		return domain.ThreadRecord{}, fmt.Errorf("build select thread: %w", err)
	}

	var (
		t         domain.ThreadRecord
		published string
	)
	err = s.db.QueryRowContext(ctx, query, args...).
		Scan(&t.Link, &t.Title, &t.Creator, &t.Category, &t.Description, &published)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ThreadRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ThreadRecord{}, domain.StorageError("select thread", err)
	}
	t.PublishedAt = parseTime(published)
	return t, nil
}

// FindComment looks a comment up by its namespaced id.
func (s *SQLiteStore) FindComment(ctx context.Context, commentID string) (domain.CommentRecord, error) {
	query, args, err := sq.Select("comment_id", "author", "message", "created_at", "url", "category", "thread_url").
		From("comments").
		Where(sq.Eq{"comment_id": commentID}).
		ToSql()
	if err != nil {
		return domain.CommentRecord{}, fmt.Errorf("build select comment: %w", err)
	}

	var (
		c       domain.CommentRecord
		created string
	)
	err = s.db.QueryRowContext(ctx, query, args...).
		Scan(&c.CommentID, &c.Author, &c.Message, &created, &c.URL, &c.ParentCategory, &c.ParentLink)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CommentRecord{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.CommentRecord{}, domain.StorageError("select comment", err)
	}
	c.CreatedAt = parseTime(created)
	return c, nil
}

// Stats counts stored records.
func (s *SQLiteStore) Stats(ctx context.Context) (ports.StoreStats, error) {
	var stats ports.StoreStats
	if err := s.count(ctx, "threads", &stats.Threads); err != nil {
		return stats, err
	}
	if err := s.count(ctx, "comments", &stats.Comments); err != nil {
		return stats, err
	}
	return stats, nil
}

func (s *SQLiteStore) count(ctx context.Context, table string, n *int64) error {
	query, args, err := sq.Select("COUNT(*)").From(table).ToSql()
	if err != nil {
		return fmt.Errorf("build count %s: %w", table, err)
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(n); err != nil {
		return domain.StorageError("count "+table, err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return domain.StorageError("ping sqlite", err)
	}
	return nil
}

func (s *SQLiteStore) Close(context.Context) error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(v string) time.Time {
	t, err := time.Parse(sqliteTimeLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SchemaVersion applies any pending migration and reports the resulting version.
func (s *SQLiteStore) SchemaVersion() (uint, bool, error) {
	return MigrateSQLite(s.db)
}
