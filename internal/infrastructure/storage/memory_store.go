package storage

import (
	"context"
	"sync"

	"ForumWatcher/internal/domain"
	"ForumWatcher/internal/ports"
)

// MemoryStore keeps records in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	threads  map[string]domain.ThreadRecord
	comments map[string]domain.CommentRecord
}

var _ ports.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		threads:  map[string]domain.ThreadRecord{},
		comments: map[string]domain.CommentRecord{},
	}
}

func (m *MemoryStore) PutThreadIfAbsent(_ context.Context, thread domain.ThreadRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.threads[thread.Link]; ok {
		return false, nil
	}
	m.threads[thread.Link] = thread
	return true, nil
}

func (m *MemoryStore) UpsertComment(_ context.Context, comment domain.CommentRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, existed := m.comments[comment.CommentID]
	m.comments[comment.CommentID] = comment
	return !existed, nil
}

func (m *MemoryStore) FindThread(_ context.Context, link string) (domain.ThreadRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.threads[link]
	if !ok {
		return domain.ThreadRecord{}, domain.ErrNotFound
	}
	return t, nil
}

func (m *MemoryStore) FindComment(_ context.Context, commentID string) (domain.CommentRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.comments[commentID]
	if !ok {
		return domain.CommentRecord{}, domain.ErrNotFound
	}
	return c, nil
}

func (m *MemoryStore) Stats(context.Context) (ports.StoreStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return ports.StoreStats{Threads: int64(len(m.threads)), Comments: int64(len(m.comments))}, nil
}

func (m *MemoryStore) Ping(context.Context) error  { return nil }
func (m *MemoryStore) Close(context.Context) error { return nil }
