package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"ForumWatcher/internal/domain"
)

type fakeStore struct {
	mu       sync.Mutex
	threads  map[string]domain.ThreadRecord
	comments map[string]domain.CommentRecord
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		threads:  map[string]domain.ThreadRecord{},
		comments: map[string]domain.CommentRecord{},
	}
}

func (s *fakeStore) PutThreadIfAbsent(_ context.Context, t domain.ThreadRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if _, ok := s.threads[t.Link]; ok {
		return false, nil
	}
	s.threads[t.Link] = t
	return true, nil
}

func (s *fakeStore) UpsertComment(_ context.Context, c domain.CommentRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	_, existed := s.comments[c.CommentID]
	s.comments[c.CommentID] = c
	return !existed, nil
}

func (s *fakeStore) Ping(context.Context) error  { return s.err }
func (s *fakeStore) Close(context.Context) error { return nil }

type fakeClassifier struct {
	mu           sync.Mutex
	summary      string
	verdict      string
	err          error
	summarizeIn  []string
	filterCalled []string
}

func (c *fakeClassifier) Summarize(_ context.Context, description string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summarizeIn = append(c.summarizeIn, description)
	if c.err != nil {
		return "", c.err
	}
	return c.summary, nil
}

func (c *fakeClassifier) FilterRelevance(_ context.Context, message string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filterCalled = append(c.filterCalled, message)
	if c.err != nil {
		return "", c.err
	}
	return c.verdict, nil
}

func (c *fakeClassifier) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.summarizeIn) + len(c.filterCalled)
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (n *fakeNotifier) Send(ctx context.Context, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return &domain.NotifyError{Channel: "fake", Err: n.err}
	}
	if err := ctx.Err(); err != nil {
		return &domain.NotifyError{Channel: "fake", Err: err}
	}
	n.sent = append(n.sent, message)
	return nil
}

func (n *fakeNotifier) messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.sent...)
}

type fakeBackend struct {
	reply    string
	err      error
	model    string
	messages []domain.Message
}

func (b *fakeBackend) Invoke(_ context.Context, model string, messages []domain.Message) (string, error) {
	b.model = model
	b.messages = messages
	return b.reply, b.err
}

var errBackendDown = errors.New("backend down")

// gatedClassifier blocks FilterRelevance until release is closed, or fails when ctx ends first.
type gatedClassifier struct {
	entered chan struct{}
	release chan struct{}
	verdict string
}

func newGatedClassifier(verdict string) *gatedClassifier {
	return &gatedClassifier{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
		verdict: verdict,
	}
}

func (c *gatedClassifier) Summarize(ctx context.Context, _ string) (string, error) {
	return c.FilterRelevance(ctx, "")
}

func (c *gatedClassifier) FilterRelevance(ctx context.Context, _ string) (string, error) {
	select {
	case c.entered <- struct{}{}:
	default:
	}
	select {
	case <-c.release:
		return c.verdict, nil
	case <-ctx.Done():
		return "", &domain.ClassificationError{Op: "filter", Err: ctx.Err()}
	}
}

// goDriver runs the job once in a goroutine; Stop waits for it.
type goDriver struct {
	done chan struct{}
}

func (d *goDriver) Start(_ context.Context, job func(time.Time)) error {
	d.done = make(chan struct{})
	go func() {
		defer close(d.done)
		job(time.Now())
	}()
	return nil
}

func (d *goDriver) Stop(ctx context.Context) error {
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
