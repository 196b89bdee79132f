package scanner

import (
	"fmt"
	"sort"
	"sync"

	"ForumWatcher/internal/domain"
)

// Parser turns a raw source payload into candidate records. Implementations are stateless.
type Parser interface {
	Name() string
	Parse(src domain.Source, raw []byte) (domain.Batch, error)
}

// Registry keeps a mapping from source kinds to their parsers.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

// NewRegistry builds a registry with the given parsers.
func NewRegistry(parsers ...Parser) *Registry {
	r := &Registry{parsers: map[string]Parser{}}
	for _, p := range parsers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces a parser implementation.
func (r *Registry) Register(parser Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.parsers == nil {
		r.parsers = map[string]Parser{}
	}
	r.parsers[parser.Name()] = parser
}

// Resolve returns a parser by kind or an error if it is absent.
func (r *Registry) Resolve(kind string) (Parser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if parser, ok := r.parsers[kind]; ok {
		return parser, nil
	}
	return nil, fmt.Errorf("parser %s is not registered", kind)
}

// Kinds lists registered kinds in sorted order.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.parsers))
	for k := range r.parsers {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
