package domain

// Source kinds understood by the parser registry.
const (
	KindRSSThreads      = "rss-threads"
	KindProfileComments = "profile-comments"
)

// Source describes one polled endpoint.
type Source struct {
	Name      string
	Kind      string
	URL       string
	Category  string
	Namespace string
	Options   map[string]string
}

// Option returns a source option or the fallback when unset.
func (s Source) Option(key, fallback string) string {
	if v, ok := s.Options[key]; ok && v != "" {
		return v
	}
	return fallback
}
