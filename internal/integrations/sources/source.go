package sources

import (
	"context"

	"github.com/BearBump/StayScout/internal/models"
)

// Fetcher turns standing search criteria into candidate listings for one
// source. Adding a source is a new implementation plus a Register call, not
// a type switch anywhere else.
type Fetcher interface {
	Fetch(ctx context.Context, criteria models.SearchCriteria) ([]models.Candidate, error)
}

// Registry — отображение имени площадки в её Fetcher. Порядок регистрации
// сохраняется, чтобы проходы по площадкам были детерминированными.
type Registry struct {
	order    []string
	fetchers map[string]Fetcher
}

func NewRegistry() *Registry {
	return &Registry{fetchers: map[string]Fetcher{}}
}

func (r *Registry) Register(name string, f Fetcher) {
	if _, ok := r.fetchers[name]; !ok {
		r.order = append(r.order, name)
	}
	r.fetchers[name] = f
}

func (r *Registry) Get(name string) (Fetcher, bool) {
	f, ok := r.fetchers[name]
	return f, ok
}

func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
