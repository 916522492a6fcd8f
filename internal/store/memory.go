package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/pagefly/api"
	"github.com/agentic-research/pagefly/internal/include"
)

// QueryFunc answers author queries for a MemoryStore.
type QueryFunc func(ctx context.Context, query string) ([]api.Row, error)

// MemoryStore is an in-process page store for tests and embedding.
// Queries are delegated to a QueryFunc; without one every query fails.
type MemoryStore struct {
	mu        sync.RWMutex
	pages     map[string]api.Page
	ids       map[string]uint32
	byID      []string
	templates []PageTemplate
	refs      map[string]*roaring.Bitmap
	query     QueryFunc
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pages: make(map[string]api.Page),
		ids:   make(map[string]uint32),
		refs:  make(map[string]*roaring.Bitmap),
	}
}

// SetQueryFunc configures how author queries are answered.
func (s *MemoryStore) SetQueryFunc(fn QueryFunc) {
	s.mu.Lock()
	s.query = fn
	s.mu.Unlock()
}

func (s *MemoryStore) PutPage(_ context.Context, p api.Page) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[p.Name]; !ok {
		s.ids[p.Name] = uint32(len(s.byID))
		s.byID = append(s.byID, p.Name)
	}
	s.pages[p.Name] = p
	return nil
}

func (s *MemoryStore) PutTemplate(_ context.Context, t PageTemplate) error {
	s.mu.Lock()
	s.templates = append(s.templates, t)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) FetchPage(_ context.Context, name string) (api.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pages[name]
	if !ok {
		return api.Page{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return p, nil
}

func (s *MemoryStore) FetchPages(_ context.Context, names []string) ([]api.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []api.Page
	for _, n := range names {
		if p, ok := s.pages[n]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListNames(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var names []string
	for n := range s.pages {
		if underPrefix(n, prefix) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) Execute(ctx context.Context, query string) ([]api.Row, error) {
	s.mu.RLock()
	fn := s.query
	s.mu.RUnlock()
	if fn == nil {
		return nil, errors.New("memory store has no query function")
	}
	return fn(ctx, query)
}

func (s *MemoryStore) Templates(_ context.Context) ([]PageTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]PageTemplate(nil), s.templates...), nil
}

// Reindex rebuilds the back-reference bitmaps from the current pages.
// Script pages never include, so their text is not scanned.
func (s *MemoryStore) Reindex(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs = make(map[string]*roaring.Bitmap)
	for name, p := range s.pages {
		if p.Kind == api.Script {
			continue
		}
		for _, t := range include.Scan(p.Text) {
			target := include.ResolveTarget(name, t)
			bm, ok := s.refs[target]
			if !ok {
				bm = roaring.New()
				s.refs[target] = bm
			}
			bm.Add(s.ids[name])
		}
	}
	return nil
}

func (s *MemoryStore) Dependents(_ context.Context, name string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bm, ok := s.refs[name]
	if !ok {
		return nil, nil
	}
	var out []string
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, s.byID[it.Next()])
	}
	sort.Strings(out)
	return out, nil
}
