package catalog

import (
	"context"
	"sync/atomic"

	"github.com/goccy/go-json"

	"sorter_server/core/domain"
	"sorter_server/core/port/out"
)

// SettingsKey is the settings-repository key holding the catalog document.
const SettingsKey = "FOLDER_CATALOG"

// Store owns the process-wide catalog cache. Reads share one immutable Index;
// writes persist the document and swap in a freshly built index wholesale.
type Store struct {
	repo out.SettingsRepository
	idx  atomic.Pointer[Index]
}

// NewStore creates a store backed by the settings repository.
func NewStore(repo out.SettingsRepository) *Store {
	return &Store{repo: repo}
}

// Index returns the cached index, loading it on first use. A load failure
// yields an empty index so classification degrades instead of failing.
func (s *Store) Index(ctx context.Context) *Index {
	if idx := s.idx.Load(); idx != nil {
		return idx
	}
	idx := s.load(ctx)
	s.idx.Store(idx)
	return idx
}

// Catalog returns the current catalog document.
func (s *Store) Catalog(ctx context.Context) domain.FolderCatalog {
	return s.Index(ctx).catalog
}

// Update persists a new catalog document and replaces the cached index.
func (s *Store) Update(ctx context.Context, catalog domain.FolderCatalog) error {
	catalog.Normalize()
	payload, err := json.Marshal(catalog)
	if err != nil {
		return err
	}
	if err := s.repo.Set(ctx, SettingsKey, string(payload)); err != nil {
		return err
	}
	s.idx.Store(NewIndex(catalog))
	return nil
}

// Invalidate drops the cached index; the next read rebuilds it.
func (s *Store) Invalidate() {
	s.idx.Store(nil)
}

func (s *Store) load(ctx context.Context) *Index {
	raw, ok, err := s.repo.Get(ctx, SettingsKey)
	if err != nil || !ok {
		return NewIndex(domain.FolderCatalog{})
	}
	var catalog domain.FolderCatalog
	if err := json.Unmarshal([]byte(raw), &catalog); err != nil {
		return NewIndex(domain.FolderCatalog{})
	}
	return NewIndex(catalog)
}
