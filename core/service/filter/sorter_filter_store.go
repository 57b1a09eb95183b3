package filter

import (
	"context"
	"sync/atomic"

	"github.com/goccy/go-json"

	"sorter_server/core/domain"
	"sorter_server/core/port/out"
)

// SettingsKey is the settings-repository key holding the rule list.
const SettingsKey = "KEYWORD_FILTERS"

// Store owns the process-wide rule cache. Reads share one immutable slice;
// writes persist the document and swap the cache wholesale.
type Store struct {
	repo  out.SettingsRepository
	rules atomic.Pointer[[]domain.KeywordFilterRule]
}

// NewStore creates a store backed by the settings repository.
func NewStore(repo out.SettingsRepository) *Store {
	return &Store{repo: repo}
}

// Rules returns the cached rule list, loading it on first use. A load
// failure yields an empty list so scanning degrades instead of failing.
func (s *Store) Rules(ctx context.Context) []domain.KeywordFilterRule {
	if rules := s.rules.Load(); rules != nil {
		return *rules
	}
	rules := s.load(ctx)
	s.rules.Store(&rules)
	return rules
}

// Update normalizes and persists a new rule list, then replaces the cache.
func (s *Store) Update(ctx context.Context, rules []domain.KeywordFilterRule) error {
	normalized := NormalizeRules(rules)
	payload, err := json.Marshal(normalized)
	if err != nil {
		return err
	}
	if err := s.repo.Set(ctx, SettingsKey, string(payload)); err != nil {
		return err
	}
	s.rules.Store(&normalized)
	return nil
}

// Invalidate drops the cached rules; the next read reloads them.
func (s *Store) Invalidate() {
	s.rules.Store(nil)
}

func (s *Store) load(ctx context.Context) []domain.KeywordFilterRule {
	raw, ok, err := s.repo.Get(ctx, SettingsKey)
	if err != nil || !ok {
		return []domain.KeywordFilterRule{}
	}
	var rules []domain.KeywordFilterRule
	if err := json.Unmarshal([]byte(raw), &rules); err != nil {
		return []domain.KeywordFilterRule{}
	}
	return NormalizeRules(rules)
}
