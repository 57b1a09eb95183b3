package out

import (
	"context"
	"time"

	"sorter_server/core/domain"
)

// SuggestionRepository persists classification outcomes.
type SuggestionRepository interface {
	Save(ctx context.Context, s *domain.Suggestion) error
	List(ctx context.Context, includeAll bool) ([]*domain.Suggestion, error)
	FindByUID(ctx context.Context, uid string) (*domain.Suggestion, error)
	StatusCounts(ctx context.Context) (map[string]int, error)
	RecordDecision(ctx context.Context, uid, decision string) (*domain.Suggestion, error)
	MarkMoved(ctx context.Context, uid string) error
	MarkFailed(ctx context.Context, uid, message string) error
	UpdateProposal(ctx context.Context, uid string, proposal *domain.Proposal) error
	KnownUIDs(ctx context.Context) (map[string]bool, error)
}

// FolderProfileRepository persists learned folder centroids.
type FolderProfileRepository interface {
	List(ctx context.Context) ([]domain.FolderProfile, error)
	Upsert(ctx context.Context, name string, centroid []float64) error
}

// ProcessedRepository tracks which UIDs have been handled per folder.
type ProcessedRepository interface {
	Mark(ctx context.Context, folder, uid string) error
	ByFolders(ctx context.Context, folders []string) (map[string]map[string]bool, error)
}

// FilterHitRepository records keyword-rule routings.
type FilterHitRepository interface {
	Record(ctx context.Context, hit *domain.FilterHit) error
}

// SettingsRepository is a key/value store for runtime overrides and the
// catalog and keyword-filter documents.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Cache is a TTL cache used for the suggestion overview.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
