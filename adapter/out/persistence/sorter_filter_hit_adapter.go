package persistence

import (
	"context"
	"fmt"

	"sorter_server/core/domain"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
)

// FilterHitAdapter implements out.FilterHitRepository using PostgreSQL.
type FilterHitAdapter struct {
	db *sqlx.DB
}

// NewFilterHitAdapter creates a new FilterHitAdapter.
func NewFilterHitAdapter(db *sqlx.DB) *FilterHitAdapter {
	return &FilterHitAdapter{db: db}
}

// Record appends one keyword-rule routing to the audit log.
func (a *FilterHitAdapter) Record(ctx context.Context, hit *domain.FilterHit) error {
	tags, _ := json.Marshal(hit.AppliedTags)
	terms, _ := json.Marshal(hit.MatchedTerms)

	query := `
		INSERT INTO filter_hits (message_uid, rule_name, src_folder, target_folder,
		                         applied_tags, matched_terms, message_date, matched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := a.db.ExecContext(ctx, query,
		hit.MessageUID,
		hit.RuleName,
		nullable(hit.SrcFolder),
		hit.TargetFolder,
		tags,
		terms,
		hit.MessageDate,
		hit.MatchedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record filter hit: %w", err)
	}
	return nil
}
