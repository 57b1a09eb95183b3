package persistence

import (
	"context"
	"fmt"
	"time"

	"sorter_server/core/domain"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
)

// ProfileAdapter implements out.FolderProfileRepository using PostgreSQL.
type ProfileAdapter struct {
	db *sqlx.DB
}

// NewProfileAdapter creates a new ProfileAdapter.
func NewProfileAdapter(db *sqlx.DB) *ProfileAdapter {
	return &ProfileAdapter{db: db}
}

type profileRow struct {
	Name      string    `db:"name"`
	Centroid  []byte    `db:"centroid"` // JSONB
	UpdatedAt time.Time `db:"updated_at"`
}

func (r *profileRow) toEntity() (domain.FolderProfile, error) {
	profile := domain.FolderProfile{Name: r.Name, UpdatedAt: r.UpdatedAt}
	if len(r.Centroid) > 0 {
		if err := json.Unmarshal(r.Centroid, &profile.Centroid); err != nil {
			return domain.FolderProfile{}, fmt.Errorf("decode centroid: %w", err)
		}
	}
	return profile, nil
}

// List returns every learned folder profile.
func (a *ProfileAdapter) List(ctx context.Context) ([]domain.FolderProfile, error) {
	var rows []profileRow
	query := `SELECT * FROM folder_profiles ORDER BY name ASC`
	if err := a.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list folder profiles: %w", err)
	}
	profiles := make([]domain.FolderProfile, 0, len(rows))
	for i := range rows {
		profile, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	return profiles, nil
}

// Upsert stores the centroid for a folder, replacing any previous one.
func (a *ProfileAdapter) Upsert(ctx context.Context, name string, centroid []float64) error {
	payload, _ := json.Marshal(centroid)
	query := `
		INSERT INTO folder_profiles (name, centroid, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (name) DO UPDATE
		SET centroid = EXCLUDED.centroid, updated_at = NOW()`

	if _, err := a.db.ExecContext(ctx, query, name, payload); err != nil {
		return fmt.Errorf("failed to upsert folder profile: %w", err)
	}
	return nil
}
