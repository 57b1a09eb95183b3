package persistence

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ProcessedAdapter implements out.ProcessedRepository using PostgreSQL.
type ProcessedAdapter struct {
	db *sqlx.DB
}

// NewProcessedAdapter creates a new ProcessedAdapter.
func NewProcessedAdapter(db *sqlx.DB) *ProcessedAdapter {
	return &ProcessedAdapter{db: db}
}

// Mark records a UID as handled for a folder. Re-marking is a no-op.
func (a *ProcessedAdapter) Mark(ctx context.Context, folder, uid string) error {
	query := `
		INSERT INTO processed_messages (folder, uid, processed_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (folder, uid) DO NOTHING`

	if _, err := a.db.ExecContext(ctx, query, folder, uid); err != nil {
		return fmt.Errorf("failed to mark processed: %w", err)
	}
	return nil
}

// ByFolders returns the processed UID set per requested folder. Folders with
// no processed messages map to an empty set.
func (a *ProcessedAdapter) ByFolders(ctx context.Context, folders []string) (map[string]map[string]bool, error) {
	result := make(map[string]map[string]bool, len(folders))
	for _, folder := range folders {
		result[folder] = map[string]bool{}
	}
	if len(folders) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`SELECT folder, uid FROM processed_messages WHERE folder IN (?)`, folders)
	if err != nil {
		return nil, fmt.Errorf("failed to build processed query: %w", err)
	}
	query = a.db.Rebind(query)

	rows := []struct {
		Folder string `db:"folder"`
		UID    string `db:"uid"`
	}{}
	if err := a.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list processed messages: %w", err)
	}
	for _, row := range rows {
		if result[row.Folder] == nil {
			result[row.Folder] = map[string]bool{}
		}
		result[row.Folder][row.UID] = true
	}
	return result, nil
}
