// Package persistence provides database adapters implementing outbound ports.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sorter_server/core/domain"

	"github.com/goccy/go-json"
	"github.com/jmoiron/sqlx"
)

// SuggestionAdapter implements out.SuggestionRepository using PostgreSQL.
type SuggestionAdapter struct {
	db        *sqlx.DB
	listLimit int
}

// NewSuggestionAdapter creates a new SuggestionAdapter. listLimit bounds the
// open-suggestion listing; zero means unbounded.
func NewSuggestionAdapter(db *sqlx.DB, listLimit int) *SuggestionAdapter {
	return &SuggestionAdapter{db: db, listLimit: listLimit}
}

// suggestionRow represents the database row for suggestions.
type suggestionRow struct {
	ID         string         `db:"id"`
	MessageUID string         `db:"message_uid"`
	SrcFolder  sql.NullString `db:"src_folder"`
	Subject    sql.NullString `db:"subject"`
	FromAddr   sql.NullString `db:"from_addr"`
	Date       sql.NullString `db:"date"`
	ThreadID   sql.NullString `db:"thread_id"`
	Ranked     []byte         `db:"ranked"`   // JSONB
	Category   []byte         `db:"category"` // JSONB
	Tags       []byte         `db:"tags"`     // JSONB
	Proposal   []byte         `db:"proposal"` // JSONB
	Status     string         `db:"status"`
	Decision   sql.NullString `db:"decision"`
	DecidedAt  sql.NullTime   `db:"decided_at"`
	MoveStatus sql.NullString `db:"move_status"`
	MoveError  sql.NullString `db:"move_error"`
	CreatedAt  time.Time      `db:"created_at"`
}

func (r *suggestionRow) toEntity() (*domain.Suggestion, error) {
	s := &domain.Suggestion{
		ID:         r.ID,
		MessageUID: r.MessageUID,
		SrcFolder:  r.SrcFolder.String,
		Subject:    r.Subject.String,
		FromAddr:   r.FromAddr.String,
		Date:       r.Date.String,
		ThreadID:   r.ThreadID.String,
		Status:     r.Status,
		Decision:   r.Decision.String,
		MoveStatus: r.MoveStatus.String,
		MoveError:  r.MoveError.String,
		CreatedAt:  r.CreatedAt,
	}
	if r.DecidedAt.Valid {
		s.DecidedAt = &r.DecidedAt.Time
	}
	if len(r.Ranked) > 0 {
		if err := json.Unmarshal(r.Ranked, &s.Ranked); err != nil {
			return nil, fmt.Errorf("decode ranked: %w", err)
		}
	}
	if len(r.Category) > 0 {
		if err := json.Unmarshal(r.Category, &s.Category); err != nil {
			return nil, fmt.Errorf("decode category: %w", err)
		}
	}
	if len(r.Tags) > 0 {
		if err := json.Unmarshal(r.Tags, &s.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	if len(r.Proposal) > 0 {
		if err := json.Unmarshal(r.Proposal, &s.Proposal); err != nil {
			return nil, fmt.Errorf("decode proposal: %w", err)
		}
	}
	return s, nil
}

// Save upserts a suggestion keyed by message UID. A re-scan of the same
// message replaces the previous classification but keeps the original row id.
func (a *SuggestionAdapter) Save(ctx context.Context, s *domain.Suggestion) error {
	ranked, _ := json.Marshal(s.Ranked)
	category, _ := json.Marshal(s.Category)
	tags, _ := json.Marshal(s.Tags)
	proposal, _ := json.Marshal(s.Proposal)

	query := `
		INSERT INTO suggestions (id, message_uid, src_folder, subject, from_addr, date, thread_id,
		                         ranked, category, tags, proposal, status, move_status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (message_uid) DO UPDATE
		SET src_folder = EXCLUDED.src_folder,
		    subject = EXCLUDED.subject,
		    from_addr = EXCLUDED.from_addr,
		    date = EXCLUDED.date,
		    thread_id = EXCLUDED.thread_id,
		    ranked = EXCLUDED.ranked,
		    category = EXCLUDED.category,
		    tags = EXCLUDED.tags,
		    proposal = EXCLUDED.proposal,
		    status = EXCLUDED.status,
		    move_status = EXCLUDED.move_status,
		    decision = NULL,
		    decided_at = NULL,
		    move_error = NULL`

	_, err := a.db.ExecContext(ctx, query,
		s.ID,
		s.MessageUID,
		nullable(s.SrcFolder),
		nullable(s.Subject),
		nullable(s.FromAddr),
		nullable(s.Date),
		nullable(s.ThreadID),
		ranked,
		category,
		tags,
		proposal,
		s.Status,
		nullable(s.MoveStatus),
		s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save suggestion: %w", err)
	}
	return nil
}

// List returns suggestions newest first. When includeAll is false only open
// ones are returned, capped at the configured limit.
func (a *SuggestionAdapter) List(ctx context.Context, includeAll bool) ([]*domain.Suggestion, error) {
	query := `SELECT * FROM suggestions ORDER BY created_at DESC`
	args := []any{}
	if !includeAll {
		query = `SELECT * FROM suggestions WHERE status = $1 ORDER BY created_at DESC`
		args = append(args, domain.SuggestionOpen)
		if a.listLimit > 0 {
			query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
			args = append(args, a.listLimit)
		}
	}

	var rows []suggestionRow
	if err := a.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list suggestions: %w", err)
	}
	suggestions := make([]*domain.Suggestion, 0, len(rows))
	for i := range rows {
		s, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		suggestions = append(suggestions, s)
	}
	return suggestions, nil
}

// FindByUID retrieves one suggestion by message UID.
func (a *SuggestionAdapter) FindByUID(ctx context.Context, uid string) (*domain.Suggestion, error) {
	var row suggestionRow
	query := `SELECT * FROM suggestions WHERE message_uid = $1`
	if err := a.db.GetContext(ctx, &row, query, uid); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("suggestion %s: %w", uid, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get suggestion: %w", err)
	}
	return row.toEntity()
}

// StatusCounts aggregates suggestions per status.
func (a *SuggestionAdapter) StatusCounts(ctx context.Context) (map[string]int, error) {
	rows := []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}{}
	query := `SELECT status, COUNT(*) AS count FROM suggestions GROUP BY status`
	if err := a.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to count suggestions: %w", err)
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// RecordDecision finalizes a suggestion and returns the updated row.
func (a *SuggestionAdapter) RecordDecision(ctx context.Context, uid, decision string) (*domain.Suggestion, error) {
	query := `
		UPDATE suggestions
		SET status = $2, decision = $3, decided_at = NOW()
		WHERE message_uid = $1`

	result, err := a.db.ExecContext(ctx, query, uid, domain.SuggestionDecided, decision)
	if err != nil {
		return nil, fmt.Errorf("failed to record decision: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return nil, fmt.Errorf("suggestion %s: %w", uid, ErrNotFound)
	}
	return a.FindByUID(ctx, uid)
}

// MarkMoved records a successful move.
func (a *SuggestionAdapter) MarkMoved(ctx context.Context, uid string) error {
	query := `UPDATE suggestions SET move_status = $2, move_error = NULL WHERE message_uid = $1`
	if _, err := a.db.ExecContext(ctx, query, uid, domain.MoveMoved); err != nil {
		return fmt.Errorf("failed to mark moved: %w", err)
	}
	return nil
}

// MarkFailed records a failed move together with the error message.
func (a *SuggestionAdapter) MarkFailed(ctx context.Context, uid, message string) error {
	query := `UPDATE suggestions SET move_status = $2, move_error = $3, status = $4 WHERE message_uid = $1`
	if _, err := a.db.ExecContext(ctx, query, uid, domain.MoveFailed, message, domain.SuggestionError); err != nil {
		return fmt.Errorf("failed to mark failed: %w", err)
	}
	return nil
}

// UpdateProposal replaces the stored proposal, e.g. after accept or reject.
func (a *SuggestionAdapter) UpdateProposal(ctx context.Context, uid string, proposal *domain.Proposal) error {
	payload, _ := json.Marshal(proposal)
	query := `UPDATE suggestions SET proposal = $2 WHERE message_uid = $1`
	result, err := a.db.ExecContext(ctx, query, uid, payload)
	if err != nil {
		return fmt.Errorf("failed to update proposal: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("suggestion %s: %w", uid, ErrNotFound)
	}
	return nil
}

// KnownUIDs returns every message UID a suggestion exists for.
func (a *SuggestionAdapter) KnownUIDs(ctx context.Context) (map[string]bool, error) {
	var uids []string
	query := `SELECT message_uid FROM suggestions`
	if err := a.db.SelectContext(ctx, &uids, query); err != nil {
		return nil, fmt.Errorf("failed to list suggestion uids: %w", err)
	}
	known := make(map[string]bool, len(uids))
	for _, uid := range uids {
		known[uid] = true
	}
	return known, nil
}

func nullable(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}
