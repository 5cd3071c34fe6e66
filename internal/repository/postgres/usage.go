package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kitbuilder587/support-assistant/internal/domain"
	"github.com/kitbuilder587/support-assistant/internal/repository"
)

type UsageRepo struct {
	db *DB
}

func NewUsageRepo(db *DB) *UsageRepo {
	return &UsageRepo{db: db}
}

func (r *UsageRepo) Record(ctx context.Context, rec *domain.UsageRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Mode == "" {
		rec.Mode = domain.ModeChat
	}

	query := `
		INSERT INTO llm_calls (id, session_id, provider, model, mode, status,
			prompt_tokens, completion_tokens, total_tokens, cost_usd, latency_ms, error_text)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		rec.ID,
		rec.SessionID,
		rec.Provider,
		rec.Model,
		string(rec.Mode),
		string(rec.Status),
		rec.Usage.PromptTokens,
		rec.Usage.CompletionTokens,
		rec.Usage.TotalTokens,
		rec.Cost,
		rec.Latency.Milliseconds(),
		rec.ErrorText,
	).Scan(&rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("record llm call: %w", err)
	}

	return nil
}

func (r *UsageRepo) ListRecent(ctx context.Context, limit int) ([]domain.UsageRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, session_id, provider, model, mode, status,
			prompt_tokens, completion_tokens, total_tokens, cost_usd, latency_ms, error_text, created_at
		FROM llm_calls
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.Pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list llm calls: %w", err)
	}
	defer rows.Close()

	var records []domain.UsageRecord
	for rows.Next() {
		var (
			rec       domain.UsageRecord
			mode      string
			status    string
			latencyMs int64
		)
		if err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.Provider,
			&rec.Model,
			&mode,
			&status,
			&rec.Usage.PromptTokens,
			&rec.Usage.CompletionTokens,
			&rec.Usage.TotalTokens,
			&rec.Cost,
			&latencyMs,
			&rec.ErrorText,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan llm call: %w", err)
		}
		rec.Mode = domain.Mode(mode)
		rec.Status = domain.CallStatus(status)
		rec.Latency = time.Duration(latencyMs) * time.Millisecond
		records = append(records, rec)
	}

	return records, rows.Err()
}

func (r *UsageRepo) SummaryBySession(ctx context.Context, sessionID string) (*domain.UsageSummary, error) {
	query := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE status = 'failed'),
			COALESCE(SUM(prompt_tokens), 0),
			COALESCE(SUM(completion_tokens), 0),
			COALESCE(SUM(total_tokens), 0),
			COALESCE(SUM(cost_usd), 0),
			COALESCE(AVG(latency_ms) FILTER (WHERE status = 'success'), 0)::BIGINT,
			MIN(created_at),
			MAX(created_at)
		FROM llm_calls
		WHERE session_id = $1
		HAVING COUNT(*) > 0
	`

	summary := domain.UsageSummary{SessionID: sessionID}
	var avgLatencyMs int64
	err := r.db.Pool.QueryRow(ctx, query, sessionID).Scan(
		&summary.Calls,
		&summary.Failed,
		&summary.Usage.PromptTokens,
		&summary.Usage.CompletionTokens,
		&summary.Usage.TotalTokens,
		&summary.Cost,
		&avgLatencyMs,
		&summary.FirstCall,
		&summary.LastCall,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("summarize session: %w", err)
	}
	summary.AvgLatency = time.Duration(avgLatencyMs) * time.Millisecond

	return &summary, nil
}

var _ repository.UsageRepository = (*UsageRepo)(nil)
