package repository

import (
	"context"

	"github.com/kitbuilder587/support-assistant/internal/domain"
)

// UsageRepository - журнал вызовов LLM: токены, латентность, статус.
// Содержимое диалога сюда не попадает.
type UsageRepository interface {
	Record(ctx context.Context, rec *domain.UsageRecord) error
	ListRecent(ctx context.Context, limit int) ([]domain.UsageRecord, error)
	SummaryBySession(ctx context.Context, sessionID string) (*domain.UsageSummary, error)
}
