package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kitbuilder587/support-assistant/internal/domain"
)

type MockUsageRepository struct {
	mu      sync.RWMutex
	records []domain.UsageRecord

	// RecordErr - если задан, Record возвращает эту ошибку
	RecordErr error
}

func NewMockUsageRepository() *MockUsageRepository {
	return &MockUsageRepository{}
}

func (m *MockUsageRepository) Record(ctx context.Context, rec *domain.UsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.RecordErr != nil {
		return m.RecordErr
	}

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Mode == "" {
		rec.Mode = domain.ModeChat
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m.records = append(m.records, *rec)
	return nil
}

func (m *MockUsageRepository) ListRecent(ctx context.Context, limit int) ([]domain.UsageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.UsageRecord, len(m.records))
	copy(out, m.records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockUsageRepository) SummaryBySession(ctx context.Context, sessionID string) (*domain.UsageSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := &domain.UsageSummary{SessionID: sessionID}
	var (
		latency time.Duration
		ok      int
	)
	for _, r := range m.records {
		if r.SessionID != sessionID {
			continue
		}
		summary.Calls++
		if r.Status == domain.CallFailed {
			summary.Failed++
		} else {
			latency += r.Latency
			ok++
		}
		summary.Usage = summary.Usage.Add(r.Usage)
		summary.Cost += r.Cost
		if summary.FirstCall.IsZero() || r.CreatedAt.Before(summary.FirstCall) {
			summary.FirstCall = r.CreatedAt
		}
		if r.CreatedAt.After(summary.LastCall) {
			summary.LastCall = r.CreatedAt
		}
	}

	if summary.Calls == 0 {
		return nil, domain.ErrSessionNotFound
	}
	if ok > 0 {
		summary.AvgLatency = latency / time.Duration(ok)
	}
	return summary, nil
}

func (m *MockUsageRepository) Records() []domain.UsageRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.UsageRecord(nil), m.records...)
}

var _ UsageRepository = (*MockUsageRepository)(nil)
