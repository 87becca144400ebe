package service

import (
	"context"
	"time"

	"github.com/bmbank/bmbank-api/internal/domain"
	"github.com/bmbank/bmbank-api/internal/infra/observability"
	"github.com/bmbank/bmbank-api/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var reportTracer = otel.Tracer("service/reporting")

const statsCacheKey = "dashboard"

// ReportingService computes the director dashboard aggregates and serves
// the audit trail. Stats are cached briefly; a failed counter degrades to
// zero instead of failing the whole dashboard.
type ReportingService struct {
	store   port.Store
	cache   port.Cache[*domain.Stats]
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewReportingService creates a new reporting service.
func NewReportingService(store port.Store, cache port.Cache[*domain.Stats], metrics *observability.Metrics, logger *zap.Logger) *ReportingService {
	return &ReportingService{store: store, cache: cache, metrics: metrics, logger: logger}
}

// Stats returns the dashboard counters. The six aggregates run
// concurrently; "today" starts at server-local midnight.
func (s *ReportingService) Stats(ctx context.Context) (*domain.Stats, error) {
	ctx, span := reportTracer.Start(ctx, "ReportingService.Stats")
	defer span.End()

	if cached, ok := s.cache.Get(statsCacheKey); ok {
		s.metrics.IncrCacheHit("stats")
		return cached, nil
	}
	s.metrics.IncrCacheMiss("stats")

	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	stats := &domain.Stats{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(s.counter(gctx, "customers", &stats.TotalCustomers, s.store.CountCustomers))
	g.Go(s.counter(gctx, "accounts", &stats.TotalAccounts, s.store.CountAccounts))
	g.Go(s.counter(gctx, "pending_transactions", &stats.PendingTransactions, s.store.CountPendingTransactions))
	g.Go(s.counter(gctx, "employees", &stats.TotalEmployees, s.store.CountEmployees))
	g.Go(func() error {
		sum, err := s.store.SumBalances(gctx)
		if err != nil {
			s.logger.Warn("stats counter degraded", zap.String("counter", "total_balance"), zap.Error(err))
			return nil
		}
		stats.TotalBalance = sum
		return nil
	})
	g.Go(func() error {
		n, err := s.store.CountTransactionsSince(gctx, dayStart)
		if err != nil {
			s.logger.Warn("stats counter degraded", zap.String("counter", "today_transactions"), zap.Error(err))
			return nil
		}
		stats.TodayTransactions = n
		return nil
	})

	// Degraded counters return nil above, so Wait only fails on
	// context cancellation.
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.cache.Set(statsCacheKey, stats)
	return stats, nil
}

func (s *ReportingService) counter(ctx context.Context, name string, dst *int, fetch func(context.Context) (int, error)) func() error {
	return func() error {
		n, err := fetch(ctx)
		if err != nil {
			s.logger.Warn("stats counter degraded", zap.String("counter", name), zap.Error(err))
			return nil
		}
		*dst = n
		return nil
	}
}

// AuditTrail lists recent audit events, optionally filtered by object.
func (s *ReportingService) AuditTrail(ctx context.Context, objectName string, limit int) ([]domain.AuditEvent, error) {
	ctx, span := reportTracer.Start(ctx, "ReportingService.AuditTrail")
	defer span.End()

	return s.store.ListEvents(ctx, objectName, limit)
}

// OpsSnapshot reports the in-process operational counters.
func (s *ReportingService) OpsSnapshot() *domain.MetricsSnapshot {
	return s.metrics.Snapshot()
}
