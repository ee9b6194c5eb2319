package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// StatsRepository answers the read-only aggregate queries of the admin
// dashboard.
type StatsRepository struct {
	q querier
}

// NewStatsRepository constructs a StatsRepository.
func NewStatsRepository(db *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{q: querier{db: db}}
}

func (r *StatsRepository) count(ctx context.Context, what, sql string) (int, error) {
	var n int
	if err := r.q.queryRow(ctx, sql).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", what, classify(err))
	}
	return n, nil
}

// CountUsers counts every account, soft-deleted ones included.
func (r *StatsRepository) CountUsers(ctx context.Context) (int, error) {
	return r.count(ctx, "users", `SELECT COUNT(*) FROM users`)
}

func (r *StatsRepository) CountEvents(ctx context.Context) (int, error) {
	return r.count(ctx, "events", `SELECT COUNT(*) FROM events`)
}

// CountBookings counts ledger entries of any status.
func (r *StatsRepository) CountBookings(ctx context.Context) (int, error) {
	return r.count(ctx, "bookings", `SELECT COUNT(*) FROM bookings`)
}

// ConfirmedRevenue sums total_price over confirmed bookings only.
func (r *StatsRepository) ConfirmedRevenue(ctx context.Context) (int64, error) {
	var total int64
	err := r.q.queryRow(ctx,
		`SELECT COALESCE(SUM(total_price), 0)::BIGINT FROM bookings WHERE status = 'confirmed'`,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum revenue: %w", classify(err))
	}
	return total, nil
}
