package service

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Shivanand-hulikatti/event-booking/internal/clock"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// StatsStore answers the dashboard aggregates.
type StatsStore interface {
	CountUsers(ctx context.Context) (int, error)
	CountEvents(ctx context.Context) (int, error)
	CountBookings(ctx context.Context) (int, error)
	ConfirmedRevenue(ctx context.Context) (int64, error)
}

// AdminService backs the admin dashboard. It only reads the ledger and the
// catalog; account moderation never touches bookings.
type AdminService struct {
	users  UserStore
	stats  StatsStore
	clock  clock.Clock
	logger *slog.Logger
}

func NewAdminService(users UserStore, stats StatsStore, clk clock.Clock, logger *slog.Logger) *AdminService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminService{users: users, stats: stats, clock: clk, logger: logger}
}

// Stats returns platform totals. Revenue counts confirmed bookings only.
func (s *AdminService) Stats(ctx context.Context) (model.Stats, error) {
	var out model.Stats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		out.TotalUsers, err = s.stats.CountUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.TotalEvents, err = s.stats.CountEvents(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.TotalBookings, err = s.stats.CountBookings(gctx)
		return err
	})
	g.Go(func() (err error) {
		out.TotalRevenue, err = s.stats.ConfirmedRevenue(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Stats{}, translate("admin stats", "stats", "", err)
	}
	return out, nil
}

// ListUsers returns every account, suspended and soft-deleted ones included.
func (s *AdminService) ListUsers(ctx context.Context) ([]model.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, translate("list users", "user", "", err)
	}
	return users, nil
}

// ToggleUserActive suspends an active account or reactivates a suspended one.
func (s *AdminService) ToggleUserActive(ctx context.Context, id string) (model.User, error) {
	user, err := s.users.ToggleUserActive(ctx, id)
	if err != nil {
		return model.User{}, translate("toggle user", "user", id, err)
	}
	s.logger.Info("user status updated", "user_id", id, "is_active", user.IsActive)
	return user, nil
}

// DeleteUser soft-deletes an account. Its bookings stay in the ledger.
func (s *AdminService) DeleteUser(ctx context.Context, id string) error {
	if err := s.users.SoftDeleteUser(ctx, id, s.clock.Now()); err != nil {
		return translate("delete user", "user", id, err)
	}
	s.logger.Info("user suspended", "user_id", id)
	return nil
}
