// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/Shivanand-hulikatti/event-booking/internal/clock"
	"github.com/Shivanand-hulikatti/event-booking/internal/config"
	"github.com/Shivanand-hulikatti/event-booking/internal/database"
	"github.com/Shivanand-hulikatti/event-booking/internal/handler"
	"github.com/Shivanand-hulikatti/event-booking/internal/model"
	"github.com/Shivanand-hulikatti/event-booking/internal/repository"
	"github.com/Shivanand-hulikatti/event-booking/internal/service"
)

// stores is the persistence each service needs, satisfied either by the
// Postgres repositories or by one MemoryStore.
type stores struct {
	events service.EventStore
	ledger service.Ledger
	users  service.UserStore
	stats  service.StatsStore
	close  func()
}

func main() {
	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	pflag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	if cfg.Storage.Backend == config.BackendMemory {
		logger.Warn("using in-memory storage; data is lost on restart")
		mem := repository.NewMemoryStore()
		return &stores{events: mem, ledger: mem, users: mem, stats: mem, close: func() {}}, nil
	}

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("connected to postgres")

	return &stores{
		events: repository.NewEventRepository(pool),
		ledger: repository.NewBookingRepository(pool),
		users:  repository.NewUserRepository(pool),
		stats:  repository.NewStatsRepository(pool),
		close:  pool.Close,
	}, nil
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	// ── Wire up layers ────────────────────────────────────────────────────
	clk := clock.NewSystem()
	capacity := service.NewCapacity(st.ledger, service.CapacityStrategy(cfg.Booking.CapacityStrategy))
	users := service.NewUserService(st.users, service.NewRolePolicy(cfg.Roles.AdminEmails), clk, logger)

	h := handler.New(handler.Services{
		Events: service.NewEventService(st.events, st.ledger, capacity, clk, logger,
			service.WithLiveWindow(cfg.Booking.LiveWindow),
			service.WithEventOrder(model.EventOrder(cfg.Booking.EventOrder)),
		),
		Bookings: service.NewBookingService(st.ledger, capacity, clk, logger,
			service.WithDuplicatePolicy(service.DuplicatePolicy(cfg.Booking.DuplicatePolicy)),
			service.WithStorageTimeout(cfg.Storage.Timeout),
		),
		Users: users,
		Admin: service.NewAdminService(st.users, st.stats, clk, logger),
	}, logger)
	auth := handler.NewAuthenticator(h, cfg.Identity.Secret, cfg.Identity.Issuer, users)

	srv := &http.Server{
		Addr:         ":" + strings.TrimPrefix(cfg.HTTP.Port, ":"),
		Handler:      handler.NewRouter(h, auth, cfg.HTTP.CORSOrigins),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// ── Start server with graceful shutdown ───────────────────────────────
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			"addr", srv.Addr,
			"storage", cfg.Storage.Backend,
			"capacity_strategy", capacity.Strategy(),
			"duplicate_policy", cfg.Booking.DuplicatePolicy,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
