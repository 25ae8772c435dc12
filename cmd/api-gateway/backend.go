package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/advising-api/internal/handler"
	"github.com/noah-isme/advising-api/internal/models"
	"github.com/noah-isme/advising-api/internal/repository"
	"github.com/noah-isme/advising-api/internal/service"
	"github.com/noah-isme/advising-api/pkg/config"
	"github.com/noah-isme/advising-api/pkg/database"
)

type ledgerBackend interface {
	WithinTx(ctx context.Context, op string, fn func(tx repository.LedgerTx) error) error
}

type entryStore interface {
	ListRange(ctx context.Context, teacherID string, from, to models.Date) ([]models.AvailabilityDetail, error)
	ListDay(ctx context.Context, teacherID string, date models.Date) ([]models.AvailabilityDetail, error)
}

type bookingStore interface {
	GetDetail(ctx context.Context, id string) (*models.BookingDetail, error)
	ListForStudent(ctx context.Context, studentID string) ([]models.BookingDetail, error)
	ListForTeacher(ctx context.Context, teacherID string) ([]models.BookingDetail, error)
}

type userStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListByRole(ctx context.Context, role models.UserRole) ([]models.User, error)
}

// backend groups the storage ports the services run on.
type backend struct {
	ledger   ledgerBackend
	entries  entryStore
	bookings bookingStore
	users    userStore
	checks   map[string]handler.Pinger
	close    func() error
}

func openBackend(ctx context.Context, cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) (*backend, error) {
	switch cfg.Ledger.Backend {
	case config.LedgerBackendMemory:
		store := repository.NewMemoryStore(cfg.Ledger.LockTimeout, metrics)
		if cfg.Ledger.SeedFile != "" {
			f, err := os.Open(cfg.Ledger.SeedFile)
			if err != nil {
				return nil, fmt.Errorf("open user seed: %w", err)
			}
			n, err := store.LoadUsers(f)
			_ = f.Close()
			if err != nil {
				return nil, err
			}
			logr.Info("directory seeded", zap.Int("users", n), zap.String("file", cfg.Ledger.SeedFile))
		}
		logr.Warn("using in-memory ledger; data is lost on restart")
		return &backend{
			ledger:   store,
			entries:  store,
			bookings: store,
			users:    store,
			checks:   map[string]handler.Pinger{},
			close:    func() error { return nil },
		}, nil

	case config.LedgerBackendPostgres, "":
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Database.MigrateOnBoot {
			if err := migrate(ctx, db, logr); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		return &backend{
			ledger:   repository.NewPostgresLedger(db, cfg.Ledger.LockTimeout, metrics),
			entries:  repository.NewAvailabilityRepository(db),
			bookings: repository.NewBookingRepository(db),
			users:    repository.NewUserRepository(db),
			checks:   map[string]handler.Pinger{"database": db},
			close:    db.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
}

func migrate(ctx context.Context, db *sqlx.DB, logr *zap.Logger) error {
	migrator, err := database.NewMigrator(db.DB, logr)
	if err != nil {
		return err
	}
	return migrator.Up(ctx)
}
