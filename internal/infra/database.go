package infra

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	"smartstock.app/internal/config"
	"smartstock.app/internal/domain"
	"smartstock.app/internal/model"
	"smartstock.app/internal/supervisor"
)

// PostgresDriver is the backing-store driver the supervisor manages. The
// handle is opened once and re-pinged on later connects; only the
// supervisor calls Connect and Close.
type PostgresDriver struct {
	cfg      config.DatabaseConfig
	interval time.Duration
	logger   *zap.Logger

	mu       sync.RWMutex
	db       *gorm.DB
	migrated bool
}

var _ supervisor.Driver = (*PostgresDriver)(nil)

func NewPostgresDriver(cfg config.DatabaseConfig, sup config.SupervisorConfig, logger *zap.Logger) *PostgresDriver {
	return &PostgresDriver{
		cfg:      cfg,
		interval: sup.HealthInterval,
		logger:   logger.Named("postgres"),
	}
}

func (d *PostgresDriver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		db, err := gorm.Open(postgres.Open(d.cfg.DSN()), &gorm.Config{
			NamingStrategy: schema.NamingStrategy{
				TablePrefix: d.cfg.TablePrefix,
			},
			DisableAutomaticPing: true,
			Logger:               gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		d.db = db
	}

	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	if !d.migrated {
		if err := d.db.WithContext(ctx).AutoMigrate(&model.WatchlistItem{}); err != nil {
			d.logger.Warn("auto migrate failed", zap.Error(err))
		} else {
			d.migrated = true
		}
	}

	d.logger.Info("database connected", zap.String("host", d.cfg.Host), zap.String("dbname", d.cfg.DBName))
	return nil
}

// Watch pings the database every health interval. The first failed ping
// after a healthy one reports Dropped, the first success after that reports
// Restored.
func (d *PostgresDriver) Watch(ctx context.Context, events chan<- supervisor.Event) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		err := d.ping(ctx)
		switch {
		case err != nil && healthy:
			healthy = false
			d.logger.Warn("database unreachable", zap.Error(err))
			if !emit(ctx, events, supervisor.Event{Kind: supervisor.EventDropped, Err: err}) {
				return
			}
		case err == nil && !healthy:
			healthy = true
			d.logger.Info("database reachable again")
			if !emit(ctx, events, supervisor.Event{Kind: supervisor.EventRestored}) {
				return
			}
		}
	}
}

func (d *PostgresDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	d.db = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB returns the shared handle, or nil before the first successful open.
func (d *PostgresDriver) DB() *gorm.DB {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db
}

func (d *PostgresDriver) ping(ctx context.Context) error {
	db := d.DB()
	if db == nil {
		return domain.ErrStoreUnavailable
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, d.interval)
	defer cancel()
	return sqlDB.PingContext(ctx)
}

func emit(ctx context.Context, events chan<- supervisor.Event, ev supervisor.Event) bool {
	select {
	case events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

// WatchlistRepository reads saved symbols through the driver's handle.
type WatchlistRepository struct {
	driver *PostgresDriver
}

func NewWatchlistRepository(driver *PostgresDriver) *WatchlistRepository {
	return &WatchlistRepository{driver: driver}
}

// Symbols returns userID's saved symbols in display order.
func (r *WatchlistRepository) Symbols(ctx context.Context, userID string) ([]string, error) {
	db := r.driver.DB()
	if db == nil {
		return nil, domain.ErrStoreUnavailable
	}

	var items []model.WatchlistItem
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("sorter ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("load watchlist for %s: %w", userID, err)
	}

	symbols := make([]string, 0, len(items))
	for _, item := range items {
		symbols = append(symbols, item.Symbol)
	}
	return symbols, nil
}
