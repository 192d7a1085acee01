package connector

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/gorm"

	"github.com/ceyewan/ledger/clog"
	"github.com/ceyewan/ledger/xerrors"
)

// gormConnector SQLite 与 MySQL 共用的连接管理
type gormConnector struct {
	name      string
	driver    string
	dialector func() gorm.Dialector
	configure func(*sql.DB)
	opts      *options
	logger    clog.Logger

	mu      sync.RWMutex
	db      *gorm.DB
	healthy atomic.Bool
}

func (c *gormConnector) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.db != nil {
		return nil
	}

	c.logger.Info("connecting")

	gormDB, err := gorm.Open(c.dialector(), &gorm.Config{
		Logger: newGormLogger(c.logger, c.opts.slowThreshold, c.opts.silent),
	})
	if err != nil {
		c.logger.Error("failed to open database", clog.Error(err))
		return xerrors.Wrapf(ErrConnection, "%s connector[%s]: %v", c.driver, c.name, err)
	}

	if c.opts.tracer != nil {
		plugin := otelgorm.NewPlugin(
			otelgorm.WithTracerProvider(c.opts.tracer),
			otelgorm.WithDBName(c.name),
			otelgorm.WithoutQueryVariables(),
		)
		if err := gormDB.Use(plugin); err != nil {
			return xerrors.Wrapf(ErrConnection, "%s connector[%s]: tracing: %v", c.driver, c.name, err)
		}
	}

	sqlDB, err := gormDB.DB()
	if err != nil {
		return xerrors.Wrapf(ErrConnection, "%s connector[%s]: %v", c.driver, c.name, err)
	}
	if c.configure != nil {
		c.configure(sqlDB)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		c.logger.Error("failed to ping database", clog.Error(err))
		return xerrors.Wrapf(ErrConnection, "%s connector[%s]: ping: %v", c.driver, c.name, err)
	}

	c.db = gormDB
	c.healthy.Store(true)
	c.logger.Info("connected")
	return nil
}

func (c *gormConnector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.healthy.Store(false)
	if c.db == nil {
		return nil
	}

	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	c.db = nil
	if err := sqlDB.Close(); err != nil {
		c.logger.Error("failed to close database", clog.Error(err))
		return err
	}
	c.logger.Info("closed")
	return nil
}

func (c *gormConnector) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	gormDB := c.db
	c.mu.RUnlock()

	if gormDB == nil {
		c.healthy.Store(false)
		return xerrors.Wrapf(ErrClientNil, "%s connector[%s]", c.driver, c.name)
	}

	sqlDB, err := gormDB.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		c.healthy.Store(false)
		c.logger.Warn("health check failed", clog.Error(err))
		return xerrors.Wrapf(ErrHealthCheck, "%s connector[%s]: %v", c.driver, c.name, err)
	}

	c.healthy.Store(true)
	return nil
}

func (c *gormConnector) IsHealthy() bool {
	return c.healthy.Load()
}

func (c *gormConnector) Name() string {
	return c.name
}

func (c *gormConnector) Driver() string {
	return c.driver
}

func (c *gormConnector) GetClient() *gorm.DB {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.db
}
