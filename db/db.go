// Package db 提供基于 GORM 的数据库组件，并实现 txexec.Provider。
//
// 事务通过 context 传播：Begin 返回的 ctx 携带事务，
// 之后凡是经由 DB(ctx) 发出的查询都会加入该事务，仓储层无需感知事务边界。
//
// 基本使用：
//
//	conn, _ := connector.NewSQLite(&cfg.SQLite, connector.WithLogger(logger))
//	defer conn.Close()
//	_ = conn.Connect(ctx)
//
//	database, _ := db.New(conn, &db.Config{Driver: "sqlite"}, db.WithLogger(logger))
//	_ = database.Migrate(ctx, &asset.Account{})
//
//	exec, _ := txexec.New(locks, database, &txexec.Config{})
//
// db 组件只借用连接器的连接，Close 不会关闭底层连接。
package db

import (
	"context"
	"fmt"
	"sync/atomic"

	"gorm.io/gorm"

	"github.com/ceyewan/ledger/clog"
	"github.com/ceyewan/ledger/connector"
	"github.com/ceyewan/ledger/txexec"
	"github.com/ceyewan/ledger/xerrors"
)

// DB 数据库组件
type DB interface {
	// DB 返回绑定 ctx 的 *gorm.DB；ctx 携带事务时返回该事务
	DB(ctx context.Context) *gorm.DB

	// Begin 开启事务，返回携带事务的 ctx
	// ctx 已携带事务时创建保存点，Rollback 只回滚到该保存点
	Begin(ctx context.Context) (context.Context, txexec.Tx, error)

	// Transaction 在事务中执行 fn，fn 返回错误时回滚
	Transaction(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) error

	// Migrate 自动迁移表结构
	Migrate(ctx context.Context, models ...any) error

	// Close 关闭组件，不关闭连接器
	Close() error
}

type txKey struct{}

type database struct {
	client    *gorm.DB
	driver    string
	logger    clog.Logger
	savepoint atomic.Uint64
}

// New 创建数据库组件，conn 必须已经 Connect
func New(conn connector.SQLConnector, cfg *Config, opts ...Option) (DB, error) {
	if conn == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "db: connector is required")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Driver != conn.Driver() {
		return nil, xerrors.Wrapf(xerrors.ErrInvalidInput, "db: driver %q does not match connector %q", cfg.Driver, conn.Driver())
	}

	client := conn.GetClient()
	if client == nil {
		return nil, xerrors.Wrapf(ErrNotConnected, "connector[%s]", conn.Name())
	}

	o := &options{logger: clog.Discard()}
	for _, opt := range opts {
		opt(o)
	}

	return &database{
		client: client,
		driver: cfg.Driver,
		logger: o.logger,
	}, nil
}

func (d *database) DB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return d.client.WithContext(ctx)
}

func (d *database) Begin(ctx context.Context) (context.Context, txexec.Tx, error) {
	if outer, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		name := fmt.Sprintf("sp_%d", d.savepoint.Add(1))
		if err := outer.SavePoint(name).Error; err != nil {
			return ctx, nil, xerrors.Wrapf(err, "db: savepoint %s", name)
		}
		return ctx, &gormTx{db: outer, savepoint: name}, nil
	}

	tx := d.client.WithContext(ctx).Begin()
	if tx.Error != nil {
		return ctx, nil, xerrors.Wrap(tx.Error, "db: begin")
	}
	return context.WithValue(ctx, txKey{}, tx), &gormTx{db: tx}, nil
}

func (d *database) Transaction(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) error {
	return d.DB(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx), tx)
	})
}

func (d *database) Migrate(ctx context.Context, models ...any) error {
	if err := d.DB(ctx).AutoMigrate(models...); err != nil {
		return xerrors.Wrap(err, "db: migrate")
	}
	d.logger.Info("schema migrated", clog.String("driver", d.driver), clog.Int("models", len(models)))
	return nil
}

func (d *database) Close() error {
	return nil
}

// gormTx 实现 txexec.Tx
type gormTx struct {
	db        *gorm.DB
	savepoint string
	done      atomic.Bool
}

func (t *gormTx) Commit() error {
	if !t.done.CompareAndSwap(false, true) {
		return ErrTxDone
	}
	if t.savepoint != "" {
		return nil
	}
	return t.db.Commit().Error
}

func (t *gormTx) Rollback() error {
	if !t.done.CompareAndSwap(false, true) {
		return ErrTxDone
	}
	if t.savepoint != "" {
		return t.db.RollbackTo(t.savepoint).Error
	}
	return t.db.Rollback().Error
}
