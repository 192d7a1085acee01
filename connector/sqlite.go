package connector

import (
	"database/sql"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ceyewan/ledger/clog"
	"github.com/ceyewan/ledger/xerrors"
)

// NewSQLite 创建 SQLite 连接器，实际连接在 Connect 时建立
//
// SQLite 同一时刻只允许一个写事务，这里把连接池限制为单连接：
// 并发事务在 database/sql 层排队，而不是返回 "database is locked"。
// 单连接同时保证了内存数据库在连接器关闭前一直存在。
func NewSQLite(cfg *SQLiteConfig, opts ...Option) (SQLConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "sqlite: config is required")
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	return &gormConnector{
		name:   cfg.Name,
		driver: "sqlite",
		dialector: func() gorm.Dialector {
			return sqlite.Open(cfg.Path)
		},
		configure: func(db *sql.DB) {
			db.SetMaxOpenConns(1)
			db.SetMaxIdleConns(1)
			db.SetConnMaxLifetime(0)
		},
		opts: o,
		logger: o.logger.With(
			clog.String("connector", "sqlite"),
			clog.String("name", cfg.Name),
		),
	}, nil
}
