package connector

import (
	"database/sql"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/ceyewan/ledger/clog"
	"github.com/ceyewan/ledger/xerrors"
)

// NewMySQL 创建 MySQL 连接器，实际连接在 Connect 时建立
func NewMySQL(cfg *MySQLConfig, opts ...Option) (SQLConnector, error) {
	if cfg == nil {
		return nil, xerrors.Wrap(ErrConfig, "mysql: config is required")
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts)
	return &gormConnector{
		name:   cfg.Name,
		driver: "mysql",
		dialector: func() gorm.Dialector {
			return mysql.Open(cfg.dsn())
		},
		configure: func(db *sql.DB) {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
			db.SetMaxOpenConns(cfg.MaxOpenConns)
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		},
		opts: o,
		logger: o.logger.With(
			clog.String("connector", "mysql"),
			clog.String("name", cfg.Name),
			clog.String("host", cfg.Host),
			clog.String("database", cfg.Database),
		),
	}, nil
}
