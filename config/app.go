package config

import (
	"context"

	"github.com/ceyewan/ledger/acctlock"
	"github.com/ceyewan/ledger/breaker"
	"github.com/ceyewan/ledger/clog"
	"github.com/ceyewan/ledger/connector"
	"github.com/ceyewan/ledger/db"
	"github.com/ceyewan/ledger/metrics"
	"github.com/ceyewan/ledger/trace"
	"github.com/ceyewan/ledger/txexec"
	"github.com/ceyewan/ledger/xerrors"
)

// AppConfig ledger 服务的完整配置
//
//	log:
//	  level: info
//	  format: json
//	db:
//	  driver: sqlite
//	  auto_migrate: true
//	sqlite:
//	  path: ledger.db
//	lock:
//	  default_timeout: 3s
//	executor:
//	  lock_timeout: 5s
type AppConfig struct {
	Log      clog.Config            `mapstructure:"log"`
	Metrics  metrics.Config         `mapstructure:"metrics"`
	Trace    trace.Config           `mapstructure:"trace"`
	DB       db.Config              `mapstructure:"db"`
	SQLite   connector.SQLiteConfig `mapstructure:"sqlite"`
	MySQL    connector.MySQLConfig  `mapstructure:"mysql"`
	Lock     acctlock.Config        `mapstructure:"lock"`
	Executor txexec.Config          `mapstructure:"executor"`
	Breaker  breaker.Config         `mapstructure:"breaker"`
}

// AppDefaults 返回 AppConfig 各 key 的默认值
func AppDefaults() map[string]any {
	return map[string]any{
		"log.level":      "info",
		"log.format":     "console",
		"log.output":     "stdout",
		"log.add_source": false,

		"metrics.enabled":      false,
		"metrics.service_name": "ledger",
		"metrics.version":      "dev",
		"metrics.port":         0,
		"metrics.path":         "/metrics",
		"metrics.runtime":      false,

		"trace.enabled":      false,
		"trace.service_name": "ledger",
		"trace.endpoint":     "localhost:4317",
		"trace.sampler":      1.0,
		"trace.batcher":      "batch",
		"trace.insecure":     true,

		"db.driver":       "sqlite",
		"db.auto_migrate": true,

		"sqlite.name": "default",
		"sqlite.path": "ledger.db",

		"mysql.name":     "default",
		"mysql.dsn":      "",
		"mysql.host":     "",
		"mysql.port":     3306,
		"mysql.username": "",
		"mysql.password": "",
		"mysql.database": "ledger",
		"mysql.charset":  "utf8mb4",

		"lock.evict_idle":      false,
		"lock.default_timeout": "3s",

		"executor.lock_timeout": "5s",

		"breaker.enabled":          false,
		"breaker.max_requests":     1,
		"breaker.interval":         "0s",
		"breaker.timeout":          "30s",
		"breaker.failure_ratio":    0.6,
		"breaker.minimum_requests": 10,
	}
}

// Validate 校验跨组件的约束，各组件自身的字段由其构造函数校验
func (c *AppConfig) Validate() error {
	switch c.DB.Driver {
	case "sqlite":
		if c.SQLite.Path == "" {
			return xerrors.Wrap(ErrValidationFailed, "sqlite.path is required when db.driver is sqlite")
		}
	case "mysql":
		if c.MySQL.DSN == "" && c.MySQL.Host == "" {
			return xerrors.Wrap(ErrValidationFailed, "mysql.dsn or mysql.host is required when db.driver is mysql")
		}
	default:
		return xerrors.Wrapf(ErrValidationFailed, "unsupported db.driver %q", c.DB.Driver)
	}
	if c.Lock.DefaultTimeout < 0 {
		return xerrors.Wrap(ErrValidationFailed, "lock.default_timeout must not be negative")
	}
	if c.Executor.LockTimeout < 0 {
		return xerrors.Wrap(ErrValidationFailed, "executor.lock_timeout must not be negative")
	}
	return nil
}

// LoadApp 加载并校验 AppConfig，默认值已由 AppDefaults 注册
func LoadApp(ctx context.Context, cfg *Config, opts ...Option) (*AppConfig, Loader, error) {
	loader, err := New(cfg, append([]Option{WithDefaults(AppDefaults())}, opts...)...)
	if err != nil {
		return nil, nil, err
	}
	if err := loader.Load(ctx); err != nil {
		return nil, nil, err
	}

	var app AppConfig
	if err := loader.Unmarshal(&app); err != nil {
		return nil, nil, err
	}
	if err := app.Validate(); err != nil {
		return nil, nil, err
	}
	return &app, loader, nil
}
