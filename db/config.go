package db

import "github.com/ceyewan/ledger/xerrors"

// Config DB 组件配置
type Config struct {
	// Driver 数据库驱动："sqlite" 或 "mysql" (默认: "sqlite")
	// 必须与传入的连接器一致
	Driver string `mapstructure:"driver" json:"driver" yaml:"driver"`

	// AutoMigrate 为 true 时由调用方在启动阶段执行 Migrate
	AutoMigrate bool `mapstructure:"auto_migrate" json:"auto_migrate" yaml:"auto_migrate"`
}

func (c *Config) setDefaults() {
	if c.Driver == "" {
		c.Driver = "sqlite"
	}
}

func (c *Config) validate() error {
	if c.Driver != "mysql" && c.Driver != "sqlite" {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "db: unsupported driver %q (must be 'mysql' or 'sqlite')", c.Driver)
	}
	return nil
}
