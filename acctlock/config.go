package acctlock

import (
	"time"

	"github.com/ceyewan/ledger/xerrors"
)

// Config 锁管理器配置
type Config struct {
	// EvictIdle 为 true 时，没有持有者和等待者的 entry 会被移除。
	// 默认 false：entry 首次使用时创建，之后常驻，适合账户数量有界的场景。
	EvictIdle bool `mapstructure:"evict_idle" json:"evict_idle" yaml:"evict_idle"`

	// DefaultTimeout TryAcquire 传入 0 时使用的超时时间 (默认: 3s)
	DefaultTimeout time.Duration `mapstructure:"default_timeout" json:"default_timeout" yaml:"default_timeout"`
}

func (c *Config) setDefaults() {
	if c.DefaultTimeout == 0 {
		c.DefaultTimeout = 3 * time.Second
	}
}

func (c *Config) validate() error {
	if c.DefaultTimeout < 0 {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "acctlock: negative default timeout %s", c.DefaultTimeout)
	}
	return nil
}
