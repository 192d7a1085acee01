package txexec

import (
	"time"

	"github.com/ceyewan/ledger/xerrors"
)

// Config 执行器配置
type Config struct {
	// LockTimeout 加锁等待上限。0 表示一直等待直到 ctx 结束。
	LockTimeout time.Duration `mapstructure:"lock_timeout" json:"lock_timeout" yaml:"lock_timeout"`
}

func (c *Config) validate() error {
	if c.LockTimeout < 0 {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "txexec: negative lock timeout %s", c.LockTimeout)
	}
	return nil
}
