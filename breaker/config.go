package breaker

import (
	"time"

	"github.com/ceyewan/ledger/xerrors"
)

// Config 熔断配置
type Config struct {
	// Enabled 只供装配代码判断是否启用，Guard 本身不读取
	Enabled bool `mapstructure:"enabled" json:"enabled" yaml:"enabled"`

	// MaxRequests 半开状态允许通过的请求数，默认 1
	MaxRequests uint32 `mapstructure:"max_requests" json:"max_requests" yaml:"max_requests"`

	// Interval 闭合状态下清空计数的周期，0 表示不清空
	Interval time.Duration `mapstructure:"interval" json:"interval" yaml:"interval"`

	// Timeout 打开状态持续时间，默认 30s
	Timeout time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout"`

	// FailureRatio 失败率阈值，默认 0.6
	FailureRatio float64 `mapstructure:"failure_ratio" json:"failure_ratio" yaml:"failure_ratio"`

	// MinimumRequests 计算失败率所需的最少请求数，默认 10
	MinimumRequests uint32 `mapstructure:"minimum_requests" json:"minimum_requests" yaml:"minimum_requests"`
}

func (c *Config) setDefaults() {
	if c.MaxRequests == 0 {
		c.MaxRequests = 1
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.FailureRatio == 0 {
		c.FailureRatio = 0.6
	}
	if c.MinimumRequests == 0 {
		c.MinimumRequests = 10
	}
}

func (c *Config) validate() error {
	if c.FailureRatio < 0 || c.FailureRatio > 1 {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "breaker: failure_ratio must be within [0, 1], got %v", c.FailureRatio)
	}
	if c.Interval < 0 || c.Timeout < 0 {
		return xerrors.Wrap(xerrors.ErrInvalidInput, "breaker: interval and timeout must not be negative")
	}
	return nil
}
