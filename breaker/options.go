package breaker

import (
	"github.com/ceyewan/ledger/clog"
	"github.com/ceyewan/ledger/metrics"
)

// Option 配置熔断器的选项
type Option func(*options)

type options struct {
	logger clog.Logger
	meter  metrics.Meter
	name   string
}

// WithLogger 设置日志记录器，自动添加 "breaker" 命名空间
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("breaker")
		}
	}
}

// WithMeter 设置指标收集器
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// WithName 设置熔断器名称，出现在日志中，默认 "db"
func WithName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.name = name
		}
	}
}
