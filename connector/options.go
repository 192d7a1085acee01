package connector

import (
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/ledger/clog"
)

type options struct {
	logger        clog.Logger
	slowThreshold time.Duration
	silent        bool
	tracer        oteltrace.TracerProvider
}

// Option 配置连接器的选项
type Option func(*options)

// WithLogger 设置日志记录器，SQL 日志也会写入该 Logger
func WithLogger(logger clog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger.WithNamespace("connector")
		}
	}
}

// WithSlowThreshold 设置慢查询阈值，默认 200ms
func WithSlowThreshold(d time.Duration) Option {
	return func(o *options) {
		o.slowThreshold = d
	}
}

// WithSilentMode 关闭 SQL 日志，连接器自身的日志不受影响
func WithSilentMode() Option {
	return func(o *options) {
		o.silent = true
	}
}

// WithTracerProvider 为每条 SQL 生成 Span（otelgorm），不设置时不追踪 SQL
func WithTracerProvider(tp oteltrace.TracerProvider) Option {
	return func(o *options) {
		o.tracer = tp
	}
}

func applyOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = clog.Discard()
	}
	if o.slowThreshold <= 0 {
		o.slowThreshold = 200 * time.Millisecond
	}
	return o
}
