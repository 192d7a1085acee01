package txexec

import (
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/ledger/clog"
	"github.com/ceyewan/ledger/metrics"
)

// Option 配置 Executor 的选项
type Option func(*options)

type options struct {
	logger         clog.Logger
	meter          metrics.Meter
	tracerProvider oteltrace.TracerProvider
	domainErrs     []error
}

// WithLogger 设置日志记录器，自动添加 "txexec" 命名空间
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("txexec")
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

// WithTracerProvider 设置 TracerProvider，默认使用全局 Provider
func WithTracerProvider(tp oteltrace.TracerProvider) Option {
	return func(o *options) {
		if tp != nil {
			o.tracerProvider = tp
		}
	}
}

// WithDomainErrors 注册额外的业务哨兵错误，匹配这些错误时原样返回
//
// 携带错误码（xerrors.WithCode）的错误无需注册。
func WithDomainErrors(errs ...error) Option {
	return func(o *options) {
		o.domainErrs = append(o.domainErrs, errs...)
	}
}
