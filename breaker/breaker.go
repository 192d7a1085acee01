// Package breaker 为事务提供者加上熔断保护。
//
// 数据库持续故障时，执行器的每个请求都会在 Begin 或 Commit 上等到超时。
// Guard 把一次事务（Begin 到 Commit/Rollback）作为熔断器的一次请求：
// Begin、Commit、Rollback 返回错误记为失败，其余记为成功。
// 熔断打开期间 Begin 直接返回 ErrOpenState，不再访问数据库。
//
// 业务拒绝导致的回滚只要 Rollback 本身成功就记为成功，不会触发熔断。
//
//	provider, _ := breaker.Guard(database, &breaker.Config{
//		Timeout:         30 * time.Second,
//		FailureRatio:    0.6,
//		MinimumRequests: 10,
//	}, breaker.WithLogger(logger))
//	exec, _ := txexec.New(locks, provider, cfg)
package breaker

import (
	"context"
	"sync/atomic"

	"github.com/sony/gobreaker/v2"

	"github.com/ceyewan/ledger/clog"
	"github.com/ceyewan/ledger/metrics"
	"github.com/ceyewan/ledger/txexec"
	"github.com/ceyewan/ledger/xerrors"
)

// State 熔断器状态
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}

// Provider 带熔断的事务提供者，实现 txexec.Provider
type Provider struct {
	name    string
	inner   txexec.Provider
	cb      *gobreaker.TwoStepCircuitBreaker[struct{}]
	logger  clog.Logger
	metrics *breakerMetrics
}

// Guard 用熔断器包装 inner
func Guard(inner txexec.Provider, cfg *Config, opts ...Option) (*Provider, error) {
	if inner == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "breaker: provider is required")
	}
	if cfg == nil {
		return nil, ErrConfigNil
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := &options{logger: clog.Discard(), meter: metrics.Discard(), name: "db"}
	for _, opt := range opts {
		opt(o)
	}

	bm, err := newBreakerMetrics(o.meter)
	if err != nil {
		return nil, err
	}

	p := &Provider{name: o.name, inner: inner, logger: o.logger, metrics: bm}
	p.cb = gobreaker.NewTwoStepCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        o.name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinimumRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: p.onStateChange,
	})
	return p, nil
}

// Begin 熔断打开时返回 ErrOpenState
func (p *Provider) Begin(ctx context.Context) (context.Context, txexec.Tx, error) {
	done, err := p.cb.Allow()
	if err != nil {
		p.metrics.rejects.Inc(ctx)
		return nil, nil, xerrors.Wrapf(ErrOpenState, "%s (%v)", p.name, err)
	}

	txCtx, tx, err := p.inner.Begin(ctx)
	if err != nil {
		done(false)
		return nil, nil, err
	}
	return txCtx, &guardedTx{Tx: tx, done: done}, nil
}

// State 返回当前熔断状态
func (p *Provider) State() State {
	return fromGobreaker(p.cb.State())
}

func (p *Provider) onStateChange(name string, from, to gobreaker.State) {
	p.logger.Warn("circuit breaker state changed",
		clog.String("name", name),
		clog.String("from", fromGobreaker(from).String()),
		clog.String("to", fromGobreaker(to).String()))
	p.metrics.changes.Inc(context.Background(),
		metrics.L("from", fromGobreaker(from).String()),
		metrics.L("to", fromGobreaker(to).String()))
}

// guardedTx 在事务结束时向熔断器报告结果，只报告一次
type guardedTx struct {
	txexec.Tx
	done     func(success bool)
	reported atomic.Bool
}

func (t *guardedTx) Commit() error {
	err := t.Tx.Commit()
	t.report(err == nil)
	return err
}

func (t *guardedTx) Rollback() error {
	err := t.Tx.Rollback()
	t.report(err == nil)
	return err
}

func (t *guardedTx) report(success bool) {
	if t.reported.CompareAndSwap(false, true) {
		t.done(success)
	}
}
