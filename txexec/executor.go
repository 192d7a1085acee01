// Package txexec 在数据库事务中执行用例，可选地先获取账户锁。
//
// 加锁执行的顺序固定为：
//
//	加锁 -> Begin -> work -> Commit/Rollback -> 释放锁
//
// 提交完成之前锁一直被持有，其他请求看不到未提交的中间状态。
// 任何退出路径（work 失败、Commit 失败、panic）都会释放锁。
//
// 基本使用：
//
//	exec, _ := txexec.New(locks, database, &txexec.Config{LockTimeout: time.Second},
//		txexec.WithLogger(logger))
//
//	balance, err := txexec.CallLocked(ctx, exec, accountID, acctlock.Read,
//		func(ctx context.Context) (int64, error) {
//			return repo.Balance(ctx, accountID)
//		})
package txexec

import (
	"context"
	"runtime/debug"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/ceyewan/ledger/acctlock"
	"github.com/ceyewan/ledger/clog"
	"github.com/ceyewan/ledger/metrics"
	"github.com/ceyewan/ledger/trace"
	"github.com/ceyewan/ledger/xerrors"
)

// Tx 一个进行中的事务
type Tx interface {
	Commit() error
	Rollback() error
}

// Provider 事务提供者
//
// Begin 返回的 ctx 携带该事务，work 中的数据访问通过它加入事务。
type Provider interface {
	Begin(ctx context.Context) (context.Context, Tx, error)
}

// Locker 执行器使用的锁能力，*acctlock.Manager 实现了该接口
type Locker interface {
	Acquire(ctx context.Context, key string, mode acctlock.Mode) (*acctlock.Handle, error)
	TryAcquire(ctx context.Context, key string, mode acctlock.Mode, timeout time.Duration) (*acctlock.Handle, error)
	Release(h *acctlock.Handle) error
}

// Executor 事务执行器，并发安全
type Executor struct {
	locks      Locker
	provider   Provider
	cfg        Config
	logger     clog.Logger
	metrics    *txMetrics
	tracer     oteltrace.Tracer
	domainErrs []error
}

// New 创建执行器
func New(locks Locker, provider Provider, cfg *Config, opts ...Option) (*Executor, error) {
	if locks == nil || provider == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "txexec: locker and provider are required")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := &options{
		logger:         clog.Discard(),
		meter:          metrics.Discard(),
		tracerProvider: otel.GetTracerProvider(),
	}
	for _, opt := range opts {
		opt(o)
	}

	tm, err := newTxMetrics(o.meter)
	if err != nil {
		return nil, err
	}

	return &Executor{
		locks:      locks,
		provider:   provider,
		cfg:        *cfg,
		logger:     o.logger,
		metrics:    tm,
		tracer:     o.tracerProvider.Tracer("github.com/ceyewan/ledger/txexec"),
		domainErrs: o.domainErrs,
	}, nil
}

// Run 在事务中执行 work，不加锁
func (e *Executor) Run(ctx context.Context, work func(ctx context.Context) error) error {
	return e.execute(ctx, nil, work)
}

// RunLocked 持有 key 上的锁，在事务中执行 work
func (e *Executor) RunLocked(ctx context.Context, key string, mode acctlock.Mode, work func(ctx context.Context) error) error {
	return e.execute(ctx, &lockSpec{key: key, mode: mode}, work)
}

// Call 在事务中执行 work 并返回其结果，失败时返回零值
func Call[T any](ctx context.Context, e *Executor, work func(ctx context.Context) (T, error)) (T, error) {
	return call(ctx, e, nil, work)
}

// CallLocked 持有 key 上的锁，在事务中执行 work 并返回其结果
func CallLocked[T any](ctx context.Context, e *Executor, key string, mode acctlock.Mode, work func(ctx context.Context) (T, error)) (T, error) {
	return call(ctx, e, &lockSpec{key: key, mode: mode}, work)
}

func call[T any](ctx context.Context, e *Executor, lock *lockSpec, work func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := e.execute(ctx, lock, func(ctx context.Context) error {
		v, err := work(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

type lockSpec struct {
	key  string
	mode acctlock.Mode
}

func (e *Executor) execute(ctx context.Context, lock *lockSpec, work func(ctx context.Context) error) (err error) {
	start := time.Now()
	inv := &InvocationError{Op: "run"}
	var attrs []attribute.KeyValue
	if lock != nil {
		inv = &InvocationError{Op: "run_locked", Key: lock.key}
		attrs = trace.Account(lock.key, lock.mode.String())
	}

	ctx, span := e.tracer.Start(ctx, trace.SpanNameInvocation(inv.Op), oteltrace.WithAttributes(attrs...))
	outcome := outcomeLockFailed
	defer func() {
		e.metrics.duration.Record(ctx, time.Since(start).Seconds(),
			metrics.L("locked", strconv.FormatBool(lock != nil)))
		trace.Finish(span, outcome, ErrorCode(err), err)
	}()

	if lock != nil {
		h, lerr := e.acquire(ctx, lock)
		if lerr != nil {
			return e.translate(ctx, inv, lerr)
		}
		// 在提交或回滚完成之后才释放
		defer func() {
			rerr := e.locks.Release(h)
			if rerr == nil {
				return
			}
			if err == nil {
				err = rerr
				return
			}
			e.logger.ErrorContext(ctx, "release lock after failed work",
				clog.String("key", lock.key), clog.Error(rerr))
		}()
	}

	outcome, err = e.transact(ctx, inv, work)
	return err
}

func (e *Executor) acquire(ctx context.Context, lock *lockSpec) (*acctlock.Handle, error) {
	if e.cfg.LockTimeout > 0 {
		return e.locks.TryAcquire(ctx, lock.key, lock.mode, e.cfg.LockTimeout)
	}
	return e.locks.Acquire(ctx, lock.key, lock.mode)
}

func (e *Executor) transact(ctx context.Context, inv *InvocationError, work func(ctx context.Context) error) (string, error) {
	txCtx, tx, err := e.provider.Begin(ctx)
	if err != nil {
		e.metrics.total.Inc(ctx, metrics.L("outcome", outcomeBeginFailed))
		return outcomeBeginFailed, e.translate(ctx, inv, xerrors.Wrap(err, "begin"))
	}

	if werr := invoke(txCtx, work); werr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			e.logger.ErrorContext(ctx, "rollback failed", clog.Error(rbErr))
		}
		e.metrics.total.Inc(ctx, metrics.L("outcome", outcomeRollback))
		e.logger.WarnContext(ctx, "transaction rolled back",
			clog.String("op", inv.Op), clog.String("key", inv.Key), clog.Error(werr))
		return outcomeRollback, e.translate(ctx, inv, werr)
	}

	if cerr := tx.Commit(); cerr != nil {
		e.metrics.total.Inc(ctx, metrics.L("outcome", outcomeCommitFailed))
		return outcomeCommitFailed, e.translate(ctx, inv, xerrors.Wrap(cerr, "commit"))
	}
	e.metrics.total.Inc(ctx, metrics.L("outcome", outcomeCommit))
	return outcomeCommit, nil
}

// invoke 执行 work，把 panic 转换为错误
func invoke(ctx context.Context, work func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: debug.Stack()}
		}
	}()
	return work(ctx)
}

// translate 业务错误与锁错误原样返回，其余包装为 InvocationError
func (e *Executor) translate(ctx context.Context, inv *InvocationError, err error) error {
	if err == nil || e.passThrough(err) {
		return err
	}

	out := &InvocationError{Op: inv.Op, Key: inv.Key, Code: CodeException, Cause: err}
	fields := []clog.Field{
		clog.String("op", out.Op),
		clog.String("key", out.Key),
		clog.ErrorWithCode(err, CodeException),
	}
	var pe *panicError
	if xerrors.As(err, &pe) {
		fields = append(fields, clog.String("stack", string(pe.stack)))
	}
	e.logger.ErrorContext(ctx, "invocation failed", fields...)
	return out
}
