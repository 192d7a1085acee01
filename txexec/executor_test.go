package txexec

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/ledger/acctlock"
	"github.com/ceyewan/ledger/xerrors"
)

type txKey struct{}

// fakeProvider 记录事务事件，供断言执行顺序
type fakeProvider struct {
	mu        sync.Mutex
	events    []string
	beginErr  error
	commitErr error
	onBegin   func()
	onCommit  func()
}

type fakeTx struct {
	p *fakeProvider
}

func (p *fakeProvider) Begin(ctx context.Context) (context.Context, Tx, error) {
	if p.onBegin != nil {
		p.onBegin()
	}
	p.record("begin")
	if p.beginErr != nil {
		return nil, nil, p.beginErr
	}
	tx := &fakeTx{p: p}
	return context.WithValue(ctx, txKey{}, tx), tx, nil
}

func (t *fakeTx) Commit() error {
	if t.p.onCommit != nil {
		t.p.onCommit()
	}
	t.p.record("commit")
	return t.p.commitErr
}

func (t *fakeTx) Rollback() error {
	t.p.record("rollback")
	return nil
}

func (p *fakeProvider) record(ev string) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

func (p *fakeProvider) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func newExecutor(t *testing.T, p Provider, cfg *Config, opts ...Option) (*Executor, *acctlock.Manager) {
	t.Helper()
	locks, err := acctlock.New(nil)
	require.NoError(t, err)
	exec, err := New(locks, p, cfg, opts...)
	require.NoError(t, err)
	return exec, locks
}

func assertUnlocked(t *testing.T, locks *acctlock.Manager, key string) {
	t.Helper()
	readers, writer, waiting := locks.Stats(key)
	assert.Zero(t, readers)
	assert.False(t, writer)
	assert.Zero(t, waiting)
}

var errNoFunds = xerrors.WithCode(errors.New("insufficient funds"), "asset.insufficient_funds")

func TestNewValidation(t *testing.T) {
	locks, err := acctlock.New(nil)
	require.NoError(t, err)

	_, err = New(nil, &fakeProvider{}, nil)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	_, err = New(locks, nil, nil)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
	_, err = New(locks, &fakeProvider{}, &Config{LockTimeout: -time.Second})
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestRunCommits(t *testing.T) {
	p := &fakeProvider{}
	exec, _ := newExecutor(t, p, nil)

	err := exec.Run(context.Background(), func(ctx context.Context) error {
		assert.NotNil(t, ctx.Value(txKey{}), "work 应收到携带事务的 ctx")
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"begin", "commit"}, p.Events())
}

func TestRunLockedOrdering(t *testing.T) {
	p := &fakeProvider{}
	exec, locks := newExecutor(t, p, nil)

	var heldAtBegin, heldAtCommit bool
	p.onBegin = func() {
		_, heldAtBegin, _ = locks.Stats("acct-1")
	}
	p.onCommit = func() {
		_, heldAtCommit, _ = locks.Stats("acct-1")
	}

	err := exec.RunLocked(context.Background(), "acct-1", acctlock.Write, func(ctx context.Context) error {
		_, writer, _ := locks.Stats("acct-1")
		assert.True(t, writer)
		return nil
	})
	require.NoError(t, err)

	assert.True(t, heldAtBegin, "Begin 之前应已加锁")
	assert.True(t, heldAtCommit, "提交期间应仍持有锁")
	assertUnlocked(t, locks, "acct-1")
	assert.Equal(t, []string{"begin", "commit"}, p.Events())
}

func TestDomainErrorPassesThrough(t *testing.T) {
	p := &fakeProvider{}
	exec, locks := newExecutor(t, p, nil)

	err := exec.RunLocked(context.Background(), "acct-1", acctlock.Write, func(ctx context.Context) error {
		return errNoFunds
	})
	assert.Same(t, errNoFunds, err)
	assert.False(t, IsInvocation(err))
	assert.Equal(t, "asset.insufficient_funds", xerrors.GetCode(err))
	assert.Equal(t, []string{"begin", "rollback"}, p.Events())
	assertUnlocked(t, locks, "acct-1")
}

func TestRegisteredDomainError(t *testing.T) {
	errFrozen := errors.New("account frozen")
	exec, _ := newExecutor(t, &fakeProvider{}, nil, WithDomainErrors(errFrozen))

	err := exec.Run(context.Background(), func(ctx context.Context) error {
		return xerrors.Wrap(errFrozen, "acct-1")
	})
	assert.ErrorIs(t, err, errFrozen)
	assert.False(t, IsInvocation(err))
}

func TestUnexpectedErrorIsWrapped(t *testing.T) {
	p := &fakeProvider{}
	exec, locks := newExecutor(t, p, nil)
	cause := errors.New("disk full")

	err := exec.RunLocked(context.Background(), "acct-1", acctlock.Write, func(ctx context.Context) error {
		return cause
	})

	var ie *InvocationError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, CodeException, ie.Code)
	assert.Equal(t, "run_locked", ie.Op)
	assert.Equal(t, "acct-1", ie.Key)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "error.Exception")
	assert.Equal(t, []string{"begin", "rollback"}, p.Events())
	assertUnlocked(t, locks, "acct-1")
}

func TestInvocationErrorNotDoubleWrapped(t *testing.T) {
	exec, _ := newExecutor(t, &fakeProvider{}, nil)
	inner := &InvocationError{Op: "run", Code: CodeException, Cause: errors.New("inner")}

	err := exec.Run(context.Background(), func(ctx context.Context) error {
		return inner
	})
	assert.Same(t, inner, err)
}

func TestPanicBecomesInvocationError(t *testing.T) {
	p := &fakeProvider{}
	exec, locks := newExecutor(t, p, nil)

	err := exec.RunLocked(context.Background(), "acct-1", acctlock.Write, func(ctx context.Context) error {
		panic("boom")
	})

	var ie *InvocationError
	require.ErrorAs(t, err, &ie)
	assert.Contains(t, ie.Cause.Error(), "boom")
	assert.Equal(t, []string{"begin", "rollback"}, p.Events())
	assertUnlocked(t, locks, "acct-1")
}

func TestCommitFailureReleasesLock(t *testing.T) {
	commitErr := errors.New("commit refused")
	p := &fakeProvider{commitErr: commitErr}
	exec, locks := newExecutor(t, p, nil)

	err := exec.RunLocked(context.Background(), "acct-1", acctlock.Write, func(ctx context.Context) error {
		return nil
	})
	assert.True(t, IsInvocation(err))
	assert.ErrorIs(t, err, commitErr)
	assertUnlocked(t, locks, "acct-1")
}

func TestBeginFailureReleasesLock(t *testing.T) {
	beginErr := errors.New("pool exhausted")
	p := &fakeProvider{beginErr: beginErr}
	exec, locks := newExecutor(t, p, nil)

	called := false
	err := exec.RunLocked(context.Background(), "acct-1", acctlock.Read, func(ctx context.Context) error {
		called = true
		return nil
	})
	assert.False(t, called)
	assert.True(t, IsInvocation(err))
	assert.ErrorIs(t, err, beginErr)
	assertUnlocked(t, locks, "acct-1")
}

func TestLockTimeoutPassesThrough(t *testing.T) {
	p := &fakeProvider{}
	exec, locks := newExecutor(t, p, &Config{LockTimeout: 50 * time.Millisecond})

	holder, err := locks.Acquire(context.Background(), "acct-1", acctlock.Write)
	require.NoError(t, err)
	defer locks.Release(holder)

	err = exec.RunLocked(context.Background(), "acct-1", acctlock.Write, func(ctx context.Context) error {
		t.Error("work 不应被执行")
		return nil
	})
	assert.ErrorIs(t, err, acctlock.ErrLockTimeout)
	assert.False(t, IsInvocation(err))
	assert.Empty(t, p.Events())
}

func TestInvalidLockArgumentsPassThrough(t *testing.T) {
	exec, _ := newExecutor(t, &fakeProvider{}, nil)
	noop := func(ctx context.Context) error { return nil }

	assert.ErrorIs(t, exec.RunLocked(context.Background(), "", acctlock.Write, noop), acctlock.ErrInvalidKey)
	assert.ErrorIs(t, exec.RunLocked(context.Background(), "acct-1", acctlock.Mode(9), noop), acctlock.ErrInvalidMode)
}

func TestCancelledContextWhileWaiting(t *testing.T) {
	exec, locks := newExecutor(t, &fakeProvider{}, nil)

	holder, err := locks.Acquire(context.Background(), "acct-1", acctlock.Write)
	require.NoError(t, err)
	defer locks.Release(holder)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = exec.RunLocked(ctx, "acct-1", acctlock.Write, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// brokenLocker 释放时总是报告非法状态
type brokenLocker struct {
	*acctlock.Manager
}

func (b brokenLocker) Release(h *acctlock.Handle) error {
	_ = b.Manager.Release(h)
	return xerrors.Wrap(acctlock.ErrLockState, "forced")
}

func TestReleaseFailureAfterCommit(t *testing.T) {
	locks, err := acctlock.New(nil)
	require.NoError(t, err)
	exec, err := New(brokenLocker{locks}, &fakeProvider{}, nil)
	require.NoError(t, err)

	err = exec.RunLocked(context.Background(), "acct-1", acctlock.Write, func(ctx context.Context) error {
		return nil
	})
	assert.ErrorIs(t, err, acctlock.ErrLockState)
	assert.False(t, IsInvocation(err))

	// work 与释放都失败时返回 work 的错误
	err = exec.RunLocked(context.Background(), "acct-1", acctlock.Write, func(ctx context.Context) error {
		return errNoFunds
	})
	assert.Same(t, errNoFunds, err)
}

func TestCallReturnsValue(t *testing.T) {
	exec, _ := newExecutor(t, &fakeProvider{}, nil)
	ctx := context.Background()

	v, err := Call(ctx, exec, func(ctx context.Context) (int64, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 42, v)

	v, err = CallLocked(ctx, exec, "acct-1", acctlock.Read, func(ctx context.Context) (int64, error) {
		return 7, errNoFunds
	})
	assert.Same(t, errNoFunds, err)
	assert.Zero(t, v, "失败时返回零值")
}

// 同一账户上的读用例可以并发执行
func TestReadersOverlap(t *testing.T) {
	exec, _ := newExecutor(t, &fakeProvider{}, nil)
	assertOverlap(t, exec, "acct-1", "acct-1", acctlock.Read)
}

// 不同账户上的写用例可以并发执行
func TestDistinctKeysOverlap(t *testing.T) {
	exec, _ := newExecutor(t, &fakeProvider{}, nil)
	assertOverlap(t, exec, "acct-a", "acct-b", acctlock.Write)
}

// assertOverlap 两个用例都必须到达屏障才能结束，串行执行时会超时
func assertOverlap(t *testing.T, exec *Executor, k1, k2 string, mode acctlock.Mode) {
	t.Helper()
	var barrier sync.WaitGroup
	barrier.Add(2)
	reached := make(chan struct{})
	go func() {
		barrier.Wait()
		close(reached)
	}()

	work := func(ctx context.Context) error {
		barrier.Done()
		select {
		case <-reached:
			return nil
		case <-time.After(time.Second):
			return errors.New("peer never entered")
		}
	}

	errs := make(chan error, 2)
	go func() { errs <- exec.RunLocked(context.Background(), k1, mode, work) }()
	go func() { errs <- exec.RunLocked(context.Background(), k2, mode, work) }()
	assert.NoError(t, <-errs)
	assert.NoError(t, <-errs)
}

func TestRunLockedIsMutuallyExclusive(t *testing.T) {
	exec, _ := newExecutor(t, &fakeProvider{}, nil)

	const workers, rounds = 20, 25
	balance := 0
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < rounds; j++ {
				err := exec.RunLocked(context.Background(), "acct-1", acctlock.Write, func(ctx context.Context) error {
					current := balance
					time.Sleep(time.Microsecond)
					balance = current + 1
					return nil
				})
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, workers*rounds, balance)
}
