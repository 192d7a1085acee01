package asset

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/ledger/acctlock"
	"github.com/ceyewan/ledger/db"
	"github.com/ceyewan/ledger/testkit"
	"github.com/ceyewan/ledger/txexec"
	"github.com/ceyewan/ledger/xerrors"
)

type fixture struct {
	ctx   context.Context
	locks *acctlock.Manager
	exec  *txexec.Executor
	repo  *Repository
	svc   *Service
}

// autocommit 不占用连接的事务提供者：每条语句单独提交，
// 连接池无法把一次读改写整体串行化，并发正确性只能依靠账户锁。
type autocommit struct{}

type autocommitTx struct{}

func (autocommit) Begin(ctx context.Context) (context.Context, txexec.Tx, error) {
	return ctx, autocommitTx{}, nil
}

func (autocommitTx) Commit() error   { return nil }
func (autocommitTx) Rollback() error { return nil }

func newFixture(t *testing.T, execCfg *txexec.Config, opts ...Option) *fixture {
	return buildFixture(t, execCfg, func(database db.DB) txexec.Provider { return database }, opts...)
}

// newAutocommitFixture 执行器不持有数据库事务
func newAutocommitFixture(t *testing.T) *fixture {
	return buildFixture(t, nil, func(db.DB) txexec.Provider { return autocommit{} })
}

func buildFixture(t *testing.T, execCfg *txexec.Config, provider func(db.DB) txexec.Provider, opts ...Option) *fixture {
	t.Helper()
	kit := testkit.NewKit(t)

	database, err := db.New(testkit.NewSQLiteConnector(t), &db.Config{Driver: "sqlite"}, db.WithLogger(kit.Logger))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(kit.Ctx, Models()...))

	locks, err := acctlock.New(nil, acctlock.WithLogger(kit.Logger), acctlock.WithMeter(kit.Meter))
	require.NoError(t, err)
	exec, err := txexec.New(locks, provider(database), execCfg, txexec.WithLogger(kit.Logger), txexec.WithMeter(kit.Meter))
	require.NoError(t, err)

	repo := NewRepository(database)
	return &fixture{
		ctx:   kit.Ctx,
		locks: locks,
		exec:  exec,
		repo:  repo,
		svc:   NewService(exec, repo, append([]Option{WithLogger(kit.Logger)}, opts...)...),
	}
}

func (f *fixture) open(t *testing.T, balance int64) string {
	t.Helper()
	id := "acct-" + testkit.NewID()
	_, err := f.svc.OpenAccount(f.ctx, id, "JPY")
	require.NoError(t, err)
	if balance > 0 {
		require.NoError(t, f.svc.Deposit(f.ctx, id, balance))
	}
	return id
}

func (f *fixture) balance(t *testing.T, id string) int64 {
	t.Helper()
	b, err := f.svc.Balance(f.ctx, id)
	require.NoError(t, err)
	return b
}

func TestOpenAccount(t *testing.T) {
	f := newFixture(t, nil)

	acc, err := f.svc.OpenAccount(f.ctx, "acct-1", "USD")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", acc.ID)
	assert.Zero(t, acc.Balance)

	_, err = f.svc.OpenAccount(f.ctx, "acct-1", "USD")
	assert.ErrorIs(t, err, ErrAccountExists)
	assert.True(t, xerrors.IsDomain(err))

	_, err = f.svc.OpenAccount(f.ctx, "acct-2", "dollar")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
}

func TestBalanceOfUnknownAccount(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.svc.Balance(f.ctx, "missing")
	assert.ErrorIs(t, err, ErrAccountNotFound)
	assert.Equal(t, "asset.account_not_found", xerrors.GetCode(err))
	assert.False(t, txexec.IsInvocation(err))
}

// slowIncrement 读余额、停顿、写回，停顿期间其他写入会被覆盖
func (f *fixture) slowIncrement(id string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		acc, err := f.repo.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		time.Sleep(2 * time.Millisecond)
		acc.Balance++
		return f.repo.SaveAccount(ctx, acc)
	}
}

// incrementConcurrently 两个协程同时开始，各执行 10 次 run
func incrementConcurrently(t *testing.T, run func() error) {
	t.Helper()
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 10; j++ {
				assert.NoError(t, run())
			}
		}()
	}
	close(start)
	wg.Wait()
}

func TestUnlockedIncrementsLoseUpdates(t *testing.T) {
	f := newAutocommitFixture(t)
	id := f.open(t, 100)

	incrementConcurrently(t, func() error {
		return f.exec.Run(f.ctx, f.slowIncrement(id))
	})
	assert.Less(t, f.balance(t, id), int64(120), "无锁时并发读改写会丢失更新")
}

func TestWriteLockedIncrementsKeepEveryUpdate(t *testing.T) {
	f := newAutocommitFixture(t)
	id := f.open(t, 100)

	incrementConcurrently(t, func() error {
		return f.exec.RunLocked(f.ctx, id, acctlock.Write, f.slowIncrement(id))
	})
	assert.EqualValues(t, 120, f.balance(t, id))
}

func TestConcurrentDeposits(t *testing.T) {
	f := newAutocommitFixture(t)
	id := f.open(t, 100)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				assert.NoError(t, f.svc.Deposit(f.ctx, id, 1))
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 120, f.balance(t, id))

	deposits, err := f.svc.FindCashInOut(f.ctx, FindCashInOut{AccountID: id, Statuses: []Status{StatusProcessed}})
	require.NoError(t, err)
	assert.Len(t, deposits, 21)
}

func TestDepositInvalidAmount(t *testing.T) {
	f := newFixture(t, nil)
	id := f.open(t, 0)

	assert.ErrorIs(t, f.svc.Deposit(f.ctx, id, 0), ErrInvalidAmount)
	assert.ErrorIs(t, f.svc.Deposit(f.ctx, id, -5), ErrInvalidAmount)
	assert.ErrorIs(t, f.svc.Deposit(f.ctx, "missing", 5), ErrAccountNotFound)
}

func TestFailureRollsBackAndReleases(t *testing.T) {
	f := newFixture(t, nil)
	id := f.open(t, 100)
	cause := errors.New("ledger write failed")

	err := f.exec.RunLocked(f.ctx, id, acctlock.Write, func(ctx context.Context) error {
		acc, err := f.repo.GetAccount(ctx, id)
		if err != nil {
			return err
		}
		acc.Balance += 50
		if err := f.repo.SaveAccount(ctx, acc); err != nil {
			return err
		}
		return cause
	})
	assert.True(t, txexec.IsInvocation(err))
	assert.ErrorIs(t, err, cause)

	assert.EqualValues(t, 100, f.balance(t, id))
	_, writer, _ := f.locks.Stats(id)
	assert.False(t, writer)
}

func TestLockTimeoutLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t, &txexec.Config{LockTimeout: 50 * time.Millisecond})
	id := f.open(t, 100)

	holder, err := f.locks.Acquire(f.ctx, id, acctlock.Write)
	require.NoError(t, err)
	released := make(chan struct{})
	go func() {
		time.Sleep(200 * time.Millisecond)
		assert.NoError(t, f.locks.Release(holder))
		close(released)
	}()

	err = f.svc.Deposit(f.ctx, id, 10)
	assert.ErrorIs(t, err, acctlock.ErrLockTimeout)
	assert.False(t, txexec.IsInvocation(err))

	<-released
	assert.EqualValues(t, 100, f.balance(t, id))
}

func TestWithdrawalLifecycle(t *testing.T) {
	f := newFixture(t, nil)
	id := f.open(t, 100)

	first, err := f.svc.RequestWithdrawal(f.ctx, id, 60)
	require.NoError(t, err)
	assert.True(t, first.Withdrawal)
	assert.Equal(t, StatusUnprocessed, first.Status)
	assert.Equal(t, "JPY", first.Currency)

	// 可用余额 = 100 - 60
	_, err = f.svc.RequestWithdrawal(f.ctx, id, 50)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = f.svc.RequestWithdrawal(f.ctx, id, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	require.NoError(t, f.svc.CancelCashInOut(f.ctx, id, first.ID))
	assert.ErrorIs(t, f.svc.CancelCashInOut(f.ctx, id, first.ID), ErrAlreadyProcessed)

	second, err := f.svc.RequestWithdrawal(f.ctx, id, 50)
	require.NoError(t, err)
	assert.EqualValues(t, 100, f.balance(t, id), "申请不影响余额")

	require.NoError(t, f.svc.SettleCashInOut(f.ctx, id, second.ID))
	assert.EqualValues(t, 50, f.balance(t, id))
	assert.ErrorIs(t, f.svc.SettleCashInOut(f.ctx, id, second.ID), ErrAlreadyProcessed)

	assert.ErrorIs(t, f.svc.SettleCashInOut(f.ctx, id, "no-such-id"), ErrCashInOutNotFound)
	// 其他账户的申请不可见
	other := f.open(t, 0)
	assert.ErrorIs(t, f.svc.CancelCashInOut(f.ctx, other, second.ID), ErrCashInOutNotFound)
}

func TestSettleCashIn(t *testing.T) {
	f := newFixture(t, nil)
	id := f.open(t, 10)

	now := time.Now().UTC()
	cio := &CashInOut{
		ID:          "cio-in-1",
		AccountID:   id,
		Currency:    "JPY",
		Amount:      30,
		Status:      StatusUnprocessed,
		RequestedAt: now,
		UpdatedAt:   now,
	}
	require.NoError(t, f.exec.Run(f.ctx, func(ctx context.Context) error {
		return f.repo.CreateCashInOut(ctx, cio)
	}))

	require.NoError(t, f.svc.SettleCashInOut(f.ctx, id, cio.ID))
	assert.EqualValues(t, 40, f.balance(t, id))
}

func TestConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	f := newAutocommitFixture(t)
	id := f.open(t, 100)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.RequestWithdrawal(f.ctx, id, 30)
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrInsufficientFunds)
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, accepted)
}

func TestFindCashInOut(t *testing.T) {
	base := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	tick := base
	clock := func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}
	f := newFixture(t, nil, WithClock(clock))

	a := f.open(t, 100)
	b := f.open(t, 100)
	wa, err := f.svc.RequestWithdrawal(f.ctx, a, 10)
	require.NoError(t, err)
	wb, err := f.svc.RequestWithdrawal(f.ctx, b, 20)
	require.NoError(t, err)

	unprocessed, err := f.svc.FindCashInOut(f.ctx, FindCashInOut{Currency: "JPY", Statuses: []Status{StatusUnprocessed}})
	require.NoError(t, err)
	require.Len(t, unprocessed, 2)
	assert.Equal(t, wa.ID, unprocessed[0].ID)
	assert.Equal(t, wb.ID, unprocessed[1].ID)

	onlyB, err := f.svc.FindCashInOut(f.ctx, FindCashInOut{AccountID: b, Statuses: []Status{StatusUnprocessed}})
	require.NoError(t, err)
	require.Len(t, onlyB, 1)
	assert.Equal(t, wb.ID, onlyB[0].ID)

	none, err := f.svc.FindCashInOut(f.ctx, FindCashInOut{Currency: "USD"})
	require.NoError(t, err)
	assert.Empty(t, none)

	// 时间窗口只覆盖 wb 的申请时间
	windowed, err := f.svc.FindCashInOut(f.ctx, FindCashInOut{From: wb.RequestedAt, To: wb.RequestedAt.Add(time.Second)})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, wb.ID, windowed[0].ID)

	all, err := f.svc.FindCashInOut(f.ctx, FindCashInOut{})
	require.NoError(t, err)
	assert.Len(t, all, 4, "两笔入金与两笔出金")
}
