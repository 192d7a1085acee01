// Package asset 实现账户余额与出入金用例。
//
// 每个用例都通过 txexec 执行：修改余额的用例持有账户写锁，只读用例持有读锁，
// 管理端检索不加锁。
package asset

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ceyewan/ledger/acctlock"
	"github.com/ceyewan/ledger/clog"
	"github.com/ceyewan/ledger/txexec"
	"github.com/ceyewan/ledger/xerrors"
)

// Service 资产用例
type Service struct {
	exec   *txexec.Executor
	repo   *Repository
	logger clog.Logger
	now    func() time.Time
}

// Option 配置 Service 的选项
type Option func(*Service)

// WithLogger 设置日志记录器
func WithLogger(l clog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l.WithNamespace("asset")
		}
	}
}

// WithClock 替换时钟
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService 创建资产用例
func NewService(exec *txexec.Executor, repo *Repository, opts ...Option) *Service {
	s := &Service{
		exec:   exec,
		repo:   repo,
		logger: clog.Discard(),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenAccount 开户
func (s *Service) OpenAccount(ctx context.Context, id, currency string) (*Account, error) {
	if len(currency) != 3 {
		return nil, xerrors.Wrapf(ErrInvalidCurrency, "currency: %q", currency)
	}
	return txexec.Call(ctx, s.exec, func(ctx context.Context) (*Account, error) {
		exists, err := s.repo.AccountExists(ctx, id)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, xerrors.Wrapf(ErrAccountExists, "account: %s", id)
		}
		acc := &Account{ID: id, Currency: currency}
		if err := s.repo.CreateAccount(ctx, acc); err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "account opened", clog.String("account", id), clog.String("currency", currency))
		return acc, nil
	})
}

// Deposit 入金，立即计入余额并留下一条已处理的入金记录
func (s *Service) Deposit(ctx context.Context, accountID string, amount int64) error {
	if amount <= 0 {
		return xerrors.Wrapf(ErrInvalidAmount, "amount: %d", amount)
	}
	return s.exec.RunLocked(ctx, accountID, acctlock.Write, func(ctx context.Context) error {
		acc, err := s.repo.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		now := s.now()
		acc.Balance += amount
		if err := s.repo.SaveAccount(ctx, acc); err != nil {
			return err
		}
		return s.repo.CreateCashInOut(ctx, &CashInOut{
			ID:          uuid.NewString(),
			AccountID:   accountID,
			Currency:    acc.Currency,
			Amount:      amount,
			Status:      StatusProcessed,
			RequestedAt: now,
			UpdatedAt:   now,
		})
	})
}

// Balance 查询余额
func (s *Service) Balance(ctx context.Context, accountID string) (int64, error) {
	return txexec.CallLocked(ctx, s.exec, accountID, acctlock.Read, func(ctx context.Context) (int64, error) {
		acc, err := s.repo.GetAccount(ctx, accountID)
		if err != nil {
			return 0, err
		}
		return acc.Balance, nil
	})
}

// RequestWithdrawal 提交出金申请
//
// 可用余额 = 余额 - 未处理的出金申请总额，申请金额不得超过可用余额。
func (s *Service) RequestWithdrawal(ctx context.Context, accountID string, amount int64) (*CashInOut, error) {
	if amount <= 0 {
		return nil, xerrors.Wrapf(ErrInvalidAmount, "amount: %d", amount)
	}
	return txexec.CallLocked(ctx, s.exec, accountID, acctlock.Write, func(ctx context.Context) (*CashInOut, error) {
		acc, err := s.repo.GetAccount(ctx, accountID)
		if err != nil {
			return nil, err
		}
		pending, err := s.repo.PendingWithdrawals(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if available := acc.Balance - pending; available < amount {
			return nil, xerrors.Wrapf(ErrInsufficientFunds, "account: %s, available: %d, requested: %d",
				accountID, available, amount)
		}

		now := s.now()
		cio := &CashInOut{
			ID:          uuid.NewString(),
			AccountID:   accountID,
			Currency:    acc.Currency,
			Amount:      amount,
			Withdrawal:  true,
			Status:      StatusUnprocessed,
			RequestedAt: now,
			UpdatedAt:   now,
		}
		if err := s.repo.CreateCashInOut(ctx, cio); err != nil {
			return nil, err
		}
		s.logger.InfoContext(ctx, "withdrawal requested",
			clog.String("account", accountID), clog.String("cio", cio.ID), clog.Int64("amount", amount))
		return cio, nil
	})
}

// CancelCashInOut 取消未处理的申请
func (s *Service) CancelCashInOut(ctx context.Context, accountID, id string) error {
	return s.exec.RunLocked(ctx, accountID, acctlock.Write, func(ctx context.Context) error {
		cio, err := s.unprocessed(ctx, accountID, id)
		if err != nil {
			return err
		}
		cio.Status = StatusCancelled
		cio.UpdatedAt = s.now()
		return s.repo.SaveCashInOut(ctx, cio)
	})
}

// SettleCashInOut 结算申请：出金从余额扣除，入金计入余额
func (s *Service) SettleCashInOut(ctx context.Context, accountID, id string) error {
	return s.exec.RunLocked(ctx, accountID, acctlock.Write, func(ctx context.Context) error {
		cio, err := s.unprocessed(ctx, accountID, id)
		if err != nil {
			return err
		}
		acc, err := s.repo.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}

		if cio.Withdrawal {
			if acc.Balance < cio.Amount {
				return xerrors.Wrapf(ErrInsufficientFunds, "account: %s, balance: %d, settling: %d",
					accountID, acc.Balance, cio.Amount)
			}
			acc.Balance -= cio.Amount
		} else {
			acc.Balance += cio.Amount
		}
		if err := s.repo.SaveAccount(ctx, acc); err != nil {
			return err
		}

		cio.Status = StatusProcessed
		cio.UpdatedAt = s.now()
		if err := s.repo.SaveCashInOut(ctx, cio); err != nil {
			return err
		}
		s.logger.InfoContext(ctx, "cash in/out settled",
			clog.String("account", accountID), clog.String("cio", id), clog.Int64("balance", acc.Balance))
		return nil
	})
}

// FindCashInOut 管理端检索出入金申请，不加锁
func (s *Service) FindCashInOut(ctx context.Context, p FindCashInOut) ([]CashInOut, error) {
	return txexec.Call(ctx, s.exec, func(ctx context.Context) ([]CashInOut, error) {
		return s.repo.FindCashInOut(ctx, p)
	})
}

func (s *Service) unprocessed(ctx context.Context, accountID, id string) (*CashInOut, error) {
	cio, err := s.repo.GetCashInOut(ctx, accountID, id)
	if err != nil {
		return nil, err
	}
	if cio.Status != StatusUnprocessed {
		return nil, xerrors.Wrapf(ErrAlreadyProcessed, "id: %s, status: %s", id, cio.Status)
	}
	return cio, nil
}
