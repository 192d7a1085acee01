package asset

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/ceyewan/ledger/db"
	"github.com/ceyewan/ledger/xerrors"
)

// Repository 账户与出入金的持久化
//
// 所有查询都经由 db.DB(ctx)，在执行器的事务内调用时自动加入该事务。
type Repository struct {
	db db.DB
}

// NewRepository 创建仓储
func NewRepository(database db.DB) *Repository {
	return &Repository{db: database}
}

// Models 返回需要迁移的模型
func Models() []any {
	return []any{&Account{}, &CashInOut{}}
}

// CreateAccount 新建账户
func (r *Repository) CreateAccount(ctx context.Context, acc *Account) error {
	return xerrors.Wrap(r.db.DB(ctx).Create(acc).Error, "create account")
}

// GetAccount 按 ID 查询账户，不存在时返回 ErrAccountNotFound
func (r *Repository) GetAccount(ctx context.Context, id string) (*Account, error) {
	var acc Account
	err := r.db.DB(ctx).Where("id = ?", id).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, xerrors.Wrapf(ErrAccountNotFound, "account: %s", id)
	}
	if err != nil {
		return nil, xerrors.Wrapf(err, "get account %s", id)
	}
	return &acc, nil
}

// AccountExists 账户是否已存在
func (r *Repository) AccountExists(ctx context.Context, id string) (bool, error) {
	var n int64
	if err := r.db.DB(ctx).Model(&Account{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, xerrors.Wrapf(err, "count account %s", id)
	}
	return n > 0, nil
}

// SaveAccount 保存账户的全部字段
func (r *Repository) SaveAccount(ctx context.Context, acc *Account) error {
	return xerrors.Wrapf(r.db.DB(ctx).Save(acc).Error, "save account %s", acc.ID)
}

// CreateCashInOut 新建出入金记录
func (r *Repository) CreateCashInOut(ctx context.Context, cio *CashInOut) error {
	return xerrors.Wrap(r.db.DB(ctx).Create(cio).Error, "create cash in/out")
}

// GetCashInOut 查询账户下的出入金记录，不存在时返回 ErrCashInOutNotFound
func (r *Repository) GetCashInOut(ctx context.Context, accountID, id string) (*CashInOut, error) {
	var cio CashInOut
	err := r.db.DB(ctx).Where("id = ? AND account_id = ?", id, accountID).First(&cio).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, xerrors.Wrapf(ErrCashInOutNotFound, "account: %s, id: %s", accountID, id)
	}
	if err != nil {
		return nil, xerrors.Wrapf(err, "get cash in/out %s", id)
	}
	return &cio, nil
}

// SaveCashInOut 保存出入金记录
func (r *Repository) SaveCashInOut(ctx context.Context, cio *CashInOut) error {
	return xerrors.Wrapf(r.db.DB(ctx).Save(cio).Error, "save cash in/out %s", cio.ID)
}

// PendingWithdrawals 未处理的出金申请总额
func (r *Repository) PendingWithdrawals(ctx context.Context, accountID string) (int64, error) {
	var sum int64
	err := r.db.DB(ctx).Model(&CashInOut{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("account_id = ? AND withdrawal = ? AND status = ?", accountID, true, StatusUnprocessed).
		Scan(&sum).Error
	if err != nil {
		return 0, xerrors.Wrapf(err, "sum pending withdrawals of %s", accountID)
	}
	return sum, nil
}

// FindCashInOut 按条件检索，按申请时间升序
func (r *Repository) FindCashInOut(ctx context.Context, p FindCashInOut) ([]CashInOut, error) {
	q := r.db.DB(ctx).Model(&CashInOut{})
	if p.AccountID != "" {
		q = q.Where("account_id = ?", p.AccountID)
	}
	if p.Currency != "" {
		q = q.Where("currency = ?", p.Currency)
	}
	if len(p.Statuses) > 0 {
		q = q.Where("status IN ?", p.Statuses)
	}
	if !p.From.IsZero() {
		q = q.Where("requested_at >= ?", p.From)
	}
	if !p.To.IsZero() {
		q = q.Where("requested_at < ?", p.To)
	}

	var out []CashInOut
	if err := q.Order("requested_at ASC, id ASC").Find(&out).Error; err != nil {
		return nil, xerrors.Wrap(err, "find cash in/out")
	}
	return out, nil
}
