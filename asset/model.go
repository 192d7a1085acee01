package asset

import "time"

// Account 账户余额，金额以最小货币单位存储
type Account struct {
	ID        string `gorm:"primaryKey;size:32"`
	Currency  string `gorm:"size:3;not null"`
	Balance   int64  `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Status 出入金申请状态
type Status string

const (
	StatusUnprocessed Status = "unprocessed"
	StatusProcessed   Status = "processed"
	StatusCancelled   Status = "cancelled"
)

// CashInOut 出入金申请
type CashInOut struct {
	ID          string `gorm:"primaryKey;size:36"`
	AccountID   string `gorm:"size:32;not null;index"`
	Currency    string `gorm:"size:3;not null;index"`
	Amount      int64  `gorm:"not null"`
	Withdrawal  bool   `gorm:"not null"`
	Status      Status `gorm:"size:16;not null;index"`
	RequestedAt time.Time
	UpdatedAt   time.Time
}

// FindCashInOut 出入金申请的检索条件，零值字段不参与过滤
type FindCashInOut struct {
	AccountID string
	Currency  string
	Statuses  []Status
	From      time.Time // RequestedAt >= From
	To        time.Time // RequestedAt < To
}
