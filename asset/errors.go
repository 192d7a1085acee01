package asset

import "github.com/ceyewan/ledger/xerrors"

// 业务错误均携带 asset.* 错误码，经过执行器时原样返回
var (
	ErrAccountNotFound   = xerrors.Domain("asset.account_not_found", "asset: account not found")
	ErrAccountExists     = xerrors.Domain("asset.account_exists", "asset: account already exists")
	ErrInvalidCurrency   = xerrors.Domain("asset.invalid_currency", "asset: invalid currency")
	ErrInvalidAmount     = xerrors.Domain("asset.invalid_amount", "asset: amount must be positive")
	ErrInsufficientFunds = xerrors.Domain("asset.insufficient_funds", "asset: insufficient funds")
	ErrCashInOutNotFound = xerrors.Domain("asset.cio_not_found", "asset: cash in/out not found")
	ErrAlreadyProcessed  = xerrors.Domain("asset.already_processed", "asset: cash in/out already processed")
)
