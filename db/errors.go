package db

import "github.com/ceyewan/ledger/xerrors"

var (
	// ErrNotConnected 连接器尚未 Connect
	ErrNotConnected = xerrors.New("db: connector not connected")

	// ErrTxDone 事务已提交或回滚
	ErrTxDone = xerrors.New("db: transaction already finished")
)
