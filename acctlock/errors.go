package acctlock

import "github.com/ceyewan/ledger/xerrors"

var (
	// ErrInvalidKey key 为空
	ErrInvalidKey = xerrors.New("acctlock: invalid key")

	// ErrInvalidMode 模式既不是 Read 也不是 Write
	ErrInvalidMode = xerrors.New("acctlock: invalid mode")

	// ErrLockTimeout TryAcquire 在限定时间内未获得锁
	ErrLockTimeout = xerrors.New("acctlock: lock timeout")

	// ErrLockState 释放了未持有的锁：重复释放、空 Handle 或其他 Manager 签发的 Handle
	ErrLockState = xerrors.New("acctlock: illegal lock state")
)
