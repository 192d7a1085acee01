package txexec

import (
	"github.com/ceyewan/ledger/metrics"
	"github.com/ceyewan/ledger/xerrors"
)

const (
	outcomeCommit       = "commit"
	outcomeRollback     = "rollback"
	outcomeBeginFailed  = "begin_failed"
	outcomeCommitFailed = "commit_failed"

	// 只出现在 Span 上，未进入事务
	outcomeLockFailed = "lock_failed"
)

type txMetrics struct {
	total    metrics.Counter
	duration metrics.Histogram
}

func newTxMetrics(meter metrics.Meter) (*txMetrics, error) {
	total, err := meter.Counter("txexec_tx_total", "事务执行次数")
	if err != nil {
		return nil, xerrors.Wrap(err, "txexec: create metrics")
	}
	duration, err := meter.Histogram("txexec_duration_seconds", "用例执行耗时（含等锁）", metrics.WithUnit("s"))
	if err != nil {
		return nil, xerrors.Wrap(err, "txexec: create metrics")
	}
	return &txMetrics{total: total, duration: duration}, nil
}
