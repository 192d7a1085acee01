package acctlock

import (
	"github.com/ceyewan/ledger/metrics"
	"github.com/ceyewan/ledger/xerrors"
)

type lockMetrics struct {
	acquired    metrics.Counter
	timeouts    metrics.Counter
	stateErrors metrics.Counter
	wait        metrics.Histogram
	held        metrics.Gauge
}

func newLockMetrics(meter metrics.Meter) (*lockMetrics, error) {
	var (
		lm  lockMetrics
		err error
		c   xerrors.Collector
	)
	lm.acquired, err = meter.Counter("acctlock_acquired_total", "成功获取锁的次数")
	c.Collect(err)
	lm.timeouts, err = meter.Counter("acctlock_timeout_total", "获取锁超时的次数")
	c.Collect(err)
	lm.stateErrors, err = meter.Counter("acctlock_state_error_total", "非法释放的次数")
	c.Collect(err)
	lm.wait, err = meter.Histogram("acctlock_wait_seconds", "获取锁的等待耗时", metrics.WithUnit("s"))
	c.Collect(err)
	lm.held, err = meter.Gauge("acctlock_held", "当前持有的锁数量")
	c.Collect(err)
	if err := c.Err(); err != nil {
		return nil, xerrors.Wrap(err, "acctlock: create metrics")
	}
	return &lm, nil
}
