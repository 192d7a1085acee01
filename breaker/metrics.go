package breaker

import (
	"github.com/ceyewan/ledger/metrics"
	"github.com/ceyewan/ledger/xerrors"
)

type breakerMetrics struct {
	rejects metrics.Counter
	changes metrics.Counter
}

func newBreakerMetrics(meter metrics.Meter) (*breakerMetrics, error) {
	var c xerrors.Collector
	rejects, err := meter.Counter("breaker_rejects_total", "熔断打开时被拒绝的事务数")
	c.Collect(err)
	changes, err := meter.Counter("breaker_state_changes_total", "熔断状态变更次数")
	c.Collect(err)
	if err := c.Err(); err != nil {
		return nil, xerrors.Wrap(err, "breaker: create metrics")
	}
	return &breakerMetrics{rejects: rejects, changes: changes}, nil
}
