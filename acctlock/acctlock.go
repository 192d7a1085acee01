// Package acctlock 提供按账户 key 划分的进程内读写锁。
//
// 每个 key 拥有独立的公平读写锁：
//   - 多个 Read 可同时持有，Write 独占
//   - 严格 FIFO：有等待者时新请求一律排队，读请求不会越过排队中的写请求
//   - 不同 key 之间互不影响
//
// 锁不可重入：同一调用链对同一 key 重复获取会死锁（Acquire）或超时（TryAcquire）。
//
// 基本使用：
//
//	locks, _ := acctlock.New(&acctlock.Config{}, acctlock.WithLogger(logger))
//
//	h, err := locks.TryAcquire(ctx, "acct-1", acctlock.Write, 500*time.Millisecond)
//	if err != nil {
//		return err // ErrLockTimeout / ctx.Err()
//	}
//	defer locks.Release(h)
package acctlock

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ceyewan/ledger/clog"
	"github.com/ceyewan/ledger/metrics"
	"github.com/ceyewan/ledger/xerrors"
)

// Manager 账户锁管理器，并发安全
type Manager struct {
	cfg     Config
	entries sync.Map // key -> *entry
	seq     atomic.Uint64
	logger  clog.Logger
	metrics *lockMetrics
}

// New 创建锁管理器
func New(cfg *Config, opts ...Option) (*Manager, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	c := *cfg
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}

	o := &options{
		logger: clog.Discard(),
		meter:  metrics.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}

	lm, err := newLockMetrics(o.meter)
	if err != nil {
		return nil, err
	}

	return &Manager{
		cfg:     c,
		logger:  o.logger,
		metrics: lm,
	}, nil
}

// Acquire 获取 key 上的锁，阻塞直到获得或 ctx 结束
//
// ctx 结束时返回 ctx.Err()，等待者已从队列移除，不会留下任何持有。
func (m *Manager) Acquire(ctx context.Context, key string, mode Mode) (*Handle, error) {
	return m.acquire(ctx, key, mode, nil)
}

// TryAcquire 在 timeout 内获取锁，超时返回 ErrLockTimeout
//
// timeout 为 0 时使用 Config.DefaultTimeout。
// 父 ctx 先结束时返回 ctx.Err() 而不是 ErrLockTimeout。
func (m *Manager) TryAcquire(ctx context.Context, key string, mode Mode, timeout time.Duration) (*Handle, error) {
	if timeout <= 0 {
		timeout = m.cfg.DefaultTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	h, err := m.acquire(ctx, key, mode, timer.C)
	if xerrors.Is(err, ErrLockTimeout) {
		err = xerrors.Wrapf(err, "key: %s, mode: %s, timeout: %s", key, mode, timeout)
	}
	return h, err
}

func (m *Manager) acquire(ctx context.Context, key string, mode Mode, deadline <-chan time.Time) (*Handle, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	if !mode.valid() {
		return nil, xerrors.Wrapf(ErrInvalidMode, "key: %s, mode: %d", key, int(mode))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	for {
		e := m.load(key)
		e.mu.Lock()
		if e.dead {
			e.mu.Unlock()
			continue
		}

		id := m.seq.Add(1)
		h := &Handle{id: id, key: key, mode: mode, mgr: m, entry: e}

		if e.tryGrant(id, mode) {
			e.mu.Unlock()
			m.granted(ctx, h, start)
			return h, nil
		}

		w := &waiter{id: id, mode: mode, ready: make(chan struct{})}
		el := e.enqueue(w)
		e.mu.Unlock()

		select {
		case <-w.ready:
			m.granted(ctx, h, start)
			return h, nil
		case <-ctx.Done():
			m.abandon(e, el, w)
			return nil, ctx.Err()
		case <-deadline:
			m.abandon(e, el, w)
			m.metrics.timeouts.Inc(ctx, metrics.L("mode", mode.String()))
			return nil, ErrLockTimeout
		}
	}
}

// abandon 放弃等待；等待期间若已被授予，则立即归还
func (m *Manager) abandon(e *entry, el *list.Element, w *waiter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancel(el, w)
	m.evictLocked(e)
}

func (m *Manager) granted(ctx context.Context, h *Handle, start time.Time) {
	label := metrics.L("mode", h.mode.String())
	m.metrics.acquired.Inc(ctx, label)
	m.metrics.wait.Record(ctx, time.Since(start).Seconds(), label)
	m.metrics.held.Inc(ctx)
	m.logger.DebugContext(ctx, "lock acquired",
		clog.String("key", h.key),
		clog.String("mode", h.mode.String()),
		clog.Duration("waited", time.Since(start)))
}

// Release 释放一次获取
//
// 重复释放、nil Handle、其他 Manager 签发的 Handle 均返回 ErrLockState，
// 持有计数保持不变。
func (m *Manager) Release(h *Handle) error {
	if h == nil || h.mgr != m || h.entry == nil {
		return m.stateError(h, "handle not issued by this manager")
	}

	e := h.entry
	e.mu.Lock()
	ok := e.release(h.id)
	if ok {
		m.evictLocked(e)
	}
	e.mu.Unlock()

	if !ok {
		return m.stateError(h, "lock not held")
	}

	m.metrics.held.Dec(context.Background())
	m.logger.Debug("lock released",
		clog.String("key", h.key),
		clog.String("mode", h.mode.String()))
	return nil
}

func (m *Manager) stateError(h *Handle, reason string) error {
	key := ""
	if h != nil {
		key = h.key
	}
	m.metrics.stateErrors.Inc(context.Background())
	m.logger.Error("illegal lock release",
		clog.String("key", key),
		clog.String("reason", reason))
	return xerrors.Wrapf(ErrLockState, "key: %s, %s", key, reason)
}

// Len 返回当前 entry 数量
func (m *Manager) Len() int {
	n := 0
	m.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Stats 返回 key 的当前状态快照，key 不存在时返回零值
func (m *Manager) Stats(key string) (readers int, writer bool, waiting int) {
	v, ok := m.entries.Load(key)
	if !ok {
		return 0, false, 0
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.readers, e.writer, e.waiters.Len()
}

// load 返回 key 对应的 entry，不存在时原子地创建
func (m *Manager) load(key string) *entry {
	if v, ok := m.entries.Load(key); ok {
		return v.(*entry)
	}
	v, _ := m.entries.LoadOrStore(key, newEntry(key))
	return v.(*entry)
}

// evictLocked 在开启 EvictIdle 时移除空闲 entry，调用方持有 e.mu
func (m *Manager) evictLocked(e *entry) {
	if !m.cfg.EvictIdle || e.dead || !e.idle() {
		return
	}
	e.dead = true
	m.entries.CompareAndDelete(e.key, e)
}
