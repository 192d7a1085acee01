package acctlock

import (
	"container/list"
	"sync"
)

// entry 单个 key 的读写锁状态，由自身的 mu 保护
//
// 任意时刻满足：无持有者；或 readers>0 且 !writer；或 writer 且 readers==0。
type entry struct {
	key string

	mu      sync.Mutex
	readers int
	writer  bool
	holders map[uint64]Mode
	waiters list.List // *waiter，按到达顺序
	dead    bool      // 已从 registry 移除，持有该指针的获取者需要重新加载
}

type waiter struct {
	id      uint64
	mode    Mode
	ready   chan struct{}
	granted bool
}

func newEntry(key string) *entry {
	return &entry{
		key:     key,
		holders: make(map[uint64]Mode),
	}
}

func (e *entry) compatible(mode Mode) bool {
	if mode == Write {
		return !e.writer && e.readers == 0
	}
	return !e.writer
}

func (e *entry) grant(id uint64, mode Mode) {
	if mode == Write {
		e.writer = true
	} else {
		e.readers++
	}
	e.holders[id] = mode
}

// tryGrant 队列为空且模式兼容时直接授予。
// 有等待者时一律排队，读请求不会越过排队中的写请求。
func (e *entry) tryGrant(id uint64, mode Mode) bool {
	if e.waiters.Len() > 0 || !e.compatible(mode) {
		return false
	}
	e.grant(id, mode)
	return true
}

func (e *entry) enqueue(w *waiter) *list.Element {
	return e.waiters.PushBack(w)
}

// release 释放 id 对应的持有，返回该持有是否存在
func (e *entry) release(id uint64) bool {
	mode, ok := e.holders[id]
	if !ok {
		return false
	}
	delete(e.holders, id)
	if mode == Write {
		e.writer = false
	} else {
		e.readers--
	}
	e.promote()
	return true
}

// cancel 撤销一个等待者。若它已被授予，则把授予归还。
func (e *entry) cancel(el *list.Element, w *waiter) {
	if w.granted {
		e.release(w.id)
		return
	}
	e.waiters.Remove(el)
	// 队首的写等待者离开后，后面的读等待者可能可以被授予
	e.promote()
}

// promote 按 FIFO 顺序唤醒队首所有可授予的等待者
func (e *entry) promote() {
	for {
		front := e.waiters.Front()
		if front == nil {
			return
		}
		w := front.Value.(*waiter)
		if !e.compatible(w.mode) {
			return
		}
		e.waiters.Remove(front)
		e.grant(w.id, w.mode)
		w.granted = true
		close(w.ready)
	}
}

func (e *entry) idle() bool {
	return len(e.holders) == 0 && e.waiters.Len() == 0
}
