package acctlock

import "fmt"

// Mode 锁模式
type Mode int

const (
	// Read 共享锁，多个读者可同时持有
	Read Mode = iota + 1
	// Write 独占锁
	Write
)

func (m Mode) String() string {
	switch m {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

func (m Mode) valid() bool {
	return m == Read || m == Write
}

// Handle 一次成功获取锁的凭证，只能由签发它的 Manager 释放一次
type Handle struct {
	id    uint64
	key   string
	mode  Mode
	mgr   *Manager
	entry *entry
}

// Key 返回锁的 key
func (h *Handle) Key() string {
	return h.key
}

// Mode 返回持有的锁模式
func (h *Handle) Mode() Mode {
	return h.mode
}
