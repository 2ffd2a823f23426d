package integration

import "sync"

// recordLocks 按记录 ID 加锁,同一记录的变更串行执行,不同记录互不阻塞
type recordLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newRecordLocks() *recordLocks {
	return &recordLocks{entries: make(map[string]*lockEntry)}
}

// Lock 获取记录锁,返回解锁函数
func (l *recordLocks) Lock(recordID string) func() {
	l.mu.Lock()
	entry, ok := l.entries[recordID]
	if !ok {
		entry = &lockEntry{}
		l.entries[recordID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, recordID)
		}
		l.mu.Unlock()
	}
}

func (l *recordLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
