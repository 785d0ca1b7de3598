package repository

import (
	"sync"

	"ExecCore/internal/domain/models"
	domrepo "ExecCore/internal/domain/repository"
)

// RingLedger is a fixed-capacity execution history. When full the oldest
// record is evicted.
type RingLedger struct {
	mu    sync.RWMutex
	buf   []models.ExecutionRecord
	next  int
	count int
	index map[string]int
}

func NewRingLedger(capacity int) *RingLedger {
	if capacity <= 0 {
		capacity = 1000
	}
	return &RingLedger{
		buf:   make([]models.ExecutionRecord, capacity),
		index: make(map[string]int, capacity),
	}
}

func (l *RingLedger) Append(rec models.ExecutionRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count == len(l.buf) {
		delete(l.index, l.buf[l.next].ID)
	} else {
		l.count++
	}
	l.buf[l.next] = rec
	l.index[rec.ID] = l.next
	l.next = (l.next + 1) % len(l.buf)
}

// Recent returns up to limit records, newest first.
func (l *RingLedger) Recent(limit int) []models.ExecutionRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if limit <= 0 || limit > l.count {
		limit = l.count
	}
	out := make([]models.ExecutionRecord, 0, limit)
	for i := 1; i <= limit; i++ {
		pos := (l.next - i + len(l.buf)) % len(l.buf)
		out = append(out, l.buf[pos])
	}
	return out
}

func (l *RingLedger) Get(id string) (models.ExecutionRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pos, ok := l.index[id]
	if !ok {
		return models.ExecutionRecord{}, false
	}
	return l.buf[pos], true
}

func (l *RingLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.count
}

var _ domrepo.Ledger = (*RingLedger)(nil)
