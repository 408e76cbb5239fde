// Package mempool holds the transactions waiting to be included in a delta.
package mempool

import (
	"errors"
	"sync"

	"github.com/catalyst-network/Catalyst-sub014/src/delta"
)

// ErrFull is returned by Add when the pool reached its capacity.
var ErrFull = errors.New("mempool is full")

// Mempool is an in-memory pool of pending transactions keyed by signature.
type Mempool struct {
	sync.RWMutex
	txs      map[string]*delta.Transaction
	capacity int
}

// NewMempool creates a Mempool holding at most capacity transactions. A zero
// capacity means unbounded.
func NewMempool(capacity int) *Mempool {
	return &Mempool{
		txs:      make(map[string]*delta.Transaction),
		capacity: capacity,
	}
}

// Add inserts a transaction. It returns false if the transaction was already
// pending.
func (m *Mempool) Add(tx *delta.Transaction) (bool, error) {
	m.Lock()
	defer m.Unlock()

	key := tx.Key()
	if _, ok := m.txs[key]; ok {
		return false, nil
	}
	if m.capacity > 0 && len(m.txs) >= m.capacity {
		return false, ErrFull
	}
	m.txs[key] = tx
	return true, nil
}

// Snapshot returns the pending transactions in no particular order.
func (m *Mempool) Snapshot() []*delta.Transaction {
	m.RLock()
	defer m.RUnlock()

	res := make([]*delta.Transaction, 0, len(m.txs))
	for _, tx := range m.txs {
		res = append(res, tx)
	}
	return res
}

// Remove drops committed transactions and returns how many were pending.
func (m *Mempool) Remove(txs []*delta.Transaction) int {
	m.Lock()
	defer m.Unlock()

	removed := 0
	for _, tx := range txs {
		key := tx.Key()
		if _, ok := m.txs[key]; ok {
			delete(m.txs, key)
			removed++
		}
	}
	return removed
}

// Len ...
func (m *Mempool) Len() int {
	m.RLock()
	defer m.RUnlock()
	return len(m.txs)
}
