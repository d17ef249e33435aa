// Package wspool bounds the set of active live-edit connections with
// LRU-style eviction by last activity.
package wspool

import (
	"container/heap"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Status is the pool entry for one connection.
type Status struct {
	LastActive int64
	SessionID  string
}

type activityRecord struct {
	lastActive int64
	key        string
}

// activityHeap orders records by last activity ascending; ties are broken
// lexicographically so eviction order stays deterministic.
type activityHeap []activityRecord

func (h activityHeap) Len() int { return len(h) }
func (h activityHeap) Less(i, j int) bool {
	if h[i].lastActive != h[j].lastActive {
		return h[i].lastActive < h[j].lastActive
	}
	return h[i].key < h[j].key
}
func (h activityHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *activityHeap) Push(x any)   { *h = append(*h, x.(activityRecord)) }
func (h *activityHeap) Pop() any {
	old := *h
	n := len(old)
	r := old[n-1]
	*h = old[:n-1]
	return r
}

// Pool is the bounded connection pool keyed by remote peer address.
// Refreshes push fresh heap records and leave the stale ones in place; the
// eviction loop filters them by timestamp mismatch.
type Pool struct {
	maxConnections int
	clock          func() int64

	mu    sync.Mutex
	conns map[string]Status

	heapMu   sync.Mutex
	activity activityHeap
}

// NewPool builds a pool admitting at most maxConnections entries.
func NewPool(maxConnections int) *Pool {
	return &Pool{
		maxConnections: maxConnections,
		clock:          func() int64 { return time.Now().Unix() },
		conns:          make(map[string]Status),
	}
}

// Admit inserts or refreshes the entry for peerKey and evicts the least
// recently active entries until the pool is back within capacity.
func (p *Pool) Admit(peerKey, sessionID string) Status {
	now := p.clock()
	status := Status{LastActive: now, SessionID: sessionID}

	p.mu.Lock()
	p.conns[peerKey] = status
	p.mu.Unlock()

	p.heapMu.Lock()
	heap.Push(&p.activity, activityRecord{lastActive: now, key: peerKey})
	p.heapMu.Unlock()

	p.evict()
	return status
}

// Touch refreshes the activity timestamp for peerKey if it is pooled.
func (p *Pool) Touch(peerKey string) {
	p.mu.Lock()
	status, ok := p.conns[peerKey]
	if ok {
		status.LastActive = p.clock()
		p.conns[peerKey] = status
	}
	p.mu.Unlock()
	if !ok {
		return
	}

	p.heapMu.Lock()
	heap.Push(&p.activity, activityRecord{lastActive: status.LastActive, key: peerKey})
	p.heapMu.Unlock()
}

// Remove purges peerKey from the pool and rebuilds the activity heap
// without its records.
func (p *Pool) Remove(peerKey string) {
	p.mu.Lock()
	delete(p.conns, peerKey)
	p.mu.Unlock()

	p.heapMu.Lock()
	kept := p.activity[:0]
	for _, rec := range p.activity {
		if rec.key != peerKey {
			kept = append(kept, rec)
		}
	}
	p.activity = kept
	heap.Init(&p.activity)
	p.heapMu.Unlock()
}

// Get returns the entry for peerKey.
func (p *Pool) Get(peerKey string) (Status, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.conns[peerKey]
	return s, ok
}

// Len reports the pooled connection count.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

// evict pops the activity heap until the pool is within capacity, skipping
// records whose timestamp no longer matches the live entry.
func (p *Pool) evict() {
	for {
		p.mu.Lock()
		over := len(p.conns) > p.maxConnections
		p.mu.Unlock()
		if !over {
			return
		}

		p.heapMu.Lock()
		if len(p.activity) == 0 {
			p.heapMu.Unlock()
			return
		}
		rec := heap.Pop(&p.activity).(activityRecord)
		p.heapMu.Unlock()

		p.mu.Lock()
		if cur, ok := p.conns[rec.key]; ok && cur.LastActive == rec.lastActive {
			delete(p.conns, rec.key)
			log.Debug().Str("peer", rec.key).Msg("Evicted idle live-edit connection")
		}
		p.mu.Unlock()
	}
}
