package wspool

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock returns a monotonically scripted unix timestamp.
type fakeClock struct {
	now int64
}

func (f *fakeClock) tick() int64 {
	f.now++
	return f.now
}

func newTestPool(max int) (*Pool, *fakeClock) {
	p := NewPool(max)
	clk := &fakeClock{}
	p.clock = clk.tick
	return p, clk
}

func TestAdmitAndGet(t *testing.T) {
	p, _ := newTestPool(10)

	p.Admit("127.0.0.1:5000", "s1")

	status, ok := p.Get("127.0.0.1:5000")
	require.True(t, ok)
	assert.Equal(t, "s1", status.SessionID)
	assert.Equal(t, 1, p.Len())
}

func TestAdmitRefreshesExistingEntry(t *testing.T) {
	p, _ := newTestPool(10)

	p.Admit("peer", "s1")
	first, _ := p.Get("peer")
	p.Admit("peer", "s2")
	second, _ := p.Get("peer")

	assert.Equal(t, 1, p.Len())
	assert.Equal(t, "s2", second.SessionID)
	assert.Greater(t, second.LastActive, first.LastActive)
}

func TestCapacityBoundHoldsAfterEveryAdmit(t *testing.T) {
	const max = 5
	p, _ := newTestPool(max)

	for i := 0; i < 20; i++ {
		p.Admit(fmt.Sprintf("peer-%02d", i), fmt.Sprintf("s%d", i))
		assert.LessOrEqual(t, p.Len(), max, "after admit %d", i)
	}
}

func TestEvictionPicksLeastRecentlyActive(t *testing.T) {
	p, _ := newTestPool(2)

	p.Admit("peer-a", "s1")
	p.Admit("peer-b", "s2")
	p.Admit("peer-c", "s3") // evicts peer-a, the oldest

	_, ok := p.Get("peer-a")
	assert.False(t, ok)
	_, ok = p.Get("peer-b")
	assert.True(t, ok)
	_, ok = p.Get("peer-c")
	assert.True(t, ok)
}

func TestTouchProtectsFromEviction(t *testing.T) {
	p, _ := newTestPool(2)

	p.Admit("peer-a", "s1")
	p.Admit("peer-b", "s2")
	p.Touch("peer-a") // peer-b is now the oldest
	p.Admit("peer-c", "s3")

	_, ok := p.Get("peer-a")
	assert.True(t, ok, "touched entry must survive")
	_, ok = p.Get("peer-b")
	assert.False(t, ok)
}

func TestStaleHeapRecordsAreSkipped(t *testing.T) {
	p, _ := newTestPool(2)

	// The refresh leaves a stale record for peer-a at its old timestamp;
	// eviction must not remove peer-a on the strength of that record.
	p.Admit("peer-a", "s1")
	p.Admit("peer-b", "s2")
	p.Admit("peer-a", "s1")
	p.Admit("peer-c", "s3")

	_, ok := p.Get("peer-a")
	assert.True(t, ok)
	_, ok = p.Get("peer-b")
	assert.False(t, ok)
	assert.Equal(t, 2, p.Len())
}

func TestRemove(t *testing.T) {
	p, _ := newTestPool(10)

	p.Admit("peer-a", "s1")
	p.Remove("peer-a")

	_, ok := p.Get("peer-a")
	assert.False(t, ok)
	assert.Equal(t, 0, p.Len())

	// The heap was rebuilt without peer-a; a later admit leaves exactly the
	// new entry in the pool.
	p.Admit("peer-b", "s2")
	assert.Equal(t, 1, p.Len())
}

func TestTouchUnknownPeerIsNoOp(t *testing.T) {
	p, _ := newTestPool(10)
	p.Touch("ghost")
	assert.Equal(t, 0, p.Len())
}
