package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codexec/codexec/internal/language"
)

func newTestRegistry(ttl time.Duration) *Registry {
	return NewRegistry(Config{
		TTL:            ttl,
		SessionTimeout: 24 * time.Hour, // keep the misconfiguration safety net quiet
		MaxSessions:    100,
	})
}

func TestAddAndLookup(t *testing.T) {
	r := newTestRegistry(time.Hour)

	require.NoError(t, r.Add("s1", language.Python, "executor_python_s1"))

	v, err := r.Lookup("s1", language.Python)
	require.NoError(t, err)
	assert.Equal(t, "executor_python_s1", v.ContainerName)
	assert.False(t, v.CreatedAt.IsZero())
}

func TestAddDuplicateFailsWithoutMutating(t *testing.T) {
	r := newTestRegistry(time.Hour)

	require.NoError(t, r.Add("s1", language.Python, "first"))
	err := r.Add("s1", language.Python, "second")
	require.ErrorIs(t, err, ErrAlreadyExists)

	v, err := r.Lookup("s1", language.Python)
	require.NoError(t, err)
	assert.Equal(t, "first", v.ContainerName, "duplicate add must not replace the live entry")
	assert.Equal(t, 1, r.Len())
}

func TestSameSessionDifferentLanguages(t *testing.T) {
	r := newTestRegistry(time.Hour)

	require.NoError(t, r.Add("s1", language.Python, "executor_python_s1"))
	require.NoError(t, r.Add("s1", language.JavaScript, "executor_javascript_s1"))

	py, err := r.Lookup("s1", language.Python)
	require.NoError(t, err)
	js, err := r.Lookup("s1", language.JavaScript)
	require.NoError(t, err)
	assert.NotEqual(t, py.ContainerName, js.ContainerName)
	assert.Equal(t, 2, r.Len())
}

func TestDelete(t *testing.T) {
	r := newTestRegistry(time.Hour)

	require.NoError(t, r.Add("s1", language.Python, "c1"))
	require.NoError(t, r.Delete("s1:python"))

	_, err := r.Lookup("s1", language.Python)
	assert.ErrorIs(t, err, ErrNotFound)

	err = r.Delete("s1:python")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteMalformedKey(t *testing.T) {
	r := newTestRegistry(time.Hour)

	assert.ErrorIs(t, r.Delete("no-separator"), ErrMalformedKey)
	assert.ErrorIs(t, r.Delete("too:many:parts"), ErrMalformedKey)
	assert.ErrorIs(t, r.Delete("s1:klingon"), ErrMalformedKey)
}

func TestLiveSetMatchesAddsMinusDeletes(t *testing.T) {
	r := newTestRegistry(time.Hour)

	for i := 0; i < 10; i++ {
		require.NoError(t, r.Add(fmt.Sprintf("s%d", i), language.Python, fmt.Sprintf("c%d", i)))
	}
	for i := 0; i < 5; i++ {
		require.NoError(t, r.Delete(fmt.Sprintf("s%d:python", i)))
	}

	assert.Equal(t, 5, r.Len())
	for i := 0; i < 5; i++ {
		_, err := r.Lookup(fmt.Sprintf("s%d", i), language.Python)
		assert.ErrorIs(t, err, ErrNotFound)
	}
	for i := 5; i < 10; i++ {
		_, err := r.Lookup(fmt.Sprintf("s%d", i), language.Python)
		assert.NoError(t, err)
	}
}

func TestSweepRemovesExpiredEntries(t *testing.T) {
	r := newTestRegistry(50 * time.Millisecond)

	require.NoError(t, r.Add("s1", language.Python, "c1"))
	time.Sleep(100 * time.Millisecond)
	r.Sweep()

	_, err := r.Lookup("s1", language.Python)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, r.Len())
}

func TestSweepKeepsUnexpiredEntries(t *testing.T) {
	r := newTestRegistry(time.Hour)

	require.NoError(t, r.Add("s1", language.Python, "c1"))
	r.Sweep()

	_, err := r.Lookup("s1", language.Python)
	assert.NoError(t, err)
}

func TestSweepToleratesStaleHeapEntries(t *testing.T) {
	r := newTestRegistry(50 * time.Millisecond)

	// Delete leaves the heap record in place; the re-add pushes a second
	// one. The sweep must resolve both without disturbing anything else.
	require.NoError(t, r.Add("s1", language.Python, "c1"))
	require.NoError(t, r.Delete("s1:python"))
	require.NoError(t, r.Add("s1", language.Python, "c2"))

	time.Sleep(100 * time.Millisecond)
	r.Sweep()

	assert.Equal(t, 0, r.Len())
}

func TestSweepStampsLastCleanup(t *testing.T) {
	r := newTestRegistry(time.Hour)
	before := r.LastCleanup()

	time.Sleep(10 * time.Millisecond)
	r.Sweep()

	assert.True(t, r.LastCleanup().After(before))
}

func TestNeedsCleanup(t *testing.T) {
	r := NewRegistry(Config{
		TTL:            time.Hour,
		SessionTimeout: 24 * time.Hour,
		MaxSessions:    2,
	})
	assert.False(t, r.NeedsCleanup())

	require.NoError(t, r.Add("s1", language.Python, "c1"))
	require.NoError(t, r.Add("s2", language.Python, "c2"))
	assert.True(t, r.NeedsCleanup(), "at max sessions")

	// A configured timeout at or below the TTL forces cleanup regardless of
	// the entry count.
	forced := NewRegistry(Config{
		TTL:            time.Hour,
		SessionTimeout: time.Hour,
		MaxSessions:    100,
	})
	assert.True(t, forced.NeedsCleanup())
}

func TestKeyRoundTrip(t *testing.T) {
	k := NewKey("abc", language.JavaScript)
	assert.Equal(t, "abc:javascript", k.String())

	parsed, err := ParseKey("abc:javascript")
	require.NoError(t, err)
	assert.Equal(t, k, parsed)
}
