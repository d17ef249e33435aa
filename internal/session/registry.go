// Package session holds the TTL-indexed registry mapping (session id,
// language) to the warm container serving that pair.
//
// The registry keeps two structures: the canonical map and an expiry
// min-heap. The heap is deliberately allowed to go stale — deletions do not
// search it. The sweep deletes each popped key from the map without
// comparing expiry instants: a record whose key is gone resolves as a silent
// NotFound, and a record left from before a delete and re-add of the same
// key removes the re-added entry.
package session

import (
	"container/heap"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codexec/codexec/internal/language"
)

// DefaultTTL is the session lifetime applied when none is configured.
const DefaultTTL = 3600 * time.Second

var (
	// ErrNotFound indicates no live entry exists for the key.
	ErrNotFound = errors.New("session not found")

	// ErrAlreadyExists indicates an Add for a key that is still live.
	ErrAlreadyExists = errors.New("session already exists")

	// ErrMalformedKey indicates a textual key that does not decode.
	ErrMalformedKey = errors.New("malformed session key")
)

// Value is the registry payload: the engine-assigned container name and the
// instant the session was recorded.
type Value struct {
	ContainerName string
	CreatedAt     time.Time
}

// Config tunes a Registry.
type Config struct {
	// TTL is the session lifetime; zero means DefaultTTL.
	TTL time.Duration
	// SessionTimeout is the configured timeout used by NeedsCleanup as a
	// misconfiguration safety net.
	SessionTimeout time.Duration
	// MaxSessions is the entry count at which NeedsCleanup trips.
	MaxSessions int
}

type expiryEntry struct {
	expiresAt time.Time
	key       string
}

type expiryHeap []expiryEntry

func (h expiryHeap) Len() int            { return len(h) }
func (h expiryHeap) Less(i, j int) bool  { return h[i].expiresAt.Before(h[j].expiresAt) }
func (h expiryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *expiryHeap) Push(x any)         { *h = append(*h, x.(expiryEntry)) }
func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Registry is the TTL-indexed session map. Map, heap and last-cleanup stamp
// are guarded independently; compound operations acquire one guard at a
// time, which is what permits the heap to lag behind the map.
type Registry struct {
	ttl            time.Duration
	sessionTimeout time.Duration
	maxSessions    int

	mu       sync.Mutex
	sessions map[Key]Value

	heapMu   sync.Mutex
	expiries expiryHeap

	cleanupMu   sync.Mutex
	lastCleanup time.Time
}

// NewRegistry builds an empty registry from cfg.
func NewRegistry(cfg Config) *Registry {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Registry{
		ttl:            ttl,
		sessionTimeout: cfg.SessionTimeout,
		maxSessions:    cfg.MaxSessions,
		sessions:       make(map[Key]Value),
		lastCleanup:    time.Now(),
	}
}

// Add records the container serving (sessionID, lang). A live entry for the
// same key fails with ErrAlreadyExists; the existing container is never
// silently replaced. When the registry is over its cleanup thresholds a
// sweep is scheduled without blocking the caller.
func (r *Registry) Add(sessionID string, lang language.Language, containerName string) error {
	key := NewKey(sessionID, lang)
	expiresAt := time.Now().Add(r.ttl)

	r.mu.Lock()
	if _, ok := r.sessions[key]; ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: id %q language %q", ErrAlreadyExists, sessionID, lang)
	}
	r.sessions[key] = Value{ContainerName: containerName, CreatedAt: time.Now()}
	r.mu.Unlock()

	r.heapMu.Lock()
	heap.Push(&r.expiries, expiryEntry{expiresAt: expiresAt, key: key.String()})
	r.heapMu.Unlock()

	if r.NeedsCleanup() {
		log.Debug().Msg("Session registry over cleanup threshold, scheduling sweep")
		go r.Sweep()
	}
	return nil
}

// Delete removes the entry named by the textual key. The expiry heap is not
// touched; its stale record is discarded by a later sweep.
func (r *Registry) Delete(keyText string) error {
	key, err := ParseKey(keyText)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if _, ok := r.sessions[key]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotFound, keyText)
	}
	delete(r.sessions, key)
	r.mu.Unlock()

	go r.stampCleanup(time.Now())
	return nil
}

// Lookup returns the live entry for (sessionID, lang), or ErrNotFound.
func (r *Registry) Lookup(sessionID string, lang language.Language) (Value, error) {
	key := NewKey(sessionID, lang)

	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.sessions[key]
	if !ok {
		return Value{}, fmt.Errorf("%w: id %q language %q", ErrNotFound, sessionID, lang)
	}
	return v, nil
}

// Sweep pops expired heap entries and deletes their sessions until the heap
// top lies in the future or the heap is empty. Records whose key is no
// longer in the map resolve as NotFound and are ignored; a leftover record of
// a key that was deleted and added again removes the current entry.
func (r *Registry) Sweep() {
	now := time.Now()
	defer func() { r.stampCleanup(time.Now()) }()
	for {
		r.heapMu.Lock()
		if len(r.expiries) == 0 || r.expiries[0].expiresAt.After(now) {
			r.heapMu.Unlock()
			return
		}
		entry := heap.Pop(&r.expiries).(expiryEntry)
		r.heapMu.Unlock()

		if err := r.Delete(entry.key); err != nil {
			if !errors.Is(err, ErrNotFound) {
				log.Warn().Err(err).Str("key", entry.key).Msg("Failed to remove expired session")
			}
			continue
		}
		log.Info().Str("key", entry.key).Msg("Removed expired session")
	}
}

// NeedsCleanup reports whether the registry is at or over its entry budget,
// or whether the configured session timeout has been reduced to (or below)
// the TTL sessions were admitted with.
func (r *Registry) NeedsCleanup() bool {
	r.mu.Lock()
	count := len(r.sessions)
	r.mu.Unlock()

	return count >= r.maxSessions || r.sessionTimeout <= r.ttl
}

// LastCleanup returns the instant of the most recent delete or sweep.
func (r *Registry) LastCleanup() time.Time {
	r.cleanupMu.Lock()
	defer r.cleanupMu.Unlock()
	return r.lastCleanup
}

// Len reports the live entry count.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) stampCleanup(t time.Time) {
	r.cleanupMu.Lock()
	if t.After(r.lastCleanup) {
		r.lastCleanup = t
	}
	r.cleanupMu.Unlock()
}
