package editor

import (
	"fmt"
	"strings"
	"sync"

	"github.com/codexec/codexec/internal/language"
)

// Session is a snapshot of one edit-buffer session taken under the cache
// lock; mutating it does not affect the stored buffer.
type Session struct {
	SessionID string
	Language  language.Language
	Code      string
}

// DeriveKey builds the cache key "{language}-{client_session_id}". The same
// client session id under two languages addresses two distinct buffers.
func DeriveKey(lang language.Language, sessionID string) string {
	return fmt.Sprintf("%s-%s", lang, sessionID)
}

type record struct {
	sessionID string
	language  language.Language
	buf       *buffer
}

// Cache is the concurrent map from derived session key to buffer.
type Cache struct {
	mu       sync.RWMutex
	sessions map[string]*record
}

// NewCache builds an empty cache.
func NewCache() *Cache {
	return &Cache{sessions: make(map[string]*record)}
}

// ApplyFull replaces the buffer for key with content, creating the session
// on first sight.
func (c *Cache) ApplyFull(key, sessionID string, lang language.Language, content string) Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.sessions[key]
	if !ok {
		rec = &record{sessionID: sessionID, language: lang, buf: newBuffer(content)}
		c.sessions[key] = rec
	} else {
		rec.buf.setContent(content)
	}
	return rec.snapshot()
}

// ApplyPatches applies patches in order to the buffer for key. A session
// seen first through a patch message is created with the patch texts as its
// initial content. The first failing patch aborts the remainder.
func (c *Cache) ApplyPatches(key, sessionID string, lang language.Language, patches []Patch) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.sessions[key]
	if !ok {
		texts := make([]string, len(patches))
		for i, p := range patches {
			texts[i] = p.Text
		}
		rec = &record{sessionID: sessionID, language: lang, buf: newBuffer(strings.Join(texts, "\n"))}
		c.sessions[key] = rec
		return rec.snapshot(), nil
	}

	for _, p := range patches {
		if err := rec.buf.applyPatch(p); err != nil {
			return rec.snapshot(), err
		}
	}
	return rec.snapshot(), nil
}

// Get returns a snapshot of the session stored under key.
func (c *Cache) Get(key string) (Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rec, ok := c.sessions[key]
	if !ok {
		return Session{}, false
	}
	return rec.snapshot(), true
}

// Remove drops the session stored under key.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, key)
}

// Len reports the number of live sessions.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

func (r *record) snapshot() Session {
	return Session{SessionID: r.sessionID, Language: r.language, Code: r.buf.code()}
}
