// Package liveedit serves the push protocol through which clients stream
// edits to their session buffers.
package liveedit

import (
	"strings"

	"github.com/codexec/codexec/internal/editor"
)

// Code kinds carried by a message.
const (
	CodeTypeFull  = "full"
	CodeTypePatch = "patch"
)

// Message is one live-edit frame. Content is set for full updates, Patches
// for patch updates.
type Message struct {
	SessionID string         `json:"session_id"`
	Language  string         `json:"language"`
	CodeType  string         `json:"code_type"`
	Content   string         `json:"content,omitempty"`
	Patches   []editor.Patch `json:"patches,omitempty"`
}

// Sanitize strips control characters from an inbound frame, keeping the
// newline, carriage return and tab escapes and every code point >= 0x20.
// It is idempotent.
func Sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == '\t' || r >= 0x20 {
			return r
		}
		return -1
	}, s)
}
