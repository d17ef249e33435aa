package session

import (
	"fmt"
	"strings"

	"github.com/codexec/codexec/internal/language"
)

// keySeparator joins the session id and language in the textual key form.
const keySeparator = ":"

// Key identifies one warm execution environment: the pair of the client's
// opaque session id and the language tag.
type Key struct {
	SessionID string
	Language  language.Language
}

// NewKey builds a Key from its parts.
func NewKey(sessionID string, lang language.Language) Key {
	return Key{SessionID: sessionID, Language: lang}
}

// String renders the textual form "{session_id}:{language}".
func (k Key) String() string {
	return k.SessionID + keySeparator + k.Language.String()
}

// ParseKey decodes the textual form. Values without exactly one separator
// are rejected.
func ParseKey(s string) (Key, error) {
	if strings.Count(s, keySeparator) != 1 {
		return Key{}, fmt.Errorf("%w: %q", ErrMalformedKey, s)
	}
	parts := strings.SplitN(s, keySeparator, 2)
	lang, err := language.Parse(parts[1])
	if err != nil {
		return Key{}, fmt.Errorf("%w: %q", ErrMalformedKey, s)
	}
	return Key{SessionID: parts[0], Language: lang}, nil
}
