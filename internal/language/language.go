// Package language defines the closed set of supported execution languages
// and their per-language bindings: Dockerfile path, shell invocation, and
// display name.
package language

import (
	"errors"
	"fmt"
	"strings"

	"github.com/codexec/codexec/internal/config"
)

// ErrUnsupported indicates the requested language is not in the supported set.
var ErrUnsupported = errors.New("unsupported language")

// Language is a tag from the supported set.
type Language int

const (
	Python Language = iota
	JavaScript
	Java
)

// All lists every supported language.
var All = []Language{Python, JavaScript, Java}

// Parse maps a language name, in any letter case, to its tag.
func Parse(s string) (Language, error) {
	switch strings.ToLower(s) {
	case "python":
		return Python, nil
	case "javascript":
		return JavaScript, nil
	case "java":
		return Java, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupported, s)
	}
}

// IsSupported reports whether s names a supported language.
func IsSupported(s string) bool {
	_, err := Parse(s)
	return err == nil
}

func (l Language) String() string {
	switch l {
	case Python:
		return "python"
	case JavaScript:
		return "javascript"
	case Java:
		return "java"
	default:
		return "unknown"
	}
}

// DockerfilePath resolves the build-context Dockerfile for this language.
func (l Language) DockerfilePath(cfg *config.Config) string {
	switch l {
	case Python:
		return cfg.Dockerfiles.Python
	case JavaScript:
		return cfg.Dockerfiles.JavaScript
	case Java:
		return cfg.Dockerfiles.Java
	default:
		return ""
	}
}

// ShellCommand renders the in-container invocation that writes the source
// text to a file and runs it.
func (l Language) ShellCommand(code string) string {
	switch l {
	case Python:
		return fmt.Sprintf("echo '%s' > script.py && python script.py", code)
	case JavaScript:
		return fmt.Sprintf("echo '%s' > script.js && node script.js", code)
	case Java:
		return fmt.Sprintf("echo '%s' > Main.java && javac Main.java && java Main", code)
	default:
		return ""
	}
}
