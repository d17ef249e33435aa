// Package syntax wraps the tree-sitter parsers behind a per-language
// validator capability. Validation is advisory: the live-edit server reports
// the result but stores the buffer either way.
package syntax

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/codexec/codexec/internal/language"
)

// InvalidCodeError reports a structural error found by a parser, or a parser
// failure normalized into the same shape.
type InvalidCodeError struct {
	Detail string
}

func (e *InvalidCodeError) Error() string {
	return fmt.Sprintf("invalid code: %s", e.Detail)
}

// Validator checks the structural validity of a source text. Implementations
// never mutate state; every failure mode is an *InvalidCodeError.
type Validator interface {
	Validate(ctx context.Context, code string) (*sitter.Tree, error)
}

// ForLanguage returns the validator bound to lang.
func ForLanguage(lang language.Language) Validator {
	switch lang {
	case language.Python:
		return PythonValidator{}
	case language.JavaScript:
		return JavaScriptValidator{}
	case language.Java:
		return JavaValidator{}
	default:
		return nil
	}
}

// parse runs a tree-sitter grammar over code and flags trees whose root
// carries an error node.
func parse(ctx context.Context, grammar *sitter.Language, code string) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(grammar)

	tree, err := parser.ParseCtx(ctx, nil, []byte(code))
	if err != nil {
		return nil, &InvalidCodeError{Detail: err.Error()}
	}
	if tree == nil {
		return nil, &InvalidCodeError{Detail: "parser returned no tree"}
	}

	root := tree.RootNode()
	if root.HasError() {
		detail := fmt.Sprintf("syntax error detected in %s", root.String())
		tree.Close()
		return nil, &InvalidCodeError{Detail: detail}
	}
	return tree, nil
}
