package syntax

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
)

// JavaScriptValidator validates JavaScript source with the tree-sitter grammar.
type JavaScriptValidator struct{}

func (JavaScriptValidator) Validate(ctx context.Context, code string) (*sitter.Tree, error) {
	return parse(ctx, javascript.GetLanguage(), code)
}
