package syntax

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
)

// JavaValidator validates Java source with the tree-sitter grammar.
type JavaValidator struct{}

func (JavaValidator) Validate(ctx context.Context, code string) (*sitter.Tree, error) {
	return parse(ctx, java.GetLanguage(), code)
}
