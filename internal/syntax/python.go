package syntax

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonValidator validates Python source with the tree-sitter grammar.
type PythonValidator struct{}

func (PythonValidator) Validate(ctx context.Context, code string) (*sitter.Tree, error) {
	return parse(ctx, python.GetLanguage(), code)
}
