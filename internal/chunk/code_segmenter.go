package chunk

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// topLevelBoundaryTypes lists the tree-sitter node types that mark a
// top-level function/class/method declaration, per language. Splitting
// at these boundaries keeps a code chunk to one declaration instead of
// cutting mid-function the way prose segmentation would.
var topLevelBoundaryTypes = map[string]map[string]bool{
	"go":         {"function_declaration": true, "method_declaration": true, "type_declaration": true},
	"python":     {"function_definition": true, "class_definition": true},
	"javascript": {"function_declaration": true, "class_declaration": true, "method_definition": true},
	"typescript": {"function_declaration": true, "class_declaration": true, "method_definition": true, "interface_declaration": true},
}

var treeSitterLanguages = map[string]*sitter.Language{
	"go":         golang.GetLanguage(),
	"python":     python.GetLanguage(),
	"javascript": javascript.GetLanguage(),
	"typescript": typescript.GetLanguage(),
}

func isCodeLanguage(language string) bool {
	_, ok := treeSitterLanguages[language]
	return ok
}

// segmentCode splits source into one segment per top-level declaration
// found by tree-sitter. A nil or single-element result signals "no
// usable boundaries", letting the caller fall back to prose
// segmentation.
func segmentCode(source, language string) []string {
	tsLang, ok := treeSitterLanguages[language]
	if !ok {
		return nil
	}
	boundaries := topLevelBoundaryTypes[language]

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(tsLang)

	src := []byte(source)
	tree, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil || tree == nil {
		return nil
	}

	root := tree.RootNode()
	var segments []string
	var cursor uint32

	for i := 0; i < int(root.ChildCount()); i++ {
		child := root.Child(i)
		if child == nil || !boundaries[child.Type()] {
			continue
		}
		if child.StartByte() > cursor {
			if leading := strings.TrimSpace(string(src[cursor:child.StartByte()])); leading != "" {
				segments = append(segments, leading)
			}
		}
		segments = append(segments, string(src[child.StartByte():child.EndByte()]))
		cursor = child.EndByte()
	}
	if cursor < uint32(len(src)) {
		if trailing := strings.TrimSpace(string(src[cursor:])); trailing != "" {
			segments = append(segments, trailing)
		}
	}
	return segments
}
