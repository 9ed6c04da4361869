package parser

import (
	"fmt"
	"strings"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"

	"github.com/standardbeagle/smaliref/internal/debug"
	"github.com/standardbeagle/smaliref/internal/errors"
	"github.com/standardbeagle/smaliref/internal/types"
)

// Declaration node kinds and the class kind they produce
var declarationKinds = map[string]string{
	"class_declaration":           "class",
	"interface_declaration":       "interface",
	"enum_declaration":            "enum",
	"record_declaration":          "record",
	"annotation_type_declaration": "annotation",
}

// Nodes whose contents are code bodies; classes declared below them are local
var localBodyKinds = map[string]bool{
	"block":                      true,
	"constructor_body":           true,
	"lambda_expression":          true,
	"object_creation_expression": true,
	"enum_constant":              true,
}

// defaultPoolSize bounds how many idle tree-sitter parsers are kept.
const defaultPoolSize = 8

// JavaParser extracts class declarations from Java source with tree-sitter.
// It is safe for concurrent use; each parse borrows its own tree-sitter
// parser.
type JavaParser struct {
	language *tree_sitter.Language
	idle     chan *tree_sitter.Parser
}

// NewJavaParser creates a parser keeping up to poolSize idle tree-sitter
// parsers. A non-positive size selects the default.
func NewJavaParser(poolSize int) *JavaParser {
	if poolSize <= 0 {
		poolSize = defaultPoolSize
	}
	return &JavaParser{
		language: tree_sitter.NewLanguage(tree_sitter_java.Language()),
		idle:     make(chan *tree_sitter.Parser, poolSize),
	}
}

func (p *JavaParser) acquire() (*tree_sitter.Parser, error) {
	select {
	case parser := <-p.idle:
		return parser, nil
	default:
	}
	parser := tree_sitter.NewParser()
	if err := parser.SetLanguage(p.language); err != nil {
		parser.Close()
		return nil, fmt.Errorf("failed to set java language: %w", err)
	}
	return parser, nil
}

func (p *JavaParser) release(parser *tree_sitter.Parser) {
	select {
	case p.idle <- parser:
	default:
		parser.Close()
	}
}

// Close frees the idle tree-sitter parsers.
func (p *JavaParser) Close() {
	for {
		select {
		case parser := <-p.idle:
			parser.Close()
		default:
			return
		}
	}
}

// ParseFile lists the type declarations of one Java file in source order.
func (p *JavaParser) ParseFile(path string, content []byte) ([]*JavaClass, error) {
	parser, err := p.acquire()
	if err != nil {
		return nil, errors.NewParseError(path, 0, 0, err)
	}
	defer p.release(parser)

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, errors.NewParseError(path, 0, 0, fmt.Errorf("tree-sitter returned no tree"))
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		debug.LogIndex("%s has syntax errors, extracting what parsed\n", path)
	}

	w := &classWalker{path: path, content: content}
	w.pkg = packageName(root, content)
	w.visit(root, nil, false)
	return w.classes, nil
}

type classWalker struct {
	path    string
	content []byte
	pkg     string
	classes []*JavaClass
}

func (w *classWalker) visit(node *tree_sitter.Node, outer *JavaClass, local bool) {
	if kind, ok := declarationKinds[node.Kind()]; ok {
		if cls := w.declare(node, kind, outer, local); cls != nil {
			outer = cls
		}
	} else if localBodyKinds[node.Kind()] {
		local = true
	}

	for i := uint(0); i < node.ChildCount(); i++ {
		if child := node.Child(i); child != nil {
			w.visit(child, outer, local)
		}
	}
}

func (w *classWalker) declare(node *tree_sitter.Node, kind string, outer *JavaClass, local bool) *JavaClass {
	name := nodeText(node.ChildByFieldName("name"), w.content)
	if name == "" {
		return nil
	}

	start := node.StartPosition()
	cls := &JavaClass{
		Name:  name,
		Kind:  kind,
		Path:  w.path,
		Range: types.TextRange{Start: int(node.StartByte()), End: int(node.EndByte())},
		Line:  int(start.Row) + 1,
	}

	switch {
	case local || (outer != nil && outer.IsLocal()):
		// no qualified name
	case outer != nil:
		cls.QualifiedName = outer.QualifiedName + "." + name
		cls.BinaryName = outer.BinaryName + "$" + name
	case w.pkg != "":
		cls.QualifiedName = w.pkg + "." + name
		cls.BinaryName = strings.ReplaceAll(w.pkg, ".", "/") + "/" + name
	default:
		cls.QualifiedName = name
		cls.BinaryName = name
	}

	w.classes = append(w.classes, cls)
	return cls
}

// packageName returns the dotted package of a compilation unit, or "".
func packageName(root *tree_sitter.Node, content []byte) string {
	decl := findChildByKind(root, "package_declaration")
	if decl == nil {
		return ""
	}
	for i := uint(0); i < decl.NamedChildCount(); i++ {
		child := decl.NamedChild(i)
		if child == nil {
			continue
		}
		if k := child.Kind(); k == "scoped_identifier" || k == "identifier" {
			return strings.Join(strings.Fields(nodeText(child, content)), "")
		}
	}
	return ""
}

func findChildByKind(node *tree_sitter.Node, kind string) *tree_sitter.Node {
	for i := uint(0); i < node.ChildCount(); i++ {
		child := node.Child(i)
		if child != nil && child.Kind() == kind {
			return child
		}
	}
	return nil
}

func nodeText(node *tree_sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if start > uint(len(content)) || end > uint(len(content)) || start > end {
		return ""
	}
	return string(content[start:end])
}
