package parser

import (
	"github.com/standardbeagle/smaliref/internal/types"
)

// JavaClass is a type declared in Java source: a class, interface, enum,
// record or annotation type. It implements types.Symbol.
type JavaClass struct {
	Name          string
	QualifiedName string // "" for local classes
	BinaryName    string // slash-separated, '$' between nesting levels; "" for local classes
	Kind          string
	Path          string
	Range         types.TextRange
	Line          int
}

// SymbolName returns the qualified name, or the simple name for local
// classes.
func (c *JavaClass) SymbolName() string {
	if c.QualifiedName != "" {
		return c.QualifiedName
	}
	return c.Name
}

// IsLocal reports whether the class is declared inside a code body and so
// has no name visible outside it.
func (c *JavaClass) IsLocal() bool { return c.QualifiedName == "" }

// Descriptor returns the smali type descriptor, "Lpkg/Outer$Inner;", or ""
// for local classes.
func (c *JavaClass) Descriptor() string {
	if c.BinaryName == "" {
		return ""
	}
	return "L" + c.BinaryName + ";"
}

// DescriptorDeriver derives smali search tokens for Java classes.
type DescriptorDeriver struct{}

// DeriveSearchToken returns the class descriptor of sym. Symbols that are
// not Java classes, and local classes, have none.
func (DescriptorDeriver) DeriveSearchToken(sym types.Symbol) (string, bool) {
	c, ok := sym.(*JavaClass)
	if !ok || c == nil || c.BinaryName == "" {
		return "", false
	}
	return c.Descriptor(), true
}
