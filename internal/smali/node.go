package smali

import (
	"sort"

	"github.com/standardbeagle/smaliref/internal/types"
)

// Kind identifies the syntactic role of a node.
type Kind string

const (
	KindFile              Kind = "file"
	KindClass             Kind = "class"
	KindSuper             Kind = "super"
	KindImplements        Kind = "implements"
	KindSource            Kind = "source"
	KindField             Kind = "field"
	KindMethod            Kind = "method"
	KindParam             Kind = "param"
	KindAnnotation        Kind = "annotation"
	KindSubannotation     Kind = "subannotation"
	KindAnnotationElement Kind = "annotation_element"
	KindPayload           Kind = "payload" // packed-switch, sparse-switch, array-data
	KindInstruction       Kind = "instruction"
	KindLabel             Kind = "label"
	KindDirective         Kind = "directive"

	// Leaves
	KindComment Kind = "comment"
	KindString  Kind = "string"
	KindTypeRef Kind = "type_ref"
)

// Node is one element of a parsed smali document. It implements
// types.Element.
type Node struct {
	kind     Kind
	doc      *types.Document
	r        types.TextRange
	parent   *Node
	children []*Node

	// Member name for fields and methods; class descriptor for type refs.
	name      string
	signature string // methods: name plus prototype
	dims      int    // type refs: leading '[' count
	closer    string // blocks: the .end directive that closes them
}

func (n *Node) Document() *types.Document { return n.doc }
func (n *Node) Range() types.TextRange    { return n.r }
func (n *Node) Kind() string              { return string(n.kind) }

// NodeKind returns the typed kind.
func (n *Node) NodeKind() Kind    { return n.kind }
func (n *Node) Parent() *Node     { return n.parent }
func (n *Node) Children() []*Node { return n.children }

// Name returns the member name of a field or method node.
func (n *Node) Name() string {
	if n.kind == KindTypeRef {
		return ""
	}
	return n.name
}

// Signature returns name plus prototype for methods and name:type for
// fields.
func (n *Node) Signature() string { return n.signature }

// Descriptor returns the class descriptor of a type reference, without
// array dimensions.
func (n *Node) Descriptor() string {
	if n.kind != KindTypeRef {
		return ""
	}
	return n.name
}

// Dimensions returns the array depth of a type reference. It is also the
// offset of the descriptor's 'L' within the node.
func (n *Node) Dimensions() int { return n.dims }

// Text returns the source text covered by the node.
func (n *Node) Text() string {
	return string(n.doc.Content[n.r.Start:n.r.End])
}

// Walk visits n and its descendants in document order until fn returns
// false.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if !fn(n) {
		return false
	}
	for _, c := range n.children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// elementAt descends to the smallest node containing offset. Children are
// ordered and never overlap.
func (n *Node) elementAt(offset int) *Node {
	cur := n
	for {
		kids := cur.children
		i := sort.Search(len(kids), func(i int) bool { return kids[i].r.End > offset })
		if i == len(kids) || !kids[i].r.Contains(offset) {
			return cur
		}
		cur = kids[i]
	}
}
