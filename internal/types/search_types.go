package types

import "fmt"

// Symbol is an opaque handle to a declaration in the declaring representation.
type Symbol interface {
	SymbolName() string
}

// TextRange is a half-open byte range [Start, End) within a document.
type TextRange struct {
	Start int
	End   int
}

func (r TextRange) Len() int { return r.End - r.Start }

// Contains reports whether offset lies inside the range.
func (r TextRange) Contains(offset int) bool {
	return offset >= r.Start && offset < r.End
}

func (r TextRange) String() string {
	return fmt.Sprintf("[%d,%d)", r.Start, r.End)
}

// Element is a handle into a document's structure.
type Element interface {
	Document() *Document
	Range() TextRange
	Kind() string
}

// Occurrence is a raw whole-word match of the search token, not yet
// confirmed as a reference.
type Occurrence struct {
	Element         Element
	OffsetInElement int
}

// Offset returns the document-relative byte offset of the occurrence.
func (o Occurrence) Offset() int {
	if o.Element == nil {
		return o.OffsetInElement
	}
	return o.Element.Range().Start + o.OffsetInElement
}

// Reference is an Occurrence confirmed to denote the target symbol.
type Reference struct {
	Occurrence
	Document *Document
	Token    string
	Offset   int // document-relative
	Line     int // 1-based
	Column   int // 1-based, bytes
}

// NewReference builds a Reference from a confirmed occurrence.
func NewReference(occ Occurrence, token string) Reference {
	ref := Reference{
		Occurrence: occ,
		Token:      token,
		Offset:     occ.Offset(),
	}
	if occ.Element != nil {
		ref.Document = occ.Element.Document()
	}
	ref.Line, ref.Column = ref.Document.Position(ref.Offset)
	return ref
}

// Path returns the path of the containing document, or "" when unknown.
func (r Reference) Path() string {
	if r.Document == nil {
		return ""
	}
	return r.Document.Path
}

func (r Reference) String() string {
	return fmt.Sprintf("%s:%d:%d", r.Path(), r.Line, r.Column)
}
