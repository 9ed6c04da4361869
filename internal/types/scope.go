package types

import (
	"context"
	"iter"
)

// ScopeKind enumerates the supported search scope variants.
type ScopeKind uint8

const (
	ScopeInvalid ScopeKind = iota
	ScopeLocal             // explicit, finite set of elements
	ScopeGlobal            // filtered, project-wide document set
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeLocal:
		return "local"
	case ScopeGlobal:
		return "global"
	default:
		return "invalid"
	}
}

// ScopeFilter decides membership of a document in a global scope.
type ScopeFilter interface {
	Contains(doc *Document) bool
}

// ScopeFilterFunc adapts a function to ScopeFilter.
type ScopeFilterFunc func(doc *Document) bool

func (f ScopeFilterFunc) Contains(doc *Document) bool { return f(doc) }

// DocumentIndex enumerates the documents of a project.
//
// Documents yields every document of the given type accepted by filter.
// The sequence is lazy and finite; callers must hold the index's read lock
// while consuming it. A non-nil error ends the sequence and is the reason
// enumeration stopped.
type DocumentIndex interface {
	Documents(ctx context.Context, fileType FileType, filter ScopeFilter) iter.Seq2[*Document, error]
}

// Scope is a closed two-variant search bound. Exactly one of the local
// element set or the global filter/index pair is meaningful, selected by
// Kind. Construct with LocalScope or GlobalScope; the zero value is
// ScopeInvalid.
type Scope struct {
	kind     ScopeKind
	elements []Element
	filter   ScopeFilter
	index    DocumentIndex
}

// LocalScope returns a scope over an explicit set of elements.
func LocalScope(elements ...Element) Scope {
	return Scope{kind: ScopeLocal, elements: elements}
}

// GlobalScope returns a scope over every document of index accepted by
// filter. A nil filter accepts everything.
func GlobalScope(filter ScopeFilter, index DocumentIndex) Scope {
	return Scope{kind: ScopeGlobal, filter: filter, index: index}
}

func (s Scope) Kind() ScopeKind { return s.kind }

// Elements returns the local element set. Empty for global scopes.
func (s Scope) Elements() []Element { return s.elements }

// Filter returns the global scope filter. Nil for local scopes.
func (s Scope) Filter() ScopeFilter { return s.filter }

// Index returns the global document index. Nil for local scopes.
func (s Scope) Index() DocumentIndex { return s.index }
