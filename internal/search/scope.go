package search

import (
	"context"
	"iter"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/smaliref/internal/errors"
	"github.com/standardbeagle/smaliref/internal/types"
)

// resolveScope normalizes a validated scope. Local scopes lose nil
// elements; global scopes get a match-all filter when none was given.
func resolveScope(raw types.Scope) (types.Scope, error) {
	switch raw.Kind() {
	case types.ScopeLocal:
		elems := make([]types.Element, 0, len(raw.Elements()))
		for _, e := range raw.Elements() {
			if e != nil && e.Document() != nil {
				elems = append(elems, e)
			}
		}
		return types.LocalScope(elems...), nil
	case types.ScopeGlobal:
		filter := raw.Filter()
		if filter == nil {
			filter = MatchAll
		}
		return types.GlobalScope(filter, raw.Index()), nil
	default:
		return types.Scope{}, errors.NewContractError("request.scope", "has unrecognized variant "+raw.Kind().String())
	}
}

// enumerateCandidates lists the smali documents of a global scope. The
// sequence is lazy; the caller scans each document before the next is
// produced.
func enumerateCandidates(ctx context.Context, scope types.Scope) iter.Seq2[*types.Document, error] {
	return scope.Index().Documents(ctx, types.FileTypeSmali, scope.Filter())
}

// MatchAll accepts every document.
var MatchAll types.ScopeFilter = types.ScopeFilterFunc(func(*types.Document) bool { return true })

// GlobFilter accepts documents whose root-relative, slash-separated path
// matches any of its doublestar patterns. With no patterns it accepts all.
type GlobFilter struct {
	root     string
	patterns []string
}

// NewGlobFilter validates patterns and builds a filter relative to root.
func NewGlobFilter(root string, patterns ...string) (*GlobFilter, error) {
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, errors.NewConfigError("scope", p, doublestar.ErrBadPattern)
		}
	}
	return &GlobFilter{root: root, patterns: patterns}, nil
}

// Contains implements types.ScopeFilter.
func (f *GlobFilter) Contains(doc *types.Document) bool {
	if len(f.patterns) == 0 {
		return true
	}
	rel := doc.Path
	if f.root != "" {
		if r, err := filepath.Rel(f.root, doc.Path); err == nil && !strings.HasPrefix(r, "..") {
			rel = r
		}
	}
	rel = filepath.ToSlash(rel)
	for _, p := range f.patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// PathSet accepts exactly the documents whose cleaned path is in the set.
type PathSet map[string]struct{}

// NewPathSet builds a PathSet from paths.
func NewPathSet(paths ...string) PathSet {
	set := make(PathSet, len(paths))
	for _, p := range paths {
		set[filepath.Clean(p)] = struct{}{}
	}
	return set
}

// Contains implements types.ScopeFilter.
func (s PathSet) Contains(doc *types.Document) bool {
	_, ok := s[filepath.Clean(doc.Path)]
	return ok
}

// AllOf accepts documents accepted by every non-nil filter.
func AllOf(filters ...types.ScopeFilter) types.ScopeFilter {
	return types.ScopeFilterFunc(func(doc *types.Document) bool {
		for _, f := range filters {
			if f != nil && !f.Contains(doc) {
				return false
			}
		}
		return true
	})
}
