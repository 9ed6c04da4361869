// Package query answers the reference and class questions asked by the CLI
// and the MCP server. It resolves user-supplied names against the corpus,
// builds search scopes and shapes results for output.
package query

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/smaliref/internal/config"
	"github.com/standardbeagle/smaliref/internal/core"
	"github.com/standardbeagle/smaliref/internal/debug"
	"github.com/standardbeagle/smaliref/internal/errors"
	"github.com/standardbeagle/smaliref/internal/parser"
	"github.com/standardbeagle/smaliref/internal/search"
	"github.com/standardbeagle/smaliref/internal/smali"
	"github.com/standardbeagle/smaliref/internal/types"
	"github.com/standardbeagle/smaliref/pkg/pathutil"
)

// Service runs queries against one corpus.
type Service struct {
	root       string
	maxResults int
	corpus     *core.Corpus
	searcher   *search.Searcher
}

// NewService wires the descriptor deriver, the smali reference predicate
// and corpus into a searcher. The corpus lock timeout is taken from cfg.
func NewService(cfg *config.Config, corpus *core.Corpus) *Service {
	corpus.SetLockTimeout(time.Duration(cfg.Search.LockTimeoutMs) * time.Millisecond)

	var deriver parser.DescriptorDeriver
	return &Service{
		root:       cfg.Project.Root,
		maxResults: cfg.Search.MaxResults,
		corpus:     corpus,
		searcher:   search.NewSearcher(deriver, corpus, smali.NewReferencePredicate(deriver), corpus),
	}
}

// Root returns the project root results are reported against.
func (s *Service) Root() string { return s.root }

// Corpus returns the queried corpus.
func (s *Service) Corpus() *core.Corpus { return s.corpus }

// RefsRequest asks for the references to one Java class.
//
// Scope and In are exclusive. Scope holds doublestar patterns over
// root-relative paths and keeps the search project-wide. In names smali
// files, each optionally followed by "#member", and restricts the search to
// exactly those elements.
type RefsRequest struct {
	Class string   `json:"class"`
	Scope []string `json:"scope,omitempty"`
	In    []string `json:"in,omitempty"`
	Max   int      `json:"max,omitempty"`

	// OnReference, when set, sees each reference as soon as it is
	// confirmed, before FindReferences returns.
	OnReference func(Reference) `json:"-"`
}

// Reference is one confirmed reference in output form.
type Reference struct {
	Path   string `json:"path"`
	URI    string `json:"uri"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Offset int    `json:"offset"`
	Member string `json:"member,omitempty"`
	Text   string `json:"text"`
}

// RefsResult lists the references found for a class. Truncated is set when
// the search stopped at the result limit with more references remaining.
type RefsResult struct {
	Class      string      `json:"class"`
	Descriptor string      `json:"descriptor"`
	DeclaredIn string      `json:"declared_in"`
	References []Reference `json:"references"`
	Truncated  bool        `json:"truncated,omitempty"`
	// Partial is set when the search was cancelled or timed out; the
	// references found before that are still valid.
	Partial bool `json:"partial,omitempty"`
}

// ClassInfo describes a declared, addressable Java class.
type ClassInfo struct {
	Name          string `json:"name"`
	QualifiedName string `json:"qualified_name"`
	Descriptor    string `json:"descriptor"`
	Kind          string `json:"kind"`
	Path          string `json:"path"`
	Line          int    `json:"line"`
}

// FindReferences resolves req.Class and reports its references in smali
// documents, in document then offset order. When ctx is cancelled or its
// deadline passes mid-search, the references found so far are returned
// with Partial set, together with the error.
func (s *Service) FindReferences(ctx context.Context, req RefsRequest) (*RefsResult, error) {
	if strings.TrimSpace(req.Class) == "" {
		return nil, errors.NewContractError("class", "is required")
	}
	if req.Max < 0 {
		return nil, errors.NewContractError("max", "must not be negative")
	}
	limit := req.Max
	if limit == 0 {
		limit = s.maxResults
	}

	// One read hold covers resolution, scope building and the search
	held, release, err := s.corpus.AcquireRead(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	cls, err := s.resolveClass(held, req.Class)
	if err != nil {
		return nil, err
	}
	scope, err := s.buildScope(held, req)
	if err != nil {
		return nil, err
	}

	result := &RefsResult{
		Class:      cls.QualifiedName,
		Descriptor: cls.Descriptor(),
		DeclaredIn: pathutil.Display(cls.Path, s.root),
		References: []Reference{},
	}
	start := time.Now()
	err = s.searcher.Search(held, search.Request{
		Target: cls,
		Scope:  scope,
		Sink: func(ref types.Reference) bool {
			if limit > 0 && len(result.References) == limit {
				result.Truncated = true
				return false
			}
			out := s.reference(ref)
			result.References = append(result.References, out)
			if req.OnReference != nil {
				req.OnReference(out)
			}
			return true
		},
	})
	if err != nil {
		searchErr := errors.NewSearchError(cls.QualifiedName, err).WithToken(result.Descriptor)
		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			result.Partial = true
			debug.LogSearch("%s: stopped after %d references: %v\n", result.Descriptor, len(result.References), err)
			return result, searchErr
		}
		return nil, searchErr
	}
	debug.LogSearch("%s: %d references (truncated=%v) in %v\n",
		result.Descriptor, len(result.References), result.Truncated, time.Since(start))
	return result, nil
}

// Classes lists addressable classes whose qualified name matches filter.
// A filter containing glob metacharacters is matched with doublestar,
// anything else as a case-insensitive substring. Local classes are omitted.
func (s *Service) Classes(ctx context.Context, filter string) ([]ClassInfo, error) {
	glob := strings.ContainsAny(filter, "*?[{")
	if glob && !doublestar.ValidatePattern(filter) {
		return nil, errors.NewContractError("filter", "is not a valid glob pattern")
	}
	needle := strings.ToLower(filter)

	classes, err := s.corpus.Classes(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ClassInfo, 0, len(classes))
	for _, cls := range classes {
		if cls.IsLocal() {
			continue
		}
		switch {
		case filter == "":
		case glob:
			if ok, _ := doublestar.Match(filter, cls.QualifiedName); !ok {
				continue
			}
		default:
			if !strings.Contains(strings.ToLower(cls.QualifiedName), needle) {
				continue
			}
		}
		out = append(out, ClassInfo{
			Name:          cls.Name,
			QualifiedName: cls.QualifiedName,
			Descriptor:    cls.Descriptor(),
			Kind:          cls.Kind,
			Path:          pathutil.Display(cls.Path, s.root),
			Line:          cls.Line,
		})
	}
	return out, nil
}

// Stats reports corpus counts.
func (s *Service) Stats(ctx context.Context) (core.Stats, error) {
	return s.corpus.Stats(ctx)
}

// resolveClass returns the class named by name. Duplicate declarations of
// one qualified name share a descriptor, so the first in path order is used.
func (s *Service) resolveClass(ctx context.Context, name string) (*parser.JavaClass, error) {
	name = strings.TrimSpace(name)
	found, err := s.corpus.FindClass(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(found) > 0 {
		return found[0], nil
	}

	classes, err := s.corpus.Classes(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(classes))
	for _, cls := range classes {
		if !cls.IsLocal() {
			names = append(names, cls.QualifiedName)
		}
	}
	return nil, &NotFoundError{Kind: "class", Name: name, Suggestions: suggest(name, names)}
}

func (s *Service) buildScope(ctx context.Context, req RefsRequest) (types.Scope, error) {
	if len(req.In) > 0 && len(req.Scope) > 0 {
		return types.Scope{}, errors.NewContractError("in", "cannot be combined with scope")
	}

	if len(req.In) == 0 {
		var filter types.ScopeFilter
		if len(req.Scope) > 0 {
			glob, err := search.NewGlobFilter(s.root, req.Scope...)
			if err != nil {
				return types.Scope{}, err
			}
			filter = glob
		}
		return types.GlobalScope(filter, s.corpus), nil
	}

	elements := make([]types.Element, 0, len(req.In))
	for _, target := range req.In {
		elem, err := s.element(ctx, target)
		if err != nil {
			return types.Scope{}, err
		}
		elements = append(elements, elem)
	}
	return types.LocalScope(elements...), nil
}

// element resolves "FILE" or "FILE#MEMBER" to a smali node. FILE may be a
// root-relative path, an absolute path or a file:// URI.
func (s *Service) element(ctx context.Context, target string) (types.Element, error) {
	file, member, _ := strings.Cut(target, "#")
	path := pathutil.ToAbsolute(pathutil.FromURI(file), s.root)

	sf, err := s.corpus.SmaliFile(ctx, path)
	if err != nil {
		return nil, err
	}
	if sf == nil {
		var known []string
		for doc, err := range s.corpus.Documents(ctx, types.FileTypeSmali, nil) {
			if err != nil {
				return nil, err
			}
			known = append(known, pathutil.Display(doc.Path, s.root))
		}
		return nil, &NotFoundError{Kind: "smali file", Name: file, Suggestions: suggest(file, known)}
	}
	if member == "" {
		return sf.Root(), nil
	}

	node := sf.Member(member)
	if node == nil {
		var known []string
		for _, m := range sf.Members() {
			known = append(known, m.Name())
		}
		return nil, &NotFoundError{Kind: "member", Name: target, Suggestions: suggest(member, known)}
	}
	return node, nil
}

func (s *Service) reference(ref types.Reference) Reference {
	out := Reference{
		Path:   pathutil.Display(ref.Path(), s.root),
		URI:    pathutil.FileURI(ref.Path()),
		Line:   ref.Line,
		Column: ref.Column,
		Offset: ref.Offset,
		Text:   strings.TrimSpace(ref.Document.LineText(ref.Line)),
	}
	if n, ok := ref.Element.(*smali.Node); ok {
		out.Member = enclosingMember(n)
	}
	return out
}

// enclosingMember returns the signature of the field or method containing
// n, or "" at class level.
func enclosingMember(n *smali.Node) string {
	for ; n != nil; n = n.Parent() {
		switch n.NodeKind() {
		case smali.KindField, smali.KindMethod:
			if sig := n.Signature(); sig != "" {
				return sig
			}
			return n.Name()
		}
	}
	return ""
}
