package search

import (
	"context"

	"github.com/standardbeagle/smaliref/internal/debug"
	"github.com/standardbeagle/smaliref/internal/errors"
	"github.com/standardbeagle/smaliref/internal/types"
)

// TokenDeriver maps a declaration to the literal text that names it in the
// searched representation. ok=false means the symbol has no such name.
type TokenDeriver interface {
	DeriveSearchToken(sym types.Symbol) (token string, ok bool)
}

// StructuralLocator maps a document offset to the smallest structural
// element containing it.
type StructuralLocator interface {
	ElementAt(doc *types.Document, offset int) (types.Element, error)
}

// ReferencePredicate decides whether an occurrence denotes the target.
type ReferencePredicate interface {
	IsReferenceTo(elem types.Element, offsetInElement int, target types.Symbol) (bool, error)
}

// ReadLocker grants shared read access to the corpus. The returned context
// carries the hold so nested acquisitions through it do not block; release
// must be called exactly once.
type ReadLocker interface {
	AcquireRead(ctx context.Context) (context.Context, func(), error)
}

// Sink receives confirmed references. Returning false stops the search.
type Sink func(ref types.Reference) bool

// Request is one reference search. It is not modified by Search.
type Request struct {
	Target types.Symbol
	Scope  types.Scope
	Sink   Sink
}

// Searcher runs reference searches. It holds no per-request state and is
// safe for concurrent use.
type Searcher struct {
	deriver   TokenDeriver
	locator   StructuralLocator
	predicate ReferencePredicate
	locker    ReadLocker
}

// NewSearcher creates a searcher over the given collaborators. A nil locker
// means the corpus needs no synchronization.
func NewSearcher(deriver TokenDeriver, locator StructuralLocator, predicate ReferencePredicate, locker ReadLocker) *Searcher {
	if locker == nil {
		locker = nopLocker{}
	}
	return &Searcher{
		deriver:   deriver,
		locator:   locator,
		predicate: predicate,
		locker:    locker,
	}
}

// Search reports every reference to req.Target within req.Scope to req.Sink.
//
// It returns nil when the search ran to completion, found nothing, or was
// stopped by the sink. Cancellation returns ctx.Err(); references already
// delivered stay valid. Index, locator and predicate errors are returned unchanged,
// and sink panics propagate. A malformed request yields a
// *errors.ContractError before any collaborator is used.
func (s *Searcher) Search(ctx context.Context, req Request) error {
	if err := s.validate(req); err != nil {
		return err
	}

	ctx, release, err := s.locker.AcquireRead(ctx)
	if err != nil {
		return err
	}
	defer release()

	token, ok := s.deriver.DeriveSearchToken(req.Target)
	if !ok || token == "" {
		debug.LogSearch("no search token for %s\n", req.Target.SymbolName())
		return nil
	}

	scope, err := resolveScope(req.Scope)
	if err != nil {
		return err
	}

	debug.LogSearch("searching %s scope for %s (%s)\n", scope.Kind(), req.Target.SymbolName(), token)

	rep := &reporter{
		target:    req.Target,
		token:     token,
		predicate: s.predicate,
		sink:      req.Sink,
	}
	scanner := NewStringSearcher(token)

	switch scope.Kind() {
	case types.ScopeLocal:
		for _, elem := range scope.Elements() {
			if err := ctx.Err(); err != nil {
				return err
			}
			more, err := rep.drain(s.scanElement(elem, scanner))
			if err != nil || !more {
				return err
			}
		}
	case types.ScopeGlobal:
		for doc, err := range enumerateCandidates(ctx, scope) {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			more, err := rep.drain(s.scanDocument(doc, scanner))
			if err != nil || !more {
				return err
			}
		}
		// An index may end its sequence on cancellation without saying so.
		if err := ctx.Err(); err != nil {
			return err
		}
	}

	debug.LogSearch("search for %s done: %d references\n", token, rep.reported)
	return nil
}

func (s *Searcher) validate(req Request) error {
	switch {
	case s.deriver == nil:
		return errors.NewContractError("searcher.deriver", "is required")
	case s.locator == nil:
		return errors.NewContractError("searcher.locator", "is required")
	case s.predicate == nil:
		return errors.NewContractError("searcher.predicate", "is required")
	case req.Target == nil:
		return errors.NewContractError("request.target", "is required")
	case req.Sink == nil:
		return errors.NewContractError("request.sink", "is required")
	}

	switch req.Scope.Kind() {
	case types.ScopeLocal:
	case types.ScopeGlobal:
		if req.Scope.Index() == nil {
			return errors.NewContractError("request.scope", "global scope has no document index")
		}
	default:
		return errors.NewContractError("request.scope", "has unrecognized variant "+req.Scope.Kind().String())
	}
	return nil
}

type nopLocker struct{}

func (nopLocker) AcquireRead(ctx context.Context) (context.Context, func(), error) {
	return ctx, func() {}, nil
}
