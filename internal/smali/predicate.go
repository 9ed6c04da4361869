package smali

import (
	"github.com/standardbeagle/smaliref/internal/search"
	"github.com/standardbeagle/smaliref/internal/types"
)

// ReferencePredicate confirms that an occurrence is a class type reference
// to the target: the element must be a type reference node, the occurrence
// must start at its 'L', and the node's descriptor must equal the target's.
// Text inside comments, string literals, or longer descriptors never
// qualifies.
type ReferencePredicate struct {
	deriver search.TokenDeriver
}

// NewReferencePredicate creates a predicate that derives target descriptors
// with deriver.
func NewReferencePredicate(deriver search.TokenDeriver) *ReferencePredicate {
	return &ReferencePredicate{deriver: deriver}
}

// IsReferenceTo implements search.ReferencePredicate.
func (p *ReferencePredicate) IsReferenceTo(elem types.Element, offsetInElement int, target types.Symbol) (bool, error) {
	n, ok := elem.(*Node)
	if !ok || n.kind != KindTypeRef || offsetInElement != n.dims {
		return false, nil
	}
	token, ok := p.deriver.DeriveSearchToken(target)
	return ok && token == n.name, nil
}
