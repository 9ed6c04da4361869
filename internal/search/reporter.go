package search

import (
	"iter"

	"github.com/standardbeagle/smaliref/internal/types"
)

// reporter confirms occurrences and forwards references to the sink.
type reporter struct {
	target    types.Symbol
	token     string
	predicate ReferencePredicate
	sink      Sink
	reported  int
}

// report validates one occurrence. It returns false once the sink asks to
// stop.
func (r *reporter) report(occ types.Occurrence) (bool, error) {
	ok, err := r.predicate.IsReferenceTo(occ.Element, occ.OffsetInElement, r.target)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	r.reported++
	return r.sink(types.NewReference(occ, r.token)), nil
}

// drain reports every occurrence of one document or element.
func (r *reporter) drain(occurrences iter.Seq2[types.Occurrence, error]) (bool, error) {
	for occ, err := range occurrences {
		if err != nil {
			return false, err
		}
		more, err := r.report(occ)
		if err != nil || !more {
			return false, err
		}
	}
	return true, nil
}
