package search

import (
	"iter"

	"github.com/standardbeagle/smaliref/internal/types"
)

// scanDocument yields the occurrences of the searcher's pattern in doc.
func (s *Searcher) scanDocument(doc *types.Document, ss *StringSearcher) iter.Seq2[types.Occurrence, error] {
	return s.scanRange(doc, types.TextRange{Start: 0, End: len(doc.Content)}, ss)
}

// scanElement scans only the text covered by elem.
func (s *Searcher) scanElement(elem types.Element, ss *StringSearcher) iter.Seq2[types.Occurrence, error] {
	return s.scanRange(elem.Document(), elem.Range(), ss)
}

// scanRange runs the text prefilter over r and maps each hit to the
// smallest element containing it. Only hits reach the locator. Occurrences
// come out in ascending offset order; a locator error ends the sequence.
func (s *Searcher) scanRange(doc *types.Document, r types.TextRange, ss *StringSearcher) iter.Seq2[types.Occurrence, error] {
	return func(yield func(types.Occurrence, error) bool) {
		start := max(r.Start, 0)
		end := min(r.End, len(doc.Content))
		if start >= end {
			return
		}
		for hit := range ss.Occurrences(doc.Content[start:end]) {
			offset := start + hit
			elem, err := s.locator.ElementAt(doc, offset)
			if err != nil {
				yield(types.Occurrence{}, err)
				return
			}
			if elem == nil {
				continue
			}
			occ := types.Occurrence{Element: elem, OffsetInElement: offset - elem.Range().Start}
			if !yield(occ, nil) {
				return
			}
		}
	}
}
