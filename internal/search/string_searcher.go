package search

import (
	"iter"
	"slices"
	"unicode"
	"unicode/utf8"
)

// StringSearcher finds a fixed pattern in text with Boyer-Moore-Horspool.
// Matching is case-sensitive and supports no wildcards.
//
// Word boundaries are enforced only for identifier-shaped patterns, those
// starting with an identifier-start character and ending with an identifier
// character. For such patterns a hit preceded or followed by an identifier
// character is not a whole word. Other patterns, like type descriptors
// ending in ';', match wherever their text occurs.
type StringSearcher struct {
	pattern          []byte
	shift            [256]int
	identifierShaped bool
}

// NewStringSearcher prepares a searcher for pattern.
func NewStringSearcher(pattern string) *StringSearcher {
	s := &StringSearcher{pattern: []byte(pattern)}
	m := len(s.pattern)
	for i := range s.shift {
		s.shift[i] = m
	}
	for i := 0; i < m-1; i++ {
		s.shift[s.pattern[i]] = m - 1 - i
	}
	if m > 0 {
		first, _ := utf8.DecodeRuneInString(pattern)
		last, _ := utf8.DecodeLastRuneInString(pattern)
		s.identifierShaped = IsIdentifierStart(first) && IsIdentifierPart(last)
	}
	return s
}

// Pattern returns the searched text.
func (s *StringSearcher) Pattern() string { return string(s.pattern) }

// IdentifierShaped reports whether word boundaries apply to this pattern.
func (s *StringSearcher) IdentifierShaped() bool { return s.identifierShaped }

// Occurrences yields the start offset of every whole-word match in text,
// in ascending order. Matches may overlap. An empty pattern yields nothing.
func (s *StringSearcher) Occurrences(text []byte) iter.Seq[int] {
	return func(yield func(int) bool) {
		if len(s.pattern) == 0 {
			return
		}
		for i := s.next(text, 0); i >= 0; i = s.next(text, i+1) {
			if !s.isWholeWord(text, i) {
				continue
			}
			if !yield(i) {
				return
			}
		}
	}
}

// FindAll returns every whole-word match offset in text.
func (s *StringSearcher) FindAll(text []byte) []int {
	return slices.Collect(s.Occurrences(text))
}

// next returns the first raw match at or after from, or -1.
func (s *StringSearcher) next(text []byte, from int) int {
	m := len(s.pattern)
	n := len(text)
	last := m - 1
	for i := from; i+m <= n; {
		j := last
		for j >= 0 && text[i+j] == s.pattern[j] {
			j--
		}
		if j < 0 {
			return i
		}
		i += s.shift[text[i+last]]
	}
	return -1
}

func (s *StringSearcher) isWholeWord(text []byte, start int) bool {
	if !s.identifierShaped {
		return true
	}
	if start > 0 {
		r, _ := utf8.DecodeLastRune(text[:start])
		if IsIdentifierPart(r) {
			return false
		}
	}
	if end := start + len(s.pattern); end < len(text) {
		r, _ := utf8.DecodeRune(text[end:])
		if IsIdentifierPart(r) {
			return false
		}
	}
	return true
}

// IsIdentifierStart reports whether r may begin an identifier.
func IsIdentifierStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

// IsIdentifierPart reports whether r may continue an identifier. '$' is
// excluded so nested class names split into words.
func IsIdentifierPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
