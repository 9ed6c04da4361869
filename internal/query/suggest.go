package query

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hbollon/go-edlib"
)

const maxSuggestions = 3

// NotFoundError reports a class, file or member name that does not resolve,
// with the closest known names.
type NotFoundError struct {
	Kind        string
	Name        string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s %q not found", e.Kind, e.Name)
	if len(e.Suggestions) > 0 {
		msg += "; did you mean " + strings.Join(e.Suggestions, ", ") + "?"
	}
	return msg
}

// suggest ranks candidates by Levenshtein distance to input. Candidates are
// compared whole and by their last name segment, so "Bar" finds
// "com.example.Bar".
func suggest(input string, candidates []string) []string {
	if input == "" || len(candidates) == 0 {
		return nil
	}
	type scored struct {
		name     string
		distance int
	}

	lower := strings.ToLower(input)
	threshold := max(2, len(input)/3)
	var matches []scored
	for _, c := range candidates {
		d := edlib.LevenshteinDistance(lower, strings.ToLower(c))
		if i := strings.LastIndexAny(c, "./$"); i >= 0 && i < len(c)-1 {
			d = min(d, edlib.LevenshteinDistance(lower, strings.ToLower(c[i+1:])))
		}
		if d <= threshold {
			matches = append(matches, scored{c, d})
		}
	}

	slices.SortFunc(matches, func(a, b scored) int {
		if a.distance != b.distance {
			return a.distance - b.distance
		}
		return strings.Compare(a.name, b.name)
	})

	out := make([]string, 0, maxSuggestions)
	for _, m := range matches {
		if len(out) == maxSuggestions {
			break
		}
		if !slices.Contains(out, m.name) {
			out = append(out, m.name)
		}
	}
	return out
}
