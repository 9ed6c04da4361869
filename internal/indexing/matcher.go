package indexing

import (
	"path"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/smaliref/internal/config"
	"github.com/standardbeagle/smaliref/internal/types"
)

// Matcher applies the configured include and exclude globs to paths below
// the project root. Patterns are matched against the root-relative,
// slash-separated path.
type Matcher struct {
	root    string
	include []string
	exclude []string
}

func NewMatcher(cfg *config.Config) *Matcher {
	return &Matcher{
		root:    filepath.Clean(cfg.Project.Root),
		include: cfg.Include,
		exclude: cfg.Exclude,
	}
}

func (m *Matcher) relative(p string) (string, bool) {
	rel, err := filepath.Rel(m.root, p)
	if err != nil {
		return "", false
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || len(rel) > 2 && rel[:3] == "../" {
		return "", false
	}
	return rel, true
}

// SkipDir reports whether nothing below dir can be loaded.
func (m *Matcher) SkipDir(dir string) bool {
	rel, ok := m.relative(dir)
	if !ok {
		return true
	}
	if rel == "." {
		return false
	}
	// Match a child name so that "**/build/**" rejects "app/build"
	child := path.Join(rel, "_")
	for _, p := range m.exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, child); ok {
			return true
		}
	}
	return false
}

// MatchFile reports whether the file at p should be loaded: it must be
// Java or smali, match an include pattern and no exclude pattern.
func (m *Matcher) MatchFile(p string) bool {
	if types.ClassifyPath(p) == types.FileTypeUnknown {
		return false
	}
	rel, ok := m.relative(p)
	if !ok {
		return false
	}
	for _, pattern := range m.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}
	if len(m.include) == 0 {
		return true
	}
	for _, pattern := range m.include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
