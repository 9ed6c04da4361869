package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// GitignoreParser turns .gitignore entries into doublestar exclusion
// patterns.
type GitignoreParser struct {
	patterns []GitignorePattern
}

type GitignorePattern struct {
	Pattern   string
	Negate    bool
	Directory bool
	Absolute  bool
}

func NewGitignoreParser() *GitignoreParser {
	return &GitignoreParser{}
}

// LoadGitignore loads patterns from rootPath/.gitignore. A missing file is
// not an error.
func (gp *GitignoreParser) LoadGitignore(rootPath string) error {
	file, err := os.Open(filepath.Join(rootPath, ".gitignore"))
	if err != nil {
		return nil
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		gp.AddPattern(line)
	}
	return scanner.Err()
}

// AddPattern adds a single .gitignore line.
func (gp *GitignoreParser) AddPattern(line string) {
	var p GitignorePattern
	if strings.HasPrefix(line, "!") {
		p.Negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.Directory = true
		line = strings.TrimSuffix(line, "/")
	}
	// A slash anywhere but the end anchors the pattern to the root
	if strings.HasPrefix(line, "/") || strings.Contains(line, "/") {
		p.Absolute = true
		line = strings.TrimPrefix(line, "/")
	}
	if line == "" {
		return
	}
	p.Pattern = line
	gp.patterns = append(gp.patterns, p)
}

// ExclusionPatterns returns the loaded entries as doublestar patterns.
// Negations are skipped: exclusions cannot be re-included.
func (gp *GitignoreParser) ExclusionPatterns() []string {
	var out []string
	for _, p := range gp.patterns {
		if p.Negate {
			continue
		}
		pattern := p.Pattern
		if !p.Absolute && !strings.HasPrefix(pattern, "**/") {
			pattern = "**/" + pattern
		}
		if p.Directory {
			out = append(out, pattern+"/**")
			continue
		}
		// A bare name may be a file or a directory
		out = append(out, pattern, pattern+"/**")
	}
	return out
}
