package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL loads configuration from the .smaliref.kdl file in projectRoot.
// It returns nil, nil when there is no such file.
func LoadKDL(projectRoot string) (*Config, error) {
	kdlPath := filepath.Join(projectRoot, KDLFileName)

	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", KDLFileName, err)
	}

	cfg, err := parseKDL(string(content))
	if err != nil {
		return nil, err
	}

	resolveRoot(cfg, projectRoot)
	return cfg, nil
}

// parseKDL applies a KDL document on top of the defaults.
//
//	project { root "."; name "app" }
//	index { max_file_size "2MB"; watch true; watch_debounce_ms 200 }
//	performance { workers 4 }
//	search { max_results 500 }
//	include "**/*.smali" "**/*.java"
//	exclude { "**/build/**"; "**/original/**" }
func parseKDL(content string) (*Config, error) {
	cfg := Default("")
	cfg.Project = Project{}

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "version":
			if v, ok := firstIntArg(n); ok {
				cfg.Version = v
			}
		case "project":
			for _, cn := range n.Children {
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignSimpleString(cn, "name", func(v string) { cfg.Project.Name = v })
			}
		case "index":
			for _, cn := range n.Children {
				parseIndexNode(cfg, cn)
			}
		case "performance":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.Workers = v
					}
				case "parser_pool_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Performance.ParserPoolSize = v
					}
				}
			}
		case "search":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "max_results":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.MaxResults = v
					}
				case "lock_timeout_ms":
					if v, ok := firstIntArg(cn); ok {
						cfg.Search.LockTimeoutMs = v
					}
				}
			}
		case "include":
			cfg.Include = collectStringArgs(n)
		case "exclude":
			cfg.Exclude = DeduplicatePatterns(append(cfg.Exclude, collectStringArgs(n)...))
		default:
			log.Printf("WARNING: unknown node '%s' in %s", nodeName(n), KDLFileName)
		}
	}

	return cfg, nil
}

func parseIndexNode(cfg *Config, n *document.Node) {
	switch nodeName(n) {
	case "max_file_size":
		if v, ok := firstIntArg(n); ok {
			cfg.Index.MaxFileSize = int64(v)
		}
		if s, ok := firstStringArg(n); ok {
			if sz, err := parseSize(s); err == nil {
				cfg.Index.MaxFileSize = sz
			}
		}
	case "max_file_count":
		if v, ok := firstIntArg(n); ok {
			cfg.Index.MaxFileCount = v
		}
	case "follow_symlinks":
		if b, ok := firstBoolArg(n); ok {
			cfg.Index.FollowSymlinks = b
		}
	case "respect_gitignore":
		if b, ok := firstBoolArg(n); ok {
			cfg.Index.RespectGitignore = b
		}
	case "watch":
		if b, ok := firstBoolArg(n); ok {
			cfg.Index.Watch = b
		}
	case "watch_debounce_ms":
		if v, ok := firstIntArg(n); ok {
			cfg.Index.WatchDebounceMs = v
		}
	}
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case bool:
		return v, true
	case string:
		return parseBool(v), true
	default:
		return false, false
	}
}

// collectStringArgs reads inline arguments (include "a" "b") or, failing
// that, a block whose children are the strings (exclude { "a"; "b" }).
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	if len(out) == 0 && len(n.Children) > 0 {
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}

	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}

// parseSize handles size strings like "10MB", "500KB", "1GB"
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	numStr := s

	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		numStr = strings.TrimSuffix(s, "B")
	}

	num, err := strconv.ParseInt(strings.TrimSpace(numStr), 10, 64)
	if err != nil {
		return 0, err
	}
	return num * multiplier, nil
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "yes" || s == "1" || s == "on"
}
