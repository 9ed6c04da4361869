package config

import (
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/standardbeagle/smaliref/internal/types"
)

// Config file names, looked up in the project root in this order.
const (
	KDLFileName  = ".smaliref.kdl"
	TOMLFileName = ".smaliref.toml"
)

type Config struct {
	Version     int         `toml:"version"`
	Project     Project     `toml:"project"`
	Index       Index       `toml:"index"`
	Performance Performance `toml:"performance"`
	Search      Search      `toml:"search"`
	Include     []string    `toml:"include"`
	Exclude     []string    `toml:"exclude"`
}

type Project struct {
	Root string `toml:"root"`
	Name string `toml:"name"`
}

type Index struct {
	MaxFileSize      int64 `toml:"max_file_size"`
	MaxFileCount     int   `toml:"max_file_count"`
	FollowSymlinks   bool  `toml:"follow_symlinks"`
	RespectGitignore bool  `toml:"respect_gitignore"` // Add .gitignore entries to the exclusions
	Watch            bool  `toml:"watch"`             // Keep the corpus in sync with the file system
	WatchDebounceMs  int   `toml:"watch_debounce_ms"` // Debounce time for file change events
}

type Performance struct {
	Workers        int `toml:"workers"`          // Concurrent file readers; 0 = auto-detect
	ParserPoolSize int `toml:"parser_pool_size"` // Idle Java parsers kept; 0 = Workers
}

type Search struct {
	MaxResults    int `toml:"max_results"` // 0 = unlimited
	LockTimeoutMs int `toml:"lock_timeout_ms"`
}

// Default returns the configuration used when no config file exists.
func Default(root string) *Config {
	return &Config{
		Version: 1,
		Project: Project{
			Root: root,
			Name: filepath.Base(root),
		},
		Index: Index{
			MaxFileSize:      types.DefaultMaxFileSize,
			MaxFileCount:     types.DefaultMaxFileCount,
			FollowSymlinks:   false,
			RespectGitignore: true,
			Watch:            true,
			WatchDebounceMs:  300,
		},
		Performance: Performance{
			Workers: runtime.NumCPU(),
		},
		Search: Search{
			MaxResults:    0,
			LockTimeoutMs: 30000,
		},
		Include: []string{"**/*.java", "**/*.smali"},
		Exclude: defaultExclusions(),
	}
}

func defaultExclusions() []string {
	return []string{
		// VCS and hidden directories
		"**/.git/**",
		"**/.*/**",

		// Gradle and IDE output
		"**/build/**",
		"**/.gradle/**",
		"**/.idea/**",

		// apktool copies of the original APK metadata
		"**/original/**",
		"**/dist/**",

		"**/node_modules/**",
	}
}

// Load reads the configuration for rootDir. A user-wide ~/.smaliref.kdl
// provides a base the project file overrides; without either the defaults
// are returned. The result is validated.
func Load(rootDir string) (*Config, error) {
	if rootDir == "" {
		rootDir = "."
	}
	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		absRoot = rootDir
	}

	var base *Config
	if home, err := os.UserHomeDir(); err == nil && home != absRoot {
		if globalCfg, err := LoadKDL(home); err == nil && globalCfg != nil {
			base = globalCfg
		}
	}

	project, err := loadProject(absRoot)
	if err != nil {
		return nil, err
	}

	var cfg *Config
	switch {
	case base != nil && project != nil:
		cfg = mergeConfigs(base, project)
	case project != nil:
		cfg = project
	case base != nil:
		cfg = base
		cfg.Project.Root = absRoot
		cfg.Project.Name = filepath.Base(absRoot)
	default:
		cfg = Default(absRoot)
	}

	if cfg.Index.RespectGitignore {
		gp := NewGitignoreParser()
		if err := gp.LoadGitignore(cfg.Project.Root); err == nil {
			cfg.Exclude = DeduplicatePatterns(append(cfg.Exclude, gp.ExclusionPatterns()...))
		}
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadProject(root string) (*Config, error) {
	cfg, err := LoadKDL(root)
	if err != nil || cfg != nil {
		return cfg, err
	}
	return LoadTOML(root)
}

// mergeConfigs merges a base config with a project config.
// Project settings win, but base exclusions are preserved.
func mergeConfigs(base, project *Config) *Config {
	merged := *project

	if len(base.Exclude) > 0 {
		merged.Exclude = DeduplicatePatterns(append(slices.Clone(base.Exclude), project.Exclude...))
	}

	// Inclusions: the project overrides the base completely if specified
	if len(project.Include) == 0 && len(base.Include) > 0 {
		merged.Include = base.Include
	}

	return &merged
}

// DeduplicatePatterns removes repeated patterns, keeping first occurrences.
func DeduplicatePatterns(patterns []string) []string {
	seen := make(map[string]bool, len(patterns))
	out := patterns[:0:0]
	for _, p := range patterns {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// resolveRoot makes a configured root absolute relative to the directory
// holding the config file.
func resolveRoot(cfg *Config, configDir string) {
	if cfg.Project.Root == "" {
		if abs, err := filepath.Abs(configDir); err == nil {
			cfg.Project.Root = abs
		} else {
			cfg.Project.Root = configDir
		}
	} else if !filepath.IsAbs(cfg.Project.Root) {
		cfg.Project.Root = filepath.Clean(filepath.Join(configDir, cfg.Project.Root))
	}
	if cfg.Project.Name == "" {
		cfg.Project.Name = filepath.Base(cfg.Project.Root)
	}
}
