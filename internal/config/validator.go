package config

import (
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"github.com/bmatcuk/doublestar/v4"

	srerrors "github.com/standardbeagle/smaliref/internal/errors"
)

// Validator validates configuration and sets smart defaults
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart defaults.
// Errors are *errors.ConfigError naming the offending section.
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateProjectConfig(&cfg.Project); err != nil {
		return srerrors.NewConfigError("project", cfg.Project.Root, err)
	}

	if err := v.validateIndexConfig(&cfg.Index); err != nil {
		return srerrors.NewConfigError("index", "", err)
	}

	if err := v.validatePerformanceConfig(&cfg.Performance); err != nil {
		return srerrors.NewConfigError("performance", strconv.Itoa(cfg.Performance.Workers), err)
	}

	if err := v.validateSearchConfig(&cfg.Search); err != nil {
		return srerrors.NewConfigError("search", "", err)
	}

	for _, field := range []struct {
		name     string
		patterns []string
	}{{"include", cfg.Include}, {"exclude", cfg.Exclude}} {
		for _, p := range field.patterns {
			if !doublestar.ValidatePattern(p) {
				return srerrors.NewConfigError(field.name, p, doublestar.ErrBadPattern)
			}
		}
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validateProjectConfig(project *Project) error {
	if project.Root == "" {
		return errors.New("project root cannot be empty")
	}
	return nil
}

func (v *Validator) validateIndexConfig(index *Index) error {
	if index.MaxFileSize <= 0 {
		return fmt.Errorf("MaxFileSize must be positive, got %d", index.MaxFileSize)
	}

	if index.MaxFileSize > 100*1024*1024 {
		return fmt.Errorf("MaxFileSize should not exceed 100MB, got %d", index.MaxFileSize)
	}

	if index.MaxFileCount <= 0 {
		return fmt.Errorf("MaxFileCount must be positive, got %d", index.MaxFileCount)
	}

	if index.WatchDebounceMs < 0 {
		return fmt.Errorf("WatchDebounceMs cannot be negative, got %d", index.WatchDebounceMs)
	}

	return nil
}

func (v *Validator) validatePerformanceConfig(perf *Performance) error {
	// 0 means auto-detect (set by smart defaults)
	if perf.Workers < 0 {
		return fmt.Errorf("Workers cannot be negative, got %d", perf.Workers)
	}
	if perf.ParserPoolSize < 0 {
		return fmt.Errorf("ParserPoolSize cannot be negative, got %d", perf.ParserPoolSize)
	}
	return nil
}

func (v *Validator) validateSearchConfig(search *Search) error {
	if search.MaxResults < 0 {
		return fmt.Errorf("MaxResults cannot be negative, got %d", search.MaxResults)
	}
	if search.LockTimeoutMs < 0 {
		return fmt.Errorf("LockTimeoutMs cannot be negative, got %d", search.LockTimeoutMs)
	}
	return nil
}

// setSmartDefaults applies defaults based on system capabilities
func (v *Validator) setSmartDefaults(cfg *Config) {
	// Leave one core for the OS, minimum of 1
	if cfg.Performance.Workers == 0 {
		cfg.Performance.Workers = max(1, runtime.NumCPU()-1)
	}

	if cfg.Performance.ParserPoolSize == 0 {
		cfg.Performance.ParserPoolSize = cfg.Performance.Workers
	}

	if cfg.Index.WatchDebounceMs == 0 {
		cfg.Index.WatchDebounceMs = 300
	}

	if len(cfg.Include) == 0 {
		cfg.Include = []string{"**/*.java", "**/*.smali"}
	}
}

// ValidateConfig is a convenience function for quick validation
func ValidateConfig(cfg *Config) error {
	return NewValidator().ValidateAndSetDefaults(cfg)
}
