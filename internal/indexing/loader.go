package indexing

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/smaliref/internal/config"
	"github.com/standardbeagle/smaliref/internal/core"
	"github.com/standardbeagle/smaliref/internal/debug"
	"github.com/standardbeagle/smaliref/internal/errors"
	"github.com/standardbeagle/smaliref/internal/types"
)

// Loader fills a corpus from the files below the project root.
type Loader struct {
	cfg     *config.Config
	corpus  *core.Corpus
	matcher *Matcher
}

// LoadStats summarizes one Load call. Errors holds the per-file failures;
// they do not stop the load.
type LoadStats struct {
	Loaded    int
	Unchanged int
	Skipped   int
	Errors    []error
	Duration  time.Duration
}

// Err folds the per-file failures into one error, or nil.
func (s LoadStats) Err() error {
	return errors.NewMultiError(s.Errors).ErrorOrNil()
}

func NewLoader(cfg *config.Config, corpus *core.Corpus) *Loader {
	return &Loader{
		cfg:     cfg,
		corpus:  corpus,
		matcher: NewMatcher(cfg),
	}
}

// Corpus returns the corpus the loader writes to.
func (l *Loader) Corpus() *core.Corpus { return l.corpus }

type candidate struct {
	path string
	size int64
}

// Load walks the project root and stores every matching file in the
// corpus, reading with up to Performance.Workers goroutines. It fails only
// when the root cannot be walked or ctx is done.
func (l *Loader) Load(ctx context.Context) (LoadStats, error) {
	start := time.Now()
	var stats LoadStats

	candidates, skipped, err := l.collect(ctx)
	if err != nil {
		return stats, errors.NewLoadError("walk", err).WithFile(0, l.cfg.Project.Root)
	}
	stats.Skipped = skipped
	debug.LogIndex("loading %d files from %s\n", len(candidates), l.cfg.Project.Root)

	var mu sync.Mutex
	record := func(changed bool, err error) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case err != nil:
			stats.Errors = append(stats.Errors, errors.NewLoadError("load", err).WithRecoverable(true))
		case changed:
			stats.Loaded++
		default:
			stats.Unchanged++
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, l.cfg.Performance.Workers))
	for _, c := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			record(l.load(c.path, c.size))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	debug.LogIndex("loaded %d files (%d unchanged, %d skipped, %d errors) in %v\n",
		stats.Loaded, stats.Unchanged, stats.Skipped, len(stats.Errors), stats.Duration)
	return stats, nil
}

func (l *Loader) collect(ctx context.Context) ([]candidate, int, error) {
	var out []candidate
	skipped := 0
	root := l.cfg.Project.Root

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			debug.LogIndex("walk: skipping %s: %v\n", path, err)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if d.IsDir() {
			if path != root && l.matcher.SkipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !l.matcher.MatchFile(path) {
			return nil
		}

		info, err := l.statEntry(path, d)
		if err != nil || info == nil || !info.Mode().IsRegular() {
			skipped++
			return nil
		}
		if info.Size() > l.cfg.Index.MaxFileSize {
			debug.LogIndex("walk: skipping oversized %s (%d bytes)\n", path, info.Size())
			skipped++
			return nil
		}
		if len(out) >= l.cfg.Index.MaxFileCount {
			skipped++
			return nil
		}
		out = append(out, candidate{path: path, size: info.Size()})
		return nil
	})
	return out, skipped, err
}

// statEntry resolves symlinked files when the config allows it. Symlinked
// directories are never descended.
func (l *Loader) statEntry(path string, d fs.DirEntry) (fs.FileInfo, error) {
	if d.Type()&fs.ModeSymlink != 0 {
		if !l.cfg.Index.FollowSymlinks {
			return nil, nil
		}
		return os.Stat(path)
	}
	return d.Info()
}

// LoadFile reads one file into the corpus. The path must be absolute. It
// reports whether the stored content changed; files the matcher rejects
// report false without error.
func (l *Loader) LoadFile(path string) (bool, error) {
	if !l.matcher.MatchFile(path) {
		return false, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, errors.NewFileError("stat", path, err)
	}
	if info.IsDir() {
		return false, nil
	}
	if info.Size() > l.cfg.Index.MaxFileSize {
		return false, errors.NewFileTooLargeError(path, info.Size(), l.cfg.Index.MaxFileSize)
	}
	return l.load(path, info.Size())
}

func (l *Loader) load(path string, size int64) (bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return false, errors.NewFileError("read", path, err)
	}
	// The file may have grown since it was stat'ed
	if int64(len(content)) > l.cfg.Index.MaxFileSize {
		return false, errors.NewFileTooLargeError(path, int64(len(content)), l.cfg.Index.MaxFileSize)
	}
	if isBinary(content) {
		debug.LogIndex("skipping binary file %s (%d bytes)\n", path, size)
		return false, nil
	}
	return l.corpus.Put(path, content)
}

// Remove drops path from the corpus.
func (l *Loader) Remove(path string) bool {
	return l.corpus.Remove(path)
}

// isBinary reports a NUL byte near the start of content. Smali and Java
// sources never contain one.
func isBinary(content []byte) bool {
	head := content[:min(len(content), types.BinaryPreCheckBytes)]
	return bytes.IndexByte(head, 0) >= 0
}
