package core

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/smaliref/internal/debug"
	"github.com/standardbeagle/smaliref/internal/errors"
	"github.com/standardbeagle/smaliref/internal/parser"
	"github.com/standardbeagle/smaliref/internal/search"
	"github.com/standardbeagle/smaliref/internal/smali"
	"github.com/standardbeagle/smaliref/internal/types"
)

var (
	_ types.DocumentIndex      = (*Corpus)(nil)
	_ search.StructuralLocator = (*Corpus)(nil)
	_ search.ReadLocker        = (*Corpus)(nil)
)

// Corpus holds the loaded Java and smali documents of a project.
//
// Readers take shared access with AcquireRead; Put and Remove take
// exclusive access. Java files are parsed when they are stored. Smali files
// are parsed on first structural lookup, so documents the text prefilter
// never hits are never parsed.
type Corpus struct {
	mu          sync.RWMutex
	lockTimeout atomic.Int64
	java        *parser.JavaParser
	nextID      types.FileID

	entries map[string]*entry
	paths   []string // sorted keys of entries

	byQualified map[string][]*parser.JavaClass
	byBinary    map[string][]*parser.JavaClass
}

type entry struct {
	doc     *types.Document
	classes []*parser.JavaClass

	parseOnce sync.Once
	smali     *smali.File
}

func (e *entry) smaliFile() *smali.File {
	e.parseOnce.Do(func() {
		e.smali = smali.Parse(e.doc)
	})
	return e.smali
}

// Stats summarizes corpus contents.
type Stats struct {
	Documents int `json:"documents"`
	Smali     int `json:"smali"`
	Java      int `json:"java"`
	Classes   int `json:"classes"`
}

// NewCorpus creates an empty corpus that parses Java with java.
func NewCorpus(java *parser.JavaParser) *Corpus {
	return &Corpus{
		java:        java,
		entries:     make(map[string]*entry),
		byQualified: make(map[string][]*parser.JavaClass),
		byBinary:    make(map[string][]*parser.JavaClass),
	}
}

// Put stores or replaces the document at path. It reports false when the
// stored content is already identical. Files that are neither Java nor
// smali are rejected.
func (c *Corpus) Put(path string, content []byte) (bool, error) {
	fileType := types.ClassifyPath(path)
	if fileType == types.FileTypeUnknown {
		return false, errors.NewLoadError("put", fmt.Errorf("unsupported file type")).WithFile(0, path)
	}
	hash := xxhash.Sum64(content)

	c.mu.RLock()
	old := c.entries[path]
	unchanged := old != nil && old.doc.FastHash == hash
	c.mu.RUnlock()
	if unchanged {
		return false, nil
	}

	// Parse outside the write lock
	var classes []*parser.JavaClass
	if fileType == types.FileTypeJava {
		var err error
		classes, err = c.java.ParseFile(path, content)
		if err != nil {
			return false, err
		}
	}

	doc := &types.Document{
		Path:        path,
		Type:        fileType,
		Content:     content,
		FastHash:    hash,
		LineOffsets: types.ComputeLineOffsets(content),
	}

	c.withWrite(func() {
		if prev, ok := c.entries[path]; ok {
			doc.ID = prev.doc.ID
			c.unindexClasses(prev.classes)
		} else {
			c.nextID++
			doc.ID = c.nextID
			i, _ := slices.BinarySearch(c.paths, path)
			c.paths = slices.Insert(c.paths, i, path)
		}
		c.entries[path] = &entry{doc: doc, classes: classes}
		c.indexClasses(classes)
	})

	debug.LogIndex("stored %s (%s, %d bytes, %d classes)\n", path, fileType, len(content), len(classes))
	return true, nil
}

// Remove drops the document at path and reports whether it was present.
func (c *Corpus) Remove(path string) bool {
	removed := false
	c.withWrite(func() {
		e, ok := c.entries[path]
		if !ok {
			return
		}
		c.unindexClasses(e.classes)
		delete(c.entries, path)
		if i, found := slices.BinarySearch(c.paths, path); found {
			c.paths = slices.Delete(c.paths, i, i+1)
		}
		removed = true
	})
	return removed
}

func (c *Corpus) indexClasses(classes []*parser.JavaClass) {
	for _, cls := range classes {
		if cls.IsLocal() {
			continue
		}
		c.byQualified[cls.QualifiedName] = append(c.byQualified[cls.QualifiedName], cls)
		c.byBinary[cls.BinaryName] = append(c.byBinary[cls.BinaryName], cls)
	}
}

func (c *Corpus) unindexClasses(classes []*parser.JavaClass) {
	for _, cls := range classes {
		if cls.IsLocal() {
			continue
		}
		c.byQualified[cls.QualifiedName] = dropClass(c.byQualified[cls.QualifiedName], cls)
		if len(c.byQualified[cls.QualifiedName]) == 0 {
			delete(c.byQualified, cls.QualifiedName)
		}
		c.byBinary[cls.BinaryName] = dropClass(c.byBinary[cls.BinaryName], cls)
		if len(c.byBinary[cls.BinaryName]) == 0 {
			delete(c.byBinary, cls.BinaryName)
		}
	}
}

func dropClass(list []*parser.JavaClass, cls *parser.JavaClass) []*parser.JavaClass {
	return slices.DeleteFunc(list, func(x *parser.JavaClass) bool { return x == cls })
}

// Document returns the stored document at path, or nil.
func (c *Corpus) Document(ctx context.Context, path string) (*types.Document, error) {
	var doc *types.Document
	err := c.withRead(ctx, func() {
		if e, ok := c.entries[path]; ok {
			doc = e.doc
		}
	})
	return doc, err
}

// SmaliFile returns the parsed smali document at path, or nil when there
// is no smali document at path.
func (c *Corpus) SmaliFile(ctx context.Context, path string) (*smali.File, error) {
	var file *smali.File
	err := c.withRead(ctx, func() {
		if e, ok := c.entries[path]; ok && e.doc.Type == types.FileTypeSmali {
			file = e.smaliFile()
		}
	})
	return file, err
}

// Classes returns every Java class in the corpus, ordered by path and then
// source position.
func (c *Corpus) Classes(ctx context.Context) ([]*parser.JavaClass, error) {
	var out []*parser.JavaClass
	err := c.withRead(ctx, func() {
		for _, p := range c.paths {
			out = append(out, c.entries[p].classes...)
		}
	})
	return out, err
}

// FindClass returns the classes named by name. Accepted forms are the
// qualified name "pkg.Outer.Inner", the binary name "pkg.Outer$Inner" or
// "pkg/Outer$Inner", and the descriptor "Lpkg/Outer$Inner;".
func (c *Corpus) FindClass(ctx context.Context, name string) ([]*parser.JavaClass, error) {
	name = strings.TrimSpace(name)
	var out []*parser.JavaClass
	err := c.withRead(ctx, func() {
		switch {
		case strings.HasPrefix(name, "L") && strings.HasSuffix(name, ";"):
			out = c.byBinary[name[1:len(name)-1]]
		case strings.ContainsAny(name, "/$"):
			out = c.byBinary[strings.ReplaceAll(name, ".", "/")]
		default:
			out = c.byQualified[name]
		}
		out = slices.Clone(out)
	})
	return out, err
}

// Stats counts the stored documents and classes.
func (c *Corpus) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := c.withRead(ctx, func() {
		for _, e := range c.entries {
			s.Documents++
			switch e.doc.Type {
			case types.FileTypeSmali:
				s.Smali++
			case types.FileTypeJava:
				s.Java++
				s.Classes += len(e.classes)
			}
		}
	})
	return s, err
}

// Documents yields the stored documents of fileType accepted by filter in
// path order. The sequence holds read access while it runs. A failed
// acquisition or a done ctx is yielded as the final error.
func (c *Corpus) Documents(ctx context.Context, fileType types.FileType, filter types.ScopeFilter) iter.Seq2[*types.Document, error] {
	return func(yield func(*types.Document, error) bool) {
		_, release, err := c.AcquireRead(ctx)
		if err != nil {
			yield(nil, err)
			return
		}
		defer release()

		for _, p := range c.paths {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			doc := c.entries[p].doc
			if doc.Type != fileType || (filter != nil && !filter.Contains(doc)) {
				continue
			}
			if !yield(doc, nil) {
				return
			}
		}
	}
}

// ElementAt returns the smallest smali element of doc containing offset,
// or nil when offset is outside the document. The caller must hold read
// access. Documents that are not, or no longer, stored are parsed on the
// spot.
func (c *Corpus) ElementAt(doc *types.Document, offset int) (types.Element, error) {
	if doc.Type != types.FileTypeSmali {
		return nil, fmt.Errorf("no structural model for %s document %s", doc.Type, doc.Path)
	}

	var file *smali.File
	if e, ok := c.entries[doc.Path]; ok && e.doc == doc {
		file = e.smaliFile()
	} else {
		file = smali.Parse(doc)
	}

	if n := file.ElementAt(offset); n != nil {
		return n, nil
	}
	return nil, nil
}
