package types

import (
	"path/filepath"
	"sort"
	"strings"
)

// Common system-wide constants
const (
	// File size limits
	DefaultMaxFileSize = 10 * 1024 * 1024 // 10MB per file - standard limit for loading
	// Rationale: baksmali output for a single class rarely exceeds a few
	// hundred KB; anything larger is almost certainly not hand-readable smali.

	DefaultMaxFileCount = 200000 // Maximum files loaded in a single corpus
	// Rationale: a large APK disassembles to ~50k-100k smali files.

	BinaryPreCheckBytes = 512 // Number of bytes to read for binary detection
)

type FileID uint32

// FileType classifies a document by the representation it holds.
type FileType uint8

const (
	FileTypeUnknown FileType = iota
	FileTypeJava             // representation A: declarations
	FileTypeSmali            // representation B: searched documents
)

func (ft FileType) String() string {
	switch ft {
	case FileTypeJava:
		return "java"
	case FileTypeSmali:
		return "smali"
	default:
		return "unknown"
	}
}

// ClassifyPath returns the file type for a path based on its extension.
func ClassifyPath(path string) FileType {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".java":
		return FileTypeJava
	case ".smali":
		return FileTypeSmali
	default:
		return FileTypeUnknown
	}
}

// Document is one unit of text eligible for loading and scanning.
// Documents are immutable once published to a corpus; a reload replaces
// the whole value.
type Document struct {
	ID       FileID
	Path     string
	Type     FileType
	Content  []byte
	FastHash uint64 // xxhash for quick equality checks

	// LineOffsets[i] contains the byte offset of the start of line i+1
	LineOffsets []int `json:"-"`
}

// Position converts a byte offset to a 1-based line and column.
// Columns count bytes, matching smali's ASCII-dominant content.
func (d *Document) Position(offset int) (line, column int) {
	if d == nil || len(d.LineOffsets) == 0 {
		return 1, offset + 1
	}
	idx := sort.Search(len(d.LineOffsets), func(i int) bool {
		return d.LineOffsets[i] > offset
	}) - 1
	if idx < 0 {
		idx = 0
	}
	return idx + 1, offset - d.LineOffsets[idx] + 1
}

// LineText returns the text of the 1-based line without its line terminator.
func (d *Document) LineText(line int) string {
	if d == nil || line < 1 || line > len(d.LineOffsets) {
		return ""
	}
	start := d.LineOffsets[line-1]
	end := len(d.Content)
	if line < len(d.LineOffsets) {
		end = d.LineOffsets[line]
	}
	text := d.Content[start:end]
	text = trimLineEnding(text)
	return string(text)
}

func trimLineEnding(b []byte) []byte {
	if n := len(b); n > 0 && b[n-1] == '\n' {
		b = b[:n-1]
	}
	if n := len(b); n > 0 && b[n-1] == '\r' {
		b = b[:n-1]
	}
	return b
}

// ComputeLineOffsets returns the byte offset of the start of every line.
func ComputeLineOffsets(content []byte) []int {
	offsets := make([]int, 1, 64)
	for i, b := range content {
		if b == '\n' && i+1 < len(content) {
			offsets = append(offsets, i+1)
		}
	}
	return offsets
}
