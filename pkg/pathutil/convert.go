// Package pathutil converts between the absolute paths smaliref keeps
// internally and the forms shown to users.
//
// Documents are keyed by absolute, cleaned paths so that the loader, the
// watcher and explicit --in arguments always agree on identity. CLI and MCP
// output converts them to root-relative paths or file:// URIs.
package pathutil

import (
	"path/filepath"
	"strings"

	"go.lsp.dev/uri"
)

// ToRelative converts an absolute path to relative based on a root directory.
// Falls back to the original path if conversion fails or path is already relative.
//
// Examples:
//   - ToRelative("/work/app/smali/a/B.smali", "/work/app") → "smali/a/B.smali"
//   - ToRelative("/other/B.smali", "/work/app") → "/other/B.smali" (outside root)
//   - ToRelative("smali/a/B.smali", "/work/app") → "smali/a/B.smali" (already relative)
func ToRelative(absPath, rootDir string) string {
	if absPath == "" || rootDir == "" {
		return absPath
	}

	if !filepath.IsAbs(absPath) {
		return absPath
	}

	absPath = filepath.Clean(absPath)
	rootDir = filepath.Clean(rootDir)

	relPath, err := filepath.Rel(rootDir, absPath)
	if err != nil {
		return absPath
	}

	// Outside the root the absolute path is clearer
	if relPath == ".." || strings.HasPrefix(relPath, ".."+string(filepath.Separator)) {
		return absPath
	}

	return relPath
}

// ToAbsolute resolves path against rootDir and cleans it. Absolute paths
// are only cleaned.
func ToAbsolute(path, rootDir string) string {
	if path == "" {
		return path
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(rootDir, path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// Display returns the root-relative path with forward slashes, the form
// used in CLI and MCP output.
func Display(absPath, rootDir string) string {
	return filepath.ToSlash(ToRelative(absPath, rootDir))
}

// FileURI returns the file:// URI of an absolute path.
func FileURI(absPath string) string {
	return string(uri.File(absPath))
}

// FromURI accepts either a file:// URI or a plain path and returns the path.
func FromURI(s string) string {
	if strings.HasPrefix(s, "file://") {
		return uri.URI(s).Filename()
	}
	return s
}
