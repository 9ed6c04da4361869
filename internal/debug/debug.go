// Package debug writes developer diagnostics for smaliref. Output is off
// unless EnableDebug is set at link time or DEBUG=1 is in the environment,
// and it is always off while stdio carries MCP traffic.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EnableDebug turns output on when linked with
// -ldflags "-X github.com/standardbeagle/smaliref/internal/debug.EnableDebug=true".
var EnableDebug = "false"

// MCPMode is set by the mcp command; stdout then belongs to the protocol.
var MCPMode = false

var (
	mu          sync.Mutex
	debugOutput io.Writer
	debugFile   *os.File // set when output goes to a file we own
)

// SetMCPMode marks whether the process is serving MCP on stdio.
func SetMCPMode(enabled bool) {
	MCPMode = enabled
}

// SetDebugOutput routes output to w. A nil w discards it.
func SetDebugOutput(w io.Writer) {
	mu.Lock()
	debugOutput = w
	mu.Unlock()
}

// InitDebugLogFile opens smaliref-debug/<timestamp>-<pid>.log under the temp
// directory, routes output there and returns its path. CloseDebugLog
// closes it.
func InitDebugLogFile() (string, error) {
	dir := filepath.Join(os.TempDir(), "smaliref-debug")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create debug log dir: %w", err)
	}
	name := fmt.Sprintf("%s-%d.log", time.Now().Format("20060102-150405"), os.Getpid())
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return "", fmt.Errorf("open debug log: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	debugFile = f
	debugOutput = f
	return path, nil
}

// CloseDebugLog closes a file opened by InitDebugLogFile and discards
// further output. It does nothing for writers set with SetDebugOutput.
func CloseDebugLog() error {
	mu.Lock()
	defer mu.Unlock()
	if debugFile == nil {
		return nil
	}
	err := debugFile.Close()
	debugFile = nil
	debugOutput = nil
	return err
}

// IsDebugEnabled reports whether log calls produce output.
func IsDebugEnabled() bool {
	if MCPMode {
		return false
	}
	if EnableDebug == "true" {
		return true
	}
	switch os.Getenv("DEBUG") {
	case "1", "true":
		return true
	}
	return false
}

func write(prefix, format string, args []any) {
	mu.Lock()
	defer mu.Unlock()
	if debugOutput == nil {
		return
	}
	// one Fprintf per call keeps concurrent lines whole
	fmt.Fprintf(debugOutput, prefix+format, args...)
}

// Printf writes an untagged line.
func Printf(format string, args ...any) {
	if IsDebugEnabled() {
		write("[DEBUG] ", format, args)
	}
}

// Log writes a line tagged with component.
func Log(component, format string, args ...any) {
	if IsDebugEnabled() {
		write("[DEBUG:"+component+"] ", format, args)
	}
}

func LogSearch(format string, args ...any) { Log("SEARCH", format, args...) }
func LogIndex(format string, args ...any)  { Log("INDEX", format, args...) }
func LogMCP(format string, args ...any)    { Log("MCP", format, args...) }

// Fatal records msg whenever a writer is set, even with debug off, and
// returns it as an error. The caller decides whether to exit.
func Fatal(format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if !MCPMode {
		write("[FATAL] ", "%s", []any{msg})
	}
	return fmt.Errorf("fatal error: %s", msg)
}
