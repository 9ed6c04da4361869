package debug

import (
	"bytes"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// saveAndRestoreState saves the debug package state and returns a cleanup function
func saveAndRestoreState() func() {
	originalDebug := EnableDebug
	originalMode := MCPMode
	originalOutput := debugOutput
	originalFile := debugFile
	return func() {
		EnableDebug = originalDebug
		MCPMode = originalMode
		debugOutput = originalOutput
		debugFile = originalFile
	}
}

func TestIsDebugEnabled(t *testing.T) {
	defer saveAndRestoreState()()
	t.Setenv("DEBUG", "")

	EnableDebug = "false"
	MCPMode = false
	assert.False(t, IsDebugEnabled())

	EnableDebug = "true"
	assert.True(t, IsDebugEnabled())

	// MCP mode always wins
	MCPMode = true
	assert.False(t, IsDebugEnabled())
}

func TestIsDebugEnabled_EnvOverride(t *testing.T) {
	defer saveAndRestoreState()()
	t.Setenv("DEBUG", "1")

	EnableDebug = "false"
	MCPMode = false
	assert.True(t, IsDebugEnabled())
}

func TestLogHelpers(t *testing.T) {
	defer saveAndRestoreState()()

	EnableDebug = "true"
	MCPMode = false

	tests := []struct {
		name    string
		logFunc func(string, ...interface{})
		prefix  string
	}{
		{"LogSearch", LogSearch, "[DEBUG:SEARCH]"},
		{"LogIndex", LogIndex, "[DEBUG:INDEX]"},
		{"LogMCP", LogMCP, "[DEBUG:MCP]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			SetDebugOutput(&buf)

			tt.logFunc("loaded %d files", 3)

			assert.Contains(t, buf.String(), tt.prefix)
			assert.Contains(t, buf.String(), "loaded 3 files")
		})
	}
}

func TestLog_MCPModeSuppressesOutput(t *testing.T) {
	defer saveAndRestoreState()()

	var buf bytes.Buffer
	SetDebugOutput(&buf)
	EnableDebug = "true"
	MCPMode = true
	Log("TEST", "Should not appear")

	assert.Empty(t, buf.String())
}

func TestFatal(t *testing.T) {
	defer saveAndRestoreState()()

	var buf bytes.Buffer
	SetDebugOutput(&buf)
	MCPMode = false
	err := Fatal("corpus lock lost: %s", "details")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fatal error: corpus lock lost: details")
	assert.Contains(t, buf.String(), "[FATAL]")

	buf.Reset()
	MCPMode = true
	err = Fatal("another error")
	require.Error(t, err)
	assert.Empty(t, buf.String())
}

func TestNoOutputWithNilWriter(t *testing.T) {
	defer saveAndRestoreState()()

	SetDebugOutput(nil)
	EnableDebug = "true"
	MCPMode = false

	// These should not panic, they should just do nothing
	Printf("test %s", "message")
	Log("TEST", "test %s", "message")
	LogSearch("test %s", "message")
	_ = Fatal("test %s", "message")
}

func TestConcurrentLogging(t *testing.T) {
	defer saveAndRestoreState()()

	var buf bytes.Buffer
	SetDebugOutput(&buf)
	EnableDebug = "true"
	MCPMode = false

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			LogIndex("index from goroutine %d\n", id)
		}(i)
	}
	wg.Wait()

	assert.Contains(t, buf.String(), "[DEBUG:INDEX]")
}

func TestInitDebugLogFile(t *testing.T) {
	defer saveAndRestoreState()()

	logPath, err := InitDebugLogFile()
	require.NoError(t, err)
	defer os.Remove(logPath)

	EnableDebug = "true"
	MCPMode = false
	Printf("Test log message\n")

	require.NoError(t, CloseDebugLog())

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "Test log message")
}
