package indexing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/smaliref/internal/config"
	"github.com/standardbeagle/smaliref/internal/core"
	"github.com/standardbeagle/smaliref/internal/parser"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("sync.runtime_Semacquire"),
	)
}

// writeTree creates files below root from a path → content map.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func testConfig(t *testing.T, root string) *config.Config {
	t.Helper()
	cfg := config.Default(root)
	cfg.Performance.Workers = 2
	cfg.Index.WatchDebounceMs = 20
	require.NoError(t, config.ValidateConfig(cfg))
	return cfg
}

func newTestLoader(t *testing.T, cfg *config.Config) *Loader {
	t.Helper()
	jp := parser.NewJavaParser(2)
	t.Cleanup(jp.Close)
	return NewLoader(cfg, core.NewCorpus(jp))
}
