package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/smaliref/internal/config"
	"github.com/standardbeagle/smaliref/internal/core"
	referrors "github.com/standardbeagle/smaliref/internal/errors"
	"github.com/standardbeagle/smaliref/internal/indexing"
	"github.com/standardbeagle/smaliref/internal/parser"
	"github.com/standardbeagle/smaliref/internal/query"
)

var projectFiles = map[string]string{
	"src/com/example/Bar.java": "package com.example;\n\npublic class Bar {\n    public static class Inner {}\n}\n",
	"smali/com/example/User.smali": `.class public Lcom/example/User;
.super Ljava/lang/Object;

.field private bar:Lcom/example/Bar;

.method public use()V
    new-instance v0, Lcom/example/Bar;
    const-string v1, "Lcom/example/Bar;"
    return-void
.end method
`,
	"smali/com/example/Other.smali": ".class public Lcom/example/Other;\n.super Lcom/example/Bar;\n",
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func newTestServer(t *testing.T, watch bool) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, projectFiles)

	cfg := config.Default(root)
	cfg.Index.Watch = watch
	cfg.Index.WatchDebounceMs = 20
	cfg.Performance.Workers = 2
	require.NoError(t, config.ValidateConfig(cfg))

	jp := parser.NewJavaParser(2)
	t.Cleanup(jp.Close)
	s, err := NewServer(cfg, indexing.NewLoader(cfg, core.NewCorpus(jp)), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, s.Shutdown(context.Background()))
	})
	return s, root
}

func callTool(t *testing.T, handler func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error), args any) *mcp.CallToolResult {
	t.Helper()
	raw, err := json.Marshal(args)
	require.NoError(t, err)
	res, err := handler(context.Background(), &mcp.CallToolRequest{
		Params: &mcp.CallToolParamsRaw{Arguments: raw},
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func decodeText(t *testing.T, res *mcp.CallToolResult, v any) {
	t.Helper()
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content")
	require.NoError(t, json.Unmarshal([]byte(text.Text), v))
}

func TestNewServer_RequiresLoader(t *testing.T) {
	_, err := NewServer(config.Default(t.TempDir()), nil, nil)
	assert.Error(t, err)
}

func TestHandleFindReferences(t *testing.T) {
	s, _ := newTestServer(t, false)

	res := callTool(t, s.handleFindReferences, map[string]any{"class": "com.example.Bar"})
	assert.False(t, res.IsError)

	var result query.RefsResult
	decodeText(t, res, &result)
	assert.Equal(t, "Lcom/example/Bar;", result.Descriptor)
	require.Len(t, result.References, 3)
	assert.Equal(t, "smali/com/example/Other.smali", result.References[0].Path)
	assert.Equal(t, 2, result.References[0].Line)
	assert.Equal(t, "use()V", result.References[2].Member)

	res = callTool(t, s.handleFindReferences, map[string]any{"class": "com.example.Bar", "max": 1})
	decodeText(t, res, &result)
	assert.Len(t, result.References, 1)
	assert.True(t, result.Truncated)

	res = callTool(t, s.handleFindReferences, map[string]any{
		"class": "com.example.Bar",
		"in":    []string{"smali/com/example/User.smali#use"},
	})
	decodeText(t, res, &result)
	require.Len(t, result.References, 1)
	assert.Equal(t, 7, result.References[0].Line)
}

func TestHandleFindReferences_Errors(t *testing.T) {
	s, _ := newTestServer(t, false)

	tests := []struct {
		name string
		args any
		kind string
	}{
		{"unknown class", map[string]any{"class": "com.example.Baz"}, "not_found"},
		{"missing class", map[string]any{}, "invalid_request"},
		{"wrong type", map[string]any{"class": 5}, "internal"},
		{"negative max", map[string]any{"class": "com.example.Bar", "max": -3}, "invalid_request"},
		{"bad scope", map[string]any{"class": "com.example.Bar", "scope": []string{"[x"}}, "invalid_request"},
		{"scope and in", map[string]any{"class": "com.example.Bar", "scope": []string{"**"}, "in": []string{"a.smali"}}, "invalid_request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := callTool(t, s.handleFindReferences, tt.args)
			assert.True(t, res.IsError)

			var body errorResponse
			decodeText(t, res, &body)
			assert.False(t, body.Success)
			assert.Equal(t, "find_references", body.Operation)
			assert.Equal(t, tt.kind, body.Kind)
			assert.NotEmpty(t, body.Error)
		})
	}

	res := callTool(t, s.handleFindReferences, map[string]any{"class": "com.example.Baz"})
	var body errorResponse
	decodeText(t, res, &body)
	assert.Equal(t, []string{"com.example.Bar"}, body.Suggestions)
}

func TestHandleListClasses(t *testing.T) {
	s, _ := newTestServer(t, false)

	res := callTool(t, s.handleListClasses, map[string]any{})
	var resp ListClassesResponse
	decodeText(t, res, &resp)
	assert.Equal(t, 2, resp.Total)
	require.Len(t, resp.Classes, 2)
	assert.Equal(t, "com.example.Bar", resp.Classes[0].QualifiedName)

	res = callTool(t, s.handleListClasses, map[string]any{"filter": "INNER"})
	decodeText(t, res, &resp)
	require.Len(t, resp.Classes, 1)
	assert.Equal(t, "Lcom/example/Bar$Inner;", resp.Classes[0].Descriptor)

	res = callTool(t, s.handleListClasses, map[string]any{"max": 1})
	resp = ListClassesResponse{}
	decodeText(t, res, &resp)
	assert.Len(t, resp.Classes, 1)
	assert.Equal(t, 2, resp.Total)
	assert.True(t, resp.Truncated)
}

func TestHandleIndexStats(t *testing.T) {
	s, root := newTestServer(t, false)
	require.NoError(t, s.indexer.waitForCompletion(context.Background(), 10*time.Second))

	res := callTool(t, s.handleIndexStats, nil)
	var resp IndexStatsResponse
	decodeText(t, res, &resp)
	assert.Equal(t, root, resp.Root)
	assert.Equal(t, statusCompleted, resp.Index.Status)
	assert.Equal(t, 3, resp.Index.Loaded)
	assert.False(t, resp.Index.Watching)
	assert.Equal(t, core.Stats{Documents: 3, Smali: 2, Java: 1, Classes: 2}, resp.Corpus)
}

func TestRecoverFromPanic(t *testing.T) {
	s, _ := newTestServer(t, false)

	res, err := s.recoverFromPanic("boom", func() (*mcp.CallToolResult, error) {
		panic("kaboom")
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)

	var body errorResponse
	decodeText(t, res, &body)
	assert.Contains(t, body.Error, "kaboom")
	assert.Equal(t, "boom", body.Operation)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "not_found", errorKind(&query.NotFoundError{Kind: "class", Name: "X"}))
	assert.Equal(t, "invalid_request", errorKind(referrors.NewContractError("class", "is required")))
	assert.Equal(t, "timeout", errorKind(core.ErrReadLockTimeout))
	assert.Equal(t, "cancelled", errorKind(referrors.NewSearchError("X", context.Canceled)))
	assert.Equal(t, "internal", errorKind(errors.New("other")))
}

func TestServer_InMemorySession(t *testing.T) {
	s, _ := newTestServer(t, false)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientTransport, serverTransport := mcp.NewInMemoryTransports()
	serverSession, err := s.Connect(ctx, serverTransport)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)

	tools, err := session.ListTools(ctx, nil)
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"find_references", "list_classes", "index_stats"}, names)

	res, err := session.CallTool(ctx, &mcp.CallToolParams{
		Name:      "find_references",
		Arguments: map[string]any{"class": "Lcom/example/Bar;", "scope": []string{"**/Other.smali"}},
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var result query.RefsResult
	decodeText(t, res, &result)
	require.Len(t, result.References, 1)
	assert.Equal(t, "smali/com/example/Other.smali", result.References[0].Path)

	require.NoError(t, session.Close())
	_ = serverSession.Wait()
}

func TestServer_WatchReloads(t *testing.T) {
	s, root := newTestServer(t, true)
	ctx := context.Background()
	require.NoError(t, s.indexer.waitForCompletion(ctx, 10*time.Second))

	assert.Eventually(t, func() bool { return s.indexer.state().Watching }, 5*time.Second, 10*time.Millisecond)

	writeTree(t, root, map[string]string{
		"smali/com/example/Late.smali": ".class public Lcom/example/Late;\n.super Lcom/example/Bar;\n",
	})

	assert.Eventually(t, func() bool {
		res := callTool(t, s.handleFindReferences, map[string]any{"class": "com.example.Bar"})
		var result query.RefsResult
		decodeText(t, res, &result)
		return len(result.References) == 4
	}, 5*time.Second, 25*time.Millisecond)
}
