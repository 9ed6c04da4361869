package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/smaliref/internal/errors"
	"github.com/standardbeagle/smaliref/internal/types"
)

func TestResolveScope(t *testing.T) {
	doc := newDoc("a/A.smali", "x")
	orphan := &fakeElement{kind: "orphan"}

	local, err := resolveScope(types.LocalScope(nil, wholeDoc(doc), orphan))
	require.NoError(t, err)
	assert.Equal(t, types.ScopeLocal, local.Kind())
	assert.Len(t, local.Elements(), 1)

	global, err := resolveScope(types.GlobalScope(nil, &fakeIndex{}))
	require.NoError(t, err)
	require.NotNil(t, global.Filter())
	assert.True(t, global.Filter().Contains(doc))

	_, err = resolveScope(types.Scope{})
	assert.ErrorIs(t, err, errors.ErrContractViolation)
}

func TestGlobFilter(t *testing.T) {
	f, err := NewGlobFilter("/proj", "smali/com/example/**", "**/R$*.smali")
	require.NoError(t, err)

	tests := []struct {
		path string
		want bool
	}{
		{"/proj/smali/com/example/Foo.smali", true},
		{"/proj/smali/com/example/sub/Bar.smali", true},
		{"/proj/smali/com/other/R$string.smali", true},
		{"/proj/smali/com/other/Foo.smali", false},
		{"/elsewhere/smali/com/example/Foo.smali", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, f.Contains(&types.Document{Path: tt.path}))
		})
	}

	all, err := NewGlobFilter("/proj")
	require.NoError(t, err)
	assert.True(t, all.Contains(&types.Document{Path: "/anywhere/X.smali"}))
}

func TestGlobFilter_BadPattern(t *testing.T) {
	_, err := NewGlobFilter("", "smali/[")
	require.Error(t, err)

	var ce *errors.ConfigError
	assert.ErrorAs(t, err, &ce)
}

func TestPathSetAndAllOf(t *testing.T) {
	set := NewPathSet("a/./A.smali", "b/B.smali")
	assert.True(t, set.Contains(&types.Document{Path: "a/A.smali"}))
	assert.False(t, set.Contains(&types.Document{Path: "c/C.smali"}))

	glob, err := NewGlobFilter("", "a/**")
	require.NoError(t, err)
	both := AllOf(set, glob, nil)
	assert.True(t, both.Contains(&types.Document{Path: "a/A.smali"}))
	assert.False(t, both.Contains(&types.Document{Path: "b/B.smali"}))
}
