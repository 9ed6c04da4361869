package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/smaliref/internal/parser"
	"github.com/standardbeagle/smaliref/internal/search"
	"github.com/standardbeagle/smaliref/internal/smali"
	"github.com/standardbeagle/smaliref/internal/types"
)

const barJava = `package com.example;

public class Bar {
    public static class Inner {}

    void make() {
        class Helper {}
    }
}
`

const userSmali = `.class public Lcom/example/User;
.super Ljava/lang/Object;

.field private bar:Lcom/example/Bar;

.method public use(Lcom/example/Bar;)V
    .locals 1
    # Lcom/example/Bar; mentioned in a comment
    new-instance v0, Lcom/example/Bar;
    const-string v0, "Lcom/example/Bar;"
    return-void
.end method

.method public inner()V
    new-instance v0, Lcom/example/Bar$Inner;
    return-void
.end method
`

const otherSmali = `.class public Lcom/example/Other;
.super Lcom/example/Bar;
`

func newTestCorpus(t *testing.T) *Corpus {
	t.Helper()
	jp := parser.NewJavaParser(1)
	t.Cleanup(jp.Close)
	c := NewCorpus(jp)

	for path, content := range map[string]string{
		"src/com/example/Bar.java":         barJava,
		"smali/com/example/User.smali":     userSmali,
		"smali/com/example/Other.smali":    otherSmali,
		"smali_classes2/a/Unrelated.smali": ".class La/Unrelated;\n.super Ljava/lang/Object;\n",
	} {
		changed, err := c.Put(path, []byte(content))
		require.NoError(t, err)
		require.True(t, changed)
	}
	return c
}

func TestCorpus_PutAndRemove(t *testing.T) {
	c := newTestCorpus(t)
	ctx := context.Background()

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Documents: 4, Smali: 3, Java: 1, Classes: 3}, stats)

	doc, err := c.Document(ctx, "smali/com/example/User.smali")
	require.NoError(t, err)
	require.NotNil(t, doc)
	id := doc.ID

	changed, err := c.Put("smali/com/example/User.smali", []byte(userSmali))
	require.NoError(t, err)
	assert.False(t, changed, "identical content is skipped")

	changed, err = c.Put("smali/com/example/User.smali", []byte(otherSmali))
	require.NoError(t, err)
	assert.True(t, changed)

	doc, err = c.Document(ctx, "smali/com/example/User.smali")
	require.NoError(t, err)
	assert.Equal(t, id, doc.ID, "reload keeps the file id")
	assert.Equal(t, otherSmali, string(doc.Content))

	assert.True(t, c.Remove("smali/com/example/User.smali"))
	assert.False(t, c.Remove("smali/com/example/User.smali"))
	doc, err = c.Document(ctx, "smali/com/example/User.smali")
	require.NoError(t, err)
	assert.Nil(t, doc)

	_, err = c.Put("README.md", []byte("# hi"))
	assert.Error(t, err)
}

func TestCorpus_FindClass(t *testing.T) {
	c := newTestCorpus(t)
	ctx := context.Background()

	for _, name := range []string{
		"com.example.Bar.Inner",
		"com.example.Bar$Inner",
		"com/example/Bar$Inner",
		"Lcom/example/Bar$Inner;",
	} {
		t.Run(name, func(t *testing.T) {
			found, err := c.FindClass(ctx, name)
			require.NoError(t, err)
			require.Len(t, found, 1)
			assert.Equal(t, "com/example/Bar$Inner", found[0].BinaryName)
		})
	}

	found, err := c.FindClass(ctx, "Helper")
	require.NoError(t, err)
	assert.Empty(t, found, "local classes are not addressable")

	classes, err := c.Classes(ctx)
	require.NoError(t, err)
	require.Len(t, classes, 3)
	assert.Equal(t, "Bar", classes[0].Name)

	// replacing the Java file drops its old classes
	_, err = c.Put("src/com/example/Bar.java", []byte("package com.example;\nclass Renamed {}\n"))
	require.NoError(t, err)
	found, err = c.FindClass(ctx, "com.example.Bar")
	require.NoError(t, err)
	assert.Empty(t, found)
	found, err = c.FindClass(ctx, "com.example.Renamed")
	require.NoError(t, err)
	assert.Len(t, found, 1)
}

func TestCorpus_Documents(t *testing.T) {
	c := newTestCorpus(t)
	ctx := context.Background()

	var paths []string
	for doc, err := range c.Documents(ctx, types.FileTypeSmali, nil) {
		require.NoError(t, err)
		paths = append(paths, doc.Path)
	}
	assert.Equal(t, []string{
		"smali/com/example/Other.smali",
		"smali/com/example/User.smali",
		"smali_classes2/a/Unrelated.smali",
	}, paths)

	filter, err := search.NewGlobFilter("", "smali/**")
	require.NoError(t, err)
	paths = nil
	for doc, err := range c.Documents(ctx, types.FileTypeSmali, filter) {
		require.NoError(t, err)
		paths = append(paths, doc.Path)
	}
	assert.Len(t, paths, 2)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	count := 0
	var lastErr error
	for doc, err := range c.Documents(cancelled, types.FileTypeSmali, nil) {
		if doc != nil {
			count++
		}
		lastErr = err
	}
	assert.Zero(t, count)
	assert.ErrorIs(t, lastErr, context.Canceled)
}

func TestCorpus_ElementAt(t *testing.T) {
	c := newTestCorpus(t)
	ctx := context.Background()

	doc, err := c.Document(ctx, "smali/com/example/Other.smali")
	require.NoError(t, err)

	elem, err := c.ElementAt(doc, strings.Index(otherSmali, "Lcom/example/Bar;"))
	require.NoError(t, err)
	require.NotNil(t, elem)
	assert.Equal(t, string(smali.KindTypeRef), elem.Kind())

	elem, err = c.ElementAt(doc, len(doc.Content)+10)
	require.NoError(t, err)
	assert.Nil(t, elem)

	// detached documents are parsed on demand
	detached := &types.Document{Path: "x.smali", Type: types.FileTypeSmali, Content: []byte(".class La;\n")}
	elem, err = c.ElementAt(detached, 7)
	require.NoError(t, err)
	require.NotNil(t, elem)
	assert.Equal(t, "La;", elem.(*smali.Node).Descriptor())

	java, err := c.Document(ctx, "src/com/example/Bar.java")
	require.NoError(t, err)
	_, err = c.ElementAt(java, 0)
	assert.Error(t, err)
}

func TestCorpus_AcquireReadReentrant(t *testing.T) {
	c := newTestCorpus(t)

	held, release, err := c.AcquireRead(context.Background())
	require.NoError(t, err)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.Remove("smali_classes2/a/Unrelated.smali")
	}()

	// give the writer time to queue behind the reader
	time.Sleep(20 * time.Millisecond)

	// nested acquisition does not wait for the pending writer
	nested, nestedRelease, err := c.AcquireRead(held)
	require.NoError(t, err)
	assert.Equal(t, held, nested)
	nestedRelease()

	doc, err := c.Document(held, "smali_classes2/a/Unrelated.smali")
	require.NoError(t, err)
	assert.NotNil(t, doc, "writer is still blocked")

	// a fresh acquisition waits and gives up with its context
	timeout, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, _, err = c.AcquireRead(timeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	release()
	release() // idempotent
	<-writerDone

	doc, err = c.Document(context.Background(), "smali_classes2/a/Unrelated.smali")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestCorpus_LockTimeout(t *testing.T) {
	c := newTestCorpus(t)
	c.SetLockTimeout(15 * time.Millisecond)

	held, release, err := c.AcquireRead(context.Background())
	require.NoError(t, err)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.Remove("smali_classes2/a/Unrelated.smali")
	}()
	time.Sleep(20 * time.Millisecond)

	_, _, err = c.AcquireRead(context.Background())
	assert.ErrorIs(t, err, ErrReadLockTimeout)

	// holders are not bounded by the timeout
	_, nestedRelease, err := c.AcquireRead(held)
	require.NoError(t, err)
	nestedRelease()

	release()
	<-writerDone
}

func TestCorpus_EndToEndSearch(t *testing.T) {
	c := newTestCorpus(t)
	ctx := context.Background()

	var deriver parser.DescriptorDeriver
	searcher := search.NewSearcher(deriver, c, smali.NewReferencePredicate(deriver), c)

	classes, err := c.FindClass(ctx, "com.example.Bar")
	require.NoError(t, err)
	require.Len(t, classes, 1)

	var refs []types.Reference
	err = searcher.Search(ctx, search.Request{
		Target: classes[0],
		Scope:  types.GlobalScope(nil, c),
		Sink: func(ref types.Reference) bool {
			refs = append(refs, ref)
			return true
		},
	})
	require.NoError(t, err)

	var got []string
	for _, r := range refs {
		got = append(got, r.String())
	}
	assert.Equal(t, []string{
		"smali/com/example/Other.smali:2:8",
		"smali/com/example/User.smali:4:20",
		"smali/com/example/User.smali:6:20",
		"smali/com/example/User.smali:9:22",
	}, got)

	// the inner class is a different descriptor
	inner, err := c.FindClass(ctx, "com.example.Bar.Inner")
	require.NoError(t, err)
	refs = nil
	err = searcher.Search(ctx, search.Request{
		Target: inner[0],
		Scope:  types.GlobalScope(nil, c),
		Sink: func(ref types.Reference) bool {
			refs = append(refs, ref)
			return true
		},
	})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "smali/com/example/User.smali:15:22", refs[0].String())
}

func TestCorpus_SearchSurfacesLockTimeout(t *testing.T) {
	c := newTestCorpus(t)
	c.SetLockTimeout(20 * time.Millisecond)
	ctx := context.Background()

	classes, err := c.FindClass(ctx, "com.example.Bar")
	require.NoError(t, err)
	require.Len(t, classes, 1)

	// No locker on the searcher, so the corpus enumerator is the first
	// thing to wait on the writer.
	var deriver parser.DescriptorDeriver
	searcher := search.NewSearcher(deriver, c, smali.NewReferencePredicate(deriver), nil)

	c.mu.Lock()
	defer c.mu.Unlock()

	refs := 0
	err = searcher.Search(ctx, search.Request{
		Target: classes[0],
		Scope:  types.GlobalScope(nil, c),
		Sink: func(types.Reference) bool {
			refs++
			return true
		},
	})
	assert.ErrorIs(t, err, ErrReadLockTimeout)
	assert.Zero(t, refs)
}

func TestCorpus_SearchLocalMember(t *testing.T) {
	c := newTestCorpus(t)
	ctx := context.Background()

	file, err := c.SmaliFile(ctx, "smali/com/example/User.smali")
	require.NoError(t, err)
	require.NotNil(t, file)
	member := file.Member("use")
	require.NotNil(t, member)

	var deriver parser.DescriptorDeriver
	searcher := search.NewSearcher(deriver, c, smali.NewReferencePredicate(deriver), c)
	classes, err := c.FindClass(ctx, "com.example.Bar")
	require.NoError(t, err)

	count := 0
	err = searcher.Search(ctx, search.Request{
		Target: classes[0],
		Scope:  types.LocalScope(member),
		Sink: func(types.Reference) bool {
			count++
			return true
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count, "signature parameter and new-instance")
}
