package parser

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/smaliref/internal/types"
)

const outerJava = `package com.example.app;

import java.util.List;

public class Outer {
    private final Runnable task = new Runnable() {
        class InAnonymous {}
        public void run() {}
    };

    static class Nested {
        interface Deep {}
    }

    enum Mode {
        ON { void flip() {} },
        OFF;

        static final class Holder {}
    }

    record Point(int x, int y) {}

    @interface Marker {}

    void method() {
        class Local {
            class InLocal {}
        }
    }
}

interface Sibling {}
`

func classByName(t *testing.T, classes []*JavaClass, name string) *JavaClass {
	t.Helper()
	for _, c := range classes {
		if c.Name == name {
			return c
		}
	}
	require.Failf(t, "class not found", "%s", name)
	return nil
}

func TestJavaParser_ParseFile(t *testing.T) {
	p := NewJavaParser(0)
	defer p.Close()

	classes, err := p.ParseFile("src/com/example/app/Outer.java", []byte(outerJava))
	require.NoError(t, err)

	tests := []struct {
		name      string
		kind      string
		qualified string
		binary    string
	}{
		{"Outer", "class", "com.example.app.Outer", "com/example/app/Outer"},
		{"Nested", "class", "com.example.app.Outer.Nested", "com/example/app/Outer$Nested"},
		{"Deep", "interface", "com.example.app.Outer.Nested.Deep", "com/example/app/Outer$Nested$Deep"},
		{"Mode", "enum", "com.example.app.Outer.Mode", "com/example/app/Outer$Mode"},
		{"Holder", "class", "com.example.app.Outer.Mode.Holder", "com/example/app/Outer$Mode$Holder"},
		{"Point", "record", "com.example.app.Outer.Point", "com/example/app/Outer$Point"},
		{"Marker", "annotation", "com.example.app.Outer.Marker", "com/example/app/Outer$Marker"},
		{"Sibling", "interface", "com.example.app.Sibling", "com/example/app/Sibling"},
		{"Local", "class", "", ""},
		{"InLocal", "class", "", ""},
		{"InAnonymous", "class", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := classByName(t, classes, tt.name)
			assert.Equal(t, tt.kind, c.Kind)
			assert.Equal(t, tt.qualified, c.QualifiedName)
			assert.Equal(t, tt.binary, c.BinaryName)
			assert.Equal(t, "src/com/example/app/Outer.java", c.Path)
		})
	}
	assert.Len(t, classes, len(tests))

	outer := classByName(t, classes, "Outer")
	assert.Equal(t, 5, outer.Line)
	assert.Equal(t, "public class Outer", outerJava[outer.Range.Start:outer.Range.Start+18])
}

func TestJavaParser_DefaultPackage(t *testing.T) {
	p := NewJavaParser(1)
	defer p.Close()

	classes, err := p.ParseFile("Main.java", []byte("class Main { static class Inner {} }"))
	require.NoError(t, err)
	require.Len(t, classes, 2)

	assert.Equal(t, "Main", classes[0].QualifiedName)
	assert.Equal(t, "LMain;", classes[0].Descriptor())
	assert.Equal(t, "LMain$Inner;", classes[1].Descriptor())
}

func TestJavaParser_SyntaxErrorsStillExtract(t *testing.T) {
	p := NewJavaParser(1)
	defer p.Close()

	classes, err := p.ParseFile("Broken.java", []byte("package a.b;\nclass Broken { void m( }\n"))
	require.NoError(t, err)
	for _, c := range classes {
		assert.NotEmpty(t, c.Name)
		if c.Name == "Broken" {
			assert.Equal(t, "a/b/Broken", c.BinaryName)
		}
	}
}

func TestJavaParser_Concurrent(t *testing.T) {
	p := NewJavaParser(2)
	defer p.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			classes, err := p.ParseFile("Outer.java", []byte(outerJava))
			assert.NoError(t, err)
			assert.Len(t, classes, 11)
		}()
	}
	wg.Wait()
}

type otherSymbol struct{}

func (otherSymbol) SymbolName() string { return "com.example.Foo" }

func TestDescriptorDeriver(t *testing.T) {
	var d DescriptorDeriver

	tok, ok := d.DeriveSearchToken(&JavaClass{Name: "Foo", QualifiedName: "pkg.Foo", BinaryName: "pkg/Foo"})
	assert.True(t, ok)
	assert.Equal(t, "Lpkg/Foo;", tok)

	tok, ok = d.DeriveSearchToken(&JavaClass{Name: "Bar", QualifiedName: "pkg.Foo.Bar", BinaryName: "pkg/Foo$Bar"})
	assert.True(t, ok)
	assert.Equal(t, "Lpkg/Foo$Bar;", tok)

	_, ok = d.DeriveSearchToken(&JavaClass{Name: "Local"})
	assert.False(t, ok, "local classes have no descriptor")

	_, ok = d.DeriveSearchToken(otherSymbol{})
	assert.False(t, ok, "only Java classes are searchable")

	var nilClass *JavaClass
	_, ok = d.DeriveSearchToken(nilClass)
	assert.False(t, ok)

	var sym types.Symbol = &JavaClass{Name: "Local"}
	assert.Equal(t, "Local", sym.SymbolName())
}
