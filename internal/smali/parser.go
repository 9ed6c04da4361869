package smali

import (
	"strings"

	"github.com/standardbeagle/smaliref/internal/types"
)

// File is a parsed smali document.
type File struct {
	root *Node

	Class      string   // descriptor from .class
	Super      string   // descriptor from .super
	Interfaces []string // descriptors from .implements
	Source     string   // file name from .source
}

// Root returns the file node.
func (f *File) Root() *Node { return f.root }

// Document returns the parsed document.
func (f *File) Document() *types.Document { return f.root.doc }

// ElementAt returns the smallest node containing offset, or nil when the
// offset is outside the document.
func (f *File) ElementAt(offset int) *Node {
	if !f.root.r.Contains(offset) {
		return nil
	}
	return f.root.elementAt(offset)
}

// Members returns the field and method nodes in document order.
func (f *File) Members() []*Node {
	var out []*Node
	for _, c := range f.root.children {
		if c.kind == KindField || c.kind == KindMethod {
			out = append(out, c)
		}
	}
	return out
}

// Member finds a field or method by name or by full signature, for example
// "onCreate" or "onCreate(Landroid/os/Bundle;)V". Signatures win over bare
// names when both could match.
func (f *File) Member(name string) *Node {
	var byName *Node
	for _, m := range f.Members() {
		if m.signature == name {
			return m
		}
		if byName == nil && m.name == name {
			byName = m
		}
	}
	return byName
}

// TypeRefs returns every type reference node in document order.
func (f *File) TypeRefs() []*Node {
	var out []*Node
	f.root.Walk(func(n *Node) bool {
		if n.kind == KindTypeRef {
			out = append(out, n)
		}
		return true
	})
	return out
}

type line struct {
	start, end int // end excludes the line terminator
}

type parser struct {
	doc   *types.Document
	src   []byte
	lines []line
	file  *File
	stack []*Node
}

// Parse builds the structural model of a smali document. Parsing never
// fails: unknown lines become directives and unterminated blocks end at
// their last line.
func Parse(doc *types.Document) *File {
	src := doc.Content
	root := &Node{kind: KindFile, doc: doc, r: types.TextRange{Start: 0, End: len(src)}}
	p := &parser{
		doc:   doc,
		src:   src,
		lines: splitLines(src),
		file:  &File{root: root},
		stack: []*Node{root},
	}
	for i := range p.lines {
		p.parseLine(i)
	}
	return p.file
}

func splitLines(src []byte) []line {
	var lines []line
	start := 0
	for i, b := range src {
		if b != '\n' {
			continue
		}
		end := i
		if end > start && src[end-1] == '\r' {
			end--
		}
		lines = append(lines, line{start, end})
		start = i + 1
	}
	if start < len(src) {
		end := len(src)
		if src[end-1] == '\r' {
			end--
		}
		lines = append(lines, line{start, end})
	}
	return lines
}

func (p *parser) top() *Node { return p.stack[len(p.stack)-1] }

func (p *parser) statement(i int) (int, string) {
	ln := p.lines[i]
	start := ln.start
	for start < ln.end && (p.src[start] == ' ' || p.src[start] == '\t') {
		start++
	}
	return start, string(p.src[start:ln.end])
}

func (p *parser) parseLine(i int) {
	start, stmt := p.statement(i)
	if stmt == "" {
		return
	}
	r := types.TextRange{Start: start, End: p.lines[i].end}

	if stmt[0] == '#' {
		p.attach(p.leaf(KindComment, r.Start, r.End))
		return
	}

	words := strings.Fields(stripComment(stmt))
	word := words[0]
	if word == ".end" && len(words) > 1 && p.close(".end "+words[1], r) {
		return
	}

	switch word {
	case ".class":
		n := p.lineNode(KindClass, r)
		p.file.Class = lastDescriptor(n)
		p.attach(n)
	case ".super":
		n := p.lineNode(KindSuper, r)
		p.file.Super = lastDescriptor(n)
		p.attach(n)
	case ".implements":
		n := p.lineNode(KindImplements, r)
		if d := lastDescriptor(n); d != "" {
			p.file.Interfaces = append(p.file.Interfaces, d)
		}
		p.attach(n)
	case ".source":
		n := p.lineNode(KindSource, r)
		p.file.Source = strings.Trim(strings.TrimSpace(strings.TrimPrefix(stmt, ".source")), `"`)
		p.attach(n)
	case ".field":
		n := p.lineNode(KindField, r)
		n.name, n.signature = fieldName(stripComment(stmt))
		if p.hasAnnotationBlock(i, ".end field") {
			p.open(n, ".end field")
		} else {
			p.attach(n)
		}
	case ".method":
		n := p.lineNode(KindMethod, r)
		n.name, n.signature = methodName(words)
		p.open(n, ".end method")
	case ".param":
		n := p.lineNode(KindParam, r)
		if p.hasAnnotationBlock(i, ".end param") {
			p.open(n, ".end param")
		} else {
			p.attach(n)
		}
	case ".annotation":
		p.open(p.lineNode(KindAnnotation, r), ".end annotation")
	case ".subannotation":
		p.open(p.lineNode(KindSubannotation, r), ".end subannotation")
	case ".packed-switch", ".sparse-switch", ".array-data":
		p.open(p.lineNode(KindPayload, r), ".end "+word[1:])
	default:
		p.parseBody(words, r)
	}
}

func (p *parser) parseBody(words []string, r types.TextRange) {
	switch top := p.top(); {
	case strings.HasPrefix(words[0], ":"):
		p.attach(p.lineNode(KindLabel, r))
	case top.kind == KindAnnotation || top.kind == KindSubannotation:
		if containsWord(words, ".subannotation") {
			p.open(p.lineNode(KindSubannotation, r), ".end subannotation")
			return
		}
		p.attach(p.lineNode(KindAnnotationElement, r))
	case strings.HasPrefix(words[0], "."):
		p.attach(p.lineNode(KindDirective, r))
	case top.kind == KindMethod || top.kind == KindPayload:
		p.attach(p.lineNode(KindInstruction, r))
	default:
		p.attach(p.lineNode(KindDirective, r))
	}
}

// hasAnnotationBlock reports whether the member declared on line i owns the
// annotation block that follows it, which is the case only when closer
// appears before the next member.
func (p *parser) hasAnnotationBlock(i int, closer string) bool {
	sawAnnotation := false
	for j := i + 1; j < len(p.lines); j++ {
		_, stmt := p.statement(j)
		if stmt == "" || stmt[0] == '#' {
			continue
		}
		if !sawAnnotation {
			if !strings.HasPrefix(stmt, ".annotation") {
				return false
			}
			sawAnnotation = true
			continue
		}
		if strings.HasPrefix(stmt, closer) {
			return true
		}
		switch strings.Fields(stmt)[0] {
		case ".field", ".method", ".param", ".end":
			if !strings.HasPrefix(stmt, ".end annotation") && !strings.HasPrefix(stmt, ".end subannotation") {
				return false
			}
		}
	}
	return false
}

func (p *parser) open(n *Node, closer string) {
	n.closer = closer
	p.attach(n)
	p.stack = append(p.stack, n)
}

// close ends the innermost open block closed by closer. Blocks opened
// inside it and left unterminated end with it.
func (p *parser) close(closer string, r types.TextRange) bool {
	for j := len(p.stack) - 1; j > 0; j-- {
		block := p.stack[j]
		if block.closer != closer {
			continue
		}
		for _, leaf := range p.leaves(r.Start, r.End) {
			leaf.parent = block
			block.children = append(block.children, leaf)
		}
		for _, open := range p.stack[1 : j+1] {
			open.r.End = max(open.r.End, r.End)
		}
		p.stack = p.stack[:j]
		return true
	}
	return false
}

// attach adds n to the innermost open block and stretches every open block
// over it.
func (p *parser) attach(n *Node) {
	parent := p.top()
	n.parent = parent
	parent.children = append(parent.children, n)
	for _, open := range p.stack[1:] {
		open.r.End = max(open.r.End, n.r.End)
	}
}

func (p *parser) leaf(kind Kind, start, end int) *Node {
	return &Node{kind: kind, doc: p.doc, r: types.TextRange{Start: start, End: end}}
}

func (p *parser) lineNode(kind Kind, r types.TextRange) *Node {
	n := &Node{kind: kind, doc: p.doc, r: r}
	for _, leaf := range p.leaves(r.Start, r.End) {
		leaf.parent = n
		n.children = append(n.children, leaf)
	}
	return n
}

func lastDescriptor(n *Node) string {
	for i := len(n.children) - 1; i >= 0; i-- {
		if c := n.children[i]; c.kind == KindTypeRef && c.dims == 0 {
			return c.name
		}
	}
	return ""
}

// fieldName splits ".field <flags> name:type [= value]".
func fieldName(stmt string) (name, signature string) {
	if eq := strings.Index(stmt, " = "); eq >= 0 {
		stmt = stmt[:eq]
	}
	fields := strings.Fields(stmt)
	if len(fields) < 2 {
		return "", ""
	}
	signature = fields[len(fields)-1]
	name, _, _ = strings.Cut(signature, ":")
	return name, signature
}

// methodName splits ".method <flags> name(proto)ret".
func methodName(words []string) (name, signature string) {
	if len(words) < 2 {
		return "", ""
	}
	signature = words[len(words)-1]
	name, _, _ = strings.Cut(signature, "(")
	return name, signature
}

func containsWord(words []string, w string) bool {
	for _, x := range words {
		if x == w {
			return true
		}
	}
	return false
}
