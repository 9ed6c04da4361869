package smali

// leaves returns the comment, string and type reference nodes found in
// src[start:end], in order.
func (p *parser) leaves(start, end int) []*Node {
	var out []*Node
	src := p.src
	for i := start; i < end; {
		c := src[i]
		switch {
		case c == '#':
			return append(out, p.leaf(KindComment, i, end))
		case c == '"' || c == '\'':
			j := closeQuote(src, i, end)
			out = append(out, p.leaf(KindString, i, j))
			i = j
		case c == '(':
			out, i = p.prototype(out, i+1, end)
		case (c == 'L' || c == '[') && (i == start || !isNameByte(src[i-1])):
			var n *Node
			n, i, _ = p.typeRef(i, end)
			if n != nil {
				out = append(out, n)
			}
		default:
			i++
		}
	}
	return out
}

// prototype consumes the parameter and return types of a method prototype
// starting just after '('. It stops at the first byte that does not fit.
func (p *parser) prototype(out []*Node, i, end int) ([]*Node, int) {
	src := p.src
	for i < end && src[i] != ')' {
		switch c := src[i]; {
		case c == 'L' || c == '[':
			n, j, ok := p.typeRef(i, end)
			if n != nil {
				out = append(out, n)
			}
			if !ok {
				return out, j
			}
			i = j
		case isPrimitive(c):
			i++
		default:
			return out, i
		}
	}
	if i >= end {
		return out, i
	}
	i++ // ')'
	if i < end && (src[i] == 'L' || src[i] == '[') {
		n, j, _ := p.typeRef(i, end)
		if n != nil {
			out = append(out, n)
		}
		return out, j
	}
	return out, i
}

// typeRef reads a type descriptor at i. Class descriptors, with or without
// array dimensions, become nodes; primitive arrays are valid but produce no
// node. ok is false when no descriptor starts at i. The returned position is
// always past i.
func (p *parser) typeRef(i, end int) (n *Node, next int, ok bool) {
	src := p.src
	j := i
	for j < end && src[j] == '[' {
		j++
	}
	dims := j - i
	if j >= end {
		return nil, j, false
	}
	if src[j] != 'L' {
		if dims > 0 && isPrimitive(src[j]) {
			return nil, j + 1, true
		}
		return nil, max(j, i+1), false
	}
	k := j + 1
	for k < end && isNameByte(src[k]) {
		k++
	}
	if k >= end || src[k] != ';' || k == j+1 {
		return nil, k, false
	}
	n = p.leaf(KindTypeRef, i, k+1)
	n.name = string(src[j : k+1])
	n.dims = dims
	return n, k + 1, true
}

func closeQuote(src []byte, i, end int) int {
	q := src[i]
	for j := i + 1; j < end; j++ {
		switch src[j] {
		case '\\':
			j++
		case q:
			return j + 1
		}
	}
	return end
}

// stripComment removes a trailing comment that is not inside a literal.
func stripComment(stmt string) string {
	for i := 0; i < len(stmt); i++ {
		switch c := stmt[i]; c {
		case '#':
			return stmt[:i]
		case '"', '\'':
			i = closeQuote([]byte(stmt), i, len(stmt)) - 1
		}
	}
	return stmt
}

// isNameByte reports whether b may appear in a class name. Bytes of
// multi-byte UTF-8 sequences always qualify.
func isNameByte(b byte) bool {
	return b >= 0x80 ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') ||
		b == '_' || b == '$' || b == '-' || b == '/'
}

func isPrimitive(b byte) bool {
	switch b {
	case 'Z', 'B', 'S', 'C', 'I', 'J', 'F', 'D', 'V':
		return true
	}
	return false
}
