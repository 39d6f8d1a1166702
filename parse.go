// FILE: lixenwraith/params/parse.go
package params

import (
	"fmt"
	"strconv"
	"strings"
	"text/scanner"
)

// ParseType parses a field type expression such as "tuple[int, ...] | none".
// Identifiers other than the built-in keywords resolve against reg.
func ParseType(expr string, reg *Registry) (*TypeNode, error) {
	return parseType(expr, reg, "")
}

// MustParseType is like ParseType but panics on error
func MustParseType(expr string, reg *Registry) *TypeNode {
	n, err := ParseType(expr, reg)
	if err != nil {
		panic(err)
	}
	return n
}

// parseType rejects references to self, the object type under declaration
func parseType(expr string, reg *Registry, self string) (*TypeNode, error) {
	p := &typeParser{reg: reg, self: self, expr: expr}
	p.s.Init(strings.NewReader(expr))
	p.s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanFloats | scanner.ScanStrings
	p.s.Error = func(_ *scanner.Scanner, msg string) {
		if p.err == nil {
			p.err = fmt.Errorf("%w: %s in %q", ErrUnsupportedType, msg, expr)
		}
	}
	p.next()

	node, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.err != nil {
		return nil, p.err
	}
	if p.tok != scanner.EOF {
		return nil, p.fail("unexpected %q", p.s.TokenText())
	}
	return node, nil
}

type typeParser struct {
	s    scanner.Scanner
	tok  rune
	reg  *Registry
	self string
	expr string
	err  error
}

func (p *typeParser) next() {
	p.tok = p.s.Scan()
}

func (p *typeParser) fail(format string, args ...any) error {
	return fmt.Errorf("%w: %s in %q", ErrUnsupportedType, fmt.Sprintf(format, args...), p.expr)
}

func (p *typeParser) expect(r rune) error {
	if p.tok != r {
		if p.tok == scanner.EOF {
			return p.fail("expected %q, got end of expression", string(r))
		}
		return p.fail("expected %q, got %q", string(r), p.s.TokenText())
	}
	p.next()
	return nil
}

func (p *typeParser) parseExpr() (*TypeNode, error) {
	first, err := p.parseMember()
	if err != nil {
		return nil, err
	}
	if p.tok != '|' {
		return first, nil
	}

	members := []*TypeNode{first}
	for p.tok == '|' {
		p.next()
		m, err := p.parseMember()
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return newUnion(members)
}

func (p *typeParser) parseMember() (*TypeNode, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.tok != scanner.Ident {
		if p.tok == scanner.EOF {
			return nil, p.fail("missing type")
		}
		return nil, p.fail("unexpected %q", p.s.TokenText())
	}
	name := p.s.TokenText()
	p.next()

	switch name {
	case "int":
		return &TypeNode{kind: KindInt}, nil
	case "float":
		return &TypeNode{kind: KindFloat}, nil
	case "bool":
		return &TypeNode{kind: KindBool}, nil
	case "str":
		return &TypeNode{kind: KindStr}, nil
	case "bytes":
		return &TypeNode{kind: KindBytes}, nil
	case "path":
		return &TypeNode{kind: KindPath}, nil
	case "none", "None":
		return &TypeNode{kind: KindNone}, nil
	case "tuple":
		return p.parseTuple()
	case "literal":
		return p.parseLiteral()
	case "array":
		return p.parseArray()
	}

	if name == p.self {
		return nil, p.fail("type %s refers to itself", name)
	}
	if p.reg == nil {
		return nil, p.fail("unknown type %s", name)
	}
	if e, ok := p.reg.EnumType(name); ok {
		return &TypeNode{kind: KindEnum, enum: e}, nil
	}
	if o, ok := p.reg.ObjectType(name); ok {
		return &TypeNode{kind: KindObject, object: o}, nil
	}
	return nil, p.fail("unknown type %s", name)
}

func (p *typeParser) parseTuple() (*TypeNode, error) {
	if p.tok != '[' {
		return nil, p.fail("tuple requires element types")
	}
	p.next()
	if p.tok == ']' {
		return nil, p.fail("tuple requires element types")
	}

	node := &TypeNode{kind: KindTuple}
	for {
		if p.tok == '.' {
			if len(node.children) != 1 || node.variadic {
				return nil, p.fail("ellipsis only allowed as tuple[T, ...]")
			}
			for i := 0; i < 3; i++ {
				if err := p.expect('.'); err != nil {
					return nil, err
				}
			}
			node.variadic = true
		} else {
			if node.variadic {
				return nil, p.fail("ellipsis must close the tuple")
			}
			child, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			node.children = append(node.children, child)
		}

		if p.tok != ',' {
			break
		}
		p.next()
	}
	if err := p.expect(']'); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *typeParser) parseLiteral() (*TypeNode, error) {
	if p.tok != '[' {
		return nil, p.fail("literal requires values")
	}
	p.next()
	if p.tok == ']' {
		return nil, p.fail("literal requires values")
	}

	node := &TypeNode{kind: KindLiteral}
	for {
		v, err := p.parseLiteralValue()
		if err != nil {
			return nil, err
		}
		for _, prev := range node.literals {
			if valueEqual(prev, v) {
				return nil, p.fail("duplicate literal %s", formatLiteral(v))
			}
		}
		node.literals = append(node.literals, v)

		if p.tok != ',' {
			break
		}
		p.next()
	}
	if err := p.expect(']'); err != nil {
		return nil, err
	}
	return node, nil
}

func (p *typeParser) parseLiteralValue() (any, error) {
	negative := false
	if p.tok == '-' {
		negative = true
		p.next()
	}
	text := p.s.TokenText()

	switch p.tok {
	case scanner.Int:
		p.next()
		if negative {
			text = "-" + text
		}
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, p.fail("invalid integer literal %s", text)
		}
		return i, nil
	case scanner.Float:
		p.next()
		if negative {
			text = "-" + text
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, p.fail("invalid float literal %s", text)
		}
		return f, nil
	case scanner.String:
		p.next()
		if negative {
			return nil, p.fail("invalid literal -%s", text)
		}
		s, err := strconv.Unquote(text)
		if err != nil {
			return nil, p.fail("invalid string literal %s", text)
		}
		return s, nil
	case scanner.Ident:
		p.next()
		if !negative {
			switch text {
			case "true", "True":
				return true, nil
			case "false", "False":
				return false, nil
			case "none", "None":
				return nil, nil
			}
		}
	}
	return nil, p.fail("literal values must be scalars, got %q", text)
}

func (p *typeParser) parseArray() (*TypeNode, error) {
	if err := p.expect('['); err != nil {
		return nil, p.fail("array requires an element type")
	}
	name := p.s.TokenText()
	if p.tok != scanner.Ident {
		return nil, p.fail("array requires an element type")
	}
	p.next()
	dtype, ok := dtypeByName(name)
	if !ok {
		return nil, p.fail("unknown array element type %s", name)
	}
	if err := p.expect(']'); err != nil {
		return nil, err
	}
	return &TypeNode{kind: KindArray, dtype: dtype}, nil
}
