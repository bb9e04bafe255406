package transform

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/tidytable/tidytable/table"
)

// Calculated adds (or overwrites) a column computed from an arithmetic
// expression over existing numeric columns, e.g. "price * qty - discount".
// Supported: + - * /, parentheses, unary minus, numeric literals, and
// column references. Rows where any referenced cell is missing or
// non-numeric yield a missing result; so does division by zero.
func Calculated(t *table.Table, name, expression string) (*table.Table, error) {
	if name == "" || strings.TrimSpace(expression) == "" {
		return nil, fmt.Errorf("%w: column name and expression are required", ErrBadRequest)
	}
	node, err := parseExpr(expression)
	if err != nil {
		return nil, err
	}

	// Validate column references up front so a typo fails the request
	// instead of producing a column of nulls.
	for _, ref := range node.refs(nil) {
		if t.ColumnIndex(ref) < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownColumn, ref)
		}
	}

	values := make([]any, t.NumRows())
	for r := range t.Rows {
		if v, ok := node.eval(t, r); ok {
			values[r] = v
		}
	}
	if err := t.AddColumn(name, table.TypeFloat, values); err != nil {
		return nil, err
	}
	t.Retype()
	return t, nil
}

// --- expression AST ---

type exprNode interface {
	eval(t *table.Table, row int) (float64, bool)
	refs(acc []string) []string
}

type literal float64

func (l literal) eval(*table.Table, int) (float64, bool) { return float64(l), true }
func (l literal) refs(acc []string) []string             { return acc }

type columnRef string

func (c columnRef) eval(t *table.Table, row int) (float64, bool) {
	return table.AsFloat(t.Cell(row, t.ColumnIndex(string(c))))
}
func (c columnRef) refs(acc []string) []string { return append(acc, string(c)) }

type binary struct {
	op    byte
	left  exprNode
	right exprNode
}

func (b binary) eval(t *table.Table, row int) (float64, bool) {
	l, ok := b.left.eval(t, row)
	if !ok {
		return 0, false
	}
	r, ok := b.right.eval(t, row)
	if !ok {
		return 0, false
	}
	switch b.op {
	case '+':
		return l + r, true
	case '-':
		return l - r, true
	case '*':
		return l * r, true
	case '/':
		if r == 0 {
			return 0, false
		}
		return l / r, true
	}
	return 0, false
}

func (b binary) refs(acc []string) []string {
	return b.right.refs(b.left.refs(acc))
}

type negate struct{ inner exprNode }

func (n negate) eval(t *table.Table, row int) (float64, bool) {
	v, ok := n.inner.eval(t, row)
	return -v, ok
}
func (n negate) refs(acc []string) []string { return n.inner.refs(acc) }

// --- recursive-descent parser ---

type parser struct {
	input []rune
	pos   int
}

func parseExpr(s string) (exprNode, error) {
	p := &parser{input: []rune(s)}
	node, err := p.sum()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.input) {
		return nil, fmt.Errorf("%w: unexpected %q at offset %d", ErrBadRequest, string(p.input[p.pos]), p.pos)
	}
	return node, nil
}

func (p *parser) sum() (exprNode, error) {
	left, err := p.product()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.peekOp('+', '-')
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.product()
		if err != nil {
			return nil, err
		}
		left = binary{op: op, left: left, right: right}
	}
}

func (p *parser) product() (exprNode, error) {
	left, err := p.factor()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := p.peekOp('*', '/')
		if !ok {
			return left, nil
		}
		p.pos++
		right, err := p.factor()
		if err != nil {
			return nil, err
		}
		left = binary{op: op, left: left, right: right}
	}
}

func (p *parser) factor() (exprNode, error) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return nil, fmt.Errorf("%w: unexpected end of expression", ErrBadRequest)
	}
	ch := p.input[p.pos]

	switch {
	case ch == '-':
		p.pos++
		inner, err := p.factor()
		if err != nil {
			return nil, err
		}
		return negate{inner: inner}, nil

	case ch == '(':
		p.pos++
		node, err := p.sum()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.pos >= len(p.input) || p.input[p.pos] != ')' {
			return nil, fmt.Errorf("%w: missing closing parenthesis", ErrBadRequest)
		}
		p.pos++
		return node, nil

	case unicode.IsDigit(ch) || ch == '.':
		start := p.pos
		for p.pos < len(p.input) && (unicode.IsDigit(p.input[p.pos]) || p.input[p.pos] == '.') {
			p.pos++
		}
		f, err := strconv.ParseFloat(string(p.input[start:p.pos]), 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad number %q", ErrBadRequest, string(p.input[start:p.pos]))
		}
		return literal(f), nil

	case unicode.IsLetter(ch) || ch == '_':
		start := p.pos
		for p.pos < len(p.input) && (unicode.IsLetter(p.input[p.pos]) || unicode.IsDigit(p.input[p.pos]) || p.input[p.pos] == '_') {
			p.pos++
		}
		return columnRef(string(p.input[start:p.pos])), nil

	default:
		return nil, fmt.Errorf("%w: unexpected %q at offset %d", ErrBadRequest, string(ch), p.pos)
	}
}

func (p *parser) peekOp(ops ...byte) (byte, bool) {
	p.skipSpace()
	if p.pos >= len(p.input) {
		return 0, false
	}
	for _, op := range ops {
		if byte(p.input[p.pos]) == op {
			return op, true
		}
	}
	return 0, false
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && unicode.IsSpace(p.input[p.pos]) {
		p.pos++
	}
}
