package query

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/HDFGroup/hdf5-json/h5api"
)

type node interface {
	// eval yields a bool for logical nodes and an operand value otherwise.
	eval(row []any, index map[string]int) (any, error)
}

type (
	fieldNode   struct{ name string }
	literalNode struct{ v any }
	compareNode struct {
		op   string
		l, r node
	}
	logicNode struct {
		op   tokenKind
		l, r node
	}
	notNode struct{ x node }
)

// parser is a precedence climber over the scanned tokens:
// | binds loosest, then &, then ~, then comparisons.
type parser struct {
	expr string
	toks []token
	pos  int
}

func (p *parser) fail(reason string) error {
	return h5api.ErrorInvalidQuery(p.expr, reason)
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) parse() (node, error) {
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if t, ok := p.peek(); ok {
		return nil, p.fail(fmt.Sprintf("unexpected %q at offset %d", t.text, t.pos))
	}
	return n, nil
}

func (p *parser) parseOr() (node, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokOr {
			return l, nil
		}
		p.pos++
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = logicNode{op: tokOr, l: l, r: r}
	}
}

func (p *parser) parseAnd() (node, error) {
	l, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokAnd {
			return l, nil
		}
		p.pos++
		r, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		l = logicNode{op: tokAnd, l: l, r: r}
	}
}

func (p *parser) parseNot() (node, error) {
	if t, ok := p.peek(); ok && t.kind == tokNot {
		p.pos++
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return notNode{x}, nil
	}
	return p.parseCompare()
}

func (p *parser) parseCompare() (node, error) {
	l, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	t, ok := p.peek()
	if !ok || t.kind != tokCompare {
		if !isValue(l) {
			return l, nil
		}
		return nil, p.fail("expected a comparison")
	}
	p.pos++
	r, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if !isValue(l) || !isValue(r) {
		return nil, p.fail("comparison of a condition")
	}
	return compareNode{op: t.text, l: l, r: r}, nil
}

func isValue(n node) bool {
	switch n.(type) {
	case fieldNode, literalNode:
		return true
	}
	return false
}

func (p *parser) parseOperand() (node, error) {
	t, ok := p.peek()
	if !ok {
		return nil, p.fail("unexpected end of expression")
	}
	p.pos++
	switch t.kind {
	case tokField:
		return fieldNode{t.text}, nil
	case tokString:
		return literalNode{t.text}, nil
	case tokNumber:
		v, err := parseNumber(t.text)
		if err != nil {
			return nil, p.fail(fmt.Sprintf("bad number %q", t.text))
		}
		return literalNode{v}, nil
	case tokLParen:
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if c, ok := p.peek(); !ok || c.kind != tokRParen {
			return nil, p.fail("expected ')'")
		}
		p.pos++
		return n, nil
	}
	return nil, p.fail(fmt.Sprintf("unexpected %q at offset %d", t.text, t.pos))
}

func parseNumber(s string) (any, error) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, nil
	}
	return strconv.ParseFloat(s, 64)
}

// Match reports whether a row passes the filter. The row holds one value per
// field of the compound type, in the order of the fields given to Compile.
//
// Errors:
//
//   - h5json-error-invalid-query -- when a comparison mixes strings and numbers,
//     or the row is too short
func (q *Query) Match(row []any) (bool, error) {
	v, err := q.root.eval(row, q.index)
	if err != nil {
		return false, h5api.ErrorInvalidQuery(q.text, err.Error())
	}
	b, ok := v.(bool)
	if !ok {
		return false, h5api.ErrorInvalidQuery(q.text, "expression is not a condition")
	}
	return b, nil
}

func (n fieldNode) eval(row []any, index map[string]int) (any, error) {
	i := index[n.name]
	if i >= len(row) {
		return nil, fmt.Errorf("row has no field %q", n.name)
	}
	return row[i], nil
}

func (n literalNode) eval([]any, map[string]int) (any, error) {
	return n.v, nil
}

func (n notNode) eval(row []any, index map[string]int) (any, error) {
	v, err := n.x.eval(row, index)
	if err != nil {
		return nil, err
	}
	return !v.(bool), nil
}

func (n logicNode) eval(row []any, index map[string]int) (any, error) {
	l, err := n.l.eval(row, index)
	if err != nil {
		return nil, err
	}
	r, err := n.r.eval(row, index)
	if err != nil {
		return nil, err
	}
	if n.op == tokAnd {
		return l.(bool) && r.(bool), nil
	}
	return l.(bool) || r.(bool), nil
}

func (n compareNode) eval(row []any, index map[string]int) (any, error) {
	l, err := n.l.eval(row, index)
	if err != nil {
		return nil, err
	}
	r, err := n.r.eval(row, index)
	if err != nil {
		return nil, err
	}
	c, err := compare(l, r)
	if err != nil {
		return nil, err
	}
	if c == unordered {
		return n.op == "!=", nil
	}
	switch n.op {
	case "==":
		return c == 0, nil
	case "!=":
		return c != 0, nil
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	case ">":
		return c > 0, nil
	}
	return c >= 0, nil
}

// unordered is the order of a comparison involving NaN.
const unordered = 2

// compare orders two operands.
func compare(a, b any) (int, error) {
	if as, ok := asBytes(a); ok {
		bs, ok := asBytes(b)
		if !ok {
			return 0, fmt.Errorf("cannot compare %T with %T", a, b)
		}
		return bytes.Compare(as, bs), nil
	}
	switch x := a.(type) {
	case int64:
		switch y := b.(type) {
		case int64:
			return cmpOrdered(x, y), nil
		case uint64:
			if x < 0 {
				return -1, nil
			}
			return cmpOrdered(uint64(x), y), nil
		}
	case uint64:
		switch y := b.(type) {
		case uint64:
			return cmpOrdered(x, y), nil
		case int64:
			if y < 0 {
				return 1, nil
			}
			return cmpOrdered(x, uint64(y)), nil
		}
	}
	fa, ok1 := asFloat(a)
	fb, ok2 := asFloat(b)
	if !ok1 || !ok2 {
		return 0, fmt.Errorf("cannot compare %T with %T", a, b)
	}
	if math.IsNaN(fa) || math.IsNaN(fb) {
		return unordered, nil
	}
	return cmpOrdered(fa, fb), nil
}

func cmpOrdered[T int64 | uint64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// asBytes takes fixed strings without their trailing padding.
func asBytes(v any) ([]byte, bool) {
	switch x := v.(type) {
	case []byte:
		return bytes.TrimRight(x, "\x00"), true
	case string:
		return []byte(x), true
	}
	return nil, false
}
