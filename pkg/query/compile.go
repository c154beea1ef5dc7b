/*
Package query compiles row filters over compound datasets and scans datasets with them.

A filter is a boolean expression over the field names of the dataset's compound type:

	(date >= 22) & (wind == b'W 5')

Operands are field names, numbers and quoted string literals (an optional b prefix is accepted).
Comparisons are ==, !=, <, <=, > and >=; they combine with & (and), | (or) and ~ (not).
Nothing else is accepted: the expression is never run as code,
it is checked against this closed grammar and evaluated by this package.
*/
package query

import (
	"strings"

	"github.com/HDFGroup/hdf5-json/h5api"
)

// Names that are refused even when a compound type has a field called that.
var reserved = map[string]bool{
	"import": true, "from": true, "lambda": true, "exec": true, "eval": true,
	"global": true, "del": true, "with": true, "yield": true, "def": true, "class": true,
}

type tokenKind uint8

const (
	tokField tokenKind = iota + 1
	tokNumber
	tokString
	tokCompare
	tokAnd
	tokOr
	tokNot
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string // operator, number text, field name, or literal contents
	pos  int
}

// Query is a compiled filter.
type Query struct {
	text   string
	subst  string
	fields []string // referenced fields, in order of first use
	index  map[string]int
	root   node
}

// Text is the expression as given.
func (q *Query) Text() string { return q.text }

// String is the expression with every field reference written as rows['name'].
func (q *Query) String() string { return q.subst }

// Fields lists the fields the expression refers to.
func (q *Query) Fields() []string { return append([]string(nil), q.fields...) }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// Compile checks expr against the field names of a compound type
// and returns the filter.
//
// Errors:
//
//   - h5json-error-invalid-query -- when expr uses anything outside the filter grammar,
//     names a field that does not exist, has unbalanced parentheses or quotes,
//     or refers to no field at all
func Compile(expr string, fields []string) (*Query, error) {
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		index[f] = i
	}
	toks, subst, used, err := scan(expr, index)
	if err != nil {
		return nil, err
	}
	p := parser{expr: expr, toks: toks}
	root, err := p.parse()
	if err != nil {
		return nil, err
	}
	return &Query{
		text:   expr,
		subst:  subst,
		fields: used,
		index:  index,
		root:   root,
	}, nil
}

// scan makes one pass over expr, tokenizing it and writing the substituted form.
func scan(expr string, index map[string]int) ([]token, string, []string, error) {
	var (
		toks   []token
		out    strings.Builder
		used   []string
		seen   = map[string]bool{}
		depth  int
		refs   int
		ident  strings.Builder
		start  int
		quote  byte
		litBeg int
	)
	reject := func(reason string) ([]token, string, []string, error) {
		return nil, "", nil, h5api.ErrorInvalidQuery(expr, reason)
	}
	// flush ends the identifier or number being buffered.
	flush := func() error {
		if ident.Len() == 0 {
			return nil
		}
		word := ident.String()
		ident.Reset()
		if isDigit(word[0]) || word[0] == '.' {
			toks = append(toks, token{kind: tokNumber, text: word, pos: start})
			out.WriteString(word)
			return nil
		}
		if reserved[word] || strings.HasPrefix(word, "__") {
			return h5api.ErrorInvalidQuery(expr, "reserved name "+word)
		}
		if _, ok := index[word]; !ok {
			return h5api.ErrorInvalidQuery(expr, "unknown field "+word)
		}
		if !seen[word] {
			seen[word] = true
			used = append(used, word)
		}
		refs++
		toks = append(toks, token{kind: tokField, text: word, pos: start})
		out.WriteString("rows['" + word + "']")
		return nil
	}

	for i := 0; i < len(expr); i++ {
		c := expr[i]
		if quote != 0 {
			out.WriteByte(c)
			if c == quote {
				toks = append(toks, token{kind: tokString, text: expr[litBeg:i], pos: litBeg})
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"':
			// A b directly before the quote marks a byte literal.
			if ident.Len() == 1 && ident.String() == "b" {
				ident.Reset()
				out.WriteByte('b')
			}
			if err := flush(); err != nil {
				return nil, "", nil, err
			}
			quote = c
			litBeg = i + 1
			out.WriteByte(c)
		case isIdentChar(c):
			if ident.Len() == 0 {
				start = i
			}
			ident.WriteByte(c)
		case c == '.':
			// Only as part of a number.
			if ident.Len() == 0 {
				if i+1 < len(expr) && isDigit(expr[i+1]) {
					start = i
					ident.WriteByte(c)
					continue
				}
				return reject("unexpected '.'")
			}
			if w := ident.String(); !isDigit(w[0]) || strings.Contains(w, ".") {
				return reject("unexpected '.' after " + w)
			}
			ident.WriteByte(c)
		default:
			if err := flush(); err != nil {
				return nil, "", nil, err
			}
			switch c {
			case ' ', '\t', '\n', '\r':
				out.WriteByte(c)
			case '(':
				depth++
				toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
				out.WriteByte(c)
			case ')':
				depth--
				if depth < 0 {
					return reject("unbalanced ')'")
				}
				toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
				out.WriteByte(c)
			case '&':
				toks = append(toks, token{kind: tokAnd, text: "&", pos: i})
				out.WriteByte(c)
			case '|':
				toks = append(toks, token{kind: tokOr, text: "|", pos: i})
				out.WriteByte(c)
			case '~':
				toks = append(toks, token{kind: tokNot, text: "~", pos: i})
				out.WriteByte(c)
			case '<', '>', '=', '!':
				j := i
				for j < len(expr) && strings.IndexByte("<>=!", expr[j]) >= 0 {
					j++
				}
				op := expr[i:j]
				switch op {
				case "==", "!=", "<", "<=", ">", ">=":
				default:
					return reject("unknown operator " + op)
				}
				toks = append(toks, token{kind: tokCompare, text: op, pos: i})
				out.WriteString(op)
				i = j - 1
			default:
				return reject("unexpected character " + string(c))
			}
		}
	}
	if quote != 0 {
		return reject("unterminated string literal")
	}
	if err := flush(); err != nil {
		return nil, "", nil, err
	}
	if depth != 0 {
		return reject("unbalanced '('")
	}
	if refs == 0 {
		return reject("no field is referenced")
	}
	return toks, out.String(), used, nil
}
