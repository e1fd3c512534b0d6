package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shibukawa/fastest"
	tok "github.com/shibukawa/fastest/tokenizer"
)

// litCursor is a hand-written recursive-descent reader over a flat token
// slice. Nested literal structures (a tuple of lists of dicts, etc.) are
// naturally recursive, so this part of the grammar is not expressed with
// parsercombinator's point-free combinators (those are used in
// primitives.go/decorator.go for the non-recursive, single-token
// matchers) — spec.md §4.1 explicitly sanctions either a hand-written
// recursive-descent scanner or a combinator/grammar-based parser, and
// snapsql itself mixes both styles across its own multi-pass pipeline.
type litCursor struct {
	tokens []tok.Token
	pos    int
}

func (c *litCursor) peek() tok.Token {
	if c.pos >= len(c.tokens) {
		return tok.Token{Type: tok.EOF}
	}

	return c.tokens[c.pos]
}

func (c *litCursor) next() tok.Token {
	t := c.peek()
	if c.pos < len(c.tokens) {
		c.pos++
	}

	return t
}

// ParseLiteral parses one literal value starting at the cursor: a number,
// string, True/False/None, a parenthesized tuple, a bracketed list, a
// braced dict, or — for anything else — a raw fallback carrying the
// source text verbatim (spec.md §4.1: "unrecognized parameter values are
// passed through as their source text").
func ParseLiteral(tokens []tok.Token) (fastest.Value, int, error) {
	c := &litCursor{tokens: tokens}
	v, err := c.parseValue()

	return v, c.pos, err
}

func (c *litCursor) parseValue() (fastest.Value, error) {
	t := c.peek()

	switch t.Type {
	case tok.NUMBER:
		return c.parseNumber()
	case tok.STRING:
		c.next()

		return fastest.StringValue(t.Value, unquotePyString(t.Value)), nil
	case tok.KEYWORD:
		switch t.Value {
		case "True":
			c.next()

			return fastest.BoolValue(t.Value, true), nil
		case "False":
			c.next()

			return fastest.BoolValue(t.Value, false), nil
		case "None":
			c.next()

			return fastest.NoneValue(t.Value), nil
		}
	case tok.MINUS:
		// Unary minus on a numeric literal, e.g. -5.
		c.next()

		inner, err := c.parseValue()
		if err != nil {
			return fastest.Value{}, err
		}

		return negate(inner), nil
	case tok.LPAREN:
		return c.parseSequence(tok.LPAREN, tok.RPAREN, true)
	case tok.LBRACKET:
		return c.parseSequence(tok.LBRACKET, tok.RBRACKET, false)
	case tok.LBRACE:
		return c.parseDict()
	}

	return c.parseRawFallback(), nil
}

func (c *litCursor) parseNumber() (fastest.Value, error) {
	t := c.next()

	clean := strings.ReplaceAll(t.Value, "_", "")
	if strings.ContainsAny(clean, ".eEjJ") {
		d, err := decimal.NewFromString(strings.TrimRight(clean, "jJ"))
		if err != nil {
			return fastest.RawValue(t.Value), nil
		}

		return fastest.FloatValue(t.Value, d), nil
	}

	n, err := strconv.ParseInt(clean, 10, 64)
	if err != nil {
		return fastest.RawValue(t.Value), nil
	}

	return fastest.IntValue(t.Value, n), nil
}

// parseSequence parses a parenthesized or bracketed comma-separated list
// of values. asTuple distinguishes a single-element parenthesized value
// (not a tuple, per Python grammar: "(1)" is the int 1) from a tuple
// ("(1,)").
func (c *litCursor) parseSequence(open, closeTy tok.TokenType, asTuple bool) (fastest.Value, error) {
	start := c.next() // consume open
	var elements []fastest.Value
	sawComma := false

	for c.peek().Type != closeTy && c.peek().Type != tok.EOF {
		v, err := c.parseValue()
		if err != nil {
			return fastest.Value{}, err
		}

		elements = append(elements, v)

		if c.peek().Type == tok.COMMA {
			c.next()

			sawComma = true

			continue
		}

		break
	}

	if c.peek().Type != closeTy {
		return fastest.Value{}, fmt.Errorf("%w: unclosed %q", fastest.ErrInvalidParametrize, start.Value)
	}

	c.next() // consume close

	if asTuple {
		if len(elements) == 1 && !sawComma {
			return elements[0], nil
		}

		return fastest.TupleValue(start.Value, elements...), nil
	}

	return fastest.ListValue(start.Value, elements...), nil
}

func (c *litCursor) parseDict() (fastest.Value, error) {
	start := c.next() // consume {
	entries := map[string]fastest.Value{}

	for c.peek().Type != tok.RBRACE && c.peek().Type != tok.EOF {
		key, err := c.parseValue()
		if err != nil {
			return fastest.Value{}, err
		}

		if c.peek().Type != tok.COLON {
			return fastest.Value{}, fmt.Errorf("%w: expected ':' in dict literal", fastest.ErrInvalidParametrize)
		}

		c.next()

		val, err := c.parseValue()
		if err != nil {
			return fastest.Value{}, err
		}

		entries[key.CanonicalID(len(entries))] = val

		if c.peek().Type == tok.COMMA {
			c.next()

			continue
		}

		break
	}

	if c.peek().Type != tok.RBRACE {
		return fastest.Value{}, fmt.Errorf("%w: unclosed '{'", fastest.ErrInvalidParametrize)
	}

	c.next()

	return fastest.DictValue(start.Value, entries), nil
}

// parseRawFallback consumes tokens until the enclosing delimiter (comma or
// close bracket at depth 0) and preserves their concatenated source text
// verbatim, for expressions the parser does not evaluate.
func (c *litCursor) parseRawFallback() fastest.Value {
	depth := 0
	var b strings.Builder

	for {
		t := c.peek()
		if t.Type == tok.EOF {
			break
		}

		if depth == 0 && (t.Type == tok.COMMA || t.Type == tok.RPAREN || t.Type == tok.RBRACKET || t.Type == tok.RBRACE || t.Type == tok.COLON) {
			break
		}

		switch t.Type {
		case tok.LPAREN, tok.LBRACKET, tok.LBRACE:
			depth++
		case tok.RPAREN, tok.RBRACKET, tok.RBRACE:
			depth--
		}

		if b.Len() > 0 {
			b.WriteByte(' ')
		}

		b.WriteString(t.Value)
		c.next()
	}

	return fastest.RawValue(b.String())
}

func negate(v fastest.Value) fastest.Value {
	switch v.Kind {
	case fastest.KindInt:
		return fastest.IntValue("-"+v.Raw, -v.Int)
	case fastest.KindFloat:
		return fastest.FloatValue("-"+v.Raw, v.Float.Neg())
	default:
		return fastest.RawValue("-" + v.Raw)
	}
}

// unquotePyString strips one layer of Python string quoting (including
// triple-quotes) without interpreting escape sequences — the parser only
// needs the literal text for id rendering and argument passthrough, never
// the runtime string value.
func unquotePyString(src string) string {
	s := src

	for _, q := range []string{`"""`, `'''`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			return s[len(q) : len(s)-len(q)]
		}
	}

	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '\'' || first == '"') && first == last {
			return s[1 : len(s)-1]
		}
	}

	return s
}
