// Package parser implements the static discovery engine of spec.md §4.1:
// converting Python source text into TestItems and Fixtures without
// executing it. It never evaluates expressions beyond recognizing literal
// tuples/lists/dicts/Nones/booleans/numbers/strings.
package parser

import (
	"slices"

	pc "github.com/shibukawa/parsercombinator"
	tok "github.com/shibukawa/fastest/tokenizer"
)

// Primitive token-type combinators, grounded on
// parser/parsercommon/parser.go's PrimitiveType/KeywordType pattern from
// the teacher repository, retargeted at Python tokens instead of SQL ones.
var (
	Number     = PrimitiveType("number", tok.NUMBER)
	String     = PrimitiveType("string", tok.STRING)
	Identifier = PrimitiveType("identifier", tok.IDENTIFIER)
	Keyword    = PrimitiveType("keyword", tok.KEYWORD)
	ParenOpen  = PrimitiveType("parenOpen", tok.LPAREN)
	ParenClose = PrimitiveType("parenClose", tok.RPAREN)
	BracketOpen  = PrimitiveType("bracketOpen", tok.LBRACKET)
	BracketClose = PrimitiveType("bracketClose", tok.RBRACKET)
	BraceOpen    = PrimitiveType("braceOpen", tok.LBRACE)
	BraceClose   = PrimitiveType("braceClose", tok.RBRACE)
	Comma      = PrimitiveType("comma", tok.COMMA)
	Colon      = PrimitiveType("colon", tok.COLON)
	Equal      = PrimitiveType("equal", tok.EQUAL)
	Minus      = PrimitiveType("minus", tok.MINUS)
	At         = PrimitiveType("at", tok.AT)
	Dot        = PrimitiveType("dot", tok.DOT)

	// EOS matches end of the token slice handed to a sub-grammar (never
	// the whole file's EOF token, since decorator/parametrize grammars
	// only ever see the slice between one pair of balanced parens).
	EOS = pc.EOS[tok.Token]()
)

// PrimitiveType matches a single token whose Type is one of types.
func PrimitiveType(name string, types ...tok.TokenType) pc.Parser[tok.Token] {
	return func(pctx *pc.ParseContext[tok.Token], tokens []pc.Token[tok.Token]) (int, []pc.Token[tok.Token], error) {
		if len(tokens) > 0 && slices.Contains(types, tokens[0].Val.Type) {
			return 1, tokens[:1], nil
		}

		return 0, nil, pc.ErrNotMatch
	}
}

// KeywordType matches an identifier/keyword token spelling one of word,
// case-sensitively (Python identifiers, unlike SQL's, are case-sensitive).
func KeywordType(name string, word ...string) pc.Parser[tok.Token] {
	return func(pctx *pc.ParseContext[tok.Token], tokens []pc.Token[tok.Token]) (int, []pc.Token[tok.Token], error) {
		if len(tokens) == 0 {
			return 0, nil, pc.ErrNotMatch
		}

		if tokens[0].Val.Type != tok.IDENTIFIER && tokens[0].Val.Type != tok.KEYWORD {
			return 0, nil, pc.ErrNotMatch
		}

		v := tokens[0].Val.Value
		for _, w := range word {
			if v == w {
				return 1, tokens[:1], nil
			}
		}

		return 0, nil, pc.ErrNotMatch
	}
}

// ToParserToken adapts a raw tokenizer stream into parsercombinator's
// generic token representation.
func ToParserToken(tokens []tok.Token) []pc.Token[tok.Token] {
	out := make([]pc.Token[tok.Token], len(tokens))

	for i, t := range tokens {
		out[i] = pc.Token[tok.Token]{
			Type: "raw",
			Pos: &pc.Pos{
				Line:  t.Position.Line,
				Col:   t.Position.Column,
				Index: t.Position.Offset,
			},
			Val: t,
			Raw: t.Value,
		}
	}

	return out
}

// ToToken unwraps parsercombinator tokens back to raw tokenizer tokens.
func ToToken(entities []pc.Token[tok.Token]) []tok.Token {
	out := make([]tok.Token, 0, len(entities))
	for _, e := range entities {
		out = append(out, e.Val)
	}

	return out
}
