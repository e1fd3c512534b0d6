package parser

import (
	"strings"

	pc "github.com/shibukawa/parsercombinator"

	"github.com/shibukawa/fastest"
	tok "github.com/shibukawa/fastest/tokenizer"
)

// dottedName matches an identifier optionally followed by one or more
// ".identifier" segments (e.g. "skip" or "pytest.mark.skip"). It is built
// from primitives.go's flat, non-recursive token combinators — the
// decorator name is never nested, so it doesn't need literal.go's
// hand-written descent.
var dottedName = pc.Seq(Identifier, pc.ZeroOrMore("dotted-tail", pc.Seq(Dot, Identifier)))

// parseDottedName consumes a leading dotted identifier chain from toks and
// returns its dotted-joined text plus the number of tokens consumed.
func parseDottedName(toks []tok.Token) (string, int) {
	pctx := pc.NewParseContext[tok.Token]()

	consumed, matched, err := dottedName(pctx, ToParserToken(toks))
	if err != nil {
		return "", 0
	}

	var parts []string

	for _, t := range ToToken(matched) {
		if t.Type == tok.IDENTIFIER || t.Type == tok.KEYWORD {
			parts = append(parts, t.Value)
		}
	}

	return strings.Join(parts, "."), consumed
}

// decoratorLine is one `@...` line immediately above a def, already split
// into its dotted name (e.g. "pytest.mark.skip" or "fixture") and the
// token slice between the matching parens, if any.
type decoratorLine struct {
	name string
	args []tok.Token // nil if the decorator was written without parens
	line int
}

// splitDecorators walks the tokens of a class or function body's leading
// decorator block (one or more consecutive `@name(...)` logical lines)
// and returns one decoratorLine per `@`.
func splitDecorators(lines [][]tok.Token) []decoratorLine {
	out := make([]decoratorLine, 0, len(lines))

	for _, toks := range lines {
		if len(toks) == 0 || toks[0].Type != tok.AT {
			continue
		}

		name, consumed := parseDottedName(toks[1:])
		i := 1 + consumed

		dl := decoratorLine{name: name, line: toks[0].Position.Line}

		if i < len(toks) && toks[i].Type == tok.LPAREN {
			depth := 1
			start := i + 1
			i++

			for i < len(toks) && depth > 0 {
				switch toks[i].Type {
				case tok.LPAREN:
					depth++
				case tok.RPAREN:
					depth--
				}

				if depth > 0 {
					i++
				}
			}

			dl.args = toks[start:i]
		}

		out = append(out, dl)
	}

	return out
}

// splitTopLevelArgs splits a decorator's argument token slice on its
// top-level commas (commas inside nested brackets don't count), returning
// one sub-slice per positional/keyword argument.
func splitTopLevelArgs(toks []tok.Token) [][]tok.Token {
	if len(toks) == 0 {
		return nil
	}

	var out [][]tok.Token

	depth := 0
	start := 0

	for i, t := range toks {
		switch t.Type {
		case tok.LPAREN, tok.LBRACKET, tok.LBRACE:
			depth++
		case tok.RPAREN, tok.RBRACKET, tok.RBRACE:
			depth--
		case tok.COMMA:
			if depth == 0 {
				out = append(out, toks[start:i])
				start = i + 1
			}
		}
	}

	if start < len(toks) {
		out = append(out, toks[start:])
	}

	return out
}

// splitKeywordArg recognizes `name=value` inside a single argument
// sub-slice, returning the keyword name and the value token slice. ok is
// false for a positional argument (no top-level `=`).
func splitKeywordArg(toks []tok.Token) (name string, value []tok.Token, ok bool) {
	if len(toks) >= 2 && toks[0].Type == tok.IDENTIFIER && toks[1].Type == tok.EQUAL {
		return toks[0].Value, toks[2:], true
	}

	return "", nil, false
}

// knownMarkerNames are the marker spellings with specific runner
// semantics (spec.md §4.2); anything else is an opaque user marker
// recorded verbatim for the worker to interpret.
var knownMarkerNames = map[string]string{
	"skip":          "skip",
	"pytest.mark.skip": "skip",
	"skipif":        "skipif",
	"pytest.mark.skipif": "skipif",
	"xfail":         "xfail",
	"pytest.mark.xfail": "xfail",
	"parametrize":   "parametrize",
	"pytest.mark.parametrize": "parametrize",
	"fixture":       "fixture",
	"pytest.fixture": "fixture",
}

// canonicalMarkerName strips a leading "pytest.mark." / "mark." prefix so
// "pytest.mark.skip" and a bare "skip" imported via `from pytest import
// mark` both normalize to "skip".
func canonicalMarkerName(dotted string) string {
	if known, ok := knownMarkerNames[dotted]; ok {
		return known
	}

	trimmed := strings.TrimPrefix(dotted, "pytest.mark.")
	trimmed = strings.TrimPrefix(trimmed, "mark.")

	if known, ok := knownMarkerNames[trimmed]; ok {
		return known
	}

	return trimmed
}

// ToMarkers converts decorator lines (excluding @fixture, which
// discover.go's buildFixture handles separately) into fastest.Marker values attached to
// a TestItem, preserving declaration order (spec.md §4.2: stacked markers
// apply outer-to-inner, outermost varies slowest for parametrize).
func ToMarkers(lines []decoratorLine) []fastest.Marker {
	markers := make([]fastest.Marker, 0, len(lines))

	for _, dl := range lines {
		canon := canonicalMarkerName(dl.name)
		if canon == "fixture" {
			continue
		}

		m := fastest.Marker{Name: canon}

		for _, argToks := range splitTopLevelArgs(dl.args) {
			if kw, val, ok := splitKeywordArg(argToks); ok {
				v, _, err := ParseLiteral(val)
				if err != nil {
					v = fastest.RawValue(tokensText(val))
				}

				if m.NamedArgs == nil {
					m.NamedArgs = map[string]fastest.Value{}
				}

				m.NamedArgs[kw] = v

				continue
			}

			v, _, err := ParseLiteral(argToks)
			if err != nil {
				v = fastest.RawValue(tokensText(argToks))
			}

			m.PositionalArgs = append(m.PositionalArgs, v)
		}

		markers = append(markers, m)
	}

	return markers
}

func tokensText(toks []tok.Token) string {
	var b strings.Builder
	for i, t := range toks {
		if i > 0 {
			b.WriteByte(' ')
		}

		b.WriteString(t.Value)
	}

	return b.String()
}
