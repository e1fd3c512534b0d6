package tokenizer

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func typesOf(t *testing.T, src string) []TokenType {
	t.Helper()

	toks, err := NewPyTokenizer(src).AllTokens()
	assert.NoError(t, err)

	types := make([]TokenType, len(toks))
	for i, tok := range toks {
		types[i] = tok.Type
	}

	return types
}

func TestTokenizer_SimpleFunction(t *testing.T) {
	src := "def test_ok():\n    assert 1 + 1 == 2\n"
	types := typesOf(t, src)

	assert.Equal(t, []TokenType{
		KEYWORD, IDENTIFIER, LPAREN, RPAREN, COLON, NEWLINE,
		INDENT, IDENTIFIER, NUMBER, PLUS, NUMBER, OPERATOR, NUMBER, NEWLINE,
		DEDENT, EOF,
	}, types)
}

func TestTokenizer_MultilineDecoratorSuppressesNewlines(t *testing.T) {
	src := "@parametrize(\n    \"x,y\",\n    [(1, 2)],\n)\ndef test_add(x, y):\n    pass\n"
	types := typesOf(t, src)

	// No NEWLINE/INDENT/DEDENT tokens appear until after the decorator's
	// closing paren.
	depth := 0
	sawClose := false
	for _, typ := range types {
		switch typ {
		case LPAREN:
			depth++
		case RPAREN:
			depth--
			if depth == 0 {
				sawClose = true
			}

			continue
		}

		if !sawClose {
			assert.NotEqual(t, NEWLINE, typ)
			assert.NotEqual(t, INDENT, typ)
			assert.NotEqual(t, DEDENT, typ)
		}
	}
}

func TestTokenizer_DecoratorChain(t *testing.T) {
	src := "class TestThing:\n    @pytest.mark.skip\n    def test_it(self):\n        pass\n"
	toks, err := NewPyTokenizer(src).AllTokens()
	assert.NoError(t, err)

	var ats int
	for _, tok := range toks {
		if tok.Type == AT {
			ats++
		}
	}

	assert.Equal(t, 1, ats)
}

func TestTokenizer_UnicodeIdentifierNormalized(t *testing.T) {
	// "café" spelled with a combining acute accent (NFD) must tokenize to
	// the same identifier text as the precomposed (NFC) spelling.
	nfd := "café" // "e" followed by U+0301 COMBINING ACUTE ACCENT
	toks, err := NewPyTokenizer("def test_" + nfd + "(): pass\n").AllTokens()
	assert.NoError(t, err)
	assert.Equal(t, "test_café", toks[1].Value)
}

func TestTokenizer_UnterminatedStringIsAnError(t *testing.T) {
	_, err := NewPyTokenizer("x = 'unterminated\n").AllTokens()
	assert.Error(t, err)
}

func TestTokenizer_TripleQuotedString(t *testing.T) {
	toks, err := NewPyTokenizer(`x = """a\nb"""` + "\n").AllTokens()
	assert.NoError(t, err)

	var strs []string
	for _, tok := range toks {
		if tok.Type == STRING {
			strs = append(strs, tok.Value)
		}
	}

	assert.Equal(t, []string{`"""a\nb"""`}, strs)
}
