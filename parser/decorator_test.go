package parser

import (
	"testing"

	"github.com/alecthomas/assert/v2"

	tok "github.com/shibukawa/fastest/tokenizer"
)

func lineTokens(t *testing.T, src string) []tok.Token {
	t.Helper()

	toks, err := tok.NewPyTokenizer(src).AllTokens()
	assert.NoError(t, err)

	// Drop the trailing EOF/NEWLINE for single-line decorator fixtures.
	var out []tok.Token
	for _, tt := range toks {
		if tt.Type == tok.EOF || tt.Type == tok.NEWLINE {
			continue
		}

		out = append(out, tt)
	}

	return out
}

func TestSplitDecorators_BareMarker(t *testing.T) {
	lines := splitDecorators([][]tok.Token{lineTokens(t, "@skip\n")})
	assert.Equal(t, 1, len(lines))
	assert.Equal(t, "skip", lines[0].name)
	assert.Equal(t, 0, len(lines[0].args))
}

func TestSplitDecorators_DottedNameWithArgs(t *testing.T) {
	lines := splitDecorators([][]tok.Token{lineTokens(t, "@pytest.mark.skip(\"why\")\n")})
	assert.Equal(t, 1, len(lines))
	assert.Equal(t, "pytest.mark.skip", lines[0].name)
	assert.Equal(t, 1, len(splitTopLevelArgs(lines[0].args)))
}

func TestSplitDecorators_NestedParensInArgs(t *testing.T) {
	lines := splitDecorators([][]tok.Token{lineTokens(t, "@parametrize(\"x\", [(1, 2), (3, 4)])\n")})
	assert.Equal(t, 1, len(lines))

	args := splitTopLevelArgs(lines[0].args)
	assert.Equal(t, 2, len(args)) // "x" and the list, not split on the inner tuple commas
}

func TestCanonicalMarkerName_Aliasing(t *testing.T) {
	assert.Equal(t, "skip", canonicalMarkerName("pytest.mark.skip"))
	assert.Equal(t, "skip", canonicalMarkerName("skip"))
	assert.Equal(t, "xfail", canonicalMarkerName("mark.xfail"))
	assert.Equal(t, "custom_marker", canonicalMarkerName("pytest.mark.custom_marker"))
}

func TestToMarkers_KeywordArgument(t *testing.T) {
	lines := splitDecorators([][]tok.Token{lineTokens(t, "@fixture(scope=\"session\", autouse=True)\n")})
	markers := ToMarkers(lines)
	assert.Equal(t, 0, len(markers)) // @fixture is not a test marker
}

func TestToMarkers_SkipifCondition(t *testing.T) {
	lines := splitDecorators([][]tok.Token{lineTokens(t, "@skipif(True, reason=\"flaky\")\n")})
	markers := ToMarkers(lines)
	assert.Equal(t, 1, len(markers))
	assert.Equal(t, "skipif", markers[0].Name)
	assert.Equal(t, true, markers[0].PositionalArgs[0].Bool)
	assert.Equal(t, "flaky", markers[0].NamedArgs["reason"].Str)
}
