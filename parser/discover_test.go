package parser

import (
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/shibukawa/fastest"
	"github.com/shibukawa/fastest/testhelper"
)

func TestParseFile_TopLevelFunction(t *testing.T) {
	src := "def test_addition():\n    assert 1 + 1 == 2\n"
	fr := ParseFile("t.py", "t", src)

	assert.Equal(t, 1, len(fr.Items))
	assert.Equal(t, "t.py::test_addition", fr.Items[0].ID)
	assert.Equal(t, "", fr.Items[0].ClassName)
}

func TestParseFile_ClassMethod(t *testing.T) {
	src := "class TestThing:\n    def test_one(self):\n        pass\n    def helper(self):\n        pass\n"
	fr := ParseFile("t.py", "t", src)

	assert.Equal(t, 1, len(fr.Items))
	assert.Equal(t, "TestThing", fr.Items[0].ClassName)
	assert.Equal(t, "test_one", fr.Items[0].FunctionName)
}

func TestParseFile_TopLevelFunctionRequiresUnderscore(t *testing.T) {
	src := "def testing_helper():\n    pass\n"
	fr := ParseFile("t.py", "t", src)

	assert.Equal(t, 0, len(fr.Items))
}

func TestParseFile_ClassMethodAllowsNoUnderscore(t *testing.T) {
	src := "class TestThing:\n    def testSomething(self):\n        pass\n"
	fr := ParseFile("t.py", "t", src)

	assert.Equal(t, 1, len(fr.Items))
	assert.Equal(t, "testSomething", fr.Items[0].FunctionName)
}

func TestParseFile_NonTestClassIgnored(t *testing.T) {
	src := "class Helper:\n    def test_one(self):\n        pass\n"
	fr := ParseFile("t.py", "t", src)

	assert.Equal(t, 0, len(fr.Items))
}

func TestParseFile_NestedClassExcluded(t *testing.T) {
	src := "class TestOuter:\n    class TestInner:\n        def test_inner(self):\n            pass\n    def test_outer(self):\n        pass\n"
	fr := ParseFile("t.py", "t", src)

	assert.Equal(t, 1, len(fr.Items))
	assert.Equal(t, "test_outer", fr.Items[0].FunctionName)
}

func TestParseFile_UnittestTestCaseGetsSkipMarker(t *testing.T) {
	src := "class TestLegacy(unittest.TestCase):\n    def test_it(self):\n        pass\n"
	fr := ParseFile("t.py", "t", src)

	assert.Equal(t, 1, len(fr.Items))

	_, ok := fr.Items[0].Marker("skip")
	assert.True(t, ok)
}

func TestParseFile_SkipDecorator(t *testing.T) {
	src := "@skip(\"not ready\")\ndef test_todo():\n    pass\n"
	fr := ParseFile("t.py", "t", src)

	assert.Equal(t, 1, len(fr.Items))

	m, ok := fr.Items[0].Marker("skip")
	assert.True(t, ok)
	assert.Equal(t, 1, len(m.PositionalArgs))
	assert.Equal(t, "not ready", m.PositionalArgs[0].Str)
}

func TestParseFile_ParametrizeExpandsCases(t *testing.T) {
	src := "@parametrize(\"x,y\", [(1, 2), (3, 4)])\ndef test_add(x, y):\n    pass\n"
	fr := ParseFile("t.py", "t", src)

	assert.Equal(t, 2, len(fr.Items))
	assert.Equal(t, "t.py::test_add[1-2]", fr.Items[0].ID)
	assert.Equal(t, "t.py::test_add[3-4]", fr.Items[1].ID)
	assert.Equal(t, 2, len(fr.Items[0].Parameters))
}

func TestParseFile_FixtureDecorator(t *testing.T) {
	src := "@fixture(scope=\"module\")\ndef db(tmp_path):\n    yield tmp_path\n"
	fr := ParseFile("t.py", "t", src)

	assert.Equal(t, 0, len(fr.Items))
	assert.Equal(t, 1, len(fr.Fixtures))
	assert.Equal(t, "db", fr.Fixtures[0].Name)
	assert.Equal(t, fastest.ScopeModule, fr.Fixtures[0].Scope)
	assert.Equal(t, []string{"tmp_path"}, fr.Fixtures[0].Deps)
}

func TestParseFile_AsyncDef(t *testing.T) {
	src := "async def test_coro():\n    pass\n"
	fr := ParseFile("t.py", "t", src)

	assert.Equal(t, 1, len(fr.Items))
	assert.True(t, fr.Items[0].IsAsync)
}

func TestParseFile_ClassWithFixtureAndMultipleMethods(t *testing.T) {
	src := testhelper.TrimIndent(t, `
		@fixture(scope="class")
		def conn():
		    yield 1

		class TestAccount:
		    def test_deposit(self):
		        pass
		    def test_withdraw(self):
		        pass
		    def helper(self):
		        pass
		`)
	fr := ParseFile("t.py", "t", src)

	assert.Equal(t, 1, len(fr.Fixtures))
	assert.Equal(t, 2, len(fr.Items))
	assert.Equal(t, "TestAccount", fr.Items[0].ClassName)
	assert.Equal(t, "test_deposit", fr.Items[0].FunctionName)
	assert.Equal(t, "test_withdraw", fr.Items[1].FunctionName)
}
