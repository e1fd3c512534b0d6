package parser

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/shibukawa/fastest"
	"github.com/shibukawa/fastest/parser/discoverycache"
	tok "github.com/shibukawa/fastest/tokenizer"
)

// frame tracks one open class/def block while walking the indentation
// structure of a token stream.
type frame struct {
	bodyDepth     int
	kind          string // "class" or "def"
	name          string
	isNestedClass bool
	// testCaseSkipReason is non-empty when this class extends
	// unittest.TestCase: its methods are still discovered (spec.md §4.1)
	// but carry a synthetic skip marker, since this runner never executes
	// unittest-style setUp/tearDown lifecycles.
	testCaseSkipReason string
}

// FileResult holds everything ParseFile discovered in one source file.
type FileResult struct {
	Items       []fastest.TestItem
	Fixtures    []fastest.Fixture
	Diagnostics []*fastest.DiscoveryDiagnostic
}

// ParseFile statically discovers test items and fixtures in one Python
// source file without executing it (spec.md §4.1). moduleQualifier is the
// dotted module path the caller has already derived from the file's
// location (e.g. "tests.sub.test_mod").
func ParseFile(path, moduleQualifier, src string) FileResult {
	var res FileResult

	tokens, err := tok.NewPyTokenizer(src).AllTokens()
	if err != nil {
		res.Diagnostics = append(res.Diagnostics, &fastest.DiscoveryDiagnostic{Path: path, Err: err})

		return res
	}

	d := &discoverer{path: path, moduleQualifier: moduleQualifier, result: &res}
	d.run(tokens)

	return res
}

type discoverer struct {
	path            string
	moduleQualifier string
	result          *FileResult

	stack       []frame
	pendingDeco [][]tok.Token
	awaiting    *frame
	depth       int
}

func (d *discoverer) run(tokens []tok.Token) {
	var curLine []tok.Token

	for _, t := range tokens {
		switch t.Type {
		case tok.INDENT:
			d.depth++

			if d.awaiting != nil {
				f := *d.awaiting
				f.bodyDepth = d.depth
				d.stack = append(d.stack, f)
				d.awaiting = nil
			}
		case tok.DEDENT:
			d.depth--

			for len(d.stack) > 0 && d.stack[len(d.stack)-1].bodyDepth > d.depth {
				d.stack = d.stack[:len(d.stack)-1]
			}
		case tok.NEWLINE, tok.EOF:
			if len(curLine) > 0 {
				d.handleLine(curLine)
			}

			curLine = nil
		default:
			curLine = append(curLine, t)
		}
	}
}

func (d *discoverer) handleLine(line []tok.Token) {
	if line[0].Type == tok.AT {
		d.pendingDeco = append(d.pendingDeco, line)

		return
	}

	kwIdx := 0
	isAsync := false

	if line[0].Type == tok.KEYWORD && line[0].Value == "async" {
		isAsync = true
		kwIdx = 1
	}

	if len(line) <= kwIdx+1 {
		d.pendingDeco = nil

		return
	}

	switch {
	case line[kwIdx].Type == tok.KEYWORD && line[kwIdx].Value == "def":
		d.handleDef(line, kwIdx, isAsync)
	case line[kwIdx].Type == tok.KEYWORD && line[kwIdx].Value == "class":
		d.handleClass(line, kwIdx)
	default:
		d.pendingDeco = nil
	}
}

func (d *discoverer) handleDef(line []tok.Token, kwIdx int, isAsync bool) {
	name := line[kwIdx+1].Value
	lineNo := line[kwIdx+1].Position.Line

	decoLines := splitDecorators(d.pendingDeco)
	d.pendingDeco = nil

	isFixture := false

	for _, dl := range decoLines {
		if canonicalMarkerName(dl.name) == "fixture" {
			isFixture = true

			break
		}
	}

	var className string
	var testCaseSkip string
	skip := false

	switch {
	case len(d.stack) == 0:
		// Module-level function.
	case len(d.stack) == 1 && d.stack[0].kind == "class" && !d.stack[0].isNestedClass:
		className = d.stack[0].name
		testCaseSkip = d.stack[0].testCaseSkipReason
	default:
		// A function nested inside another function, or a method of a
		// nested class: not discoverable (spec.md §4.1 nested-class
		// exclusion).
		skip = true
	}

	params := parseParamNames(line, kwIdx)

	if isFixture {
		if !skip {
			fx := buildFixture(d.path, name, decoLines, isAsync)
			fx.Deps = params
			d.result.Fixtures = append(d.result.Fixtures, fx)
		}
	} else if !skip && isTestFunctionName(name, className != "") && (className == "" || isTestClassName(className)) {
		item := d.buildTestItem(name, className, lineNo, isAsync, decoLines, testCaseSkip)
		item.FixtureDeps = mergeUnique(item.FixtureDeps, params)

		expanded, indirect, err := ExpandParametrize(item)
		if err != nil {
			d.result.Diagnostics = append(d.result.Diagnostics, &fastest.DiscoveryDiagnostic{Path: d.path, Err: err})
		} else {
			for i := range expanded {
				direct := map[string]bool{}
				for _, p := range expanded[i].Parameters {
					direct[p.Name] = true
				}

				var deps []string
				for _, dep := range expanded[i].FixtureDeps {
					if !direct[dep] {
						deps = append(deps, dep)
					}
				}

				expanded[i].FixtureDeps = mergeUnique(deps, indirect)
			}

			d.result.Items = append(d.result.Items, expanded...)
		}
	}

	d.awaiting = &frame{kind: "def", name: name}
}

func (d *discoverer) handleClass(line []tok.Token, kwIdx int) {
	name := line[kwIdx+1].Value

	testCaseSkip := ""

	for _, t := range line {
		if t.Type == tok.IDENTIFIER && t.Value == "TestCase" {
			testCaseSkip = "class inherits unittest.TestCase; setUp/tearDown lifecycle is not executed"
		}
	}

	d.pendingDeco = nil
	d.awaiting = &frame{
		kind:               "class",
		name:               name,
		isNestedClass:      len(d.stack) > 0,
		testCaseSkipReason: testCaseSkip,
	}
}

func (d *discoverer) buildTestItem(name, className string, line int, isAsync bool, decoLines []decoratorLine, testCaseSkip string) fastest.TestItem {
	id := d.path + "::"
	if className != "" {
		id += className + "::"
	}

	id += name

	item := fastest.TestItem{
		ID:              id,
		Path:            d.path,
		Line:            line,
		ModuleQualifier: d.moduleQualifier,
		ClassName:       className,
		FunctionName:    name,
		IsAsync:         isAsync,
		Markers:         ToMarkers(decoLines),
	}

	if testCaseSkip != "" {
		item.Markers = append(item.Markers, fastest.Marker{
			Name:           "skip",
			PositionalArgs: []fastest.Value{fastest.StringValue(testCaseSkip, testCaseSkip)},
		})
	}

	for _, m := range item.Markers {
		if m.Name == "usefixtures" {
			for _, v := range m.PositionalArgs {
				if v.Kind == fastest.KindString {
					item.FixtureDeps = append(item.FixtureDeps, v.Str)
				}
			}
		}
	}

	return item
}

func buildFixture(filePath, name string, decoLines []decoratorLine, isAsync bool) fastest.Fixture {
	fx := fastest.Fixture{Name: name, Path: filePath, Scope: fastest.ScopeFunction, IsAsync: isAsync}

	for _, dl := range decoLines {
		if canonicalMarkerName(dl.name) != "fixture" {
			continue
		}

		for _, argToks := range splitTopLevelArgs(dl.args) {
			if kw, val, ok := splitKeywordArg(argToks); ok {
				v, _, _ := ParseLiteral(val)

				switch kw {
				case "scope":
					if s, ok := fastest.ParseScope(v.Str); ok {
						fx.Scope = s
					}
				case "autouse":
					fx.Autouse = v.Bool
				case "params":
					if v.Kind == fastest.KindList || v.Kind == fastest.KindTuple {
						fx.Params = v.Elements
					}
				case "ids":
					if v.Kind == fastest.KindList || v.Kind == fastest.KindTuple {
						for _, el := range v.Elements {
							fx.IDs = append(fx.IDs, el.CanonicalID(len(fx.IDs)))
						}
					}
				}

				continue
			}
		}
	}

	return fx
}

// parseParamNames extracts a def's parameter names from its signature,
// excluding "self"/"cls" (bound-method receivers are never fixture
// requests) and stripping default values/annotations, since fixture
// dependencies and test FixtureDeps (spec.md §3) are driven purely by
// parameter name.
func parseParamNames(line []tok.Token, kwIdx int) []string {
	// line[kwIdx+1] is the def/fixture name; the next LPAREN opens the
	// parameter list.
	i := kwIdx + 2
	if i >= len(line) || line[i].Type != tok.LPAREN {
		return nil
	}

	i++

	var names []string
	depth := 1
	expectName := true

	for i < len(line) && depth > 0 {
		t := line[i]

		switch t.Type {
		case tok.LPAREN, tok.LBRACKET, tok.LBRACE:
			depth++
		case tok.RPAREN, tok.RBRACKET, tok.RBRACE:
			depth--
		case tok.COMMA:
			if depth == 1 {
				expectName = true
			}
		case tok.IDENTIFIER:
			if depth == 1 && expectName {
				if t.Value != "self" && t.Value != "cls" {
					names = append(names, t.Value)
				}

				expectName = false
			}
		}

		i++
	}

	return names
}

// isTestFunctionName applies spec.md §4.1's two different rules: a
// top-level function must begin with `test_` (underscore required), but a
// class method only needs to begin with `test` (pytest itself accepts
// `testFoo` as a method name, just not as a module-level function).
func isTestFunctionName(name string, inClass bool) bool {
	if inClass {
		return strings.HasPrefix(name, "test")
	}

	return strings.HasPrefix(name, "test_")
}

func isTestClassName(name string) bool { return strings.HasPrefix(name, "Test") }

func mergeUnique(existing, add []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, e := range existing {
		seen[e] = true
	}

	for _, a := range add {
		if !seen[a] {
			existing = append(existing, a)
			seen[a] = true
		}
	}

	return existing
}

// DiscoverResult aggregates ParseFile results across a directory tree,
// plus the conftest.py ancestry of each test file (spec.md §4.1: fixtures
// defined in a conftest.py are visible to every test file at or below its
// directory, with nearer conftest.py files taking precedence).
type DiscoverResult struct {
	Items       []fastest.TestItem
	Fixtures    []fastest.Fixture
	Conftests   map[string][]string // test file path -> ordered conftest.py paths, nearest first
	Diagnostics []*fastest.DiscoveryDiagnostic
}

// testFilePatterns mirrors pytest's default python_files setting.
var testFilePatterns = []string{"**/test_*.py", "**/*_test.py"}

// DiscoverDir walks root collecting test files and conftest.py files,
// parsing each into TestItems/Fixtures. It never executes Python; parse
// failures become diagnostics and discovery continues (spec.md §4.1).
func DiscoverDir(root string) (DiscoverResult, error) {
	return discoverDir(root, ParseFile)
}

// DiscoverDirCached behaves as DiscoverDir but consults cache before
// parsing each file, keyed on (path, mtime, size, content) — spec.md
// §4.1's "Optional caching". A cache miss parses and stores; a cache hit
// skips tokenizing/parsing entirely.
func DiscoverDirCached(root string, cache *discoverycache.Cache) (DiscoverResult, error) {
	return discoverDir(root, cachedParseFile(cache))
}

func discoverDir(root string, parse func(path, moduleQualifier, src string) FileResult) (DiscoverResult, error) {
	var res DiscoverResult
	res.Conftests = map[string][]string{}

	fsys := os.DirFS(root)

	var testFiles []string
	seen := map[string]bool{}

	for _, pattern := range testFilePatterns {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil {
			return res, fmt.Errorf("glob %q: %w", pattern, err)
		}

		for _, m := range matches {
			if !seen[m] {
				seen[m] = true

				testFiles = append(testFiles, m)
			}
		}
	}

	conftestCache := map[string][]string{}

	for _, rel := range testFiles {
		abs := filepath.Join(root, rel)

		src, err := os.ReadFile(abs)
		if err != nil {
			res.Diagnostics = append(res.Diagnostics, &fastest.DiscoveryDiagnostic{Path: abs, Err: err})

			continue
		}

		mod := moduleQualifierFor(rel)

		fr := parse(abs, mod, string(src))
		res.Items = append(res.Items, fr.Items...)
		res.Fixtures = append(res.Fixtures, fr.Fixtures...)
		res.Diagnostics = append(res.Diagnostics, fr.Diagnostics...)

		conftests := ancestorConftests(root, filepath.Dir(rel), conftestCache)
		res.Conftests[abs] = conftests

		for _, cf := range conftests {
			if seen[cf] {
				continue
			}

			seen[cf] = true

			csrc, err := os.ReadFile(filepath.Join(root, cf))
			if err != nil {
				res.Diagnostics = append(res.Diagnostics, &fastest.DiscoveryDiagnostic{Path: cf, Err: err})

				continue
			}

			cfr := parse(filepath.Join(root, cf), moduleQualifierFor(cf), string(csrc))
			res.Fixtures = append(res.Fixtures, cfr.Fixtures...)
			res.Diagnostics = append(res.Diagnostics, cfr.Diagnostics...)
		}
	}

	return res, nil
}

// ancestorConftests returns the conftest.py files visible to a test file
// living in dir (relative to root), nearest directory first.
func ancestorConftests(root, dir string, cache map[string][]string) []string {
	if cached, ok := cache[dir]; ok {
		return cached
	}

	var out []string

	for d := dir; ; {
		candidate := path.Join(d, "conftest.py")
		if d == "." {
			candidate = "conftest.py"
		}

		if info, err := os.Stat(filepath.Join(root, candidate)); err == nil && !info.IsDir() {
			out = append(out, candidate)
		}

		if d == "." || d == "/" || d == "" {
			break
		}

		parent := path.Dir(d)
		if parent == d {
			break
		}

		d = parent
	}

	cache[dir] = out

	return out
}

func moduleQualifierFor(rel string) string {
	rel = strings.TrimSuffix(filepath.ToSlash(rel), ".py")

	return strings.ReplaceAll(rel, "/", ".")
}
