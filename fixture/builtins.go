package fixture

import "github.com/shibukawa/fastest"

// builtins are the fixed fixtures every worker provides without source
// discovery (spec.md §4.3). Their bodies live in the language worker, not
// here — the host only needs their name/scope/dependency shape to plan
// around them.
var builtins = []fastest.Fixture{
	{Name: "tmp_path", Scope: fastest.ScopeFunction, Builtin: true},
	{Name: "tmp_path_factory", Scope: fastest.ScopeSession, Builtin: true},
	{Name: "capsys", Scope: fastest.ScopeFunction, Builtin: true},
	{Name: "monkeypatch", Scope: fastest.ScopeFunction, Builtin: true},
	{Name: "request", Scope: fastest.ScopeFunction, Builtin: true},
}
