package parser

import (
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/shibukawa/fastest"
)

func paramMarker(names string, values fastest.Value, named map[string]fastest.Value) fastest.Marker {
	return fastest.Marker{
		Name:           "parametrize",
		PositionalArgs: []fastest.Value{fastest.StringValue(names, names), values},
		NamedArgs:      named,
	}
}

func TestExpandParametrize_SingleArgName(t *testing.T) {
	item := fastest.TestItem{ID: "t.py::test_x", Markers: []fastest.Marker{
		paramMarker("x", fastest.ListValue("", fastest.IntValue("1", 1), fastest.IntValue("2", 2)), nil),
	}}

	items, indirect, err := ExpandParametrize(item)
	assert.NoError(t, err)
	assert.Equal(t, 0, len(indirect))
	assert.Equal(t, 2, len(items))
	assert.Equal(t, "t.py::test_x[1]", items[0].ID)
	assert.Equal(t, "t.py::test_x[2]", items[1].ID)
}

func TestExpandParametrize_ExplicitIDsOverrideCanonical(t *testing.T) {
	item := fastest.TestItem{ID: "t.py::test_x", Markers: []fastest.Marker{
		paramMarker("x",
			fastest.ListValue("", fastest.IntValue("1", 1), fastest.IntValue("2", 2)),
			map[string]fastest.Value{"ids": fastest.ListValue("", fastest.StringValue("a", "a"), fastest.StringValue("b", "b"))},
		),
	}}

	items, _, err := ExpandParametrize(item)
	assert.NoError(t, err)
	assert.Equal(t, "t.py::test_x[a]", items[0].ID)
	assert.Equal(t, "t.py::test_x[b]", items[1].ID)
}

func TestExpandParametrize_IndirectNamesReturned(t *testing.T) {
	item := fastest.TestItem{ID: "t.py::test_x", Markers: []fastest.Marker{
		paramMarker("db",
			fastest.ListValue("", fastest.StringValue("sqlite", "sqlite")),
			map[string]fastest.Value{"indirect": fastest.BoolValue("True", true)},
		),
	}}

	_, indirect, err := ExpandParametrize(item)
	assert.NoError(t, err)
	assert.Equal(t, []string{"db"}, indirect)
}

func TestExpandParametrize_StackedMarkersOuterVariesSlowest(t *testing.T) {
	item := fastest.TestItem{ID: "t.py::test_x", Markers: []fastest.Marker{
		paramMarker("x", fastest.ListValue("", fastest.IntValue("1", 1), fastest.IntValue("2", 2)), nil),
		paramMarker("y", fastest.ListValue("", fastest.IntValue("10", 10), fastest.IntValue("20", 20)), nil),
	}}

	items, _, err := ExpandParametrize(item)
	assert.NoError(t, err)
	assert.Equal(t, 4, len(items))

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}

	assert.Equal(t, []string{
		"t.py::test_x[10-1]",
		"t.py::test_x[20-1]",
		"t.py::test_x[10-2]",
		"t.py::test_x[20-2]",
	}, ids)
}

func TestExpandParametrize_NonLiteralFallsBackToArgname(t *testing.T) {
	config1 := fastest.DictValue("", map[string]fastest.Value{
		"name": fastest.StringValue("test1", "test1"),
	})
	config2 := fastest.DictValue("", map[string]fastest.Value{
		"name": fastest.StringValue("test2", "test2"),
	})

	item := fastest.TestItem{ID: "t.py::test_dict_param", Markers: []fastest.Marker{
		paramMarker("config", fastest.ListValue("", config1, config2), nil),
	}}

	items, _, err := ExpandParametrize(item)
	assert.NoError(t, err)
	assert.Equal(t, "t.py::test_dict_param[config0]", items[0].ID)
	assert.Equal(t, "t.py::test_dict_param[config1]", items[1].ID)
}

func TestExpandParametrize_ArityMismatchErrors(t *testing.T) {
	item := fastest.TestItem{ID: "t.py::test_x", Markers: []fastest.Marker{
		paramMarker("x,y", fastest.ListValue("", fastest.IntValue("1", 1)), nil),
	}}

	_, _, err := ExpandParametrize(item)
	assert.Error(t, err)
}
