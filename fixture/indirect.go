package fixture

import "github.com/shibukawa/fastest"

// IndirectValues builds the indirect-parametrize value map Plan expects:
// every parameter value whose name also appears among the item's
// FixtureDeps was routed to a fixture via request.param rather than bound
// directly to the test function (spec.md §4.2 "indirect parametrization").
func IndirectValues(item *fastest.TestItem) map[string]fastest.Value {
	if len(item.Parameters) == 0 {
		return nil
	}

	depNames := make(map[string]bool, len(item.FixtureDeps))
	for _, name := range item.FixtureDeps {
		depNames[name] = true
	}

	var values map[string]fastest.Value

	for _, p := range item.Parameters {
		if !depNames[p.Name] {
			continue
		}

		if values == nil {
			values = map[string]fastest.Value{}
		}

		values[p.Name] = p.Value
	}

	return values
}
