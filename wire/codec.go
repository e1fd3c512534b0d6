package wire

import (
	"fmt"
	"time"

	"github.com/shibukawa/fastest"
)

// Item is the wire encoding of a fastest.TestItem plus its resolved
// fixture plan, field names normative per spec.md §6.
type Item struct {
	ID          string               `msgpack:"id"`
	Path        string               `msgpack:"path"`
	Module      string               `msgpack:"module"`
	Class       string               `msgpack:"class,omitempty"`
	Func        string               `msgpack:"func"`
	IsAsync     bool                 `msgpack:"is_async"`
	Params      map[string]wireValue `msgpack:"params,omitempty"`
	Markers     []Marker             `msgpack:"markers"`
	FixturePlan []FixturePlanEntry   `msgpack:"fixture_plan"`
}

// Marker is the wire encoding of a fastest.Marker.
type Marker struct {
	Name   string               `msgpack:"name"`
	Args   []wireValue          `msgpack:"args"`
	Kwargs map[string]wireValue `msgpack:"kwargs"`
}

// FixturePlanEntry is the wire encoding of one fastest.PlanEntry.
type FixturePlanEntry struct {
	Name    string     `msgpack:"name"`
	Scope   string     `msgpack:"scope"`
	Autouse bool       `msgpack:"autouse"`
	Params  *wireValue `msgpack:"params,omitempty"`
}

// Result is the wire encoding of a fastest.TestResult.
type Result struct {
	ID           string  `msgpack:"id"`
	Outcome      string  `msgpack:"outcome"`
	Duration     float64 `msgpack:"duration"`
	Stdout       string  `msgpack:"stdout"`
	Stderr       string  `msgpack:"stderr"`
	ErrorType    string  `msgpack:"error_type,omitempty"`
	ErrorMessage string  `msgpack:"error_message,omitempty"`
	Traceback    string  `msgpack:"traceback,omitempty"`
}

// EncodeItem renders item and its resolved plan into wire form.
func EncodeItem(item *fastest.TestItem, plan fastest.FixturePlan) Item {
	w := Item{
		ID:      item.ID,
		Path:    item.Path,
		Module:  item.ModuleQualifier,
		Class:   item.ClassName,
		Func:    item.FunctionName,
		IsAsync: item.IsAsync,
	}

	if len(item.Parameters) > 0 {
		w.Params = make(map[string]wireValue, len(item.Parameters))
		for _, p := range item.Parameters {
			w.Params[p.Name] = toWireValue(p.Value)
		}
	}

	for _, m := range item.Markers {
		wm := Marker{Name: m.Name}

		for _, a := range m.PositionalArgs {
			wm.Args = append(wm.Args, toWireValue(a))
		}

		if m.NamedArgs != nil {
			wm.Kwargs = make(map[string]wireValue, len(m.NamedArgs))
			for k, v := range m.NamedArgs {
				wm.Kwargs[k] = toWireValue(v)
			}
		}

		w.Markers = append(w.Markers, wm)
	}

	for _, e := range plan.Setup {
		fe := FixturePlanEntry{Name: e.Name, Scope: e.Scope.String(), Autouse: e.Autouse}

		if e.IndirectParam != nil {
			wv := toWireValue(*e.IndirectParam)
			fe.Params = &wv
		}

		w.FixturePlan = append(w.FixturePlan, fe)
	}

	return w
}

// DecodeItem reconstructs a TestItem and its FixturePlan from wire form.
// The reconstructed item carries only the fields a worker needs to execute
// it. Each PlanEntry's Key is recomputed from the reconstructed item's
// ID, Path and ClassName.
func DecodeItem(w Item) (*fastest.TestItem, fastest.FixturePlan, error) {
	item := &fastest.TestItem{
		ID:              w.ID,
		Path:            w.Path,
		ModuleQualifier: w.Module,
		ClassName:       w.Class,
		FunctionName:    w.Func,
		IsAsync:         w.IsAsync,
	}

	for name, wv := range w.Params {
		v, err := fromWireValue(wv)
		if err != nil {
			return nil, fastest.FixturePlan{}, fmt.Errorf("wire: decode item %s param %s: %w", w.ID, name, err)
		}

		item.Parameters = append(item.Parameters, fastest.Param{Name: name, Value: v})
	}

	for _, wm := range w.Markers {
		m := fastest.Marker{Name: wm.Name}

		for _, wa := range wm.Args {
			a, err := fromWireValue(wa)
			if err != nil {
				return nil, fastest.FixturePlan{}, fmt.Errorf("wire: decode item %s marker %s: %w", w.ID, wm.Name, err)
			}

			m.PositionalArgs = append(m.PositionalArgs, a)
		}

		if wm.Kwargs != nil {
			m.NamedArgs = make(map[string]fastest.Value, len(wm.Kwargs))

			for k, wv := range wm.Kwargs {
				v, err := fromWireValue(wv)
				if err != nil {
					return nil, fastest.FixturePlan{}, fmt.Errorf("wire: decode item %s marker %s kwarg %s: %w", w.ID, wm.Name, k, err)
				}

				m.NamedArgs[k] = v
			}
		}

		item.Markers = append(item.Markers, m)
	}

	var plan fastest.FixturePlan

	for _, fe := range w.FixturePlan {
		scope, ok := fastest.ParseScope(fe.Scope)
		if !ok {
			return nil, fastest.FixturePlan{}, fmt.Errorf("wire: decode item %s fixture plan: unknown scope %q", w.ID, fe.Scope)
		}

		entry := fastest.PlanEntry{Name: fe.Name, Scope: scope, Autouse: fe.Autouse, Key: fastest.ScopeKeyFor(scope, fe.Name, item)}

		if fe.Params != nil {
			v, err := fromWireValue(*fe.Params)
			if err != nil {
				return nil, fastest.FixturePlan{}, fmt.Errorf("wire: decode item %s fixture %s indirect param: %w", w.ID, fe.Name, err)
			}

			entry.IndirectParam = &v
		}

		item.FixtureDeps = append(item.FixtureDeps, fe.Name)
		plan.Setup = append(plan.Setup, entry)
	}

	return item, plan, nil
}

// EncodeResult renders a fastest.TestResult into wire form.
func EncodeResult(r fastest.TestResult) Result {
	return Result{
		ID:           r.ID,
		Outcome:      string(r.Outcome),
		Duration:     r.Duration.Seconds(),
		Stdout:       r.CapturedStdout,
		Stderr:       r.CapturedStderr,
		ErrorType:    r.ErrorType,
		ErrorMessage: r.ErrorMessage,
		Traceback:    r.Traceback,
	}
}

// DecodeResult reconstructs a fastest.TestResult from wire form.
func DecodeResult(w Result) fastest.TestResult {
	return fastest.TestResult{
		ID:             w.ID,
		Outcome:        fastest.Outcome(w.Outcome),
		Duration:       time.Duration(w.Duration * float64(time.Second)),
		CapturedStdout: w.Stdout,
		CapturedStderr: w.Stderr,
		ErrorType:      w.ErrorType,
		ErrorMessage:   w.ErrorMessage,
		Traceback:      w.Traceback,
	}
}
