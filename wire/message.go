package wire

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/shibukawa/fastest"
)

// Message kinds, normative per spec.md §4.4/§6.
const (
	KindExec     = "exec"
	KindShutdown = "shutdown"
	KindResult   = "result"
	KindFatal    = "fatal"
	KindReady    = "ready"
	// KindTeardown is a fire-and-forget host->worker notification (not
	// in spec.md's normative request list, added per SPEC_FULL.md to
	// carry out §4.5's scope-teardown-tracking requirement): the
	// scheduler has observed the last unit referencing a module/
	// session-scoped fixture complete, and the worker should finalize
	// that fixture's teardown now rather than waiting for shutdown.
	KindTeardown = "teardown"
)

// Unit is the wire encoding of a fastest.WorkUnit.
type Unit struct {
	RunID string `msgpack:"run_id,omitempty"`
	Items []Item `msgpack:"items"`
}

// Request is a host->worker frame payload.
type Request struct {
	Kind      string   `msgpack:"kind"`
	ReqID     uint64   `msgpack:"req_id,omitempty"`
	Unit      *Unit    `msgpack:"unit,omitempty"`
	ScopeKeys []string `msgpack:"scope_keys,omitempty"`
}

// Response is a worker->host frame payload.
type Response struct {
	Kind    string   `msgpack:"kind"`
	ReqID   uint64   `msgpack:"req_id,omitempty"`
	Results []Result `msgpack:"results,omitempty"`
	Error   string   `msgpack:"error,omitempty"`
}

// EncodeUnit renders a WorkUnit into wire form, pairing each item with its
// resolved fixture plan from plans (keyed by TestItem.ID).
func EncodeUnit(unit *fastest.WorkUnit) Unit {
	w := Unit{RunID: unit.RunID}

	for _, item := range unit.Items {
		w.Items = append(w.Items, EncodeItem(item, unit.Plans[item.ID]))
	}

	return w
}

// NewExecRequest builds the "exec" request for unit, ready to marshal.
func NewExecRequest(reqID uint64, unit *fastest.WorkUnit) Request {
	u := EncodeUnit(unit)

	return Request{Kind: KindExec, ReqID: reqID, Unit: &u}
}

// NewShutdownRequest builds the "shutdown" request.
func NewShutdownRequest() Request {
	return Request{Kind: KindShutdown}
}

// NewTeardownRequest builds a "teardown" notification for the given
// scope keys (fastest.ScopeKey.Key() strings).
func NewTeardownRequest(keys []string) Request {
	return Request{Kind: KindTeardown, ScopeKeys: keys}
}

// NewResultResponse builds a "result" response carrying one encoded
// TestResult per item, in dispatch order.
func NewResultResponse(reqID uint64, results []fastest.TestResult) Response {
	resp := Response{Kind: KindResult, ReqID: reqID}

	for _, r := range results {
		resp.Results = append(resp.Results, EncodeResult(r))
	}

	return resp
}

// NewFatalResponse builds a "fatal" response: the worker cannot proceed
// and must be retired by the host.
func NewFatalResponse(reqID uint64, err error) Response {
	return Response{Kind: KindFatal, ReqID: reqID, Error: err.Error()}
}

// MarshalRequest encodes req as a msgpack payload.
func MarshalRequest(req Request) ([]byte, error) {
	b, err := msgpack.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal request: %w", err)
	}

	return b, nil
}

// UnmarshalRequest decodes a msgpack payload into a Request.
func UnmarshalRequest(payload []byte) (Request, error) {
	var req Request
	if err := msgpack.Unmarshal(payload, &req); err != nil {
		return Request{}, fmt.Errorf("wire: unmarshal request: %w", err)
	}

	return req, nil
}

// MarshalResponse encodes resp as a msgpack payload.
func MarshalResponse(resp Response) ([]byte, error) {
	b, err := msgpack.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("wire: marshal response: %w", err)
	}

	return b, nil
}

// UnmarshalResponse decodes a msgpack payload into a Response.
func UnmarshalResponse(payload []byte) (Response, error) {
	var resp Response
	if err := msgpack.Unmarshal(payload, &resp); err != nil {
		return Response{}, fmt.Errorf("wire: unmarshal response: %w", err)
	}

	return resp, nil
}
