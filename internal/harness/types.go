package harness

import (
	"github.com/roach88/omnistate/internal/ir"
)

// TraceEvent records one executed step.
type TraceEvent struct {
	Seq        int64       `json:"seq"`
	Op         string      `json:"op"`
	Collection string      `json:"collection,omitempty"`
	Path       string      `json:"path,omitempty"`
	Args       ir.IRObject `json:"args,omitempty"`
	Result     ir.IRValue  `json:"result,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// IR renders the event for golden comparison. Empty fields are omitted.
func (e TraceEvent) IR() ir.IRObject {
	out := ir.IRObject{
		"seq": ir.IRInt(e.Seq),
		"op":  ir.IRString(e.Op),
	}
	if e.Collection != "" {
		out["collection"] = ir.IRString(e.Collection)
	}
	if e.Path != "" {
		out["path"] = ir.IRString(e.Path)
	}
	if len(e.Args) > 0 {
		out["args"] = e.Args
	}
	if e.Result != nil {
		out["result"] = e.Result
	}
	if e.Error != "" {
		out["error"] = ir.IRString(e.Error)
	}
	return out
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every executed step in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final snapshot of the state tree.
	State ir.IRObject `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a trace event.
func (r *Result) AddTrace(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}
