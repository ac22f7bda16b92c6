package harness

// TraceEvent records what one window did.
type TraceEvent struct {
	// Seq is the 1-based window position in the scenario.
	Seq int64 `json:"seq"`

	// Rows is the number of rows delivered.
	Rows int `json:"rows"`

	// Stage is the stage that ran: "coldstart", "warm", or empty when the
	// engine could not run a stage.
	Stage string `json:"stage,omitempty"`

	// State is the lifecycle state after the window.
	State string `json:"state"`

	// Delta holds the appended facts as N-Triples lines, in order.
	Delta []string `json:"delta,omitempty"`

	// Error is the error kind, if the window failed.
	Error string `json:"error,omitempty"`
}

// FinalState is the engine and store after the last window.
type FinalState struct {
	State     string   `json:"state"`
	Snapshot  int      `json:"snapshot"`
	StoreSize int      `json:"store_size"`
	Deltas    int      `json:"deltas"`
	Facts     []string `json:"facts,omitempty"`

	// SetupError is the error kind of a failed schema or rule load.
	SetupError string `json:"setup_error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains one event per window, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`

	// Final is the state after the last window.
	Final FinalState `json:"final"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
