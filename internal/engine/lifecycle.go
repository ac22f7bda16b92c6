package engine

// State is the lifecycle position of an engine instance.
//
//	Uninitialized --LoadSchema--> ColdstartPending --coldstart ok--> Warm
//	      any state --fatal error--> Failed
//
// Failed is terminal: the instance rejects every later window.
type State int

const (
	StateUninitialized State = iota
	StateColdstartPending
	StateWarm
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateColdstartPending:
		return "coldstart_pending"
	case StateWarm:
		return "warm"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Retention selects how much asserted history the working graph keeps.
type Retention int

const (
	// RetainAll keeps every asserted fact for the instance's lifetime.
	RetainAll Retention = iota
	// RetainLatestWindow keeps only the facts of the most recent window.
	RetainLatestWindow
)

func (r Retention) String() string {
	if r == RetainLatestWindow {
		return "latest"
	}
	return "all"
}

// ParseRetention maps "all" and "latest" to a Retention.
func ParseRetention(s string) (Retention, bool) {
	switch s {
	case "", "all":
		return RetainAll, true
	case "latest":
		return RetainLatestWindow, true
	}
	return RetainAll, false
}
