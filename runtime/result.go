package runtime

// State is the lifecycle position of one invocation.
type State int

const (
	StateInstantiating State = iota
	StateRunning
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInstantiating:
		return "instantiating"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of one invocation. Logs holds every line the guest
// produced, including those before a failure.
type Result struct {
	Success bool     `json:"success"`
	Value   *int32   `json:"result,omitempty"`
	Error   string   `json:"error,omitempty"`
	Logs    []string `json:"logs"`

	ID    string `json:"-"`
	State State  `json:"-"`
	Err   error  `json:"-"`
}

func completed(id string, code int32, logs []string) *Result {
	return &Result{Success: true, Value: &code, Logs: nonNil(logs), ID: id, State: StateCompleted}
}

func failed(id string, err error, logs []string) *Result {
	return &Result{Error: err.Error(), Logs: nonNil(logs), ID: id, State: StateFailed, Err: err}
}

func nonNil(logs []string) []string {
	if logs == nil {
		return []string{}
	}
	return logs
}
