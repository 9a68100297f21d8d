package core

// -----------------------------------------------------------------------------
// Input / Output
// -----------------------------------------------------------------------------

// Input is the key/value payload a task or action receives.
type Input map[string]any

// Output is the key/value payload a step or action produces.
type Output map[string]any

func (i Input) Prop(key string) any {
	if i == nil {
		return nil
	}
	return i[key]
}

func (o Output) Prop(key string) any {
	if o == nil {
		return nil
	}
	return o[key]
}

// AsMap returns the output as a plain map, never nil.
func (o Output) AsMap() map[string]any {
	if o == nil {
		return map[string]any{}
	}
	return o
}

// -----------------------------------------------------------------------------
// Execution Status
// -----------------------------------------------------------------------------

type StatusType string

const (
	StatusRunning   StatusType = "RUNNING"
	StatusCompleted StatusType = "COMPLETED"
	StatusFailed    StatusType = "FAILED"
)

func (s StatusType) String() string {
	return string(s)
}

func (s StatusType) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}
