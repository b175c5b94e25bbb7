package a2a

// TaskState is the lifecycle state of a task.
type TaskState string

const (
	TaskStateSubmitted TaskState = "submitted"
	TaskStateWorking   TaskState = "working"
	TaskStateCompleted TaskState = "completed"
	TaskStateFailed    TaskState = "failed"
	TaskStateCanceled  TaskState = "canceled"
	TaskStateRejected  TaskState = "rejected"
)

// Terminal reports whether no further updates follow this state.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateFailed, TaskStateCanceled, TaskStateRejected:
		return true
	default:
		return false
	}
}

// TaskStatus carries the state and an optional status message.
type TaskStatus struct {
	State   TaskState `json:"state"`
	Message *Message  `json:"message,omitempty"`
}

// Task is a unit of work whose history holds the exchanged messages.
type Task struct {
	ID        string     `json:"id"`
	ContextID string     `json:"context_id,omitempty"`
	Status    TaskStatus `json:"status"`
	History   []*Message `json:"history,omitempty"`
}

// LastMessage returns the final history entry, or nil.
func (t *Task) LastMessage() *Message {
	if t == nil || len(t.History) == 0 {
		return nil
	}
	return t.History[len(t.History)-1]
}
