package a2a

// JSON-RPC method names of the agent surface.
const (
	MethodSendMessage          = "message/send"
	MethodSendStreamingMessage = "message/stream"
	MethodGetTask              = "tasks/get"
	MethodCancelTask           = "tasks/cancel"
	MethodResubscribeToTask    = "tasks/resubscribe"
	MethodSetTaskPushConfig    = "tasks/pushNotificationConfig/set"
	MethodGetTaskPushConfig    = "tasks/pushNotificationConfig/get"
	MethodListTaskPushConfig   = "tasks/pushNotificationConfig/list"
	MethodDeleteTaskPushConfig = "tasks/pushNotificationConfig/delete"
)

// SendMessageConfiguration tunes a send request.
type SendMessageConfiguration struct {
	Blocking            bool     `json:"blocking"`
	AcceptedOutputModes []string `json:"accepted_output_modes,omitempty"`
}

// SendMessageRequest carries one envelope to an agent.
type SendMessageRequest struct {
	Message       *Message                  `json:"message"`
	Configuration *SendMessageConfiguration `json:"configuration,omitempty"`
}

// SendMessageResponse holds exactly one of a message or a task.
type SendMessageResponse struct {
	Message *Message `json:"message,omitempty"`
	Task    *Task    `json:"task,omitempty"`
}

// TaskQueryRequest asks for a task by id.
type TaskQueryRequest struct {
	ID            string `json:"id"`
	HistoryLength int    `json:"history_length,omitempty"`
}

// TaskIDRequest addresses a task by id.
type TaskIDRequest struct {
	ID string `json:"id"`
}

// PushNotificationConfig registers a callback for task updates.
type PushNotificationConfig struct {
	ID    string `json:"id,omitempty"`
	URL   string `json:"url"`
	Token string `json:"token,omitempty"`
}

// TaskPushNotificationConfig binds a push config to a task.
type TaskPushNotificationConfig struct {
	TaskID string                 `json:"task_id"`
	Config PushNotificationConfig `json:"push_notification_config"`
}

// TaskPushConfigRequest addresses a push config of a task.
type TaskPushConfigRequest struct {
	TaskID   string `json:"task_id"`
	ConfigID string `json:"config_id,omitempty"`
}
