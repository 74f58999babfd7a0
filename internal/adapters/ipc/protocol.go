// Package ipc runs operations in persistent worker processes driven over a
// socket pair with newline-delimited JSON messages.
//
// The worker receives the socket as file descriptor 3 and advertises it the
// way Node.js expects (NODE_CHANNEL_FD and NODE_CHANNEL_SERIALIZATION_MODE), so
// process.send and process.on("message") work unchanged in Node workers.
package ipc

// Message types sent by the worker.
const (
	MessageSync         = "sync"
	MessageRequestRun   = "requestRun"
	MessageAfterExecute = "after-execute"
)

// Commands sent to the worker.
const (
	CommandRun  = "run"
	CommandExit = "exit"
)

const (
	channelFD        = 3
	envChannelFD     = "NODE_CHANNEL_FD=3"
	envSerialization = "NODE_CHANNEL_SERIALIZATION_MODE=json"
)

// Message is a worker to engine message. Fields other than Type are optional.
type Message struct {
	Type      string `json:"type"`
	Requestor string `json:"requestor,omitempty"`
	Status    string `json:"status,omitempty"`
}

// Command is an engine to worker message.
type Command struct {
	Type string `json:"type"`
}

// SessionState is the lifecycle state of a worker session.
type SessionState uint8

const (
	// StateNotStarted means no process exists yet.
	StateNotStarted SessionState = iota
	// StateStarting means the process is being launched.
	StateStarting
	// StateAwaitingSync means the process runs but has not signaled readiness.
	StateAwaitingSync
	// StateReady means the worker accepts a run command.
	StateReady
	// StateRunning means a run command was sent and no result arrived yet.
	StateRunning
	// StateFinished means the last run resolved.
	StateFinished
	// StateDisconnected means the process exited or the channel broke.
	StateDisconnected
)

func (s SessionState) String() string {
	switch s {
	case StateNotStarted:
		return "NotStarted"
	case StateStarting:
		return "Starting"
	case StateAwaitingSync:
		return "AwaitingSync"
	case StateReady:
		return "Ready"
	case StateRunning:
		return "Running"
	case StateFinished:
		return "Finished"
	case StateDisconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}
