// Package ipc implements the request/response command socket. One
// JSON object per line in each direction.
package ipc

// Request is what control clients send.
type Request struct {
	Action string `json:"action"`
}

// Response carries either a message (status "success") or an error
// description (status "error").
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

const (
	ActionToggle = "toggle"
	ActionStatus = "status"
	ActionQuit   = "quit"
)

func success(msg string) Response {
	return Response{Status: "success", Message: msg}
}

func failure(err error) Response {
	return Response{Status: "error", Error: err.Error()}
}

// Handler executes commands on behalf of the server. Implementations
// serialize their own state transitions.
type Handler interface {
	// Toggle flips idle/recording and reports the new state.
	Toggle() (string, error)
	// Status describes the daemon's current state.
	Status() (string, error)
	// Quit asks the daemon to shut down after the response is sent.
	Quit() (string, error)
}
