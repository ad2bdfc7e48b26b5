package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

const clientTimeout = 10 * time.Second

// Send delivers one command to a running daemon and returns its
// response. A response with status "error" is returned as a Go error.
func Send(socketPath, action string) (Response, error) {
	conn, err := net.DialTimeout("unix", socketPath, clientTimeout)
	if err != nil {
		return Response{}, fmt.Errorf("daemon not reachable at %s: %w", socketPath, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(clientTimeout))

	if err := json.NewEncoder(conn).Encode(Request{Action: action}); err != nil {
		return Response{}, fmt.Errorf("sending %s: %w", action, err)
	}

	scanner := bufio.NewScanner(conn)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return Response{}, fmt.Errorf("reading response: %w", err)
		}
		return Response{}, fmt.Errorf("daemon closed the connection")
	}
	var resp Response
	if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
		return Response{}, fmt.Errorf("malformed response: %w", err)
	}
	if resp.Status == "error" {
		return resp, fmt.Errorf("%s", resp.Error)
	}
	return resp, nil
}
