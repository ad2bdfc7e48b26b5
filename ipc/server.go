package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync"

	"voxd/log"
	"voxd/paths"
)

// Server answers control commands on a unix socket. Connections are
// handled concurrently, commands within a connection in order.
type Server struct {
	handler Handler

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

func NewServer(handler Handler) *Server {
	return &Server{handler: handler}
}

func (s *Server) Listen(socketPath string) error {
	os.Remove(socketPath)
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("binding command socket: %w", err)
	}
	if err := paths.Secure(socketPath); err != nil {
		ln.Close()
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	go s.acceptLoop(ln)
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	enc := json.NewEncoder(conn)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var req Request
		var resp Response
		if err := json.Unmarshal(line, &req); err != nil {
			resp = failure(fmt.Errorf("malformed request: %v", err))
		} else {
			resp = s.dispatch(req)
		}
		if err := enc.Encode(resp); err != nil {
			return
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	var msg string
	var err error
	switch req.Action {
	case ActionToggle:
		msg, err = s.handler.Toggle()
	case ActionStatus:
		msg, err = s.handler.Status()
	case ActionQuit:
		msg, err = s.handler.Quit()
	default:
		err = fmt.Errorf("unknown action %q", req.Action)
	}
	if err != nil {
		log.Warnf("command %s failed: %v", req.Action, err)
		return failure(err)
	}
	return success(msg)
}

func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.listener != nil {
		s.listener.Close()
	}
}
