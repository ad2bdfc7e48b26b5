package broadcast

import (
	"net"
	"sync/atomic"
	"time"
)

const writeTimeout = 5 * time.Second

// client is one connected observer. A dedicated writer goroutine
// drains the queue so one stalled reader never blocks the daemon or
// interleaves partial lines.
type client struct {
	conn  net.Conn
	queue chan []byte
	dead  atomic.Bool
	done  chan struct{}
}

func newClient(conn net.Conn, queueSize int) *client {
	c := &client{
		conn:  conn,
		queue: make(chan []byte, queueSize),
		done:  make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

// send queues a line without blocking. A client that cannot keep up
// (full queue) is marked dead and dropped on the next sweep.
func (c *client) send(line []byte) {
	if c.dead.Load() {
		return
	}
	select {
	case c.queue <- line:
	default:
		c.dead.Store(true)
	}
}

func (c *client) writeLoop() {
	defer close(c.done)
	defer c.conn.Close()
	for line := range c.queue {
		if c.dead.Load() {
			return
		}
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, err := c.conn.Write(line); err != nil {
			c.dead.Store(true)
			return
		}
	}
}

// close tears the client down and waits for its writer to exit.
func (c *client) close() {
	c.dead.Store(true)
	close(c.queue)
	c.conn.Close()
	<-c.done
}
