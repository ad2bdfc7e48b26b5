package broadcast

import (
	"net"
	"os"
	"sync"
	"time"

	"voxd/log"
	"voxd/metrics"
	"voxd/paths"
)

// queueSlack is extra queue room beyond the replay buffer so a fresh
// client absorbs catch-up plus a burst of live events.
const queueSlack = 16

// Broadcaster fans daemon events out to every connected observer.
//
// New clients get a catch-up: the current state, the active session
// if any, and the recent transcriptions, queued atomically with
// registration so a joiner sees exactly what a client connected from
// the start would have seen.
type Broadcaster struct {
	replayCap int

	mu       sync.Mutex
	listener net.Listener
	clients  map[*client]struct{}
	closed   bool

	// catch-up state, guarded by mu
	state      string
	sessionID  int64
	recording  bool
	replay     [][]byte // encoded transcription lines, oldest first
	lastUpdate []byte   // last metrics_update line
}

func New(replayCap int) *Broadcaster {
	return &Broadcaster{
		replayCap: replayCap,
		clients:   make(map[*client]struct{}),
		state:     "idle",
	}
}

// Listen binds the broadcast socket and starts accepting observers.
func (b *Broadcaster) Listen(socketPath string) error {
	os.Remove(socketPath)
	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return err
	}
	if err := paths.Secure(socketPath); err != nil {
		ln.Close()
		return err
	}
	b.mu.Lock()
	b.listener = ln
	b.mu.Unlock()
	go b.acceptLoop(ln)
	return nil
}

func (b *Broadcaster) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return // listener closed
		}
		b.register(conn)
	}
}

// register queues the catch-up and adds the client, all under the
// lock, so no live event can slip between the two.
func (b *Broadcaster) register(conn net.Conn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		conn.Close()
		return
	}

	c := newClient(conn, b.replayCap+queueSlack)
	c.send(encode(newStateChange(b.state, time.Now())))
	if b.recording {
		c.send(encode(newSessionStart(b.sessionID, time.Now())))
	}
	for _, line := range b.replay {
		c.send(line)
	}
	if b.lastUpdate != nil {
		c.send(b.lastUpdate)
	}
	b.clients[c] = struct{}{}
	log.Infof("observer connected (%d total)", len(b.clients))
}

// broadcast sends one encoded line to every live client and sweeps
// out the dead ones.
func (b *Broadcaster) broadcastLocked(line []byte) {
	for c := range b.clients {
		if c.dead.Load() {
			delete(b.clients, c)
			go c.close()
			continue
		}
		c.send(line)
	}
}

func (b *Broadcaster) StateChange(state string, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = state
	b.broadcastLocked(encode(newStateChange(state, at)))
}

func (b *Broadcaster) SessionStart(id int64, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessionID = id
	b.recording = true
	b.replay = nil // new session, old transcript no longer relevant
	b.broadcastLocked(encode(newSessionStart(id, at)))
}

func (b *Broadcaster) SessionEnd(id int64, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recording = false
	// replay is kept so late joiners still see the last dictation.
	b.broadcastLocked(encode(newSessionEnd(id, at)))
}

func (b *Broadcaster) Transcription(text string, wpm, latencyMs float64, words int, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	line := encode(newTranscription(text, wpm, latencyMs, words, at))
	b.replay = append(b.replay, line)
	if len(b.replay) > b.replayCap {
		b.replay = b.replay[len(b.replay)-b.replayCap:]
	}
	b.broadcastLocked(line)
}

func (b *Broadcaster) MetricsUpdate(snap metrics.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	line := encode(newMetricsUpdate(snap))
	b.lastUpdate = line
	b.broadcastLocked(line)
}

// ClientCount reports connected observers, for status output.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for c := range b.clients {
		if !c.dead.Load() {
			n++
		}
	}
	return n
}

// Close stops accepting and disconnects everyone.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	b.closed = true
	ln := b.listener
	clients := make([]*client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.clients = make(map[*client]struct{})
	b.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	for _, c := range clients {
		c.close()
	}
}
