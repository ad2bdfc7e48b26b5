package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"voxd/audio"
	"voxd/broadcast"
	"voxd/config"
	"voxd/inject"
	"voxd/ipc"
	"voxd/metrics"
	"voxd/paths"
	"voxd/pipeline"
	"voxd/transcriber"
)

// manualCapture lets the test hand chunks straight to the pipeline.
type manualCapture struct {
	mu sync.Mutex
	cb audio.DataCallback
}

func (m *manualCapture) Start() error { return nil }
func (m *manualCapture) Stop()        {}
func (m *manualCapture) Close()       {}

func (m *manualCapture) SetCallback(cb audio.DataCallback) {
	m.mu.Lock()
	m.cb = cb
	m.mu.Unlock()
}

func (m *manualCapture) ClearCallback() {
	m.mu.Lock()
	m.cb = nil
	m.mu.Unlock()
}

func (m *manualCapture) Feed(data []byte) {
	m.mu.Lock()
	cb := m.cb
	m.mu.Unlock()
	if cb != nil {
		cb(data, uint32(len(data)/2))
	}
}

type manualCtx struct{ capture *manualCapture }

func (m *manualCtx) Devices() ([]audio.DeviceInfo, error) { return nil, nil }
func (m *manualCtx) Close()                               {}
func (m *manualCtx) NewCapture(_ *audio.DeviceInfo, _ audio.CaptureConfig) (audio.CaptureDevice, error) {
	return m.capture, nil
}

// sizeSegmenter emits one segment per segBytes of input.
type sizeSegmenter struct {
	mu       sync.Mutex
	segBytes int
	buf      []byte
}

func (s *sizeSegmenter) Push(data []byte) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, data...)
	if len(s.buf) >= s.segBytes {
		seg := s.buf
		s.buf = nil
		return seg, true
	}
	return nil, false
}

func (s *sizeSegmenter) Flush() ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) == 0 {
		return nil, false
	}
	seg := s.buf
	s.buf = nil
	return seg, true
}

type stubSampler struct{ res metrics.Resource }

func (s stubSampler) Sample(context.Context) metrics.Resource { return s.res }

type testDaemon struct {
	d       *Daemon
	capture *manualCapture
	inj     *inject.Fake
	bc      *broadcast.Broadcaster
	sock    string
}

func newTestDaemon(t *testing.T, tr transcriber.Transcriber) *testDaemon {
	t.Helper()
	cfg := config.Default()
	cfg.Audio.Cues = false
	capture := &manualCapture{}
	inj := inject.NewFake()
	bc := broadcast.New(cfg.Broadcast.ReplaySegments)
	sock := filepath.Join(t.TempDir(), "events.sock")
	if err := bc.Listen(sock); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(bc.Close)

	store, err := metrics.OpenStore(filepath.Join(t.TempDir(), "m.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	d, err := New(Options{
		Config:      cfg,
		AudioCtx:    &manualCtx{capture: capture},
		Transcriber: tr,
		Injector:    inj,
		Collector:   metrics.NewCollector(store),
		Broadcaster: bc,
		Sampler:     stubSampler{},
		NewSegmenter: func() (pipeline.Segmenter, error) {
			return &sizeSegmenter{segBytes: 3200}, nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return &testDaemon{d: d, capture: capture, inj: inj, bc: bc, sock: sock}
}

type wireEvent struct {
	Type      string  `json:"type"`
	State     string  `json:"state"`
	SessionID *int64  `json:"session_id"`
	Text      string  `json:"text"`
	Words     int     `json:"words"`
	WPM       float64 `json:"wpm"`
	Segments  int     `json:"segments"`
}

type observer struct {
	conn net.Conn
	sc   *bufio.Scanner
}

func (td *testDaemon) observe(t *testing.T) *observer {
	t.Helper()
	conn, err := net.Dial("unix", td.sock)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })
	return &observer{conn: conn, sc: bufio.NewScanner(conn)}
}

func (o *observer) next(t *testing.T) wireEvent {
	t.Helper()
	o.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if !o.sc.Scan() {
		t.Fatalf("no event: %v", o.sc.Err())
	}
	var ev wireEvent
	if err := json.Unmarshal(o.sc.Bytes(), &ev); err != nil {
		t.Fatalf("bad line %q: %v", o.sc.Text(), err)
	}
	return ev
}

// nextOfType reads events until one of the wanted type arrives,
// skipping interleaved updates.
func (o *observer) nextOfType(t *testing.T, want string) wireEvent {
	t.Helper()
	for i := 0; i < 50; i++ {
		ev := o.next(t)
		if ev.Type == want {
			return ev
		}
	}
	t.Fatalf("no %q event", want)
	return wireEvent{}
}

func TestFullDictationSession(t *testing.T) {
	td := newTestDaemon(t, transcriber.NewFake(
		transcriber.FakeResult{Text: "alpha one"},
		transcriber.FakeResult{Text: "bravo two"},
		transcriber.FakeResult{Text: "charlie three"},
	))
	obs := td.observe(t)
	if ev := obs.next(t); ev.State != "idle" {
		t.Fatalf("catch-up = %+v", ev)
	}

	msg, err := td.d.Toggle()
	if err != nil {
		t.Fatal(err)
	}
	if msg != "recording started" {
		t.Errorf("msg = %q", msg)
	}

	if ev := obs.nextOfType(t, "state_change"); ev.State != "recording" {
		t.Fatalf("state = %+v", ev)
	}
	start := obs.nextOfType(t, "session_start")
	if start.SessionID == nil || *start.SessionID < 1 {
		t.Fatalf("session id = %v", start.SessionID)
	}

	for i := 0; i < 3; i++ {
		td.capture.Feed(make([]byte, 3200))
	}
	wantTexts := []string{"Alpha one", "Bravo two", "Charlie three"}
	for _, want := range wantTexts {
		ev := obs.nextOfType(t, "transcription")
		if ev.Text != want {
			t.Errorf("transcription = %q, want %q", ev.Text, want)
		}
	}

	msg, err = td.d.Toggle()
	if err != nil {
		t.Fatal(err)
	}
	if msg != "recording stopped" {
		t.Errorf("msg = %q", msg)
	}
	end := obs.nextOfType(t, "session_end")
	if *end.SessionID != *start.SessionID {
		t.Errorf("end session id = %d, want %d", *end.SessionID, *start.SessionID)
	}
	if ev := obs.nextOfType(t, "state_change"); ev.State != "idle" {
		t.Fatalf("state = %+v", ev)
	}

	if got := td.inj.Injected(); len(got) != 3 || got[0] != "Alpha one" || got[2] != "Charlie three" {
		t.Fatalf("injected = %v", got)
	}
}

func TestSessionIDsIncreaseAcrossSessions(t *testing.T) {
	td := newTestDaemon(t, transcriber.NewFake(transcriber.FakeResult{Text: "x"}))
	obs := td.observe(t)
	obs.next(t)

	var ids []int64
	for i := 0; i < 2; i++ {
		td.d.Toggle()
		ev := obs.nextOfType(t, "session_start")
		ids = append(ids, *ev.SessionID)
		td.d.Toggle()
		obs.nextOfType(t, "session_end")
		obs.nextOfType(t, "state_change")
	}
	if ids[1] <= ids[0] {
		t.Errorf("ids = %v", ids)
	}
}

func TestStopFlushesTrailingSegment(t *testing.T) {
	td := newTestDaemon(t, transcriber.NewFake(transcriber.FakeResult{Text: "tail"}))
	td.d.Toggle()
	// Less than a full segment, only the stop flush can emit it.
	td.capture.Feed(make([]byte, 1600))
	td.d.Toggle()
	if got := td.inj.Injected(); len(got) != 1 || got[0] != "Tail" {
		t.Fatalf("injected = %v", got)
	}
}

func TestStatusIdleAndRecording(t *testing.T) {
	td := newTestDaemon(t, transcriber.NewFake(transcriber.FakeResult{Text: "x"}))

	s, err := td.d.Status()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(s, "state: idle") {
		t.Errorf("status = %q", s)
	}

	td.d.Toggle()
	s, _ = td.d.Status()
	if !strings.Contains(s, "state: recording") || !strings.Contains(s, "session: ") {
		t.Errorf("status = %q", s)
	}
	td.d.Toggle()
}

func TestStatusReportsLastStartError(t *testing.T) {
	td := newTestDaemon(t, transcriber.NewFake(transcriber.FakeResult{Text: "x"}))
	td.d.newSeg = func() (pipeline.Segmenter, error) {
		return nil, errors.New("vad unavailable")
	}

	if _, err := td.d.Toggle(); err == nil {
		t.Fatal("toggle succeeded with a broken segmenter")
	}
	s, _ := td.d.Status()
	if !strings.Contains(s, "state: idle") || !strings.Contains(s, "last error: ") ||
		!strings.Contains(s, "vad unavailable") {
		t.Errorf("status = %q", s)
	}

	// A successful start clears the recorded error.
	td.d.newSeg = func() (pipeline.Segmenter, error) {
		return &sizeSegmenter{segBytes: 3200}, nil
	}
	if _, err := td.d.Toggle(); err != nil {
		t.Fatal(err)
	}
	s, _ = td.d.Status()
	if strings.Contains(s, "last error") {
		t.Errorf("stale error in status: %q", s)
	}
	td.d.Toggle()
}

func TestLateObserverCatchesUp(t *testing.T) {
	td := newTestDaemon(t, transcriber.NewFake(
		transcriber.FakeResult{Text: "before join"},
	))
	td.d.Toggle()
	td.capture.Feed(make([]byte, 3200))
	// Wait for the segment to land in the replay buffer.
	deadline := time.Now().Add(2 * time.Second)
	for len(td.inj.Injected()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("segment never injected")
		}
		time.Sleep(time.Millisecond)
	}

	obs := td.observe(t)
	if ev := obs.nextOfType(t, "state_change"); ev.State != "recording" {
		t.Fatalf("catch-up state = %+v", ev)
	}
	obs.nextOfType(t, "session_start")
	if ev := obs.nextOfType(t, "transcription"); ev.Text != "Before join" {
		t.Fatalf("catch-up transcription = %+v", ev)
	}
	td.d.Toggle()
}

func TestRunServesCommandSocket(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())
	td := newTestDaemon(t, transcriber.NewFake(transcriber.FakeResult{Text: "x"}))

	runErr := make(chan error, 1)
	go func() { runErr <- td.d.Run(context.Background()) }()

	sock, err := paths.CommandSocket()
	if err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(3 * time.Second)
	for {
		if _, err := os.Stat(sock); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("command socket never appeared")
		}
		time.Sleep(5 * time.Millisecond)
	}

	resp, err := ipc.Send(sock, ipc.ActionStatus)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(resp.Message, "state: idle") {
		t.Errorf("status = %+v", resp)
	}

	if resp, err = ipc.Send(sock, ipc.ActionToggle); err != nil || resp.Message != "recording started" {
		t.Fatalf("toggle = %+v, %v", resp, err)
	}

	if resp, err = ipc.Send(sock, ipc.ActionQuit); err != nil || resp.Message != "shutting down" {
		t.Fatalf("quit = %+v, %v", resp, err)
	}
	select {
	case err := <-runErr:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("run did not exit after quit")
	}
}
