// Package daemon owns the dictation session lifecycle. It is the
// single place that flips between idle and recording, wiring the
// audio pipeline, metrics and event broadcast together.
package daemon

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"voxd/audio"
	"voxd/beep"
	"voxd/broadcast"
	"voxd/config"
	"voxd/hotkey"
	"voxd/inject"
	"voxd/ipc"
	"voxd/log"
	"voxd/metrics"
	"voxd/paths"
	"voxd/pipeline"
	"voxd/transcriber"
	"voxd/transform"
)

// statusReportEvery paces the in-log progress line during long
// recordings.
const statusReportEvery = 30 * time.Second

// ResourceSampler abstracts system load sampling for tests.
type ResourceSampler interface {
	Sample(ctx context.Context) metrics.Resource
}

// Options carries the collaborators. Zero fields get production
// defaults in New where possible, fakes come in through here.
type Options struct {
	Config      config.Config
	AudioCtx    audio.Context
	Transcriber transcriber.Transcriber
	Injector    inject.Injector
	Collector   *metrics.Collector
	Broadcaster *broadcast.Broadcaster
	Sampler     ResourceSampler
	Hotkey      hotkey.Hotkey
	// NewSegmenter builds a fresh segmenter per session.
	NewSegmenter func() (pipeline.Segmenter, error)
}

type Daemon struct {
	cfg         config.Config
	audioCtx    audio.Context
	tr          transcriber.Transcriber
	inj         inject.Injector
	xform       *transform.Transformer
	collector   *metrics.Collector
	broadcaster *broadcast.Broadcaster
	sampler     ResourceSampler
	hk          hotkey.Hotkey
	newSeg      func() (pipeline.Segmenter, error)

	// mu serializes state transitions. A toggle arriving while
	// another is mid-flight waits here and then acts on the new
	// state, which is exactly the queued-command behavior we want.
	mu        sync.Mutex
	recording bool
	capture   audio.CaptureDevice
	pipe      *pipeline.Pipeline
	sessionID int64
	dropped   uint64 // cumulative across ended sessions
	lastErr   error  // most recent fatal session error, for status

	quitOnce sync.Once
	quitCh   chan struct{}
}

func New(opts Options) (*Daemon, error) {
	cfg := opts.Config
	if opts.NewSegmenter == nil {
		opts.NewSegmenter = func() (pipeline.Segmenter, error) {
			return vadSegmenter(cfg)
		}
	}
	if opts.Collector == nil {
		opts.Collector = metrics.NewCollector(nil)
	}
	if opts.Broadcaster == nil {
		opts.Broadcaster = broadcast.New(cfg.Broadcast.ReplaySegments)
	}
	if opts.Sampler == nil {
		opts.Sampler = metrics.NewSampler()
	}
	if !cfg.Audio.Cues {
		beep.Disable()
	}
	return &Daemon{
		cfg:         cfg,
		audioCtx:    opts.AudioCtx,
		tr:          opts.Transcriber,
		inj:         opts.Injector,
		xform:       transform.New(cfg.Transform.Rules, cfg.Transform.Capitalize),
		collector:   opts.Collector,
		broadcaster: opts.Broadcaster,
		sampler:     opts.Sampler,
		hk:          opts.Hotkey,
		newSeg:      opts.NewSegmenter,
		quitCh:      make(chan struct{}),
	}, nil
}

// Toggle implements the ipc handler. Safe to call from any
// goroutine, transitions are strictly serialized.
func (d *Daemon) Toggle() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.recording {
		if err := d.stopLocked(); err != nil {
			return "", err
		}
		beep.PlayEnd()
		return "recording stopped", nil
	}
	if err := d.startLocked(); err != nil {
		d.lastErr = err
		beep.PlayError()
		return "", err
	}
	d.lastErr = nil
	beep.PlayStart()
	return "recording started", nil
}

func (d *Daemon) startLocked() error {
	seg, err := d.newSeg()
	if err != nil {
		return fmt.Errorf("starting segmenter: %w", err)
	}

	device, err := audio.FindDevice(d.audioCtx, d.cfg.Audio.Device)
	if err != nil {
		return err
	}
	if device != nil && audio.IsBluetooth(device.Name) {
		log.Warnf("bluetooth mic %q may degrade transcription quality", device.Name)
	}
	capture, err := d.audioCtx.NewCapture(device, audio.CaptureConfig{
		SampleRate: uint32(d.cfg.Audio.SampleRate),
		Channels:   uint32(d.cfg.Audio.Channels),
	})
	if err != nil {
		return fmt.Errorf("opening capture device: %w", err)
	}

	if w, ok := d.tr.(interface{ Warm() }); ok {
		w.Warm()
	}

	now := time.Now()
	id := d.collector.StartSession(now)

	pipe := pipeline.New(pipeline.Config{
		SampleRate:  d.cfg.Audio.SampleRate,
		AudioQueue:  d.cfg.Pipeline.AudioQueue,
		ResultQueue: d.cfg.Pipeline.ResultQueue,
	}, seg, d.tr, d.xform, d.inj)

	pipe.OnSegment = func(s pipeline.SegmentStats) {
		d.collector.RecordSegment(metrics.Segment{
			Seq:       s.Seq,
			AudioS:    s.AudioS,
			Words:     s.Words,
			SttMs:     s.SttMs,
			LatencyMs: s.LatencyMs,
		})
		snap := d.collector.Snapshot()
		d.broadcaster.Transcription(s.Text, snap.WPM, s.LatencyMs, s.Words, time.Now())
		d.broadcaster.MetricsUpdate(snap)
		log.TranscriptionText(s.Text)
		log.Segment(log.SegmentMetrics{
			SessionID:   id,
			Segment:     s.Seq,
			AudioS:      s.AudioS,
			Words:       s.Words,
			WPM:         snap.WPM,
			STTMs:       s.SttMs,
			TransformMs: s.XformMs,
			TotalMs:     s.LatencyMs,
		})
	}
	pipe.OnInject = func(s pipeline.InjectStats) {
		if s.Err != nil {
			log.Errorf("inject segment %d: %v", s.Seq, s.Err)
		}
	}

	pipe.Start(context.Background())
	capture.SetCallback(pipe.Enqueue)
	if err := capture.Start(); err != nil {
		pipe.Stop()
		capture.Close()
		d.collector.EndSession(time.Now())
		return fmt.Errorf("starting capture: %w", err)
	}

	d.capture = capture
	d.pipe = pipe
	d.sessionID = id
	d.recording = true

	d.broadcaster.StateChange("recording", now)
	d.broadcaster.SessionStart(id, now)
	d.broadcaster.MetricsUpdate(d.collector.Snapshot())
	log.SessionStart(id)
	return nil
}

func (d *Daemon) stopLocked() error {
	// Order matters: capture first so no callbacks race the queue
	// close, then drain the pipeline fully before closing the books.
	d.capture.Stop()
	d.capture.ClearCallback()
	d.capture.Close()
	d.pipe.Stop()

	for i := uint64(0); i < d.pipe.Failures(); i++ {
		d.collector.RecordFailure()
	}
	d.dropped += d.pipe.Dropped()

	now := time.Now()
	sum := d.collector.EndSession(now)
	d.broadcaster.SessionEnd(sum.SessionID, now)
	d.broadcaster.StateChange("idle", now)
	d.broadcaster.MetricsUpdate(d.collector.Snapshot())
	log.SessionEnd(log.SessionSummary{
		SessionID: sum.SessionID,
		Segments:  sum.Segments,
		Words:     sum.Words,
		ActiveS:   sum.ActiveAudioS,
		TotalS:    sum.TotalS,
		WPM:       sum.WPM,
		AvgLatMs:  sum.AvgLatencyMs,
		P95LatMs:  sum.P95LatencyMs,
		Failures:  sum.Failures,
	})

	d.recording = false
	d.capture = nil
	d.pipe = nil
	return nil
}

// Status implements the ipc handler.
func (d *Daemon) Status() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap := d.collector.Snapshot()
	var b strings.Builder
	fmt.Fprintf(&b, "state: %s", snap.State)
	if d.recording {
		fmt.Fprintf(&b, "\nsession: %d (%.0fs, %d segments, %d words, %.0f wpm)",
			d.sessionID, snap.DurationS, snap.Segments, snap.Words, snap.WPM)
		fmt.Fprintf(&b, "\ndropped chunks: %d", d.dropped+d.pipe.Dropped())
	} else {
		fmt.Fprintf(&b, "\ndropped chunks: %d", d.dropped)
	}
	if d.lastErr != nil {
		fmt.Fprintf(&b, "\nlast error: %v", d.lastErr)
	}
	fmt.Fprintf(&b, "\nobservers: %d", d.broadcaster.ClientCount())
	fmt.Fprintf(&b, "\ncpu: %.1f%%", snap.CPUPercent)
	if snap.GPUMemoryMB > 0 {
		fmt.Fprintf(&b, "\ngpu memory: %.0f MB (%.1f%%)", snap.GPUMemoryMB, snap.GPUMemoryPercent)
	}
	lt := d.collector.Lifetime()
	if lt.Sessions > 0 {
		fmt.Fprintf(&b, "\nlifetime: %d sessions, %d words, %.1f min audio",
			lt.Sessions, lt.Words, lt.ActiveAudioS/60)
	}
	return b.String(), nil
}

// Quit implements the ipc handler. The response goes out before Run
// tears the sockets down.
func (d *Daemon) Quit() (string, error) {
	d.quitOnce.Do(func() { close(d.quitCh) })
	return "shutting down", nil
}

// Done is closed once a quit has been requested.
func (d *Daemon) Done() <-chan struct{} { return d.quitCh }

// Run serves the control and broadcast sockets until the context is
// cancelled or a quit command arrives. It always leaves the daemon
// idle and the sockets removed.
func (d *Daemon) Run(ctx context.Context) error {
	cmdSock, err := paths.CommandSocket()
	if err != nil {
		return err
	}
	evtSock, err := paths.BroadcastSocket()
	if err != nil {
		return err
	}

	srv := ipc.NewServer(d)
	if err := srv.Listen(cmdSock); err != nil {
		return err
	}
	defer srv.Close()
	if err := d.broadcaster.Listen(evtSock); err != nil {
		return err
	}
	defer d.broadcaster.Close()

	if d.hk != nil {
		if err := d.hk.Register(); err != nil {
			log.Warnf("hotkey unavailable: %v", err)
		} else {
			defer d.hk.Unregister()
		}
	}

	sampleEvery := time.Duration(d.cfg.Metrics.ResourceSampleS * float64(time.Second))
	if sampleEvery <= 0 {
		sampleEvery = 5 * time.Second
	}
	ticker := time.NewTicker(sampleEvery)
	defer ticker.Stop()
	lastReport := time.Now()

	log.Infof("daemon ready, command socket %s", cmdSock)
	for {
		select {
		case <-ctx.Done():
			d.shutdown()
			return ctx.Err()
		case <-d.quitCh:
			d.shutdown()
			return nil
		case <-d.toggleChan():
			if msg, err := d.Toggle(); err != nil {
				log.Errorf("hotkey toggle: %v", err)
			} else {
				log.Infof("hotkey: %s", msg)
			}
		case <-ticker.C:
			res := d.sampler.Sample(ctx)
			d.collector.SetResource(res.CPUPercent, res.GPUMemoryMB, res.GPUMemoryPercent)
			snap := d.collector.Snapshot()
			d.broadcaster.MetricsUpdate(snap)
			if snap.State == "recording" && time.Since(lastReport) >= statusReportEvery {
				lastReport = time.Now()
				log.Infof("recording: %d segments, %d words, %.0f wpm, cpu %.1f%%",
					snap.Segments, snap.Words, snap.WPM, snap.CPUPercent)
			}
		}
	}
}

func (d *Daemon) toggleChan() <-chan struct{} {
	if d.hk == nil {
		return nil
	}
	return d.hk.Toggles()
}

func (d *Daemon) shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.recording {
		if err := d.stopLocked(); err != nil {
			log.Errorf("stopping session on shutdown: %v", err)
		}
	}
}
