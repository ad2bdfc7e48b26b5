// Package pipeline moves audio from capture to injected text through
// two bounded queues.
//
//	capture -> audioCh -> segment/transcribe/transform -> resultCh -> inject
//
// The audio queue sheds load by dropping chunks when full so the
// capture callback never blocks. The result queue applies
// backpressure instead, slowing transcription rather than losing
// text that already cost an API call.
package pipeline

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"voxd/inject"
	"voxd/log"
	"voxd/transcriber"
	"voxd/transform"
)

// Segmenter chops the PCM stream into utterances.
type Segmenter interface {
	Push(data []byte) (segment []byte, ok bool)
	Flush() (segment []byte, ok bool)
}

type Config struct {
	SampleRate  int
	AudioQueue  int
	ResultQueue int
}

// SegmentStats describes one completed segment, reported after its
// result is queued for injection.
type SegmentStats struct {
	Seq     int
	Text    string
	AudioS  float64
	Words   int
	SttMs   float64
	XformMs float64
	// LatencyMs is stt plus transform time. Injection happens
	// asynchronously and is reported separately.
	LatencyMs float64
}

type InjectStats struct {
	Seq      int
	Text     string
	InjectMs float64
	Err      error
}

type result struct {
	seq  int
	text string
}

type Pipeline struct {
	cfg   Config
	seg   Segmenter
	tr    transcriber.Transcriber
	xform *transform.Transformer
	inj   inject.Injector

	// OnSegment fires after a segment's text is queued for injection.
	OnSegment func(SegmentStats)
	// OnInject fires after each injection attempt.
	OnInject func(InjectStats)

	audioCh  chan []byte
	resultCh chan result

	accepting atomic.Bool
	dropped   atomic.Uint64
	failures  atomic.Uint64
	seq       int

	ctx        context.Context
	cancel     context.CancelFunc
	segDone    chan struct{}
	injectDone chan struct{}
	reportDone chan struct{}
}

func New(cfg Config, seg Segmenter, tr transcriber.Transcriber, xform *transform.Transformer, inj inject.Injector) *Pipeline {
	return &Pipeline{
		cfg:   cfg,
		seg:   seg,
		tr:    tr,
		xform: xform,
		inj:   inj,
	}
}

// Start launches the worker goroutines. The context bounds in-flight
// transcription calls.
func (p *Pipeline) Start(ctx context.Context) {
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.audioCh = make(chan []byte, p.cfg.AudioQueue)
	p.resultCh = make(chan result, p.cfg.ResultQueue)
	p.segDone = make(chan struct{})
	p.injectDone = make(chan struct{})
	p.reportDone = make(chan struct{})
	p.accepting.Store(true)

	go p.segmentLoop()
	go p.injectLoop()
	go p.dropReporter()
}

// Enqueue hands a captured chunk to the pipeline. Called from the
// audio callback, so it never blocks: a full queue drops the chunk
// and bumps the counter.
func (p *Pipeline) Enqueue(data []byte, _ uint32) {
	if !p.accepting.Load() {
		return
	}
	select {
	case p.audioCh <- data:
	default:
		p.dropped.Add(1)
	}
}

// Stop winds the pipeline down in order: no new audio, drain the
// audio queue, flush the segmenter, then drain pending injections.
// Blocks until all queued text is out. The capture device must have
// stopped delivering callbacks before Stop is called.
func (p *Pipeline) Stop() {
	if !p.accepting.CompareAndSwap(true, false) {
		return
	}
	close(p.audioCh)
	<-p.segDone
	<-p.injectDone
	close(p.reportDone)
	p.cancel()
}

// Dropped returns the cumulative count of audio chunks shed under
// load.
func (p *Pipeline) Dropped() uint64 { return p.dropped.Load() }

// Failures returns the count of segments whose transcription failed.
func (p *Pipeline) Failures() uint64 { return p.failures.Load() }

func (p *Pipeline) segmentLoop() {
	defer close(p.segDone)
	for chunk := range p.audioCh {
		if seg, ok := p.seg.Push(chunk); ok {
			p.processSegment(seg)
		}
	}
	if seg, ok := p.seg.Flush(); ok {
		p.processSegment(seg)
	}
	close(p.resultCh)
}

func (p *Pipeline) processSegment(pcm []byte) {
	p.seq++
	seq := p.seq
	audioS := float64(len(pcm)) / 2 / float64(p.cfg.SampleRate)

	sttStart := time.Now()
	res, err := p.tr.Transcribe(p.ctx, pcm, p.cfg.SampleRate)
	sttMs := float64(time.Since(sttStart).Microseconds()) / 1000
	if err != nil {
		// One bad segment must not take the session down.
		p.failures.Add(1)
		log.Errorf("segment %d transcription failed: %v", seq, err)
		return
	}
	if strings.TrimSpace(res.Text) == "" {
		log.Infof("segment %d produced no text (%.1fs audio)", seq, audioS)
		return
	}

	xformStart := time.Now()
	text := p.xform.Apply(res.Text)
	xformMs := float64(time.Since(xformStart).Microseconds()) / 1000
	if text == "" {
		return
	}

	// Blocks when injection is behind, which is the backpressure
	// that keeps output ordered and complete.
	p.resultCh <- result{seq: seq, text: text}

	if p.OnSegment != nil {
		p.OnSegment(SegmentStats{
			Seq:       seq,
			Text:      text,
			AudioS:    audioS,
			Words:     len(strings.Fields(text)),
			SttMs:     sttMs,
			XformMs:   xformMs,
			LatencyMs: sttMs + xformMs,
		})
	}
}

func (p *Pipeline) injectLoop() {
	defer close(p.injectDone)
	for r := range p.resultCh {
		start := time.Now()
		err := p.inj.Inject(r.text)
		injectMs := float64(time.Since(start).Microseconds()) / 1000
		if err != nil {
			log.Errorf("segment %d injection failed: %v", r.seq, err)
		}
		if p.OnInject != nil {
			p.OnInject(InjectStats{Seq: r.seq, Text: r.text, InjectMs: injectMs, Err: err})
		}
	}
}

const dropReportEvery = 5 * time.Second

func (p *Pipeline) dropReporter() {
	ticker := time.NewTicker(dropReportEvery)
	defer ticker.Stop()
	var last uint64
	for {
		select {
		case <-p.reportDone:
			return
		case <-ticker.C:
			cur := p.dropped.Load()
			if cur > last {
				log.DroppedChunks(cur-last, float64(cur-last)/dropReportEvery.Seconds())
				last = cur
			}
		}
	}
}
