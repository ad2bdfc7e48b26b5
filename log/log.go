package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog        zerolog.Logger
	diagFile       *os.File
	transcribeFile *os.File
	logMu          sync.Mutex
	logReady       bool
	pid            int
	dir            string
	stderrEcho     bool
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		if !filepath.IsAbs(flagPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, flagPath), nil
		}
		return flagPath, nil
	}

	// Priority 2: VOXD_LOG_PATH environment variable
	envPath := os.Getenv("VOXD_LOG_PATH")
	if envPath != "" {
		if !filepath.IsAbs(envPath) {
			wd, err := os.Getwd()
			if err != nil {
				return "", err
			}
			return filepath.Join(wd, envPath), nil
		}
		return envPath, nil
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

// EchoStderr mirrors diagnostic output to stderr (foreground mode).
// Must be called before Init.
func EchoStderr(on bool) {
	stderrEcho = on
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "daemon_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	transcribePath := filepath.Join(dir, "transcribe_log.txt")
	transcribeFile, err = os.OpenFile(transcribePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	var out io.Writer = diagFile
	if stderrEcho {
		out = io.MultiWriter(diagFile, os.Stderr)
	}
	consoleWriter := zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if transcribeFile != nil {
		transcribeFile.Close()
		transcribeFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if logReady {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// SegmentMetrics describes one transcribed speech segment.
type SegmentMetrics struct {
	SessionID   int64
	Segment     int
	AudioS      float64
	Words       int
	WPM         float64
	STTMs       float64
	TransformMs float64
	InjectMs    float64
	TotalMs     float64
}

func Segment(m SegmentMetrics) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int64("session", m.SessionID).
		Int("segment", m.Segment).
		Float64("audio_s", m.AudioS).
		Int("words", m.Words).
		Float64("wpm", m.WPM).
		Float64("stt_ms", m.STTMs).
		Float64("transform_ms", m.TransformMs).
		Float64("inject_ms", m.InjectMs).
		Float64("total_ms", m.TotalMs).
		Msg("segment")
}

// TranscriptionText appends final text to the transcript log.
func TranscriptionText(text string) {
	if !logReady {
		return
	}
	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\n", time.Now().Format("2006-01-02 15:04:05"), pid, text)
	transcribeFile.WriteString(line)
}

func SessionStart(id int64) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int64("session", id).
		Msg("session_start")
}

// SessionSummary describes one finished dictation session.
type SessionSummary struct {
	SessionID int64
	Segments  int
	Words     int
	ActiveS   float64
	TotalS    float64
	WPM       float64
	AvgLatMs  float64
	P95LatMs  float64
	Failures  int
}

func SessionEnd(s SessionSummary) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int64("session", s.SessionID).
		Int("segments", s.Segments).
		Int("words", s.Words).
		Float64("active_s", s.ActiveS).
		Float64("total_s", s.TotalS).
		Float64("wpm", s.WPM).
		Float64("avg_latency_ms", s.AvgLatMs).
		Float64("p95_latency_ms", s.P95LatMs).
		Int("failures", s.Failures).
		Msg("session_end")
}

// DroppedChunks reports audio overload shedding for one reporter interval.
func DroppedChunks(dropped uint64, perSecond float64) {
	if !logReady {
		return
	}
	diagLog.Warn().
		Uint64("dropped", dropped).
		Float64("per_s", perSecond).
		Msg("audio_overload")
}
