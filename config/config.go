// Package config loads the daemon's TOML configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Audio       Audio       `toml:"audio"`
	VAD         VAD         `toml:"vad"`
	Pipeline    Pipeline    `toml:"pipeline"`
	Transcriber Transcriber `toml:"transcriber"`
	Transform   Transform   `toml:"transform"`
	Inject      Inject      `toml:"inject"`
	Hotkey      Hotkey      `toml:"hotkey"`
	Metrics     Metrics     `toml:"metrics"`
	Broadcast   Broadcast   `toml:"broadcast"`
}

type Audio struct {
	Device     string `toml:"device"`
	SampleRate int    `toml:"sample_rate"`
	Channels   int    `toml:"channels"`
	// Cues plays short tones on record start/stop.
	Cues bool `toml:"cues"`
}

type VAD struct {
	// Aggressiveness 0..3, higher filters non-speech harder.
	Aggressiveness int     `toml:"aggressiveness"`
	SilenceS       float64 `toml:"silence_s"`
	MinSegmentS    float64 `toml:"min_segment_s"`
	MaxSegmentS    float64 `toml:"max_segment_s"`
}

type Pipeline struct {
	AudioQueue  int `toml:"audio_queue"`
	ResultQueue int `toml:"result_queue"`
}

type Transcriber struct {
	URL       string  `toml:"url"`
	APIKeyEnv string  `toml:"api_key_env"`
	Model     string  `toml:"model"`
	Language  string  `toml:"language"`
	TimeoutS  float64 `toml:"timeout_s"`
}

type Transform struct {
	Capitalize bool              `toml:"capitalize"`
	Rules      map[string]string `toml:"rules"`
}

type Inject struct {
	// clipboard pastes via ctrl+v, none disables injection.
	Method string `toml:"method"`
}

type Hotkey struct {
	Enabled bool   `toml:"enabled"`
	Device  string `toml:"device"`
	Key     string `toml:"key"`
}

type Metrics struct {
	DBPath          string  `toml:"db_path"`
	ResourceSampleS float64 `toml:"resource_sample_s"`
}

type Broadcast struct {
	ReplaySegments int `toml:"replay_segments"`
}

// Default returns the configuration used when no file overrides it.
func Default() Config {
	return Config{
		Audio: Audio{
			SampleRate: 16000,
			Channels:   1,
			Cues:       true,
		},
		VAD: VAD{
			Aggressiveness: 2,
			SilenceS:       2.0,
			MinSegmentS:    1.0,
			MaxSegmentS:    30.0,
		},
		Pipeline: Pipeline{
			AudioQueue:  20,
			ResultQueue: 100,
		},
		Transcriber: Transcriber{
			URL:       "https://api.groq.com/openai/v1/audio/transcriptions",
			APIKeyEnv: "GROQ_API_KEY",
			Model:     "whisper-large-v3",
			TimeoutS:  30,
		},
		Transform: Transform{
			Capitalize: true,
		},
		Inject: Inject{
			Method: "clipboard",
		},
		Hotkey: Hotkey{
			Key: "KEY_F12",
		},
		Metrics: Metrics{
			ResourceSampleS: 5,
		},
		Broadcast: Broadcast{
			ReplaySegments: 50,
		},
	}
}

// DefaultPath returns the conventional config file location.
func DefaultPath() (string, error) {
	cfgHome := os.Getenv("XDG_CONFIG_HOME")
	if cfgHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		cfgHome = filepath.Join(home, ".config")
	}
	return filepath.Join(cfgHome, "voxd", "config.toml"), nil
}

// Load reads path over the defaults. A missing file is not an error,
// the defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return cfg, err
		}
		path = p
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("parsing %s: %w", path, err)
	}
	if undec := meta.Undecoded(); len(undec) > 0 {
		return cfg, fmt.Errorf("unknown config key %q in %s", undec[0].String(), path)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("audio.sample_rate must be positive")
	}
	if c.Audio.Channels <= 0 {
		return fmt.Errorf("audio.channels must be positive")
	}
	if c.VAD.Aggressiveness < 0 || c.VAD.Aggressiveness > 3 {
		return fmt.Errorf("vad.aggressiveness must be 0..3")
	}
	if c.VAD.MinSegmentS > c.VAD.MaxSegmentS {
		return fmt.Errorf("vad.min_segment_s exceeds vad.max_segment_s")
	}
	if c.Pipeline.AudioQueue <= 0 || c.Pipeline.ResultQueue <= 0 {
		return fmt.Errorf("pipeline queue sizes must be positive")
	}
	switch c.Inject.Method {
	case "clipboard", "none":
	default:
		return fmt.Errorf("inject.method must be clipboard or none")
	}
	return nil
}
