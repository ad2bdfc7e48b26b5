// voxd is a voice dictation daemon. It records from the microphone,
// segments speech, transcribes it remotely and types the text into
// the focused window. Control it with `voxd toggle|status|quit`.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voxd/audio"
	"voxd/broadcast"
	"voxd/config"
	"voxd/daemon"
	"voxd/doctor"
	"voxd/hotkey"
	"voxd/inject"
	"voxd/ipc"
	"voxd/log"
	"voxd/metrics"
	"voxd/paths"
	"voxd/transcriber"
)

var version = "dev"

func main() {
	configFlag := flag.String("config", "", "config file path (default: ~/.config/voxd/config.toml)")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location)")
	versionFlag := flag.Bool("version", false, "print version and exit")
	verboseFlag := flag.Bool("verbose", false, "echo logs to stderr")
	flag.Parse()

	if *versionFlag {
		fmt.Println("voxd", version)
		return
	}

	if args := flag.Args(); len(args) > 0 {
		if args[0] == "doctor" {
			os.Exit(doctor.Run(*configFlag))
		}
		os.Exit(runCommand(args[0]))
	}

	os.Exit(runDaemon(*configFlag, *logPathFlag, *verboseFlag))
}

// runCommand sends one control action to a running daemon.
func runCommand(action string) int {
	switch action {
	case ipc.ActionToggle, ipc.ActionStatus, ipc.ActionQuit:
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want toggle, status, quit or doctor)\n", action)
		return 2
	}
	sock, err := paths.CommandSocket()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	resp, err := ipc.Send(sock, action)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(resp.Message)
	return 0
}

func runDaemon(configPath, logPath string, verbose bool) int {
	logDir, err := log.ResolveDir(logPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "resolving log dir:", err)
		return 1
	}
	log.SetDir(logDir)
	if verbose {
		log.EchoStderr(true)
	}
	if err := log.Init(); err != nil {
		fmt.Fprintln(os.Stderr, "opening logs:", err)
		return 1
	}
	defer log.Close()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Errorf("config: %v", err)
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	audioCtx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio: %v", err)
		fmt.Fprintln(os.Stderr, "audio backend unavailable:", err)
		return 1
	}
	defer audioCtx.Close()

	apiKey := os.Getenv(cfg.Transcriber.APIKeyEnv)
	if apiKey == "" {
		fmt.Fprintf(os.Stderr, "transcription API key missing: set %s\n", cfg.Transcriber.APIKeyEnv)
		return 1
	}
	tr := transcriber.NewRemote(transcriber.RemoteConfig{
		URL:      cfg.Transcriber.URL,
		APIKey:   apiKey,
		Model:    cfg.Transcriber.Model,
		Language: cfg.Transcriber.Language,
		Timeout:  secondsToDuration(cfg.Transcriber.TimeoutS),
	})

	var inj inject.Injector = inject.None{}
	if cfg.Inject.Method == "clipboard" {
		inj = inject.NewKeyboard()
	}

	dbPath := cfg.Metrics.DBPath
	if dbPath == "" {
		dbPath, err = metrics.DefaultDBPath()
		if err != nil {
			log.Errorf("metrics db path: %v", err)
		}
	}
	var store *metrics.Store
	if dbPath != "" {
		store, err = metrics.OpenStore(dbPath)
		if err != nil {
			// Run without persistence rather than refuse to start.
			log.Errorf("metrics store: %v", err)
			store = nil
		} else {
			defer store.Close()
		}
	}

	var hk hotkey.Hotkey
	if cfg.Hotkey.Enabled {
		hk, err = hotkey.New(cfg.Hotkey.Key, cfg.Hotkey.Device)
		if err != nil {
			log.Warnf("hotkey disabled: %v", err)
			if diag, derr := hotkey.Diagnose(); derr == nil {
				log.Infof("hotkey diagnostics: %s", diag)
			}
		}
	}

	d, err := daemon.New(daemon.Options{
		Config:      cfg,
		AudioCtx:    audioCtx,
		Transcriber: tr,
		Injector:    inj,
		Collector:   metrics.NewCollector(store),
		Broadcaster: broadcast.New(cfg.Broadcast.ReplaySegments),
		Hotkey:      hk,
	})
	if err != nil {
		log.Errorf("daemon: %v", err)
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infof("voxd %s starting", version)
	if err := d.Run(ctx); err != nil && ctx.Err() == nil {
		log.Errorf("daemon: %v", err)
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	log.Infof("voxd stopped")
	return 0
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
