// Package doctor runs setup diagnostics so users can see why the
// daemon would not work before starting it.
package doctor

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"voxd/audio"
	"voxd/config"
	"voxd/hotkey"
	"voxd/metrics"
	"voxd/paths"
)

// Run executes the checks and returns an exit code (0=all pass,
// 1=any fail).
func Run(configPath string) int {
	fmt.Println("voxd doctor - system diagnostics")
	fmt.Println("================================")

	cfg, cfgOK := checkConfig(configPath)
	checks := []struct {
		name string
		fn   func() bool
	}{
		{"socket directory", checkSocketDir},
		{"audio capture", func() bool { return checkAudio(cfg) }},
		{"transcription API", func() bool { return checkAPI(cfg) }},
		{"hotkey backend", checkHotkey},
		{"metrics database", func() bool { return checkMetricsDB(cfg) }},
	}

	allPass := cfgOK
	for i, c := range checks {
		fmt.Printf("\n[%d/%d] %s\n", i+1, len(checks), c.name)
		if !c.fn() {
			allPass = false
		}
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkConfig(path string) (config.Config, bool) {
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return config.Default(), false
	}
	return cfg, true
}

func checkSocketDir() bool {
	dir, err := paths.SocketDir()
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("  PASS: %s\n", dir)
	return true
}

func checkAudio(cfg config.Config) bool {
	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio backend: %v\n", err)
		return false
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return false
	}
	if _, err := audio.FindDevice(ctx, cfg.Audio.Device); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	for _, d := range devices {
		tag := ""
		if audio.IsBluetooth(d.Name) {
			tag = " (bluetooth, lower quality)"
		}
		fmt.Printf("  found: %s%s\n", d.Name, tag)
	}
	fmt.Printf("  PASS: %d capture device(s)\n", len(devices))
	return true
}

func checkAPI(cfg config.Config) bool {
	key := os.Getenv(cfg.Transcriber.APIKeyEnv)
	if key == "" {
		fmt.Printf("  FAIL: %s is not set\n", cfg.Transcriber.APIKeyEnv)
		return false
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Head(cfg.Transcriber.URL)
	if err != nil {
		fmt.Printf("  FAIL: endpoint unreachable: %v\n", err)
		return false
	}
	resp.Body.Close()
	fmt.Printf("  PASS: key set, %s reachable\n", cfg.Transcriber.URL)
	return true
}

func checkHotkey() bool {
	msg, err := hotkey.Diagnose()
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("  PASS: %s\n", msg)
	return true
}

func checkMetricsDB(cfg config.Config) bool {
	path := cfg.Metrics.DBPath
	if path == "" {
		var err error
		path, err = metrics.DefaultDBPath()
		if err != nil {
			fmt.Printf("  FAIL: %v\n", err)
			return false
		}
	}
	store, err := metrics.OpenStore(path)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	lt, err := store.Lifetime()
	store.Close()
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}
	fmt.Printf("  PASS: %s (%d sessions recorded)\n", path, lt.Sessions)
	return true
}
