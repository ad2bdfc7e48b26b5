package audio

import (
	"strings"
	"testing"
)

type listContext struct {
	devices []DeviceInfo
}

func (l *listContext) Devices() ([]DeviceInfo, error) { return l.devices, nil }
func (l *listContext) Close()                         {}
func (l *listContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	return nil, nil
}

func TestFindDeviceEmptyNameIsDefault(t *testing.T) {
	d, err := FindDevice(&listContext{}, "")
	if err != nil {
		t.Fatal(err)
	}
	if d != nil {
		t.Errorf("got %v, want nil (system default)", d)
	}
}

func TestFindDeviceSubstringMatch(t *testing.T) {
	ctx := &listContext{devices: []DeviceInfo{
		{ID: "0", Name: "Built-in Audio Analog Stereo"},
		{ID: "1", Name: "Blue Yeti Nano"},
	}}
	d, err := FindDevice(ctx, "yeti")
	if err != nil {
		t.Fatal(err)
	}
	if d == nil || d.ID != "1" {
		t.Errorf("got %v, want Yeti", d)
	}
}

func TestFindDeviceNoMatch(t *testing.T) {
	ctx := &listContext{devices: []DeviceInfo{{ID: "0", Name: "Built-in"}}}
	_, err := FindDevice(ctx, "snowball")
	if err == nil || !strings.Contains(err.Error(), "snowball") {
		t.Errorf("err = %v", err)
	}
}

func TestFakeCaptureStopBeforeStart(t *testing.T) {
	ctx := NewFakePCMContext(nil, false)
	dev, err := ctx.NewCapture(nil, CaptureConfig{})
	if err != nil {
		t.Fatal(err)
	}
	// Must not panic when the capture never started.
	dev.Stop()
	dev.Close()
}

func TestIsBluetooth(t *testing.T) {
	if !IsBluetooth("WH-1000XM4 Headset") {
		t.Error("sony headset not detected")
	}
	if IsBluetooth("Built-in Audio Analog Stereo") {
		t.Error("builtin flagged as bluetooth")
	}
}
