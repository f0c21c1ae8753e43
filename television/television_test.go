// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package television

import (
	"context"
	"fmt"
	"testing"

	"github.com/soothill/smartthings-tv-bridge/mapping"
	"github.com/soothill/smartthings-tv-bridge/pkg/interfaces"
	"github.com/soothill/smartthings-tv-bridge/smartthings"
	"github.com/soothill/smartthings-tv-bridge/storage"
)

type fakeController struct {
	commands []smartthings.Command
	status   smartthings.ComponentStatus
	execErr  error
	statErr  error
}

func (f *fakeController) ExecuteCommands(ctx context.Context, deviceID string, commands []smartthings.Command) error {
	f.commands = append(f.commands, commands...)
	return f.execErr
}

func (f *fakeController) MainStatus(ctx context.Context, deviceID string) (smartthings.ComponentStatus, error) {
	return f.status, f.statErr
}

type fakeEvents struct {
	unreachable []string
}

func (f *fakeEvents) DeviceUnreachable(deviceID string, err error) {
	f.unreachable = append(f.unreachable, deviceID)
}

func testDevice() smartthings.Device {
	return smartthings.Device{
		DeviceID: "tv-1",
		Label:    "Living Room TV",
		OCF: &smartthings.OCF{
			OCFDeviceType:    smartthings.DeviceTypeTelevision,
			ManufacturerName: "Samsung Electronics",
			ModelNumber:      "QE55Q80",
			FirmwareVersion:  "T-KTSUABC-1337.3",
		},
		Components: []smartthings.Component{testComponent()},
	}
}

func testComponent() smartthings.Component {
	return smartthings.Component{
		ID: "main",
		Capabilities: []smartthings.Capability{
			{ID: "switch", Version: 1},
			{ID: "audioVolume", Version: 1},
			{ID: "audioMute", Version: 1},
			{ID: "samsungvd.mediaInputSource", Version: 1},
		},
	}
}

func newTestAdapter(t *testing.T, client Controller, events Events) *Adapter {
	t.Helper()
	device := testDevice()
	return New(Params{
		Events:    events,
		Record:    &storage.AccessoryRecord{DeviceID: device.DeviceID},
		Device:    device,
		Component: device.Components[0],
		Client:    client,
	})
}

func TestNew_AccessoryIdentity(t *testing.T) {
	a := newTestAdapter(t, &fakeController{}, nil)

	acc := a.Accessory()
	if acc == nil {
		t.Fatal("Accessory() returned nil")
	}
	if acc.Id <= 1 {
		t.Errorf("accessory id = %d, want > 1", acc.Id)
	}
	if got := acc.Info.Name.Value(); got != "Living Room TV" {
		t.Errorf("accessory name = %q, want %q", got, "Living Room TV")
	}
	if got := acc.Info.SerialNumber.Value(); got != "tv-1" {
		t.Errorf("serial number = %q, want %q", got, "tv-1")
	}
}

func TestStableID_Deterministic(t *testing.T) {
	if stableID("tv-1") != stableID("tv-1") {
		t.Error("stableID is not deterministic")
	}
	if stableID("tv-1") == stableID("tv-2") {
		t.Error("stableID collides for distinct device ids")
	}
	if stableID("tv-1") <= 1 {
		t.Error("stableID must not collide with the bridge id")
	}
}

func TestHandleActive_PowerCommands(t *testing.T) {
	tests := []struct {
		name        string
		value       int
		wantCommand string
	}{
		{"power on", hkActive, "on"},
		{"power off", hkInactive, "off"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeController{}
			a := newTestAdapter(t, client, nil)

			a.handleActive(tt.value)

			if len(client.commands) != 1 {
				t.Fatalf("sent %d commands, want 1", len(client.commands))
			}
			cmd := client.commands[0]
			if cmd.Capability != "switch" || cmd.Command != tt.wantCommand {
				t.Errorf("sent %s.%s, want switch.%s", cmd.Capability, cmd.Command, tt.wantCommand)
			}
			if cmd.Component != "main" {
				t.Errorf("component = %q, want %q", cmd.Component, "main")
			}
		})
	}
}

func TestHandleInputChange(t *testing.T) {
	client := &fakeController{}
	a := newTestAdapter(t, client, nil)

	a.handleInputChange(2)

	if len(client.commands) != 1 {
		t.Fatalf("sent %d commands, want 1", len(client.commands))
	}
	cmd := client.commands[0]
	if cmd.Capability != "samsungvd.mediaInputSource" || cmd.Command != "setInputSource" {
		t.Fatalf("sent %s.%s, want samsungvd.mediaInputSource.setInputSource", cmd.Capability, cmd.Command)
	}
	if len(cmd.Arguments) != 1 || cmd.Arguments[0] != "HDMI1" {
		t.Errorf("arguments = %v, want [HDMI1]", cmd.Arguments)
	}
}

func TestHandleInputChange_OutOfRange(t *testing.T) {
	client := &fakeController{}
	a := newTestAdapter(t, client, nil)

	a.handleInputChange(0)
	a.handleInputChange(99)

	if len(client.commands) != 0 {
		t.Errorf("sent %d commands for out-of-range identifiers, want 0", len(client.commands))
	}
}

func TestHandleMute(t *testing.T) {
	tests := []struct {
		name        string
		muted       bool
		wantCommand string
	}{
		{"mute", true, "mute"},
		{"unmute", false, "unmute"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeController{}
			a := newTestAdapter(t, client, nil)

			a.handleMute(tt.muted)

			if len(client.commands) != 1 {
				t.Fatalf("sent %d commands, want 1", len(client.commands))
			}
			if got := client.commands[0].Command; got != tt.wantCommand {
				t.Errorf("command = %q, want %q", got, tt.wantCommand)
			}
		})
	}
}

func TestHandleVolumeSelect(t *testing.T) {
	tests := []struct {
		name        string
		value       int
		wantCommand string
	}{
		{"volume up", hkVolumeIncrement, "volumeUp"},
		{"volume down", hkVolumeDecrement, "volumeDown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeController{}
			a := newTestAdapter(t, client, nil)

			a.handleVolumeSelect(tt.value)

			if len(client.commands) != 1 {
				t.Fatalf("sent %d commands, want 1", len(client.commands))
			}
			if got := client.commands[0].Command; got != tt.wantCommand {
				t.Errorf("command = %q, want %q", got, tt.wantCommand)
			}
		})
	}
}

func TestExecute_FailureNotifiesEvents(t *testing.T) {
	client := &fakeController{execErr: fmt.Errorf("device offline")}
	events := &fakeEvents{}
	a := newTestAdapter(t, client, events)

	a.handleMute(true)

	if len(events.unreachable) != 1 || events.unreachable[0] != "tv-1" {
		t.Errorf("unreachable callbacks = %v, want [tv-1]", events.unreachable)
	}
}

func TestStatus(t *testing.T) {
	client := &fakeController{
		status: smartthings.ComponentStatus{
			"switch": {
				"switch": {Value: "on"},
			},
			"audioVolume": {
				"volume": {Value: float64(23)},
			},
			"audioMute": {
				"mute": {Value: "muted"},
			},
			"samsungvd.mediaInputSource": {
				"inputSource": {Value: "HDMI2"},
			},
		},
	}
	a := newTestAdapter(t, client, nil)

	reading, err := a.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}

	if !reading.PowerOn {
		t.Error("PowerOn = false, want true")
	}
	if reading.Volume != 23 {
		t.Errorf("Volume = %d, want 23", reading.Volume)
	}
	if !reading.Muted {
		t.Error("Muted = false, want true")
	}
	if reading.InputSource != "HDMI2" {
		t.Errorf("InputSource = %q, want %q", reading.InputSource, "HDMI2")
	}
	if reading.DeviceID != "tv-1" {
		t.Errorf("DeviceID = %q, want %q", reading.DeviceID, "tv-1")
	}
}

func TestStatus_Error(t *testing.T) {
	client := &fakeController{statErr: fmt.Errorf("http 500")}
	a := newTestAdapter(t, client, nil)

	if _, err := a.Status(context.Background()); err == nil {
		t.Error("Status() error = nil, want error")
	}
}

func TestApply_SyncsCharacteristics(t *testing.T) {
	a := newTestAdapter(t, &fakeController{}, nil)

	a.Apply(&interfaces.StatusReading{
		DeviceID:    "tv-1",
		PowerOn:     true,
		Volume:      40,
		Muted:       true,
		InputSource: "HDMI3",
	})

	if got := a.acc.Television.Active.Value(); got != hkActive {
		t.Errorf("Active = %d, want %d", got, hkActive)
	}
	if got := a.acc.Television.ActiveIdentifier.Value(); got != 4 {
		t.Errorf("ActiveIdentifier = %d, want 4", got)
	}
	if !a.speaker.Mute.Value() {
		t.Error("Mute = false, want true")
	}
	if got := a.volume.Value(); got != 40 {
		t.Errorf("Volume = %d, want 40", got)
	}

	a.Apply(nil) // must not panic
}

func TestWake_NoMappingIsNoOp(t *testing.T) {
	client := &fakeController{}
	a := newTestAdapter(t, client, nil)

	// No mapping configured; wake must silently do nothing.
	a.wake()
}

func TestSendWakePacket_InvalidMAC(t *testing.T) {
	tests := []struct {
		name string
		mac  string
	}{
		{"empty", ""},
		{"garbage", "not-a-mac"},
		{"too long", "01:02:03:04:05:06:07:08"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := SendWakePacket(tt.mac); err == nil {
				t.Errorf("SendWakePacket(%q) error = nil, want error", tt.mac)
			}
		})
	}
}

func TestNew_MappedDeviceKeepsMapping(t *testing.T) {
	device := testDevice()
	m := &mapping.Mapping{DeviceID: "tv-1", MACAddress: "AA:BB:CC:DD:EE:FF", IPAddress: "10.0.0.5"}
	a := New(Params{
		Record:    &storage.AccessoryRecord{DeviceID: device.DeviceID},
		Device:    device,
		Component: device.Components[0],
		Client:    &fakeController{},
		Mapping:   m,
	})

	if a.mapping == nil || a.mapping.MACAddress != "AA:BB:CC:DD:EE:FF" {
		t.Errorf("mapping = %+v, want MAC AA:BB:CC:DD:EE:FF", a.mapping)
	}
}
