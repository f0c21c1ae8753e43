// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package television implements the per-device adapter that maps HomeKit
// television semantics onto SmartThings capability commands.
//
// Each adapter owns one HomeKit accessory and translates remote
// characteristic updates into API calls against the shared SmartThings
// client: Active maps to the switch capability (with a wake-on-LAN magic
// packet first, since many televisions drop off the network in standby),
// the speaker maps to audioVolume/audioMute, and the active input maps to
// samsungvd.mediaInputSource.
package television

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/brutella/hap/accessory"
	"github.com/brutella/hap/characteristic"
	"github.com/brutella/hap/service"
	"github.com/rs/zerolog"

	"github.com/soothill/smartthings-tv-bridge/mapping"
	"github.com/soothill/smartthings-tv-bridge/pkg/interfaces"
	"github.com/soothill/smartthings-tv-bridge/pkg/logger"
	"github.com/soothill/smartthings-tv-bridge/smartthings"
	"github.com/soothill/smartthings-tv-bridge/storage"
)

// SmartThings capabilities the adapter drives.
const (
	capSwitch = "switch"
	capVolume = "audioVolume"
	capMute   = "audioMute"
	capInput  = "samsungvd.mediaInputSource"
)

// HomeKit characteristic values.
const (
	hkInactive = 0
	hkActive   = 1

	hkVolumeIncrement = 0
	hkVolumeDecrement = 1

	hkInputTypeTuner = 2
	hkInputTypeHDMI  = 3

	hkVisible      = 0
	hkIsConfigured = 1
)

const commandTimeout = 10 * time.Second

// defaultInputs is the input list offered when the device supports input
// switching. SmartThings reports supported sources only through a status
// call, which registration deliberately does not make; the poller narrows
// the visible set afterwards.
var defaultInputs = []string{"TV", "HDMI1", "HDMI2", "HDMI3", "HDMI4"}

// Controller is the slice of the SmartThings client the adapter needs.
type Controller interface {
	ExecuteCommands(ctx context.Context, deviceID string, commands []smartthings.Command) error
	MainStatus(ctx context.Context, deviceID string) (smartthings.ComponentStatus, error)
}

// Events receives adapter callbacks. The coordinator implements it.
type Events interface {
	DeviceUnreachable(deviceID string, err error)
}

// Params carries everything the coordinator hands to a new adapter.
type Params struct {
	CapabilityLogging bool
	Events            Events
	Record            *storage.AccessoryRecord
	Device            smartthings.Device
	Component         smartthings.Component
	Client            Controller
	Mapping           *mapping.Mapping // nil when the device is unmapped
}

// Adapter bridges one television between HomeKit and SmartThings.
type Adapter struct {
	log       zerolog.Logger
	events    Events
	record    *storage.AccessoryRecord
	device    smartthings.Device
	component smartthings.Component
	client    Controller
	mapping   *mapping.Mapping

	acc     *accessory.Television
	speaker *service.Speaker
	volume  *characteristic.Volume
	inputs  []string
}

// New constructs the adapter and its HomeKit accessory. Construction is
// synchronous and makes no network calls.
func New(p Params) *Adapter {
	a := &Adapter{
		log:       logger.Component("television").With().Str("device_id", p.Device.DeviceID).Logger(),
		events:    p.Events,
		record:    p.Record,
		device:    p.Device,
		component: p.Component,
		client:    p.Client,
		mapping:   p.Mapping,
	}

	info := accessory.Info{
		Name:         p.Device.DisplayName(),
		SerialNumber: p.Device.DeviceID,
		Manufacturer: "SmartThings",
	}
	if p.Device.OCF != nil {
		if p.Device.OCF.ManufacturerName != "" {
			info.Manufacturer = p.Device.OCF.ManufacturerName
		}
		info.Model = p.Device.OCF.ModelNumber
		info.Firmware = p.Device.OCF.FirmwareVersion
	}

	a.acc = accessory.NewTelevision(info)
	a.acc.A.Id = stableID(p.Device.DeviceID)
	a.acc.Television.ConfiguredName.SetValue(p.Device.DisplayName())

	a.acc.Television.Active.OnValueRemoteUpdate(a.handleActive)

	if p.Component.HasCapability(capInput) {
		a.addInputSources()
	}
	if p.Component.HasCapability(capVolume) {
		a.addSpeaker()
	}

	if p.CapabilityLogging {
		for _, c := range p.Component.Capabilities {
			a.log.Debug().Str("capability", c.ID).Int("version", c.Version).
				Msg("Device capability")
		}
	}

	return a
}

// stableID derives a stable HomeKit accessory id from the device
// identifier. Ids above 1 are free; 1 is the bridge itself.
func stableID(deviceID string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(deviceID))
	id := h.Sum64()
	if id <= 1 {
		id = 2
	}
	return id
}

// Accessory returns the HomeKit accessory owned by this adapter.
func (a *Adapter) Accessory() *accessory.A {
	return a.acc.A
}

// DeviceID returns the SmartThings device identifier.
func (a *Adapter) DeviceID() string {
	return a.device.DeviceID
}

// DeviceName returns the user-visible device name.
func (a *Adapter) DeviceName() string {
	return a.device.DisplayName()
}

// addInputSources attaches input source services for the default input set.
func (a *Adapter) addInputSources() {
	a.inputs = append([]string(nil), defaultInputs...)

	for i, name := range a.inputs {
		input := service.NewInputSource()

		identifier := characteristic.NewIdentifier()
		identifier.SetValue(i + 1)
		input.AddC(identifier.C)

		input.ConfiguredName.SetValue(name)
		if name == "TV" {
			input.InputSourceType.SetValue(hkInputTypeTuner)
		} else {
			input.InputSourceType.SetValue(hkInputTypeHDMI)
		}
		input.IsConfigured.SetValue(hkIsConfigured)
		input.CurrentVisibilityState.SetValue(hkVisible)

		a.acc.A.AddS(input.S)
	}

	a.acc.Television.ActiveIdentifier.OnValueRemoteUpdate(a.handleInputChange)
}

// addSpeaker attaches a television speaker service with volume control.
func (a *Adapter) addSpeaker() {
	a.speaker = service.NewSpeaker()
	a.speaker.Mute.OnValueRemoteUpdate(a.handleMute)

	selector := characteristic.NewVolumeSelector()
	selector.OnValueRemoteUpdate(a.handleVolumeSelect)
	a.speaker.AddC(selector.C)

	a.volume = characteristic.NewVolume()
	a.speaker.AddC(a.volume.C)

	a.acc.A.AddS(a.speaker.S)
}

// handleActive powers the television on or off.
func (a *Adapter) handleActive(value int) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if value == hkActive {
		a.wake()
		a.execute(ctx, capSwitch, "on", nil)
		return
	}
	a.execute(ctx, capSwitch, "off", nil)
}

// handleInputChange switches the active media input.
func (a *Adapter) handleInputChange(value int) {
	if value < 1 || value > len(a.inputs) {
		a.log.Warn().Int("identifier", value).Msg("Unknown input identifier")
		return
	}
	name := a.inputs[value-1]

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	a.execute(ctx, capInput, "setInputSource", []any{name})
}

// handleMute toggles mute.
func (a *Adapter) handleMute(muted bool) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if muted {
		a.execute(ctx, capMute, "mute", nil)
		return
	}
	a.execute(ctx, capMute, "unmute", nil)
}

// handleVolumeSelect handles the remote's volume up/down buttons.
func (a *Adapter) handleVolumeSelect(value int) {
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	if value == hkVolumeIncrement {
		a.execute(ctx, capVolume, "volumeUp", nil)
		return
	}
	a.execute(ctx, capVolume, "volumeDown", nil)
}

// execute sends one capability command on the device's primary component.
func (a *Adapter) execute(ctx context.Context, capability, command string, args []any) {
	err := a.client.ExecuteCommands(ctx, a.device.DeviceID, []smartthings.Command{
		{
			Component:  a.component.ID,
			Capability: capability,
			Command:    command,
			Arguments:  args,
		},
	})
	if err != nil {
		a.log.Error().Err(err).
			Str("capability", capability).
			Str("command", command).
			Msg("Command failed")
		if a.events != nil {
			a.events.DeviceUnreachable(a.device.DeviceID, err)
		}
	}
}

// wake sends a wake-on-LAN packet when a MAC mapping is configured.
// TVs in standby often cannot be reached through the cloud API alone.
func (a *Adapter) wake() {
	if a.mapping == nil || a.mapping.MACAddress == "" {
		return
	}
	if err := SendWakePacket(a.mapping.MACAddress); err != nil {
		a.log.Warn().Err(err).Str("mac", a.mapping.MACAddress).
			Msg("Failed to send wake-on-LAN packet")
	}
}

// Status polls the device's main component and converts it to a reading.
func (a *Adapter) Status(ctx context.Context) (*interfaces.StatusReading, error) {
	status, err := a.client.MainStatus(ctx, a.device.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to read status: %w", err)
	}

	reading := &interfaces.StatusReading{
		DeviceID:    a.device.DeviceID,
		DeviceName:  a.device.DisplayName(),
		Timestamp:   time.Now(),
		PowerOn:     status.StringAttribute(capSwitch, "switch") == "on",
		InputSource: status.StringAttribute(capInput, "inputSource"),
	}
	if v, ok := status.IntAttribute(capVolume, "volume"); ok {
		reading.Volume = v
	}
	if m := status.StringAttribute(capMute, "mute"); m != "" {
		reading.Muted = m == "muted"
	}
	return reading, nil
}

// Apply pushes a polled reading into the HomeKit characteristics so the
// Home app reflects changes made with the physical remote.
func (a *Adapter) Apply(reading *interfaces.StatusReading) {
	if reading == nil {
		return
	}

	if reading.PowerOn {
		a.acc.Television.Active.SetValue(hkActive)
	} else {
		a.acc.Television.Active.SetValue(hkInactive)
	}

	for i, name := range a.inputs {
		if name == reading.InputSource {
			a.acc.Television.ActiveIdentifier.SetValue(i + 1)
			break
		}
	}

	if a.speaker != nil {
		a.speaker.Mute.SetValue(reading.Muted)
		if a.volume != nil {
			a.volume.SetValue(reading.Volume)
		}
	}
}
