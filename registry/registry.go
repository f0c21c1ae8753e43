// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package registry coordinates device discovery and accessory registration.
//
// The coordinator runs a single discovery pass against the SmartThings API
// once the bridge signals it is ready: it lists all devices on the account,
// dispatches each one by its OCF device type through a closed dispatch
// table, and registers a HomeKit television accessory for every supported
// device. Devices with unsupported types are skipped with an informational
// log. A registration failure on one device never aborts the pass for the
// others.
//
// Without an API token the coordinator constructs into a terminal inert
// state: Discover becomes a no-op and the bridge serves only previously
// cached accessories.
package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/brutella/hap/accessory"
	"github.com/rs/zerolog"

	"github.com/soothill/smartthings-tv-bridge/mapping"
	"github.com/soothill/smartthings-tv-bridge/pkg/errors"
	"github.com/soothill/smartthings-tv-bridge/pkg/interfaces"
	"github.com/soothill/smartthings-tv-bridge/pkg/logger"
	"github.com/soothill/smartthings-tv-bridge/pkg/metrics"
	"github.com/soothill/smartthings-tv-bridge/smartthings"
	"github.com/soothill/smartthings-tv-bridge/storage"
	"github.com/soothill/smartthings-tv-bridge/television"
)

// State describes the coordinator lifecycle.
type State int

const (
	// StateUninitialized is terminal: no token was configured and the
	// coordinator will never contact the API.
	StateUninitialized State = iota
	// StateReady means the coordinator can run or has run discovery.
	StateReady
	// StateDiscovering is set for the duration of a discovery pass.
	StateDiscovering
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateDiscovering:
		return "discovering"
	default:
		return "unknown"
	}
}

// Client is the slice of the SmartThings client the coordinator uses.
type Client interface {
	Devices(ctx context.Context) ([]smartthings.Device, error)
	television.Controller
}

// Publisher accepts accessories for HomeKit publication.
type Publisher interface {
	Publish(a *accessory.A) error
}

// Params configures a Coordinator.
type Params struct {
	Token             string
	Client            Client
	Cache             *storage.AccessoryCache
	Mappings          *mapping.Store
	Publisher         Publisher
	Notifier          interfaces.Notifier
	CapabilityLogging bool
}

// registrationFunc registers one device of a specific OCF type.
type registrationFunc func(ctx context.Context, device smartthings.Device) error

// Coordinator owns the discovery pass and the registered adapter set.
type Coordinator struct {
	log       zerolog.Logger
	client    Client
	cache     *storage.AccessoryCache
	mappings  *mapping.Store
	publisher Publisher
	notifier  interfaces.Notifier
	capLog    bool

	dispatch map[string]registrationFunc

	mu        sync.Mutex
	state     State
	completed bool
	restored  map[string]*storage.AccessoryRecord
	adapters  map[string]*television.Adapter
}

// NewCoordinator creates the coordinator. A missing token is not an error:
// the coordinator logs the condition and stays inert so cached accessories
// can still be served.
func NewCoordinator(p Params) *Coordinator {
	c := &Coordinator{
		log:       logger.Component("registry"),
		client:    p.Client,
		cache:     p.Cache,
		mappings:  p.Mappings,
		publisher: p.Publisher,
		notifier:  p.Notifier,
		capLog:    p.CapabilityLogging,
		state:     StateReady,
		restored:  make(map[string]*storage.AccessoryRecord),
		adapters:  make(map[string]*television.Adapter),
	}
	c.dispatch = map[string]registrationFunc{
		smartthings.DeviceTypeTelevision: c.registerTelevision,
	}

	if p.Token == "" {
		c.state = StateUninitialized
		c.log.Warn().Msg("No SmartThings token configured, discovery disabled")
	}

	return c
}

// State returns the current coordinator state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Adapters returns all registered television adapters.
func (c *Coordinator) Adapters() []*television.Adapter {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*television.Adapter, 0, len(c.adapters))
	for _, a := range c.adapters {
		out = append(out, a)
	}
	return out
}

// Adapter returns the adapter for a device identifier.
func (c *Coordinator) Adapter(deviceID string) (*television.Adapter, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.adapters[deviceID]
	return a, ok
}

// Restore indexes the cached accessory records. It runs before Discover so
// a device that has dropped off the account, or an offline API, cannot
// erase accessories HomeKit already knows about.
func (c *Coordinator) Restore() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, record := range c.cache.All() {
		c.restored[record.DeviceID] = record
		c.log.Info().Str("device_id", record.DeviceID).
			Str("name", record.Name).
			Msg("Restored cached accessory")
	}
}

// PublishCached registers every restored record that discovery has not
// already handled. It is the fallback path when the API cannot be reached
// or no token is configured: the bridge still serves the accessories
// HomeKit already knows about, built from their stashed device snapshots.
func (c *Coordinator) PublishCached(ctx context.Context) {
	c.mu.Lock()
	pending := make([]*storage.AccessoryRecord, 0, len(c.restored))
	for id, record := range c.restored {
		if _, registered := c.adapters[id]; !registered {
			pending = append(pending, record)
		}
	}
	c.mu.Unlock()

	for _, record := range pending {
		if err := c.registerTelevision(ctx, record.Context); err != nil {
			c.log.Error().Err(err).Str("device_id", record.DeviceID).
				Msg("Failed to rebuild cached accessory")
			metrics.RegistrationErrors.Inc()
		}
	}
}

// Discover runs the discovery pass. The pass runs at most once
// successfully: a failed device listing leaves the coordinator ready for a
// retry, while a completed pass makes further calls no-ops. Per-device
// registration failures are logged and counted but do not abort the pass.
func (c *Coordinator) Discover(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.state == StateUninitialized:
		c.mu.Unlock()
		c.log.Debug().Msg("Discovery skipped, coordinator is uninitialized")
		return nil
	case c.state == StateDiscovering:
		c.mu.Unlock()
		return nil
	case c.completed:
		c.mu.Unlock()
		return nil
	}
	c.state = StateDiscovering
	c.mu.Unlock()

	start := time.Now()
	err := c.runDiscovery(ctx)
	metrics.DiscoveryDuration.Observe(time.Since(start).Seconds())

	c.mu.Lock()
	c.state = StateReady
	if err == nil {
		c.completed = true
	}
	c.mu.Unlock()

	return err
}

func (c *Coordinator) runDiscovery(ctx context.Context) error {
	devices, err := c.client.Devices(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("Device listing failed")
		if c.notifier != nil && c.notifier.IsEnabled() {
			if nerr := c.notifier.SendAlert(ctx, "error", "Device Discovery Failed",
				fmt.Sprintf("Listing SmartThings devices failed: %v", err)); nerr != nil {
				c.log.Warn().Err(nerr).Msg("Failed to send discovery alert")
			}
		}
		return fmt.Errorf("failed to list devices: %w", err)
	}

	c.log.Info().Int("devices", len(devices)).Msg("Device listing complete")
	metrics.DevicesDiscovered.Set(float64(len(devices)))

	seen := make(map[string]bool, len(devices))
	for _, device := range devices {
		seen[device.DeviceID] = true

		handler, ok := c.dispatch[device.TypeTag()]
		if !ok {
			c.log.Info().Str("device_id", device.DeviceID).
				Str("name", device.DisplayName()).
				Str("type", device.TypeTag()).
				Msg("Skipping device with unsupported type")
			metrics.DevicesSkipped.WithLabelValues(metrics.SkipReasonUnsupportedType).Inc()
			continue
		}

		if err := handler(ctx, device); err != nil {
			c.log.Error().Err(err).Str("device_id", device.DeviceID).
				Str("name", device.DisplayName()).
				Msg("Device registration failed")
			metrics.RegistrationErrors.Inc()
		}
	}

	// Cached devices no longer on the account still get their accessory
	// rebuilt from the stashed snapshot so HomeKit keeps working.
	c.mu.Lock()
	leftovers := make([]*storage.AccessoryRecord, 0)
	for id, record := range c.restored {
		if !seen[id] {
			leftovers = append(leftovers, record)
		}
	}
	c.mu.Unlock()

	for _, record := range leftovers {
		if err := c.registerTelevision(ctx, record.Context); err != nil {
			c.log.Error().Err(err).Str("device_id", record.DeviceID).
				Msg("Failed to rebuild cached accessory")
			metrics.RegistrationErrors.Inc()
		}
	}

	return nil
}

// registerTelevision registers one television device: persists a fresh
// accessory record, builds the adapter, and publishes its accessory.
func (c *Coordinator) registerTelevision(ctx context.Context, device smartthings.Device) error {
	component, ok := device.PrimaryComponent()
	if !ok {
		c.log.Info().Str("device_id", device.DeviceID).
			Str("name", device.DisplayName()).
			Msg("Skipping television with no components")
		metrics.DevicesSkipped.WithLabelValues(metrics.SkipReasonNoComponents).Inc()
		return nil
	}

	c.mu.Lock()
	if _, exists := c.adapters[device.DeviceID]; exists {
		c.mu.Unlock()
		return errors.NewRegistrationError("register", device.DeviceID, errors.ErrAlreadyRegistered)
	}
	record, cached := c.restored[device.DeviceID]
	c.mu.Unlock()

	if cached {
		// Refresh the stashed snapshot so the cache never serves stale
		// component or name data on the next restart.
		record.Context = device
		record.Name = device.DisplayName()
	} else {
		record = &storage.AccessoryRecord{
			DeviceID:     device.DeviceID,
			Name:         device.DisplayName(),
			Category:     storage.CategoryTelevision,
			Context:      device,
			RegisteredAt: time.Now(),
		}
	}
	if err := c.cache.Save(record); err != nil {
		return errors.NewRegistrationError("persist", device.DeviceID, err)
	}

	var m *mapping.Mapping
	if c.mappings != nil {
		if entry, ok := c.mappings.Lookup(device.DeviceID); ok {
			m = &entry
		}
	}

	adapter := television.New(television.Params{
		CapabilityLogging: c.capLog,
		Events:            c,
		Record:            record,
		Device:            device,
		Component:         component,
		Client:            c.client,
		Mapping:           m,
	})

	if err := c.publisher.Publish(adapter.Accessory()); err != nil {
		return errors.NewRegistrationError("publish", device.DeviceID, err)
	}

	c.mu.Lock()
	c.adapters[device.DeviceID] = adapter
	c.mu.Unlock()

	metrics.TelevisionsRegistered.Inc()
	c.log.Info().Str("device_id", device.DeviceID).
		Str("name", device.DisplayName()).
		Bool("restored", cached).
		Bool("mapped", m != nil).
		Msg("Television registered")

	return nil
}

// DeviceUnreachable is called by adapters when a command fails.
func (c *Coordinator) DeviceUnreachable(deviceID string, err error) {
	c.log.Warn().Err(err).Str("device_id", deviceID).Msg("Device unreachable")
}
