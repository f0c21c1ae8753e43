// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package homekit publishes registered televisions as HomeKit accessories.
//
// The bridge collects accessories during the discovery pass and starts the
// HAP server once the pass completes; HomeKit requires the full accessory
// set up front, so Publish rejects accessories added after Start. Pairing
// state is persisted in the bridge state directory.
package homekit

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/brutella/hap"
	"github.com/brutella/hap/accessory"

	"github.com/soothill/smartthings-tv-bridge/pkg/errors"
	"github.com/soothill/smartthings-tv-bridge/pkg/logger"
)

const (
	bridgeID      = 1
	pairingSubdir = "homekit"
)

// Bridge owns the HAP bridge accessory and the set of published accessories.
type Bridge struct {
	name     string
	pin      string
	stateDir string

	mu          sync.Mutex
	root        *accessory.Bridge
	accessories []*accessory.A
	started     bool
}

// NewBridge creates the root bridge accessory.
func NewBridge(name, pin, stateDir string) *Bridge {
	root := accessory.NewBridge(accessory.Info{
		Name:         name,
		SerialNumber: "0001",
		Manufacturer: "soothill",
		Model:        "smartthings-tv-bridge",
		Firmware:     "1.0.0",
	})
	root.A.Id = bridgeID

	return &Bridge{
		name:     name,
		pin:      pin,
		stateDir: stateDir,
		root:     root,
	}
}

// Publish registers an accessory with the bridge. Accessories carry stable
// ids derived from the device identifier, so pairing state stays valid
// across restarts regardless of discovery order.
func (b *Bridge) Publish(a *accessory.A) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return errors.NewRegistrationError("publish", a.Info.SerialNumber.Value(),
			errors.ErrNotReady)
	}

	b.accessories = append(b.accessories, a)
	logger.Info().Str("accessory", a.Info.Name.Value()).
		Uint64("id", a.Id).
		Msg("Accessory published to HomeKit bridge")
	return nil
}

// AccessoryCount returns the number of published accessories.
func (b *Bridge) AccessoryCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.accessories)
}

// Start runs the HAP server until the context is canceled. It must be
// called after the discovery pass has published all accessories.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	b.started = true
	accessories := make([]*accessory.A, len(b.accessories))
	copy(accessories, b.accessories)
	b.mu.Unlock()

	store := hap.NewFsStore(filepath.Join(b.stateDir, pairingSubdir))

	server, err := hap.NewServer(store, b.root.A, accessories...)
	if err != nil {
		return errors.NewRegistrationError("start hap server", "", err)
	}
	server.Pin = b.pin

	logger.Info().Str("bridge", b.name).
		Int("accessories", len(accessories)).
		Msg("Starting HomeKit bridge")

	return server.ListenAndServe(ctx)
}
