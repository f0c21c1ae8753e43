// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package mapping provides the static device mapping table.
//
// SmartThings does not expose a device's network address, so features like
// wake-on-LAN need a user-supplied association between a SmartThings device
// identifier and the device's MAC and IP address. The table is read straight
// from configuration and never changes at runtime.
package mapping

// Mapping associates a SmartThings device identifier with a physical
// network address. Values are passed through as configured; address formats
// are not validated here, the consuming adapter handles malformed addresses.
type Mapping struct {
	DeviceID   string `yaml:"device_id" json:"deviceId"`
	MACAddress string `yaml:"mac_address" json:"macAddress"`
	IPAddress  string `yaml:"ip_address" json:"ipAddress"`
}

// Store holds the configured device mappings.
type Store struct {
	entries []Mapping
}

// NewStore creates a store from the configured mapping entries.
func NewStore(entries []Mapping) *Store {
	return &Store{entries: entries}
}

// Lookup returns the mapping for the given device identifier. The second
// return value is false when no mapping is configured; an unmapped device is
// not an error, supplementary control features are simply unavailable for it.
func (s *Store) Lookup(deviceID string) (Mapping, bool) {
	for _, m := range s.entries {
		if m.DeviceID == deviceID {
			return m, true
		}
	}
	return Mapping{}, false
}

// Len returns the number of configured mappings.
func (s *Store) Len() int {
	return len(s.entries)
}
