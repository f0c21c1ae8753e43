// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package smartthings

import "time"

// OCF device type tags used by the registration dispatch table.
const (
	DeviceTypeTelevision = "oic.d.tv"
	DeviceTypeSwitch     = "oic.d.switch"
)

// Device is a read-only projection of a SmartThings device descriptor.
// The coordinator only reads it; the API owns the data.
type Device struct {
	DeviceID         string      `json:"deviceId"`
	Name             string      `json:"name"`
	Label            string      `json:"label"`
	ManufacturerName string      `json:"manufacturerName"`
	Type             string      `json:"type"`
	Components       []Component `json:"components"`
	OCF              *OCF        `json:"ocf,omitempty"`
}

// OCF carries the OCF metadata block of a device descriptor.
type OCF struct {
	OCFDeviceType    string `json:"ocfDeviceType"`
	Name             string `json:"name"`
	ManufacturerName string `json:"manufacturerName"`
	ModelNumber      string `json:"modelNumber"`
	FirmwareVersion  string `json:"firmwareVersion"`
}

// Component is a named functional grouping of capabilities.
type Component struct {
	ID           string       `json:"id"`
	Label        string       `json:"label"`
	Capabilities []Capability `json:"capabilities"`
}

// Capability identifies a single controllable or queryable feature.
type Capability struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
}

// Command is a capability command sent to a device.
type Command struct {
	Component  string `json:"component"`
	Capability string `json:"capability"`
	Command    string `json:"command"`
	Arguments  []any  `json:"arguments,omitempty"`
}

// Health is the reported connectivity state of a device.
type Health struct {
	DeviceID    string    `json:"deviceId"`
	State       string    `json:"state"`
	LastUpdated time.Time `json:"lastUpdatedDate"`
}

// AttributeValue is a single attribute of a component status.
type AttributeValue struct {
	Value any    `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

// ComponentStatus maps capability -> attribute -> value for one component.
type ComponentStatus map[string]map[string]AttributeValue

// DisplayName returns the user-visible name of the device. SmartThings puts
// the user's chosen name in label and the catalog name in name.
func (d *Device) DisplayName() string {
	if d.Label != "" {
		return d.Label
	}
	return d.Name
}

// TypeTag returns the OCF device type tag, or an empty string when the
// descriptor carries no OCF block.
func (d *Device) TypeTag() string {
	if d.OCF == nil {
		return ""
	}
	return d.OCF.OCFDeviceType
}

// PrimaryComponent returns the device's main component: the component with
// id "main" when present, otherwise the first component in API order. The
// second return value is false when the device exposes no components.
func (d *Device) PrimaryComponent() (Component, bool) {
	if len(d.Components) == 0 {
		return Component{}, false
	}
	for _, c := range d.Components {
		if c.ID == "main" {
			return c, true
		}
	}
	return d.Components[0], true
}

// HasCapability reports whether the component exposes the given capability.
func (c Component) HasCapability(id string) bool {
	for _, cap := range c.Capabilities {
		if cap.ID == id {
			return true
		}
	}
	return false
}

// StringAttribute returns the named attribute as a string, or "" when the
// attribute is absent or not a string.
func (s ComponentStatus) StringAttribute(capability, attribute string) string {
	if attrs, ok := s[capability]; ok {
		if v, ok := attrs[attribute]; ok {
			if str, ok := v.Value.(string); ok {
				return str
			}
		}
	}
	return ""
}

// IntAttribute returns the named attribute as an int. JSON numbers decode as
// float64, so both numeric forms are accepted. The second return value is
// false when the attribute is absent or not numeric.
func (s ComponentStatus) IntAttribute(capability, attribute string) (int, bool) {
	if attrs, ok := s[capability]; ok {
		if v, ok := attrs[attribute]; ok {
			switch n := v.Value.(type) {
			case float64:
				return int(n), true
			case int:
				return n, true
			}
		}
	}
	return 0, false
}
