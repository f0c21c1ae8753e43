// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package errors provides structured error types for the SmartThings TV bridge.
//
// This package defines custom error types that provide better error handling,
// inspection, and debugging capabilities compared to plain string errors.
//
// # Example Usage
//
//	err := errors.NewAPIError("list devices", 401, fmt.Errorf("unauthorized"))
//	if errors.IsAPIError(err) {
//	    log.Printf("SmartThings API call failed: %v", err)
//	}
//
//	var apiErr *errors.APIError
//	if errors.As(err, &apiErr) {
//	    log.Printf("failed operation: %s (status %d)", apiErr.Op, apiErr.StatusCode)
//	}
package errors

import (
	"errors"
	"fmt"
)

// APIError represents an error returned by or while calling the SmartThings API.
type APIError struct {
	Op         string // Operation being performed (e.g., "list devices", "device status")
	StatusCode int    // HTTP status code, 0 when the request never completed
	Err        error  // Underlying error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("smartthings %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("smartthings %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("smartthings %s failed", e.Op)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// NewAPIError creates a new SmartThings API error.
func NewAPIError(op string, statusCode int, err error) *APIError {
	return &APIError{Op: op, StatusCode: statusCode, Err: err}
}

// IsAPIError checks if an error is an APIError.
func IsAPIError(err error) bool {
	var ae *APIError
	return errors.As(err, &ae)
}

// RegistrationError represents an error while registering a discovered device.
type RegistrationError struct {
	DeviceID string // Device involved
	Op       string // Operation being performed (e.g., "restore accessory", "publish")
	Err      error  // Underlying error
}

func (e *RegistrationError) Error() string {
	if e.DeviceID != "" {
		return fmt.Sprintf("registration %s (device=%s): %v", e.Op, e.DeviceID, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("registration %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("registration %s failed", e.Op)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// NewRegistrationError creates a new registration error.
func NewRegistrationError(op string, deviceID string, err error) *RegistrationError {
	return &RegistrationError{Op: op, DeviceID: deviceID, Err: err}
}

// IsRegistrationError checks if an error is a RegistrationError.
func IsRegistrationError(err error) bool {
	var re *RegistrationError
	return errors.As(err, &re)
}

// CommandError represents a failed capability command sent to a device.
type CommandError struct {
	DeviceID   string // Target device
	Capability string // Capability the command belongs to (e.g., "switch", "audioVolume")
	Command    string // Command name (e.g., "on", "setVolume")
	Err        error  // Underlying error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s.%s (device=%s): %v", e.Capability, e.Command, e.DeviceID, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewCommandError creates a new command error.
func NewCommandError(deviceID, capability, command string, err error) *CommandError {
	return &CommandError{DeviceID: deviceID, Capability: capability, Command: command, Err: err}
}

// IsCommandError checks if an error is a CommandError.
func IsCommandError(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce)
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field string // Configuration field that caused the error
	Value string // Invalid value (optional, may be redacted for sensitive fields)
	Err   error  // Underlying error or description
}

func (e *ConfigError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("config error in field %q (value=%q): %v", e.Field, e.Value, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("config error in field %q: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("config error in field %q", e.Field)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new configuration error.
func NewConfigError(field string, value string, err error) *ConfigError {
	return &ConfigError{Field: field, Value: value, Err: err}
}

// IsConfigError checks if an error is a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// StorageError represents an error during accessory cache or telemetry writes.
type StorageError struct {
	Op       string // Operation being performed (e.g., "load cache", "write status")
	DeviceID string // Device ID involved in the operation (if applicable)
	Err      error  // Underlying error
}

func (e *StorageError) Error() string {
	if e.DeviceID != "" {
		return fmt.Sprintf("storage %s (device=%s): %v", e.Op, e.DeviceID, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s failed", e.Op)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NewStorageError creates a new storage error.
func NewStorageError(op string, deviceID string, err error) *StorageError {
	return &StorageError{Op: op, DeviceID: deviceID, Err: err}
}

// IsStorageError checks if an error is a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// NotificationError represents an error sending notifications.
type NotificationError struct {
	Type string // Notification type (e.g., "slack")
	Err  error  // Underlying error
}

func (e *NotificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("notification %s: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("notification %s failed", e.Type)
}

func (e *NotificationError) Unwrap() error {
	return e.Err
}

// NewNotificationError creates a new notification error.
func NewNotificationError(notifType string, err error) *NotificationError {
	return &NotificationError{Type: notifType, Err: err}
}

// IsNotificationError checks if an error is a NotificationError.
func IsNotificationError(err error) bool {
	var ne *NotificationError
	return errors.As(err, &ne)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Sentinel errors for common conditions
var (
	// ErrMissingToken indicates no SmartThings API token is configured
	ErrMissingToken = errors.New("smartthings token not configured")

	// ErrDeviceNotFound indicates a device was not found
	ErrDeviceNotFound = errors.New("device not found")

	// ErrNoComponents indicates a device exposes no components
	ErrNoComponents = errors.New("device has no components")

	// ErrUnsupportedDeviceType indicates a device type with no registration handler
	ErrUnsupportedDeviceType = errors.New("unsupported device type")

	// ErrAlreadyRegistered indicates a device identifier already has an accessory
	ErrAlreadyRegistered = errors.New("device already registered")

	// ErrNotReady indicates the coordinator is not in a state to discover
	ErrNotReady = errors.New("coordinator not ready")

	// ErrCircuitBreakerOpen indicates the API circuit breaker is open
	ErrCircuitBreakerOpen = errors.New("circuit breaker open")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")
)
