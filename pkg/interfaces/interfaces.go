// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package interfaces defines abstract interfaces for core system components.
// This package promotes loose coupling and testability by allowing
// dependency injection and easy mocking in tests.
package interfaces

import (
	"context"
	"time"
)

// StatusReading is one observation of a television's state.
type StatusReading struct {
	DeviceID    string
	DeviceName  string
	Timestamp   time.Time
	PowerOn     bool
	Volume      int    // 0-100
	Muted       bool
	InputSource string // e.g. "HDMI1"
}

// StatusRecorder defines the interface for persisting status readings.
type StatusRecorder interface {
	// WriteStatus writes a single status reading
	WriteStatus(reading *StatusReading) error

	// Flush ensures all pending writes are completed
	Flush()

	// Close gracefully shuts down the recorder
	Close()

	// Health checks if the backing store is healthy
	Health(ctx context.Context) error
}

// Notifier defines the interface for sending notifications.
type Notifier interface {
	// SendAlert sends a notification with the given level, title, and message.
	SendAlert(ctx context.Context, level, title, message string) error
	// IsEnabled returns true if the notifier is configured and enabled.
	IsEnabled() bool
}
