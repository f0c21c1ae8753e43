// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package monitoring polls registered televisions for their current state.
//
// Each monitored device gets its own polling goroutine. Readings flow out
// through a buffered channel to the recorder pipeline and are also applied
// back to the HomeKit accessory so the Home app tracks changes made with
// the physical remote.
package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/soothill/smartthings-tv-bridge/pkg/interfaces"
	"github.com/soothill/smartthings-tv-bridge/pkg/logger"
	"github.com/soothill/smartthings-tv-bridge/pkg/metrics"
)

const readingsChannelSize = 100

// StatusSource is one pollable television. The registry's adapters
// implement it.
type StatusSource interface {
	DeviceID() string
	DeviceName() string
	Status(ctx context.Context) (*interfaces.StatusReading, error)
	Apply(reading *interfaces.StatusReading)
}

// StatusMonitor handles periodic status polling for televisions.
type StatusMonitor struct {
	pollInterval     time.Duration
	readings         chan *interfaces.StatusReading
	monitoredDevices map[string]context.CancelFunc
	deviceMutex      sync.RWMutex
	wg               sync.WaitGroup
	stopped          bool
}

// NewStatusMonitor creates a new status monitor.
func NewStatusMonitor(pollInterval time.Duration) *StatusMonitor {
	return &StatusMonitor{
		pollInterval:     pollInterval,
		readings:         make(chan *interfaces.StatusReading, readingsChannelSize),
		monitoredDevices: make(map[string]context.CancelFunc),
	}
}

// Start begins monitoring the given televisions.
func (sm *StatusMonitor) Start(ctx context.Context, sources []StatusSource) {
	logger.Info().Msgf("Starting status monitoring for %d televisions", len(sources))

	for _, source := range sources {
		sm.StartMonitoringDevice(ctx, source)
	}
}

// StartMonitoringDevice starts monitoring a single television if not
// already monitored.
func (sm *StatusMonitor) StartMonitoringDevice(ctx context.Context, source StatusSource) bool {
	deviceID := source.DeviceID()

	sm.deviceMutex.Lock()
	defer sm.deviceMutex.Unlock()

	if sm.stopped {
		return false
	}
	if _, exists := sm.monitoredDevices[deviceID]; exists {
		logger.Debug().Str("device_id", deviceID).Str("device_name", source.DeviceName()).
			Msg("Device already being monitored, skipping")
		return false
	}

	deviceCtx, cancel := context.WithCancel(ctx)
	sm.monitoredDevices[deviceID] = cancel
	metrics.DevicesMonitored.Inc()

	logger.Info().Str("device_id", deviceID).Str("device_name", source.DeviceName()).
		Msg("Starting monitoring for television")

	sm.wg.Add(1)
	go sm.monitorDevice(deviceCtx, source, sm.pollInterval)
	return true
}

// StopMonitoringDevice stops monitoring a specific television.
func (sm *StatusMonitor) StopMonitoringDevice(deviceID string) {
	sm.deviceMutex.Lock()
	defer sm.deviceMutex.Unlock()

	if cancel, exists := sm.monitoredDevices[deviceID]; exists {
		cancel()
		delete(sm.monitoredDevices, deviceID)
		metrics.DevicesMonitored.Dec()
		logger.Info().Str("device_id", deviceID).Msg("Stopped monitoring television")
	}
}

// IsMonitoring checks if a television is currently being monitored.
func (sm *StatusMonitor) IsMonitoring(deviceID string) bool {
	sm.deviceMutex.RLock()
	defer sm.deviceMutex.RUnlock()
	_, exists := sm.monitoredDevices[deviceID]
	return exists
}

// GetMonitoredDeviceCount returns the number of televisions being monitored.
func (sm *StatusMonitor) GetMonitoredDeviceCount() int {
	sm.deviceMutex.RLock()
	defer sm.deviceMutex.RUnlock()
	return len(sm.monitoredDevices)
}

// monitorDevice continuously polls a single television.
func (sm *StatusMonitor) monitorDevice(ctx context.Context, source StatusSource, pollInterval time.Duration) {
	defer sm.wg.Done()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	deviceID := source.DeviceID()
	logger.Info().Str("device_id", deviceID).Str("device_name", source.DeviceName()).
		Msg("Monitoring television")

	defer func() {
		sm.deviceMutex.Lock()
		if _, ok := sm.monitoredDevices[deviceID]; ok {
			delete(sm.monitoredDevices, deviceID)
			metrics.DevicesMonitored.Dec()
		}
		sm.deviceMutex.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			start := time.Now()
			reading, err := source.Status(ctx)
			metrics.StatusReadDuration.Observe(time.Since(start).Seconds())

			if err != nil {
				logger.Error().Err(err).Str("device_id", deviceID).
					Str("device_name", source.DeviceName()).
					Msg("Error reading television status")
				continue
			}

			source.Apply(reading)
			sm.recordGauges(reading)

			select {
			case sm.readings <- reading:
			default:
				logger.Warn().Str("device_id", deviceID).
					Str("device_name", source.DeviceName()).
					Msg("Readings channel full, dropping reading")
			}
		}
	}
}

// recordGauges exports the latest reading as Prometheus gauges.
func (sm *StatusMonitor) recordGauges(reading *interfaces.StatusReading) {
	power := 0.0
	if reading.PowerOn {
		power = 1.0
	}
	metrics.TelevisionPowerState.WithLabelValues(reading.DeviceID, reading.DeviceName).Set(power)
	metrics.TelevisionVolume.WithLabelValues(reading.DeviceID, reading.DeviceName).Set(float64(reading.Volume))
}

// UpdatePollInterval changes the poll interval for monitors started after
// the call. Running monitors keep their current ticker.
func (sm *StatusMonitor) UpdatePollInterval(interval time.Duration) {
	sm.deviceMutex.Lock()
	defer sm.deviceMutex.Unlock()
	sm.pollInterval = interval
}

// Readings returns the channel for receiving status readings.
func (sm *StatusMonitor) Readings() <-chan *interfaces.StatusReading {
	return sm.readings
}

// Stop stops all monitoring and closes the readings channel.
func (sm *StatusMonitor) Stop() {
	sm.deviceMutex.Lock()
	if sm.stopped {
		sm.deviceMutex.Unlock()
		return
	}
	sm.stopped = true

	for deviceID, cancel := range sm.monitoredDevices {
		logger.Info().Str("device_id", deviceID).Msg("Stopping television monitoring")
		cancel()
	}
	sm.deviceMutex.Unlock()

	sm.wg.Wait()

	close(sm.readings)
	logger.Info().Msg("Status monitor stopped, readings channel closed")
}
