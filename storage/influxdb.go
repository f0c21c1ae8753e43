// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package storage

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/soothill/smartthings-tv-bridge/pkg/interfaces"
	"github.com/soothill/smartthings-tv-bridge/pkg/logger"
)

// InfluxDBRecorder writes television status readings to InfluxDB.
type InfluxDBRecorder struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	bucket   string
	org      string
}

// NewInfluxDBRecorder creates a new InfluxDB status recorder
func NewInfluxDBRecorder(url, token, org, bucket string) (*InfluxDBRecorder, error) {
	client := influxdb2.NewClient(url, token)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to InfluxDB: %w", err)
	}

	if health.Status != "pass" {
		client.Close()
		message := "unknown error"
		if health.Message != nil {
			message = *health.Message
		}
		return nil, fmt.Errorf("InfluxDB health check failed: %s", message)
	}

	logger.Info().Str("url", url).Str("status", string(health.Status)).Msg("Connected to InfluxDB")

	writeAPI := client.WriteAPI(org, bucket)

	// Handle async write errors
	go func() {
		for err := range writeAPI.Errors() {
			logger.Error().Err(err).Msg("InfluxDB write error")
		}
	}()

	return &InfluxDBRecorder{
		client:   client,
		writeAPI: writeAPI,
		bucket:   bucket,
		org:      org,
	}, nil
}

// WriteStatus writes a television status reading to InfluxDB
func (s *InfluxDBRecorder) WriteStatus(reading *interfaces.StatusReading) error {
	if reading == nil {
		return fmt.Errorf("reading cannot be nil")
	}
	if reading.DeviceID == "" {
		return fmt.Errorf("device ID cannot be empty")
	}
	if reading.Timestamp.IsZero() {
		return fmt.Errorf("timestamp cannot be zero")
	}

	power := 0
	if reading.PowerOn {
		power = 1
	}
	muted := 0
	if reading.Muted {
		muted = 1
	}

	p := influxdb2.NewPoint(
		"television_status",
		map[string]string{
			"device_id":   reading.DeviceID,
			"device_name": reading.DeviceName,
		},
		map[string]interface{}{
			"power":        power,
			"volume":       reading.Volume,
			"muted":        muted,
			"input_source": reading.InputSource,
		},
		reading.Timestamp,
	)

	s.writeAPI.WritePoint(p)
	return nil
}

// Flush forces all pending writes to complete
func (s *InfluxDBRecorder) Flush() {
	s.writeAPI.Flush()
}

// Close closes the InfluxDB client and flushes pending writes
func (s *InfluxDBRecorder) Close() {
	logger.Info().Msg("Closing InfluxDB connection")
	s.writeAPI.Flush()
	s.client.Close()
}

// Health checks if InfluxDB is reachable and healthy
func (s *InfluxDBRecorder) Health(ctx context.Context) error {
	health, err := s.client.Health(ctx)
	if err != nil {
		return fmt.Errorf("InfluxDB health check failed: %w", err)
	}
	if health.Status != "pass" {
		message := "unknown error"
		if health.Message != nil {
			message = *health.Message
		}
		return fmt.Errorf("InfluxDB is unhealthy: %s", message)
	}
	return nil
}
