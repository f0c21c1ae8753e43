// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

// Package metrics provides Prometheus metrics for the SmartThings TV bridge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DevicesDiscovered tracks the number of devices returned by the last device list call
	DevicesDiscovered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "smartthings_devices_discovered",
		Help: "Number of devices visible to the SmartThings account",
	})

	// TelevisionsRegistered tracks the number of television accessories registered
	TelevisionsRegistered = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "smartthings_televisions_registered",
		Help: "Number of television accessories registered with the bridge",
	})

	// DevicesSkipped tracks devices skipped during registration, by reason
	DevicesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartthings_devices_skipped_total",
		Help: "Total number of devices skipped during registration",
	}, []string{"reason"})

	// RegistrationErrors tracks per-device registration failures
	RegistrationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smartthings_registration_errors_total",
		Help: "Total number of per-device registration failures",
	})

	// DiscoveryDuration tracks how long a discovery pass takes
	DiscoveryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "smartthings_discovery_duration_seconds",
		Help:    "Duration of a device discovery pass in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// APIRequestDuration tracks SmartThings API request latency per operation
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "smartthings_api_request_duration_seconds",
		Help:    "Duration of SmartThings API requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	// APIErrors tracks failed SmartThings API requests per operation
	APIErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartthings_api_errors_total",
		Help: "Total number of failed SmartThings API requests",
	}, []string{"operation"})

	// CommandsTotal tracks capability commands sent to devices
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartthings_commands_total",
		Help: "Total number of capability commands sent to devices",
	}, []string{"capability"})

	// CommandErrors tracks failed capability commands
	CommandErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smartthings_command_errors_total",
		Help: "Total number of failed capability commands",
	})

	// WakePacketsSent tracks wake-on-LAN magic packets sent
	WakePacketsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smartthings_wake_packets_sent_total",
		Help: "Total number of wake-on-LAN magic packets sent",
	})

	// StatusReadDuration tracks how long a device status poll takes
	StatusReadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "smartthings_status_read_duration_seconds",
		Help:    "Duration of a device status poll in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// DevicesMonitored tracks the number of devices currently polled for status
	DevicesMonitored = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "smartthings_devices_monitored",
		Help: "Number of devices currently polled for status",
	})

	// InfluxDBWritesTotal tracks the total number of status writes to InfluxDB
	InfluxDBWritesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smartthings_influxdb_writes_total",
		Help: "Total number of status writes to InfluxDB",
	})

	// InfluxDBWriteErrors tracks the number of failed writes to InfluxDB
	InfluxDBWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "smartthings_influxdb_write_errors_total",
		Help: "Total number of failed status writes to InfluxDB",
	})

	// TelevisionPowerState tracks the last observed power state per television
	TelevisionPowerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "smartthings_television_power_state",
		Help: "Last observed television power state (1 = on, 0 = off)",
	}, []string{"device_id", "device_name"})

	// TelevisionVolume tracks the last observed volume per television
	TelevisionVolume = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "smartthings_television_volume",
		Help: "Last observed television volume (0-100)",
	}, []string{"device_id", "device_name"})
)

// SkipReason labels for DevicesSkipped
const (
	SkipReasonUnsupportedType = "unsupported_type"
	SkipReasonNoComponents    = "no_components"
)
