// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestDevicesDiscoveredGauge(t *testing.T) {
	DevicesDiscovered.Set(0)
	DevicesDiscovered.Set(4)

	value := testutil.ToFloat64(DevicesDiscovered)
	if value != 4 {
		t.Errorf("DevicesDiscovered = %v, want 4", value)
	}
}

func TestTelevisionsRegisteredGauge(t *testing.T) {
	TelevisionsRegistered.Set(0)
	TelevisionsRegistered.Set(2)

	value := testutil.ToFloat64(TelevisionsRegistered)
	if value != 2 {
		t.Errorf("TelevisionsRegistered = %v, want 2", value)
	}
}

func TestDevicesSkippedCounterVec(t *testing.T) {
	counter := DevicesSkipped.WithLabelValues(SkipReasonUnsupportedType)
	initial := testutil.ToFloat64(counter)
	counter.Inc()
	final := testutil.ToFloat64(counter)

	if final != initial+1 {
		t.Errorf("DevicesSkipped should have increased by 1, got %v -> %v", initial, final)
	}
}

func TestRegistrationErrorsCounter(t *testing.T) {
	initial := testutil.ToFloat64(RegistrationErrors)
	RegistrationErrors.Inc()
	final := testutil.ToFloat64(RegistrationErrors)

	if final <= initial {
		t.Errorf("RegistrationErrors should have increased, got %v -> %v", initial, final)
	}
}

func TestAPIErrorsCounterVec(t *testing.T) {
	counter := APIErrors.WithLabelValues("list devices")
	initial := testutil.ToFloat64(counter)
	counter.Inc()
	final := testutil.ToFloat64(counter)

	if final != initial+1 {
		t.Errorf("APIErrors should have increased by 1, got %v -> %v", initial, final)
	}
}

func TestCommandsTotalCounterVec(t *testing.T) {
	counter := CommandsTotal.WithLabelValues("switch")
	initial := testutil.ToFloat64(counter)
	counter.Inc()
	final := testutil.ToFloat64(counter)

	if final != initial+1 {
		t.Errorf("CommandsTotal should have increased by 1, got %v -> %v", initial, final)
	}
}

func TestTelevisionPowerStateGaugeVec(t *testing.T) {
	gauge := TelevisionPowerState.WithLabelValues("d1", "Living Room TV")
	gauge.Set(1)

	value := testutil.ToFloat64(gauge)
	if value != 1 {
		t.Errorf("TelevisionPowerState = %v, want 1", value)
	}
}

func TestDiscoveryDurationHistogram(t *testing.T) {
	// Histograms cannot be read back with ToFloat64; just verify observing
	// does not panic and the collector is registered.
	DiscoveryDuration.Observe(0.42)
	StatusReadDuration.Observe(0.1)
	APIRequestDuration.WithLabelValues("list devices").Observe(0.2)
}
