// Copyright (c) 2025 Darren Soothill
// Licensed under the MIT License

package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestAPIError(t *testing.T) {
	underlying := fmt.Errorf("connection refused")
	err := NewAPIError("list devices", 0, underlying)

	if !strings.Contains(err.Error(), "list devices") {
		t.Errorf("Error() = %q, want operation name included", err.Error())
	}

	if !stderrors.Is(err, underlying) {
		t.Error("errors.Is() should match the underlying error")
	}

	if !IsAPIError(err) {
		t.Error("IsAPIError() = false, want true")
	}

	if IsAPIError(fmt.Errorf("plain error")) {
		t.Error("IsAPIError() = true for plain error, want false")
	}
}

func TestAPIError_StatusCode(t *testing.T) {
	err := NewAPIError("device status", 429, fmt.Errorf("rate limited"))

	if !strings.Contains(err.Error(), "429") {
		t.Errorf("Error() = %q, want status code included", err.Error())
	}

	var apiErr *APIError
	if !stderrors.As(err, &apiErr) {
		t.Fatal("errors.As() failed for APIError")
	}
	if apiErr.StatusCode != 429 {
		t.Errorf("StatusCode = %d, want 429", apiErr.StatusCode)
	}
}

func TestRegistrationError(t *testing.T) {
	err := NewRegistrationError("publish", "d1", fmt.Errorf("boom"))

	if !strings.Contains(err.Error(), "d1") {
		t.Errorf("Error() = %q, want device ID included", err.Error())
	}

	if !IsRegistrationError(err) {
		t.Error("IsRegistrationError() = false, want true")
	}

	wrapped := fmt.Errorf("pass failed: %w", err)
	if !IsRegistrationError(wrapped) {
		t.Error("IsRegistrationError() should see through wrapping")
	}
}

func TestCommandError(t *testing.T) {
	err := NewCommandError("d1", "switch", "on", ErrDeviceNotFound)

	if !strings.Contains(err.Error(), "switch.on") {
		t.Errorf("Error() = %q, want capability.command included", err.Error())
	}

	if !stderrors.Is(err, ErrDeviceNotFound) {
		t.Error("errors.Is() should match the sentinel through CommandError")
	}

	if !IsCommandError(err) {
		t.Error("IsCommandError() = false, want true")
	}
}

func TestConfigError(t *testing.T) {
	tests := []struct {
		name  string
		err   *ConfigError
		wants []string
	}{
		{
			name:  "field and value",
			err:   NewConfigError("smartthings.api_url", "not-a-url", fmt.Errorf("invalid URL")),
			wants: []string{"smartthings.api_url", "not-a-url"},
		},
		{
			name:  "field only",
			err:   NewConfigError("bridge.pin", "", fmt.Errorf("must be 8 digits")),
			wants: []string{"bridge.pin", "8 digits"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, want := range tt.wants {
				if !strings.Contains(tt.err.Error(), want) {
					t.Errorf("Error() = %q, want %q included", tt.err.Error(), want)
				}
			}
			if !IsConfigError(tt.err) {
				t.Error("IsConfigError() = false, want true")
			}
		})
	}
}

func TestStorageError(t *testing.T) {
	err := NewStorageError("load cache", "", fmt.Errorf("corrupt json"))

	if !IsStorageError(err) {
		t.Error("IsStorageError() = false, want true")
	}
	if !strings.Contains(err.Error(), "load cache") {
		t.Errorf("Error() = %q, want operation included", err.Error())
	}
}

func TestNotificationError(t *testing.T) {
	err := NewNotificationError("slack", fmt.Errorf("webhook returned 500"))

	if !IsNotificationError(err) {
		t.Error("IsNotificationError() = false, want true")
	}
	if !strings.Contains(err.Error(), "slack") {
		t.Errorf("Error() = %q, want type included", err.Error())
	}
}

func TestSentinelErrors(t *testing.T) {
	sentinels := []error{
		ErrMissingToken,
		ErrDeviceNotFound,
		ErrNoComponents,
		ErrUnsupportedDeviceType,
		ErrAlreadyRegistered,
		ErrNotReady,
		ErrCircuitBreakerOpen,
		ErrInvalidConfig,
	}

	for _, sentinel := range sentinels {
		wrapped := fmt.Errorf("context: %w", sentinel)
		if !stderrors.Is(wrapped, sentinel) {
			t.Errorf("errors.Is() failed for wrapped sentinel %v", sentinel)
		}
	}
}
