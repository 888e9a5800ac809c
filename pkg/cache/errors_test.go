package cache

import (
	"errors"
	"fmt"
	"testing"
)

func TestConfigurationError(t *testing.T) {
	err := &ConfigurationError{Field: "redis", Message: "redis adapter selected", Err: ErrMissingRedis}

	want := "cache configuration redis: redis adapter selected: redis url or client required"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, ErrMissingRedis) {
		t.Error("ConfigurationError should unwrap to ErrMissingRedis")
	}

	plain := &ConfigurationError{Field: "namespace", Message: "namespace is required for redis"}
	if got, want := plain.Error(), "cache configuration namespace: namespace is required for redis"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestBackendError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &BackendError{Backend: "redis", Op: "get", Err: cause}

	if got, want := err.Error(), "cache redis get: connection refused"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, cause) {
		t.Error("BackendError should unwrap to its cause")
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		configuration bool
		serialization bool
		backend       bool
	}{
		{
			name:          "configuration",
			err:           &ConfigurationError{Message: "bad"},
			configuration: true,
		},
		{
			name:          "wrapped configuration",
			err:           fmt.Errorf("setup: %w", &ConfigurationError{Message: "bad"}),
			configuration: true,
		},
		{
			name:          "serialization",
			err:           &SerializationError{Op: "serialize", Err: errors.New("x")},
			serialization: true,
		},
		{
			name:    "backend",
			err:     fmt.Errorf("connect to redis: %w", &BackendError{Backend: "redis", Op: "ping", Err: errors.New("x")}),
			backend: true,
		},
		{
			name: "plain",
			err:  errors.New("plain"),
		},
		{
			name: "nil",
			err:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConfigurationError(tt.err); got != tt.configuration {
				t.Errorf("IsConfigurationError() = %v, want %v", got, tt.configuration)
			}
			if got := IsSerializationError(tt.err); got != tt.serialization {
				t.Errorf("IsSerializationError() = %v, want %v", got, tt.serialization)
			}
			if got := IsBackendError(tt.err); got != tt.backend {
				t.Errorf("IsBackendError() = %v, want %v", got, tt.backend)
			}
		})
	}
}
