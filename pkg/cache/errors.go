package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by write operations on a closed backend.
	ErrClosed = errors.New("cache closed")

	// ErrMissingRedis indicates that a Redis backend was requested without a URL or client.
	ErrMissingRedis = errors.New("redis url or client required")

	// ErrUnscopedPurge is returned when DeleteByPrefix would match every key in the
	// Redis database because neither a key prefix nor a purge prefix is set.
	ErrUnscopedPurge = errors.New("refusing unscoped prefix delete")
)

// ConfigurationError reports invalid or missing configuration detected at construction.
type ConfigurationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	msg := "cache configuration"
	if e.Field != "" {
		msg += " " + e.Field
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", msg, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", msg, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// SerializationError reports a value that could not be encoded or a payload that
// could not be decoded. It separates bad data from a failing backend.
type SerializationError struct {
	// Op is "serialize" or "deserialize".
	Op  string
	Err error
}

// Error implements the error interface.
func (e *SerializationError) Error() string {
	return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *SerializationError) Unwrap() error {
	return e.Err
}

// BackendError reports a storage failure (network, timeout, protocol, closed store).
type BackendError struct {
	Backend string
	Op      string
	Err     error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Backend, e.Op, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err is or wraps a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// IsSerializationError reports whether err is or wraps a *SerializationError.
func IsSerializationError(err error) bool {
	var target *SerializationError
	return errors.As(err, &target)
}

// IsBackendError reports whether err is or wraps a *BackendError.
func IsBackendError(err error) bool {
	var target *BackendError
	return errors.As(err, &target)
}
