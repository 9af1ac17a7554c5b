package kvstore

import (
	"errors"
	"fmt"
)

// Sentinel errors for store operations. Use errors.Is() to check for them.
var (
	// ErrNotFound is returned when a key doesn't exist. Callers treat it as "no value".
	ErrNotFound = errors.New("kvstore: key not found")

	// ErrClosed is returned when attempting to use a closed store.
	ErrClosed = errors.New("kvstore: store closed")
)

// ConfigError represents a configuration error during store initialization.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("kvstore configuration error: %s: %s: %v", e.Field, e.Message, e.Err)
	}
	return fmt.Sprintf("kvstore configuration error: %s: %s", e.Field, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new configuration error.
func NewConfigError(field, message string, err error) *ConfigError {
	return &ConfigError{Field: field, Message: message, Err: err}
}

// ConnectionError represents a failure to reach the backing store.
// These errors may be transient.
type ConnectionError struct {
	Op      string // e.g. "ping", "open"
	Address string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("kvstore connection error: %s failed for %s: %v", e.Op, e.Address, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// NewConnectionError creates a new connection error.
func NewConnectionError(op, address string, err error) *ConnectionError {
	return &ConnectionError{Op: op, Address: address, Err: err}
}

// OperationError represents a failed Get, Set or Delete.
type OperationError struct {
	Op  string
	Key string
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("kvstore operation error: %s failed for key %q: %v", e.Op, e.Key, e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}

// NewOperationError creates a new operation error.
func NewOperationError(op, key string, err error) *OperationError {
	return &OperationError{Op: op, Key: key, Err: err}
}
