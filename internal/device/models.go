// Package device provides the push device-token registry: registration,
// deduplication, and cross-user token reassignment.
package device

import (
	"errors"
	"fmt"
	"time"
)

// Repository errors.
var (
	ErrDeviceNotFound = errors.New("device not found")
)

// MinTokenLength is the minimum accepted FCM token length. Real tokens are
// well over 100 characters; this is a guard against obviously malformed
// input, not a format validator.
const MinTokenLength = 50

// Type is the platform a device runs on.
type Type string

const (
	TypeAndroid Type = "android"
	TypeIOS     Type = "ios"
	TypeWeb     Type = "web"
)

// Valid reports whether t is a known device type.
func (t Type) Valid() bool {
	switch t {
	case TypeAndroid, TypeIOS, TypeWeb:
		return true
	}
	return false
}

// Device represents one registered push target. A token identifies a
// physical install, so at most one active record exists per token at any
// time; reassignment deactivates the prior owner's record rather than
// deleting it.
type Device struct {
	ID       string
	UserID   string
	Token    string
	Type     Type
	Name     *string
	Active   bool
	LastUsed time.Time
}

// TokenLast4 returns the last 4 characters of the token for logging.
func (d *Device) TokenLast4() string {
	if len(d.Token) < 4 {
		return d.Token
	}
	return d.Token[len(d.Token)-4:]
}

// Action describes what a registration call did.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// RegisterResult is the outcome of a registration call.
type RegisterResult struct {
	DeviceID string
	Action   Action
}

// ValidationError indicates rejected registration input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// StorageError indicates a persistence failure during registration or
// lookup. The wrapped error carries the driver-level cause.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: storage error: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
