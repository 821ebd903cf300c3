package device

import "context"

// RegisterOutcome is the result of the atomic registration operation.
type RegisterOutcome struct {
	// Device is the active record after the call.
	Device *Device

	// Created is true when a new record was inserted, false when an
	// existing (user, token) record was refreshed.
	Created bool

	// PreviousOwner is the user ID whose record was deactivated when the
	// token moved between accounts. Empty when no reassignment happened.
	PreviousOwner string
}

// Repository defines the interface for device persistence.
type Repository interface {
	// Register applies the registration algorithm for d's (user, token)
	// pair as one atomic unit: refresh an exact-pair record, or
	// deactivate any other owner's record for the token and insert d.
	// Implementations must serialize concurrent calls for the same token
	// so that at most one active record per token survives.
	Register(ctx context.Context, d *Device) (*RegisterOutcome, error)

	// ListActiveByUser retrieves a user's active devices, most recently
	// used first.
	ListActiveByUser(ctx context.Context, userID string) ([]*Device, error)

	// Deactivate marks a user's device inactive (e.g. after the delivery
	// API reports the token gone).
	Deactivate(ctx context.Context, userID, deviceID string) error
}
