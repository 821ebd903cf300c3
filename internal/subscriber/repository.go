// Package subscriber provides lookups against the platform's subscriber
// accounts. The subscribers table is owned by the backend platform; this
// service only verifies existence before registering devices.
package subscriber

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a subscriber ID does not exist.
var ErrNotFound = errors.New("subscriber not found")

// Repository defines the interface for subscriber lookups.
type Repository interface {
	// Exists reports whether a subscriber with the given ID exists.
	Exists(ctx context.Context, id string) (bool, error)
}
