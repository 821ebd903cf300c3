package device

import (
	"context"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// This is intended for testing. Production should use the PostgreSQL
// implementation.
type InMemoryRepository struct {
	mu      sync.Mutex
	devices map[string]*Device // keyed by device ID
}

// NewInMemoryRepository creates a new in-memory device repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		devices: make(map[string]*Device),
	}
}

// Register applies the registration algorithm under the repository lock,
// mirroring the transactional semantics of the PostgreSQL implementation.
func (r *InMemoryRepository) Register(_ context.Context, d *Device) (*RegisterOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	outcome := &RegisterOutcome{}

	var exact *Device
	for _, existing := range r.devices {
		if existing.Token != d.Token {
			continue
		}
		if existing.UserID == d.UserID {
			exact = existing
		} else if existing.Active {
			outcome.PreviousOwner = existing.UserID
		}
	}

	if exact != nil {
		for _, existing := range r.devices {
			if existing.Token == d.Token && existing.Active && existing.UserID != d.UserID {
				existing.Active = false
			}
		}
		exact.Type = d.Type
		exact.Name = d.Name
		exact.Active = true
		exact.LastUsed = d.LastUsed
		outcome.Device = copyDevice(exact)
		return outcome, nil
	}

	for _, existing := range r.devices {
		if existing.Token == d.Token && existing.Active {
			existing.Active = false
		}
	}

	d.Active = true
	r.devices[d.ID] = copyDevice(d)
	outcome.Device = copyDevice(d)
	outcome.Created = true
	return outcome, nil
}

// GetByToken retrieves the active device holding a token. Test helper.
func (r *InMemoryRepository) GetByToken(_ context.Context, token string) (*Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, device := range r.devices {
		if device.Token == token && device.Active {
			return copyDevice(device), nil
		}
	}

	return nil, ErrDeviceNotFound
}

// ListActiveByUser retrieves a user's active devices.
func (r *InMemoryRepository) ListActiveByUser(_ context.Context, userID string) ([]*Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var devices []*Device
	for _, device := range r.devices {
		if device.UserID == userID && device.Active {
			devices = append(devices, copyDevice(device))
		}
	}

	return devices, nil
}

// Deactivate marks a user's device inactive.
func (r *InMemoryRepository) Deactivate(_ context.Context, userID, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[deviceID]
	if !ok || device.UserID != userID {
		return ErrDeviceNotFound
	}

	device.Active = false
	return nil
}

// All returns every record, active or not. Test helper.
func (r *InMemoryRepository) All() []*Device {
	r.mu.Lock()
	defer r.mu.Unlock()

	devices := make([]*Device, 0, len(r.devices))
	for _, device := range r.devices {
		devices = append(devices, copyDevice(device))
	}
	return devices
}

// copyDevice creates a deep copy of a device.
func copyDevice(d *Device) *Device {
	if d == nil {
		return nil
	}

	deviceCopy := &Device{
		ID:       d.ID,
		UserID:   d.UserID,
		Token:    d.Token,
		Type:     d.Type,
		Active:   d.Active,
		LastUsed: d.LastUsed,
	}

	if d.Name != nil {
		val := *d.Name
		deviceCopy.Name = &val
	}

	return deviceCopy
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
