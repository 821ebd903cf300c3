package device

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pushgate/pushgate/internal/subscriber"
)

// ServiceConfig holds the configuration for the device service.
type ServiceConfig struct {
	Repository  Repository
	Subscribers subscriber.Repository
	Logger      zerolog.Logger
}

// Service implements the device registry business logic.
type Service struct {
	repo        Repository
	subscribers subscriber.Repository
	logger      zerolog.Logger
}

// NewService creates a new device service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		repo:        cfg.Repository,
		subscribers: cfg.Subscribers,
		logger:      cfg.Logger,
	}
}

// RegisterInput is the caller-supplied registration payload.
type RegisterInput struct {
	UserID     string
	Token      string
	DeviceType Type
	DeviceName *string
}

// Register validates the input, confirms the user exists, and upserts the
// device record. Same (user, token) pair refreshes in place; a token seen
// under a different user is reassigned, deactivating the prior owner's
// record.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*RegisterResult, error) {
	if in.UserID == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "must not be empty"}
	}
	if in.Token == "" {
		return nil, &ValidationError{Field: "fcm_token", Reason: "must not be empty"}
	}
	if len(in.Token) < MinTokenLength {
		return nil, &ValidationError{Field: "fcm_token", Reason: fmt.Sprintf("must be at least %d characters", MinTokenLength)}
	}
	if in.DeviceType == "" {
		in.DeviceType = TypeAndroid
	}
	if !in.DeviceType.Valid() {
		return nil, &ValidationError{Field: "device_type", Reason: "must be one of android, ios, web"}
	}

	exists, err := s.subscribers.Exists(ctx, in.UserID)
	if err != nil {
		return nil, &StorageError{Op: "check subscriber", Err: err}
	}
	if !exists {
		return nil, subscriber.ErrNotFound
	}

	d := &Device{
		ID:       uuid.NewString(),
		UserID:   in.UserID,
		Token:    in.Token,
		Type:     in.DeviceType,
		Name:     in.DeviceName,
		Active:   true,
		LastUsed: time.Now().UTC(),
	}

	outcome, err := s.repo.Register(ctx, d)
	if err != nil {
		return nil, &StorageError{Op: "register device", Err: err}
	}

	if outcome.PreviousOwner != "" {
		s.logger.Warn().
			Str("previous_user", outcome.PreviousOwner).
			Str("user", in.UserID).
			Str("token_last4", d.TokenLast4()).
			Msg("device token reassigned between users")
	}

	action := ActionUpdated
	if outcome.Created {
		action = ActionCreated
	}

	s.logger.Info().
		Str("user", in.UserID).
		Str("device_id", outcome.Device.ID).
		Str("device_type", string(outcome.Device.Type)).
		Str("action", string(action)).
		Msg("device registered")

	return &RegisterResult{DeviceID: outcome.Device.ID, Action: action}, nil
}

// ActiveDevices returns a user's active devices after confirming the user
// exists.
func (s *Service) ActiveDevices(ctx context.Context, userID string) ([]*Device, error) {
	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "must not be empty"}
	}

	exists, err := s.subscribers.Exists(ctx, userID)
	if err != nil {
		return nil, &StorageError{Op: "check subscriber", Err: err}
	}
	if !exists {
		return nil, subscriber.ErrNotFound
	}

	devices, err := s.repo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, &StorageError{Op: "list devices", Err: err}
	}

	return devices, nil
}

// Deactivate marks a user's device inactive.
func (s *Service) Deactivate(ctx context.Context, userID, deviceID string) error {
	if userID == "" {
		return &ValidationError{Field: "user_id", Reason: "must not be empty"}
	}
	if deviceID == "" {
		return &ValidationError{Field: "device_id", Reason: "must not be empty"}
	}

	if err := s.repo.Deactivate(ctx, userID, deviceID); err != nil {
		if err == ErrDeviceNotFound {
			return err
		}
		return &StorageError{Op: "deactivate device", Err: err}
	}

	s.logger.Info().
		Str("user", userID).
		Str("device_id", deviceID).
		Msg("device deactivated")

	return nil
}
