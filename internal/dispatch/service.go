// Package dispatch fans a notification out to every active device a user
// has registered, with per-device failure isolation.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pushgate/pushgate/internal/device"
	"github.com/pushgate/pushgate/internal/push"
	"github.com/pushgate/pushgate/internal/push/fcm"
	"github.com/pushgate/pushgate/internal/push/googleoauth"
)

// DefaultConcurrency bounds simultaneous delivery calls per batch.
const DefaultConcurrency = 8

// Signer produces signed service-account assertions.
type Signer interface {
	Sign(now time.Time) (string, error)
}

// Exchanger trades an assertion for a bearer access token.
type Exchanger interface {
	Exchange(ctx context.Context, assertion string) (googleoauth.AccessToken, error)
}

// Sender delivers one message to one device token.
type Sender interface {
	Send(ctx context.Context, token googleoauth.AccessToken, projectID string, msg push.Message) error
}

// DeviceRegistry resolves a user's active devices and retires the ones the
// delivery API reports gone.
type DeviceRegistry interface {
	ActiveDevices(ctx context.Context, userID string) ([]*device.Device, error)
	Deactivate(ctx context.Context, userID, deviceID string) error
}

// SendError records one device's delivery failure within a batch.
type SendError struct {
	DeviceID   string
	TokenLast4 string
	Err        error
}

func (e SendError) Error() string {
	return fmt.Sprintf("device %s (token ...%s): %v", e.DeviceID, e.TokenLast4, e.Err)
}

// Result summarizes a fan-out batch.
type Result struct {
	Total      int
	Successful int
	Failed     int
	Errors     []SendError
}

// ServiceConfig holds the configuration for the dispatch service.
type ServiceConfig struct {
	Signer    Signer
	Exchanger Exchanger
	Sender    Sender
	Devices   DeviceRegistry

	// ProjectID is the Firebase project messages are sent under.
	ProjectID string

	// Concurrency bounds simultaneous sends (optional, defaults to
	// DefaultConcurrency).
	Concurrency int

	// Metrics records batch outcomes (optional).
	Metrics *Metrics

	Logger zerolog.Logger
}

// Service coordinates credential minting and per-device delivery.
type Service struct {
	signer      Signer
	exchanger   Exchanger
	sender      Sender
	devices     DeviceRegistry
	projectID   string
	concurrency int
	metrics     *Metrics
	logger      zerolog.Logger
}

// NewService creates a new dispatch service.
func NewService(cfg ServiceConfig) *Service {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	return &Service{
		signer:      cfg.Signer,
		exchanger:   cfg.Exchanger,
		sender:      cfg.Sender,
		devices:     cfg.Devices,
		projectID:   cfg.ProjectID,
		concurrency: concurrency,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
	}
}

// NotifyUser sends one notification to every active device the user has.
// A fresh access token is minted per batch; the same token covers every
// device in it. One device failing never aborts the rest: each failure is
// recorded in the result and the batch runs to completion.
func (s *Service) NotifyUser(ctx context.Context, userID, title, body string, data map[string]any) (*Result, error) {
	devices, err := s.devices.ActiveDevices(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &Result{Total: len(devices)}
	if len(devices) == 0 {
		s.logger.Info().Str("user", userID).Msg("no active devices, nothing to send")
		return result, nil
	}

	assertion, err := s.signer.Sign(time.Now())
	if err != nil {
		return nil, err
	}

	token, err := s.exchanger.Exchange(ctx, assertion)
	if err != nil {
		return nil, err
	}

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.concurrency)
	)

	for _, d := range devices {
		wg.Add(1)
		sem <- struct{}{}
		go func(d *device.Device) {
			defer wg.Done()
			defer func() { <-sem }()

			msg := push.NewMessage(d.Token, title, body, data)
			if err := s.sender.Send(ctx, token, s.projectID, msg); err != nil {
				mu.Lock()
				result.Failed++
				result.Errors = append(result.Errors, SendError{
					DeviceID:   d.ID,
					TokenLast4: d.TokenLast4(),
					Err:        err,
				})
				mu.Unlock()

				s.retireDeadToken(ctx, d, err)
				return
			}

			mu.Lock()
			result.Successful++
			mu.Unlock()
		}(d)
	}

	wg.Wait()

	s.metrics.RecordBatch(ctx, result)

	s.logger.Info().
		Str("user", userID).
		Int("total", result.Total).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Msg("notification batch dispatched")

	return result, nil
}

// retireDeadToken deactivates a device whose token the delivery API reports
// gone, so later batches stop targeting it. A 404 from the v1 send endpoint
// means the token is no longer registered. Best effort: a failed deactivation
// is logged and the next batch tries again.
func (s *Service) retireDeadToken(ctx context.Context, d *device.Device, err error) {
	var dispatchErr *fcm.DispatchError
	if !errors.As(err, &dispatchErr) || dispatchErr.Status != http.StatusNotFound {
		return
	}

	if derr := s.devices.Deactivate(ctx, d.UserID, d.ID); derr != nil {
		s.logger.Error().
			Err(derr).
			Str("user", d.UserID).
			Str("device", d.ID).
			Msg("failed to deactivate dead device token")
		return
	}

	s.logger.Info().
		Str("user", d.UserID).
		Str("device", d.ID).
		Str("token_last4", d.TokenLast4()).
		Msg("deactivated device, token no longer registered")
}
