package dispatch

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushgate/pushgate/internal/device"
	"github.com/pushgate/pushgate/internal/push"
	"github.com/pushgate/pushgate/internal/push/fcm"
	"github.com/pushgate/pushgate/internal/push/googleoauth"
)

type stubSigner struct {
	assertion string
	err       error
	calls     int
}

func (s *stubSigner) Sign(time.Time) (string, error) {
	s.calls++
	return s.assertion, s.err
}

type stubExchanger struct {
	token googleoauth.AccessToken
	err   error
	calls int
}

func (e *stubExchanger) Exchange(context.Context, string) (googleoauth.AccessToken, error) {
	e.calls++
	return e.token, e.err
}

type stubSender struct {
	mu     sync.Mutex
	sent   []push.Message
	failOn map[string]error // keyed by token
}

func (s *stubSender) Send(_ context.Context, _ googleoauth.AccessToken, _ string, msg push.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failOn[msg.Token]; ok {
		return err
	}
	s.sent = append(s.sent, msg)
	return nil
}

type stubRegistry struct {
	devices []*device.Device
	err     error

	mu          sync.Mutex
	deactivated []string
}

func (r *stubRegistry) ActiveDevices(context.Context, string) ([]*device.Device, error) {
	return r.devices, r.err
}

func (r *stubRegistry) Deactivate(_ context.Context, _, deviceID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deactivated = append(r.deactivated, deviceID)
	return nil
}

func testDevice(id, tokenSuffix string) *device.Device {
	return &device.Device{
		ID:     id,
		UserID: "user-1",
		Token:  strings.Repeat("t", 60) + tokenSuffix,
		Type:   device.TypeAndroid,
		Active: true,
	}
}

func TestService_NotifyUser_FanOut(t *testing.T) {
	signer := &stubSigner{assertion: "signed"}
	exchanger := &stubExchanger{token: googleoauth.AccessToken{Value: "tok"}}
	sender := &stubSender{}
	registry := &stubRegistry{devices: []*device.Device{
		testDevice("d1", "1"),
		testDevice("d2", "2"),
		testDevice("d3", "3"),
	}}

	svc := NewService(ServiceConfig{
		Signer:    signer,
		Exchanger: exchanger,
		Sender:    sender,
		Devices:   registry,
		ProjectID: "demo-project",
		Logger:    zerolog.Nop(),
	})

	result, err := svc.NotifyUser(context.Background(), "user-1", "hello", "world", map[string]any{"k": 1})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Successful)
	assert.Equal(t, 0, result.Failed)
	assert.Len(t, sender.sent, 3)
	assert.Equal(t, 1, signer.calls, "one assertion per batch")
	assert.Equal(t, 1, exchanger.calls, "one token exchange per batch")
	assert.Equal(t, "1", sender.sent[0].Data["k"], "data values coerced to strings")
}

func TestService_NotifyUser_IsolatesDeviceFailures(t *testing.T) {
	bad := testDevice("d2", "2")
	sender := &stubSender{failOn: map[string]error{
		bad.Token: &fcm.DispatchError{Status: 404, Message: "Requested entity was not found."},
	}}
	registry := &stubRegistry{devices: []*device.Device{
		testDevice("d1", "1"),
		bad,
		testDevice("d3", "3"),
	}}

	svc := NewService(ServiceConfig{
		Signer:    &stubSigner{assertion: "signed"},
		Exchanger: &stubExchanger{token: googleoauth.AccessToken{Value: "tok"}},
		Sender:    sender,
		Devices:   registry,
		ProjectID: "demo-project",
		Logger:    zerolog.Nop(),
	})

	result, err := svc.NotifyUser(context.Background(), "user-1", "hello", "world", nil)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Successful)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "d2", result.Errors[0].DeviceID)

	var dispatchErr *fcm.DispatchError
	assert.ErrorAs(t, result.Errors[0].Err, &dispatchErr)
}

func TestService_NotifyUser_RetiresDeadTokens(t *testing.T) {
	dead := testDevice("d2", "2")
	flaky := testDevice("d3", "3")
	sender := &stubSender{failOn: map[string]error{
		dead.Token:  &fcm.DispatchError{Status: 404, Message: "Requested entity was not found."},
		flaky.Token: &fcm.DispatchError{Status: 503, Message: "Service unavailable."},
	}}
	registry := &stubRegistry{devices: []*device.Device{
		testDevice("d1", "1"),
		dead,
		flaky,
	}}

	svc := NewService(ServiceConfig{
		Signer:    &stubSigner{assertion: "signed"},
		Exchanger: &stubExchanger{token: googleoauth.AccessToken{Value: "tok"}},
		Sender:    sender,
		Devices:   registry,
		ProjectID: "demo-project",
		Logger:    zerolog.Nop(),
	})

	result, err := svc.NotifyUser(context.Background(), "user-1", "hello", "world", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Failed)

	assert.Equal(t, []string{"d2"}, registry.deactivated,
		"only the device the delivery API reports gone is deactivated")
}

func TestService_NotifyUser_NoDevices(t *testing.T) {
	signer := &stubSigner{assertion: "signed"}
	exchanger := &stubExchanger{token: googleoauth.AccessToken{Value: "tok"}}

	svc := NewService(ServiceConfig{
		Signer:    signer,
		Exchanger: exchanger,
		Sender:    &stubSender{},
		Devices:   &stubRegistry{},
		ProjectID: "demo-project",
		Logger:    zerolog.Nop(),
	})

	result, err := svc.NotifyUser(context.Background(), "user-1", "hello", "world", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Total)
	assert.Equal(t, 0, signer.calls, "no credential minting without targets")
}

func TestService_NotifyUser_ExchangeFailureAbortsBatch(t *testing.T) {
	sender := &stubSender{}

	svc := NewService(ServiceConfig{
		Signer:    &stubSigner{assertion: "signed"},
		Exchanger: &stubExchanger{err: &googleoauth.TokenExchangeError{Status: 401, Body: "invalid_grant"}},
		Sender:    sender,
		Devices:   &stubRegistry{devices: []*device.Device{testDevice("d1", "1")}},
		ProjectID: "demo-project",
		Logger:    zerolog.Nop(),
	})

	_, err := svc.NotifyUser(context.Background(), "user-1", "hello", "world", nil)

	var exchangeErr *googleoauth.TokenExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	assert.Empty(t, sender.sent, "no sends after a failed exchange")
}
