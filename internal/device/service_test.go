package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushgate/pushgate/internal/subscriber"
)

func testToken(suffix string) string {
	return strings.Repeat("x", MinTokenLength) + suffix
}

func newTestService(t *testing.T) (*Service, *InMemoryRepository, *subscriber.InMemoryRepository) {
	t.Helper()

	repo := NewInMemoryRepository()
	subs := subscriber.NewInMemoryRepository()
	svc := NewService(ServiceConfig{
		Repository:  repo,
		Subscribers: subs,
		Logger:      zerolog.Nop(),
	})
	return svc, repo, subs
}

func TestService_Register_CreatesDevice(t *testing.T) {
	svc, repo, subs := newTestService(t)
	subs.Add("user-1")

	result, err := svc.Register(context.Background(), RegisterInput{
		UserID: "user-1",
		Token:  testToken("a"),
	})
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, result.Action)
	assert.NotEmpty(t, result.DeviceID)

	stored, err := repo.GetByToken(context.Background(), testToken("a"))
	require.NoError(t, err)
	assert.Equal(t, "user-1", stored.UserID)
	assert.Equal(t, TypeAndroid, stored.Type, "device type should default to android")
	assert.True(t, stored.Active)
}

func TestService_Register_SameUserSameTokenUpdates(t *testing.T) {
	svc, repo, subs := newTestService(t)
	subs.Add("user-1")

	first, err := svc.Register(context.Background(), RegisterInput{
		UserID: "user-1",
		Token:  testToken("a"),
	})
	require.NoError(t, err)

	name := "pixel"
	second, err := svc.Register(context.Background(), RegisterInput{
		UserID:     "user-1",
		Token:      testToken("a"),
		DeviceType: TypeAndroid,
		DeviceName: &name,
	})
	require.NoError(t, err)

	assert.Equal(t, ActionUpdated, second.Action)
	assert.Equal(t, first.DeviceID, second.DeviceID, "re-registration should keep the device ID")
	assert.Len(t, repo.All(), 1, "re-registration should not add a record")
}

func TestService_Register_ReassignsTokenBetweenUsers(t *testing.T) {
	svc, repo, subs := newTestService(t)
	subs.Add("user-1")
	subs.Add("user-2")

	first, err := svc.Register(context.Background(), RegisterInput{
		UserID: "user-1",
		Token:  testToken("a"),
	})
	require.NoError(t, err)

	second, err := svc.Register(context.Background(), RegisterInput{
		UserID: "user-2",
		Token:  testToken("a"),
	})
	require.NoError(t, err)
	assert.Equal(t, ActionCreated, second.Action)
	assert.NotEqual(t, first.DeviceID, second.DeviceID)

	active, err := repo.GetByToken(context.Background(), testToken("a"))
	require.NoError(t, err)
	assert.Equal(t, "user-2", active.UserID, "new owner should hold the only active record")

	oldDevices, err := repo.ListActiveByUser(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, oldDevices, "previous owner's record should be deactivated")

	var activeCount int
	for _, d := range repo.All() {
		if d.Active {
			activeCount++
		}
	}
	assert.Equal(t, 1, activeCount, "at most one active record per token")
}

func TestService_Register_TokenBouncesBackToOriginalUser(t *testing.T) {
	svc, repo, subs := newTestService(t)
	subs.Add("user-1")
	subs.Add("user-2")

	_, err := svc.Register(context.Background(), RegisterInput{UserID: "user-1", Token: testToken("a")})
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), RegisterInput{UserID: "user-2", Token: testToken("a")})
	require.NoError(t, err)

	back, err := svc.Register(context.Background(), RegisterInput{UserID: "user-1", Token: testToken("a")})
	require.NoError(t, err)
	assert.Equal(t, ActionUpdated, back.Action, "original user's record is refreshed, not duplicated")

	var activeCount int
	for _, d := range repo.All() {
		if d.Active {
			activeCount++
			assert.Equal(t, "user-1", d.UserID)
		}
	}
	assert.Equal(t, 1, activeCount, "bounce-back must not leave two active records")
}

func TestService_Register_ConcurrentSameToken(t *testing.T) {
	svc, repo, subs := newTestService(t)

	const writers = 16
	users := make([]string, writers)
	for i := range users {
		users[i] = fmt.Sprintf("user-%d", i%4)
	}
	subs.Add("user-0")
	subs.Add("user-1")
	subs.Add("user-2")
	subs.Add("user-3")

	var wg sync.WaitGroup
	for _, userID := range users {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := svc.Register(context.Background(), RegisterInput{
				UserID: userID,
				Token:  testToken("a"),
			})
			assert.NoError(t, err)
		}(userID)
	}
	wg.Wait()

	var activeCount int
	for _, d := range repo.All() {
		if d.Active {
			activeCount++
		}
	}
	assert.Equal(t, 1, activeCount, "racing registrations must leave one active record per token")
}

func TestService_Register_Validation(t *testing.T) {
	svc, _, subs := newTestService(t)
	subs.Add("user-1")

	tests := []struct {
		name  string
		input RegisterInput
		field string
	}{
		{
			name:  "empty user ID",
			input: RegisterInput{Token: testToken("a")},
			field: "user_id",
		},
		{
			name:  "empty token",
			input: RegisterInput{UserID: "user-1"},
			field: "fcm_token",
		},
		{
			name:  "short token",
			input: RegisterInput{UserID: "user-1", Token: "too-short"},
			field: "fcm_token",
		},
		{
			name:  "unknown device type",
			input: RegisterInput{UserID: "user-1", Token: testToken("a"), DeviceType: "blackberry"},
			field: "device_type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(context.Background(), tt.input)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestService_Register_UnknownUser(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Register(context.Background(), RegisterInput{
		UserID: "nobody",
		Token:  testToken("a"),
	})
	assert.ErrorIs(t, err, subscriber.ErrNotFound)
}

func TestService_ActiveDevices(t *testing.T) {
	svc, _, subs := newTestService(t)
	subs.Add("user-1")

	_, err := svc.Register(context.Background(), RegisterInput{UserID: "user-1", Token: testToken("a")})
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), RegisterInput{UserID: "user-1", Token: testToken("b"), DeviceType: TypeIOS})
	require.NoError(t, err)

	devices, err := svc.ActiveDevices(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, devices, 2)
}

func TestService_ActiveDevices_UnknownUser(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.ActiveDevices(context.Background(), "nobody")
	assert.ErrorIs(t, err, subscriber.ErrNotFound)
}

func TestService_Deactivate(t *testing.T) {
	svc, _, subs := newTestService(t)
	subs.Add("user-1")

	result, err := svc.Register(context.Background(), RegisterInput{UserID: "user-1", Token: testToken("a")})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(context.Background(), "user-1", result.DeviceID))

	devices, err := svc.ActiveDevices(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, devices)

	err = svc.Deactivate(context.Background(), "user-1", "missing-device")
	assert.True(t, errors.Is(err, ErrDeviceNotFound))
}
