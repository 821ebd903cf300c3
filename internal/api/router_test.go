package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushgate/pushgate/internal/device"
	"github.com/pushgate/pushgate/internal/dispatch"
	"github.com/pushgate/pushgate/internal/push"
	"github.com/pushgate/pushgate/internal/push/googleoauth"
	"github.com/pushgate/pushgate/internal/subscriber"
)

type fakeSigner struct{}

func (fakeSigner) Sign(time.Time) (string, error) { return "assertion", nil }

type fakeExchanger struct{}

func (fakeExchanger) Exchange(context.Context, string) (googleoauth.AccessToken, error) {
	return googleoauth.AccessToken{Value: "tok"}, nil
}

type fakeSender struct{}

func (fakeSender) Send(context.Context, googleoauth.AccessToken, string, push.Message) error {
	return nil
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestRouter(t *testing.T) (http.Handler, *subscriber.InMemoryRepository) {
	t.Helper()

	subs := subscriber.NewInMemoryRepository()
	deviceService := device.NewService(device.ServiceConfig{
		Repository:  device.NewInMemoryRepository(),
		Subscribers: subs,
		Logger:      zerolog.Nop(),
	})
	dispatchService := dispatch.NewService(dispatch.ServiceConfig{
		Signer:    fakeSigner{},
		Exchanger: fakeExchanger{},
		Sender:    fakeSender{},
		Devices:   deviceService,
		ProjectID: "demo-project",
		Logger:    zerolog.Nop(),
	})

	router := NewRouter(RouterConfig{
		Version:         "test",
		Logger:          zerolog.Nop(),
		DeviceService:   deviceService,
		DispatchService: dispatchService,
	})
	return router, subs
}

func registerBody(userID string) []byte {
	body, _ := json.Marshal(map[string]any{
		"user_id":     userID,
		"fcm_token":   strings.Repeat("t", 60),
		"device_type": "android",
	})
	return body
}

func doRequest(t *testing.T, router http.Handler, method, path string, body []byte) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestRouter_RegisterDevice_Created(t *testing.T) {
	router, subs := newTestRouter(t)
	subs.Add("user-1")

	rec, env := doRequest(t, router, http.MethodPost, "/api/device/register", registerBody("user-1"))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "success", env.Status)

	var data struct {
		DeviceID string `json:"device_id"`
		Action   string `json:"action"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "created", data.Action)
	assert.NotEmpty(t, data.DeviceID)
}

func TestRouter_RegisterDevice_Updated(t *testing.T) {
	router, subs := newTestRouter(t)
	subs.Add("user-1")

	rec, _ := doRequest(t, router, http.MethodPost, "/api/device/register", registerBody("user-1"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := doRequest(t, router, http.MethodPost, "/api/device/register", registerBody("user-1"))
	assert.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Action string `json:"action"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "updated", data.Action)
}

func TestRouter_RegisterDevice_Validation(t *testing.T) {
	router, subs := newTestRouter(t)
	subs.Add("user-1")

	body, _ := json.Marshal(map[string]any{"user_id": "user-1", "fcm_token": "short"})
	rec, env := doRequest(t, router, http.MethodPost, "/api/device/register", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "error", env.Status)
	assert.Contains(t, env.Message, "fcm_token")
}

func TestRouter_RegisterDevice_UnknownUser(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, env := doRequest(t, router, http.MethodPost, "/api/device/register", registerBody("nobody"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "error", env.Status)
}

func TestRouter_RegisterDevice_WrongMethod(t *testing.T) {
	router, _ := newTestRouter(t)

	rec, env := doRequest(t, router, http.MethodGet, "/api/device/register", nil)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "error", env.Status)
}

func TestRouter_RegisterDevice_Preflight(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/device/register", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_ListDevices(t *testing.T) {
	router, subs := newTestRouter(t)
	subs.Add("user-1")

	rec, _ := doRequest(t, router, http.MethodPost, "/api/device/register", registerBody("user-1"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, env := doRequest(t, router, http.MethodGet, "/api/device/list/user-1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		UserID  string `json:"user_id"`
		Devices []struct {
			TokenLast4 string `json:"token_last4"`
		} `json:"devices"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "user-1", data.UserID)
	require.Len(t, data.Devices, 1)
	assert.Len(t, data.Devices[0].TokenLast4, 4, "raw token must not be exposed")
}

func TestRouter_NotifyUser(t *testing.T) {
	router, subs := newTestRouter(t)
	subs.Add("user-1")

	rec, _ := doRequest(t, router, http.MethodPost, "/api/device/register", registerBody("user-1"))
	require.Equal(t, http.StatusCreated, rec.Code)

	body, _ := json.Marshal(map[string]any{"user_id": "user-1", "title": "hi", "body": "there"})
	rec, env := doRequest(t, router, http.MethodPost, "/api/notify/user", body)

	assert.Equal(t, http.StatusOK, rec.Code)

	var data struct {
		Total      int `json:"total"`
		Successful int `json:"successful"`
		Failed     int `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 1, data.Total)
	assert.Equal(t, 1, data.Successful)
	assert.Equal(t, 0, data.Failed)
}

func TestRouter_NotifyUser_UnknownUser(t *testing.T) {
	router, _ := newTestRouter(t)

	body, _ := json.Marshal(map[string]any{"user_id": "nobody", "title": "hi", "body": "there"})
	rec, _ := doRequest(t, router, http.MethodPost, "/api/notify/user", body)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_OpsHealth(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/ops/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
