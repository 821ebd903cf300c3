package googleoauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pushgate/pushgate/internal/provider/resilience"
	"github.com/pushgate/pushgate/internal/push"
)

func newTestExchanger(endpoint string) *TokenExchanger {
	return NewTokenExchanger(ExchangerConfig{
		Endpoint:   endpoint,
		HTTPClient: resilience.NewClient(resilience.SingleAttemptClientConfig("google-oauth-test")),
		Logger:     zerolog.Nop(),
	})
}

func TestTokenExchanger_Exchange(t *testing.T) {
	var gotGrantType, gotAssertion, gotContentType string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotGrantType = r.PostFormValue("grant_type")
		gotAssertion = r.PostFormValue("assertion")
		gotContentType = r.Header.Get("Content-Type")

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"ya29.test-token","expires_in":3600,"token_type":"Bearer"}`))
	}))
	defer server.Close()

	token, err := newTestExchanger(server.URL).Exchange(context.Background(), "signed-assertion")
	require.NoError(t, err)

	assert.Equal(t, "ya29.test-token", token.Value)
	assert.False(t, token.ObtainedAt.IsZero())
	assert.Equal(t, "urn:ietf:params:oauth:grant-type:jwt-bearer", gotGrantType)
	assert.Equal(t, "signed-assertion", gotAssertion)
	assert.Equal(t, "application/x-www-form-urlencoded", gotContentType)
}

func TestTokenExchanger_Exchange_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid JWT Signature."}`))
	}))
	defer server.Close()

	_, err := newTestExchanger(server.URL).Exchange(context.Background(), "bad-assertion")

	var exchangeErr *TokenExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	assert.Equal(t, http.StatusUnauthorized, exchangeErr.Status)
	assert.Contains(t, exchangeErr.Body, "invalid_grant")
}

func TestTokenExchanger_Exchange_MissingAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token_type":"Bearer"}`))
	}))
	defer server.Close()

	_, err := newTestExchanger(server.URL).Exchange(context.Background(), "signed-assertion")

	var exchangeErr *TokenExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	assert.Equal(t, http.StatusOK, exchangeErr.Status)
}

func TestTokenExchanger_Exchange_TransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	_, err := newTestExchanger(server.URL).Exchange(context.Background(), "signed-assertion")

	var netErr *push.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, "token exchange", netErr.Op)
}

func TestTokenExchanger_Exchange_SingleAttempt(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestExchanger(server.URL).Exchange(context.Background(), "signed-assertion")
	require.Error(t, err)
	assert.Equal(t, 1, calls, "exchange must not retry")
}
