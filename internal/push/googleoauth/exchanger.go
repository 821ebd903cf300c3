package googleoauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pushgate/pushgate/internal/provider/resilience"
	"github.com/pushgate/pushgate/internal/push"
)

// grantType is the fixed OAuth2 grant for JWT-bearer assertion exchange.
const grantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"

// TokenExchangeError indicates a non-200 response from the token endpoint
// or a 200 response missing the access_token field. Body is preserved for
// diagnostics.
type TokenExchangeError struct {
	Status int
	Body   string
}

func (e *TokenExchangeError) Error() string {
	return fmt.Sprintf("token exchange failed with status %d: %s", e.Status, e.Body)
}

// ExchangerConfig holds configuration for the token exchanger.
type ExchangerConfig struct {
	// Endpoint is the OAuth2 token endpoint (optional, defaults to
	// TokenEndpoint; overridable for tests).
	Endpoint string

	// HTTPClient is the HTTP client to use (optional). If nil, uses a
	// single-attempt resilient client: the exchange contract is one
	// request per call, retries are the caller's decision.
	HTTPClient *resilience.Client

	// Logger for exchange operations.
	Logger zerolog.Logger
}

// TokenExchanger exchanges signed assertions for bearer access tokens.
type TokenExchanger struct {
	endpoint   string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewTokenExchanger creates a new token exchanger.
func NewTokenExchanger(cfg ExchangerConfig) *TokenExchanger {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = TokenEndpoint
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.SingleAttemptClientConfig("google-oauth"))
	}

	return &TokenExchanger{
		endpoint:   endpoint,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Exchange posts the signed assertion to the token endpoint and returns the
// bearer access token. Transport failures surface as push.NetworkError;
// non-200 responses and malformed bodies surface as TokenExchangeError.
// Single attempt, no retry.
func (e *TokenExchanger) Exchange(ctx context.Context, assertion string) (AccessToken, error) {
	form := url.Values{
		"grant_type": {grantType},
		"assertion":  {assertion},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return AccessToken{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return AccessToken{}, &push.NetworkError{Op: "token exchange", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return AccessToken{}, &push.NetworkError{Op: "token exchange", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		e.logger.Warn().
			Int("status", resp.StatusCode).
			Str("body", string(body)).
			Msg("token endpoint rejected assertion")
		return AccessToken{}, &TokenExchangeError{Status: resp.StatusCode, Body: string(body)}
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return AccessToken{}, &TokenExchangeError{Status: resp.StatusCode, Body: string(body)}
	}
	if tokenResp.AccessToken == "" {
		return AccessToken{}, &TokenExchangeError{Status: resp.StatusCode, Body: string(body)}
	}

	return AccessToken{
		Value:      tokenResp.AccessToken,
		ObtainedAt: time.Now(),
	}, nil
}
