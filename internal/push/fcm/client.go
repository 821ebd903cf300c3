// Package fcm implements the FCM HTTP v1 notification dispatcher.
package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/pushgate/pushgate/internal/provider/resilience"
	"github.com/pushgate/pushgate/internal/push"
	"github.com/pushgate/pushgate/internal/push/googleoauth"
)

const (
	// ProviderName identifies this push delivery provider.
	ProviderName = "fcm"

	// DefaultBaseURL is the FCM HTTP v1 API base URL.
	DefaultBaseURL = "https://fcm.googleapis.com/v1"

	// androidClickAction is delivered to Flutter clients so a tap routes
	// into the app's notification handler.
	androidClickAction = "FLUTTER_NOTIFICATION_CLICK"
)

// DispatchError indicates a non-200 response from the delivery API, with
// the upstream error message extracted from the response body.
type DispatchError struct {
	Status  int
	Message string
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch failed with status %d: %s", e.Status, e.Message)
}

// ClientConfig holds configuration for the FCM client.
type ClientConfig struct {
	// BaseURL is the API base URL (optional, defaults to the FCM v1 API;
	// overridable for tests).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional). If nil, uses a
	// single-attempt resilient client: one outbound call per Send, no
	// retries, no batching.
	HTTPClient *resilience.Client

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is an FCM HTTP v1 API client.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new FCM client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.SingleAttemptClientConfig(ProviderName))
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// Send delivers one message to one device token. Exactly one outbound call
// per invocation; callers fan out per device and isolate failures so a bad
// token does not abort the rest of a batch.
func (c *Client) Send(ctx context.Context, token googleoauth.AccessToken, projectID string, msg push.Message) error {
	payload, err := json.Marshal(buildEnvelope(msg))
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}

	url := fmt.Sprintf("%s/projects/%s/messages:send", c.baseURL, projectID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.Value)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &push.NetworkError{Op: "fcm send", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &push.NetworkError{Op: "fcm send", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		dispatchErr := &DispatchError{
			Status:  resp.StatusCode,
			Message: upstreamMessage(body),
		}
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("token_last4", msg.TokenLast4()).
			Str("upstream_message", dispatchErr.Message).
			Msg("fcm rejected message")
		return dispatchErr
	}

	var sendResp sendResponse
	if err := json.Unmarshal(body, &sendResp); err == nil && sendResp.Name != "" {
		c.logger.Debug().
			Str("message_name", sendResp.Name).
			Str("token_last4", msg.TokenLast4()).
			Msg("fcm message sent")
	}

	return nil
}

// buildEnvelope wraps a message in the FCM v1 envelope with the platform
// hints this service always sends: high Android priority with the Flutter
// click action, and immediate APNs delivery.
func buildEnvelope(msg push.Message) sendRequest {
	return sendRequest{
		Message: message{
			Token: msg.Token,
			Notification: notification{
				Title: msg.Title,
				Body:  msg.Body,
			},
			Data: msg.Data,
			Android: &androidConfig{
				Priority: "high",
				Notification: &androidNotification{
					ClickAction: androidClickAction,
				},
			},
			APNS: &apnsConfig{
				Headers: map[string]string{"apns-priority": "10"},
			},
		},
	}
}

// upstreamMessage extracts error.message from an FCM error body.
func upstreamMessage(body []byte) string {
	var errResp sendResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == nil || errResp.Error.Message == "" {
		return "Unknown error"
	}
	return errResp.Error.Message
}
