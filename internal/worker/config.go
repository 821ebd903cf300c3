// Package worker provides the Pub/Sub-driven notification dispatcher.
package worker

import (
	"os"
	"strconv"
	"time"
)

// Config holds configuration for the notification worker.
type Config struct {
	// ProjectID is the Google Cloud project hosting the subscription.
	ProjectID string

	// SubscriptionName is the Pub/Sub subscription to consume jobs from.
	SubscriptionName string

	// MaxOutstanding is the number of messages processed concurrently.
	// Default: 10
	MaxOutstanding int

	// JobTimeout bounds one notification batch end to end.
	// Default: 30 seconds
	JobTimeout time.Duration
}

// ConfigFromEnv reads worker configuration from environment variables.
func ConfigFromEnv() Config {
	cfg := Config{
		ProjectID:        os.Getenv("PUBSUB_PROJECT_ID"),
		SubscriptionName: os.Getenv("PUBSUB_SUBSCRIPTION"),
		MaxOutstanding:   10,
		JobTimeout:       30 * time.Second,
	}

	if cfg.SubscriptionName == "" {
		cfg.SubscriptionName = "notification-jobs"
	}

	if v := os.Getenv("WORKER_MAX_OUTSTANDING"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxOutstanding = n
		}
	}

	if v := os.Getenv("WORKER_JOB_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.JobTimeout = d
		}
	}

	return cfg
}
