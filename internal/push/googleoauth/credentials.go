// Package googleoauth mints short-lived bearer access tokens for Google APIs
// by signing a JWT assertion with a service account key and exchanging it at
// the OAuth2 token endpoint.
package googleoauth

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ServiceCredential is a Google service account credential loaded from the
// JSON key file. It is read-only configuration with process lifetime.
type ServiceCredential struct {
	// PrivateKey is the PEM-encoded RSA private key.
	PrivateKey string `json:"private_key"`

	// ClientEmail identifies the service account (the assertion issuer).
	ClientEmail string `json:"client_email"`

	// ProjectID is the Google Cloud project the credential belongs to.
	ProjectID string `json:"project_id"`
}

// LoadCredential reads a service account credential from a JSON key file.
func LoadCredential(path string) (*ServiceCredential, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credential file: %w", err)
	}

	var cred ServiceCredential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return nil, fmt.Errorf("parsing credential file: %w", err)
	}

	if cred.PrivateKey == "" || cred.ClientEmail == "" || cred.ProjectID == "" {
		return nil, fmt.Errorf("credential file %s is missing private_key, client_email, or project_id", path)
	}

	return &cred, nil
}

// AccessToken is a short-lived bearer credential. It is valid for the
// request lifetime only and is never persisted or reused across batches.
type AccessToken struct {
	Value      string
	ObtainedAt time.Time
}
