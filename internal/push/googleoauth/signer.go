package googleoauth

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// MessagingScope is the OAuth2 scope for the FCM v1 API.
	MessagingScope = "https://www.googleapis.com/auth/firebase.messaging"

	// TokenEndpoint is the Google OAuth2 token endpoint the assertion is
	// addressed to (the `aud` claim) and exchanged at.
	TokenEndpoint = "https://oauth2.googleapis.com/token"

	// AssertionLifetime is how long a signed assertion is valid (exp - iat).
	AssertionLifetime = time.Hour
)

// SigningError indicates a malformed private key or a failed signing
// operation. An assertion is never partially returned.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("signing assertion: %v", e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

// assertionClaims is the JWT payload of a service account assertion.
type assertionClaims struct {
	jwt.RegisteredClaims

	// Scope is the space-delimited list of requested OAuth2 scopes.
	Scope string `json:"scope"`
}

// AssertionSigner builds and signs RS256 JWT assertions for a service
// credential. It is safe for concurrent use.
type AssertionSigner struct {
	key         *rsa.PrivateKey
	clientEmail string
}

// NewAssertionSigner parses the credential's PEM private key and returns a
// signer bound to that identity. A malformed key fails with SigningError.
func NewAssertionSigner(cred *ServiceCredential) (*AssertionSigner, error) {
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cred.PrivateKey))
	if err != nil {
		return nil, &SigningError{Err: fmt.Errorf("parsing private key: %w", err)}
	}

	return &AssertionSigner{
		key:         key,
		clientEmail: cred.ClientEmail,
	}, nil
}

// Sign produces a single-use signed assertion (header.payload.signature,
// base64url without padding) valid from now until now + AssertionLifetime.
func (s *AssertionSigner) Sign(now time.Time) (string, error) {
	claims := assertionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.clientEmail,
			Audience:  jwt.ClaimStrings{TokenEndpoint},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(AssertionLifetime)),
		},
		Scope: MessagingScope,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", &SigningError{Err: err}
	}

	return signed, nil
}
