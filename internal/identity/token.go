package identity

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/gatehouse-io/gatehouse/internal/shared"
)

const (
	accessTokenBytes = 32
	authKeyBytes     = 24

	issueAttempts = 5
)

// TokenStore is the subset of Repository the issuer needs for its
// uniqueness check.
type TokenStore interface {
	FindByAccessToken(ctx context.Context, token string) (*User, error)
}

// Issuer generates opaque bearer tokens and auth keys from a
// cryptographically secure random source. Access tokens are checked for
// uniqueness against the store before acceptance; a collision is not an
// error, just a reason to draw again.
type Issuer struct {
	store TokenStore
}

// NewIssuer constructs an Issuer backed by the given store.
func NewIssuer(store TokenStore) *Issuer {
	return &Issuer{store: store}
}

// AccessToken returns a fresh unique bearer token.
func (i *Issuer) AccessToken(ctx context.Context) (string, error) {
	for attempt := 0; attempt < issueAttempts; attempt++ {
		token, err := randomString(accessTokenBytes)
		if err != nil {
			return "", err
		}
		_, err = i.store.FindByAccessToken(ctx, token)
		if errors.Is(err, shared.ErrNotFound) {
			return token, nil
		}
		if err != nil {
			return "", fmt.Errorf("identity: token uniqueness check: %w", err)
		}
	}
	return "", errors.New("identity: exhausted token generation attempts")
}

// AuthKey returns a fresh auth key. The key is generated like an access
// token but is not validated by any live flow; it only has to stay set on
// every persisted account.
func (i *Issuer) AuthKey() (string, error) {
	return randomString(authKeyBytes)
}

func randomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("identity: read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
