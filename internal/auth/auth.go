package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrMissingBearer = errors.New("missing Authorization header")
	ErrInvalidToken  = errors.New("invalid token")
)

// Verifier authenticates an inbound request. Implementations return nil
// only when the caller presented an acceptable credential.
type Verifier interface {
	Verify(ctx context.Context, r *http.Request) error
}

// TokenSource mints the reference credential a bearer token is compared
// against. Satisfied by the GitHub App client.
type TokenSource interface {
	InstallationToken(ctx context.Context) (string, error)
}

// InstallationVerifier accepts requests whose bearer token matches a
// freshly minted installation token. Each verification performs a live
// exchange with the identity provider; nothing is cached.
type InstallationVerifier struct {
	Tokens TokenSource
}

func (v *InstallationVerifier) Verify(ctx context.Context, r *http.Request) error {
	bearer, err := ExtractBearer(r)
	if err != nil {
		return err
	}

	reference, err := v.Tokens.InstallationToken(ctx)
	if err != nil {
		return fmt.Errorf("minting reference token: %w", err)
	}

	if subtle.ConstantTimeCompare([]byte(bearer), []byte(reference)) != 1 {
		return ErrInvalidToken
	}
	return nil
}

// StaticVerifier accepts a single fixed token. Used in tests and local
// development, where a GitHub App is not available.
type StaticVerifier struct {
	Token string
}

func (v *StaticVerifier) Verify(_ context.Context, r *http.Request) error {
	bearer, err := ExtractBearer(r)
	if err != nil {
		return err
	}
	if v.Token == "" || subtle.ConstantTimeCompare([]byte(bearer), []byte(v.Token)) != 1 {
		return ErrInvalidToken
	}
	return nil
}

// ExtractBearer pulls the bearer token out of the Authorization header.
func ExtractBearer(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", ErrMissingBearer
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", ErrMissingBearer
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return "", ErrMissingBearer
	}
	return token, nil
}
