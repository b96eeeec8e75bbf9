// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package auth attaches a bearer token to an outbound backend connection.
// Full OAuth authorization-code handshakes are out of scope for this
// gateway; what's carried here is the static-token half of that flow:
// reading a configured token (optionally validating it as a JWT before
// ever sending it) and producing the value to propagate upstream.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

// ErrNoToken is returned by TokenFromEnv when envVar is unset or empty.
var ErrNoToken = errors.New("auth: no token configured")

// TokenFromEnv reads a bearer token from the environment variable named by
// envVar. An empty envVar means no auth is configured for this backend.
func TokenFromEnv(envVar string) (string, error) {
	if envVar == "" {
		return "", ErrNoToken
	}
	token := os.Getenv(envVar)
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// StaticTokenSource builds an oauth2.TokenSource that always returns token,
// so the same propagation path used for a full OAuth flow also carries a
// gateway-configured static token.
func StaticTokenSource(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

// ValidateJWT parses token as a JWT and checks it is not expired, without
// verifying a signature — the gateway is a relay, not the token's issuer,
// so signature verification belongs to the backend the token authenticates
// against. This only catches a malformed or already-expired token before
// it is propagated.
func ValidateJWT(token string) error {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("auth: parsing token: %w", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil {
		return fmt.Errorf("auth: reading expiry: %w", err)
	}
	if exp != nil && exp.Before(time.Now()) {
		return fmt.Errorf("auth: token expired at %s", exp)
	}
	return nil
}

// Attach returns the access token drawn from a backend's configured token
// source, ready to be attached to an outbound connection (the gateway pool
// puts it in the Authorization header of WebSocket and streamable-HTTP
// handshakes). It does not modify any request or params object.
func Attach(ctx context.Context, src oauth2.TokenSource) (string, error) {
	tok, err := src.Token()
	if err != nil {
		return "", fmt.Errorf("auth: token source: %w", err)
	}
	return tok.AccessToken, nil
}
