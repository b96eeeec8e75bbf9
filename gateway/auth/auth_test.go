// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenFromEnv_Unset(t *testing.T) {
	_, err := TokenFromEnv("")
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("err = %v, want ErrNoToken", err)
	}
}

func TestTokenFromEnv_Set(t *testing.T) {
	t.Setenv("MCPCONN_TEST_TOKEN", "abc123")
	token, err := TokenFromEnv("MCPCONN_TEST_TOKEN")
	if err != nil {
		t.Fatalf("TokenFromEnv: %v", err)
	}
	if token != "abc123" {
		t.Errorf("token = %q, want abc123", token)
	}
}

func TestAttach_ReturnsTokenFromSource(t *testing.T) {
	src := StaticTokenSource("xyz789")
	token, err := Attach(context.Background(), src)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if token != "xyz789" {
		t.Errorf("token = %q, want xyz789", token)
	}
}

func signedTestToken(t *testing.T, expiry time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"exp": expiry.Unix()}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("signing test token: %v", err)
	}
	return signed
}

func TestValidateJWT_AcceptsUnexpired(t *testing.T) {
	token := signedTestToken(t, time.Now().Add(time.Hour))
	if err := ValidateJWT(token); err != nil {
		t.Errorf("ValidateJWT: %v", err)
	}
}

func TestValidateJWT_RejectsExpired(t *testing.T) {
	token := signedTestToken(t, time.Now().Add(-time.Hour))
	if err := ValidateJWT(token); err == nil {
		t.Error("want an error for an expired token")
	}
}

func TestValidateJWT_RejectsMalformed(t *testing.T) {
	if err := ValidateJWT("not-a-jwt"); err == nil {
		t.Error("want an error for a malformed token")
	}
}
