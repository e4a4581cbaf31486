package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"neonrange/server/internal/auth"
	configpkg "neonrange/server/internal/config"
)

const tokenLeeway = 2 * time.Second

type websocketAuthenticator interface {
	Authenticate(r *http.Request) (string, error)
}

type allowAllAuthenticator struct{}

func (allowAllAuthenticator) Authenticate(*http.Request) (string, error) {
	return "", nil
}

type jwtWebsocketAuthenticator struct {
	verifier *auth.TokenVerifier
}

func newJWTWebsocketAuthenticator(cfg configpkg.AuthConfig) (websocketAuthenticator, error) {
	verifier, err := auth.NewTokenVerifier(cfg.JWTSecret, auth.VerifierOptions{
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		Leeway:   tokenLeeway,
	})
	if err != nil {
		return nil, err
	}
	return &jwtWebsocketAuthenticator{verifier: verifier}, nil
}

// Authenticate validates the upgrade token and returns the player subject.
func (a *jwtWebsocketAuthenticator) Authenticate(r *http.Request) (string, error) {
	if a == nil || a.verifier == nil {
		return "", errors.New("verifier not configured")
	}
	token := strings.TrimSpace(r.URL.Query().Get("auth_token"))
	if token == "" {
		token = strings.TrimSpace(r.Header.Get("X-Auth-Token"))
	}
	if token == "" {
		if header := strings.TrimSpace(r.Header.Get("Authorization")); len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
			token = strings.TrimSpace(header[7:])
		}
	}
	if token == "" {
		return "", errors.New("missing auth token")
	}
	claims, err := a.verifier.Verify(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// WithWebsocketAuthenticator wires a custom authenticator into the server.
func WithWebsocketAuthenticator(authenticator websocketAuthenticator) ServerOption {
	return func(s *Server) {
		if s == nil || authenticator == nil {
			return
		}
		s.authenticator = authenticator
	}
}
