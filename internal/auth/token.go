package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken indicates the token failed signature checks or had malformed structure.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken signals that the token's expiry is in the past.
	ErrExpiredToken = errors.New("token expired")
)

// TokenClaims captures the JWT payload used for WebSocket auth.
type TokenClaims struct {
	jwt.RegisteredClaims
	Name string `json:"name,omitempty"`
}

// VerifierOptions tunes token validation.
type VerifierOptions struct {
	Issuer   string
	Audience string
	Leeway   time.Duration
	Now      func() time.Time
}

// TokenVerifier validates HS256 tokens against a shared secret.
type TokenVerifier struct {
	secret []byte
	opts   VerifierOptions
}

// NewTokenVerifier constructs a verifier for the supplied shared secret.
func NewTokenVerifier(secret string, opts VerifierOptions) (*TokenVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	if opts.Leeway < 0 {
		opts.Leeway = 0
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &TokenVerifier{secret: []byte(secret), opts: opts}, nil
}

// Verify parses the token and validates the signature, expiry, issuer and audience.
func (v *TokenVerifier) Verify(token string) (*TokenClaims, error) {
	if v == nil || len(v.secret) == 0 {
		return nil, errors.New("verifier not initialised")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	//1.- Pin the algorithm so unsigned or asymmetric tokens never reach the key function.
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.opts.Leeway),
		jwt.WithTimeFunc(v.opts.Now),
		jwt.WithExpirationRequired(),
	}
	if v.opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.opts.Issuer))
	}
	if v.opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(v.opts.Audience))
	}

	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, parserOpts...)
	if err != nil {
		return nil, mapJWTError(err)
	}
	//2.- A subject is required because it becomes the logical client identifier.
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// Issue signs a token for subject valid for ttl. It is used by tooling and tests.
func (v *TokenVerifier) Issue(subject string, ttl time.Duration) (string, error) {
	if v == nil || len(v.secret) == 0 {
		return "", errors.New("verifier not initialised")
	}
	now := v.opts.Now()
	claims := TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    v.opts.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if v.opts.Audience != "" {
		claims.Audience = jwt.ClaimStrings{v.opts.Audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return fmt.Errorf("%w: %v", ErrExpiredToken, err)
	}
	return fmt.Errorf("%w: %v", ErrInvalidToken, err)
}
