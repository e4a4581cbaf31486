package main

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	configpkg "neonrange/server/internal/config"
	"neonrange/server/internal/logging"
	"neonrange/server/internal/spectate"
)

func configureGRPCSecurity(cfg *configpkg.Config, logger *logging.Logger) ([]grpc.ServerOption, error) {
	if cfg == nil {
		return nil, fmt.Errorf("grpc config required")
	}
	if logger == nil {
		logger = logging.L()
	}
	var opts []grpc.ServerOption
	if cfg.TLSEnabled() {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCertPath, cfg.TLSKeyPath)
		if err != nil {
			return nil, fmt.Errorf("load grpc tls: %w", err)
		}
		opts = append(opts, grpc.Creds(creds))
		logger.Info("gRPC TLS enabled")
	}
	if secret := strings.TrimSpace(cfg.Spectate.SharedSecret); secret != "" {
		opts = append(opts, grpc.ChainStreamInterceptor(newSharedSecretStreamInterceptor(secret)))
		logger.Info("gRPC shared-secret authentication enabled")
	}
	return opts, nil
}

func newSharedSecretStreamInterceptor(secret string) grpc.StreamServerInterceptor {
	normalized := strings.TrimSpace(secret)
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if normalized == "" {
			return status.Error(codes.Unauthenticated, "shared secret not configured")
		}
		md, ok := metadata.FromIncomingContext(ss.Context())
		if !ok {
			return status.Error(codes.Unauthenticated, "missing metadata")
		}
		candidate := extractSharedSecret(md)
		if candidate == "" {
			return status.Error(codes.Unauthenticated, "missing shared secret")
		}
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(normalized)) != 1 {
			return status.Error(codes.Unauthenticated, "invalid shared secret")
		}
		return handler(srv, ss)
	}
}

func extractSharedSecret(md metadata.MD) string {
	for _, value := range md.Get(spectate.SharedSecretMetadataKey) {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	for _, value := range md.Get("authorization") {
		if len(value) > 7 && strings.EqualFold(value[:7], "bearer ") {
			if token := strings.TrimSpace(value[7:]); token != "" {
				return token
			}
		}
	}
	return ""
}
