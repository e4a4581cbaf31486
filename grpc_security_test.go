package main

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	configpkg "neonrange/server/internal/config"
	"neonrange/server/internal/logging"
	"neonrange/server/internal/spectate"
)

type stubServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *stubServerStream) Context() context.Context {
	return s.ctx
}

func TestSharedSecretInterceptorAcceptsValidSecret(t *testing.T) {
	interceptor := newSharedSecretStreamInterceptor("hunter2")
	md := metadata.New(map[string]string{spectate.SharedSecretMetadataKey: "hunter2"})
	stream := &stubServerStream{ctx: metadata.NewIncomingContext(context.Background(), md)}
	called := false
	handler := func(any, grpc.ServerStream) error {
		called = true
		return nil
	}
	if err := interceptor(nil, stream, &grpc.StreamServerInfo{}, handler); err != nil {
		t.Fatalf("interceptor returned error: %v", err)
	}
	if !called {
		t.Fatal("expected handler to be invoked for valid secret")
	}
}

func TestSharedSecretInterceptorAcceptsBearerToken(t *testing.T) {
	interceptor := newSharedSecretStreamInterceptor("hunter2")
	md := metadata.New(map[string]string{"authorization": "Bearer hunter2"})
	stream := &stubServerStream{ctx: metadata.NewIncomingContext(context.Background(), md)}
	handler := func(any, grpc.ServerStream) error { return nil }
	if err := interceptor(nil, stream, &grpc.StreamServerInfo{}, handler); err != nil {
		t.Fatalf("interceptor returned error: %v", err)
	}
}

func TestSharedSecretInterceptorRejects(t *testing.T) {
	interceptor := newSharedSecretStreamInterceptor("hunter2")
	cases := map[string]context.Context{
		"no_metadata":  context.Background(),
		"empty_secret": metadata.NewIncomingContext(context.Background(), metadata.New(map[string]string{})),
		"wrong_secret": metadata.NewIncomingContext(context.Background(), metadata.New(map[string]string{spectate.SharedSecretMetadataKey: "nope"})),
	}
	for name, ctx := range cases {
		t.Run(name, func(t *testing.T) {
			handler := func(any, grpc.ServerStream) error {
				t.Fatal("handler must not run")
				return nil
			}
			err := interceptor(nil, &stubServerStream{ctx: ctx}, &grpc.StreamServerInfo{}, handler)
			if status.Code(err) != codes.Unauthenticated {
				t.Fatalf("expected unauthenticated, got %v", err)
			}
		})
	}
}

func TestConfigureGRPCSecurity(t *testing.T) {
	opts, err := configureGRPCSecurity(&configpkg.Config{}, logging.NewTestLogger())
	if err != nil {
		t.Fatalf("configureGRPCSecurity: %v", err)
	}
	if len(opts) != 0 {
		t.Fatalf("expected no options without security settings, got %d", len(opts))
	}

	cfg := &configpkg.Config{Spectate: configpkg.SpectateConfig{SharedSecret: "hunter2"}}
	opts, err = configureGRPCSecurity(cfg, logging.NewTestLogger())
	if err != nil {
		t.Fatalf("configureGRPCSecurity: %v", err)
	}
	if len(opts) != 1 {
		t.Fatalf("expected interceptor option, got %d", len(opts))
	}
}

func TestConfigureGRPCSecurityFailsWithBadTLSPaths(t *testing.T) {
	cfg := &configpkg.Config{TLSCertPath: "missing-cert", TLSKeyPath: "missing-key"}
	if _, err := configureGRPCSecurity(cfg, logging.NewTestLogger()); err == nil {
		t.Fatal("expected error for missing tls files")
	}
}
