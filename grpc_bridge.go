package main

import (
	"google.golang.org/grpc"

	configpkg "neonrange/server/internal/config"
	"neonrange/server/internal/logging"
	"neonrange/server/internal/spectate"
)

// newSpectatorServer builds the gRPC server exposing session frames from the hub.
func newSpectatorServer(cfg *configpkg.Config, hub *spectate.Hub, logger *logging.Logger) (*grpc.Server, error) {
	opts, err := configureGRPCSecurity(cfg, logger)
	if err != nil {
		return nil, err
	}
	server := grpc.NewServer(opts...)
	spectate.Register(server, spectate.NewService(hub, logger.With(logging.String("component", "spectate"))))
	return server, nil
}
