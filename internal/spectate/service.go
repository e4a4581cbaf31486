package spectate

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"neonrange/server/internal/logging"
)

const (
	// EncodingMetadataKey advertises the frame codec in the stream header.
	EncodingMetadataKey = "x-frame-encoding"

	serviceName            = "neonrange.spectate.v1.Spectator"
	streamFramesFullMethod = "/" + serviceName + "/StreamFrames"
)

// SpectatorServer is the server API for the spectator service.
type SpectatorServer interface {
	StreamFrames(*wrapperspb.StringValue, grpc.ServerStreamingServer[wrapperspb.BytesValue]) error
}

func streamFramesHandler(srv any, stream grpc.ServerStream) error {
	request := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(request); err != nil {
		return err
	}
	return srv.(SpectatorServer).StreamFrames(request, &grpc.GenericServerStream[wrapperspb.StringValue, wrapperspb.BytesValue]{ServerStream: stream})
}

// ServiceDesc describes the spectator service for grpc.Server registration.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*SpectatorServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamFrames",
			Handler:       streamFramesHandler,
			ServerStreams: true,
		},
	},
	Metadata: "neonrange/spectate/v1/spectate.proto",
}

// Register attaches the service to a gRPC server.
func Register(server grpc.ServiceRegistrar, service *Service) {
	server.RegisterService(&ServiceDesc, service)
}

// Option customises the Service.
type Option func(*Service)

// WithCompressor overrides the default payload compressor.
func WithCompressor(compressor Compressor) Option {
	return func(s *Service) {
		if compressor != nil {
			s.compressor = compressor
		}
	}
}

// Service streams compressed session snapshots to spectators.
type Service struct {
	hub        *Hub
	compressor Compressor
	log        *logging.Logger
}

// NewService wires the service to a hub.
func NewService(hub *Hub, logger *logging.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = logging.L()
	}
	service := &Service{hub: hub, compressor: NewGZIPCompressor(), log: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(service)
		}
	}
	return service
}

// StreamFrames relays the requested session's snapshots until it ends or the client leaves.
func (s *Service) StreamFrames(req *wrapperspb.StringValue, stream grpc.ServerStreamingServer[wrapperspb.BytesValue]) error {
	if s == nil || s.hub == nil {
		return status.Error(codes.FailedPrecondition, "spectating unavailable")
	}
	sessionID := strings.TrimSpace(req.GetValue())
	if sessionID == "" {
		return status.Error(codes.InvalidArgument, "session id required")
	}
	ctx := stream.Context()
	frames, cancel, err := s.hub.Subscribe(ctx, sessionID)
	if errors.Is(err, ErrUnknownSession) {
		return status.Errorf(codes.NotFound, "session %q not found", sessionID)
	}
	if err != nil {
		return status.Errorf(codes.Internal, "subscribe: %v", err)
	}
	defer cancel()

	//1.- Advertise the codec before the first frame so clients can pick a decoder.
	if err := stream.SendHeader(metadata.Pairs(EncodingMetadataKey, s.compressor.Name())); err != nil {
		return err
	}
	logger := s.log.With(logging.String("session_id", sessionID))
	logger.Info("spectator attached")
	defer logger.Info("spectator detached")

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return status.Error(codes.Canceled, "stream cancelled")
			}
			return status.Error(codes.DeadlineExceeded, "stream deadline exceeded")
		case frame, ok := <-frames:
			if !ok {
				//2.- The session ended; finish the stream cleanly.
				return nil
			}
			payload, err := s.compressor.Compress(frame.Payload)
			if err != nil {
				return status.Errorf(codes.Internal, "compress frame: %v", err)
			}
			if err := stream.Send(wrapperspb.Bytes(payload)); err != nil {
				return err
			}
		}
	}
}

var _ SpectatorServer = (*Service)(nil)
