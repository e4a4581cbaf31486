package spectate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"neonrange/server/internal/game"
)

// SharedSecretMetadataKey carries the spectator shared secret.
const SharedSecretMetadataKey = "x-range-shared-secret"

// Watch streams snapshots of a session into fn until the stream ends, fn fails or ctx is done.
func Watch(ctx context.Context, conn grpc.ClientConnInterface, sessionID, secret string, fn func(game.Snapshot) error) error {
	if secret != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, SharedSecretMetadataKey, secret)
	}
	raw, err := conn.NewStream(ctx, &ServiceDesc.Streams[0], streamFramesFullMethod)
	if err != nil {
		return err
	}
	stream := &grpc.GenericClientStream[wrapperspb.StringValue, wrapperspb.BytesValue]{ClientStream: raw}
	if err := stream.SendMsg(wrapperspb.String(sessionID)); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}

	header, err := stream.Header()
	if err != nil {
		return err
	}
	encoding := ""
	if values := header.Get(EncodingMetadataKey); len(values) > 0 {
		encoding = values[0]
	}
	compressor, err := CompressorFor(encoding)
	if err != nil {
		return err
	}

	for {
		message, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		payload, err := compressor.Decompress(message.GetValue())
		if err != nil {
			return err
		}
		var snapshot game.Snapshot
		if err := json.Unmarshal(payload, &snapshot); err != nil {
			return fmt.Errorf("decode frame: %w", err)
		}
		if err := fn(snapshot); err != nil {
			return err
		}
	}
}
