package spectate

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"neonrange/server/internal/game"
	"neonrange/server/internal/logging"
)

var errStop = errors.New("stop")

func startSpectator(t *testing.T, hub *Hub) *grpc.ClientConn {
	t.Helper()
	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	Register(server, NewService(hub, logging.NewTestLogger()))
	go server.Serve(listener)
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestStreamFramesDeliversCompressedSnapshots(t *testing.T) {
	hub := NewHub(logging.NewTestLogger())
	hub.Register("alpha")
	conn := startSpectator(t, hub)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	//1.- Keep publishing until the stream has subscribed and a frame makes it through.
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for tick := uint64(1); ; tick++ {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				hub.Publish("alpha", game.Snapshot{SessionID: "alpha", Tick: tick, Score: 100})
			}
		}
	}()

	var received game.Snapshot
	err := Watch(ctx, conn, "alpha", "", func(snapshot game.Snapshot) error {
		received = snapshot
		return errStop
	})
	if !errors.Is(err, errStop) {
		t.Fatalf("expected stop error, got %v", err)
	}
	if received.SessionID != "alpha" || received.Score != 100 {
		t.Fatalf("unexpected snapshot %+v", received)
	}
}

func TestStreamFramesUnknownSession(t *testing.T) {
	conn := startSpectator(t, NewHub(logging.NewTestLogger()))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := Watch(ctx, conn, "ghost", "", func(game.Snapshot) error { return nil })
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestStreamFramesEndsWithSession(t *testing.T) {
	hub := NewHub(logging.NewTestLogger())
	hub.Register("alpha")
	conn := startSpectator(t, hub)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go func() {
		for hub.Stats().Watchers == 0 {
			time.Sleep(5 * time.Millisecond)
		}
		hub.Unregister("alpha")
	}()

	if err := Watch(ctx, conn, "alpha", "", func(game.Snapshot) error { return nil }); err != nil {
		t.Fatalf("expected clean end of stream, got %v", err)
	}
}

func TestStreamFramesRequiresSessionID(t *testing.T) {
	conn := startSpectator(t, NewHub(logging.NewTestLogger()))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := Watch(ctx, conn, "  ", "", func(game.Snapshot) error { return nil })
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}
