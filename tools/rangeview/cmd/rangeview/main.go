package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gdamore/tcell/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"neonrange/server/tools/rangeview"
)

func main() {
	serverURL := flag.String("url", "ws://localhost:7300/ws", "websocket endpoint of the range server")
	token := flag.String("token", "", "JWT for servers with auth enabled")
	spectateAddr := flag.String("spectate", "", "gRPC spectator address; enables spectate mode")
	sessionID := flag.String("session", "", "session to follow in spectate mode")
	secret := flag.String("secret", "", "spectator shared secret")
	mute := flag.Bool("mute", false, "disable hit sounds")
	flag.Parse()

	if *spectateAddr != "" && *sessionID == "" {
		fmt.Fprintln(os.Stderr, "session flag is required in spectate mode")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *serverURL, *token, *spectateAddr, *sessionID, *secret, *mute); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}
}

func run(ctx context.Context, serverURL, token, spectateAddr, sessionID, secret string, mute bool) error {
	sounder := rangeview.Silent()
	if !mute {
		if s, err := rangeview.NewSounder(); err == nil {
			sounder = s
		}
	}
	defer sounder.Close()

	//1.- Connect before taking over the terminal so failures print normally.
	var (
		client  *rangeview.Client
		conn    *grpc.ClientConn
		welcome rangeview.Welcome
		err     error
	)
	if spectateAddr != "" {
		conn, err = grpc.NewClient(spectateAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return fmt.Errorf("spectator client: %w", err)
		}
		defer conn.Close()
	} else {
		client, welcome, err = rangeview.Dial(ctx, serverURL, token)
		if err != nil {
			return err
		}
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	if conn != nil {
		return rangeview.RunSpectate(ctx, screen, conn, sessionID, secret, sounder)
	}
	return rangeview.RunPlay(ctx, screen, client, welcome, sounder)
}
