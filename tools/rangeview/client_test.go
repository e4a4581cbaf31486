package rangeview

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"neonrange/server/internal/game"
	"neonrange/server/internal/input"
	"neonrange/server/internal/websockettest"
)

func TestClientHandshakeSendAndListen(t *testing.T) {
	received := make(chan input.Envelope, 1)
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Auth-Token") != "tok" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_ = conn.WriteJSON(game.ServerMessage{
			Type:         game.MessageWelcome,
			SessionID:    "abc",
			ServerTimeMs: time.Now().Add(10 * time.Minute).UnixMilli(),
		})
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		envelope, err := input.Decode(payload)
		if err == nil {
			received <- envelope
		}
		_ = conn.WriteJSON(game.FrameMessage(game.Snapshot{SessionID: "abc", Tick: 9, Score: 100}))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer ts.Close()
	url := websockettest.URL(ts.URL, "")

	if _, _, err := Dial(context.Background(), url, ""); err == nil {
		t.Fatal("expected dial without token to fail")
	}

	client, welcome, err := Dial(context.Background(), url, "tok")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()
	if welcome.SessionID != "abc" {
		t.Fatalf("unexpected welcome %+v", welcome)
	}

	if err := client.Send(input.Command{Kind: input.KindFire}); err != nil {
		t.Fatalf("send: %v", err)
	}
	select {
	case envelope := <-received:
		if envelope.Seq != 1 || envelope.Command.Kind != input.KindFire {
			t.Fatalf("unexpected envelope %+v", envelope)
		}
		if envelope.SentAtMs < time.Now().Add(9*time.Minute).UnixMilli() {
			t.Fatalf("command should be stamped in server time, got %d", envelope.SentAtMs)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the command")
	}

	var frames []game.Snapshot
	if err := client.Listen(context.Background(), func(s game.Snapshot) { frames = append(frames, s) }); err != nil {
		t.Fatalf("listen: %v", err)
	}
	if len(frames) != 1 || frames[0].Score != 100 {
		t.Fatalf("unexpected frames %+v", frames)
	}
}
