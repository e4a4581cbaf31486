package rangeview

import (
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"neonrange/server/internal/input"
)

func TestBindMapsKeys(t *testing.T) {
	cases := map[string]struct {
		event *tcell.EventKey
		want  Binding
	}{
		"forward":   {tcell.NewEventKey(tcell.KeyRune, 'w', tcell.ModNone), Binding{Command: input.Command{Kind: input.KindKeyDown, Code: "KeyW"}, Hold: true}},
		"jump":      {tcell.NewEventKey(tcell.KeyRune, ' ', tcell.ModNone), Binding{Command: input.Command{Kind: input.KindKeyDown, Code: "Space"}, Hold: true}},
		"fire":      {tcell.NewEventKey(tcell.KeyRune, 'f', tcell.ModNone), Binding{Command: input.Command{Kind: input.KindFire}}},
		"look_left": {tcell.NewEventKey(tcell.KeyLeft, 0, tcell.ModNone), Binding{Command: input.Command{Kind: input.KindLook, DX: -lookStep}}},
		"look_down": {tcell.NewEventKey(tcell.KeyDown, 0, tcell.ModNone), Binding{Command: input.Command{Kind: input.KindLook, DY: lookStep}}},
		"unlock":    {tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone), Binding{Command: input.Command{Kind: input.KindUnlock}}},
		"quit":      {tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone), Binding{Quit: true}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, ok := Bind(tc.event)
			if !ok {
				t.Fatal("expected key to be bound")
			}
			if got != tc.want {
				t.Fatalf("Bind = %+v, want %+v", got, tc.want)
			}
		})
	}
	if _, ok := Bind(tcell.NewEventKey(tcell.KeyRune, 'z', tcell.ModNone)); ok {
		t.Fatal("unbound rune should report false")
	}
}

func TestKeyHolderSendsOneDownAndOneUp(t *testing.T) {
	var (
		mu   sync.Mutex
		sent []input.Command
	)
	released := make(chan struct{})
	holder := newKeyHolder(func(binding Binding, down bool) {
		mu.Lock()
		defer mu.Unlock()
		if down {
			sent = append(sent, binding.Command)
			return
		}
		sent = append(sent, binding.Release())
		close(released)
	})
	binding, _ := Bind(tcell.NewEventKey(tcell.KeyRune, 'w', tcell.ModNone))
	for i := 0; i < 5; i++ {
		holder.Press(binding)
	}

	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatal("key was never released")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(sent) != 2 {
		t.Fatalf("expected down and up, got %+v", sent)
	}
	if sent[0].Kind != input.KindKeyDown || sent[1].Kind != input.KindKeyUp || sent[1].Code != "KeyW" {
		t.Fatalf("unexpected sequence %+v", sent)
	}
}

func TestKeyHolderIgnoresStaleRelease(t *testing.T) {
	var (
		mu   sync.Mutex
		sent []bool
	)
	holder := newKeyHolder(func(binding Binding, down bool) {
		mu.Lock()
		defer mu.Unlock()
		sent = append(sent, down)
	})
	defer holder.Stop()
	binding, _ := Bind(tcell.NewEventKey(tcell.KeyRune, 'w', tcell.ModNone))
	holder.Press(binding)
	holder.Press(binding)

	//1.- The first timer's callback lost the race to the repeat and must not release the key.
	holder.release(binding, 1)
	mu.Lock()
	if len(sent) != 1 || !sent[0] {
		mu.Unlock()
		t.Fatalf("stale release leaked, sent %+v", sent)
	}
	mu.Unlock()
	holder.mu.Lock()
	current, ok := holder.holds["KeyW"]
	survived := ok && current.generation == 2
	holder.mu.Unlock()
	if !survived {
		t.Fatal("expected the newer hold to survive")
	}

	//2.- The current generation releases exactly once.
	holder.release(binding, 2)
	holder.release(binding, 2)
	mu.Lock()
	defer mu.Unlock()
	if len(sent) != 2 || sent[1] {
		t.Fatalf("expected one down and one up, got %+v", sent)
	}
}
