package rangeview

import (
	"context"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"google.golang.org/grpc"

	"neonrange/server/internal/game"
	"neonrange/server/internal/spectate"
)

const (
	// holdWindow is how long a movement key stays down after the last repeat.
	holdWindow  = 180 * time.Millisecond
	renderEvery = time.Second / 30
)

// keyHolder turns terminal key repeats into key_down/key_up pairs.
type keyHolder struct {
	mu    sync.Mutex
	next  uint64
	holds map[string]*hold
	send  func(Binding, bool)
}

// hold is one pending release. A timer whose generation no longer matches is stale.
type hold struct {
	generation uint64
	timer      *time.Timer
}

func newKeyHolder(send func(Binding, bool)) *keyHolder {
	return &keyHolder{holds: make(map[string]*hold), send: send}
}

// Press sends key_down on the first press and pushes the release back on repeats.
func (h *keyHolder) Press(binding Binding) {
	h.mu.Lock()
	defer h.mu.Unlock()
	code := binding.Command.Code
	h.next++
	generation := h.next
	if current, ok := h.holds[code]; ok {
		//1.- Retire the armed timer; if it already fired its callback sees a newer generation.
		current.timer.Stop()
		current.generation = generation
		current.timer = time.AfterFunc(holdWindow, func() { h.release(binding, generation) })
		return
	}
	h.send(binding, true)
	h.holds[code] = &hold{
		generation: generation,
		timer:      time.AfterFunc(holdWindow, func() { h.release(binding, generation) }),
	}
}

func (h *keyHolder) release(binding Binding, generation uint64) {
	h.mu.Lock()
	code := binding.Command.Code
	current, ok := h.holds[code]
	if !ok || current.generation != generation {
		h.mu.Unlock()
		return
	}
	delete(h.holds, code)
	h.mu.Unlock()
	h.send(binding, false)
}

// Stop cancels pending releases.
func (h *keyHolder) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for code, current := range h.holds {
		current.timer.Stop()
		delete(h.holds, code)
	}
}

// pollKeys forwards key events until the screen is finalised or ctx ends.
func pollKeys(ctx context.Context, screen tcell.Screen) <-chan *tcell.EventKey {
	keys := make(chan *tcell.EventKey, 16)
	go func() {
		defer close(keys)
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			key, ok := ev.(*tcell.EventKey)
			if !ok {
				continue
			}
			select {
			case keys <- key:
			case <-ctx.Done():
				return
			}
		}
	}()
	return keys
}

// RunPlay plays a session: keys become commands and frames are rendered as they arrive.
func RunPlay(ctx context.Context, screen tcell.Screen, client *Client, welcome game.ServerMessage, sounder Sounder) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	view := NewView(screen, ModePlay)
	view.SetSession(welcome.SessionID)

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- client.Listen(ctx, func(snapshot game.Snapshot) {
			if view.Apply(snapshot) > 0 {
				sounder.Hit()
			}
		})
	}()

	holder := newKeyHolder(func(binding Binding, down bool) {
		command := binding.Command
		if !down {
			command = binding.Release()
		}
		if err := client.Send(command); err != nil {
			view.SetStatus("send failed: " + err.Error())
		}
	})
	defer holder.Stop()

	keys := pollKeys(ctx, screen)
	ticker := time.NewTicker(renderEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-listenErr:
			return err
		case key, ok := <-keys:
			if !ok {
				return nil
			}
			binding, bound := Bind(key)
			if !bound {
				continue
			}
			if binding.Quit {
				return client.Close()
			}
			if binding.Hold {
				holder.Press(binding)
				continue
			}
			if err := client.Send(binding.Command); err != nil {
				view.SetStatus("send failed: " + err.Error())
			}
		case <-ticker.C:
			view.Render()
		}
	}
}

// RunSpectate follows a session over the gRPC spectator stream.
func RunSpectate(ctx context.Context, screen tcell.Screen, conn grpc.ClientConnInterface, sessionID, secret string, sounder Sounder) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	view := NewView(screen, ModeSpectate)
	view.SetSession(sessionID)
	view.SetStatus("connecting")

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- spectate.Watch(ctx, conn, sessionID, secret, func(snapshot game.Snapshot) error {
			if view.Apply(snapshot) > 0 {
				sounder.Hit()
			}
			view.SetStatus("")
			return nil
		})
	}()

	keys := pollKeys(ctx, screen)
	ticker := time.NewTicker(renderEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-watchErr:
			return err
		case key, ok := <-keys:
			if !ok {
				return nil
			}
			if binding, bound := Bind(key); bound && binding.Quit {
				return nil
			}
		case <-ticker.C:
			view.Render()
		}
	}
}
