package rangeview

import (
	"github.com/gdamore/tcell/v2"

	"neonrange/server/internal/input"
)

const (
	// ModePlay drives a session over websocket.
	ModePlay = "play"
	// ModeSpectate follows a session over gRPC.
	ModeSpectate = "spectate"

	lookStep = 40.0
)

// Binding is what one terminal key press means for the range.
type Binding struct {
	// Command is sent immediately.
	Command input.Command
	// Hold marks key_down commands that need a matching key_up once the key goes quiet.
	Hold bool
	Quit bool
}

var runeBindings = map[rune]Binding{
	'w': {Command: input.Command{Kind: input.KindKeyDown, Code: "KeyW"}, Hold: true},
	's': {Command: input.Command{Kind: input.KindKeyDown, Code: "KeyS"}, Hold: true},
	'a': {Command: input.Command{Kind: input.KindKeyDown, Code: "KeyA"}, Hold: true},
	'd': {Command: input.Command{Kind: input.KindKeyDown, Code: "KeyD"}, Hold: true},
	' ': {Command: input.Command{Kind: input.KindKeyDown, Code: "Space"}, Hold: true},
	'f': {Command: input.Command{Kind: input.KindFire}},
	'l': {Command: input.Command{Kind: input.KindLock}},
	'r': {Command: input.Command{Kind: input.KindReset}},
	'q': {Quit: true},
}

// Bind translates a key event. The boolean is false for keys with no meaning.
func Bind(ev *tcell.EventKey) (Binding, bool) {
	switch ev.Key() {
	case tcell.KeyCtrlC:
		return Binding{Quit: true}, true
	case tcell.KeyEscape:
		return Binding{Command: input.Command{Kind: input.KindUnlock}}, true
	case tcell.KeyEnter:
		return Binding{Command: input.Command{Kind: input.KindFire}}, true
	case tcell.KeyLeft:
		return Binding{Command: input.Command{Kind: input.KindLook, DX: -lookStep}}, true
	case tcell.KeyRight:
		return Binding{Command: input.Command{Kind: input.KindLook, DX: lookStep}}, true
	case tcell.KeyUp:
		return Binding{Command: input.Command{Kind: input.KindLook, DY: -lookStep}}, true
	case tcell.KeyDown:
		return Binding{Command: input.Command{Kind: input.KindLook, DY: lookStep}}, true
	case tcell.KeyRune:
		binding, ok := runeBindings[ev.Rune()]
		return binding, ok
	}
	return Binding{}, false
}

// Release returns the key_up matching a held binding.
func (b Binding) Release() input.Command {
	return input.Command{Kind: input.KindKeyUp, Code: b.Command.Code}
}
