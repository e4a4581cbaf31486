package rangeview

import (
	"fmt"
	"math"
	"sync"

	"github.com/gdamore/tcell/v2"

	"neonrange/server/internal/game"
	"neonrange/server/internal/radar"
)

const (
	// radarCells is the side of the radar grid in character rows.
	radarCells = 21
	radarLeft  = 1
	radarTop   = 1
	hudLeft    = radarLeft + radarCells*2 + 3
	eventLines = 6

	blipRune   = '●'
	playerRune = '▲'
)

var (
	styleBase   = tcell.StyleDefault
	styleGrid   = tcell.StyleDefault.Foreground(tcell.ColorDarkCyan)
	styleSweep  = tcell.StyleDefault.Foreground(tcell.ColorTeal)
	styleBlip   = tcell.StyleDefault.Foreground(tcell.ColorFuchsia).Bold(true)
	styleFaded  = tcell.StyleDefault.Foreground(tcell.ColorPurple)
	stylePlayer = tcell.StyleDefault.Foreground(tcell.ColorLime).Bold(true)
	styleTitle  = tcell.StyleDefault.Foreground(tcell.ColorAqua).Bold(true)
	styleHot    = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
)

// View renders the latest snapshot as a radar grid plus a HUD column.
type View struct {
	screen tcell.Screen

	mu        sync.Mutex
	mode      string
	sessionID string
	status    string
	latest    game.Snapshot
	hasFrame  bool
	log       []string
}

// NewView binds a view to an initialised screen.
func NewView(screen tcell.Screen, mode string) *View {
	return &View{screen: screen, mode: mode}
}

// SetSession records the session the view follows.
func (v *View) SetSession(id string) {
	v.mu.Lock()
	v.sessionID = id
	v.mu.Unlock()
}

// SetStatus replaces the status line.
func (v *View) SetStatus(status string) {
	v.mu.Lock()
	v.status = status
	v.mu.Unlock()
}

// Apply stores a snapshot and returns how many targets it reports destroyed.
func (v *View) Apply(snapshot game.Snapshot) int {
	removed := 0
	v.mu.Lock()
	defer v.mu.Unlock()
	v.latest = snapshot
	v.hasFrame = true
	for _, event := range snapshot.Events {
		switch event.Type {
		case game.EventTargetRemoved:
			removed++
			v.pushLogLocked(fmt.Sprintf("target %d down  +%d", event.TargetID, event.Score))
		case game.EventSessionReset:
			v.pushLogLocked("range reset")
		}
	}
	return removed
}

func (v *View) pushLogLocked(line string) {
	v.log = append(v.log, line)
	if len(v.log) > eventLines {
		v.log = v.log[len(v.log)-eventLines:]
	}
}

// Render draws the current state and flushes the screen.
func (v *View) Render() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.screen.Clear()
	if v.hasFrame {
		v.drawRadar(v.latest.Radar)
	}
	v.drawHUD()
	v.screen.Show()
}

// radarCell maps a canvas point onto the character grid.
func radarCell(frame radar.Frame, p radar.Point) (int, int) {
	if frame.Size <= 0 {
		return radarCells / 2, radarCells / 2
	}
	col := int(p.X / frame.Size * radarCells)
	row := int(p.Y / frame.Size * radarCells)
	return clampCell(col), clampCell(row)
}

func clampCell(v int) int {
	return max(0, min(radarCells-1, v))
}

func (v *View) putCell(col, row int, r rune, style tcell.Style) {
	//1.- Two columns per cell keep the disc round in a terminal.
	v.screen.SetContent(radarLeft+col*2, radarTop+row, r, nil, style)
}

func (v *View) drawRadar(frame radar.Frame) {
	if frame.Size <= 0 {
		return
	}
	//1.- Rings and crosshair first, then the sweep, then blips on top.
	for _, radius := range frame.Rings {
		for step := 0; step < 96; step++ {
			angle := float64(step) / 96 * 2 * math.Pi
			point := radar.Point{X: frame.Center.X + radius*math.Cos(angle), Y: frame.Center.Y + radius*math.Sin(angle)}
			col, row := radarCell(frame, point)
			v.putCell(col, row, '·', styleGrid)
		}
	}
	for _, line := range frame.Lines {
		for step := 0; step <= radarCells*2; step++ {
			t := float64(step) / float64(radarCells*2)
			point := radar.Point{X: line.From.X + (line.To.X-line.From.X)*t, Y: line.From.Y + (line.To.Y-line.From.Y)*t}
			col, row := radarCell(frame, point)
			v.putCell(col, row, '+', styleGrid)
		}
	}
	for step := 1; step <= radarCells/2; step++ {
		distance := frame.Radius * float64(step) / float64(radarCells/2)
		point := radar.Point{X: frame.Center.X + distance*math.Cos(frame.Sweep.Start), Y: frame.Center.Y + distance*math.Sin(frame.Sweep.Start)}
		col, row := radarCell(frame, point)
		v.putCell(col, row, '•', styleSweep)
	}
	col, row := radarCell(frame, frame.Center)
	v.putCell(col, row, playerRune, stylePlayer)
	for _, blip := range frame.Blips {
		style := styleBlip
		if blip.Alpha < 1 {
			style = styleFaded
		}
		col, row := radarCell(frame, radar.Point{X: blip.X, Y: blip.Y})
		v.putCell(col, row, blipRune, style)
	}
}

func (v *View) drawHUD() {
	row := radarTop
	line := func(style tcell.Style, format string, args ...any) {
		drawText(v.screen, hudLeft, row, style, fmt.Sprintf(format, args...))
		row++
	}
	line(styleTitle, "NEON RANGE  [%s]", v.mode)
	if v.sessionID != "" {
		line(styleBase, "session %s", v.sessionID)
	}
	row++
	if v.hasFrame {
		snapshot := v.latest
		line(styleBase, "score   %d", snapshot.Score)
		line(styleBase, "shots   %d  hits %d  acc %.0f%%", snapshot.Stats.Shots, snapshot.Stats.Hits, snapshot.Stats.Accuracy()*100)
		line(styleBase, "targets %d", len(snapshot.Targets))
		mode := "unlocked (l to lock)"
		if snapshot.Player.Locked {
			mode = "locked"
		}
		line(styleBase, "pointer %s", mode)
		line(styleBase, "tick    %d", snapshot.Tick)
		crosshair := styleBase
		if snapshot.Weapon.Shooting {
			crosshair = styleHot
		}
		marker := "   "
		if snapshot.Weapon.HitMarker {
			marker = "HIT"
		}
		line(crosshair, "[+] %s", marker)
	} else {
		line(styleBase, "waiting for frames")
	}
	row++
	for _, entry := range v.log {
		line(styleSweep, "%s", entry)
	}
	row++
	if v.status != "" {
		line(styleHot, "%s", v.status)
	}
	if v.mode == ModePlay {
		line(styleGrid, "wasd move  arrows look  space jump")
		line(styleGrid, "f fire  l lock  esc unlock  r reset  q quit")
	} else {
		line(styleGrid, "q quit")
	}
}

func drawText(screen tcell.Screen, x, y int, style tcell.Style, text string) {
	for _, r := range text {
		screen.SetContent(x, y, r, nil, style)
		x++
	}
}
