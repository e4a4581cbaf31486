package rangeview

import (
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"

	"neonrange/server/internal/game"
	"neonrange/server/internal/radar"
	"neonrange/server/internal/weapon"
)

func newTestScreen(t *testing.T) tcell.SimulationScreen {
	t.Helper()
	screen := tcell.NewSimulationScreen("UTF-8")
	if err := screen.Init(); err != nil {
		t.Fatalf("init screen: %v", err)
	}
	screen.SetSize(100, 30)
	t.Cleanup(screen.Fini)
	return screen
}

func rowText(screen tcell.Screen, y int) string {
	width, _ := screen.Size()
	var b strings.Builder
	for x := 0; x < width; x++ {
		r, _, _, _ := screen.GetContent(x, y)
		if r == 0 {
			r = ' '
		}
		b.WriteRune(r)
	}
	return b.String()
}

func screenText(screen tcell.Screen) string {
	_, height := screen.Size()
	var b strings.Builder
	for y := 0; y < height; y++ {
		b.WriteString(rowText(screen, y))
		b.WriteByte('\n')
	}
	return b.String()
}

func testFrame() radar.Frame {
	return radar.Frame{
		Size:   200,
		Center: radar.Point{X: 100, Y: 100},
		Radius: 100,
		Rings:  []float64{100.0 / 3, 200.0 / 3, 100},
		Blips: []radar.Blip{
			{TargetID: 1, X: 100, Y: 50, Alpha: 1},
			{TargetID: 2, X: 195, Y: 100, Alpha: 0.5},
		},
	}
}

func TestRadarCellMapping(t *testing.T) {
	frame := testFrame()
	if col, row := radarCell(frame, frame.Center); col != radarCells/2 || row != radarCells/2 {
		t.Fatalf("centre mapped to (%d,%d)", col, row)
	}
	if col, row := radarCell(frame, radar.Point{X: 200, Y: 200}); col != radarCells-1 || row != radarCells-1 {
		t.Fatalf("far corner must clamp into the grid, got (%d,%d)", col, row)
	}
	if col, row := radarCell(frame, radar.Point{X: -5, Y: 0}); col != 0 || row != 0 {
		t.Fatalf("negative coordinates must clamp to zero, got (%d,%d)", col, row)
	}
}

func TestViewRendersBlipsAndHUD(t *testing.T) {
	screen := newTestScreen(t)
	view := NewView(screen, ModePlay)
	view.SetSession("s-1")

	removed := view.Apply(game.Snapshot{
		Tick:   42,
		Score:  300,
		Stats:  weapon.Stats{Shots: 4, Hits: 3},
		Radar:  testFrame(),
		Weapon: weapon.Visual{HitMarker: true},
		Events: []game.Event{{Type: game.EventTargetRemoved, TargetID: 7, Score: 300}},
	})
	if removed != 1 {
		t.Fatalf("expected one removal, got %d", removed)
	}
	view.Render()

	col, row := radarCell(testFrame(), radar.Point{X: 100, Y: 50})
	r, _, style, _ := screen.GetContent(radarLeft+col*2, radarTop+row)
	if r != blipRune {
		t.Fatalf("expected blip rune at (%d,%d), got %q", col, row, r)
	}
	if style != styleBlip {
		t.Fatal("full alpha blip should use the bright style")
	}
	col, row = radarCell(testFrame(), radar.Point{X: 195, Y: 100})
	if _, _, style, _ := screen.GetContent(radarLeft+col*2, radarTop+row); style != styleFaded {
		t.Fatal("rim blip should be faded")
	}
	centre, _, _, _ := screen.GetContent(radarLeft+(radarCells/2)*2, radarTop+radarCells/2)
	if centre != playerRune {
		t.Fatalf("expected player marker at centre, got %q", centre)
	}

	text := screenText(screen)
	for _, want := range []string{"score   300", "shots   4  hits 3  acc 75%", "HIT", "target 7 down", "session s-1"} {
		if !strings.Contains(text, want) {
			t.Fatalf("screen missing %q:\n%s", want, text)
		}
	}
}

func TestViewWaitsForFirstFrame(t *testing.T) {
	screen := newTestScreen(t)
	view := NewView(screen, ModeSpectate)
	view.SetStatus("connecting")
	view.Render()
	text := screenText(screen)
	if !strings.Contains(text, "waiting for frames") || !strings.Contains(text, "connecting") {
		t.Fatalf("unexpected idle screen:\n%s", text)
	}
}
