package replayplayer

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"neonrange/server/internal/game"
	"neonrange/server/internal/replay"
)

// Frame represents a single frame decoded from the binary blob stream.
type Frame struct {
	Tick        uint64          `json:"tick"`
	SimulatedMs int64           `json:"simulated_ms"`
	CapturedAt  time.Time       `json:"captured_at"`
	Payload     json.RawMessage `json:"payload"`
}

// Snapshot decodes the frame payload as a session snapshot.
func (f Frame) Snapshot() (game.Snapshot, error) {
	var snapshot game.Snapshot
	err := json.Unmarshal(f.Payload, &snapshot)
	return snapshot, err
}

// Bundle is a fully decoded replay directory.
type Bundle struct {
	Manifest replay.Manifest      `json:"manifest"`
	Header   *replay.Header       `json:"header,omitempty"`
	Events   []replay.EventRecord `json:"events"`
	Frames   []Frame              `json:"frames"`
}

// Totals tallies gameplay events so bundles can be cross checked against their header.
type Totals struct {
	Shots   int `json:"shots"`
	Hits    int `json:"hits"`
	Removed int `json:"removed"`
	Resets  int `json:"resets"`
}

// Totals counts the recorded event types.
func (b Bundle) Totals() Totals {
	var totals Totals
	for _, event := range b.Events {
		switch game.EventType(event.Type) {
		case game.EventShotFired:
			totals.Shots++
		case game.EventTargetHit:
			totals.Hits++
		case game.EventTargetRemoved:
			totals.Removed++
		case game.EventSessionReset:
			totals.Resets++
		}
	}
	return totals
}

// Load reads the manifest, header, events and frames for inspection.
func Load(path string) (Bundle, error) {
	if path == "" {
		return Bundle{}, fmt.Errorf("path is required")
	}

	//1.- Accept either the bundle directory or its manifest file.
	manifestPath := path
	info, err := os.Stat(path)
	if err != nil {
		return Bundle{}, err
	}
	if info.IsDir() {
		manifestPath = filepath.Join(path, "manifest.json")
	}
	dir := filepath.Dir(manifestPath)

	manifestBytes, err := os.ReadFile(manifestPath)
	if err != nil {
		return Bundle{}, err
	}
	var bundle Bundle
	if err := json.Unmarshal(manifestBytes, &bundle.Manifest); err != nil {
		return Bundle{}, err
	}
	if bundle.Manifest.Version != replay.ManifestVersion {
		return Bundle{}, fmt.Errorf("unsupported manifest version %d", bundle.Manifest.Version)
	}

	//2.- The header only exists once the session closed cleanly.
	header, err := replay.ReadHeader(filepath.Join(dir, bundle.Manifest.HeaderPath))
	switch {
	case err == nil:
		bundle.Header = &header
	case !errors.Is(err, fs.ErrNotExist):
		return Bundle{}, err
	}

	if bundle.Events, err = loadEvents(filepath.Join(dir, bundle.Manifest.EventsPath)); err != nil {
		return Bundle{}, err
	}
	if bundle.Frames, err = loadFrames(filepath.Join(dir, bundle.Manifest.FramesPath)); err != nil {
		return Bundle{}, err
	}
	return bundle, nil
}

func loadEvents(path string) ([]replay.EventRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(snappy.NewReader(file))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var events []replay.EventRecord
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var record replay.EventRecord
		if err := json.Unmarshal([]byte(line), &record); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func loadFrames(path string) ([]Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader, err := zstd.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	payload, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	var frames []Frame
	offset := 0
	for offset+replay.FrameHeaderSize <= len(payload) {
		//1.- Read the fixed header then slice the payload it announces.
		tick := binary.LittleEndian.Uint64(payload[offset : offset+8])
		sim := int64(binary.LittleEndian.Uint64(payload[offset+8 : offset+16]))
		captured := int64(binary.LittleEndian.Uint64(payload[offset+16 : offset+24]))
		size := int(binary.LittleEndian.Uint32(payload[offset+24 : offset+28]))
		offset += replay.FrameHeaderSize
		if offset+size > len(payload) {
			return nil, fmt.Errorf("frame payload truncated")
		}
		frames = append(frames, Frame{
			Tick:        tick,
			SimulatedMs: sim,
			CapturedAt:  time.Unix(0, captured).UTC(),
			Payload:     append(json.RawMessage(nil), payload[offset:offset+size]...),
		})
		offset += size
	}
	if offset != len(payload) {
		return nil, fmt.Errorf("frame stream has %d trailing bytes", len(payload)-offset)
	}
	return frames, nil
}
