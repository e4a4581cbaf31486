package replay

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

var sessionIDCleaner = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

const (
	// DefaultFrameInterval is the cadence frames are persisted at.
	DefaultFrameInterval = 200 * time.Millisecond
	// ManifestVersion is the bundle layout version.
	ManifestVersion = 2

	manifestName = "manifest.json"
	headerName   = "header.json"
	eventsName   = "events.jsonl.sz"
	framesName   = "frames.bin.zst"

	// FrameHeaderSize is the fixed prefix in front of every frame payload:
	// tick u64, simulated ms u64, captured unix nanos u64, payload length u32.
	FrameHeaderSize = 8 + 8 + 8 + 4
)

// ErrWriterClosed is returned by appends after Close.
var ErrWriterClosed = errors.New("replay: writer closed")

// frameBlob stores frame metadata before it is persisted to disk.
type frameBlob struct {
	Tick        uint64
	SimulatedMs int64
	CapturedAt  time.Time
	Payload     []byte
}

// EventRecord is one line of the compressed event log.
type EventRecord struct {
	Tick        uint64          `json:"tick"`
	SimulatedMs int64           `json:"simulated_ms"`
	CapturedAt  time.Time       `json:"captured_at"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

// Manifest describes the replay bundle layout so tooling can locate artefacts.
type Manifest struct {
	Version         int    `json:"version"`
	SessionID       string `json:"session_id"`
	CreatedAt       string `json:"created_at"`
	FrameIntervalMs int    `json:"frame_interval_ms"`
	EventsPath      string `json:"events_path"`
	FramesPath      string `json:"frames_path"`
	HeaderPath      string `json:"header_path"`
}

// WriterOptions tunes a Writer.
type WriterOptions struct {
	Now           func() time.Time
	FrameInterval time.Duration
}

// Writer streams session artefacts to disk: snappy framed events and zstd frames.
type Writer struct {
	mu            sync.Mutex
	dir           string
	now           func() time.Time
	frameInterval time.Duration
	eventFile     *os.File
	eventStream   *snappy.Writer
	frameFile     *os.File
	frameStream   *zstd.Encoder
	pending       []frameBlob
	lastFlush     time.Time
	header        Header
	closed        bool
}

// NewWriter prepares the bundle directory and opens compressed sinks.
func NewWriter(root, sessionID string, opts WriterOptions) (*Writer, Manifest, error) {
	if root == "" {
		return nil, Manifest{}, fmt.Errorf("replay root must be provided")
	}
	clock := opts.Now
	if clock == nil {
		clock = time.Now
	}
	interval := opts.FrameInterval
	if interval <= 0 {
		interval = DefaultFrameInterval
	}

	//1.- Derive a filesystem safe folder from the session identifier and creation time.
	cleaned := sessionIDCleaner.ReplaceAllString(sessionID, "")
	if cleaned == "" {
		cleaned = "session"
	}
	created := clock().UTC()
	path := filepath.Join(root, fmt.Sprintf("%s-%s", cleaned, created.Format("20060102T150405Z")))
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, Manifest{}, err
	}

	eventFile, err := os.Create(filepath.Join(path, eventsName))
	if err != nil {
		return nil, Manifest{}, err
	}
	frameFile, err := os.Create(filepath.Join(path, framesName))
	if err != nil {
		eventFile.Close()
		return nil, Manifest{}, err
	}
	frameStream, err := zstd.NewWriter(frameFile, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		eventFile.Close()
		frameFile.Close()
		return nil, Manifest{}, err
	}

	manifest := Manifest{
		Version:         ManifestVersion,
		SessionID:       sessionID,
		CreatedAt:       created.Format(time.RFC3339Nano),
		FrameIntervalMs: int(interval / time.Millisecond),
		EventsPath:      eventsName,
		FramesPath:      framesName,
		HeaderPath:      headerName,
	}
	//2.- Write the manifest eagerly so partial bundles remain discoverable.
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err == nil {
		err = os.WriteFile(filepath.Join(path, manifestName), data, 0o644)
	}
	if err != nil {
		frameStream.Close()
		frameFile.Close()
		eventFile.Close()
		return nil, Manifest{}, err
	}

	writer := &Writer{
		dir:           path,
		now:           clock,
		frameInterval: interval,
		eventFile:     eventFile,
		eventStream:   snappy.NewBufferedWriter(eventFile),
		frameFile:     frameFile,
		frameStream:   frameStream,
		header: Header{
			SchemaVersion: HeaderSchemaVersion,
			SessionID:     sessionID,
			StartedAt:     created,
			FilePointer:   manifestName,
		},
	}
	return writer, manifest, nil
}

// Directory exposes the directory backing the replay bundle.
func (w *Writer) Directory() string {
	if w == nil {
		return ""
	}
	return w.dir
}

// AppendEvent writes a single JSON event line to the compressed event log.
func (w *Writer) AppendEvent(tick uint64, simulatedMs int64, eventType string, payload []byte) error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	record := EventRecord{
		Tick:        tick,
		SimulatedMs: simulatedMs,
		CapturedAt:  w.now().UTC(),
		Type:        eventType,
	}
	if len(payload) > 0 {
		if !json.Valid(payload) {
			return fmt.Errorf("event %q payload is not valid JSON", eventType)
		}
		record.Payload = append(json.RawMessage(nil), payload...)
	}
	line, err := json.Marshal(record)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	//1.- One JSON document per line keeps the log streamable after decompression.
	if _, err := w.eventStream.Write(append(line, '\n')); err != nil {
		return err
	}
	return w.eventStream.Flush()
}

// AppendFrame buffers a frame and persists the batch once the cadence elapses.
func (w *Writer) AppendFrame(tick uint64, simulatedMs int64, payload []byte) error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	captured := w.now().UTC()
	clone := append([]byte(nil), payload...)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}

	//1.- Stage the frame so cadence enforcement can persist batches together.
	w.pending = append(w.pending, frameBlob{Tick: tick, SimulatedMs: simulatedMs, CapturedAt: captured, Payload: clone})
	if w.lastFlush.IsZero() {
		w.lastFlush = captured
		return nil
	}
	if captured.Sub(w.lastFlush) >= w.frameInterval {
		if err := w.flushLocked(); err != nil {
			return err
		}
		w.lastFlush = captured
	}
	return nil
}

// SetResult records the totals written into header.json on Close.
func (w *Writer) SetResult(subject string, score, shots, hits int) {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.header.Subject = subject
	w.header.FinalScore = score
	w.header.Shots = shots
	w.header.Hits = hits
	w.mu.Unlock()
}

// Flush forces pending frames to be written regardless of cadence.
func (w *Writer) Flush() error {
	if w == nil {
		return fmt.Errorf("writer not initialised")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	if err := w.flushLocked(); err != nil {
		return err
	}
	w.lastFlush = w.now().UTC()
	return nil
}

// Close flushes all buffers, writes the header and releases file handles.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	//1.- Attempt every flush/close and surface the first failure for callers to inspect.
	var errs []error
	w.header.EndedAt = w.now().UTC()
	errs = append(errs, WriteHeader(filepath.Join(w.dir, headerName), w.header))
	errs = append(errs, w.flushLocked())
	errs = append(errs, w.eventStream.Close())
	errs = append(errs, w.eventFile.Close())
	errs = append(errs, w.frameStream.Close())
	errs = append(errs, w.frameFile.Close())
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// flushLocked writes buffered frames to the zstd stream; callers must hold the mutex.
func (w *Writer) flushLocked() error {
	if len(w.pending) == 0 {
		return nil
	}
	header := make([]byte, FrameHeaderSize)
	for _, frame := range w.pending {
		//1.- Length-prefix every frame so readers can step without parsing payloads.
		binary.LittleEndian.PutUint64(header[0:8], frame.Tick)
		binary.LittleEndian.PutUint64(header[8:16], uint64(frame.SimulatedMs))
		binary.LittleEndian.PutUint64(header[16:24], uint64(frame.CapturedAt.UnixNano()))
		binary.LittleEndian.PutUint32(header[24:28], uint32(len(frame.Payload)))
		if _, err := w.frameStream.Write(header); err != nil {
			return err
		}
		if _, err := w.frameStream.Write(frame.Payload); err != nil {
			return err
		}
	}
	w.pending = w.pending[:0]
	return nil
}
