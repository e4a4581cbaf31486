package replay

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

func TestWriterAppendAndFlushCadence(t *testing.T) {
	tmp := t.TempDir()
	base := time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC)
	now := base
	clock := func() time.Time { return now }

	writer, manifest, err := NewWriter(tmp, "Test Session!", WriterOptions{Now: clock})
	if err != nil {
		t.Fatalf("create writer: %v", err)
	}
	if manifest.FrameIntervalMs != 200 {
		t.Fatalf("expected frame interval 200 ms, got %d", manifest.FrameIntervalMs)
	}
	if filepath.Base(writer.Directory()) != "TestSession-20240710T120000Z" {
		t.Fatalf("unexpected bundle folder %s", writer.Directory())
	}

	if err := writer.AppendEvent(10, 33, "target_removed", []byte(`{"target_id":4,"score":100}`)); err != nil {
		t.Fatalf("append event: %v", err)
	}
	if err := writer.AppendEvent(11, 34, "bogus", []byte("not json")); err == nil {
		t.Fatal("expected invalid payload to be rejected")
	}

	framePayload := []byte(`{"tick":1}`)
	for i, step := range []time.Duration{0, 100 * time.Millisecond, 120 * time.Millisecond} {
		now = now.Add(step)
		if err := writer.AppendFrame(uint64(i+1), int64((i+1)*100), framePayload); err != nil {
			t.Fatalf("append frame %d: %v", i+1, err)
		}
	}
	writer.SetResult("player-1", 100, 2, 1)
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	if err := writer.AppendFrame(9, 900, framePayload); !errors.Is(err, ErrWriterClosed) {
		t.Fatalf("expected ErrWriterClosed, got %v", err)
	}

	//1.- The manifest points at both compressed streams.
	manifestBytes, err := os.ReadFile(filepath.Join(writer.Directory(), "manifest.json"))
	if err != nil {
		t.Fatalf("read manifest: %v", err)
	}
	var onDisk Manifest
	if err := json.Unmarshal(manifestBytes, &onDisk); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}
	if onDisk.EventsPath != "events.jsonl.sz" || onDisk.FramesPath != "frames.bin.zst" || onDisk.Version != ManifestVersion {
		t.Fatalf("unexpected manifest: %+v", onDisk)
	}

	//2.- Events decode as JSON lines with the raw payload preserved.
	eventFile, err := os.Open(filepath.Join(writer.Directory(), onDisk.EventsPath))
	if err != nil {
		t.Fatalf("open events: %v", err)
	}
	defer eventFile.Close()
	scanner := bufio.NewScanner(snappy.NewReader(eventFile))
	var records []EventRecord
	for scanner.Scan() {
		var record EventRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("decode event: %v", err)
		}
		records = append(records, record)
	}
	if len(records) != 1 || records[0].Type != "target_removed" || string(records[0].Payload) != `{"target_id":4,"score":100}` {
		t.Fatalf("unexpected events %+v", records)
	}

	//3.- Frames are length prefixed inside the zstd stream.
	frameFile, err := os.Open(filepath.Join(writer.Directory(), onDisk.FramesPath))
	if err != nil {
		t.Fatalf("open frames: %v", err)
	}
	defer frameFile.Close()
	decoder, err := zstd.NewReader(frameFile)
	if err != nil {
		t.Fatalf("zstd reader: %v", err)
	}
	defer decoder.Close()
	data, err := io.ReadAll(decoder)
	if err != nil {
		t.Fatalf("read frames: %v", err)
	}
	reader := bytes.NewReader(data)
	var ticks []uint64
	for reader.Len() > 0 {
		header := make([]byte, FrameHeaderSize)
		if _, err := io.ReadFull(reader, header); err != nil {
			t.Fatalf("frame header: %v", err)
		}
		size := binary.LittleEndian.Uint32(header[24:28])
		payload := make([]byte, size)
		if _, err := io.ReadFull(reader, payload); err != nil {
			t.Fatalf("frame payload: %v", err)
		}
		if !bytes.Equal(payload, framePayload) {
			t.Fatalf("unexpected payload %q", payload)
		}
		ticks = append(ticks, binary.LittleEndian.Uint64(header[0:8]))
	}
	if len(ticks) != 3 || ticks[0] != 1 || ticks[2] != 3 {
		t.Fatalf("unexpected frame ticks %v", ticks)
	}

	//4.- The header carries the session result.
	header, err := ReadHeader(filepath.Join(writer.Directory(), "header.json"))
	if err != nil {
		t.Fatalf("read header: %v", err)
	}
	if header.FinalScore != 100 || header.Subject != "player-1" || header.Duration() != 220*time.Millisecond {
		t.Fatalf("unexpected header %+v", header)
	}
}

func TestNewWriterRequiresRoot(t *testing.T) {
	if _, _, err := NewWriter("", "x", WriterOptions{}); err == nil {
		t.Fatal("expected missing root to fail")
	}
}
