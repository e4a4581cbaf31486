package replaycatalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"neonrange/server/internal/replay"
)

func writeHeader(t *testing.T, root, dir, session string, score, shots, hits int) string {
	t.Helper()
	dataDir := filepath.Join(root, dir)
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	header := replay.Header{
		SchemaVersion: replay.HeaderSchemaVersion,
		SessionID:     session,
		StartedAt:     started,
		EndedAt:       started.Add(time.Minute),
		FinalScore:    score,
		Shots:         shots,
		Hits:          hits,
		FilePointer:   "manifest.json",
	}
	if err := replay.WriteHeader(filepath.Join(dataDir, "header.json"), header); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	return dataDir
}

func TestListOrdersByScore(t *testing.T) {
	root := t.TempDir()
	writeHeader(t, root, "low", "low", 100, 4, 1)
	highDir := writeHeader(t, root, "high", "high", 700, 9, 7)

	entries, err := List(root)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected two entries, got %d", len(entries))
	}
	if entries[0].Header.SessionID != "high" {
		t.Fatalf("expected highest score first, got %q", entries[0].Header.SessionID)
	}
	if entries[0].ManifestPath != filepath.Join(highDir, "manifest.json") {
		t.Fatalf("unexpected manifest path: %q", entries[0].ManifestPath)
	}

	payload, err := MarshalEntries(entries)
	if err != nil {
		t.Fatalf("MarshalEntries: %v", err)
	}
	if len(payload) == 0 {
		t.Fatalf("expected JSON payload to be non-empty")
	}
}

func TestListRejectsFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := List(path); err == nil {
		t.Fatalf("expected error for non-directory root")
	}
}
