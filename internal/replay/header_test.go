package replay

import (
	"path/filepath"
	"testing"
	"time"
)

func TestHeaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "header.json")
	started := time.Unix(1700000000, 0).UTC()
	header := Header{
		SchemaVersion: HeaderSchemaVersion,
		SessionID:     "abc",
		StartedAt:     started,
		EndedAt:       started.Add(90 * time.Second),
		FinalScore:    300,
		Shots:         5,
		Hits:          3,
		FilePointer:   "manifest.json",
	}
	if err := WriteHeader(path, header); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	loaded, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if loaded.FinalScore != 300 || loaded.SessionID != "abc" || loaded.Duration() != 90*time.Second {
		t.Fatalf("unexpected header %+v", loaded)
	}
}

func TestHeaderValidateRejectsInconsistentCounters(t *testing.T) {
	header := Header{SchemaVersion: 1, FilePointer: "manifest.json", Shots: 1, Hits: 2}
	if err := header.Validate(); err == nil {
		t.Fatal("expected hits above shots to fail")
	}
	if err := (Header{SchemaVersion: 1}).Validate(); err == nil {
		t.Fatal("expected missing file pointer to fail")
	}
}
