package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// HeaderSchemaVersion tracks the schema version for replay header documents.
const HeaderSchemaVersion = 1

// Header represents the metadata persisted alongside a replay bundle.
type Header struct {
	SchemaVersion int       `json:"schema_version"`
	SessionID     string    `json:"session_id"`
	Subject       string    `json:"subject,omitempty"`
	StartedAt     time.Time `json:"started_at"`
	EndedAt       time.Time `json:"ended_at"`
	FinalScore    int       `json:"final_score"`
	Shots         int       `json:"shots"`
	Hits          int       `json:"hits"`
	FilePointer   string    `json:"file_pointer"`
}

// Duration returns how long the recorded session lasted.
func (h Header) Duration() time.Duration {
	if h.EndedAt.IsZero() || h.EndedAt.Before(h.StartedAt) {
		return 0
	}
	return h.EndedAt.Sub(h.StartedAt)
}

// Validate ensures the header contains enough information for catalogue tooling.
func (h Header) Validate() error {
	if h.SchemaVersion <= 0 {
		return fmt.Errorf("schema_version must be positive")
	}
	//1.- Ensure catalogue tooling can locate the replay artefact reliably.
	if strings.TrimSpace(h.FilePointer) == "" {
		return fmt.Errorf("file_pointer must not be empty")
	}
	if h.Hits > h.Shots {
		return fmt.Errorf("hits (%d) exceed shots (%d)", h.Hits, h.Shots)
	}
	return nil
}

// WriteHeader persists the supplied header to the provided file path.
func WriteHeader(path string, header Header) error {
	if err := header.Validate(); err != nil {
		return err
	}
	payload, err := json.MarshalIndent(header, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	//1.- Terminate with a newline so POSIX tooling can append easily.
	return os.WriteFile(path, append(payload, '\n'), 0o644)
}

// ReadHeader loads and decodes a replay header from disk.
func ReadHeader(path string) (Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Header{}, err
	}
	var header Header
	if err := json.Unmarshal(data, &header); err != nil {
		return Header{}, fmt.Errorf("decode header %s: %w", path, err)
	}
	if err := header.Validate(); err != nil {
		return Header{}, err
	}
	return header, nil
}
