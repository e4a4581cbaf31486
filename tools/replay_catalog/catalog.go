package replaycatalog

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"neonrange/server/internal/replay"
)

// Entry captures a bundle header alongside its resolved manifest path.
type Entry struct {
	HeaderPath   string        `json:"header_path"`
	ManifestPath string        `json:"manifest_path"`
	Header       replay.Header `json:"header"`
}

// List walks the directory tree and returns parsed bundle headers, best score first.
func List(root string) ([]Entry, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("root directory must be provided")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root must be a directory")
	}

	var entries []Entry
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || d.Name() != "header.json" {
			return nil
		}
		header, err := replay.ReadHeader(path)
		if err != nil {
			return err
		}
		//1.- Pointers are stored relative to the bundle so directories can be moved.
		manifestPath := header.FilePointer
		if !filepath.IsAbs(manifestPath) {
			manifestPath = filepath.Join(filepath.Dir(path), manifestPath)
		}
		entries = append(entries, Entry{HeaderPath: path, ManifestPath: manifestPath, Header: header})
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(entries, func(a, b Entry) int {
		if a.Header.FinalScore != b.Header.FinalScore {
			return b.Header.FinalScore - a.Header.FinalScore
		}
		return strings.Compare(a.Header.SessionID, b.Header.SessionID)
	})
	return entries, nil
}

// MarshalEntries produces an indented JSON document for CLI output.
func MarshalEntries(entries []Entry) ([]byte, error) {
	return json.MarshalIndent(entries, "", "  ")
}
