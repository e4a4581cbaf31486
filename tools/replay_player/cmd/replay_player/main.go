package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"neonrange/server/tools/replay_player"
)

func main() {
	path := flag.String("path", "", "path to a replay directory or manifest.json")
	summary := flag.Bool("summary", false, "print event totals instead of the full bundle")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "path flag is required")
		os.Exit(1)
	}

	bundle, err := replayplayer.Load(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(2)
	}

	var payload any = bundle
	if *summary {
		payload = struct {
			SessionID string              `json:"session_id"`
			Frames    int                 `json:"frames"`
			Totals    replayplayer.Totals `json:"totals"`
		}{bundle.Manifest.SessionID, len(bundle.Frames), bundle.Totals()}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(payload); err != nil {
		fmt.Fprintln(os.Stderr, "encode error:", err)
		os.Exit(3)
	}
}
