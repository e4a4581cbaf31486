package main

import (
	"flag"
	"fmt"
	"os"

	"neonrange/server/tools/replay_catalog"
)

func main() {
	root := flag.String("dir", ".", "directory containing replay bundles")
	jsonFlag := flag.Bool("json", false, "emit JSON instead of human-readable output")
	flag.Parse()

	entries, err := replaycatalog.List(*root)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *jsonFlag {
		payload, err := replaycatalog.MarshalEntries(entries)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(string(payload))
		return
	}

	for _, entry := range entries {
		h := entry.Header
		fmt.Printf("%s score=%d shots=%d hits=%d duration=%s\n", h.SessionID, h.FinalScore, h.Shots, h.Hits, h.Duration())
		if h.Subject != "" {
			fmt.Printf("  player: %s\n", h.Subject)
		}
		fmt.Printf("  manifest: %s\n", entry.ManifestPath)
	}
}
