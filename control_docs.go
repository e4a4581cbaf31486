package main

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"
)

// ControlDoc describes one input binding understood by the range.
type ControlDoc struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Command     string `json:"command"`
	Shortcut    string `json:"shortcut,omitempty"`
}

// defaultControlDocs lists the bindings clients should render in their help overlay.
var defaultControlDocs = []ControlDoc{
	{
		ID:          "move-forward",
		Label:       "Move Forward",
		Description: "Accelerate along the current heading.",
		Command:     "key_down / key_up",
		Shortcut:    "KeyW, ArrowUp",
	},
	{
		ID:          "move-backward",
		Label:       "Move Backward",
		Description: "Accelerate away from the current heading.",
		Command:     "key_down / key_up",
		Shortcut:    "KeyS, ArrowDown",
	},
	{
		ID:          "strafe-left",
		Label:       "Strafe Left",
		Description: "Slide left without turning.",
		Command:     "key_down / key_up",
		Shortcut:    "KeyA, ArrowLeft",
	},
	{
		ID:          "strafe-right",
		Label:       "Strafe Right",
		Description: "Slide right without turning.",
		Command:     "key_down / key_up",
		Shortcut:    "KeyD, ArrowRight",
	},
	{
		ID:          "jump",
		Label:       "Jump",
		Description: "Leap off the floor. Only works while grounded.",
		Command:     "key_down",
		Shortcut:    "Space",
	},
	{
		ID:          "look",
		Label:       "Look",
		Description: "Turn and tilt the camera with mouse deltas while the pointer is locked.",
		Command:     "look",
		Shortcut:    "Mouse move",
	},
	{
		ID:          "fire",
		Label:       "Fire",
		Description: "Fire the laser. Targets hit are removed and score 100 points.",
		Command:     "fire",
		Shortcut:    "Mouse left",
	},
	{
		ID:          "lock",
		Label:       "Capture Pointer",
		Description: "Enter play mode; movement and firing are ignored until the pointer is locked.",
		Command:     "lock / unlock",
		Shortcut:    "Click canvas, Escape to release",
	},
	{
		ID:          "reset",
		Label:       "Reset Range",
		Description: "Respawn every target and zero the score.",
		Command:     "reset",
		Shortcut:    "KeyR",
	},
}

func controlDocsHandler(w http.ResponseWriter, r *http.Request) {
	//1.- Sort a copy so concurrent requests never reorder the shared table.
	docs := slices.Clone(defaultControlDocs)
	slices.SortStableFunc(docs, func(a, b ControlDoc) int {
		if a.Label == b.Label {
			return strings.Compare(a.ID, b.ID)
		}
		return strings.Compare(a.Label, b.Label)
	})
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(docs); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
