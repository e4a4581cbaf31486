package rangeview

import (
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"
	"github.com/gopxl/beep/speaker"
)

const (
	sampleRate  = beep.SampleRate(44100)
	hitTone     = 880.0
	hitDuration = 60 * time.Millisecond
)

// Sounder plays feedback cues.
type Sounder interface {
	Hit()
	Close()
}

type silentSounder struct{}

func (silentSounder) Hit()   {}
func (silentSounder) Close() {}

// Silent returns a Sounder that never plays.
func Silent() Sounder { return silentSounder{} }

type beepSounder struct {
	mu sync.Mutex
}

// NewSounder opens the speaker. Hosts without audio get an error and should fall back to Silent.
func NewSounder() (Sounder, error) {
	if err := speaker.Init(sampleRate, sampleRate.N(time.Second/10)); err != nil {
		return nil, err
	}
	return &beepSounder{}, nil
}

// Hit plays a short sine blip.
func (s *beepSounder) Hit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	sine, err := generators.SineTone(sampleRate, hitTone)
	if err != nil {
		return
	}
	speaker.Play(beep.Take(sampleRate.N(hitDuration), sine))
}

func (s *beepSounder) Close() {
	speaker.Close()
}
