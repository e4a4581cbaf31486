package game

import (
	"testing"
	"time"

	"neonrange/server/internal/simulation"
)

func TestRunnerPublishesAtSnapshotRate(t *testing.T) {
	session := newTestSession(t)
	monitor := simulation.NewTickMonitor()
	runner := NewRunner(session, RunnerOptions{TickRate: 60, SnapshotRate: 30, Monitor: monitor})

	var frames []Snapshot
	detach := runner.Subscribe(FrameSinkFunc(func(snapshot Snapshot) {
		frames = append(frames, snapshot)
	}))
	now := time.Unix(1000, 0)
	for i := 0; i < 6; i++ {
		now = now.Add(frame)
		runner.tick(frame, now)
	}
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames at half rate, got %d", len(frames))
	}
	if frames[2].Tick != 6 {
		t.Fatalf("expected last frame at tick 6, got %d", frames[2].Tick)
	}
	if monitor.Snapshot().Samples != 6 {
		t.Fatalf("expected 6 monitored ticks, got %d", monitor.Snapshot().Samples)
	}

	detach()
	runner.tick(frame, now)
	runner.tick(frame, now)
	if len(frames) != 3 {
		t.Fatal("detached sink should not receive frames")
	}
}

func TestRunnerStopIsIdempotent(t *testing.T) {
	runner := NewRunner(newTestSession(t), RunnerOptions{})
	runner.Stop()
	runner.Stop()
}
