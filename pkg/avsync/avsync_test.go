package avsync

import "testing"

func newRunning(t *testing.T, sampleRate, fps, maxDrift uint32) *Synchronizer {
	t.Helper()
	var s Synchronizer
	if err := s.Init(sampleRate, fps, maxDrift); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return &s
}

func TestInitRejectsZero(t *testing.T) {
	var s Synchronizer
	if err := s.Init(0, 30, 0); err == nil {
		t.Fatal("expected error for sampleRate=0")
	}
	if err := s.Init(44100, 0, 0); err == nil {
		t.Fatal("expected error for fps=0")
	}
}

func TestInitZeroMaxDriftUsesDefault(t *testing.T) {
	var s Synchronizer
	if err := s.Init(44100, 30, 0); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if s.maxDriftFrames != DefaultMaxDriftFrames {
		t.Errorf("maxDriftFrames = %d, want %d", s.maxDriftFrames, DefaultMaxDriftFrames)
	}
}

func TestInitRejectsSamplesPerFrameBelowOne(t *testing.T) {
	var s Synchronizer
	// fps > sampleRate truncates samples_per_frame to 0 (spec §3 invariant:
	// samples-per-frame >= 1, rejected at init otherwise).
	if err := s.Init(1, 2, 0); err == nil {
		t.Fatal("expected error for samples_per_frame < 1")
	}
}

func TestAudioFrameIndexUsesStoredSamplesPerFrame(t *testing.T) {
	// sampleRate=32000, fps=30: samples_per_frame truncates to 1066, not
	// the live ratio audioSamples*fps/sampleRate (which would give a
	// different, drifting answer over time).
	s := newRunning(t, 32000, 30, 1000)
	s.AudioTick(2132)
	if got := s.audioFrameIndex(); got != 2 {
		t.Errorf("audioFrameIndex() = %d, want 2 (2132/1066)", got)
	}
}

func TestGetFrameDecisionRequiresRunning(t *testing.T) {
	var s Synchronizer
	s.Init(44100, 30, 0)
	if _, err := s.GetFrameDecision(); err == nil {
		t.Fatal("expected error calling GetFrameDecision before Start")
	}
}

func TestPerfectSyncAlwaysRenders(t *testing.T) {
	// sampleRate=30, fps=30: one sample tick == one frame tick exactly.
	s := newRunning(t, 30, 30, 0)
	for i := 0; i < 5; i++ {
		s.AudioTick(1)
		d, err := s.GetFrameDecision()
		if err != nil {
			t.Fatalf("GetFrameDecision: %v", err)
		}
		if d != Render {
			t.Fatalf("iteration %d: decision = %v, want RENDER", i, d)
		}
	}
	stats := s.Stats()
	if stats.FramesRendered != 5 {
		t.Errorf("FramesRendered = %d, want 5", stats.FramesRendered)
	}
	if stats.FramesSkipped != 0 || stats.FramesRepeated != 0 {
		t.Errorf("unexpected skip/repeat: %+v", stats)
	}
}

func TestDriftWithinBandAlwaysRenders(t *testing.T) {
	// max_drift=2: a one-frame lead must still RENDER (inclusive band).
	s := newRunning(t, 1, 1, 2)
	s.AudioTick(0)
	d, err := s.GetFrameDecision()
	if err != nil {
		t.Fatalf("GetFrameDecision: %v", err)
	}
	if d != Render {
		t.Fatalf("decision = %v, want RENDER (video_frames_rendered=0, audio_frame=0)", d)
	}
	// video_frames_rendered is now 1, audio_frame is still 0: drift=+1, within band.
	d, err = s.GetFrameDecision()
	if err != nil {
		t.Fatalf("GetFrameDecision: %v", err)
	}
	if d != Render {
		t.Fatalf("decision = %v, want RENDER (drift=+1 within band)", d)
	}
}

func TestVideoBehindCausesSkip(t *testing.T) {
	s := newRunning(t, 1, 1, 0)
	// Audio jumps ahead by 3 frames worth of samples before video gets a
	// chance to catch up: drift = 0 - 3 = -3, beyond the default band of 2.
	s.AudioTick(3)
	d, err := s.GetFrameDecision()
	if err != nil {
		t.Fatalf("GetFrameDecision: %v", err)
	}
	if d != Skip {
		t.Fatalf("decision = %v, want SKIP", d)
	}
	stats := s.Stats()
	if stats.FramesSkipped != 1 {
		t.Errorf("FramesSkipped = %d, want 1", stats.FramesSkipped)
	}
	if stats.MinDriftFrames > -3 {
		t.Errorf("MinDriftFrames = %d, want <= -3", stats.MinDriftFrames)
	}
}

func TestVideoAheadCausesRepeat(t *testing.T) {
	s := newRunning(t, 2, 1, 2)
	// No audio ticks: expected frame is 0. Render frame 0 to push
	// video_frames_rendered to 1, then two more RENDERs (drift +1 and +2,
	// inside the inclusive band) to reach 3, putting video 3 frames ahead
	// of audio's 0 — beyond the band of 2.
	s.AudioTick(0)
	for i := 0; i < 3; i++ {
		d, err := s.GetFrameDecision()
		if err != nil {
			t.Fatalf("GetFrameDecision %d: %v", i, err)
		}
		if d != Render {
			t.Fatalf("decision %d = %v, want RENDER", i, d)
		}
	}
	d, err := s.GetFrameDecision()
	if err != nil {
		t.Fatalf("GetFrameDecision: %v", err)
	}
	if d != Repeat {
		t.Fatalf("decision = %v, want REPEAT", d)
	}
	stats := s.Stats()
	if stats.FramesRepeated != 1 {
		t.Errorf("FramesRepeated = %d, want 1", stats.FramesRepeated)
	}
	if s.VideoFrame() != 3 {
		t.Errorf("VideoFrame = %d, want 3 (REPEAT does not advance)", s.VideoFrame())
	}
}

// TestDecisionStreamScenario replays spec §8 scenario 3: samples_per_frame
// derived from sampleRate=32000, fps=30 (1066 truncated), max_drift=2.
func TestDecisionStreamScenario(t *testing.T) {
	s := newRunning(t, 32000, 30, 2)

	// Four half-buffer interrupts already delivered 8192 samples total;
	// audio_frame_index = 8192/1066 = 7 (truncated). video_frames_rendered
	// starts at 4 from prior rendering in this scenario.
	s.AudioTick(8192)
	s.videoFrame = 4

	d, err := s.GetFrameDecision()
	if err != nil {
		t.Fatalf("GetFrameDecision: %v", err)
	}
	if d != Skip {
		t.Fatalf("decision = %v, want SKIP (drift=4-7=-3)", d)
	}
	if s.VideoFrame() != 5 {
		t.Fatalf("VideoFrame = %d, want 5", s.VideoFrame())
	}

	d, err = s.GetFrameDecision()
	if err != nil {
		t.Fatalf("GetFrameDecision: %v", err)
	}
	if d != Render {
		t.Fatalf("decision = %v, want RENDER (drift=5-7=-2, within band)", d)
	}
	if s.VideoFrame() != 6 {
		t.Fatalf("VideoFrame = %d, want 6", s.VideoFrame())
	}

	d, err = s.GetFrameDecision()
	if err != nil {
		t.Fatalf("GetFrameDecision: %v", err)
	}
	if d != Render {
		t.Fatalf("decision = %v, want RENDER (drift=6-7=-1)", d)
	}

	d, err = s.GetFrameDecision()
	if err != nil {
		t.Fatalf("GetFrameDecision: %v", err)
	}
	if d != Render || s.VideoFrame() != 8 {
		t.Fatalf("decision = %v, VideoFrame = %d, want RENDER at 8 (drift=7-7=0)", d, s.VideoFrame())
	}

	d, err = s.GetFrameDecision()
	if err != nil {
		t.Fatalf("GetFrameDecision: %v", err)
	}
	if d != Render {
		t.Fatalf("decision = %v, want RENDER (drift=8-7=+1, within band)", d)
	}
}

func TestStateMachineTransitions(t *testing.T) {
	var s Synchronizer
	if err := s.Start(); err == nil {
		t.Fatal("Start before Init/Ready should fail")
	}
	s.Init(44100, 30, 0)
	if err := s.Stop(); err == nil {
		t.Fatal("Stop before Start should fail")
	}
	s.Start()
	if s.State() != StateRunning {
		t.Errorf("State = %v, want RUNNING", s.State())
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if s.State() != StateStopped {
		t.Errorf("State = %v, want STOPPED", s.State())
	}
}
