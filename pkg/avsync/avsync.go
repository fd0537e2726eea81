// Package avsync implements the audio-master A/V synchronizer (spec
// §4.6): audio playback is the wall clock, and the video path is told
// to render, skip ahead or repeat a frame to track it.
//
// Synchronizer satisfies pkg/audio.Sink (AudioTick) without importing
// pkg/audio, keeping the dependency one-directional: the audio
// pipeline holds a non-owning reference to whatever AttachSink was
// given, and the orchestrator is the only thing that knows both types
// (spec §9 design note on avoiding an audio<->sync ownership cycle).
package avsync

import (
	"fmt"
	"sync"

	"github.com/keystonefw/badapple/pkg/types"
)

// Decision is the outcome of one GetFrameDecision call.
type Decision int

const (
	Render Decision = iota
	Skip
	Repeat
)

func (d Decision) String() string {
	switch d {
	case Render:
		return "RENDER"
	case Skip:
		return "SKIP"
	case Repeat:
		return "REPEAT"
	default:
		return "UNKNOWN"
	}
}

// State is the synchronizer's state machine (spec §4.6).
type State int

const (
	StateReset State = iota
	StateReady
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateReset:
		return "RESET"
	case StateReady:
		return "READY"
	case StateRunning:
		return "RUNNING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// Stats tracks the synchronizer counters spec §3 requires.
type Stats struct {
	FramesRendered int64
	FramesSkipped  int64
	FramesRepeated int64
	MinDriftFrames int64
	MaxDriftFrames int64
}

// DefaultMaxDriftFrames is the drift band half-width used when Init is
// given 0 (spec §4.6: "max_drift_frames defaults to 2 if the caller
// passes 0 at init").
const DefaultMaxDriftFrames = 2

// Synchronizer derives a video frame decision from the number of audio
// samples played so far. The zero value is not ready for use; call
// Init.
type Synchronizer struct {
	mu sync.Mutex

	sampleRate      uint32
	fps             uint32
	samplesPerFrame uint64
	maxDriftFrames  int64

	state        State
	audioSamples uint64
	videoFrame   uint64

	driftSeen bool
	stats     Stats
}

// Init configures the sample rate and frame rate used to convert
// audio-samples-played into an expected video frame index, and
// transitions RESET -> READY. maxDriftFrames is the inclusive band
// half-width around zero drift that still counts as in sync; 0 means
// DefaultMaxDriftFrames.
//
// samples_per_frame = sample_rate/fps is computed once here and stored,
// matching spec §4.6's decision law exactly rather than recomputing an
// equivalent-looking ratio on every call, which would round differently
// (spec §3 invariant: samples-per-frame >= 1, rejected at init
// otherwise).
func (s *Synchronizer) Init(sampleRate, fps, maxDriftFrames uint32) error {
	if sampleRate == 0 || fps == 0 {
		return fmt.Errorf("avsync: %w: sampleRate and fps must be > 0", types.ErrInvalidParam)
	}
	samplesPerFrame := uint64(sampleRate) / uint64(fps)
	if samplesPerFrame < 1 {
		return fmt.Errorf("avsync: %w: samples_per_frame (%d/%d) must be >= 1", types.ErrInvalidParam, sampleRate, fps)
	}
	if maxDriftFrames == 0 {
		maxDriftFrames = DefaultMaxDriftFrames
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sampleRate = sampleRate
	s.fps = fps
	s.samplesPerFrame = samplesPerFrame
	s.maxDriftFrames = int64(maxDriftFrames)
	s.state = StateReady
	s.audioSamples = 0
	s.videoFrame = 0
	s.driftSeen = false
	s.stats = Stats{}
	return nil
}

// Start transitions READY -> RUNNING.
func (s *Synchronizer) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return fmt.Errorf("avsync: %w: Start called in state %s", types.ErrInvalidParam, s.state)
	}
	s.state = StateRunning
	return nil
}

// Stop transitions RUNNING -> STOPPED. A stopped synchronizer must be
// re-Init before it can run again.
func (s *Synchronizer) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning {
		return fmt.Errorf("avsync: %w: Stop called in state %s", types.ErrInvalidParam, s.state)
	}
	s.state = StateStopped
	return nil
}

// State returns the current synchronizer state.
func (s *Synchronizer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// AudioTick is the audio pipeline's ISR-driven master clock tick: it
// reports that samples more audio samples have now been played.
func (s *Synchronizer) AudioTick(samples uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioSamples += samples
}

// audioFrameIndex returns audio_samples_played / samples_per_frame,
// truncating toward zero (spec §4.6), using the samples_per_frame
// value fixed at Init rather than re-deriving it from sampleRate and
// fps live. Must be called with s.mu held.
func (s *Synchronizer) audioFrameIndex() uint64 {
	return s.audioSamples / s.samplesPerFrame
}

// GetFrameDecision compares video_frames_rendered against the
// audio-derived frame index and returns RENDER, SKIP (video is behind;
// catch up by advancing without rendering) or REPEAT (video is ahead;
// hold the current frame). A RENDER or SKIP decision advances the
// internal video frame counter by one; a REPEAT decision does not.
// Drift stats are updated on every call regardless of outcome.
func (s *Synchronizer) GetFrameDecision() (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRunning {
		return Render, fmt.Errorf("avsync: %w: GetFrameDecision called in state %s", types.ErrInvalidParam, s.state)
	}

	audioFrame := s.audioFrameIndex()
	drift := int64(s.videoFrame) - int64(audioFrame)

	if !s.driftSeen {
		s.stats.MinDriftFrames = drift
		s.stats.MaxDriftFrames = drift
		s.driftSeen = true
	} else {
		s.stats.MinDriftFrames = min(s.stats.MinDriftFrames, drift)
		s.stats.MaxDriftFrames = max(s.stats.MaxDriftFrames, drift)
	}

	switch {
	case drift < -s.maxDriftFrames:
		s.videoFrame++
		s.stats.FramesSkipped++
		return Skip, nil
	case drift > s.maxDriftFrames:
		s.stats.FramesRepeated++
		return Repeat, nil
	default:
		s.videoFrame++
		s.stats.FramesRendered++
		return Render, nil
	}
}

// VideoFrame returns the video frame counter: the number of Render and
// Skip decisions made so far. Right after a Render decision, the frame
// the caller should decode is VideoFrame()-1.
func (s *Synchronizer) VideoFrame() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.videoFrame
}

// Stats returns a snapshot of the synchronizer's counters.
func (s *Synchronizer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
