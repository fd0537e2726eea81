// Package orchestrator wires the block device, FAT32 volume, media
// positioner, audio pipeline, display pipeline and A/V synchronizer
// into the steady-state playback loop (spec §4.7). It owns all of
// those pieces; the audio pipeline's synchronizer reference is the
// only non-owning edge (spec §9 design note).
package orchestrator

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/keystonefw/badapple/pkg/audio"
	"github.com/keystonefw/badapple/pkg/avsync"
	"github.com/keystonefw/badapple/pkg/display"
	"github.com/keystonefw/badapple/pkg/fat32"
	"github.com/keystonefw/badapple/pkg/media"
	"github.com/keystonefw/badapple/pkg/types"
)

// UI is the sink for user-visible orchestrator events: boot banner,
// file info and periodic stats, and the fatal halt message. The host
// simulator implements this against stdout; a bare-metal port would
// implement it against whatever startup console the board has.
type UI interface {
	BootBanner(title string)
	FileOpened(name string, h media.Header, contiguous, corruptChain bool)
	Stats(a audio.Stats, s avsync.Stats, r RefillStats)
	Halt(reason string)
}

// RefillStats tracks the refill-latency diagnostics spec §4.7 step 1
// requires ("record max elapsed time for diagnostics").
type RefillStats struct {
	RefillOps     uint64
	AvgRefillTime time.Duration
	MaxRefillTime time.Duration
}

// LED is the heartbeat indicator driven at 2Hz while playback is
// running (spec §4.7), and turned off on Halt.
type LED interface {
	SetBlinking(hz float64)
	Off()
}

// Orchestrator owns every pipeline and drives one media file from boot
// through steady-state playback to halt.
type Orchestrator struct {
	vol *fat32.Volume
	med *media.Media

	audioPipe   *audio.Pipeline
	displayPipe *display.Pipeline
	sync        *avsync.Synchronizer

	ui  UI
	led LED

	fps        uint32
	halted     bool
	haltReason string

	metrics struct {
		sync.Mutex
		refillOps     atomic.Uint64
		refillTimeSum atomic.Uint64 // Microseconds
		maxRefillTime time.Duration
	}
}

// New builds an Orchestrator over an already-mounted volume.
func New(vol *fat32.Volume, ui UI, led LED) *Orchestrator {
	return &Orchestrator{
		vol:         vol,
		ui:          ui,
		led:         led,
		audioPipe:   &audio.Pipeline{},
		displayPipe: display.New(),
		sync:        &avsync.Synchronizer{},
	}
}

// audioHalfSize picks the audio buffer half length so one half-buffer
// of audio covers exactly one video frame interval, keeping the audio
// refill and video render cadences aligned (spec §4.4/§4.6).
func audioHalfSize(sampleRate, fps uint32) int {
	if fps == 0 {
		fps = 30
	}
	return int(sampleRate / fps)
}

// Boot locates fileName on the mounted volume, opens it as a Media
// file, and brings the audio and synchronizer pipelines up to RUNNING.
// fps is the fixed video frame rate this build targets; the container
// format carries no fps field of its own (spec §2 GLOSSARY).
func (o *Orchestrator) Boot(fileName string, fps uint32) error {
	o.ui.BootBanner("badapple")

	fi, err := o.vol.Find(fileName)
	if err != nil {
		return o.Halt(fmt.Sprintf("file not found: %s: %v", fileName, err))
	}

	med, err := media.Open(o.vol, fi)
	if err != nil {
		return o.Halt(fmt.Sprintf("open %s: %v", fileName, err))
	}
	o.med = med
	o.fps = fps
	o.ui.FileOpened(fileName, med.Header(), med.IsContiguous(), med.CorruptChainDetected())

	n := audioHalfSize(med.Header().SampleRate, fps)
	if err := o.audioPipe.Init(n); err != nil {
		return o.Halt(fmt.Sprintf("audio init: %v", err))
	}
	o.audioPipe.AttachSink(o.sync)

	if err := o.sync.Init(med.Header().SampleRate, fps, 0); err != nil {
		return o.Halt(fmt.Sprintf("sync init: %v", err))
	}
	if err := o.audioPipe.Start(); err != nil {
		return o.Halt(fmt.Sprintf("audio start: %v", err))
	}
	if err := o.sync.Start(); err != nil {
		return o.Halt(fmt.Sprintf("sync start: %v", err))
	}

	o.led.SetBlinking(2.0)
	return nil
}

// RefillAudio fills whichever half-buffer the audio pipeline currently
// needs from the media file's audio stream. When NeedsRefill is false it
// returns without doing anything, so the caller (the host refill loop,
// or a bare-metal main loop) may poll it.
func (o *Orchestrator) RefillAudio() {
	if !o.audioPipe.NeedsRefill() {
		return
	}
	start := time.Now()

	n := o.audioPipe.N()
	off := o.audioPipe.WriteOffset()
	left := o.audioPipe.LeftBuffer()[off : off+n]
	right := o.audioPipe.RightBuffer()[off : off+n]

	if err := o.med.ReadAudio(left, right, n); err != nil {
		slog.Warn("audio refill read error", "error", err)
	}
	o.audioPipe.BufferFilled()

	o.updateRefillMetrics(time.Since(start))
}

// updateRefillMetrics records one refill's elapsed time into the
// ops/sum counters (lock-free) and the running max (mutex-guarded),
// the worst-case-latency diagnostic spec §4.7 step 1 asks for.
func (o *Orchestrator) updateRefillMetrics(elapsed time.Duration) {
	o.metrics.refillOps.Add(1)
	o.metrics.refillTimeSum.Add(uint64(elapsed.Microseconds()))

	o.metrics.Lock()
	if elapsed > o.metrics.maxRefillTime {
		o.metrics.maxRefillTime = elapsed
	}
	o.metrics.Unlock()
}

// RefillStats returns a snapshot of the audio-refill latency
// diagnostics.
func (o *Orchestrator) RefillStats() RefillStats {
	ops := o.metrics.refillOps.Load()
	var avg time.Duration
	if ops > 0 {
		avg = time.Duration(o.metrics.refillTimeSum.Load()/ops) * time.Microsecond
	}
	o.metrics.Lock()
	max := o.metrics.maxRefillTime
	o.metrics.Unlock()
	return RefillStats{RefillOps: ops, AvgRefillTime: avg, MaxRefillTime: max}
}

// RenderFrame asks the synchronizer for a frame decision and, on
// RENDER, decodes the next video frame into the display pipeline's
// render buffer and swaps it into the ready slot. SKIP advances the
// video position without rendering; REPEAT leaves the display
// pipeline's ready/transfer buffers untouched so the previous frame is
// shown again (spec §4.6).
func (o *Orchestrator) RenderFrame() error {
	decision, err := o.sync.GetFrameDecision()
	if err != nil {
		return err
	}
	if decision != avsync.Render {
		return nil
	}

	idx := o.sync.VideoFrame() - 1
	buf := o.displayPipe.RenderBuffer()
	if err := o.med.ReadFrameAt(uint32(idx), buf); err != nil {
		slog.Warn("video frame read error", "frame", idx, "error", err)
	}
	o.displayPipe.SwapBuffers()
	return nil
}

// PumpDisplay adopts the next ready frame (if any) as the transfer
// buffer and hands it to transport, which is expected to push it out
// to the physical display and return once the transfer has completed.
func (o *Orchestrator) PumpDisplay(transport func([]byte) error) error {
	if _, err := o.displayPipe.StartTransfer(); err != nil {
		return err
	}
	buf := o.displayPipe.TransferBuffer()
	err := transport(buf)
	o.displayPipe.TransferComplete()
	return err
}

// ReportStats pushes a snapshot of the audio and synchronizer counters
// to the UI sink.
func (o *Orchestrator) ReportStats() {
	o.ui.Stats(o.audioPipe.Stats(), o.sync.Stats(), o.RefillStats())
}

// Halt transitions the audio pipeline to its terminal error state,
// turns off the heartbeat LED and reports reason via the UI sink. Per
// the fatal error policy (spec §7), there is no automatic recovery; a
// fresh Boot is required.
func (o *Orchestrator) Halt(reason string) error {
	o.halted = true
	o.haltReason = reason
	o.audioPipe.SetError()
	o.led.Off()
	o.ui.Halt(reason)
	return fmt.Errorf("orchestrator: %w: %s", types.ErrInvalidParam, reason)
}

// Halted reports whether Halt has been called.
func (o *Orchestrator) Halted() bool { return o.halted }

// HaltReason returns the reason passed to Halt, or "" if not halted.
func (o *Orchestrator) HaltReason() string { return o.haltReason }

// Media exposes the opened media file, mainly so callers can read its
// Duration before starting the steady-state loop.
func (o *Orchestrator) Media() *media.Media { return o.med }

// AudioPipeline exposes the audio pipeline so a host sink (PortAudio on
// the simulator, a real DAC DMA driver on the MCU) can be wired to it.
func (o *Orchestrator) AudioPipeline() *audio.Pipeline { return o.audioPipe }
