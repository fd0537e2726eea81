// Package audio implements the Audio Pipeline (spec §4.4): two
// statically sized circular DMA buffers driven by a periodic hardware
// trigger, with half-complete/transfer-complete interrupt entry points
// and a foreground refill API.
//
// There is no real interrupt controller here — HandleHalfComplete and
// HandleTransferComplete are the methods a real MCU's DAC DMA interrupt
// handlers would call. In the host simulator, internal/hostsim's
// PortAudioSink calls them from its PortAudio stream callback.
package audio

import (
	"fmt"
	"sync"

	"github.com/keystonefw/badapple/pkg/types"
)

// FillHalf identifies which half of the circular buffer the foreground
// must refill next.
type FillHalf int

const (
	FillFirst FillHalf = iota
	FillSecond
)

// State is the audio pipeline's state machine (spec §4.4).
type State int

const (
	StateReset State = iota
	StateReady
	StatePlaying
	StateError
)

func (s State) String() string {
	switch s {
	case StateReset:
		return "RESET"
	case StateReady:
		return "READY"
	case StatePlaying:
		return "PLAYING"
	case StateError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Silence is the DAC midpoint sample (0 V relative to mid-rail), used
// to pre-fill both buffer halves before Start so pre-start playback is
// silent rather than garbage (spec §4.4 Pre-start requirement).
const Silence uint16 = 0x800

// Sink receives audio-samples-played notifications from the ISR entry
// points. The synchronizer implements this to derive its audio frame
// index; the audio pipeline holds only a non-owning reference to avoid
// an ownership cycle (spec §9 design note on audio<->sync).
type Sink interface {
	AudioTick(samples uint64)
}

// Stats tracks the counters spec §3 requires.
type Stats struct {
	SamplesPlayed uint64
	RefillCount   uint64
	UnderrunCount uint64
}

// Pipeline owns the two equal-length circular sample buffers and the
// refill bookkeeping. The zero value is not ready for use; call Init.
type Pipeline struct {
	mu sync.Mutex

	n     int
	left  []uint16
	right []uint16

	needsRefill bool
	fillHalf    FillHalf
	state       State
	stats       Stats
	sink        Sink
}

// Init allocates the two 2N-sample buffers, pre-fills them with
// silence, and transitions RESET -> READY. n must be > 0.
func (p *Pipeline) Init(n int) error {
	if n <= 0 {
		return fmt.Errorf("audio: %w: n=%d must be > 0", types.ErrInvalidParam, n)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.n = n
	p.left = make([]uint16, 2*n)
	p.right = make([]uint16, 2*n)
	for i := range p.left {
		p.left[i] = Silence
		p.right[i] = Silence
	}
	p.needsRefill = false
	p.fillHalf = FillFirst
	p.stats = Stats{}
	p.state = StateReady
	return nil
}

// AttachSink registers the synchronizer sink invoked from the ISR entry
// points. May be called any time before Start.
func (p *Pipeline) AttachSink(s Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink = s
}

// N returns the half-buffer length.
func (p *Pipeline) N() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}

// Start transitions READY -> PLAYING. Calling it outside READY is a
// programmer error (spec §9 design note: reject API calls invalid in
// the current state).
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateReady {
		return fmt.Errorf("audio: %w: Start called in state %s", types.ErrInvalidParam, p.state)
	}
	p.state = StatePlaying
	return nil
}

// Stop transitions PLAYING -> READY.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StatePlaying {
		return fmt.Errorf("audio: %w: Stop called in state %s", types.ErrInvalidParam, p.state)
	}
	p.state = StateReady
	return nil
}

// SetError forces the ERROR state on a fatal DMA failure. There is no
// recovery path beyond re-Init (spec §7 Propagation policy).
func (p *Pipeline) SetError() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = StateError
}

// State returns the current pipeline state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// HandleHalfComplete is the LEFT-channel half-complete ISR entry point:
// the DAC has just finished samples [0,N) and is now reading [N,2N).
func (p *Pipeline) HandleHalfComplete() {
	p.isr(FillFirst)
}

// HandleTransferComplete is the LEFT-channel transfer-complete ISR
// entry point: the DAC has just finished [N,2N) and wrapped to [0,N).
func (p *Pipeline) HandleTransferComplete() {
	p.isr(FillSecond)
}

func (p *Pipeline) isr(half FillHalf) {
	p.mu.Lock()
	if p.needsRefill {
		// The previous half was never filled in time; the DAC is about
		// to replay stale samples (spec §4.4, §9 Open Question (a):
		// replay continues, unbounded, until the foreground catches up).
		p.stats.UnderrunCount++
	}
	p.fillHalf = half
	p.needsRefill = true
	p.stats.SamplesPlayed += uint64(p.n)
	n := p.n
	sink := p.sink
	p.mu.Unlock()

	if sink != nil {
		sink.AudioTick(uint64(n))
	}
}

// NeedsRefill reports whether the foreground must refill a half-buffer.
func (p *Pipeline) NeedsRefill() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.needsRefill
}

// FillHalfToWrite returns which half the foreground must write next.
func (p *Pipeline) FillHalfToWrite() FillHalf {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fillHalf
}

// WriteOffset returns the sample offset (0 or N) the foreground should
// write at for the half currently indicated by FillHalfToWrite.
func (p *Pipeline) WriteOffset() int {
	if p.FillHalfToWrite() == FillFirst {
		return 0
	}
	return p.n
}

// LeftBuffer and RightBuffer return the full 2N-sample circular
// buffers. The foreground must only write the half NOT currently owned
// by DMA (spec §3 invariants) — WriteOffset identifies that half.
func (p *Pipeline) LeftBuffer() []uint16  { return p.left }
func (p *Pipeline) RightBuffer() []uint16 { return p.right }

// Barrier is the data memory barrier the spec requires after the
// foreground fills a buffer half and before the ownership-transferring
// BufferFilled clears needs_refill (spec §4.3 step 7, §5 Ordering
// guarantees). On this target it is a documented no-op; a real port
// pairs it with the platform's DMB/DSB instruction.
func Barrier() {}

// BufferFilled clears needs_refill and increments refill_count,
// transferring ownership of the just-written half back to DMA.
func (p *Pipeline) BufferFilled() {
	Barrier()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.needsRefill = false
	p.stats.RefillCount += uint64(p.n)
}

// Stats returns a snapshot of the pipeline's counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
