// Package display implements the Display Pipeline (spec §4.5): three
// fixed-size framebuffers rotated among render, ready and transfer
// roles so the renderer, the orchestrator and the (simulated) SPI/DMA
// transfer never touch the same memory at once.
package display

import (
	"fmt"
	"sync"

	"github.com/keystonefw/badapple/pkg/types"
)

// FrameSize is the size in bytes of one SSD1306-style monochrome frame
// (spec §2 GLOSSARY, matches pkg/media.FrameSize).
const FrameSize = 1024

// Stats tracks the Buffer Set counters spec §3 requires:
// frames_rendered and frames_transferred.
type Stats struct {
	FramesRendered    uint64
	FramesTransferred uint64
}

// Pipeline owns the three framebuffers and the render/ready/transfer
// index permutation. The zero value is not ready for use; call New.
type Pipeline struct {
	mu sync.Mutex

	buffers [3][]byte

	renderIdx   int
	readyIdx    int
	transferIdx int

	hasFrame     bool
	transferring bool

	transferIsNewFrame bool
	stats              Stats
}

// New allocates the three framebuffers and assigns the initial
// render/ready/transfer roles.
func New() *Pipeline {
	p := &Pipeline{renderIdx: 0, readyIdx: 1, transferIdx: 2}
	for i := range p.buffers {
		p.buffers[i] = make([]byte, FrameSize)
	}
	return p
}

// RenderBuffer returns the buffer the caller should decode the next
// video frame into. It must not be read by anything else until the
// next SwapBuffers call hands it off.
func (p *Pipeline) RenderBuffer() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffers[p.renderIdx]
}

// SwapBuffers is called once the render buffer has been fully decoded.
// It exchanges the render and ready roles, marks a frame available, and
// increments frames_rendered, preserving the three-way permutation of
// {0,1,2} across render, ready and transfer at all times (spec §3
// invariant) and spec §8 invariant 2 (frames_rendered >= frames_transferred).
func (p *Pipeline) SwapBuffers() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.renderIdx, p.readyIdx = p.readyIdx, p.renderIdx
	p.hasFrame = true
	p.stats.FramesRendered++
}

// HasFrame reports whether a decoded frame is waiting to be picked up
// by StartTransfer.
func (p *Pipeline) HasFrame() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasFrame
}

// StartTransfer adopts the ready buffer as the new transfer buffer if
// one is available and no transfer is already in flight, returning
// true if a new frame was adopted. If no frame is ready, the previous
// transfer buffer is reused so the display repeats its last frame
// rather than showing garbage (spec §4.5, mirrors the audio
// pipeline's stale-half replay policy).
func (p *Pipeline) StartTransfer() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.transferring {
		return false, fmt.Errorf("display: %w: transfer already in flight", types.ErrInvalidParam)
	}
	p.transferring = true

	if !p.hasFrame {
		p.transferIsNewFrame = false
		return false, nil
	}
	p.transferIdx, p.readyIdx = p.readyIdx, p.transferIdx
	p.hasFrame = false
	p.transferIsNewFrame = true
	return true, nil
}

// TransferBuffer returns the buffer currently (or most recently)
// handed to the transport layer.
func (p *Pipeline) TransferBuffer() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buffers[p.transferIdx]
}

// TransferComplete is the ISR/callback entry point signalling the
// transport has finished pushing the transfer buffer out. It increments
// frames_transferred only when the completed transfer actually carried
// a new frame out; a repeated stale frame (spec §4.5) is not counted,
// which is what keeps frames_rendered >= frames_transferred an
// invariant rather than something repeats could violate.
func (p *Pipeline) TransferComplete() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transferring = false
	if p.transferIsNewFrame {
		p.stats.FramesTransferred++
		p.transferIsNewFrame = false
	}
}

// IsTransferring reports whether a transfer is currently in flight.
func (p *Pipeline) IsTransferring() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transferring
}

// Stats returns a snapshot of the pipeline's frame counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
