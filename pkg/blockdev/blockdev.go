// Package blockdev defines the synchronous block-device contract the
// storage layer is built on (spec §4.1) and a small in-memory test
// double. Real hardware backends (SD over SPI) are out of scope (spec
// §1); host-side backends live in internal/hostsim.
package blockdev

import (
	"fmt"

	"github.com/keystonefw/badapple/pkg/types"
)

// Device is a synchronous 512-byte block reader. Implementations may use
// DMA internally but must block the caller until the buffer is fully
// populated, and must not mask higher-priority interrupts (audio DMA)
// longer than the audio half-period (spec §4.1).
type Device interface {
	// ReadBlock reads one 512-byte block at lba into out, which must be
	// exactly types.BlockSize bytes.
	ReadBlock(lba uint32, out []byte) error

	// ReadBlocks reads count contiguous 512-byte blocks starting at
	// lba into out, which must be exactly count*types.BlockSize bytes.
	// This is the optimized path media.Media uses for the
	// contiguous fast path (spec §4.3).
	ReadBlocks(lba uint32, count int, out []byte) error
}

// Memory is an in-memory Device backed by a byte slice, used by package
// tests that need a deterministic block device without real storage.
type Memory struct {
	Blocks [][types.BlockSize]byte
	// FailAt, if non-negative, makes the read at this LBA return
	// ErrRead, simulating a storage fault for error-path tests.
	FailAt int64
}

// NewMemory creates a Memory device with n zeroed blocks.
func NewMemory(n int) *Memory {
	return &Memory{Blocks: make([][types.BlockSize]byte, n), FailAt: -1}
}

func (m *Memory) ReadBlock(lba uint32, out []byte) error {
	return m.ReadBlocks(lba, 1, out)
}

func (m *Memory) ReadBlocks(lba uint32, count int, out []byte) error {
	if len(out) != count*types.BlockSize {
		return fmt.Errorf("%w: output buffer is %d bytes, want %d", types.ErrInvalidParam, len(out), count*types.BlockSize)
	}
	for i := 0; i < count; i++ {
		idx := int64(lba) + int64(i)
		if idx == m.FailAt || idx < 0 || int(idx) >= len(m.Blocks) {
			return types.ErrRead
		}
		copy(out[i*types.BlockSize:(i+1)*types.BlockSize], m.Blocks[idx][:])
	}
	return nil
}
