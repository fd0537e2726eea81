// Package hostsim provides host-machine stand-ins for the hardware
// this project targets: a file-backed block device instead of an SD
// card, a PortAudio sink instead of a DAC/DMA peripheral, a WAV dump
// for offline inspection, and console/log-based UI and LED sinks.
package hostsim

import (
	"fmt"
	"os"

	"github.com/keystonefw/badapple/pkg/types"
)

// FileBlockDevice serves fixed-size blocks from a regular file,
// standing in for an SD/MMC card accessed over SPI/SDIO.
type FileBlockDevice struct {
	f    *os.File
	size int64
}

// OpenFileBlockDevice opens path for block-oriented reads.
func OpenFileBlockDevice(path string) (*FileBlockDevice, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("hostsim: open %s: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("hostsim: stat %s: %w", path, err)
	}
	return &FileBlockDevice{f: f, size: st.Size()}, nil
}

// Close releases the underlying file handle.
func (d *FileBlockDevice) Close() error {
	return d.f.Close()
}

// ReadBlock reads the single types.BlockSize-byte block at lba into out.
func (d *FileBlockDevice) ReadBlock(lba uint32, out []byte) error {
	return d.ReadBlocks(lba, 1, out)
}

// ReadBlocks reads count contiguous blocks starting at lba into out.
func (d *FileBlockDevice) ReadBlocks(lba uint32, count int, out []byte) error {
	want := count * types.BlockSize
	if len(out) != want {
		return fmt.Errorf("hostsim: %w: out is %d bytes, want %d", types.ErrInvalidParam, len(out), want)
	}

	off := int64(lba) * types.BlockSize
	if off+int64(want) > d.size {
		return fmt.Errorf("hostsim: %w: read past end of image at LBA %d", types.ErrRead, lba)
	}

	n, err := d.f.ReadAt(out, off)
	if err != nil || n != want {
		return fmt.Errorf("hostsim: %w: short read at LBA %d (%d/%d bytes): %v", types.ErrRead, lba, n, want, err)
	}
	return nil
}
