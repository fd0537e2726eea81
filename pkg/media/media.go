// Package media implements the Media Positioner (spec §4.3): it parses
// the 20-byte media header, maps logical byte offsets onto block reads
// with a contiguous-extent fast path, and extracts video frames and
// DAC-ready stereo audio from the file.
package media

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/keystonefw/badapple/pkg/blockdev"
	"github.com/keystonefw/badapple/pkg/fat32"
	"github.com/keystonefw/badapple/pkg/types"
)

const (
	// HeaderSize is the fixed 20-byte media header (spec §6).
	HeaderSize = 20
	// FrameSize is the fixed size of one raw video frame.
	FrameSize = 1024
	// MaxMultiblock bounds a single contiguous multi-block read so a
	// block-device read never holds off the audio ISR for too long
	// (spec §5 Suspension/blocking points).
	MaxMultiblock = 16

	// DACSilence is the 12-bit DAC midpoint, 0 V relative to mid-rail.
	DACSilence = 0x800
)

// Header is the 20-byte little-endian file header (spec §6).
type Header struct {
	FrameCount    uint32
	AudioSize     uint32
	SampleRate    uint32
	Channels      uint32
	BitsPerSample uint32
}

// Media is an opened media file: the positional reader described in
// spec §4.3. All of its fields are exclusive to the foreground.
type Media struct {
	vol *fat32.Volume
	dev blockdev.Device

	firstCluster uint32
	fileSize     uint32
	header       Header

	videoOffset uint32
	audioOffset uint32

	currentSample uint64
	volumePercent int

	cachedCluster      uint32
	cachedClusterIndex uint32

	isContiguous  bool
	corruptChain  bool
	firstSector   uint32

	scratch      [types.BlockSize]byte
	audioScratch []byte
}

// Open mounts fi as a Media file on vol: it parses the header and runs
// contiguity detection.
func Open(vol *fat32.Volume, fi fat32.FileInfo) (*Media, error) {
	dev := vol.Device()

	m := &Media{
		vol:           vol,
		dev:           dev,
		firstCluster:  fi.FirstCluster,
		fileSize:      fi.Size,
		volumePercent: 100,
	}

	sector := vol.ClusterToSector(fi.FirstCluster)
	if err := dev.ReadBlock(sector, m.scratch[:]); err != nil {
		return nil, fmt.Errorf("media: read header: %w", err)
	}
	m.header = Header{
		FrameCount:    binary.LittleEndian.Uint32(m.scratch[0:4]),
		AudioSize:     binary.LittleEndian.Uint32(m.scratch[4:8]),
		SampleRate:    binary.LittleEndian.Uint32(m.scratch[8:12]),
		Channels:      binary.LittleEndian.Uint32(m.scratch[12:16]),
		BitsPerSample: binary.LittleEndian.Uint32(m.scratch[16:20]),
	}
	m.videoOffset = HeaderSize
	m.audioOffset = HeaderSize + m.header.FrameCount*FrameSize

	if err := m.detectContiguity(); err != nil {
		return nil, fmt.Errorf("media: contiguity detection: %w", err)
	}

	return m, nil
}

// Header returns the parsed file header.
func (m *Media) Header() Header { return m.header }

// IsContiguous reports whether the contiguous fast path is active.
func (m *Media) IsContiguous() bool { return m.isContiguous }

// CorruptChainDetected reports whether the contiguity walker hit its
// safety bound without reaching end-of-chain (spec §9 Open Question
// (c)). The file is still playable via the fragmented path.
func (m *Media) CorruptChainDetected() bool { return m.corruptChain }

// SetVolume sets the playback volume percentage, clamped to [0,100].
func (m *Media) SetVolume(pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	m.volumePercent = pct
}

// Volume returns the current volume percentage.
func (m *Media) Volume() int { return m.volumePercent }

// Duration returns the playable duration assuming fps video frames are
// rendered per second (integer division, truncating, per spec §8
// scenario 2).
func (m *Media) Duration(fps uint32) time.Duration {
	if fps == 0 {
		return 0
	}
	return time.Duration(m.header.FrameCount/fps) * time.Second
}

// detectContiguity walks the cluster chain from the first cluster,
// looking for a run of consecutive cluster numbers (spec §4.3).
func (m *Media) detectContiguity() error {
	clusterSize := uint64(m.vol.ClusterSize())
	bound := (uint64(m.fileSize)+clusterSize-1)/clusterSize + 10

	prev := m.firstCluster
	cluster := m.firstCluster
	count := uint64(1)

	for {
		next, ok, err := m.vol.NextCluster(cluster)
		if err != nil {
			return err
		}
		if !ok {
			m.isContiguous = true
			m.firstSector = m.vol.ClusterToSector(m.firstCluster)
			m.cachedCluster = m.firstCluster
			m.cachedClusterIndex = 0
			return nil
		}
		if next != prev+1 {
			m.isContiguous = false
			return nil
		}
		prev = next
		cluster = next
		count++
		if count > bound {
			// Safety bound against FAT corruption (spec §9 Open
			// Question (c)): surface it for diagnostics but fall back
			// to the fragmented path rather than trusting the chain.
			m.isContiguous = false
			m.corruptChain = true
			return nil
		}
	}
}

// readAt performs a random-access read of len(buf) bytes starting at
// byte offset off, dispatching to the contiguous or fragmented path.
// It terminates early (short read) if off reaches the end of the file.
func (m *Media) readAt(off uint64, buf []byte) error {
	pos := 0
	for pos < len(buf) {
		if off >= uint64(m.fileSize) {
			return nil
		}
		var n int
		var err error
		if m.isContiguous {
			n, err = m.readContiguousSegment(off, buf[pos:])
		} else {
			n, err = m.readFragmentedSegment(off, buf[pos:])
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		off += uint64(n)
		pos += n
	}
	return nil
}

func (m *Media) readContiguousSegment(off uint64, buf []byte) (int, error) {
	sector := m.firstSector + uint32(off/types.BlockSize)
	so := int(off % types.BlockSize)
	remaining := len(buf)
	sizeRemaining := uint64(m.fileSize) - off

	if so != 0 || remaining < types.BlockSize {
		if err := m.dev.ReadBlock(sector, m.scratch[:]); err != nil {
			return 0, fmt.Errorf("media: contiguous read at sector %d: %w", sector, err)
		}
		toCopy := min(types.BlockSize-so, remaining)
		toCopy = int(min(uint64(toCopy), sizeRemaining))
		copy(buf[:toCopy], m.scratch[so:so+toCopy])
		return toCopy, nil
	}

	k := min(uint64(remaining/types.BlockSize), sizeRemaining/types.BlockSize, MaxMultiblock)
	if k >= 2 {
		if err := m.dev.ReadBlocks(sector, int(k), buf[:k*types.BlockSize]); err != nil {
			return 0, fmt.Errorf("media: multiblock read at sector %d (%d blocks): %w", sector, k, err)
		}
		return int(k * types.BlockSize), nil
	}
	if k == 1 {
		if err := m.dev.ReadBlock(sector, buf[:types.BlockSize]); err != nil {
			return 0, fmt.Errorf("media: single-block read at sector %d: %w", sector, err)
		}
		return types.BlockSize, nil
	}

	// Fewer than 512 bytes remain in the file at an aligned offset.
	if err := m.dev.ReadBlock(sector, m.scratch[:]); err != nil {
		return 0, fmt.Errorf("media: tail read at sector %d: %w", sector, err)
	}
	toCopy := int(min(sizeRemaining, uint64(remaining)))
	copy(buf[:toCopy], m.scratch[:toCopy])
	return toCopy, nil
}

func (m *Media) readFragmentedSegment(off uint64, buf []byte) (int, error) {
	clusterSize := uint64(m.vol.ClusterSize())
	targetIndex := uint32(off / clusterSize)

	cluster, err := m.resolveCluster(targetIndex)
	if err != nil {
		return 0, err
	}

	withinCluster := off % clusterSize
	sector := m.vol.ClusterToSector(cluster) + uint32(withinCluster/types.BlockSize)
	so := int(withinCluster % types.BlockSize)

	if err := m.dev.ReadBlock(sector, m.scratch[:]); err != nil {
		return 0, fmt.Errorf("media: fragmented read at sector %d: %w", sector, err)
	}

	sizeRemaining := uint64(m.fileSize) - off
	toCopy := min(types.BlockSize-so, len(buf))
	toCopy = int(min(uint64(toCopy), sizeRemaining))
	copy(buf[:toCopy], m.scratch[so:so+toCopy])
	return toCopy, nil
}

// resolveCluster finds the cluster containing clusterSize-relative
// index targetIndex, starting the walk from the forward cache when
// possible (spec §4.3).
func (m *Media) resolveCluster(targetIndex uint32) (uint32, error) {
	cluster := m.firstCluster
	idx := uint32(0)
	if m.cachedCluster != 0 && m.cachedClusterIndex <= targetIndex {
		cluster = m.cachedCluster
		idx = m.cachedClusterIndex
	}

	for idx < targetIndex {
		next, ok, err := m.vol.NextCluster(cluster)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, fmt.Errorf("media: %w: cluster chain ended before offset index %d", types.ErrInvalidParam, targetIndex)
		}
		cluster = next
		idx++
	}

	m.cachedCluster = cluster
	m.cachedClusterIndex = idx
	return cluster, nil
}

// ReadFrameAt reads the raw 1024-byte video frame at frameIndex into
// buf. On a storage error the frame is blanked (all zero) and ErrRead
// is returned so playback can continue (spec §7).
func (m *Media) ReadFrameAt(frameIndex uint32, buf []byte) error {
	if frameIndex >= m.header.FrameCount {
		return fmt.Errorf("media: %w: frame %d >= frame_count %d", types.ErrInvalidParam, frameIndex, m.header.FrameCount)
	}
	if len(buf) != FrameSize {
		return fmt.Errorf("media: %w: frame buffer is %d bytes, want %d", types.ErrInvalidParam, len(buf), FrameSize)
	}

	off := uint64(m.videoOffset) + uint64(frameIndex)*FrameSize
	if err := m.readAt(off, buf); err != nil {
		clear(buf)
		return fmt.Errorf("media: %w: %v", types.ErrRead, err)
	}
	return nil
}

// ReadAudio decodes the next n interleaved stereo samples starting from
// the current playback position into left and right, converting
// signed 16-bit PCM to volume-scaled unsigned 12-bit DAC samples (spec
// §4.3). Past end of audio it fills both outputs with DAC silence.
func (m *Media) ReadAudio(left, right []uint16, n int) error {
	if n == 0 {
		return nil
	}
	if len(left) < n || len(right) < n {
		return fmt.Errorf("media: %w: output buffers shorter than n=%d", types.ErrInvalidParam, n)
	}

	totalSamples := uint64(m.header.AudioSize) / 4
	if m.currentSample >= totalSamples {
		fillSilence(left[:n])
		fillSilence(right[:n])
		return nil
	}

	toRead := uint64(n)
	if remaining := totalSamples - m.currentSample; toRead > remaining {
		toRead = remaining
	}

	byteLen := int(toRead) * 4
	if cap(m.audioScratch) < byteLen {
		m.audioScratch = make([]byte, byteLen)
	}
	scratch := m.audioScratch[:byteLen]

	off := m.audioOffset + uint32(m.currentSample*4)
	if err := m.readAt(uint64(off), scratch); err != nil {
		fillSilence(left[:n])
		fillSilence(right[:n])
		return fmt.Errorf("media: %w: %v", types.ErrRead, err)
	}

	vol := m.volumePercent
	for i := uint64(0); i < toRead; i++ {
		l := int16(binary.LittleEndian.Uint16(scratch[i*4:]))
		r := int16(binary.LittleEndian.Uint16(scratch[i*4+2:]))
		left[i] = scaleToDAC(l, vol)
		right[i] = scaleToDAC(r, vol)
	}
	m.currentSample += toRead

	if int(toRead) < n {
		fillSilence(left[toRead:n])
		fillSilence(right[toRead:n])
	}
	return nil
}

// scaleToDAC converts a signed 16-bit PCM sample at volume vol (0..100)
// to an unsigned 12-bit right-aligned DAC sample. s=0, vol=100 maps to
// 0x800 (spec §8 property 5). The result is saturated to [0, 4095]
// rather than allowed to excurse by one bit (spec §9 Open Question (b)).
func scaleToDAC(s int16, vol int) uint16 {
	scaled := int32(s) * int32(vol) / 100
	shifted := scaled + 32768
	if shifted < 0 {
		shifted = 0
	}
	if shifted > 0xFFFF {
		shifted = 0xFFFF
	}
	dac := uint16(shifted) >> 4
	if dac > 4095 {
		dac = 4095
	}
	return dac
}

func fillSilence(buf []uint16) {
	for i := range buf {
		buf[i] = DACSilence
	}
}
