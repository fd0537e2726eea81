// Package fat32 implements a minimal read-only FAT32 volume reader:
// mount, root-directory short-filename lookup, and cluster-chain
// walking (spec §4.2). There is no write support and no long filename
// support (spec §1 Non-goals).
package fat32

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/keystonefw/badapple/pkg/blockdev"
	"github.com/keystonefw/badapple/pkg/types"
)

const (
	mbrPartitionTableOffset = 0x1BE
	bootSignatureOffset     = 510

	bpbBytesPerSector    = 11
	bpbSectorsPerCluster = 13
	bpbReservedSectors   = 14
	bpbNumFATs           = 16
	bpbSectorsPerFAT32   = 36
	bpbRootCluster       = 44

	dirEntrySize       = 32
	dirAttrLongName    = 0x0F
	dirEntryFree       = 0x00
	dirEntryDeleted    = 0xE5
	endOfChainMin      = 0x0FFFFFF8
	clusterChainMask   = 0x0FFFFFFF
)

// FileInfo is the result of a successful root-directory lookup.
type FileInfo struct {
	FirstCluster uint32
	Size         uint32
	Attributes   byte
}

// Volume is a mounted FAT32 volume. The scratch buffer is exclusive to
// the foreground (spec §5 Shared-resource policy) — callers must not
// hold a reference to it across a Mount/Find/NextCluster call.
type Volume struct {
	dev blockdev.Device

	bytesPerSector    uint16
	sectorsPerCluster uint8
	reservedSectors   uint16
	numFATs           uint8
	sectorsPerFAT     uint32
	rootCluster       uint32

	partitionLBA  uint32
	fatStartSect  uint32
	dataStartSect uint32

	scratch [types.BlockSize]byte
	mounted bool
}

// ClusterSize returns the volume's cluster size in bytes.
func (v *Volume) ClusterSize() uint32 {
	return uint32(v.sectorsPerCluster) * types.BlockSize
}

// Mount reads the MBR (if present) and the volume boot record, and
// validates the BIOS Parameter Block per spec §4.2.
func Mount(dev blockdev.Device) (*Volume, error) {
	v := &Volume{dev: dev}

	var sector [types.BlockSize]byte
	if err := dev.ReadBlock(0, sector[:]); err != nil {
		return nil, fmt.Errorf("fat32: read LBA 0: %w", err)
	}
	if !hasBootSignature(sector[:]) {
		return nil, fmt.Errorf("fat32: %w: missing 0x55AA signature at LBA 0", types.ErrInvalidParam)
	}

	partitionLBA := binary.LittleEndian.Uint32(sector[mbrPartitionTableOffset+8:])
	v.partitionLBA = partitionLBA // 0 means "super-floppy", no partition table

	if err := dev.ReadBlock(v.partitionLBA, sector[:]); err != nil {
		return nil, fmt.Errorf("fat32: read VBR at LBA %d: %w", v.partitionLBA, err)
	}
	if !hasBootSignature(sector[:]) {
		return nil, fmt.Errorf("fat32: %w: missing 0x55AA signature in VBR", types.ErrInvalidParam)
	}

	v.bytesPerSector = binary.LittleEndian.Uint16(sector[bpbBytesPerSector:])
	v.sectorsPerCluster = sector[bpbSectorsPerCluster]
	v.reservedSectors = binary.LittleEndian.Uint16(sector[bpbReservedSectors:])
	v.numFATs = sector[bpbNumFATs]
	v.sectorsPerFAT = binary.LittleEndian.Uint32(sector[bpbSectorsPerFAT32:])
	v.rootCluster = binary.LittleEndian.Uint32(sector[bpbRootCluster:])

	if v.bytesPerSector != types.BlockSize {
		return nil, fmt.Errorf("fat32: %w: bytes_per_sector=%d, want %d", types.ErrInvalidParam, v.bytesPerSector, types.BlockSize)
	}
	if v.sectorsPerCluster == 0 {
		return nil, fmt.Errorf("fat32: %w: sectors_per_cluster is 0", types.ErrInvalidParam)
	}
	if v.numFATs == 0 {
		return nil, fmt.Errorf("fat32: %w: num_fats is 0", types.ErrInvalidParam)
	}

	v.fatStartSect = v.partitionLBA + uint32(v.reservedSectors)
	v.dataStartSect = v.fatStartSect + uint32(v.numFATs)*v.sectorsPerFAT
	v.mounted = true
	return v, nil
}

func hasBootSignature(sector []byte) bool {
	return sector[bootSignatureOffset] == 0x55 && sector[bootSignatureOffset+1] == 0xAA
}

// ClusterToSector maps a cluster number to its first absolute sector.
// Only defined for c >= 2.
func (v *Volume) ClusterToSector(c uint32) uint32 {
	return v.dataStartSect + (c-2)*uint32(v.sectorsPerCluster)
}

// NextCluster returns the next cluster in c's chain, or ok=false if c is
// end-of-chain (value >= 0x0FFFFFF8 or < 2).
func (v *Volume) NextCluster(c uint32) (next uint32, ok bool, err error) {
	fatOffset := c * 4
	sector := v.fatStartSect + fatOffset/types.BlockSize
	byteOffset := fatOffset % types.BlockSize

	if err := v.dev.ReadBlock(sector, v.scratch[:]); err != nil {
		return 0, false, fmt.Errorf("fat32: read FAT sector %d: %w", sector, err)
	}
	raw := binary.LittleEndian.Uint32(v.scratch[byteOffset:]) & clusterChainMask
	if raw >= endOfChainMin || raw < 2 {
		return 0, false, nil
	}
	return raw, true, nil
}

// Find resolves an 8.3 short filename in the root directory.
func (v *Volume) Find(name string) (FileInfo, error) {
	target := ConvertFilename(name)

	cluster := v.rootCluster
	for {
		sectorBase := v.ClusterToSector(cluster)
		for s := uint32(0); s < uint32(v.sectorsPerCluster); s++ {
			if err := v.dev.ReadBlock(sectorBase+s, v.scratch[:]); err != nil {
				return FileInfo{}, fmt.Errorf("fat32: read directory sector: %w", err)
			}
			for off := 0; off+dirEntrySize <= types.BlockSize; off += dirEntrySize {
				entry := v.scratch[off : off+dirEntrySize]
				switch entry[0] {
				case dirEntryFree:
					return FileInfo{}, fmt.Errorf("fat32: %w: %q", types.ErrNotFound, name)
				case dirEntryDeleted:
					continue
				}
				if entry[11]&dirAttrLongName == dirAttrLongName {
					continue
				}
				if string(entry[0:11]) != target {
					continue
				}
				firstClusterHi := uint32(binary.LittleEndian.Uint16(entry[20:22]))
				firstClusterLo := uint32(binary.LittleEndian.Uint16(entry[26:28]))
				return FileInfo{
					FirstCluster: firstClusterHi<<16 | firstClusterLo,
					Size:         binary.LittleEndian.Uint32(entry[28:32]),
					Attributes:   entry[11],
				}, nil
			}
		}

		next, ok, err := v.NextCluster(cluster)
		if err != nil {
			return FileInfo{}, err
		}
		if !ok {
			return FileInfo{}, fmt.Errorf("fat32: %w: %q", types.ErrNotFound, name)
		}
		cluster = next
	}
}

// ConvertFilename renders a filename in canonical 8.3 space-padded
// directory-entry form: uppercase, up to 8 name chars, space-padded to
// 8, up to 3 extension chars, space-padded to 3, no dot. A name with no
// dot that is longer than 8 chars takes the chars after the eighth as its
// extension. Idempotent on already-canonical input; always produces
// exactly 11 bytes.
func ConvertFilename(name string) string {
	name = strings.ToUpper(name)

	base := name
	ext := ""
	if dot := strings.LastIndexByte(name, '.'); dot >= 0 {
		base = name[:dot]
		ext = name[dot+1:]
	} else if len(name) > 8 {
		base = name[:8]
		ext = name[8:]
	}
	if len(base) > 8 {
		base = base[:8]
	}
	if len(ext) > 3 {
		ext = ext[:3]
	}

	var b strings.Builder
	b.WriteString(base)
	for b.Len() < 8 {
		b.WriteByte(' ')
	}
	start := b.Len()
	b.WriteString(ext)
	for b.Len() < start+3 {
		b.WriteByte(' ')
	}
	return b.String()
}
