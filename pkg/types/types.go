// Package types holds the small value types and sentinel errors shared
// across the storage, media and playback packages, mirroring the error
// taxonomy in the design notes (spec §7).
package types

import "errors"

// Sentinel errors returned by the storage and media layers. Callers use
// errors.Is to classify a failure; ErrRead and ErrTimeout both degrade
// gracefully further up the stack (silence/blank frame), ErrNotFound and
// ErrInvalidParam are fatal at the call site that produced them.
var (
	// ErrNoCard means no SD card responded during bring-up. Fatal.
	ErrNoCard = errors.New("no card")
	// ErrRead means a block-device read failed mid-playback.
	ErrRead = errors.New("block device read error")
	// ErrTimeout means a bounded wait (card response, data token, DMA
	// completion) expired. Escalated as ErrRead by callers above the
	// block device.
	ErrTimeout = errors.New("block device timeout")
	// ErrNotFound means the requested file is absent from the root
	// directory.
	ErrNotFound = errors.New("file not found")
	// ErrInvalidParam means a programmer error at an API boundary
	// (out-of-range frame index, zero samples-per-frame, etc).
	ErrInvalidParam = errors.New("invalid parameter")
	// ErrCorruptChain means the FAT cluster chain walker exceeded its
	// safety bound without reaching end-of-chain. No function in this
	// module returns it: the contiguity walker reports that condition
	// through media.Media.CorruptChainDetected, and this error is there
	// for a caller that treats the flag as fatal.
	ErrCorruptChain = errors.New("corrupt cluster chain")
)

// BlockSize is the only sector size this module supports: a mount is
// rejected if the BPB's bytes_per_sector differs (spec §4.2).
const BlockSize = 512
