package fat32

import "github.com/keystonefw/badapple/pkg/blockdev"

// Device exposes the underlying block device so higher layers (the media
// positioner) can issue their own reads against the mounted volume's
// geometry without going through directory or FAT operations.
func (v *Volume) Device() blockdev.Device {
	return v.dev
}
