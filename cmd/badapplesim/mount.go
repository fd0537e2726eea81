package main

import (
	"fmt"

	"github.com/keystonefw/badapple/internal/hostsim"
	"github.com/keystonefw/badapple/pkg/fat32"
	"github.com/keystonefw/badapple/pkg/media"
)

// openMedia mounts imagePath as a FAT32 volume and opens fileName on
// it as a Media file. The caller is responsible for closing the
// returned block device once done with the media file.
func openMedia(imagePath, fileName string) (*hostsim.FileBlockDevice, *fat32.Volume, *media.Media, error) {
	dev, err := hostsim.OpenFileBlockDevice(imagePath)
	if err != nil {
		return nil, nil, nil, err
	}

	vol, err := fat32.Mount(dev)
	if err != nil {
		dev.Close()
		return nil, nil, nil, fmt.Errorf("mount %s: %w", imagePath, err)
	}

	fi, err := vol.Find(fileName)
	if err != nil {
		dev.Close()
		return nil, nil, nil, fmt.Errorf("find %s: %w", fileName, err)
	}

	med, err := media.Open(vol, fi)
	if err != nil {
		dev.Close()
		return nil, nil, nil, fmt.Errorf("open %s: %w", fileName, err)
	}

	return dev, vol, med, nil
}
