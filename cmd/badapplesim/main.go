// Command badapplesim is the host simulator for the synchronized
// audio/video player: it mounts a FAT32 disk image, locates a media
// file, and drives the same audio/display/sync pipelines a bare-metal
// port would run, substituting PortAudio and a log-based console for
// the DAC and display hardware.
package main

func main() {
	Execute()
}
