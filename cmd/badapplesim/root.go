package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "badapplesim",
	Short: "Synchronized audio/video player simulator",
	Long: `badapplesim - a host simulator for a bare-metal synchronized
audio/video player.

It mounts a FAT32 disk image (or a raw partition image), locates a
media file by its 8.3 name, and plays the same audio/display
pipelines and audio-master A/V synchronizer a microcontroller port
would run, driven here by PortAudio and a log-based console instead
of a DAC DMA peripheral and an SSD1306 display.

Commands:
  - play:     Play a media file with real-time audio and status reporting
  - info:     Print a media file's header, contiguity and duration
  - dump-wav: Decode a media file's audio track to a WAV file for inspection`,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
