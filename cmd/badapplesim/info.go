package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var infoImagePath string
var infoFPS uint32

var infoCmd = &cobra.Command{
	Use:   "info <media_file>",
	Short: "Print a media file's header, contiguity and duration",
	Args:  cobra.ExactArgs(1),
	Run:   runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().StringVarP(&infoImagePath, "image", "i", "", "path to the disk image file (required)")
	infoCmd.Flags().Uint32Var(&infoFPS, "fps", 30, "video frame rate used to compute duration")
	infoCmd.MarkFlagRequired("image")
}

func runInfo(cmd *cobra.Command, args []string) {
	fileName := args[0]

	dev, _, med, err := openMedia(infoImagePath, fileName)
	if err != nil {
		slog.Error("failed to open media file", "error", err)
		os.Exit(1)
	}
	defer dev.Close()

	h := med.Header()
	fmt.Printf("file:            %s\n", fileName)
	fmt.Printf("frame_count:     %d\n", h.FrameCount)
	fmt.Printf("audio_size:      %d bytes\n", h.AudioSize)
	fmt.Printf("sample_rate:     %d Hz\n", h.SampleRate)
	fmt.Printf("channels:        %d\n", h.Channels)
	fmt.Printf("bits_per_sample: %d\n", h.BitsPerSample)
	fmt.Printf("contiguous:      %v\n", med.IsContiguous())
	fmt.Printf("corrupt_chain:   %v\n", med.CorruptChainDetected())
	fmt.Printf("duration (@%dfps): %s\n", infoFPS, med.Duration(infoFPS))
}
