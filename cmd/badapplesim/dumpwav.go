package main

import (
	"log/slog"
	"os"

	"github.com/keystonefw/badapple/internal/hostsim"

	"github.com/spf13/cobra"
)

var (
	dumpWAVImagePath string
	dumpWAVOut       string
	dumpWAVVolume    int
)

var dumpWAVCmd = &cobra.Command{
	Use:   "dump-wav <media_file>",
	Short: "Decode a media file's audio track to a WAV file",
	Args:  cobra.ExactArgs(1),
	Run:   runDumpWAV,
}

func init() {
	rootCmd.AddCommand(dumpWAVCmd)
	dumpWAVCmd.Flags().StringVarP(&dumpWAVImagePath, "image", "i", "", "path to the disk image file (required)")
	dumpWAVCmd.Flags().StringVarP(&dumpWAVOut, "out", "o", "out.wav", "output WAV file path")
	dumpWAVCmd.Flags().IntVarP(&dumpWAVVolume, "volume", "V", 100, "playback volume percentage (0-100)")
	dumpWAVCmd.MarkFlagRequired("image")
}

func runDumpWAV(cmd *cobra.Command, args []string) {
	fileName := args[0]

	dev, _, med, err := openMedia(dumpWAVImagePath, fileName)
	if err != nil {
		slog.Error("failed to open media file", "error", err)
		os.Exit(1)
	}
	defer dev.Close()

	med.SetVolume(dumpWAVVolume)

	slog.Info("decoding audio track",
		"file", fileName,
		"sample_rate", med.Header().SampleRate,
		"volume", med.Volume(),
		"out", dumpWAVOut)

	if err := hostsim.DumpWAV(dumpWAVOut, med); err != nil {
		slog.Error("failed to dump WAV", "error", err)
		os.Exit(1)
	}

	slog.Info("wav written", "path", dumpWAVOut)
}
