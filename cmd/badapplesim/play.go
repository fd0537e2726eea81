package main

import (
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/keystonefw/badapple/internal/hostsim"
	"github.com/keystonefw/badapple/internal/orchestrator"

	"github.com/drgolem/go-portaudio/portaudio"
	"github.com/spf13/cobra"
)

var (
	playImagePath       string
	playDeviceIdx       int
	playFPS             uint32
	playVolume          int
	playFramesPerBuffer int
	playVerbose         bool
)

var playCmd = &cobra.Command{
	Use:   "play <media_file>",
	Short: "Play a media file with synchronized audio and video",
	Args:  cobra.ExactArgs(1),
	Run:   runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().StringVarP(&playImagePath, "image", "i", "", "path to the disk image file (required)")
	playCmd.Flags().IntVarP(&playDeviceIdx, "device", "d", 1, "PortAudio output device index")
	playCmd.Flags().Uint32Var(&playFPS, "fps", 30, "video frame rate")
	playCmd.Flags().IntVarP(&playVolume, "volume", "V", 100, "playback volume percentage (0-100)")
	playCmd.Flags().IntVarP(&playFramesPerBuffer, "paframes", "p", 512, "PortAudio frames per buffer")
	playCmd.Flags().BoolVarP(&playVerbose, "verbose", "v", false, "verbose (debug) logging")
	playCmd.MarkFlagRequired("image")
}

func runPlay(cmd *cobra.Command, args []string) {
	fileName := args[0]

	logLevel := slog.LevelInfo
	if playVerbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	dev, vol, _, err := openMedia(playImagePath, fileName)
	if err != nil {
		slog.Error("failed to open media file", "error", err)
		os.Exit(1)
	}
	defer dev.Close()

	o := orchestrator.New(vol, hostsim.ConsoleUI{}, hostsim.LEDLogger{})
	if err := o.Boot(fileName, playFPS); err != nil {
		slog.Error("boot failed", "error", err)
		os.Exit(1)
	}
	o.Media().SetVolume(playVolume)

	slog.Info("initializing portaudio")
	if err := portaudio.Initialize(); err != nil {
		slog.Error("failed to initialize portaudio", "error", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	sink := hostsim.NewPortAudioSink(o.AudioPipeline(), playDeviceIdx, playFramesPerBuffer, o.Media().Header().SampleRate)
	if err := sink.Open(); err != nil {
		slog.Error("failed to open audio sink", "error", err)
		os.Exit(1)
	}
	defer sink.Close()

	stopChan := make(chan struct{})
	var loopWG sync.WaitGroup

	loopWG.Add(1)
	go refillLoop(o, stopChan, &loopWG)

	loopWG.Add(1)
	go renderLoop(o, stopChan, &loopWG)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	statsTicker := time.NewTicker(2 * time.Second)
	defer statsTicker.Stop()

	duration := o.Media().Duration(playFPS)
	deadline := time.After(duration + time.Second)

	slog.Info("playback started", "file", fileName, "duration", duration)

loop:
	for {
		select {
		case <-statsTicker.C:
			o.ReportStats()
		case sig := <-sigChan:
			slog.Info("signal received, stopping", "signal", sig)
			break loop
		case <-deadline:
			slog.Info("playback finished")
			break loop
		}
		if o.Halted() {
			slog.Error("orchestrator halted", "reason", o.HaltReason())
			break loop
		}
	}

	close(stopChan)
	loopWG.Wait()
	o.ReportStats()
	slog.Info("exiting")
}

// refillLoop polls the audio pipeline and performs refills exactly as a
// bare-metal main loop would after a half/transfer-complete interrupt
// sets needs_refill (spec §4.4). The sleep is a host-only accommodation
// for not having a real interrupt to wait on.
func refillLoop(o *orchestrator.Orchestrator, stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-stop:
			return
		default:
		}
		o.RefillAudio()
		time.Sleep(time.Millisecond)
	}
}

// renderLoop drives the video side at the configured frame rate:
// ask the synchronizer for a decision, render if needed, and push the
// transfer buffer out through a stub transport.
func renderLoop(o *orchestrator.Orchestrator, stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	if playFPS == 0 {
		return
	}
	ticker := time.NewTicker(time.Second / time.Duration(playFPS))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := o.RenderFrame(); err != nil {
				slog.Warn("render frame failed", "error", err)
				continue
			}
			if err := o.PumpDisplay(transferToConsole); err != nil {
				slog.Warn("display transfer failed", "error", err)
			}
		}
	}
}

// transferToConsole stands in for the SPI/DMA push to a real SSD1306
// panel: on the host it is a no-op, since the frame bytes have nowhere
// useful to go on a terminal.
func transferToConsole(frame []byte) error {
	return nil
}
