package hostsim

import (
	"log/slog"

	"github.com/keystonefw/badapple/internal/orchestrator"
	"github.com/keystonefw/badapple/pkg/audio"
	"github.com/keystonefw/badapple/pkg/avsync"
	"github.com/keystonefw/badapple/pkg/media"
)

// ConsoleUI implements internal/orchestrator.UI by logging every event
// through log/slog, the way cmd/fileplayer.go's monitorPlayback logs
// periodic playback status.
type ConsoleUI struct{}

func (ConsoleUI) BootBanner(title string) {
	slog.Info("booting", "title", title)
}

func (ConsoleUI) FileOpened(name string, h media.Header, contiguous, corruptChain bool) {
	slog.Info("file opened",
		"file", name,
		"frame_count", h.FrameCount,
		"sample_rate", h.SampleRate,
		"channels", h.Channels,
		"bits_per_sample", h.BitsPerSample,
		"contiguous", contiguous,
		"corrupt_chain", corruptChain)
}

func (ConsoleUI) Stats(a audio.Stats, s avsync.Stats, r orchestrator.RefillStats) {
	slog.Info("stats",
		"samples_played", a.SamplesPlayed,
		"refill_count", a.RefillCount,
		"underrun_count", a.UnderrunCount,
		"frames_rendered", s.FramesRendered,
		"frames_skipped", s.FramesSkipped,
		"frames_repeated", s.FramesRepeated,
		"min_drift_frames", s.MinDriftFrames,
		"max_drift_frames", s.MaxDriftFrames,
		"max_refill_micros", r.MaxRefillTime.Microseconds())
}

func (ConsoleUI) Halt(reason string) {
	slog.Error("halted", "reason", reason)
}

// LEDLogger implements internal/orchestrator.LED by logging heartbeat
// state changes instead of toggling a GPIO pin.
type LEDLogger struct{}

func (LEDLogger) SetBlinking(hz float64) {
	slog.Info("led blinking", "hz", hz)
}

func (LEDLogger) Off() {
	slog.Info("led off")
}
