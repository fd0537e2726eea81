package hostsim

import (
	"fmt"
	"log/slog"

	"github.com/keystonefw/badapple/pkg/audio"

	"github.com/drgolem/go-portaudio/portaudio"
)

// PortAudioSink drives a pkg/audio.Pipeline through a real PortAudio
// output stream so a developer running cmd/badapplesim on a workstation
// can actually hear the decoded stream.
//
// Unlike a real MCU, this host has no DMA half/transfer-complete
// interrupt to drive the pipeline's ISR entry points. PortAudioSink's
// callback plays that role itself: it walks the pipeline's circular
// buffer one sample at a time and calls HandleHalfComplete /
// HandleTransferComplete exactly when a real DMA engine would raise
// those interrupts, converting 12-bit DAC samples back to signed
// 16-bit PCM for the host's sound card along the way. This mirrors
// internal/fileplayer.FilePlayer.audioCallback's role as the
// PortAudio-thread consumer in a producer/consumer split.
type PortAudioSink struct {
	pipe            *audio.Pipeline
	stream          *portaudio.PaStream
	deviceIndex     int
	framesPerBuffer int
	sampleRate      uint32
	pos             int
}

// NewPortAudioSink builds a sink for pipe. deviceIndex selects the
// PortAudio output device and framesPerBuffer is the host stream's
// callback block size; neither affects the pipeline's own half-buffer
// size.
func NewPortAudioSink(pipe *audio.Pipeline, deviceIndex, framesPerBuffer int, sampleRate uint32) *PortAudioSink {
	return &PortAudioSink{
		pipe:            pipe,
		deviceIndex:     deviceIndex,
		framesPerBuffer: framesPerBuffer,
		sampleRate:      sampleRate,
	}
}

// Open opens and starts the output stream on an already-initialized
// PortAudio library; it does not call portaudio.Initialize itself. Call
// Close when done.
func (s *PortAudioSink) Open() error {
	outParams := &portaudio.PaStreamParameters{
		DeviceIndex:  s.deviceIndex,
		ChannelCount: 2,
		SampleFormat: portaudio.SampleFmtInt16,
	}

	s.stream = &portaudio.PaStream{
		OutputParameters: outParams,
		SampleRate:       float64(s.sampleRate),
	}

	if err := s.stream.OpenCallback(s.framesPerBuffer, s.audioCallback); err != nil {
		return fmt.Errorf("hostsim: open portaudio stream: %w", err)
	}
	if err := s.stream.StartStream(); err != nil {
		return fmt.Errorf("hostsim: start portaudio stream: %w", err)
	}
	return nil
}

// Close stops and releases the PortAudio stream.
func (s *PortAudioSink) Close() error {
	if s.stream == nil {
		return nil
	}
	if err := s.stream.StopStream(); err != nil {
		slog.Warn("hostsim: failed to stop stream", "error", err)
	}
	if err := s.stream.CloseCallback(); err != nil {
		return fmt.Errorf("hostsim: close portaudio stream: %w", err)
	}
	s.stream = nil
	return nil
}

// audioCallback is invoked on PortAudio's real-time audio thread, not a
// Go goroutine (spec real-time constraints per
// internal/fileplayer.FilePlayer.audioCallback): no allocation, no
// blocking, no slow operations.
func (s *PortAudioSink) audioCallback(
	input, output []byte,
	frameCount uint,
	timeInfo *portaudio.StreamCallbackTimeInfo,
	statusFlags portaudio.StreamCallbackFlags,
) portaudio.StreamCallbackResult {
	n := s.pipe.N()
	total := 2 * n
	left := s.pipe.LeftBuffer()
	right := s.pipe.RightBuffer()

	for i := 0; i < int(frameCount); i++ {
		l := dacToPCM16(left[s.pos])
		r := dacToPCM16(right[s.pos])

		off := i * 4
		output[off] = byte(l)
		output[off+1] = byte(l >> 8)
		output[off+2] = byte(r)
		output[off+3] = byte(r >> 8)

		s.pos++
		if s.pos == n {
			s.pipe.HandleHalfComplete()
		}
		if s.pos == total {
			s.pos = 0
			s.pipe.HandleTransferComplete()
		}
	}

	return portaudio.Continue
}

// dacToPCM16 inverts pkg/media's 16-bit-PCM-to-12-bit-DAC scaling well
// enough to be audible on a host sound card; it is not a bit-exact
// inverse (the conversion is lossy by construction).
func dacToPCM16(dac uint16) int16 {
	return int16(int32(dac)<<4 - 32768)
}
