package hostsim

import (
	"fmt"
	"os"

	"github.com/keystonefw/badapple/pkg/media"

	wav "github.com/youpy/go-wav"
)

// DumpWAV renders every audio sample in med (at its current volume
// setting) to a standard 16-bit PCM stereo WAV file at path, the same
// way cmd/transform.go's writeWAVFile wraps wav.NewWriter. This is a
// debug export of the stream a DAC would actually receive, not a tool
// that produces the media container itself.
func DumpWAV(path string, med *media.Media) error {
	h := med.Header()
	totalSamples := h.AudioSize / 4
	if totalSamples == 0 {
		return fmt.Errorf("hostsim: media file has no audio samples")
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("hostsim: create %s: %w", path, err)
	}
	defer f.Close()

	writer := wav.NewWriter(f, totalSamples, 2, h.SampleRate, 16)

	const chunk = 4096
	left := make([]uint16, chunk)
	right := make([]uint16, chunk)
	buf := make([]byte, chunk*4)

	remaining := totalSamples
	for remaining > 0 {
		n := int(remaining)
		if n > chunk {
			n = chunk
		}
		if err := med.ReadAudio(left[:n], right[:n], n); err != nil {
			return fmt.Errorf("hostsim: read audio: %w", err)
		}
		for i := 0; i < n; i++ {
			l := dacToPCM16(left[i])
			r := dacToPCM16(right[i])
			buf[i*4] = byte(l)
			buf[i*4+1] = byte(l >> 8)
			buf[i*4+2] = byte(r)
			buf[i*4+3] = byte(r >> 8)
		}
		if _, err := writer.Write(buf[:n*4]); err != nil {
			return fmt.Errorf("hostsim: write wav data: %w", err)
		}
		remaining -= uint32(n)
	}

	return nil
}
