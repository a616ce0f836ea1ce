package audio

import "fmt"

// Format describes 16-bit PCM output.
type Format struct {
	// SampleRate is the sample rate in Hz (e.g. 24000, 48000).
	SampleRate int

	// Stereo selects two channels; mono otherwise.
	Stereo bool
}

// Channels returns the channel count.
func (f Format) Channels() int {
	if f.Stereo {
		return 2
	}
	return 1
}

// FrameBytes returns the size of one sample frame across all channels.
func (f Format) FrameBytes() int {
	return 2 * f.Channels()
}

func (f Format) validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("audio: invalid sample rate %d", f.SampleRate)
	}
	return nil
}
