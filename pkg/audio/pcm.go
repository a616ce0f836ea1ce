package audio

// ToPCM16 scales float samples by gain and converts them to signed 16-bit
// samples, clipping values outside [-1, 1].
func ToPCM16(samples []float64, gain float64) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := s * gain
		switch {
		case v >= 1:
			out[i] = 32767
		case v <= -1:
			out[i] = -32768
		default:
			out[i] = int16(v * 32767)
		}
	}
	return out
}

// Render converts decoder output at srcRate to a WAV file in format f.
func Render(wave []float32, srcRate int, f Format) ([]byte, error) {
	return RenderGain(wave, srcRate, f, 1)
}

// RenderGain is Render with a volume factor applied before clipping.
func RenderGain(wave []float32, srcRate int, f Format, gain float64) ([]byte, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	samples := make([]float64, len(wave))
	for i, v := range wave {
		samples[i] = float64(v)
	}
	samples, err := Resample(samples, srcRate, f.SampleRate)
	if err != nil {
		return nil, err
	}
	pcm := ToPCM16(samples, gain)
	if f.Stereo {
		pcm = monoToStereo(pcm)
	}
	return EncodeWAV(pcm, f), nil
}
