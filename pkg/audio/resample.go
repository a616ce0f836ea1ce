package audio

import (
	"fmt"
	"math"

	resampling "github.com/tphakala/go-audio-resampling"
)

// flushPadding is the number of zero frames appended to push the filter
// delay out of the resampler.
const flushPadding = 2048

// Resample converts mono samples from srcRate to dstRate. The output length
// is len(samples)*dstRate/srcRate rounded to the nearest sample.
func Resample(samples []float64, srcRate, dstRate int) ([]float64, error) {
	if srcRate <= 0 || dstRate <= 0 {
		return nil, fmt.Errorf("audio: invalid rates %d -> %d", srcRate, dstRate)
	}
	if srcRate == dstRate || len(samples) == 0 {
		return append([]float64(nil), samples...), nil
	}
	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(srcRate),
		OutputRate: float64(dstRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("audio: create resampler: %w", err)
	}

	want := int(math.Round(float64(len(samples)) * float64(dstRate) / float64(srcRate)))
	padded := make([]float64, len(samples)+flushPadding)
	copy(padded, samples)
	out, err := r.Process(padded)
	if err != nil {
		return nil, fmt.Errorf("audio: resample: %w", err)
	}
	if len(out) > want {
		out = out[:want]
	}
	for len(out) < want {
		out = append(out, 0)
	}
	return out, nil
}

// monoToStereo duplicates each sample into both channels.
func monoToStereo(samples []int16) []int16 {
	out := make([]int16, len(samples)*2)
	for i, s := range samples {
		out[2*i] = s
		out[2*i+1] = s
	}
	return out
}
