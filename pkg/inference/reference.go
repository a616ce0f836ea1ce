package inference

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/koe/pkg/kana"
	"github.com/haivivi/koe/pkg/voicemodel"
)

// WeightReference is the weight blob read by the reference backend.
const WeightReference = "reference"

// ReferenceVoice parameterizes one speaker of the reference backend.
type ReferenceVoice struct {
	// BasePitch is the log-F0 of low moras.
	BasePitch float32 `msgpack:"base_pitch"`
	// PitchRange is added to BasePitch on high moras.
	PitchRange float32 `msgpack:"pitch_range"`
	// Tempo scales phoneme lengths; 1 is neutral.
	Tempo float32 `msgpack:"tempo"`
}

// ReferenceWeights is the msgpack document stored under WeightReference,
// keyed by inner speaker id.
type ReferenceWeights struct {
	Voices map[string]ReferenceVoice `msgpack:"voices"`
}

// DefaultReferenceVoice returns the voice used for speakers missing from the
// weights.
func DefaultReferenceVoice(speaker uint32) ReferenceVoice {
	return ReferenceVoice{
		BasePitch:  5.4 + 0.05*float32(speaker%8),
		PitchRange: 0.35,
		Tempo:      1,
	}
}

// EncodeReferenceWeights serializes w for use as a model weight.
func EncodeReferenceWeights(w ReferenceWeights) ([]byte, error) {
	return msgpack.Marshal(&w)
}

// NewReferenceModel builds a voice model the reference backend can load.
// Every style maps to its own inner id.
func NewReferenceModel(id voicemodel.ID, metas []voicemodel.SpeakerMeta) (*voicemodel.VoiceModel, error) {
	w := ReferenceWeights{Voices: make(map[string]ReferenceVoice)}
	for _, sp := range metas {
		for _, st := range sp.Styles {
			w.Voices[strconv.FormatUint(uint64(st.ID), 10)] = DefaultReferenceVoice(uint32(st.ID))
		}
	}
	blob, err := EncodeReferenceWeights(w)
	if err != nil {
		return nil, err
	}
	return voicemodel.New(id, metas, map[string][]byte{WeightReference: blob})
}

// Reference is a deterministic pure-Go backend. Durations come from a
// per-phoneme table, pitch from the accent pattern, and the decoder renders
// a band-limited pulse train; it produces intelligible prosody, not speech.
// It runs on the CPU only.
type Reference struct{}

func (Reference) Name() string      { return "reference" }
func (Reference) SupportsGPU() bool { return false }

func (Reference) Open(device Device, opts EngineOptions) (Engine, error) {
	if device != CPU {
		return nil, fmt.Errorf("%w: reference backend runs on cpu only", ErrDeviceUnavailable)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &referenceEngine{logger: logger}, nil
}

type referenceEngine struct {
	logger *slog.Logger
}

func (e *referenceEngine) Device() Device { return CPU }

func (e *referenceEngine) Load(model *voicemodel.VoiceModel) (Session, error) {
	blob, ok := model.Weight(WeightReference)
	if !ok {
		return nil, fmt.Errorf("%w: model %s has no %q weight", ErrModel, model.ID(), WeightReference)
	}
	var w ReferenceWeights
	if err := msgpack.Unmarshal(blob, &w); err != nil {
		return nil, fmt.Errorf("%w: model %s: %v", ErrModel, model.ID(), err)
	}
	e.logger.Debug("reference session ready", "model", model.ID(), "voices", len(w.Voices))
	return &referenceSession{weights: w}, nil
}

func (e *referenceEngine) Close() error { return nil }

type referenceSession struct {
	weights ReferenceWeights
}

func (s *referenceSession) voice(speaker uint32) ReferenceVoice {
	if v, ok := s.weights.Voices[strconv.FormatUint(uint64(speaker), 10)]; ok {
		if v.Tempo <= 0 {
			v.Tempo = 1
		}
		return v
	}
	return DefaultReferenceVoice(speaker)
}

func (s *referenceSession) PredictDuration(phonemes []int64, speaker uint32) ([]float32, error) {
	v := s.voice(speaker)
	out := make([]float32, len(phonemes))
	for i, id := range phonemes {
		if id < 0 || int(id) >= len(kana.Phonemes) {
			return nil, fmt.Errorf("%w: phoneme id %d", ErrInput, id)
		}
		out[i] = phonemeLength(kana.Phonemes[id]) / v.Tempo
	}
	return out, nil
}

func phonemeLength(p string) float32 {
	switch p {
	case kana.Pause:
		return 0.3
	case "a", "i", "u", "e", "o":
		return 0.11
	case "A", "I", "U", "E", "O":
		return 0.07
	case "N":
		return 0.09
	case "cl":
		return 0.08
	case "s", "sh", "f", "h", "hy", "ts", "ch":
		return 0.07
	case "p", "t", "k", "b", "d", "g", "py", "ky", "gy", "by", "ty", "dy", "kw", "gw":
		return 0.045
	}
	return 0.055
}

func (s *referenceSession) PredictIntonation(in IntonationInput, speaker uint32) ([]float32, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	v := s.voice(speaker)
	out := make([]float32, in.Len())
	high := false
	for i := range in.Vowels {
		if in.StartAccentPhrase[i] == 1 {
			high = false
		}
		if in.StartAccent[i] == 1 {
			high = true
		}
		id := in.Vowels[i]
		if id < 0 || int(id) >= len(kana.Phonemes) {
			return nil, fmt.Errorf("%w: vowel id %d", ErrInput, id)
		}
		if !kana.IsUnvoicedVowel(kana.Phonemes[id]) {
			p := v.BasePitch
			if high {
				p += v.PitchRange
			}
			// Gentle declination over the utterance.
			out[i] = p - 0.004*float32(i)
		}
		if in.EndAccent[i] == 1 {
			high = false
		}
	}
	return out, nil
}

func (s *referenceSession) Decode(f0 []float32, phonemes [][]float32, speaker uint32) ([]float32, error) {
	if len(f0) != len(phonemes) {
		return nil, fmt.Errorf("%w: %d f0 frames but %d phoneme frames", ErrInput, len(f0), len(phonemes))
	}
	out := make([]float32, len(f0)*SamplesPerFrame)
	var (
		phase float64
		noise uint32 = 0x9e3779b9 ^ speaker
	)
	for f, lf0 := range f0 {
		p := argmax(phonemes[f])
		if p < 0 {
			return nil, fmt.Errorf("%w: empty phoneme frame %d", ErrInput, f)
		}
		phoneme := kana.Phonemes[p]
		for n := 0; n < SamplesPerFrame; n++ {
			var sample float64
			switch {
			case phoneme == kana.Pause || phoneme == "cl":
			case lf0 > 0:
				hz := math.Exp(float64(lf0))
				phase += 2 * math.Pi * hz / SampleRate
				if phase > 2*math.Pi {
					phase -= 2 * math.Pi
				}
				// First three harmonics give a buzzy voiced tone.
				sample = 0.3*math.Sin(phase) + 0.12*math.Sin(2*phase) + 0.05*math.Sin(3*phase)
			default:
				noise = noise*1664525 + 1013904223
				sample = 0.04 * (float64(noise>>8)/float64(1<<24) - 0.5)
			}
			out[f*SamplesPerFrame+n] = float32(sample)
		}
	}
	return out, nil
}

func (s *referenceSession) Close() error { return nil }

func argmax(row []float32) int {
	best, idx := float32(0), -1
	for i, v := range row {
		if v > best {
			best, idx = v, i
		}
	}
	return idx
}

func init() {
	Register(Reference{})
}
