package inference

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/haivivi/koe/pkg/kana"
	"github.com/haivivi/koe/pkg/onnx"
	"github.com/haivivi/koe/pkg/voicemodel"
)

// decodePadding is the number of silent frames added on both sides of the
// decoder input and trimmed from its output.
const decodePadding = 38

// ONNX runs VOICEVOX-compatible models through ONNX Runtime. It needs the
// onnxruntime build tag; otherwise Open reports ErrDeviceUnavailable.
type ONNX struct{}

func (ONNX) Name() string      { return "onnx" }
func (ONNX) SupportsGPU() bool { return onnx.Available() && onnx.CUDAAvailable() }

func (ONNX) Open(device Device, opts EngineOptions) (Engine, error) {
	if !onnx.Available() {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, onnx.ErrUnavailable)
	}
	if device == GPU && !onnx.CUDAAvailable() {
		return nil, fmt.Errorf("%w: cuda execution provider not available", ErrDeviceUnavailable)
	}
	env, err := onnx.NewEnv("koe")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &onnxEngine{
		env:    env,
		device: device,
		sopts: &onnx.SessionOptions{
			IntraOpThreads: opts.CPUNumThreads,
			CUDA:           device == GPU,
		},
		logger: logger,
	}, nil
}

type onnxEngine struct {
	env    *onnx.Env
	device Device
	sopts  *onnx.SessionOptions
	logger *slog.Logger
}

func (e *onnxEngine) Device() Device { return e.device }

func (e *onnxEngine) Load(model *voicemodel.VoiceModel) (Session, error) {
	s := &onnxSession{}
	for _, part := range []struct {
		name string
		dst  **onnx.Session
	}{
		{voicemodel.WeightPredictDuration, &s.duration},
		{voicemodel.WeightPredictIntonation, &s.intonation},
		{voicemodel.WeightDecode, &s.decode},
	} {
		w, ok := model.Weight(part.name)
		if !ok {
			s.Close()
			return nil, fmt.Errorf("%w: model %s has no %q weight", ErrModel, model.ID(), part.name)
		}
		sess, err := e.env.NewSession(w, e.sopts)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("%w: model %s: %s: %w", ErrModel, model.ID(), part.name, err)
		}
		*part.dst = sess
	}
	e.logger.Debug("onnx sessions ready", "model", model.ID(), "device", e.device)
	return s, nil
}

func (e *onnxEngine) Close() error {
	return e.env.Close()
}

type onnxSession struct {
	duration   *onnx.Session
	intonation *onnx.Session
	decode     *onnx.Session
}

func speakerTensor(speaker uint32) (*onnx.Tensor, error) {
	return onnx.NewInt64Tensor([]int64{1}, []int64{int64(speaker)})
}

// run executes sess and returns the first output as float32.
func run(sess *onnx.Session, names []string, inputs []*onnx.Tensor, output string) ([]float32, error) {
	defer func() {
		for _, t := range inputs {
			t.Close()
		}
	}()
	outs, err := sess.Run(names, inputs, []string{output})
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, t := range outs {
			t.Close()
		}
	}()
	return outs[0].FloatData()
}

func (s *onnxSession) PredictDuration(phonemes []int64, speaker uint32) ([]float32, error) {
	if len(phonemes) == 0 {
		return nil, fmt.Errorf("%w: no phonemes", ErrInput)
	}
	in, err := onnx.NewInt64Tensor([]int64{int64(len(phonemes))}, phonemes)
	if err != nil {
		return nil, err
	}
	sp, err := speakerTensor(speaker)
	if err != nil {
		in.Close()
		return nil, err
	}
	out, err := run(s.duration, []string{"phoneme_list", "speaker_id"}, []*onnx.Tensor{in, sp}, "phoneme_length")
	if err != nil {
		return nil, err
	}
	if len(out) != len(phonemes) {
		return nil, fmt.Errorf("inference: duration model returned %d values for %d phonemes", len(out), len(phonemes))
	}
	return out, nil
}

func (s *onnxSession) PredictIntonation(in IntonationInput, speaker uint32) ([]float32, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	n := int64(in.Len())
	names := []string{
		"length",
		"vowel_phoneme_list",
		"consonant_phoneme_list",
		"start_accent_list",
		"end_accent_list",
		"start_accent_phrase_list",
		"end_accent_phrase_list",
		"speaker_id",
	}
	var tensors []*onnx.Tensor
	fail := func(err error) ([]float32, error) {
		for _, t := range tensors {
			t.Close()
		}
		return nil, err
	}
	length, err := onnx.NewInt64Tensor(nil, []int64{n})
	if err != nil {
		return fail(err)
	}
	tensors = append(tensors, length)
	for _, feat := range [][]int64{in.Vowels, in.Consonants, in.StartAccent, in.EndAccent, in.StartAccentPhrase, in.EndAccentPhrase} {
		t, err := onnx.NewInt64Tensor([]int64{n}, feat)
		if err != nil {
			return fail(err)
		}
		tensors = append(tensors, t)
	}
	sp, err := speakerTensor(speaker)
	if err != nil {
		return fail(err)
	}
	tensors = append(tensors, sp)
	return run(s.intonation, names, tensors, "f0_list")
}

func (s *onnxSession) Decode(f0 []float32, phonemes [][]float32, speaker uint32) ([]float32, error) {
	if len(f0) != len(phonemes) || len(f0) == 0 {
		return nil, fmt.Errorf("%w: %d f0 frames but %d phoneme frames", ErrInput, len(f0), len(phonemes))
	}
	width := len(kana.Phonemes)
	frames := len(f0) + 2*decodePadding
	f0Flat := make([]float32, frames)
	copy(f0Flat[decodePadding:], f0)
	phFlat := make([]float32, frames*width)
	for i := 0; i < frames; i++ {
		row := phFlat[i*width : (i+1)*width]
		j := i - decodePadding
		if j < 0 || j >= len(phonemes) {
			row[kana.PhonemeID(kana.Pause)] = 1
			continue
		}
		if len(phonemes[j]) != width {
			return nil, fmt.Errorf("%w: phoneme frame %d has width %d", ErrInput, j, len(phonemes[j]))
		}
		copy(row, phonemes[j])
	}

	ft, err := onnx.NewTensor([]int64{int64(frames), 1}, f0Flat)
	if err != nil {
		return nil, err
	}
	pt, err := onnx.NewTensor([]int64{int64(frames), int64(width)}, phFlat)
	if err != nil {
		ft.Close()
		return nil, err
	}
	sp, err := speakerTensor(speaker)
	if err != nil {
		ft.Close()
		pt.Close()
		return nil, err
	}
	wave, err := run(s.decode, []string{"f0", "phoneme", "speaker_id"}, []*onnx.Tensor{ft, pt, sp}, "wave")
	if err != nil {
		return nil, err
	}
	start, end := decodePadding*SamplesPerFrame, (frames-decodePadding)*SamplesPerFrame
	if len(wave) < end {
		return nil, fmt.Errorf("inference: decoder returned %d samples, want %d", len(wave), frames*SamplesPerFrame)
	}
	return wave[start:end], nil
}

func (s *onnxSession) Close() error {
	var errs []error
	for _, sess := range []*onnx.Session{s.duration, s.intonation, s.decode} {
		if sess != nil {
			errs = append(errs, sess.Close())
		}
	}
	return errors.Join(errs...)
}

func init() {
	Register(ONNX{})
}

// DefaultBackend returns the onnx backend when ONNX Runtime is linked in and
// the reference backend otherwise.
func DefaultBackend() Backend {
	if onnx.Available() {
		return ONNX{}
	}
	return Reference{}
}
