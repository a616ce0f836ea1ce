package inference

import (
	"errors"
	"testing"

	"github.com/haivivi/koe/pkg/kana"
	"github.com/haivivi/koe/pkg/onnx"
	"github.com/haivivi/koe/pkg/voicemodel"
)

type fakeBackend struct {
	gpu     bool
	gpuErr  error
	devices []Device
}

func (b *fakeBackend) Name() string      { return "fake" }
func (b *fakeBackend) SupportsGPU() bool { return b.gpu }
func (b *fakeBackend) Open(d Device, _ EngineOptions) (Engine, error) {
	b.devices = append(b.devices, d)
	if d == GPU && b.gpuErr != nil {
		return nil, b.gpuErr
	}
	return &fakeEngine{device: d}, nil
}

type fakeEngine struct{ device Device }

func (e *fakeEngine) Device() Device                                { return e.device }
func (e *fakeEngine) Load(*voicemodel.VoiceModel) (Session, error) { return nil, nil }
func (e *fakeEngine) Close() error                                  { return nil }

func TestOpenDeviceSelection(t *testing.T) {
	tests := []struct {
		name    string
		backend *fakeBackend
		mode    AccelerationMode
		want    Device
		wantErr error
	}{
		{"auto with gpu", &fakeBackend{gpu: true}, Auto, GPU, nil},
		{"auto without gpu", &fakeBackend{}, Auto, CPU, nil},
		{"auto gpu fails", &fakeBackend{gpu: true, gpuErr: errors.New("no driver")}, Auto, CPU, nil},
		{"cpu", &fakeBackend{gpu: true}, ForceCPU, CPU, nil},
		{"gpu", &fakeBackend{gpu: true}, ForceGPU, GPU, nil},
		{"gpu unsupported", &fakeBackend{}, ForceGPU, 0, ErrDeviceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Open(tt.backend, tt.mode, EngineOptions{})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if e.Device() != tt.want {
				t.Fatalf("Device = %v, want %v", e.Device(), tt.want)
			}
		})
	}
}

func TestParseAccelerationMode(t *testing.T) {
	for in, want := range map[string]AccelerationMode{"": Auto, "auto": Auto, "cpu": ForceCPU, "gpu": ForceGPU} {
		got, err := ParseAccelerationMode(in)
		if err != nil || got != want {
			t.Errorf("ParseAccelerationMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseAccelerationMode("tpu"); err == nil {
		t.Error("expected error for tpu")
	}
}

func TestRegistry(t *testing.T) {
	for _, name := range []string{"reference", "onnx"} {
		if _, ok := Lookup(name); !ok {
			t.Errorf("backend %q not registered", name)
		}
	}
	if !onnx.Available() {
		if DefaultBackend().Name() != "reference" {
			t.Errorf("DefaultBackend = %s, want reference", DefaultBackend().Name())
		}
		if _, err := (ONNX{}).Open(CPU, EngineOptions{}); !errors.Is(err, ErrDeviceUnavailable) {
			t.Errorf("onnx Open err = %v, want ErrDeviceUnavailable", err)
		}
	}
}

func newReferenceSession(t *testing.T) Session {
	t.Helper()
	model, err := NewReferenceModel("m1", []voicemodel.SpeakerMeta{{
		Name:   "test",
		Styles: []voicemodel.StyleMeta{{ID: 0, Name: "normal"}},
	}})
	if err != nil {
		t.Fatal(err)
	}
	e, err := Reference{}.Open(CPU, EngineOptions{})
	if err != nil {
		t.Fatal(err)
	}
	s, err := e.Load(model)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestReferenceRejectsGPU(t *testing.T) {
	if _, err := (Reference{}).Open(GPU, EngineOptions{}); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("err = %v, want ErrDeviceUnavailable", err)
	}
}

func TestReferenceLoadNeedsWeights(t *testing.T) {
	model, _ := voicemodel.New("m", []voicemodel.SpeakerMeta{{Name: "x", Styles: []voicemodel.StyleMeta{{ID: 1}}}}, nil)
	e, _ := Reference{}.Open(CPU, EngineOptions{})
	if _, err := e.Load(model); !errors.Is(err, ErrModel) {
		t.Fatalf("err = %v, want ErrModel", err)
	}
}

func TestReferencePredictDuration(t *testing.T) {
	s := newReferenceSession(t)
	ids := []int64{int64(kana.PhonemeID("pau")), int64(kana.PhonemeID("k")), int64(kana.PhonemeID("o"))}
	got, err := s.PredictDuration(ids, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, v := range got {
		if v <= 0 {
			t.Errorf("length[%d] = %f, want > 0", i, v)
		}
	}
	if _, err := s.PredictDuration([]int64{99}, 0); !errors.Is(err, ErrInput) {
		t.Errorf("bad phoneme err = %v", err)
	}
}

func TestReferencePredictIntonation(t *testing.T) {
	s := newReferenceSession(t)
	a := int64(kana.PhonemeID("a"))
	unvoiced := int64(kana.PhonemeID("U"))
	pau := int64(kana.PhonemeID("pau"))
	// pau, [a a a] with accent on the first mora, unvoiced mora, pau
	in := IntonationInput{
		Vowels:            []int64{pau, a, a, a, unvoiced, pau},
		Consonants:        []int64{-1, -1, -1, -1, -1, -1},
		StartAccent:       []int64{0, 1, 0, 0, 0, 0},
		EndAccent:         []int64{0, 1, 0, 0, 0, 0},
		StartAccentPhrase: []int64{0, 1, 0, 0, 0, 0},
		EndAccentPhrase:   []int64{0, 0, 0, 0, 1, 0},
	}
	f0, err := s.PredictIntonation(in, 0)
	if err != nil {
		t.Fatal(err)
	}
	if f0[0] != 0 || f0[4] != 0 || f0[5] != 0 {
		t.Errorf("unvoiced moras must have zero pitch: %v", f0)
	}
	if !(f0[1] > f0[2]) {
		t.Errorf("accented mora should be higher: %v", f0)
	}

	in.Consonants = in.Consonants[:2]
	if _, err := s.PredictIntonation(in, 0); !errors.Is(err, ErrInput) {
		t.Errorf("mismatched lengths err = %v", err)
	}
}

func TestReferenceDecode(t *testing.T) {
	s := newReferenceSession(t)
	width := len(kana.Phonemes)
	frame := func(p string) []float32 {
		row := make([]float32, width)
		row[kana.PhonemeID(p)] = 1
		return row
	}
	f0 := []float32{0, 5.5, 5.5, 0}
	phonemes := [][]float32{frame("pau"), frame("a"), frame("a"), frame("pau")}
	wave, err := s.Decode(f0, phonemes, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(wave) != 4*SamplesPerFrame {
		t.Fatalf("len = %d, want %d", len(wave), 4*SamplesPerFrame)
	}
	for i := 0; i < SamplesPerFrame; i++ {
		if wave[i] != 0 {
			t.Fatalf("pause frame sample %d = %f, want 0", i, wave[i])
		}
	}
	var energy float32
	for _, v := range wave[SamplesPerFrame : 3*SamplesPerFrame] {
		energy += v * v
	}
	if energy == 0 {
		t.Error("voiced frames are silent")
	}

	again, _ := s.Decode(f0, phonemes, 0)
	for i := range wave {
		if wave[i] != again[i] {
			t.Fatal("decode is not deterministic")
		}
	}
	if _, err := s.Decode(f0[:1], phonemes, 0); !errors.Is(err, ErrInput) {
		t.Errorf("mismatched frames err = %v", err)
	}
}
