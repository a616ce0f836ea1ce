package synthesis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/haivivi/koe/pkg/analyzer"
	"github.com/haivivi/koe/pkg/audio"
	"github.com/haivivi/koe/pkg/inference"
	"github.com/haivivi/koe/pkg/kana"
	"github.com/haivivi/koe/pkg/lexicon"
	"github.com/haivivi/koe/pkg/userdict"
	"github.com/haivivi/koe/pkg/voicemodel"
)

func newAnalyzer(t *testing.T) *analyzer.Context {
	t.Helper()
	store := lexicon.NewMemory(
		lexicon.Entry{Surface: "今日", Pronunciation: "キョー", AccentType: 1},
		lexicon.Entry{Surface: "天気", Pronunciation: "テンキ", AccentType: 1},
	)
	a, err := analyzer.NewFromStore(context.Background(), store)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func newSynthesizer(t *testing.T, a *analyzer.Context) *Synthesizer {
	t.Helper()
	s, err := New(context.Background(), a, Options{
		AccelerationMode: inference.Auto,
		CPUNumThreads:    1,
		Backend:          inference.Reference{},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newModel(t *testing.T, id string, styles ...voicemodel.StyleID) *voicemodel.VoiceModel {
	t.Helper()
	meta := voicemodel.SpeakerMeta{Name: "speaker-" + id, SpeakerUUID: "uuid-" + id, Version: "0.1.0"}
	for _, st := range styles {
		meta.Styles = append(meta.Styles, voicemodel.StyleMeta{ID: st, Name: fmt.Sprintf("style-%d", st)})
	}
	m, err := inference.NewReferenceModel(voicemodel.ID(id), []voicemodel.SpeakerMeta{meta})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func load(t *testing.T, s *Synthesizer, m *voicemodel.VoiceModel) {
	t.Helper()
	if err := s.LoadVoiceModel(context.Background(), m); err != nil {
		t.Fatalf("LoadVoiceModel(%s): %v", m.ID(), err)
	}
}

func TestLoadUnload(t *testing.T) {
	s := newSynthesizer(t, newAnalyzer(t))
	m := newModel(t, "m1", 0, 1)
	load(t, s, m)
	if !s.IsLoadedVoiceModel("m1") {
		t.Fatal("IsLoadedVoiceModel = false after load")
	}
	if err := s.UnloadVoiceModel(context.Background(), "m1"); err != nil {
		t.Fatalf("UnloadVoiceModel: %v", err)
	}
	if s.IsLoadedVoiceModel("m1") {
		t.Fatal("IsLoadedVoiceModel = true after unload")
	}
	// Reload after unload is allowed.
	load(t, s, m)
}

func TestLoadDuplicateModel(t *testing.T) {
	s := newSynthesizer(t, newAnalyzer(t))
	load(t, s, newModel(t, "m1", 0))
	before := s.Metas()

	err := s.LoadVoiceModel(context.Background(), newModel(t, "m1", 5))
	if !errors.Is(err, ErrDuplicateModel) {
		t.Fatalf("err = %v, want ErrDuplicateModel", err)
	}
	after := s.Metas()
	if len(after) != 1 || after[0].Name != before[0].Name || after[0].Styles[0].ID != 0 {
		t.Fatalf("Metas changed: %+v -> %+v", before, after)
	}
	if _, err := s.AudioQueryFromKana(context.Background(), "ア", 5); !errors.Is(err, ErrStyleNotFound) {
		t.Fatalf("style of rejected model is usable: %v", err)
	}
}

func TestLoadDuplicateStyle(t *testing.T) {
	s := newSynthesizer(t, newAnalyzer(t))
	load(t, s, newModel(t, "m1", 0, 1))
	err := s.LoadVoiceModel(context.Background(), newModel(t, "m2", 1, 2))
	if !errors.Is(err, ErrDuplicateStyle) {
		t.Fatalf("err = %v, want ErrDuplicateStyle", err)
	}
	if s.IsLoadedVoiceModel("m2") {
		t.Fatal("m2 loaded despite error")
	}
	if _, err := s.AudioQueryFromKana(context.Background(), "ア", 2); !errors.Is(err, ErrStyleNotFound) {
		t.Fatalf("style 2 usable after failed load: %v", err)
	}
}

func TestUnloadUnknown(t *testing.T) {
	s := newSynthesizer(t, newAnalyzer(t))
	load(t, s, newModel(t, "m1", 0))
	err := s.UnloadVoiceModel(context.Background(), "nope")
	if !errors.Is(err, ErrModelNotFound) {
		t.Fatalf("err = %v, want ErrModelNotFound", err)
	}
	if got := len(s.Metas()); got != 1 {
		t.Fatalf("len(Metas) = %d, want 1", got)
	}
}

func TestConcurrentLoad(t *testing.T) {
	s := newSynthesizer(t, newAnalyzer(t))
	const n = 16
	models := make([]*voicemodel.VoiceModel, n)
	for i := range models {
		models[i] = newModel(t, fmt.Sprintf("m%d", i), voicemodel.StyleID(i))
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, m := range models {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.LoadVoiceModel(context.Background(), m)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("LoadVoiceModel: %v", err)
		}
	}
	if got := len(s.Metas()); got != n {
		t.Fatalf("len(Metas) = %d, want %d", got, n)
	}
}

func TestMetasLoadOrder(t *testing.T) {
	s := newSynthesizer(t, newAnalyzer(t))
	load(t, s, newModel(t, "b", 3))
	load(t, s, newModel(t, "a", 1))
	metas := s.Metas()
	if len(metas) != 2 || metas[0].Name != "speaker-b" || metas[1].Name != "speaker-a" {
		t.Fatalf("Metas = %+v", metas)
	}
	metas[0].Name = "mutated"
	if s.Metas()[0].Name != "speaker-b" {
		t.Fatal("Metas returned shared state")
	}
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	s := newSynthesizer(t, newAnalyzer(t))
	if s.IsGPUMode() {
		t.Fatal("reference backend reported gpu mode")
	}
	load(t, s, newModel(t, "m1", 0))

	q, err := s.AudioQueryFromKana(ctx, "コンニチワ", 0)
	if err != nil {
		t.Fatalf("AudioQueryFromKana: %v", err)
	}
	if q.Kana != "コンニチワ" {
		t.Errorf("Kana = %q", q.Kana)
	}
	wav, err := s.Synthesis(ctx, q, 0, nil)
	if err != nil {
		t.Fatalf("Synthesis: %v", err)
	}
	if len(wav) <= audio.WAVHeaderSize {
		t.Fatalf("len(wav) = %d", len(wav))
	}

	if err := s.UnloadVoiceModel(ctx, "m1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Synthesis(ctx, q, 0, nil); !errors.Is(err, ErrStyleNotFound) {
		t.Fatalf("Synthesis after unload: err = %v, want ErrStyleNotFound", err)
	}
}

func TestUnknownStyle(t *testing.T) {
	ctx := context.Background()
	s := newSynthesizer(t, newAnalyzer(t))
	load(t, s, newModel(t, "m1", 0))

	if _, err := s.AudioQueryFromKana(ctx, "コンニチワ", 7); !errors.Is(err, ErrStyleNotFound) {
		t.Errorf("AudioQueryFromKana: err = %v", err)
	}
	if _, err := s.AudioQuery(ctx, "天気", 7); !errors.Is(err, ErrStyleNotFound) {
		t.Errorf("AudioQuery: err = %v", err)
	}
	if _, err := s.TTS(ctx, "天気", 7, nil); !errors.Is(err, ErrStyleNotFound) {
		t.Errorf("TTS: err = %v", err)
	}
	if _, err := s.ReplaceMoraPitch(ctx, nil, 7); !errors.Is(err, ErrStyleNotFound) {
		t.Errorf("ReplaceMoraPitch: err = %v", err)
	}
}

func TestParseError(t *testing.T) {
	s := newSynthesizer(t, newAnalyzer(t))
	load(t, s, newModel(t, "m1", 0))
	_, err := s.AudioQueryFromKana(context.Background(), "コ''ン", 0)
	var pe *kana.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want *kana.ParseError", err)
	}
}

func TestTTSRunsAnalysis(t *testing.T) {
	ctx := context.Background()
	s := newSynthesizer(t, newAnalyzer(t))
	load(t, s, newModel(t, "m1", 0))

	const text = "はろーわーるど！"
	if _, err := s.TTSFromKana(ctx, text, 0, nil); !errors.Is(err, kana.ErrParse) {
		t.Fatalf("TTSFromKana(%q): err = %v, want kana.ErrParse", text, err)
	}
	wav, err := s.TTS(ctx, text, 0, nil)
	if err != nil {
		t.Fatalf("TTS(%q): %v", text, err)
	}
	kanaWav, err := s.TTSFromKana(ctx, "ハローワールド'", 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(wav) != len(kanaWav) {
		t.Fatalf("TTS produced %d bytes, analyzed kana produced %d", len(wav), len(kanaWav))
	}
}

func TestAudioQueryFromText(t *testing.T) {
	s := newSynthesizer(t, newAnalyzer(t))
	load(t, s, newModel(t, "m1", 0))
	q, err := s.AudioQuery(context.Background(), "今日は天気", 0)
	if err != nil {
		t.Fatal(err)
	}
	if q.Kana != "キョ'ー/ハ'/テ'ンキ" {
		t.Errorf("Kana = %q", q.Kana)
	}
	if len(q.AccentPhrases) != 3 {
		t.Fatalf("len(AccentPhrases) = %d, want 3", len(q.AccentPhrases))
	}
	if _, err := s.AudioQuery(context.Background(), "猫", 0); !errors.Is(err, analyzer.ErrAnalyze) {
		t.Fatalf("unknown word: err = %v, want analyzer.ErrAnalyze", err)
	}
}

func TestSharedAnalyzerUserDict(t *testing.T) {
	ctx := context.Background()
	a := newAnalyzer(t)
	s1 := newSynthesizer(t, a)
	s2 := newSynthesizer(t, a)
	load(t, s1, newModel(t, "m1", 0))
	load(t, s2, newModel(t, "m1", 0))

	for _, s := range []*Synthesizer{s1, s2} {
		if _, err := s.AudioQuery(ctx, "猫", 0); err == nil {
			t.Fatal("AudioQuery succeeded before the user dictionary was applied")
		}
	}

	dict := userdict.New()
	w, err := userdict.NewWord("猫", "ネコ", 1, userdict.CommonNoun, userdict.DefaultPriority)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := dict.AddWord(w); err != nil {
		t.Fatal(err)
	}
	if err := a.UseUserDict(dict); err != nil {
		t.Fatal(err)
	}

	for i, s := range []*Synthesizer{s1, s2} {
		q, err := s.AudioQuery(ctx, "猫", 0)
		if err != nil {
			t.Fatalf("synthesizer %d: %v", i, err)
		}
		if q.Kana != "ネ'コ" {
			t.Errorf("synthesizer %d: Kana = %q, want ネ'コ", i, q.Kana)
		}
	}
}

func TestClose(t *testing.T) {
	s := newSynthesizer(t, newAnalyzer(t))
	load(t, s, newModel(t, "m1", 0))
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.LoadVoiceModel(context.Background(), newModel(t, "m2", 1)); !errors.Is(err, ErrClosed) {
		t.Fatalf("LoadVoiceModel after Close: err = %v", err)
	}
	if s.IsLoadedVoiceModel("m1") {
		t.Fatal("model still loaded after Close")
	}
	if err := s.Close(); !errors.Is(err, ErrClosed) {
		t.Fatalf("second Close: err = %v", err)
	}
}

func TestLockAbandon(t *testing.T) {
	s := newSynthesizer(t, newAnalyzer(t))
	load(t, s, newModel(t, "m1", 0))

	// Hold the lock as a long synthesis would.
	if err := s.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.AudioQueryFromKana(ctx, "ア", 0); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", err)
	}
	s.sem.Release(1)

	if _, err := s.AudioQueryFromKana(context.Background(), "ア", 0); err != nil {
		t.Fatalf("after release: %v", err)
	}
}

type gpuBackend struct {
	inference.Reference
	fail bool
}

func (gpuBackend) Name() string      { return "fake-gpu" }
func (gpuBackend) SupportsGPU() bool { return true }

func (b gpuBackend) Open(device inference.Device, opts inference.EngineOptions) (inference.Engine, error) {
	if device == inference.GPU {
		if b.fail {
			return nil, errors.New("no cuda")
		}
		e, err := b.Reference.Open(inference.CPU, opts)
		if err != nil {
			return nil, err
		}
		return gpuEngine{e}, nil
	}
	return b.Reference.Open(device, opts)
}

type gpuEngine struct{ inference.Engine }

func (gpuEngine) Device() inference.Device { return inference.GPU }

func TestAccelerationMode(t *testing.T) {
	a := newAnalyzer(t)
	tests := []struct {
		name    string
		backend inference.Backend
		mode    inference.AccelerationMode
		gpu     bool
		wantErr bool
	}{
		{"auto uses gpu", gpuBackend{}, inference.Auto, true, false},
		{"auto falls back", gpuBackend{fail: true}, inference.Auto, false, false},
		{"forced cpu", gpuBackend{}, inference.ForceCPU, false, false},
		{"forced gpu fails", gpuBackend{fail: true}, inference.ForceGPU, false, true},
		{"forced gpu without support", inference.Reference{}, inference.ForceGPU, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(context.Background(), a, Options{Backend: tt.backend, AccelerationMode: tt.mode})
			if tt.wantErr {
				if !errors.Is(err, ErrInitialization) {
					t.Fatalf("err = %v, want ErrInitialization", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			defer s.Close()
			if got := s.IsGPUMode(); got != tt.gpu {
				t.Fatalf("IsGPUMode = %v, want %v", got, tt.gpu)
			}
		})
	}
}

func TestNewFromDictDirMissing(t *testing.T) {
	_, err := NewFromDictDir(context.Background(), t.TempDir()+"/missing", Options{Backend: inference.Reference{}})
	if !errors.Is(err, analyzer.ErrDictionaryLoad) {
		t.Fatalf("err = %v, want analyzer.ErrDictionaryLoad", err)
	}
}
