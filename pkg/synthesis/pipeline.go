package synthesis

import (
	"context"
	"fmt"

	"github.com/haivivi/koe/pkg/audio"
	"github.com/haivivi/koe/pkg/audioquery"
	"github.com/haivivi/koe/pkg/inference"
	"github.com/haivivi/koe/pkg/kana"
	"github.com/haivivi/koe/pkg/voicemodel"
)

// SynthesisOptions configures Synthesis. A nil value means the defaults.
type SynthesisOptions struct {
	// EnableInterrogativeUpspeak raises the end of question phrases.
	EnableInterrogativeUpspeak bool
}

// TTSOptions configures TTS and TTSFromKana. A nil value means the defaults.
type TTSOptions struct {
	EnableInterrogativeUpspeak bool
}

// DefaultSynthesisOptions returns the options used for a nil
// *SynthesisOptions.
func DefaultSynthesisOptions() SynthesisOptions {
	return SynthesisOptions{EnableInterrogativeUpspeak: true}
}

func (o *TTSOptions) synthesis() SynthesisOptions {
	if o == nil {
		return DefaultSynthesisOptions()
	}
	return SynthesisOptions{EnableInterrogativeUpspeak: o.EnableInterrogativeUpspeak}
}

// AudioQueryFromKana builds a query from kana notation without running the
// analyzer. It fails with ErrStyleNotFound for an unknown style and with
// kana.ErrParse for malformed notation.
func (s *Synthesizer) AudioQueryFromKana(ctx context.Context, kanaText string, style voicemodel.StyleID) (audioquery.AudioQuery, error) {
	if err := s.lock(ctx); err != nil {
		return audioquery.AudioQuery{}, err
	}
	defer s.unlock()
	return s.queryFromKana(kanaText, style)
}

// AudioQuery analyzes text and builds a query from the result.
func (s *Synthesizer) AudioQuery(ctx context.Context, text string, style voicemodel.StyleID) (audioquery.AudioQuery, error) {
	if err := s.lock(ctx); err != nil {
		return audioquery.AudioQuery{}, err
	}
	defer s.unlock()
	return s.queryFromText(ctx, text, style)
}

// CreateAccentPhrasesFromKana parses kana notation into accent phrases with
// predicted lengths and pitches.
func (s *Synthesizer) CreateAccentPhrasesFromKana(ctx context.Context, kanaText string, style voicemodel.StyleID) ([]audioquery.AccentPhrase, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	return s.phrasesFromKana(kanaText, style)
}

// CreateAccentPhrases analyzes text into accent phrases with predicted
// lengths and pitches.
func (s *Synthesizer) CreateAccentPhrases(ctx context.Context, text string, style voicemodel.StyleID) ([]audioquery.AccentPhrase, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	if _, _, err := s.reg.style(style); err != nil {
		return nil, err
	}
	k, err := s.analyzer.Analyze(ctx, text)
	if err != nil {
		return nil, err
	}
	return s.phrasesFromKana(k, style)
}

// ReplaceMoraData returns a copy of phrases with lengths and pitches
// predicted by style.
func (s *Synthesizer) ReplaceMoraData(ctx context.Context, phrases []audioquery.AccentPhrase, style voicemodel.StyleID) ([]audioquery.AccentPhrase, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	sl, speaker, err := s.reg.style(style)
	if err != nil {
		return nil, err
	}
	return replaceMoraData(sl, speaker, phrases)
}

// ReplacePhonemeLength returns a copy of phrases with consonant and vowel
// lengths predicted by style. Pitches are kept.
func (s *Synthesizer) ReplacePhonemeLength(ctx context.Context, phrases []audioquery.AccentPhrase, style voicemodel.StyleID) ([]audioquery.AccentPhrase, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	sl, speaker, err := s.reg.style(style)
	if err != nil {
		return nil, err
	}
	return replacePhonemeLength(sl, speaker, audioquery.CloneAccentPhrases(phrases))
}

// ReplaceMoraPitch returns a copy of phrases with pitches predicted by
// style. Lengths are kept.
func (s *Synthesizer) ReplaceMoraPitch(ctx context.Context, phrases []audioquery.AccentPhrase, style voicemodel.StyleID) ([]audioquery.AccentPhrase, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	sl, speaker, err := s.reg.style(style)
	if err != nil {
		return nil, err
	}
	return replaceMoraPitch(sl, speaker, audioquery.CloneAccentPhrases(phrases))
}

// Synthesis renders query with style and returns a WAV file.
func (s *Synthesizer) Synthesis(ctx context.Context, query audioquery.AudioQuery, style voicemodel.StyleID, opts *SynthesisOptions) ([]byte, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	o := DefaultSynthesisOptions()
	if opts != nil {
		o = *opts
	}
	return s.synthesize(query, style, o)
}

// TTSFromKana is AudioQueryFromKana followed by Synthesis under one lock.
func (s *Synthesizer) TTSFromKana(ctx context.Context, kanaText string, style voicemodel.StyleID, opts *TTSOptions) ([]byte, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	q, err := s.queryFromKana(kanaText, style)
	if err != nil {
		return nil, err
	}
	return s.synthesize(q, style, opts.synthesis())
}

// TTS analyzes text, builds a query and synthesizes it under one lock.
func (s *Synthesizer) TTS(ctx context.Context, text string, style voicemodel.StyleID, opts *TTSOptions) ([]byte, error) {
	if err := s.lock(ctx); err != nil {
		return nil, err
	}
	defer s.unlock()
	q, err := s.queryFromText(ctx, text, style)
	if err != nil {
		return nil, err
	}
	return s.synthesize(q, style, opts.synthesis())
}

func (s *Synthesizer) queryFromText(ctx context.Context, text string, style voicemodel.StyleID) (audioquery.AudioQuery, error) {
	if _, _, err := s.reg.style(style); err != nil {
		return audioquery.AudioQuery{}, err
	}
	k, err := s.analyzer.Analyze(ctx, text)
	if err != nil {
		return audioquery.AudioQuery{}, err
	}
	return s.queryFromKana(k, style)
}

func (s *Synthesizer) queryFromKana(kanaText string, style voicemodel.StyleID) (audioquery.AudioQuery, error) {
	phrases, err := s.phrasesFromKana(kanaText, style)
	if err != nil {
		return audioquery.AudioQuery{}, err
	}
	return audioquery.New(phrases, kanaText), nil
}

func (s *Synthesizer) phrasesFromKana(kanaText string, style voicemodel.StyleID) ([]audioquery.AccentPhrase, error) {
	sl, speaker, err := s.reg.style(style)
	if err != nil {
		return nil, err
	}
	phrases, err := kana.Parse(kanaText)
	if err != nil {
		return nil, err
	}
	return replaceMoraData(sl, speaker, phrases)
}

func replaceMoraData(sl *slot, speaker uint32, phrases []audioquery.AccentPhrase) ([]audioquery.AccentPhrase, error) {
	out, err := replacePhonemeLength(sl, speaker, audioquery.CloneAccentPhrases(phrases))
	if err != nil {
		return nil, err
	}
	return replaceMoraPitch(sl, speaker, out)
}

// replacePhonemeLength updates phrases in place; callers pass a clone.
func replacePhonemeLength(sl *slot, speaker uint32, phrases []audioquery.AccentPhrase) ([]audioquery.AccentPhrase, error) {
	moras := flatten(phrases)
	ids, err := durationInput(moras)
	if err != nil {
		return nil, fmt.Errorf("%w: phoneme length: %w", ErrSynthesis, err)
	}
	d, err := sl.session.PredictDuration(ids, speaker)
	if err != nil {
		return nil, fmt.Errorf("%w: phoneme length: %w", ErrSynthesis, err)
	}
	if err := applyDurations(moras, d); err != nil {
		return nil, fmt.Errorf("%w: phoneme length: %w", ErrSynthesis, err)
	}
	return phrases, nil
}

// replaceMoraPitch updates phrases in place; callers pass a clone.
func replaceMoraPitch(sl *slot, speaker uint32, phrases []audioquery.AccentPhrase) ([]audioquery.AccentPhrase, error) {
	in, err := intonationInput(phrases)
	if err != nil {
		return nil, fmt.Errorf("%w: mora pitch: %w", ErrSynthesis, err)
	}
	f0, err := sl.session.PredictIntonation(in, speaker)
	if err != nil {
		return nil, fmt.Errorf("%w: mora pitch: %w", ErrSynthesis, err)
	}
	if err := applyPitches(flatten(phrases), f0); err != nil {
		return nil, fmt.Errorf("%w: mora pitch: %w", ErrSynthesis, err)
	}
	return phrases, nil
}

func (s *Synthesizer) synthesize(q audioquery.AudioQuery, style voicemodel.StyleID, opts SynthesisOptions) ([]byte, error) {
	sl, speaker, err := s.reg.style(style)
	if err != nil {
		return nil, err
	}
	if q.VolumeScale < 0 {
		return nil, fmt.Errorf("%w: volume scale %v must not be negative", ErrSynthesis, q.VolumeScale)
	}
	phrases := audioquery.CloneAccentPhrases(q.AccentPhrases)
	if opts.EnableInterrogativeUpspeak {
		applyUpspeak(phrases)
	}
	f0, rows, err := decoderInput(&q, phrases)
	if err != nil {
		return nil, fmt.Errorf("%w: style %d: %w", ErrSynthesis, style, err)
	}
	wave, err := sl.session.Decode(f0, rows, speaker)
	if err != nil {
		return nil, fmt.Errorf("%w: style %d: decode: %w", ErrSynthesis, style, err)
	}
	wav, err := audio.RenderGain(wave, inference.SampleRate, audio.Format{
		SampleRate: q.OutputSamplingRate,
		Stereo:     q.OutputStereo,
	}, float64(q.VolumeScale))
	if err != nil {
		return nil, fmt.Errorf("%w: style %d: %w", ErrSynthesis, style, err)
	}
	s.logger.Debug("synthesized", "model", sl.model.ID(), "style", style, "frames", len(f0), "bytes", len(wav))
	return wav, nil
}
