package synthesis

import (
	"fmt"
	"math"

	"github.com/haivivi/koe/pkg/audioquery"
	"github.com/haivivi/koe/pkg/inference"
	"github.com/haivivi/koe/pkg/kana"
)

// Interrogative upspeak adds a rising mora to question phrases.
const (
	upspeakVowelLength = 0.15
	upspeakPitchRise   = 0.3
	upspeakMaxPitch    = 6.5
)

// flatten returns pointers to every mora of phrases in utterance order,
// pause moras included.
func flatten(phrases []audioquery.AccentPhrase) []*audioquery.Mora {
	var out []*audioquery.Mora
	for i := range phrases {
		p := &phrases[i]
		for j := range p.Moras {
			out = append(out, &p.Moras[j])
		}
		if p.PauseMora != nil {
			out = append(out, p.PauseMora)
		}
	}
	return out
}

func phonemeID(p string) (int64, error) {
	id := kana.PhonemeID(p)
	if id < 0 {
		return 0, fmt.Errorf("unknown phoneme %q", p)
	}
	return int64(id), nil
}

// durationInput is the phoneme sequence of the duration model: a leading
// pause, the consonant and vowel of every mora, a trailing pause.
func durationInput(moras []*audioquery.Mora) ([]int64, error) {
	pau := int64(kana.PhonemeID(kana.Pause))
	ids := []int64{pau}
	for _, m := range moras {
		if m.Consonant != nil {
			id, err := phonemeID(*m.Consonant)
			if err != nil {
				return nil, err
			}
			ids = append(ids, id)
		}
		id, err := phonemeID(m.Vowel)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return append(ids, pau), nil
}

// applyDurations writes the predicted lengths back to the moras. d is
// aligned with durationInput.
func applyDurations(moras []*audioquery.Mora, d []float32) error {
	want := 2
	for _, m := range moras {
		want++
		if m.Consonant != nil {
			want++
		}
	}
	if len(d) != want {
		return fmt.Errorf("duration model returned %d values for %d phonemes", len(d), want)
	}
	i := 1
	for _, m := range moras {
		if m.Consonant != nil {
			m.ConsonantLength = audioquery.Float32(d[i])
			i++
		}
		m.VowelLength = d[i]
		i++
	}
	return nil
}

// intonationInput builds the per-mora features of the pitch model, with a
// pause on both ends of the utterance.
func intonationInput(phrases []audioquery.AccentPhrase) (inference.IntonationInput, error) {
	var in inference.IntonationInput
	push := func(vowel, consonant int64, startAccent, endAccent, startPhrase, endPhrase bool) {
		b := func(v bool) int64 {
			if v {
				return 1
			}
			return 0
		}
		in.Vowels = append(in.Vowels, vowel)
		in.Consonants = append(in.Consonants, consonant)
		in.StartAccent = append(in.StartAccent, b(startAccent))
		in.EndAccent = append(in.EndAccent, b(endAccent))
		in.StartAccentPhrase = append(in.StartAccentPhrase, b(startPhrase))
		in.EndAccentPhrase = append(in.EndAccentPhrase, b(endPhrase))
	}
	pau := int64(kana.PhonemeID(kana.Pause))

	push(pau, -1, false, false, false, false)
	for i, p := range phrases {
		n := len(p.Moras)
		if n == 0 {
			return in, fmt.Errorf("accent phrase %d has no moras", i)
		}
		if p.Accent < 1 || p.Accent > n {
			return in, fmt.Errorf("accent phrase %d: accent %d out of range 1..%d", i, p.Accent, n)
		}
		start := 1
		if p.Accent == 1 {
			start = 0
		}
		for j, m := range p.Moras {
			v, err := phonemeID(m.Vowel)
			if err != nil {
				return in, err
			}
			c := int64(-1)
			if m.Consonant != nil {
				if c, err = phonemeID(*m.Consonant); err != nil {
					return in, err
				}
			}
			push(v, c, j == start, j == p.Accent-1, j == 0, j == n-1)
		}
		if p.PauseMora != nil {
			push(pau, -1, false, false, false, false)
		}
	}
	push(pau, -1, false, false, false, false)
	return in, nil
}

// applyPitches writes the predicted pitches back to the moras. f0 is
// aligned with intonationInput. Pause and devoiced moras get zero.
func applyPitches(moras []*audioquery.Mora, f0 []float32) error {
	if len(f0) != len(moras)+2 {
		return fmt.Errorf("intonation model returned %d values for %d moras", len(f0), len(moras)+2)
	}
	for i, m := range moras {
		if kana.IsUnvoicedVowel(m.Vowel) {
			m.Pitch = 0
			continue
		}
		m.Pitch = f0[i+1]
	}
	return nil
}

// applyUpspeak appends a rising mora to every interrogative phrase whose
// last mora is voiced.
func applyUpspeak(phrases []audioquery.AccentPhrase) {
	for i := range phrases {
		p := &phrases[i]
		if !p.IsInterrogative || len(p.Moras) == 0 {
			continue
		}
		last := p.Moras[len(p.Moras)-1]
		if last.Pitch == 0 {
			continue
		}
		text, ok := kana.VowelKana(last.Vowel)
		if !ok {
			if last.Vowel != "N" {
				continue
			}
			text = "ン"
		}
		p.Moras = append(p.Moras, audioquery.Mora{
			Text:        text,
			Vowel:       last.Vowel,
			VowelLength: upspeakVowelLength,
			Pitch:       min(last.Pitch+upspeakPitchRise, upspeakMaxPitch),
		})
	}
}

// frame is one phoneme with its scaled length and pitch.
type frame struct {
	phoneme int64
	length  float32
	pitch   float32
}

// decoderInput expands a query to per-frame f0 and one-hot phoneme rows.
func decoderInput(q *audioquery.AudioQuery, phrases []audioquery.AccentPhrase) ([]float32, [][]float32, error) {
	if q.SpeedScale <= 0 {
		return nil, nil, fmt.Errorf("speed scale %v must be positive", q.SpeedScale)
	}
	pau := int64(kana.PhonemeID(kana.Pause))
	seq := []frame{{phoneme: pau, length: q.PrePhonemeLength}}
	for _, m := range flatten(phrases) {
		if m.Consonant != nil {
			id, err := phonemeID(*m.Consonant)
			if err != nil {
				return nil, nil, err
			}
			var l float32
			if m.ConsonantLength != nil {
				l = *m.ConsonantLength
			}
			seq = append(seq, frame{phoneme: id, length: l, pitch: m.Pitch})
		}
		id, err := phonemeID(m.Vowel)
		if err != nil {
			return nil, nil, err
		}
		seq = append(seq, frame{phoneme: id, length: m.VowelLength, pitch: m.Pitch})
	}
	seq = append(seq, frame{phoneme: pau, length: q.PostPhonemeLength})

	// Pitch shift, then intonation around the voiced mean.
	var sum float64
	var voiced int
	for i := range seq {
		if seq[i].pitch > 0 {
			seq[i].pitch *= float32(math.Pow(2, float64(q.PitchScale)))
			sum += float64(seq[i].pitch)
			voiced++
		}
	}
	if voiced > 0 {
		mean := float32(sum / float64(voiced))
		for i := range seq {
			if seq[i].pitch > 0 {
				seq[i].pitch = (seq[i].pitch-mean)*q.IntonationScale + mean
			}
		}
	}

	var (
		f0   []float32
		rows [][]float32
	)
	for _, ph := range seq {
		if ph.length < 0 {
			return nil, nil, fmt.Errorf("negative phoneme length %v", ph.length)
		}
		n := int(math.Round(float64(ph.length/q.SpeedScale) * inference.FrameRate))
		for range n {
			row := make([]float32, len(kana.Phonemes))
			row[ph.phoneme] = 1
			rows = append(rows, row)
			f0 = append(f0, ph.pitch)
		}
	}
	if len(f0) == 0 {
		return nil, nil, fmt.Errorf("query has no frames")
	}
	return f0, rows, nil
}
