// Package audioquery defines the value types that flow through the synthesis
// pipeline: an [AudioQuery] wraps a sequence of [AccentPhrase] values, each
// made of [Mora] values, together with the global prosody parameters.
//
// All types are plain values. Operations that transform them clone their
// input first, so a caller's copy is never modified by a call and a value
// already handed to an operation is never affected by later caller edits.
package audioquery

// DefaultSamplingRate is the native output rate of the acoustic decoder.
const DefaultSamplingRate = 24000

// Mora is the smallest timing unit. Consonant and ConsonantLength are nil for
// vowel-only moras.
type Mora struct {
	Text            string   `json:"text" yaml:"text"`
	Consonant       *string  `json:"consonant" yaml:"consonant"`
	ConsonantLength *float32 `json:"consonant_length" yaml:"consonant_length"`
	Vowel           string   `json:"vowel" yaml:"vowel"`
	VowelLength     float32  `json:"vowel_length" yaml:"vowel_length"`
	Pitch           float32  `json:"pitch" yaml:"pitch"`
}

// AccentPhrase is a run of moras sharing one pitch accent. Accent is the
// 1-based index of the accent nucleus mora. PauseMora, when set, is the pause
// that follows the phrase.
type AccentPhrase struct {
	Moras           []Mora `json:"moras" yaml:"moras"`
	Accent          int    `json:"accent" yaml:"accent"`
	PauseMora       *Mora  `json:"pause_mora" yaml:"pause_mora"`
	IsInterrogative bool   `json:"is_interrogative" yaml:"is_interrogative"`
}

// AudioQuery is the complete synthesis request for one utterance.
type AudioQuery struct {
	AccentPhrases      []AccentPhrase `json:"accent_phrases" yaml:"accent_phrases"`
	SpeedScale         float32        `json:"speed_scale" yaml:"speed_scale"`
	PitchScale         float32        `json:"pitch_scale" yaml:"pitch_scale"`
	IntonationScale    float32        `json:"intonation_scale" yaml:"intonation_scale"`
	VolumeScale        float32        `json:"volume_scale" yaml:"volume_scale"`
	PrePhonemeLength   float32        `json:"pre_phoneme_length" yaml:"pre_phoneme_length"`
	PostPhonemeLength  float32        `json:"post_phoneme_length" yaml:"post_phoneme_length"`
	OutputSamplingRate int            `json:"output_sampling_rate" yaml:"output_sampling_rate"`
	OutputStereo       bool           `json:"output_stereo" yaml:"output_stereo"`
	Kana               string         `json:"kana" yaml:"kana"`
}

// New returns a query over phrases with the default prosody parameters.
// The phrases are cloned.
func New(phrases []AccentPhrase, kana string) AudioQuery {
	return AudioQuery{
		AccentPhrases:      CloneAccentPhrases(phrases),
		SpeedScale:         1,
		PitchScale:         0,
		IntonationScale:    1,
		VolumeScale:        1,
		PrePhonemeLength:   0.1,
		PostPhonemeLength:  0.1,
		OutputSamplingRate: DefaultSamplingRate,
		OutputStereo:       false,
		Kana:               kana,
	}
}

// Clone returns a deep copy of q.
func (q AudioQuery) Clone() AudioQuery {
	q.AccentPhrases = CloneAccentPhrases(q.AccentPhrases)
	return q
}

// Clone returns a deep copy of m.
func (m Mora) Clone() Mora {
	if m.Consonant != nil {
		c := *m.Consonant
		m.Consonant = &c
	}
	if m.ConsonantLength != nil {
		l := *m.ConsonantLength
		m.ConsonantLength = &l
	}
	return m
}

// Clone returns a deep copy of p.
func (p AccentPhrase) Clone() AccentPhrase {
	if p.Moras != nil {
		moras := make([]Mora, len(p.Moras))
		for i, m := range p.Moras {
			moras[i] = m.Clone()
		}
		p.Moras = moras
	}
	if p.PauseMora != nil {
		pm := p.PauseMora.Clone()
		p.PauseMora = &pm
	}
	return p
}

// CloneAccentPhrases returns a deep copy of phrases. A nil input yields nil.
func CloneAccentPhrases(phrases []AccentPhrase) []AccentPhrase {
	if phrases == nil {
		return nil
	}
	out := make([]AccentPhrase, len(phrases))
	for i, p := range phrases {
		out[i] = p.Clone()
	}
	return out
}

// MoraCount returns the number of moras across all phrases, pause moras
// excluded.
func MoraCount(phrases []AccentPhrase) int {
	n := 0
	for _, p := range phrases {
		n += len(p.Moras)
	}
	return n
}

// String returns a pointer to s. Handy for building Mora literals.
func String(s string) *string { return &s }

// Float32 returns a pointer to f.
func Float32(f float32) *float32 { return &f }
