package userdict

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/width"

	"github.com/haivivi/koe/pkg/kana"
)

// Priority bounds. Higher priorities win over base dictionary entries and
// over lower-priority user words covering the same text.
const (
	MinPriority     = 0
	MaxPriority     = 10
	DefaultPriority = 5
)

// WordType is the part of speech of a user word.
type WordType int

const (
	ProperNoun WordType = iota
	CommonNoun
	Verb
	Adjective
	Suffix
)

var wordTypeNames = [...]string{
	ProperNoun: "PROPER_NOUN",
	CommonNoun: "COMMON_NOUN",
	Verb:       "VERB",
	Adjective:  "ADJECTIVE",
	Suffix:     "SUFFIX",
}

func (t WordType) String() string {
	if t < 0 || int(t) >= len(wordTypeNames) {
		return fmt.Sprintf("WordType(%d)", int(t))
	}
	return wordTypeNames[t]
}

// ParseWordType accepts the serialized name ("PROPER_NOUN") or the lower-case
// short form used on the command line ("proper-noun").
func ParseWordType(s string) (WordType, error) {
	norm := strings.ToUpper(strings.ReplaceAll(s, "-", "_"))
	for i, name := range wordTypeNames {
		if name == norm {
			return WordType(i), nil
		}
	}
	return 0, &ValidationError{Field: "word_type", Reason: fmt.Sprintf("unknown word type %q", s)}
}

func (t WordType) MarshalText() ([]byte, error) {
	if t < 0 || int(t) >= len(wordTypeNames) {
		return nil, fmt.Errorf("userdict: invalid word type %d", int(t))
	}
	return []byte(wordTypeNames[t]), nil
}

func (t *WordType) UnmarshalText(b []byte) error {
	v, err := ParseWordType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("userdict: invalid word")

// ValidationError reports the field of a word that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("userdict: invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Word is a user dictionary entry.
type Word struct {
	Surface       string   `json:"surface"`
	Pronunciation string   `json:"pronunciation"`
	AccentType    int      `json:"accent_type"`
	WordType      WordType `json:"word_type"`
	Priority      int      `json:"priority"`
}

// NewWord builds a normalized, validated word. The surface is widened to
// full-width characters and hiragana in the pronunciation is converted to
// katakana.
func NewWord(surface, pronunciation string, accentType int, wordType WordType, priority int) (Word, error) {
	w := Word{
		Surface:       surface,
		Pronunciation: pronunciation,
		AccentType:    accentType,
		WordType:      wordType,
		Priority:      priority,
	}.normalize()
	if err := w.Validate(); err != nil {
		return Word{}, err
	}
	return w, nil
}

func (w Word) normalize() Word {
	w.Surface = width.Widen.String(w.Surface)
	w.Pronunciation = kana.ToKatakana(w.Pronunciation)
	return w
}

// MoraCount returns the number of moras in the pronunciation, or -1 if it
// cannot be decomposed.
func (w Word) MoraCount() int {
	return kana.CountMoras(w.Pronunciation)
}

// Validate checks every field of w.
func (w Word) Validate() error {
	if w.Surface == "" {
		return &ValidationError{Field: "surface", Reason: "empty"}
	}
	if w.Pronunciation == "" {
		return &ValidationError{Field: "pronunciation", Reason: "empty"}
	}
	moras, pos, ok := kana.SplitMoras(w.Pronunciation)
	if !ok {
		return &ValidationError{
			Field:  "pronunciation",
			Reason: fmt.Sprintf("%q is not katakana at position %d", w.Pronunciation, pos),
		}
	}
	if w.AccentType < 0 || w.AccentType > len(moras) {
		return &ValidationError{
			Field:  "accent_type",
			Reason: fmt.Sprintf("%d out of range 0..%d", w.AccentType, len(moras)),
		}
	}
	if w.WordType < ProperNoun || w.WordType > Suffix {
		return &ValidationError{Field: "word_type", Reason: fmt.Sprintf("unknown value %d", int(w.WordType))}
	}
	if w.Priority < MinPriority || w.Priority > MaxPriority {
		return &ValidationError{
			Field:  "priority",
			Reason: fmt.Sprintf("%d out of range %d..%d", w.Priority, MinPriority, MaxPriority),
		}
	}
	return nil
}
