// Package kana parses and generates the kana notation used as a
// pre-analyzed synthesis input.
//
// The notation is katakana with a few control symbols:
//
//	/   phrase boundary without pause
//	、  phrase boundary followed by a pause
//	'   accent nucleus (placed after the accented mora)
//	_   devoices the vowel of the following mora
//	？  marks the phrase as interrogative (last character of a phrase)
//
// Example: "コンニチワ'、ハジメマシ_テ'"
package kana

import (
	"errors"
	"fmt"
	"strings"

	"github.com/haivivi/koe/pkg/audioquery"
)

// Notation symbols.
const (
	PauseDelimiter   = '、'
	NoPauseDelimiter = '/'
	AccentSymbol     = '\''
	UnvoiceSymbol    = '_'
	Interrogative    = '？'
)

// ErrParse is matched by every *ParseError.
var ErrParse = errors.New("kana: parse error")

// ParseError reports malformed kana notation. Pos is the rune offset in Text.
type ParseError struct {
	Text   string
	Pos    int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("kana: %s at position %d in %q", e.Reason, e.Pos, e.Text)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// Parse converts kana notation to accent phrases. Numeric fields (lengths and
// pitches) are zero; consonant moras get a zero ConsonantLength. A phrase
// without an accent symbol is treated as flat, i.e. its accent is its last
// mora.
func Parse(text string) ([]audioquery.AccentPhrase, error) {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, &ParseError{Text: text, Pos: 0, Reason: "empty text"}
	}
	if last := runes[len(runes)-1]; last == PauseDelimiter || last == NoPauseDelimiter {
		return nil, &ParseError{Text: text, Pos: len(runes), Reason: "empty accent phrase"}
	}

	var phrases []audioquery.AccentPhrase
	base := 0
	for i, r := range runes {
		last := i == len(runes)-1
		if r != PauseDelimiter && r != NoPauseDelimiter && !last {
			continue
		}
		end := i
		if last && r != PauseDelimiter && r != NoPauseDelimiter {
			end = i + 1
		}
		phrase := runes[base:end]
		if len(phrase) == 0 {
			return nil, &ParseError{Text: text, Pos: i, Reason: "empty accent phrase"}
		}

		interrogative := false
		if phrase[len(phrase)-1] == Interrogative {
			interrogative = true
			phrase = phrase[:len(phrase)-1]
			if len(phrase) == 0 {
				return nil, &ParseError{Text: text, Pos: base, Reason: "interrogative mark without moras"}
			}
		}

		ap, err := parsePhrase(text, phrase, base)
		if err != nil {
			return nil, err
		}
		ap.IsInterrogative = interrogative
		if r == PauseDelimiter {
			ap.PauseMora = &audioquery.Mora{Text: string(PauseDelimiter), Vowel: Pause}
		}
		phrases = append(phrases, ap)
		base = i + 1
	}
	return phrases, nil
}

func parsePhrase(text string, phrase []rune, offset int) (audioquery.AccentPhrase, error) {
	var (
		moras   []audioquery.Mora
		accent  = -1
		unvoice = false
	)
	for i := 0; i < len(phrase); {
		pos := offset + i
		switch r := phrase[i]; {
		case r == AccentSymbol:
			if len(moras) == 0 {
				return audioquery.AccentPhrase{}, &ParseError{Text: text, Pos: pos, Reason: "accent symbol before any mora"}
			}
			if accent >= 0 {
				return audioquery.AccentPhrase{}, &ParseError{Text: text, Pos: pos, Reason: "second accent symbol in phrase"}
			}
			if unvoice {
				return audioquery.AccentPhrase{}, &ParseError{Text: text, Pos: pos, Reason: "unvoice symbol without mora"}
			}
			accent = len(moras)
			i++
			continue
		case r == UnvoiceSymbol:
			if unvoice {
				return audioquery.AccentPhrase{}, &ParseError{Text: text, Pos: pos, Reason: "repeated unvoice symbol"}
			}
			unvoice = true
			i++
			continue
		case r == Interrogative:
			return audioquery.AccentPhrase{}, &ParseError{Text: text, Pos: pos, Reason: "interrogative mark must end a phrase"}
		case r == LongVowel:
			if len(moras) == 0 {
				return audioquery.AccentPhrase{}, &ParseError{Text: text, Pos: pos, Reason: "long vowel mark without preceding mora"}
			}
			v := strings.ToLower(moras[len(moras)-1].Vowel)
			if _, ok := vowelKana[v]; !ok {
				return audioquery.AccentPhrase{}, &ParseError{Text: text, Pos: pos, Reason: "long vowel mark after non-vowel mora"}
			}
			m := audioquery.Mora{Text: string(LongVowel), Vowel: v}
			if unvoice {
				m.Vowel, _ = Unvoice(v)
				unvoice = false
			}
			moras = append(moras, m)
			i++
			continue
		}

		info, n, ok := matchMora(phrase[i:])
		if !ok {
			return audioquery.AccentPhrase{}, &ParseError{Text: text, Pos: pos, Reason: fmt.Sprintf("unknown mora %q", string(phrase[i]))}
		}
		m := audioquery.Mora{Text: info.Text, Vowel: info.Vowel}
		if info.Consonant != "" {
			m.Consonant = audioquery.String(info.Consonant)
			m.ConsonantLength = audioquery.Float32(0)
		}
		if unvoice {
			v, ok := Unvoice(info.Vowel)
			if !ok {
				return audioquery.AccentPhrase{}, &ParseError{Text: text, Pos: pos, Reason: fmt.Sprintf("mora %q cannot be unvoiced", info.Text)}
			}
			m.Vowel = v
			unvoice = false
		}
		moras = append(moras, m)
		i += n
	}
	if unvoice {
		return audioquery.AccentPhrase{}, &ParseError{Text: text, Pos: offset + len(phrase), Reason: "unvoice symbol without mora"}
	}
	if len(moras) == 0 {
		return audioquery.AccentPhrase{}, &ParseError{Text: text, Pos: offset, Reason: "accent phrase without moras"}
	}
	if accent < 0 {
		accent = len(moras)
	}
	return audioquery.AccentPhrase{Moras: moras, Accent: accent}, nil
}

// matchMora finds the longest mora at the start of rs.
func matchMora(rs []rune) (MoraInfo, int, bool) {
	if len(rs) >= 2 {
		if info, ok := moraByText[string(rs[:2])]; ok {
			return info, 2, true
		}
	}
	info, ok := moraByText[string(rs[0])]
	return info, 1, ok
}

// Create renders accent phrases back to kana notation. Parse(Create(p))
// yields phrases with the same moras, accents and pauses as p.
func Create(phrases []audioquery.AccentPhrase) string {
	var b strings.Builder
	for i, p := range phrases {
		for j, m := range p.Moras {
			switch m.Vowel {
			case "A", "I", "U", "E", "O":
				b.WriteRune(UnvoiceSymbol)
			}
			b.WriteString(m.Text)
			if j+1 == p.Accent {
				b.WriteRune(AccentSymbol)
			}
		}
		if p.IsInterrogative {
			b.WriteRune(Interrogative)
		}
		if i < len(phrases)-1 {
			if p.PauseMora != nil {
				b.WriteRune(PauseDelimiter)
			} else {
				b.WriteRune(NoPauseDelimiter)
			}
		}
	}
	return b.String()
}
