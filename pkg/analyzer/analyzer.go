// Package analyzer turns raw Japanese text into kana notation.
//
// A Context holds the base pronunciation dictionary and an optional user
// dictionary overlay. The overlay is swapped atomically by UseUserDict and
// is seen at once by every goroutine and synthesizer sharing the Context.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/haivivi/koe/pkg/kana"
	"github.com/haivivi/koe/pkg/lexicon"
	"github.com/haivivi/koe/pkg/userdict"
)

// Errors returned by the analyzer.
var (
	ErrDictionaryLoad = errors.New("analyzer: dictionary load failed")
	ErrAnalyze        = errors.New("analyzer: cannot analyze text")
)

// AnalyzeError reports the character that had no reading.
type AnalyzeError struct {
	Text string
	Pos  int
	Char rune
}

func (e *AnalyzeError) Error() string {
	return fmt.Sprintf("analyzer: no reading for %q at position %d", e.Char, e.Pos)
}

func (e *AnalyzeError) Unwrap() error { return ErrAnalyze }

// Option configures a Context.
type Option func(*Context)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Context) { c.logger = l }
}

// Context is a shared analysis context.
type Context struct {
	base    map[string]lexicon.Entry
	overlay atomic.Pointer[overlay]
	logger  *slog.Logger
}

// New loads the dictionary directory dictDir, a Badger lexicon produced by
// lexicon.Compile. The directory is opened read-only and closed once every
// entry is in memory.
func New(ctx context.Context, dictDir string, opts ...Option) (*Context, error) {
	if _, err := os.Stat(dictDir); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDictionaryLoad, dictDir, err)
	}
	store, err := lexicon.NewBadger(lexicon.BadgerOptions{Dir: dictDir, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDictionaryLoad, err)
	}
	defer store.Close()
	return NewFromStore(ctx, store, opts...)
}

// NewFromStore builds a Context from any lexicon store. The store is read
// once and may be closed afterwards.
func NewFromStore(ctx context.Context, store lexicon.Store, opts ...Option) (*Context, error) {
	entries, err := lexicon.Load(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDictionaryLoad, err)
	}
	c := &Context{
		base:   make(map[string]lexicon.Entry, len(entries)),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, e := range entries {
		if err := e.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDictionaryLoad, err)
		}
		c.base[norm.NFKC.String(e.Surface)] = e
	}
	c.overlay.Store(buildOverlay(c.base, nil))
	c.logger.Debug("analyzer dictionary loaded", "entries", len(c.base))
	return c, nil
}

// UseUserDict validates every word of dict and makes the base dictionary
// plus dict the active overlay. A nil dict removes the user words.
func (c *Context) UseUserDict(dict *userdict.Dictionary) error {
	var words []userdict.Entry
	if dict != nil {
		words = dict.Words()
		for _, e := range words {
			if err := e.Word.Validate(); err != nil {
				return fmt.Errorf("word %s: %w", e.ID, err)
			}
		}
	}
	c.overlay.Store(buildOverlay(c.base, words))
	c.logger.Info("user dictionary applied", "words", len(words))
	return nil
}

// UserWords returns the number of user words in the active overlay.
func (c *Context) UserWords() int {
	return c.overlay.Load().userWords
}

// Analyze converts text to kana notation. Dictionary words become accent
// phrases with their registered accent; other kana runs are read as written
// with a flat accent. Punctuation inserts a pause and a question mark makes
// the preceding phrase interrogative.
func (c *Context) Analyze(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ov := c.overlay.Load()
	src := []rune(norm.NFKC.String(text))

	var (
		phrases  []phrase
		run      []rune
		runStart int
	)
	flush := func() {
		if len(run) > 0 {
			phrases = append(phrases, phrase{reading: string(run), flat: true, start: runStart})
			run = run[:0]
		}
	}
	for i := 0; i < len(src); {
		if w, n := ov.match(src[i:]); n > 0 {
			flush()
			phrases = append(phrases, phrase{reading: w.pronunciation, accent: w.accent, start: i})
			i += n
			continue
		}
		r := src[i]
		switch {
		case kana.IsHiragana(r) || kana.IsKatakana(r):
			if len(run) == 0 {
				runStart = i
			}
			run = append(run, []rune(kana.ToKatakana(string(r)))...)
		case isQuestion(r):
			flush()
			if len(phrases) > 0 {
				phrases[len(phrases)-1].interrogative = true
				phrases[len(phrases)-1].pause = true
			}
		case isPause(r):
			flush()
			if len(phrases) > 0 {
				phrases[len(phrases)-1].pause = true
			}
		case unicode.IsSpace(r):
			flush()
		default:
			return "", &AnalyzeError{Text: text, Pos: i, Char: r}
		}
		i++
	}
	flush()
	if len(phrases) == 0 {
		return "", fmt.Errorf("%w: %q has no pronounceable text", ErrAnalyze, text)
	}
	return render(text, src, phrases)
}

type phrase struct {
	// start is the offset of the phrase in the normalized text.
	start         int
	reading       string
	accent        int
	flat          bool
	pause         bool
	interrogative bool
}

// render writes the phrases as kana notation. A reading that does not split
// into moras is reported at its position in src: the failing rune for a kana
// run, the first rune of the word for a dictionary reading.
func render(text string, src []rune, phrases []phrase) (string, error) {
	var b strings.Builder
	for i, p := range phrases {
		moras, pos, ok := kana.SplitMoras(p.reading)
		if !ok {
			at := p.start
			if p.flat {
				at += pos
			}
			return "", &AnalyzeError{Text: text, Pos: at, Char: src[at]}
		}
		accent := p.accent
		if p.flat || accent == 0 {
			accent = len(moras)
		}
		for j, m := range moras {
			b.WriteString(m.Text)
			if j+1 == accent {
				b.WriteRune(kana.AccentSymbol)
			}
		}
		if p.interrogative {
			b.WriteRune(kana.Interrogative)
		}
		if i < len(phrases)-1 {
			if p.pause {
				b.WriteRune(kana.PauseDelimiter)
			} else {
				b.WriteRune(kana.NoPauseDelimiter)
			}
		}
	}
	return b.String(), nil
}

func isQuestion(r rune) bool {
	return r == '?' || r == '？'
}

func isPause(r rune) bool {
	switch r {
	case '、', '。', ',', '.', '!', '！', '…', '・', ';', ':', '「', '」', '『', '』', '(', ')', '"':
		return true
	}
	return false
}
