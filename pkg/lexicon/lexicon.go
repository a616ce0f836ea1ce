// Package lexicon stores the base pronunciation dictionary consulted by the
// text analyzer. Entries map a surface form to its katakana pronunciation and
// accent type and are keyed by surface.
//
// Two stores are provided: Badger, which backs the on-disk dictionary
// directory, and Memory, for tests and small embedded dictionaries.
package lexicon

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/haivivi/koe/pkg/kana"
)

// Sentinel errors.
var (
	// ErrNotFound is returned when a surface has no entry.
	ErrNotFound = errors.New("lexicon: not found")

	// ErrInvalidEntry is returned by [Entry.Validate].
	ErrInvalidEntry = errors.New("lexicon: invalid entry")
)

// Entry is one dictionary word.
type Entry struct {
	Surface       string `msgpack:"surface" yaml:"surface" json:"surface"`
	Pronunciation string `msgpack:"pronunciation" yaml:"pronunciation" json:"pronunciation"`
	// AccentType is the mora after which the pitch falls; 0 means flat.
	AccentType int `msgpack:"accent_type" yaml:"accent_type" json:"accent_type"`
	// Priority breaks ties between overlapping matches; higher wins.
	Priority int `msgpack:"priority" yaml:"priority" json:"priority"`
}

// Validate checks that the pronunciation is katakana made of known moras
// and that the accent type fits it.
func (e Entry) Validate() error {
	if e.Surface == "" {
		return fmt.Errorf("%w: empty surface", ErrInvalidEntry)
	}
	moras, pos, ok := kana.SplitMoras(e.Pronunciation)
	if !ok || len(moras) == 0 {
		return fmt.Errorf("%w: %q: bad pronunciation %q at %d", ErrInvalidEntry, e.Surface, e.Pronunciation, pos)
	}
	if e.AccentType < 0 || e.AccentType > len(moras) {
		return fmt.Errorf("%w: %q: accent type %d out of range 0..%d", ErrInvalidEntry, e.Surface, e.AccentType, len(moras))
	}
	return nil
}

// Store is a dictionary backend. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns the entry for surface, or ErrNotFound.
	Get(ctx context.Context, surface string) (Entry, error)

	// Put stores entries in one batch, replacing existing surfaces.
	Put(ctx context.Context, entries ...Entry) error

	// Delete removes a surface. Missing surfaces are not an error.
	Delete(ctx context.Context, surface string) error

	// All iterates every entry in surface order.
	All(ctx context.Context) iter.Seq2[Entry, error]

	// Close releases resources held by the store.
	Close() error
}

// wordPrefix namespaces word keys so metadata can live in the same store.
const wordPrefix = "w\x00"

func wordKey(surface string) []byte {
	return []byte(wordPrefix + surface)
}

func encodeEntry(e Entry) ([]byte, error) {
	return msgpack.Marshal(&e)
}

func decodeEntry(b []byte) (Entry, error) {
	var e Entry
	if err := msgpack.Unmarshal(b, &e); err != nil {
		return Entry{}, fmt.Errorf("lexicon: decode entry: %w", err)
	}
	return e, nil
}

// Load reads every entry of s into a map keyed by surface.
func Load(ctx context.Context, s Store) (map[string]Entry, error) {
	out := make(map[string]Entry)
	for e, err := range s.All(ctx) {
		if err != nil {
			return nil, err
		}
		out[e.Surface] = e
	}
	return out, nil
}
