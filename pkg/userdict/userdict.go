// Package userdict manages user pronunciation dictionaries: words keyed by
// generated ids, persisted as JSON and merged into the analyzer overlay.
package userdict

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/haivivi/koe/pkg/storage"
)

// Sentinel errors.
var (
	// ErrNotFound is returned for unknown word ids.
	ErrNotFound = errors.New("userdict: word not found")

	// ErrIO is returned when a dictionary file cannot be read or written.
	ErrIO = errors.New("userdict: i/o error")
)

// Entry pairs a word with its id.
type Entry struct {
	ID   string `json:"id"`
	Word Word   `json:"word"`
}

// Dictionary is a set of user words. It is safe for concurrent use.
type Dictionary struct {
	mu    sync.RWMutex
	words map[string]Word
}

// New returns an empty dictionary.
func New() *Dictionary {
	return &Dictionary{words: make(map[string]Word)}
}

// AddWord validates w, stores it under a fresh id and returns the id.
func (d *Dictionary) AddWord(w Word) (string, error) {
	w = w.normalize()
	if err := w.Validate(); err != nil {
		return "", err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id := uuid.NewString()
	for {
		if _, taken := d.words[id]; !taken {
			break
		}
		id = uuid.NewString()
	}
	d.words[id] = w
	return id, nil
}

// UpdateWord replaces the word stored under id. An unknown id is reported as
// ErrNotFound before w is validated.
func (d *Dictionary) UpdateWord(id string, w Word) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.words[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	w = w.normalize()
	if err := w.Validate(); err != nil {
		return err
	}
	d.words[id] = w
	return nil
}

// RemoveWord deletes the word stored under id and returns it.
func (d *Dictionary) RemoveWord(id string) (Word, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.words[id]
	if !ok {
		return Word{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(d.words, id)
	return w, nil
}

// Get returns the word stored under id.
func (d *Dictionary) Get(id string) (Word, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	w, ok := d.words[id]
	return w, ok
}

// Len returns the number of words.
func (d *Dictionary) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.words)
}

// Words returns a snapshot of every entry sorted by id.
func (d *Dictionary) Words() []Entry {
	d.mu.RLock()
	out := make([]Entry, 0, len(d.words))
	for id, w := range d.words {
		out = append(out, Entry{ID: id, Word: w})
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Import copies every entry of other into d. Entries with an id already in d
// are overwritten.
func (d *Dictionary) Import(other *Dictionary) {
	if other == d {
		return
	}
	entries := other.Words()
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, e := range entries {
		d.words[e.ID] = e.Word
	}
}

// Load merges the dictionary file at path into d.
func (d *Dictionary) Load(path string) error {
	return d.LoadFrom(context.Background(), storage.NewFS(), path)
}

// Save writes d to path. The file is replaced atomically.
func (d *Dictionary) Save(path string) error {
	return d.SaveTo(context.Background(), storage.NewFS(), path)
}

// LoadFrom merges the dictionary file at path in store into d. Nothing is
// merged if any entry is malformed.
func (d *Dictionary) LoadFrom(ctx context.Context, store storage.FileStore, path string) error {
	data, err := storage.ReadFile(ctx, store, path)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrIO, path, err)
	}
	var words map[string]Word
	if err := json.Unmarshal(data, &words); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrIO, path, err)
	}
	for id, w := range words {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("%w: %s: word %s: %w", ErrIO, path, id, err)
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, w := range words {
		d.words[id] = w
	}
	return nil
}

// SaveTo writes d to path in store.
func (d *Dictionary) SaveTo(ctx context.Context, store storage.FileStore, path string) error {
	d.mu.RLock()
	data, err := json.MarshalIndent(d.words, "", "  ")
	d.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("%w: encode: %w", ErrIO, err)
	}
	data = append(data, '\n')
	if err := storage.WriteFile(ctx, store, path, data); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrIO, path, err)
	}
	return nil
}

// Equal reports whether d and other hold the same entries.
func (d *Dictionary) Equal(other *Dictionary) bool {
	a, b := d.Words(), other.Words()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
