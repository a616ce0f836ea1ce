package lexicon_test

import (
	"context"
	"errors"
	"testing"

	"github.com/haivivi/koe/pkg/lexicon"
)

const testSource = `entries:
  - surface: 今日
    pronunciation: キョー
    accent_type: 1
  - surface: 天気
    pronunciation: テンキ
    accent_type: 1
  - surface: 東京
    pronunciation: トーキョー
    accent_type: 0
    priority: 5
`

func newBadgerStore(t *testing.T) *lexicon.Badger {
	t.Helper()
	s, err := lexicon.NewBadger(lexicon.BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStores(t *testing.T) {
	stores := map[string]lexicon.Store{
		"memory": lexicon.NewMemory(),
		"badger": newBadgerStore(t),
	}
	for name, s := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if _, err := s.Get(ctx, "今日"); !errors.Is(err, lexicon.ErrNotFound) {
				t.Fatalf("Get(missing) err = %v, want ErrNotFound", err)
			}
			n, err := lexicon.Compile(ctx, []byte(testSource), s)
			if err != nil {
				t.Fatalf("Compile: %v", err)
			}
			if n != 3 {
				t.Fatalf("Compile wrote %d entries, want 3", n)
			}

			e, err := s.Get(ctx, "東京")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if e.Pronunciation != "トーキョー" || e.Priority != 5 {
				t.Errorf("Get = %+v", e)
			}

			all, err := lexicon.Load(ctx, s)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if len(all) != 3 {
				t.Errorf("Load returned %d entries, want 3", len(all))
			}

			var prev string
			for e, err := range s.All(ctx) {
				if err != nil {
					t.Fatal(err)
				}
				if e.Surface <= prev {
					t.Errorf("All not sorted: %q after %q", e.Surface, prev)
				}
				prev = e.Surface
			}

			if err := s.Delete(ctx, "今日"); err != nil {
				t.Fatal(err)
			}
			if err := s.Delete(ctx, "今日"); err != nil {
				t.Fatalf("second Delete: %v", err)
			}
			if _, err := s.Get(ctx, "今日"); !errors.Is(err, lexicon.ErrNotFound) {
				t.Errorf("Get after Delete err = %v", err)
			}
		})
	}
}

func TestBadgerReadOnlyReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	w, err := lexicon.NewBadger(lexicon.BadgerOptions{Dir: dir})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := lexicon.Compile(ctx, []byte(testSource), w); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := lexicon.NewBadger(lexicon.BadgerOptions{Dir: dir, ReadOnly: true})
	if err != nil {
		t.Fatalf("open read-only: %v", err)
	}
	defer r.Close()
	e, err := r.Get(ctx, "天気")
	if err != nil {
		t.Fatal(err)
	}
	if e.Pronunciation != "テンキ" {
		t.Errorf("Pronunciation = %q", e.Pronunciation)
	}
}

func TestEntryValidate(t *testing.T) {
	tests := []struct {
		name  string
		entry lexicon.Entry
		ok    bool
	}{
		{"valid", lexicon.Entry{Surface: "猫", Pronunciation: "ネコ", AccentType: 1}, true},
		{"flat", lexicon.Entry{Surface: "猫", Pronunciation: "ネコ", AccentType: 0}, true},
		{"empty surface", lexicon.Entry{Pronunciation: "ネコ"}, false},
		{"hiragana", lexicon.Entry{Surface: "猫", Pronunciation: "ねこ"}, false},
		{"accent too large", lexicon.Entry{Surface: "猫", Pronunciation: "ネコ", AccentType: 3}, false},
		{"negative accent", lexicon.Entry{Surface: "猫", Pronunciation: "ネコ", AccentType: -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entry.Validate()
			if tt.ok && err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if !tt.ok && !errors.Is(err, lexicon.ErrInvalidEntry) {
				t.Fatalf("Validate err = %v, want ErrInvalidEntry", err)
			}
		})
	}
}

func TestCompileRejectsBadSource(t *testing.T) {
	src := "entries:\n  - surface: x\n    pronunciation: abc\n"
	if _, err := lexicon.Compile(context.Background(), []byte(src), lexicon.NewMemory()); !errors.Is(err, lexicon.ErrInvalidEntry) {
		t.Fatalf("err = %v, want ErrInvalidEntry", err)
	}
}
