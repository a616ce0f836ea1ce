package analyzer

import (
	"golang.org/x/text/unicode/norm"

	"github.com/haivivi/koe/pkg/lexicon"
	"github.com/haivivi/koe/pkg/userdict"
)

// overlay is an immutable lookup table built from the base dictionary and
// the user words. It is replaced whole, never modified.
type overlay struct {
	words     map[string]word
	maxLen    int
	userWords int
}

type word struct {
	pronunciation string
	accent        int
	priority      int
	user          bool
}

// buildOverlay merges base and user words. For a surface present in both,
// a user word wins; among user words the higher priority wins.
func buildOverlay(base map[string]lexicon.Entry, user []userdict.Entry) *overlay {
	ov := &overlay{
		words:     make(map[string]word, len(base)+len(user)),
		userWords: len(user),
	}
	for surface, e := range base {
		ov.add(surface, word{pronunciation: e.Pronunciation, accent: e.AccentType, priority: e.Priority})
	}
	for _, e := range user {
		surface := norm.NFKC.String(e.Word.Surface)
		w := word{pronunciation: e.Word.Pronunciation, accent: e.Word.AccentType, priority: e.Word.Priority, user: true}
		if prev, ok := ov.words[surface]; ok && prev.user && prev.priority >= w.priority {
			continue
		}
		ov.add(surface, w)
	}
	return ov
}

func (ov *overlay) add(surface string, w word) {
	ov.words[surface] = w
	if n := len([]rune(surface)); n > ov.maxLen {
		ov.maxLen = n
	}
}

// match returns the longest word at the start of rs and its length in runes.
func (ov *overlay) match(rs []rune) (word, int) {
	n := ov.maxLen
	if n > len(rs) {
		n = len(rs)
	}
	for ; n > 0; n-- {
		if w, ok := ov.words[string(rs[:n])]; ok {
			return w, n
		}
	}
	return word{}, 0
}
