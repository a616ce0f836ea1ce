package kana

import "strings"

// Phonemes is the phoneme inventory shared with the acoustic models. The
// index of a phoneme in this list is its model input id.
var Phonemes = []string{
	"pau", "A", "E", "I", "N", "O", "U", "a", "b", "by",
	"ch", "cl", "d", "dy", "e", "f", "g", "gw", "gy", "h",
	"hy", "i", "j", "k", "kw", "ky", "m", "my", "n", "ny",
	"o", "p", "py", "r", "ry", "s", "sh", "t", "ts", "ty",
	"u", "v", "w", "y", "z",
}

// Pause is the phoneme used for silences and pause moras.
const Pause = "pau"

var phonemeIDs = func() map[string]int {
	m := make(map[string]int, len(Phonemes))
	for i, p := range Phonemes {
		m[p] = i
	}
	return m
}()

// PhonemeID returns the model input id of p, or -1 if p is unknown.
func PhonemeID(p string) int {
	if id, ok := phonemeIDs[p]; ok {
		return id
	}
	return -1
}

// IsUnvoicedVowel reports whether v is a devoiced vowel (upper case) or a
// mora that carries no pitch.
func IsUnvoicedVowel(v string) bool {
	switch v {
	case "A", "I", "U", "E", "O", "cl", Pause:
		return true
	}
	return false
}

// Unvoice returns the devoiced form of a plain vowel. ok is false when v
// cannot be devoiced.
func Unvoice(v string) (string, bool) {
	switch v {
	case "a", "i", "u", "e", "o":
		return strings.ToUpper(v), true
	}
	return v, false
}

// MoraInfo is one entry of the mora table.
type MoraInfo struct {
	Text      string
	Consonant string // empty for vowel-only moras
	Vowel     string
}

// moraTable maps katakana to its consonant and vowel phonemes.
var moraTable = []MoraInfo{
	{"ヴォ", "v", "o"}, {"ヴェ", "v", "e"}, {"ヴィ", "v", "i"}, {"ヴァ", "v", "a"}, {"ヴ", "v", "u"},
	{"ン", "", "N"}, {"ッ", "", "cl"},
	{"ワ", "w", "a"}, {"ヲ", "", "o"},
	{"ウォ", "w", "o"}, {"ウェ", "w", "e"}, {"ウィ", "w", "i"},
	{"ア", "", "a"}, {"イ", "", "i"}, {"ウ", "", "u"}, {"エ", "", "e"}, {"オ", "", "o"},
	{"イェ", "y", "e"},
	{"カ", "k", "a"}, {"キ", "k", "i"}, {"ク", "k", "u"}, {"ケ", "k", "e"}, {"コ", "k", "o"},
	{"キャ", "ky", "a"}, {"キュ", "ky", "u"}, {"キェ", "ky", "e"}, {"キョ", "ky", "o"},
	{"クヮ", "kw", "a"},
	{"ガ", "g", "a"}, {"ギ", "g", "i"}, {"グ", "g", "u"}, {"ゲ", "g", "e"}, {"ゴ", "g", "o"},
	{"ギャ", "gy", "a"}, {"ギュ", "gy", "u"}, {"ギェ", "gy", "e"}, {"ギョ", "gy", "o"},
	{"グヮ", "gw", "a"},
	{"サ", "s", "a"}, {"スィ", "s", "i"}, {"ス", "s", "u"}, {"セ", "s", "e"}, {"ソ", "s", "o"},
	{"シャ", "sh", "a"}, {"シ", "sh", "i"}, {"シュ", "sh", "u"}, {"シェ", "sh", "e"}, {"ショ", "sh", "o"},
	{"ザ", "z", "a"}, {"ズィ", "z", "i"}, {"ズ", "z", "u"}, {"ゼ", "z", "e"}, {"ゾ", "z", "o"},
	{"ジャ", "j", "a"}, {"ジ", "j", "i"}, {"ジュ", "j", "u"}, {"ジェ", "j", "e"}, {"ジョ", "j", "o"},
	{"ヂ", "j", "i"}, {"ヅ", "z", "u"},
	{"タ", "t", "a"}, {"ティ", "t", "i"}, {"トゥ", "t", "u"}, {"テ", "t", "e"}, {"ト", "t", "o"},
	{"テャ", "ty", "a"}, {"テュ", "ty", "u"}, {"テョ", "ty", "o"},
	{"ダ", "d", "a"}, {"ディ", "d", "i"}, {"ドゥ", "d", "u"}, {"デ", "d", "e"}, {"ド", "d", "o"},
	{"デャ", "dy", "a"}, {"デュ", "dy", "u"}, {"デョ", "dy", "o"},
	{"チャ", "ch", "a"}, {"チ", "ch", "i"}, {"チュ", "ch", "u"}, {"チェ", "ch", "e"}, {"チョ", "ch", "o"},
	{"ツァ", "ts", "a"}, {"ツィ", "ts", "i"}, {"ツ", "ts", "u"}, {"ツェ", "ts", "e"}, {"ツォ", "ts", "o"},
	{"ナ", "n", "a"}, {"ニ", "n", "i"}, {"ヌ", "n", "u"}, {"ネ", "n", "e"}, {"ノ", "n", "o"},
	{"ニャ", "ny", "a"}, {"ニュ", "ny", "u"}, {"ニェ", "ny", "e"}, {"ニョ", "ny", "o"},
	{"ハ", "h", "a"}, {"ヒ", "h", "i"}, {"ヘ", "h", "e"}, {"ホ", "h", "o"},
	{"ヒャ", "hy", "a"}, {"ヒュ", "hy", "u"}, {"ヒェ", "hy", "e"}, {"ヒョ", "hy", "o"},
	{"ファ", "f", "a"}, {"フィ", "f", "i"}, {"フ", "f", "u"}, {"フェ", "f", "e"}, {"フォ", "f", "o"},
	{"バ", "b", "a"}, {"ビ", "b", "i"}, {"ブ", "b", "u"}, {"ベ", "b", "e"}, {"ボ", "b", "o"},
	{"ビャ", "by", "a"}, {"ビュ", "by", "u"}, {"ビェ", "by", "e"}, {"ビョ", "by", "o"},
	{"パ", "p", "a"}, {"ピ", "p", "i"}, {"プ", "p", "u"}, {"ペ", "p", "e"}, {"ポ", "p", "o"},
	{"ピャ", "py", "a"}, {"ピュ", "py", "u"}, {"ピェ", "py", "e"}, {"ピョ", "py", "o"},
	{"マ", "m", "a"}, {"ミ", "m", "i"}, {"ム", "m", "u"}, {"メ", "m", "e"}, {"モ", "m", "o"},
	{"ミャ", "my", "a"}, {"ミュ", "my", "u"}, {"ミェ", "my", "e"}, {"ミョ", "my", "o"},
	{"ヤ", "y", "a"}, {"ユ", "y", "u"}, {"ヨ", "y", "o"},
	{"ラ", "r", "a"}, {"リ", "r", "i"}, {"ル", "r", "u"}, {"レ", "r", "e"}, {"ロ", "r", "o"},
	{"リャ", "ry", "a"}, {"リュ", "ry", "u"}, {"リェ", "ry", "e"}, {"リョ", "ry", "o"},
}

var moraByText = func() map[string]MoraInfo {
	m := make(map[string]MoraInfo, len(moraTable))
	for _, info := range moraTable {
		m[info.Text] = info
	}
	return m
}()

// vowelKana maps a plain vowel phoneme to its katakana.
var vowelKana = map[string]string{"a": "ア", "i": "イ", "u": "ウ", "e": "エ", "o": "オ"}

// LongVowel is the prolonged sound mark. It repeats the vowel of the
// preceding mora.
const LongVowel = 'ー'

// LookupMora returns the table entry for a katakana mora.
func LookupMora(text string) (MoraInfo, bool) {
	info, ok := moraByText[text]
	return info, ok
}

// SplitMoras splits a katakana string into moras using longest match.
// A long vowel mark takes the vowel of the preceding mora. It returns the
// rune offset of the first character that cannot be decomposed.
func SplitMoras(s string) ([]MoraInfo, int, bool) {
	runes := []rune(s)
	var out []MoraInfo
	for i := 0; i < len(runes); {
		if runes[i] == LongVowel {
			if len(out) == 0 {
				return nil, i, false
			}
			v := strings.ToLower(out[len(out)-1].Vowel)
			if _, ok := vowelKana[v]; !ok {
				return nil, i, false
			}
			out = append(out, MoraInfo{Text: string(LongVowel), Vowel: v})
			i++
			continue
		}
		if i+1 < len(runes) {
			if info, ok := moraByText[string(runes[i:i+2])]; ok {
				out = append(out, info)
				i += 2
				continue
			}
		}
		info, ok := moraByText[string(runes[i])]
		if !ok {
			return nil, i, false
		}
		out = append(out, info)
		i++
	}
	return out, len(runes), true
}

// CountMoras returns the number of moras in a katakana string, or -1 when it
// cannot be decomposed.
func CountMoras(s string) int {
	moras, _, ok := SplitMoras(s)
	if !ok {
		return -1
	}
	return len(moras)
}

// ToKatakana converts hiragana runes in s to katakana and leaves everything
// else untouched.
func ToKatakana(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'ぁ' && r <= 'ゖ' {
			return r + ('ァ' - 'ぁ')
		}
		return r
	}, s)
}

// IsKatakana reports whether r is a katakana letter or the long vowel mark.
func IsKatakana(r rune) bool {
	return (r >= 'ァ' && r <= 'ヺ') || r == LongVowel
}

// IsHiragana reports whether r is a hiragana letter.
func IsHiragana(r rune) bool {
	return r >= 'ぁ' && r <= 'ゖ'
}

// VowelKana returns the katakana that spells vowel v ("a" -> "ア").
func VowelKana(v string) (string, bool) {
	k, ok := vowelKana[strings.ToLower(v)]
	return k, ok
}
