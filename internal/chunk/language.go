package chunk

import "unicode"

// charsPerToken is the chars-per-token table used to derive an
// effective chunk size per language (C3). 4.0 chars/token is the
// baseline (roughly English prose); CJK scripts and Thai pack more
// meaning per rune so they get a lower ratio.
var charsPerToken = map[string]float64{
	"en": 4.0,
	"ko": 1.5,
	"ja": 1.5,
	"zh": 1.5,
	"th": 2.0,
}

const defaultCharsPerToken = 4.0

func charsPerTokenFor(language string) float64 {
	if cpt, ok := charsPerToken[language]; ok {
		return cpt
	}
	return defaultCharsPerToken
}

// isCJKOrThai reports whether language uses fixed-char-window
// segmentation rather than the paragraph/sentence/word chain.
func isCJKOrThai(language string) bool {
	switch language {
	case "ko", "ja", "zh", "th":
		return true
	default:
		return false
	}
}

// detectLanguage scans the first 500 runes of content for Unicode
// ranges belonging to Korean, Japanese, Chinese, or Thai scripts,
// defaulting to "en" when none are found.
func detectLanguage(content string) string {
	runes := []rune(content)
	if len(runes) > 500 {
		runes = runes[:500]
	}

	for _, r := range runes {
		switch {
		case unicode.In(r, unicode.Hangul):
			return "ko"
		case unicode.In(r, unicode.Hiragana, unicode.Katakana):
			return "ja"
		case unicode.In(r, unicode.Han):
			// Han is shared by Japanese and Chinese text; Kana already
			// claimed Japanese above, so an unaccompanied Han run reads
			// as Chinese.
			return "zh"
		case unicode.In(r, unicode.Thai):
			return "th"
		}
	}
	return "en"
}
