package speech

import "unicode"

// ttsLanguages are the language codes the synthesis voice can render.
var ttsLanguages = map[string]struct{}{
	"en": {}, "hi": {}, "bn": {}, "ta": {}, "te": {}, "kn": {},
	"ml": {}, "mr": {}, "gu": {}, "pa": {}, "ur": {},
}

// TTSSupported reports whether lang can be synthesized.
func TTSSupported(lang string) bool {
	_, ok := ttsLanguages[lang]
	return ok
}

// scriptLanguages maps Unicode scripts to the language code spoken back to
// the user.  Devanagari covers both Hindi and Marathi; Hindi is the more
// common case for this assistant so it wins.
var scriptLanguages = []struct {
	script *unicode.RangeTable
	lang   string
}{
	{unicode.Devanagari, "hi"},
	{unicode.Bengali, "bn"},
	{unicode.Tamil, "ta"},
	{unicode.Telugu, "te"},
	{unicode.Kannada, "kn"},
	{unicode.Malayalam, "ml"},
	{unicode.Gujarati, "gu"},
	{unicode.Gurmukhi, "pa"},
	{unicode.Arabic, "ur"},
}

// DetectLanguage guesses the language of text from its dominant script.
// Latin-script text maps to "en" (covering Hinglish, which is replied to
// in English by convention).  Text with no letters at all returns
// fallback.
func DetectLanguage(text, fallback string) string {
	counts := make(map[string]int, 4)
	latin := 0
	letters := 0

	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if unicode.Is(unicode.Latin, r) {
			latin++
			continue
		}
		for _, s := range scriptLanguages {
			if unicode.Is(s.script, r) {
				counts[s.lang]++
				break
			}
		}
	}

	if letters == 0 {
		return fallback
	}

	best, bestCount := "", 0
	for lang, n := range counts {
		if n > bestCount {
			best, bestCount = lang, n
		}
	}
	if bestCount > latin {
		return best
	}
	if latin > 0 {
		return "en"
	}
	return fallback
}
