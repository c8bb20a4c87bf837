package prompt

import "unicode"

// Tokenizer estimates how many model tokens a text occupies.
type Tokenizer interface {
	Count(text string) int
}

// RuneEstimator approximates token counts without a model vocabulary: every
// Han, Hiragana, Katakana or Hangul rune is one token, and other runes count
// as a quarter token each, rounded up per run.
type RuneEstimator struct{}

func (RuneEstimator) Count(text string) int {
	tokens, other := 0, 0
	flush := func() {
		tokens += (other + 3) / 4
		other = 0
	}
	for _, r := range text {
		if isWideRune(r) {
			flush()
			tokens++
			continue
		}
		other++
	}
	flush()
	return tokens
}

func isWideRune(r rune) bool {
	return unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) ||
		(r >= 0x3000 && r <= 0x303F) || (r >= 0xFF00 && r <= 0xFFEF)
}
