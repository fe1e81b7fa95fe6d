package service

import "carlton/internal/lexicon"

// DetectLanguage returns "ar" when text contains any rune from the Arabic or
// Arabic Supplement blocks and "en" otherwise, including for empty text.
func DetectLanguage(text string) string {
	for _, r := range text {
		if (r >= 0x0600 && r <= 0x06FF) || (r >= 0x0750 && r <= 0x077F) {
			return lexicon.Arabic
		}
	}
	return lexicon.English
}

// ResolveLanguage picks the working language for a query. A declared "ar"
// is honoured as is; "en", "auto", empty or unknown values defer to detection,
// so Arabic text is always treated as Arabic.
func ResolveLanguage(declared, text string) string {
	if declared == lexicon.Arabic {
		return lexicon.Arabic
	}
	return DetectLanguage(text)
}
