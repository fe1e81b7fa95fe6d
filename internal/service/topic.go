package service

import (
	"strings"

	"carlton/internal/lexicon"
	"carlton/internal/utils"
)

// TopicClassifier decides whether a message is about real estate using a
// fixed bilingual keyword list. It favours recall: any keyword hit counts.
type TopicClassifier struct {
	keywords []string
}

// NewTopicClassifier creates a classifier over the lexicon's topic keywords
func NewTopicClassifier(lex *lexicon.Lexicon) *TopicClassifier {
	return &TopicClassifier{keywords: lex.TopicKeywords}
}

// IsRealEstateRelated reports whether any keyword occurs in text, compared
// against both the raw and the lowercased message.
func (c *TopicClassifier) IsRealEstateRelated(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	normalized := utils.NormalizeText(text)
	for _, kw := range c.keywords {
		if strings.Contains(text, kw) || strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

// MatchedKeywords lists every keyword found in text, in lexicon order.
func (c *TopicClassifier) MatchedKeywords(text string) []string {
	normalized := utils.NormalizeText(text)
	var found []string
	for _, kw := range c.keywords {
		if strings.Contains(text, kw) || strings.Contains(normalized, kw) {
			found = append(found, kw)
		}
	}
	return found
}
