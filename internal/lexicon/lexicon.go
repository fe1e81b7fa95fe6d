// Package lexicon loads the bilingual vocabulary that drives topic detection,
// facet extraction and the templated replies.
//
// The lexicon is read once at startup and is never mutated afterwards, so a
// *Lexicon can be shared freely between goroutines.
package lexicon

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed lexicon.yaml
var embedded []byte

// Language codes understood by the lexicon.
const (
	English = "en"
	Arabic  = "ar"
)

// Entry maps one canonical value to the surface forms that select it.
type Entry struct {
	Key   string   `yaml:"key"`
	Terms []string `yaml:"terms"`
}

// Matches reports whether any term is contained in text.
func (e Entry) Matches(text string) bool {
	for _, term := range e.Terms {
		if term != "" && strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// Table is a set of ordered entries per language plus a dialect fallback pass.
type Table struct {
	EN      []Entry `yaml:"en"`
	AR      []Entry `yaml:"ar"`
	Dialect []Entry `yaml:"dialect"`
}

// For returns the entries for lang. Anything that is not Arabic uses English.
func (t Table) For(lang string) []Entry {
	if lang == Arabic {
		return t.AR
	}
	return t.EN
}

// Text is a string available in both languages.
type Text struct {
	EN string `yaml:"en"`
	AR string `yaml:"ar"`
}

// In returns the text for lang, falling back to English when the Arabic copy is empty.
func (t Text) In(lang string) string {
	if lang == Arabic && t.AR != "" {
		return t.AR
	}
	return t.EN
}

// TextList is a list of strings available in both languages.
type TextList struct {
	EN []string `yaml:"en"`
	AR []string `yaml:"ar"`
}

// In returns the list for lang, falling back to English.
func (t TextList) In(lang string) []string {
	if lang == Arabic && len(t.AR) > 0 {
		return t.AR
	}
	return t.EN
}

// Area is a canonical service area.
type Area struct {
	Name    string   `yaml:"name"`
	Arabic  string   `yaml:"arabic"`
	EN      []string `yaml:"en"`
	AR      []string `yaml:"ar"`
	Blurb   *Text    `yaml:"blurb"`
	Insight *Text    `yaml:"insight"`
}

// Button is a quick-reply option offered in chat.
type Button struct {
	Action string `yaml:"action"`
	Value  string `yaml:"value"`
	Text   Text   `yaml:"text"`
}

// Redirect holds the pools used to steer off-topic conversations back.
type Redirect struct {
	Openers      TextList `yaml:"openers"`
	Transitions  TextList `yaml:"transitions"`
	Benefits     TextList `yaml:"benefits"`
	Expressions  []string `yaml:"expressions"`
	ServiceAreas []string `yaml:"service_areas"`
	Template     Text     `yaml:"template"`
	Prompt       string   `yaml:"prompt"`
}

// Chat holds the fixed replies of the chat flow.
type Chat struct {
	Welcome        Text            `yaml:"welcome"`
	NoResults      Text            `yaml:"no_results"`
	Found          Text            `yaml:"found"`
	Recommend      Text            `yaml:"recommend_prompt"`
	Apology        Text            `yaml:"apology"`
	SystemPrompt   Text            `yaml:"system_prompt"`
	InsightHeading Text            `yaml:"insight_heading"`
	Buttons        map[string]Text `yaml:"buttons"`
	WhatsApp       WhatsApp        `yaml:"whatsapp"`
}

// WhatsApp holds the prefilled message bodies for wa.me links.
type WhatsApp struct {
	General  Text `yaml:"general"`
	Property Text `yaml:"property"`
}

// Button returns the label for a chat action, or the action name itself.
func (c Chat) Button(action, lang string) string {
	if t, ok := c.Buttons[action]; ok {
		return t.In(lang)
	}
	return action
}

// Lexicon is the complete vocabulary.
type Lexicon struct {
	TopicKeywords         []string `yaml:"topic_keywords"`
	PropertyQueryKeywords []string `yaml:"property_query_keywords"`
	PropertyTypes         Table    `yaml:"property_types"`
	Purposes              Table    `yaml:"purposes"`
	Amenities             Table    `yaml:"amenities"`
	Areas                 []Area   `yaml:"areas"`
	AreaAliases           []Entry  `yaml:"area_aliases"`
	GeneralInsight        Text     `yaml:"general_insight"`
	Redirect              Redirect `yaml:"redirect"`
	Topics                TextList `yaml:"topics"`
	AnalysisPrompt        string   `yaml:"analysis_prompt"`
	LocationButtons       []string `yaml:"location_buttons"`
	TypeButtons           []Button `yaml:"type_buttons"`
	PurposeButtons        []Button `yaml:"purpose_buttons"`
	Chat                  Chat     `yaml:"chat"`

	areaIndex map[string]int
}

// Default returns the embedded lexicon.
func Default() (*Lexicon, error) {
	return Parse(embedded)
}

// Load reads the lexicon from path, or returns the embedded one when path is empty.
func Load(path string) (*Lexicon, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon %s: %w", path, err)
	}
	return Parse(data)
}

// MustDefault is Default for package-level initialisation and tests.
func MustDefault() *Lexicon {
	lex, err := Default()
	if err != nil {
		panic(err)
	}
	return lex
}

// Parse decodes and validates a lexicon document.
func Parse(data []byte) (*Lexicon, error) {
	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon: %w", err)
	}
	lex.normalize()
	if err := lex.validate(); err != nil {
		return nil, fmt.Errorf("invalid lexicon: %w", err)
	}
	return &lex, nil
}

// normalize lowercases every matching term once so lookups can compare
// against lowercased input. Arabic has no case and is unaffected.
func (l *Lexicon) normalize() {
	lowerAll(l.TopicKeywords)
	lowerAll(l.PropertyQueryKeywords)
	for _, t := range []*Table{&l.PropertyTypes, &l.Purposes, &l.Amenities} {
		lowerEntries(t.EN)
		lowerEntries(t.AR)
		lowerEntries(t.Dialect)
	}
	lowerEntries(l.AreaAliases)

	l.areaIndex = make(map[string]int, len(l.Areas))
	for i := range l.Areas {
		lowerAll(l.Areas[i].EN)
		lowerAll(l.Areas[i].AR)
		l.areaIndex[l.Areas[i].Name] = i
	}
}

func (l *Lexicon) validate() error {
	if len(l.TopicKeywords) == 0 {
		return fmt.Errorf("topic_keywords is empty")
	}
	if len(l.Areas) == 0 {
		return fmt.Errorf("areas is empty")
	}
	if len(l.areaIndex) != len(l.Areas) {
		return fmt.Errorf("duplicate area names")
	}
	for _, alias := range l.AreaAliases {
		if _, ok := l.areaIndex[alias.Key]; !ok {
			return fmt.Errorf("area alias %q does not name a known area", alias.Key)
		}
	}
	for _, name := range l.Redirect.ServiceAreas {
		area, ok := l.Area(name)
		if !ok {
			return fmt.Errorf("service area %q does not name a known area", name)
		}
		if area.Blurb == nil {
			return fmt.Errorf("service area %q has no blurb", name)
		}
	}
	for _, name := range l.LocationButtons {
		if _, ok := l.areaIndex[name]; !ok {
			return fmt.Errorf("location button %q does not name a known area", name)
		}
	}
	r := l.Redirect
	if len(r.Openers.EN) == 0 || len(r.Openers.AR) == 0 ||
		len(r.Transitions.EN) == 0 || len(r.Transitions.AR) == 0 ||
		len(r.Expressions) == 0 || len(r.ServiceAreas) == 0 {
		return fmt.Errorf("redirect pools must not be empty")
	}
	if r.Template.EN == "" || r.Template.AR == "" {
		return fmt.Errorf("redirect template must exist in both languages")
	}
	return nil
}

// Area looks up a canonical area by name.
func (l *Lexicon) Area(name string) (Area, bool) {
	i, ok := l.areaIndex[name]
	if !ok {
		return Area{}, false
	}
	return l.Areas[i], true
}

// AreaName returns the display name of a canonical area in lang.
// Unknown names are returned unchanged.
func (l *Lexicon) AreaName(name, lang string) string {
	if lang != Arabic {
		return name
	}
	if area, ok := l.Area(name); ok && area.Arabic != "" {
		return area.Arabic
	}
	return name
}

// Insight returns the market insight for an area, or the general one.
func (l *Lexicon) Insight(area, lang string) string {
	if a, ok := l.Area(area); ok && a.Insight != nil {
		return a.Insight.In(lang)
	}
	return l.GeneralInsight.In(lang)
}

func lowerAll(terms []string) {
	for i, t := range terms {
		terms[i] = strings.ToLower(strings.TrimSpace(t))
	}
}

func lowerEntries(entries []Entry) {
	for i := range entries {
		lowerAll(entries[i].Terms)
	}
}
