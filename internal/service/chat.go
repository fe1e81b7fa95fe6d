package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/rs/zerolog/log"

	"carlton/internal/lexicon"
	"carlton/internal/metrics"
	"carlton/internal/model"
	"carlton/internal/utils"
)

const (
	insightThreshold   = 0.7
	promptHistoryTurns = 3
	descriptionLength  = 300
	listingsSiteBase   = "https://listings.icarlton.com"
)

// TurnRecorder persists chat activity. Implementations must be safe for
// concurrent use; recording happens off the request path.
type TurnRecorder interface {
	LogChatTurn(ctx context.Context, entry model.ChatLog) error
	LogShortlist(ctx context.Context, sessionID, listingID string) error
}

// ChatOptions tunes the chat flow
type ChatOptions struct {
	MaxResults       int
	MaxHistory       int
	GeneratorTimeout time.Duration
	WhatsAppNumber   string
	Phone            string
	Email            string
}

// ChatDeps are the collaborators of a ChatService. Images, Recorder,
// Generator and Random may be nil.
type ChatDeps struct {
	Lexicon   *lexicon.Lexicon
	Analyzer  *Analyzer
	Redirect  *RedirectGenerator
	Ranker    *Ranker
	Listings  ListingSource
	Images    ImageSource
	Sessions  *SessionStore
	Recorder  TurnRecorder
	Generator TextGenerator
	Random    Randomizer
}

// ChatService runs one conversational turn: analyse, redirect or search,
// then record the turn in the session.
type ChatService struct {
	ChatDeps
	opts      ChatOptions
	templates map[string]*template.Template
	now       func() time.Time
}

// NewChatService creates a chat service
func NewChatService(deps ChatDeps, opts ChatOptions) (*ChatService, error) {
	if deps.Lexicon == nil || deps.Analyzer == nil || deps.Redirect == nil ||
		deps.Ranker == nil || deps.Listings == nil || deps.Sessions == nil {
		return nil, errors.New("chat service: missing required dependency")
	}
	if deps.Random == nil {
		deps.Random = NewTimeRandomizer()
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = 3
	}

	chat := deps.Lexicon.Chat
	sources := map[string]lexicon.Text{
		"no_results": chat.NoResults,
		"found":      chat.Found,
		"whatsapp":   chat.WhatsApp.Property,
		"recommend":  chat.Recommend,
	}
	templates := make(map[string]*template.Template, 2*len(sources))
	for name, text := range sources {
		for _, lang := range []string{lexicon.English, lexicon.Arabic} {
			t, err := parseTemplate(name+"_"+lang, text.In(lang))
			if err != nil {
				return nil, err
			}
			templates[name+"_"+lang] = t
		}
	}

	return &ChatService{
		ChatDeps:  deps,
		opts:      opts,
		templates: templates,
		now:       time.Now,
	}, nil
}

// ProcessMessage answers one user message. It always returns a response;
// internal failures produce an apology of type "error".
func (s *ChatService) ProcessMessage(ctx context.Context, req *model.ChatRequest) *model.ChatResponse {
	start := s.now()

	resp, err := s.process(ctx, req, start)
	if err != nil {
		log.Error().Err(err).Str("session_id", req.SessionID).Msg("chat turn failed")
		lang := ResolveLanguage(req.Language, req.Message)
		resp = &model.ChatResponse{
			SessionID:     req.SessionID,
			Message:       s.Lexicon.Chat.Apology.In(lang),
			Language:      lang,
			Type:          model.ChatTypeError,
			ActionButtons: s.ContactButtons(nil, lang),
			Properties:    []model.PropertyCard{},
		}
	}

	elapsed := s.now().Sub(start)
	resp.Took = elapsed.Milliseconds()
	metrics.ObserveChatTurn(resp.Type, elapsed)
	return resp
}

func (s *ChatService) process(ctx context.Context, req *model.ChatRequest, start time.Time) (*model.ChatResponse, error) {
	message := ApplyAction(req.Message, req.Action)
	analysis := s.Analyzer.Parse(message, req.Language)
	lang := analysis.Language

	sess, err := s.Sessions.Resolve(ctx, req.SessionID, lang)
	if err != nil {
		return nil, err
	}

	resp := &model.ChatResponse{
		SessionID:         sess.ID,
		Language:          lang,
		IsRealEstateQuery: analysis.IsRealEstateQuery,
		Confidence:        analysis.Confidence,
		Properties:        []model.PropertyCard{},
	}

	switch {
	case !analysis.IsRealEstateQuery:
		redirect := s.Redirect.Redirect(ctx, message, lang)
		resp.Type = model.ChatTypeRedirect
		resp.Message = redirect.ResponseText
		resp.SuggestedTopics = redirect.SuggestedTopics
		resp.Locations = redirect.Locations
		resp.ActionButtons = s.LocationButtons(lang)

	case analysis.FacetCount() > 0 || s.Analyzer.Extractor().IsPropertyQuery(message):
		if err := s.search(ctx, message, analysis, resp); err != nil {
			return nil, err
		}

	default:
		resp.Type = model.ChatTypeConversation
		resp.Message = s.converse(ctx, sess, message, lang)
		resp.ActionButtons = s.LocationButtons(lang)
	}

	if analysis.IsRealEstateQuery && analysis.Confidence > insightThreshold {
		location := ""
		if analysis.Location != nil {
			location = *analysis.Location
		}
		resp.Insight = s.Lexicon.Insight(location, lang)
		resp.Message += "\n\n" + s.Lexicon.Chat.InsightHeading.In(lang) + " " + resp.Insight
	}

	latency := s.now().Sub(start)
	sess.Language = lang
	sess.AddTurn(model.Turn{
		User:      req.Message,
		Assistant: resp.Message,
		Language:  lang,
		Criteria:  resp.SearchCriteria,
		Timestamp: s.now(),
		LatencyMS: latency.Milliseconds(),
	}, s.opts.MaxHistory)
	if err := s.Sessions.Save(ctx, sess); err != nil {
		log.Warn().Err(err).Str("session_id", sess.ID).Msg("failed to save session")
	}

	s.record(model.ChatLog{
		SessionID:    sess.ID,
		Query:        message,
		Language:     lang,
		Analysis:     analysis,
		ResponseType: resp.Type,
		ResultCount:  len(resp.Properties),
		ListingIDs:   cardIDs(resp.Properties),
		LatencyMS:    latency.Milliseconds(),
		CreatedAt:    s.now(),
	})
	return resp, nil
}

func (s *ChatService) search(ctx context.Context, message string, analysis *model.Analysis, resp *model.ChatResponse) error {
	lang := analysis.Language
	resp.Type = model.ChatTypeResults
	resp.SearchCriteria = &model.SearchCriteria{
		Location:     analysis.Location,
		PropertyType: analysis.PropertyType,
		Budget:       analysis.Budget,
		Purpose:      analysis.Purpose,
	}

	listings, err := s.Listings.FetchListings(ctx)
	if err != nil {
		return fmt.Errorf("failed to load listings: %w", err)
	}
	ranked := s.Ranker.Rank(FilterListings(listings, QueryFromAnalysis(analysis)), analysis)
	if len(ranked) > s.opts.MaxResults {
		ranked = ranked[:s.opts.MaxResults]
	}

	for _, sl := range ranked {
		resp.Properties = append(resp.Properties, s.BuildCard(ctx, sl, analysis, lang))
	}

	resp.Message, _ = s.Recommend(ctx, message, resp.Properties, lang)
	if len(resp.Properties) == 0 {
		resp.ActionButtons = s.LocationButtons(lang)
		return nil
	}

	resp.ActionButtons = s.ContactButtons(&resp.Properties[0], lang)
	if analysis.Location != nil && analysis.PropertyType == nil && analysis.Purpose == nil {
		resp.ActionButtons = append(resp.ActionButtons, s.TypeButtons(lang)...)
		resp.ActionButtons = append(resp.ActionButtons, s.PurposeButtons(lang)...)
	}
	resp.ActionButtons = append(resp.ActionButtons,
		model.ActionButton{Text: s.Lexicon.Chat.Button("new_search", lang), Action: "new_search"},
		model.ActionButton{Text: s.Lexicon.Chat.Button("request_info", lang), Action: "request_info"},
	)
	return nil
}

// Recommend writes the message that introduces a set of results. It makes
// one generator attempt over the cards and falls back to the fixed summary;
// generated reports which one was used.
func (s *ChatService) Recommend(ctx context.Context, query string, cards []model.PropertyCard, lang string) (text string, generated bool) {
	if len(cards) == 0 {
		return render(s.templates["no_results_"+lang], struct{ Phone, Email string }{s.opts.Phone, s.opts.Email}), false
	}

	if s.Generator != nil {
		lines := make([]string, 0, len(cards))
		for i, c := range cards {
			lines = append(lines, fmt.Sprintf("%d. %s - BHD %s", i+1, c.Title, strconv.FormatFloat(c.Price, 'f', -1, 64)))
		}
		prompt := render(s.templates["recommend_"+lang], struct {
			Query string
			Lines []string
		}{query, lines})

		out, err := generateOnce(ctx, s.Generator, s.opts.GeneratorTimeout, prompt)
		if err == nil {
			return out, true
		}
		log.Warn().Err(err).Msg("recommendation generation failed, using summary")
	}

	expression := ""
	if lang == lexicon.Arabic {
		expression = pick(s.Random, s.Lexicon.Redirect.Expressions)
	}
	return render(s.templates["found_"+lang], struct {
		Count      int
		Expression string
	}{len(cards), expression}), false
}

// converse answers a general on-topic message. Generated text is used when
// available; otherwise the fixed welcome.
func (s *ChatService) converse(ctx context.Context, sess *model.Session, message, lang string) string {
	if s.Generator != nil {
		text, err := generateOnce(ctx, s.Generator, s.opts.GeneratorTimeout, s.BuildPrompt(message, sess.History, lang))
		if err == nil {
			return text
		}
		log.Warn().Err(err).Msg("chat reply generation failed, using welcome message")
	}
	return s.Lexicon.Chat.Welcome.In(lang)
}

func (s *ChatService) record(entry model.ChatLog) {
	if s.Recorder == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Recorder.LogChatTurn(ctx, entry); err != nil {
			log.Warn().Err(err).Str("session_id", entry.SessionID).Msg("failed to log chat turn")
		}
	}()
}

// Shortlist records interest in a listing for an existing session.
func (s *ChatService) Shortlist(ctx context.Context, sessionID, listingID string) (*model.ShortlistResponse, error) {
	sess, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.AddToShortlist(listingID)
	sess.UpdatedAt = s.now()
	if err := s.Sessions.Save(ctx, sess); err != nil {
		return nil, err
	}

	if s.Recorder != nil {
		if err := s.Recorder.LogShortlist(ctx, sessionID, listingID); err != nil {
			log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to log shortlist")
		}
	}

	lang := sess.Language
	text := s.Lexicon.Chat.WhatsApp.General.In(lang) + " #" + listingID
	return &model.ShortlistResponse{
		SessionID:   sessionID,
		Shortlist:   sess.Shortlist,
		WhatsAppURL: WhatsAppURL(s.opts.WhatsAppNumber, text),
		Timestamp:   sess.UpdatedAt,
	}, nil
}

// SessionStatus summarises a stored session.
func (s *ChatService) SessionStatus(ctx context.Context, sessionID string) (*model.SessionStatus, error) {
	sess, err := s.Sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	status := sess.Status()
	return &status, nil
}

// ApplyAction rewrites the message for a quick-reply button press.
func ApplyAction(message string, action *model.ChatAction) string {
	if action == nil || action.Value == "" {
		return message
	}
	switch {
	case action.Name == "search_location":
		return "Properties in " + action.Value
	case strings.HasPrefix(action.Name, "type_"):
		return strings.TrimSpace(message + " " + action.Value)
	case strings.HasPrefix(action.Name, "purpose_"):
		return strings.TrimSpace(message + " for " + action.Value)
	}
	return message
}

// BuildPrompt assembles a generator prompt from the system text, the last
// few turns and the new message.
func (s *ChatService) BuildPrompt(message string, history []model.Turn, lang string) string {
	var sb strings.Builder
	sb.WriteString(s.Lexicon.Chat.SystemPrompt.In(lang))
	sb.WriteString("\n\n")

	if len(history) > promptHistoryTurns {
		history = history[len(history)-promptHistoryTurns:]
	}
	if len(history) > 0 {
		sb.WriteString("Conversation History:\n")
		for _, t := range history {
			fmt.Fprintf(&sb, "User: %s\nAssistant: %s\n", t.User, t.Assistant)
		}
		sb.WriteString("\n")
	}
	fmt.Fprintf(&sb, "User: %s\nAssistant:", message)
	return sb.String()
}

// LocationButtons returns the area quick replies in lang.
func (s *ChatService) LocationButtons(lang string) []model.ActionButton {
	buttons := make([]model.ActionButton, 0, len(s.Lexicon.LocationButtons))
	for _, name := range s.Lexicon.LocationButtons {
		buttons = append(buttons, model.ActionButton{
			Text:   "⭐ " + s.Lexicon.AreaName(name, lang),
			Action: "search_location",
			Value:  name,
		})
	}
	return buttons
}

// TypeButtons returns the property type quick replies in lang.
func (s *ChatService) TypeButtons(lang string) []model.ActionButton {
	return toActionButtons(s.Lexicon.TypeButtons, lang)
}

// PurposeButtons returns the purpose quick replies in lang.
func (s *ChatService) PurposeButtons(lang string) []model.ActionButton {
	return toActionButtons(s.Lexicon.PurposeButtons, lang)
}

// ContactButtons returns WhatsApp, phone and email buttons. With a card the
// WhatsApp message carries the listing details.
func (s *ChatService) ContactButtons(card *model.PropertyCard, lang string) []model.ActionButton {
	whatsapp := model.ActionButton{
		Text:       s.Lexicon.Chat.Button("whatsapp", lang),
		Action:     "whatsapp_contact",
		URL:        WhatsAppURL(s.opts.WhatsAppNumber, s.Lexicon.Chat.WhatsApp.General.In(lang)),
		IsExternal: true,
	}
	if card != nil {
		whatsapp.Text = s.Lexicon.Chat.Button("whatsapp_property", lang)
		whatsapp.URL = card.WhatsAppURL
	}
	return []model.ActionButton{
		whatsapp,
		{Text: s.Lexicon.Chat.Button("phone_contact", lang), Action: "phone_contact", Value: s.opts.Phone},
		{Text: s.Lexicon.Chat.Button("email_contact", lang), Action: "email_contact", Value: s.opts.Email},
	}
}

// BuildCard presents a ranked listing in lang.
func (s *ChatService) BuildCard(ctx context.Context, sl model.ScoredListing, a *model.Analysis, lang string) model.PropertyCard {
	l := sl.Listing
	id := string(l.ID)
	purpose := ""
	if a != nil && a.Purpose != nil {
		purpose = *a.Purpose
	}

	card := model.PropertyCard{
		ID:             id,
		Title:          listingTitle(l, purpose, lang),
		Price:          l.PriceFor(purpose),
		Size:           strconv.FormatFloat(float64(l.SizeM2), 'f', -1, 64) + " sqm",
		Bedrooms:       int(l.Bedrooms),
		Bathrooms:      int(l.Bathrooms),
		Type:           strings.ToLower(l.TypeEN),
		Features:       []string(l.FacilityNamesEN),
		Description:    utils.Truncate(utils.CleanHTML(l.DetailsEN), descriptionLength),
		URL:            l.PropertyURLEN,
		ContactName:    l.ContactPerson,
		ContactPhone:   l.ContactPhone,
		RelevanceScore: sl.RelevanceScore,
	}
	if a != nil && a.PropertyType != nil {
		card.Type = *a.PropertyType
	}
	if card.Type == "" {
		card.Type = "property"
	}
	location := firstNonEmpty(l.AreaEN, l.CityEN, "Bahrain")

	if lang == lexicon.Arabic {
		card.Features = []string(l.FacilityNamesAR)
		card.Description = utils.Truncate(utils.CleanHTML(l.DetailsAR), descriptionLength)
		card.URL = l.PropertyURLAR
		location = firstNonEmpty(l.AreaAR, l.CityAR, "البحرين")
	}
	if card.Features == nil {
		card.Features = []string{}
	}
	if card.Description == "" {
		if lang == lexicon.Arabic {
			card.Description = firstNonEmpty(l.TypeAR, "عقار") + " جميل في " + location
		} else {
			card.Description = "Beautiful " + firstNonEmpty(l.TypeEN, "property") + " in " + location
		}
	}
	if card.URL == "" {
		card.URL = fmt.Sprintf("%s/%s/property/%s", listingsSiteBase, lang, id)
	}
	if card.ContactName == "" {
		card.ContactName = "Carlton Team"
	}
	if card.ContactPhone == "" {
		card.ContactPhone = s.opts.Phone
	}

	card.Images = []string{}
	if s.Images != nil {
		images, err := s.Images.PropertyImages(ctx, id)
		if err != nil {
			log.Warn().Err(err).Str("listing_id", id).Msg("failed to load listing images")
		} else {
			card.Images = images
		}
	}

	text := render(s.templates["whatsapp_"+lang], struct {
		Title, Location, Size, URL string
		Price                      string
		Bedrooms, Bathrooms        int
	}{
		Title:     card.Title,
		Location:  location,
		Size:      card.Size,
		URL:       card.URL,
		Price:     strconv.FormatFloat(card.Price, 'f', -1, 64),
		Bedrooms:  card.Bedrooms,
		Bathrooms: card.Bathrooms,
	})
	card.WhatsAppURL = WhatsAppURL(s.opts.WhatsAppNumber, text)
	return card
}

// WhatsAppURL builds a wa.me link with a prefilled message.
func WhatsAppURL(number, text string) string {
	base := "https://wa.me/" + number
	if text == "" {
		return base
	}
	return base + "?text=" + strings.ReplaceAll(url.QueryEscape(text), "+", "%20")
}

func listingTitle(l model.Listing, purpose, lang string) string {
	if lang == lexicon.Arabic {
		forAR := l.ForAR
		if forAR == "" {
			forAR = "للبيع"
			if purpose == "rent" {
				forAR = "للإيجار"
			}
		}
		return fmt.Sprintf("%s %s في %s", firstNonEmpty(l.TypeAR, "عقار"), forAR, firstNonEmpty(l.AreaAR, l.CityAR, "البحرين"))
	}
	return fmt.Sprintf("%s for %s in %s", firstNonEmpty(l.TypeEN, "Property"), firstNonEmpty(l.ForEN, purpose, "sale"), firstNonEmpty(l.AreaEN, l.CityEN, "Bahrain"))
}

func toActionButtons(buttons []lexicon.Button, lang string) []model.ActionButton {
	out := make([]model.ActionButton, 0, len(buttons))
	for _, b := range buttons {
		out = append(out, model.ActionButton{Text: b.Text.In(lang), Action: b.Action, Value: b.Value})
	}
	return out
}

func cardIDs(cards []model.PropertyCard) []string {
	ids := make([]string, 0, len(cards))
	for _, c := range cards {
		ids = append(ids, c.ID)
	}
	return ids
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
