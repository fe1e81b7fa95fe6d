package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carlton/internal/cache"
	"carlton/internal/model"
)

type fakeRecorder struct {
	mu         sync.Mutex
	turns      []model.ChatLog
	shortlists []string
}

func (r *fakeRecorder) LogChatTurn(_ context.Context, entry model.ChatLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, entry)
	return nil
}

func (r *fakeRecorder) LogShortlist(_ context.Context, _, listingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shortlists = append(r.shortlists, listingID)
	return nil
}

func (r *fakeRecorder) turnCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.turns)
}

type chatFixture struct {
	svc      *ChatService
	source   *fakeSource
	recorder *fakeRecorder
}

func newChatFixture(t *testing.T, source ListingSource, gen TextGenerator) chatFixture {
	t.Helper()

	mem := cache.NewMemoryCache(100, 0)
	t.Cleanup(func() { _ = mem.Close() })

	analyzer := newTestAnalyzer(t, nil)
	redirect := newTestRedirect(t, nil, NewRandomizer(1))
	recorder := &fakeRecorder{}

	svc, err := NewChatService(ChatDeps{
		Lexicon:   testLexicon,
		Analyzer:  analyzer,
		Redirect:  redirect,
		Ranker:    NewRanker(DefaultWeights()),
		Listings:  source,
		Images:    fakeImages{},
		Sessions:  NewSessionStore(mem, time.Hour),
		Recorder:  recorder,
		Generator: gen,
		Random:    NewRandomizer(1),
	}, ChatOptions{
		MaxResults:       3,
		MaxHistory:       20,
		GeneratorTimeout: 50 * time.Millisecond,
		WhatsAppNumber:   "97317553300",
		Phone:            "+973 1755 3300",
		Email:            "info@icarlton.com",
	})
	require.NoError(t, err)

	fs, _ := source.(*fakeSource)
	return chatFixture{svc: svc, source: fs, recorder: recorder}
}

func inventory() *fakeSource {
	seef := listing("1", "Seef", "Apartment", "Lease", 95000)
	seef.FacilityNamesEN = model.StringList{"Pool", "Gym"}
	seef.DetailsEN = "<p>Sea&nbsp;view <b>flat</b></p>"

	hidden := listing("3", "Seef", "Apartment", "Lease", 90000)
	hidden.ShowWebsite = "0"

	return &fakeSource{listings: []model.Listing{
		seef,
		listing("2", "Riffa", "Villa", "Sale", 300000),
		hidden,
		listing("4", "Seef", "Villa", "Sale", 400000),
	}}
}

func TestProcessMessage_LocationSearch(t *testing.T) {
	f := newChatFixture(t, inventory(), nil)

	resp := f.svc.ProcessMessage(context.Background(), &model.ChatRequest{
		Message: "Seef",
		Action:  &model.ChatAction{Name: "search_location", Value: "Seef"},
	})

	assert.Equal(t, model.ChatTypeResults, resp.Type)
	assert.True(t, resp.IsRealEstateQuery)
	assert.NotEmpty(t, resp.SessionID)
	require.Len(t, resp.Properties, 2)
	assert.Equal(t, "1", resp.Properties[0].ID)
	assert.Equal(t, "4", resp.Properties[1].ID)
	require.NotNil(t, resp.SearchCriteria)
	assert.Equal(t, "Seef", deref(resp.SearchCriteria.Location))
	assert.InDelta(t, 0.7, resp.Confidence, 1e-9)
	assert.Empty(t, resp.Insight)

	card := resp.Properties[0]
	assert.Equal(t, "Apartment for Lease in Seef", card.Title)
	assert.Equal(t, "Sea view flat", card.Description)
	assert.Equal(t, []string{"https://img.example/1.jpg"}, card.Images)
	assert.Equal(t, "https://listings.icarlton.com/en/property/1", card.URL)
	assert.Equal(t, "Carlton Team", card.ContactName)
	assert.True(t, strings.HasPrefix(card.WhatsAppURL, "https://wa.me/97317553300?text="))

	require.NotEmpty(t, resp.ActionButtons)
	assert.Equal(t, "whatsapp_contact", resp.ActionButtons[0].Action)
	assert.Equal(t, card.WhatsAppURL, resp.ActionButtons[0].URL)
	assert.Equal(t, "new_search", resp.ActionButtons[len(resp.ActionButtons)-2].Action)
	assert.Equal(t, "request_info", resp.ActionButtons[len(resp.ActionButtons)-1].Action)

	// location only: offer type and purpose refinements
	actions := buttonActions(resp.ActionButtons)
	assert.Contains(t, actions, "type_apartment")
	assert.Contains(t, actions, "type_commercial")
	assert.Contains(t, actions, "purpose_buy")
	assert.Contains(t, actions, "purpose_rent")
	assert.Len(t, resp.ActionButtons, 3+len(testLexicon.TypeButtons)+len(testLexicon.PurposeButtons)+2)
}

func buttonActions(buttons []model.ActionButton) []string {
	out := make([]string, 0, len(buttons))
	for _, b := range buttons {
		out = append(out, b.Action)
	}
	return out
}

func TestProcessMessage_RefinedSearchHasNoRefinementButtons(t *testing.T) {
	f := newChatFixture(t, inventory(), nil)

	resp := f.svc.ProcessMessage(context.Background(), &model.ChatRequest{Message: "apartment in Seef"})
	require.NotEmpty(t, resp.Properties)
	actions := buttonActions(resp.ActionButtons)
	assert.NotContains(t, actions, "type_apartment")
	assert.NotContains(t, actions, "purpose_buy")
	assert.Len(t, resp.ActionButtons, 5)
}

func TestProcessMessage_ResultsDoNotWaitOnAnalysisGenerator(t *testing.T) {
	analysisGen := &fakeGenerator{text: `{"propertyType": "villa"}`, delay: 300 * time.Millisecond}
	f := newChatFixture(t, inventory(), nil)
	f.svc.Analyzer = newTestAnalyzer(t, analysisGen)

	resp := f.svc.ProcessMessage(context.Background(), &model.ChatRequest{Message: "villa for sale in Seef"})
	assert.Equal(t, model.ChatTypeResults, resp.Type)
	require.Len(t, resp.Properties, 1)
	assert.Equal(t, "4", resp.Properties[0].ID)
	assert.Equal(t, 0, analysisGen.calls())
	assert.Less(t, resp.Took, int64(300))
}

func TestProcessMessage_GeneratedRecommendation(t *testing.T) {
	gen := &fakeGenerator{text: "The Seef villa suits a growing family."}
	f := newChatFixture(t, inventory(), gen)
	f.svc.Analyzer = newTestAnalyzer(t, gen)

	resp := f.svc.ProcessMessage(context.Background(), &model.ChatRequest{Message: "villa for sale in Seef"})
	require.Len(t, resp.Properties, 1)
	assert.True(t, strings.HasPrefix(resp.Message, "The Seef villa suits a growing family."))

	// one call, and it is the recommendation
	require.Equal(t, 1, gen.calls())
	assert.Contains(t, gen.prompts[0], `"villa for sale in Seef"`)
	assert.Contains(t, gen.prompts[0], "1. Villa for Sale in Seef - BHD 400000")
}

func TestProcessMessage_RecommendationFallsBack(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("model overloaded")}
	f := newChatFixture(t, inventory(), gen)

	resp := f.svc.ProcessMessage(context.Background(), &model.ChatRequest{Message: "villa for sale in Seef"})
	require.Len(t, resp.Properties, 1)
	assert.True(t, strings.HasPrefix(resp.Message, "I found 1 excellent properties"))
	assert.Equal(t, 1, gen.calls())
}

func TestRecommend(t *testing.T) {
	ctx := context.Background()
	cards := []model.PropertyCard{
		{ID: "1", Title: "Apartment for Lease in Seef", Price: 850},
		{ID: "2", Title: "Villa for Sale in Saar", Price: 240000},
	}

	t.Run("generated", func(t *testing.T) {
		gen := &fakeGenerator{text: "  Both suit a young family.  "}
		f := newChatFixture(t, inventory(), gen)

		text, generated := f.svc.Recommend(ctx, "family home", cards, "en")
		assert.True(t, generated)
		assert.Equal(t, "Both suit a young family.", text)
		require.Len(t, gen.prompts, 1)
		assert.Contains(t, gen.prompts[0], "1. Apartment for Lease in Seef - BHD 850\n2. Villa for Sale in Saar - BHD 240000")
	})

	t.Run("timeout falls back", func(t *testing.T) {
		gen := &fakeGenerator{text: "late", delay: time.Second}
		f := newChatFixture(t, inventory(), gen)

		text, generated := f.svc.Recommend(ctx, "family home", cards, "en")
		assert.False(t, generated)
		assert.True(t, strings.HasPrefix(text, "I found 2 excellent properties"))
	})

	t.Run("arabic summary", func(t *testing.T) {
		f := newChatFixture(t, inventory(), nil)

		text, generated := f.svc.Recommend(ctx, "بيت", cards, "ar")
		assert.False(t, generated)
		assert.True(t, strings.HasPrefix(text, "لقيتلك 2 عقارات"))
	})

	t.Run("no cards", func(t *testing.T) {
		gen := &fakeGenerator{text: "unused"}
		f := newChatFixture(t, inventory(), gen)

		text, generated := f.svc.Recommend(ctx, "family home", nil, "en")
		assert.False(t, generated)
		assert.Contains(t, text, "+973 1755 3300")
		assert.Equal(t, 0, gen.calls())
	})
}

func TestProcessMessage_InsightAboveThreshold(t *testing.T) {
	f := newChatFixture(t, inventory(), nil)

	resp := f.svc.ProcessMessage(context.Background(), &model.ChatRequest{Message: "apartment in Seef"})
	assert.Equal(t, model.ChatTypeResults, resp.Type)
	assert.InDelta(t, 0.9, resp.Confidence, 1e-9)
	assert.Equal(t, testLexicon.Insight("Seef", "en"), resp.Insight)
	assert.Contains(t, resp.Message, resp.Insight)
	require.Len(t, resp.Properties, 1)
	assert.Equal(t, "1", resp.Properties[0].ID)
}

func TestProcessMessage_NoResults(t *testing.T) {
	f := newChatFixture(t, inventory(), nil)

	resp := f.svc.ProcessMessage(context.Background(), &model.ChatRequest{Message: "villa in Zinj"})
	assert.Equal(t, model.ChatTypeResults, resp.Type)
	assert.Empty(t, resp.Properties)
	assert.Contains(t, resp.Message, "+973 1755 3300")
	assert.Contains(t, resp.Message, "info@icarlton.com")
	require.Len(t, resp.ActionButtons, len(testLexicon.LocationButtons))
	assert.Equal(t, "search_location", resp.ActionButtons[0].Action)
}

func TestProcessMessage_OffTopicRedirects(t *testing.T) {
	f := newChatFixture(t, inventory(), nil)

	resp := f.svc.ProcessMessage(context.Background(), &model.ChatRequest{Message: "What's the weather like today?"})
	assert.Equal(t, model.ChatTypeRedirect, resp.Type)
	assert.False(t, resp.IsRealEstateQuery)
	assert.NotEmpty(t, resp.Message)
	assert.NotEmpty(t, resp.Locations)
	assert.NotEmpty(t, resp.SuggestedTopics)
	assert.Len(t, resp.ActionButtons, len(testLexicon.LocationButtons))
	assert.Equal(t, 0, f.source.calls)
}

func TestProcessMessage_Conversation(t *testing.T) {
	t.Run("welcome without generator", func(t *testing.T) {
		f := newChatFixture(t, inventory(), nil)

		resp := f.svc.ProcessMessage(context.Background(), &model.ChatRequest{Message: "tell me about the real estate market"})
		assert.Equal(t, model.ChatTypeConversation, resp.Type)
		assert.Equal(t, testLexicon.Chat.Welcome.EN, resp.Message)
	})

	t.Run("generated reply", func(t *testing.T) {
		gen := &fakeGenerator{text: "The market is steady this year."}
		f := newChatFixture(t, inventory(), gen)

		resp := f.svc.ProcessMessage(context.Background(), &model.ChatRequest{Message: "tell me about the real estate market"})
		assert.Equal(t, "The market is steady this year.", resp.Message)
		require.Len(t, gen.prompts, 1)
		assert.Contains(t, gen.prompts[0], "User: tell me about the real estate market")
	})

	t.Run("arabic welcome", func(t *testing.T) {
		f := newChatFixture(t, inventory(), nil)

		resp := f.svc.ProcessMessage(context.Background(), &model.ChatRequest{Message: "سعر السوق", Language: "ar"})
		assert.Equal(t, "ar", resp.Language)
		assert.Equal(t, testLexicon.Chat.Welcome.AR, resp.Message)
	})
}

func TestProcessMessage_ListingFailureApologises(t *testing.T) {
	f := newChatFixture(t, &fakeSource{err: errors.New("upstream down")}, nil)

	resp := f.svc.ProcessMessage(context.Background(), &model.ChatRequest{Message: "apartment in Seef"})
	assert.Equal(t, model.ChatTypeError, resp.Type)
	assert.Equal(t, testLexicon.Chat.Apology.EN, resp.Message)
	assert.NotEmpty(t, resp.ActionButtons)
}

func TestProcessMessage_SessionHistory(t *testing.T) {
	f := newChatFixture(t, inventory(), nil)
	ctx := context.Background()

	first := f.svc.ProcessMessage(ctx, &model.ChatRequest{Message: "apartment in Seef"})
	second := f.svc.ProcessMessage(ctx, &model.ChatRequest{SessionID: first.SessionID, Message: "hello"})
	assert.Equal(t, first.SessionID, second.SessionID)

	status, err := f.svc.SessionStatus(ctx, first.SessionID)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Turns)

	assert.Eventually(t, func() bool { return f.recorder.turnCount() == 2 }, time.Second, 10*time.Millisecond)

	_, err = f.svc.SessionStatus(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestProcessMessage_HistoryIsCapped(t *testing.T) {
	f := newChatFixture(t, inventory(), nil)
	f.svc.opts.MaxHistory = 3
	ctx := context.Background()

	sid := ""
	for i := 0; i < 5; i++ {
		resp := f.svc.ProcessMessage(ctx, &model.ChatRequest{SessionID: sid, Message: "hello"})
		sid = resp.SessionID
	}

	sess, err := f.svc.Sessions.Get(ctx, sid)
	require.NoError(t, err)
	assert.Len(t, sess.History, 3)
}

func TestShortlist(t *testing.T) {
	f := newChatFixture(t, inventory(), nil)
	ctx := context.Background()

	resp := f.svc.ProcessMessage(ctx, &model.ChatRequest{Message: "apartment in Seef"})

	out, err := f.svc.Shortlist(ctx, resp.SessionID, "1")
	require.NoError(t, err)
	_, err = f.svc.Shortlist(ctx, resp.SessionID, "1")
	require.NoError(t, err)
	out, err = f.svc.Shortlist(ctx, resp.SessionID, "4")
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "4"}, out.Shortlist)
	assert.True(t, strings.HasPrefix(out.WhatsAppURL, "https://wa.me/97317553300?text="))
	assert.Len(t, f.recorder.shortlists, 3)

	_, err = f.svc.Shortlist(ctx, "unknown", "1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestApplyAction(t *testing.T) {
	tests := []struct {
		name    string
		message string
		action  *model.ChatAction
		want    string
	}{
		{"no action", "hi", nil, "hi"},
		{"location", "ignored", &model.ChatAction{Name: "search_location", Value: "Juffair"}, "Properties in Juffair"},
		{"type", "Properties in Seef", &model.ChatAction{Name: "type_villa", Value: "villa"}, "Properties in Seef villa"},
		{"purpose", "villa in Saar", &model.ChatAction{Name: "purpose_rent", Value: "rent"}, "villa in Saar for rent"},
		{"unknown", "hi", &model.ChatAction{Name: "new_search", Value: "x"}, "hi"},
		{"empty value", "hi", &model.ChatAction{Name: "type_villa"}, "hi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ApplyAction(tt.message, tt.action))
		})
	}
}

func TestBuildPrompt_LastThreeTurns(t *testing.T) {
	f := newChatFixture(t, inventory(), nil)

	history := []model.Turn{
		{User: "one", Assistant: "a1"},
		{User: "two", Assistant: "a2"},
		{User: "three", Assistant: "a3"},
		{User: "four", Assistant: "a4"},
	}
	prompt := f.svc.BuildPrompt("five", history, "en")

	assert.True(t, strings.HasPrefix(prompt, testLexicon.Chat.SystemPrompt.EN))
	assert.NotContains(t, prompt, "User: one")
	assert.Contains(t, prompt, "User: two\nAssistant: a2")
	assert.Contains(t, prompt, "User: four\nAssistant: a4")
	assert.True(t, strings.HasSuffix(prompt, "User: five\nAssistant:"))

	bare := f.svc.BuildPrompt("hi", nil, "ar")
	assert.NotContains(t, bare, "Conversation History")
	assert.True(t, strings.HasPrefix(bare, testLexicon.Chat.SystemPrompt.AR))
}

func TestButtons(t *testing.T) {
	f := newChatFixture(t, inventory(), nil)

	ar := f.svc.LocationButtons("ar")
	require.NotEmpty(t, ar)
	assert.Equal(t, "Juffair", ar[0].Value)
	assert.Equal(t, "⭐ "+testLexicon.AreaName("Juffair", "ar"), ar[0].Text)

	types := f.svc.TypeButtons("en")
	require.Len(t, types, len(testLexicon.TypeButtons))
	assert.Equal(t, "type_apartment", types[0].Action)

	purposes := f.svc.PurposeButtons("ar")
	require.Len(t, purposes, len(testLexicon.PurposeButtons))
	assert.Equal(t, testLexicon.PurposeButtons[0].Text.AR, purposes[0].Text)

	contact := f.svc.ContactButtons(nil, "en")
	require.Len(t, contact, 3)
	assert.True(t, contact[0].IsExternal)
	assert.Equal(t, "+973 1755 3300", contact[1].Value)
	assert.Equal(t, "info@icarlton.com", contact[2].Value)
}

func TestWhatsAppURL(t *testing.T) {
	assert.Equal(t, "https://wa.me/973", WhatsAppURL("973", ""))
	assert.Equal(t, "https://wa.me/973?text=a%20b%26c", WhatsAppURL("973", "a b&c"))
}
