package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListing_DecodesUpstreamShapes(t *testing.T) {
	raw := `{
		"id": 1042,
		"area_en": "Seef",
		"type_en": "Apartment",
		"total_price": "95,000",
		"rental_price": "",
		"bedrooms": "2",
		"bathrooms": 3,
		"facility_names_en": "Swimming Pool, Gym ,Parking",
		"facility_names_ar": ["مسبح", "جيم"],
		"status_id": 1,
		"show_website": "1"
	}`

	var l Listing
	require.NoError(t, json.Unmarshal([]byte(raw), &l))

	assert.Equal(t, FlexString("1042"), l.ID)
	assert.Equal(t, FlexFloat(95000), l.TotalPrice)
	assert.Equal(t, FlexFloat(0), l.RentalPrice)
	assert.Equal(t, FlexInt(2), l.Bedrooms)
	assert.Equal(t, FlexInt(3), l.Bathrooms)
	assert.Equal(t, StringList{"Swimming Pool", "Gym", "Parking"}, l.FacilityNamesEN)
	assert.Equal(t, StringList{"مسبح", "جيم"}, l.FacilityNamesAR)
	assert.True(t, l.IsAvailable())
	assert.Equal(t, 95000.0, l.PriceFor("rent"))
}

func TestListing_NullsAndGarbage(t *testing.T) {
	raw := `{"id": null, "total_price": "call us", "facility_names_en": null, "status_id": "2"}`

	var l Listing
	require.NoError(t, json.Unmarshal([]byte(raw), &l))

	assert.Empty(t, l.ID)
	assert.Zero(t, l.TotalPrice)
	assert.Nil(t, l.FacilityNamesEN)
	assert.False(t, l.IsAvailable())
}

func TestStringList_ValueScan(t *testing.T) {
	in := StringList{"Pool", "Gym"}
	v, err := in.Value()
	require.NoError(t, err)

	var out StringList
	require.NoError(t, out.Scan(v))
	assert.Equal(t, in, out)
	assert.Equal(t, "Pool, Gym", out.String())

	require.NoError(t, out.Scan(nil))
	assert.Nil(t, out)
	assert.Error(t, out.Scan(42))
}

func TestSession_AddTurnKeepsRecentHistory(t *testing.T) {
	s := &Session{ID: "s1"}
	now := time.Now()
	for i := 0; i < 25; i++ {
		s.AddTurn(Turn{User: string(rune('a' + i)), Timestamp: now, LatencyMS: 10}, 20)
	}

	require.Len(t, s.History, 20)
	assert.Equal(t, "f", s.History[0].User)

	status := s.Status()
	assert.Equal(t, 20, status.Turns)
	assert.Equal(t, int64(200), status.TotalLatencyMS)
	assert.Equal(t, int64(10), status.AvgLatencyMS)
}

func TestSession_ShortlistIsASet(t *testing.T) {
	s := &Session{}
	s.AddToShortlist("7")
	s.AddToShortlist("7")
	s.AddToShortlist("9")
	assert.Equal(t, []string{"7", "9"}, s.Shortlist)
}

func TestAnalysis_FacetCount(t *testing.T) {
	a := &Analysis{Location: StringPtr("Seef"), Budget: Float64Ptr(1)}
	assert.Equal(t, 2, a.FacetCount())
}
