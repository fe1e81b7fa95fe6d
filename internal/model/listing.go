package model

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrListingNotFound is returned when no available listing has the requested id
var ErrListingNotFound = errors.New("listing not found")

// Listing is a property record as served by the Carlton listings API.
// The upstream encodes most numbers as strings, hence the Flex types.
type Listing struct {
	ID              FlexString `json:"id" db:"id"`
	AreaEN          string     `json:"area_en,omitempty" db:"area_en"`
	AreaAR          string     `json:"area_ar,omitempty" db:"area_ar"`
	CityEN          string     `json:"city_en,omitempty" db:"city_en"`
	CityAR          string     `json:"city_ar,omitempty" db:"city_ar"`
	TypeEN          string     `json:"type_en,omitempty" db:"type_en"`
	TypeAR          string     `json:"type_ar,omitempty" db:"type_ar"`
	ForEN           string     `json:"for_en,omitempty" db:"for_en"`
	ForAR           string     `json:"for_ar,omitempty" db:"for_ar"`
	TotalPrice      FlexFloat  `json:"total_price,omitempty" db:"total_price"`
	RentalPrice     FlexFloat  `json:"rental_price,omitempty" db:"rental_price"`
	SizeM2          FlexFloat  `json:"size_m2,omitempty" db:"size_m2"`
	Bedrooms        FlexInt    `json:"bedrooms,omitempty" db:"bedrooms"`
	Bathrooms       FlexInt    `json:"bathrooms,omitempty" db:"bathrooms"`
	FacilityNamesEN StringList `json:"facility_names_en,omitempty" db:"facility_names_en"`
	FacilityNamesAR StringList `json:"facility_names_ar,omitempty" db:"facility_names_ar"`
	DetailsEN       string     `json:"details_en,omitempty" db:"details_en"`
	DetailsAR       string     `json:"details_ar,omitempty" db:"details_ar"`
	ContactPerson   string     `json:"contact_person,omitempty" db:"contact_person"`
	ContactPhone    string     `json:"contact_phone,omitempty" db:"contact_phone"`
	ContactEmail    string     `json:"contact_email,omitempty" db:"contact_email"`
	PropertyURLEN   string     `json:"property_url_en,omitempty" db:"property_url_en"`
	PropertyURLAR   string     `json:"property_url_ar,omitempty" db:"property_url_ar"`
	ConditionEN     string     `json:"condition_en,omitempty" db:"condition_en"`
	FurnishedEN     string     `json:"furnished_en,omitempty" db:"furnished_en"`
	StatusID        FlexString `json:"status_id,omitempty" db:"status_id"`
	ShowWebsite     FlexString `json:"show_website,omitempty" db:"show_website"`
	SyncedAt        *time.Time `json:"synced_at,omitempty" db:"synced_at"`
}

// IsAvailable reports whether the listing is active and shown on the website.
func (l *Listing) IsAvailable() bool {
	return l.StatusID == "1" && l.ShowWebsite == "1"
}

// PriceFor returns the price relevant to purpose. Rentals fall back to the
// total price when no rental price is set.
func (l *Listing) PriceFor(purpose string) float64 {
	if purpose == "rent" && l.RentalPrice > 0 {
		return float64(l.RentalPrice)
	}
	return float64(l.TotalPrice)
}

// Attachment is an image record from the upstream attachments endpoint.
type Attachment struct {
	PropertyID FlexString `json:"property_id"`
	FileURL    string     `json:"fileUrl"`
	Visible    FlexString `json:"visible"`
	IsDefault  FlexString `json:"is_default"`
	Sort       FlexInt    `json:"sort"`
}

// FlexFloat decodes from a JSON number or a numeric string.
// Empty strings, null and unparsable text decode to zero.
type FlexFloat float64

// UnmarshalJSON implements json.Unmarshaler
func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	s := unquote(data)
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = FlexFloat(v)
	return nil
}

// FlexInt decodes from a JSON number or a numeric string.
type FlexInt int

// UnmarshalJSON implements json.Unmarshaler
func (i *FlexInt) UnmarshalJSON(data []byte) error {
	var f FlexFloat
	if err := f.UnmarshalJSON(data); err != nil {
		return err
	}
	*i = FlexInt(f)
	return nil
}

// FlexString decodes from a JSON string or number.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler
func (s *FlexString) UnmarshalJSON(data []byte) error {
	*s = FlexString(unquote(data))
	return nil
}

// StringList decodes from a JSON array or a comma separated string, and is
// stored as a JSON array in Postgres.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler
func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []FlexString
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("failed to decode string list: %w", err)
		}
		out := make(StringList, 0, len(items))
		for _, item := range items {
			if v := strings.TrimSpace(string(item)); v != "" {
				out = append(out, v)
			}
		}
		*l = out
		return nil
	}

	raw := unquote(data)
	if raw == "" {
		*l = nil
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make(StringList, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	*l = out
	return nil
}

// String joins the items the way the upstream API writes them.
func (l StringList) String() string {
	return strings.Join(l, ", ")
}

// Value implements driver.Valuer interface
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner interface
func (l *StringList) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, (*[]string)(l))
	case string:
		return json.Unmarshal([]byte(v), (*[]string)(l))
	default:
		return fmt.Errorf("cannot scan %T into StringList", value)
	}
}

func unquote(data []byte) string {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return ""
	}
	if len(s) >= 2 && s[0] == '"' {
		var out string
		if err := json.Unmarshal([]byte(s), &out); err == nil {
			return strings.TrimSpace(out)
		}
	}
	return s
}
