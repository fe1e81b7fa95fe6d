package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"carlton/internal/model"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// ErrListingNotFound is returned when a listing id is not in the snapshot
var ErrListingNotFound = model.ErrListingNotFound

const listingColumns = `
	id, area_en, area_ar, city_en, city_ar, type_en, type_ar, for_en, for_ar,
	total_price, rental_price, size_m2, bedrooms, bathrooms,
	facility_names_en, facility_names_ar, details_en, details_ar,
	contact_person, contact_phone, contact_email, property_url_en, property_url_ar,
	condition_en, furnished_en, status_id, show_website, synced_at`

const schema = `
CREATE TABLE IF NOT EXISTS listings (
	id                TEXT PRIMARY KEY,
	area_en           TEXT NOT NULL DEFAULT '',
	area_ar           TEXT NOT NULL DEFAULT '',
	city_en           TEXT NOT NULL DEFAULT '',
	city_ar           TEXT NOT NULL DEFAULT '',
	type_en           TEXT NOT NULL DEFAULT '',
	type_ar           TEXT NOT NULL DEFAULT '',
	for_en            TEXT NOT NULL DEFAULT '',
	for_ar            TEXT NOT NULL DEFAULT '',
	total_price       DOUBLE PRECISION NOT NULL DEFAULT 0,
	rental_price      DOUBLE PRECISION NOT NULL DEFAULT 0,
	size_m2           DOUBLE PRECISION NOT NULL DEFAULT 0,
	bedrooms          INTEGER NOT NULL DEFAULT 0,
	bathrooms         INTEGER NOT NULL DEFAULT 0,
	facility_names_en JSONB,
	facility_names_ar JSONB,
	details_en        TEXT NOT NULL DEFAULT '',
	details_ar        TEXT NOT NULL DEFAULT '',
	contact_person    TEXT NOT NULL DEFAULT '',
	contact_phone     TEXT NOT NULL DEFAULT '',
	contact_email     TEXT NOT NULL DEFAULT '',
	property_url_en   TEXT NOT NULL DEFAULT '',
	property_url_ar   TEXT NOT NULL DEFAULT '',
	condition_en      TEXT NOT NULL DEFAULT '',
	furnished_en      TEXT NOT NULL DEFAULT '',
	status_id         TEXT NOT NULL DEFAULT '',
	show_website      TEXT NOT NULL DEFAULT '',
	synced_at         TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS chat_logs (
	id            BIGSERIAL PRIMARY KEY,
	session_id    TEXT NOT NULL,
	query         TEXT NOT NULL,
	language      TEXT NOT NULL,
	analysis      JSONB,
	response_type TEXT NOT NULL,
	result_count  INTEGER NOT NULL DEFAULT 0,
	listing_ids   TEXT[],
	latency_ms    BIGINT NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS chat_logs_session_idx ON chat_logs (session_id);

CREATE TABLE IF NOT EXISTS shortlists (
	session_id TEXT NOT NULL,
	listing_id TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (session_id, listing_id)
);
`

// PostgresRepository handles database operations
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(dsn string, maxConn, maxIdleConn int) (*PostgresRepository, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{db: db}, nil
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// Ping checks the connection, used by the health endpoint
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// EnsureSchema creates the tables if they do not exist
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// UpsertListings stores a full listings snapshot in one transaction. Stored
// listings missing from the batch were withdrawn upstream and are hidden. An
// empty batch changes nothing.
func (r *PostgresRepository) UpsertListings(ctx context.Context, listings []model.Listing) (int, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO listings (`+listingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, NOW())
		ON CONFLICT (id) DO UPDATE SET
			area_en = EXCLUDED.area_en, area_ar = EXCLUDED.area_ar,
			city_en = EXCLUDED.city_en, city_ar = EXCLUDED.city_ar,
			type_en = EXCLUDED.type_en, type_ar = EXCLUDED.type_ar,
			for_en = EXCLUDED.for_en, for_ar = EXCLUDED.for_ar,
			total_price = EXCLUDED.total_price, rental_price = EXCLUDED.rental_price,
			size_m2 = EXCLUDED.size_m2, bedrooms = EXCLUDED.bedrooms, bathrooms = EXCLUDED.bathrooms,
			facility_names_en = EXCLUDED.facility_names_en, facility_names_ar = EXCLUDED.facility_names_ar,
			details_en = EXCLUDED.details_en, details_ar = EXCLUDED.details_ar,
			contact_person = EXCLUDED.contact_person, contact_phone = EXCLUDED.contact_phone,
			contact_email = EXCLUDED.contact_email,
			property_url_en = EXCLUDED.property_url_en, property_url_ar = EXCLUDED.property_url_ar,
			condition_en = EXCLUDED.condition_en, furnished_en = EXCLUDED.furnished_en,
			status_id = EXCLUDED.status_id, show_website = EXCLUDED.show_website,
			synced_at = NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	stored := 0
	ids := make([]string, 0, len(listings))
	for _, l := range listings {
		if l.ID == "" {
			continue
		}
		_, err := stmt.ExecContext(ctx,
			string(l.ID), l.AreaEN, l.AreaAR, l.CityEN, l.CityAR, l.TypeEN, l.TypeAR, l.ForEN, l.ForAR,
			float64(l.TotalPrice), float64(l.RentalPrice), float64(l.SizeM2), int(l.Bedrooms), int(l.Bathrooms),
			l.FacilityNamesEN, l.FacilityNamesAR, l.DetailsEN, l.DetailsAR,
			l.ContactPerson, l.ContactPhone, l.ContactEmail, l.PropertyURLEN, l.PropertyURLAR,
			l.ConditionEN, l.FurnishedEN, string(l.StatusID), string(l.ShowWebsite),
		)
		if err != nil {
			return 0, fmt.Errorf("listing %s: %w", l.ID, err)
		}
		ids = append(ids, string(l.ID))
		stored++
	}

	if len(ids) > 0 {
		_, err := tx.ExecContext(ctx, `
			UPDATE listings SET show_website = '0', synced_at = NOW()
			WHERE show_website <> '0' AND NOT (id = ANY($1))`, pq.Array(ids))
		if err != nil {
			return 0, fmt.Errorf("failed to hide withdrawn listings: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return stored, nil
}

// FetchListings returns the available listings of the last stored snapshot
func (r *PostgresRepository) FetchListings(ctx context.Context) ([]model.Listing, error) {
	listings := []model.Listing{}
	query := `SELECT ` + listingColumns + ` FROM listings
		WHERE status_id = '1' AND show_website = '1'
		ORDER BY synced_at DESC NULLS LAST, id`
	if err := r.db.SelectContext(ctx, &listings, query); err != nil {
		return nil, fmt.Errorf("failed to fetch listings: %w", err)
	}
	return listings, nil
}

// SearchListings filters the snapshot in SQL. Ranking is left to the caller.
func (r *PostgresRepository) SearchListings(ctx context.Context, filter model.PropertyFilter) ([]model.Listing, error) {
	whereClauses := []string{"status_id = '1'", "show_website = '1'"}
	args := []interface{}{}
	argIndex := 1

	if filter.Location != "" {
		whereClauses = append(whereClauses, fmt.Sprintf(
			"(area_en ILIKE $%[1]d OR city_en ILIKE $%[1]d OR area_ar ILIKE $%[1]d OR city_ar ILIKE $%[1]d)", argIndex))
		args = append(args, "%"+filter.Location+"%")
		argIndex++
	}
	if filter.PropertyType != "" {
		whereClauses = append(whereClauses, fmt.Sprintf("(type_en ILIKE $%[1]d OR type_ar ILIKE $%[1]d)", argIndex))
		args = append(args, "%"+filter.PropertyType+"%")
		argIndex++
	}
	switch filter.Purpose {
	case "rent":
		whereClauses = append(whereClauses, "(for_en ILIKE '%lease%' OR for_ar LIKE '%إيجار%')")
	case "buy":
		whereClauses = append(whereClauses, "(for_en ILIKE '%sale%' OR for_ar LIKE '%بيع%')")
	}
	if filter.Budget > 0 {
		price := "total_price"
		if filter.Purpose == "rent" {
			price = "CASE WHEN rental_price > 0 THEN rental_price ELSE total_price END"
		}
		whereClauses = append(whereClauses, fmt.Sprintf("%s <= $%d", price, argIndex))
		args = append(args, filter.Budget)
		argIndex++
	}

	query := fmt.Sprintf(`SELECT %s FROM listings WHERE %s ORDER BY id`,
		listingColumns, strings.Join(whereClauses, " AND "))
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, filter.Limit)
	}

	listings := []model.Listing{}
	if err := r.db.SelectContext(ctx, &listings, query, args...); err != nil {
		return nil, fmt.Errorf("failed to search listings: %w", err)
	}
	return listings, nil
}

// GetListingByID retrieves a single listing by its ID
func (r *PostgresRepository) GetListingByID(ctx context.Context, id string) (*model.Listing, error) {
	var listing model.Listing
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`
	err := r.db.GetContext(ctx, &listing, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	return &listing, nil
}

// LogChatTurn stores one chat turn
func (r *PostgresRepository) LogChatTurn(ctx context.Context, entry model.ChatLog) error {
	// jsonb parameters go over the wire as text; lib/pq would send []byte as bytea
	var analysis interface{}
	if entry.Analysis != nil {
		b, err := json.Marshal(entry.Analysis)
		if err != nil {
			return fmt.Errorf("failed to encode analysis: %w", err)
		}
		analysis = string(b)
	}
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_logs (session_id, query, language, analysis, response_type, result_count, listing_ids, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.SessionID, entry.Query, entry.Language, analysis, entry.ResponseType,
		entry.ResultCount, pq.Array(entry.ListingIDs), entry.LatencyMS, createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to log chat turn: %w", err)
	}
	return nil
}

// LogShortlist records that a session shortlisted a listing
func (r *PostgresRepository) LogShortlist(ctx context.Context, sessionID, listingID string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO shortlists (session_id, listing_id) VALUES ($1, $2)
		ON CONFLICT (session_id, listing_id) DO NOTHING`, sessionID, listingID)
	if err != nil {
		return fmt.Errorf("failed to log shortlist: %w", err)
	}
	return nil
}
