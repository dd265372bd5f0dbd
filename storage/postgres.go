package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"realestate-ingest/models"
	"realestate-ingest/utils"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a unique constraint violation.
const uniqueViolation = pq.ErrorCode("23505")

// PostgresStore persists searches, agencies and listings to PostgreSQL using
// the table layout shared with the API service.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore opens a connection to PostgreSQL and waits until it
// answers a ping, retrying per retry.
func NewPostgresStore(ctx context.Context, dsn string, retry *utils.RetryConfig) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	if retry == nil {
		retry = &utils.RetryConfig{MaxAttempts: 1}
	}

	if err := retry.Do(ctx, "postgres ping", func(ctx context.Context) error {
		return db.PingContext(ctx)
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	return NewPostgresStoreFromDB(db), nil
}

// NewPostgresStoreFromDB wraps an existing connection.
func NewPostgresStoreFromDB(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// DB exposes the underlying handle for schema migrations.
func (s *PostgresStore) DB() *sql.DB {
	return s.db.DB
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// mapError translates driver errors into the package sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pqErr.Constraint)
	}
	return err
}

type searchFilterRow struct {
	PropertyTypes    pq.StringArray `db:"property_type"`
	TransactionTypes pq.StringArray `db:"transaction_type"`
	Cities           pq.StringArray `db:"city"`
	Neighborhoods    pq.StringArray `db:"neighborhood"`
	Bedrooms         pq.Int64Array  `db:"bedroom_quantity"`
	Suites           pq.Int64Array  `db:"suite_quantity"`
	GarageSlots      pq.Int64Array  `db:"garage_slots_quantity"`
	MinPrice         float64        `db:"min_price"`
	MaxPrice         float64        `db:"max_price"`
	MinArea          float64        `db:"min_area"`
	MaxArea          float64        `db:"max_area"`
}

// toModel converts the stored filter. Filters carry a list of cities; only
// the first one is searched.
func (r searchFilterRow) toModel() models.SearchFilter {
	f := models.SearchFilter{
		Neighborhoods: []string(r.Neighborhoods),
		Bedrooms:      toInts(r.Bedrooms),
		Suites:        toInts(r.Suites),
		GarageSlots:   toInts(r.GarageSlots),
		MinPrice:      r.MinPrice,
		MaxPrice:      r.MaxPrice,
		MinArea:       r.MinArea,
		MaxArea:       r.MaxArea,
	}
	if len(r.Cities) > 0 {
		f.City = r.Cities[0]
	}
	for _, pt := range r.PropertyTypes {
		f.PropertyTypes = append(f.PropertyTypes, models.PropertyType(pt))
	}
	for _, tt := range r.TransactionTypes {
		f.TransactionTypes = append(f.TransactionTypes, models.TransactionType(tt))
	}
	return f
}

func toInts(values pq.Int64Array) []int {
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = int(v)
	}
	return out
}

func (s *PostgresStore) GetSearchFilter(ctx context.Context, searchID uuid.UUID) (models.SearchFilter, error) {
	var row searchFilterRow
	err := s.db.GetContext(ctx, &row, `
		SELECT f.property_type, f.transaction_type, f.city, f.neighborhood,
		       f.bedroom_quantity, f.suite_quantity, f.garage_slots_quantity,
		       f.min_price, f.max_price, f.min_area, f.max_area
		FROM search_search s
		JOIN search_filter f ON f.id = s.filter_id
		WHERE s.id = $1`, searchID)
	if err != nil {
		return models.SearchFilter{}, fmt.Errorf("postgres: get filter for search %s: %w", searchID, mapError(err))
	}
	return row.toModel(), nil
}

func (s *PostgresStore) GetSearchProgress(ctx context.Context, searchID uuid.UUID) (models.SearchProgress, error) {
	var row struct {
		ID     uuid.UUID `db:"id"`
		Status string    `db:"query_status"`
		Total  int       `db:"number_real_estate_found"`
	}
	err := s.db.GetContext(ctx, &row,
		`SELECT id, query_status, number_real_estate_found FROM search_search WHERE id = $1`, searchID)
	if err != nil {
		return models.SearchProgress{}, fmt.Errorf("postgres: get search %s: %w", searchID, mapError(err))
	}
	return models.SearchProgress{SearchID: row.ID, Status: models.QueryStatus(row.Status), Total: row.Total}, nil
}

func (s *PostgresStore) UpdateSearchProgress(ctx context.Context, p models.SearchProgress) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE search_search SET query_status = $2, number_real_estate_found = $3 WHERE id = $1`,
		p.SearchID, string(p.Status), p.Total)
	if err != nil {
		return fmt.Errorf("postgres: update search %s: %w", p.SearchID, mapError(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("postgres: update search %s: %w", p.SearchID, ErrNotFound)
	}
	return nil
}

const agencyColumns = `id, name, creci, city, address_street, address_number,
	contact_number_1, contact_number_2, contact_whatsapp, logo_url, profile_url, details_checked_at`

func (s *PostgresStore) GetAgencyByProfileURL(ctx context.Context, profileURL string) (*models.Agency, error) {
	var a models.Agency
	err := s.db.GetContext(ctx, &a,
		`SELECT `+agencyColumns+` FROM real_estate_agency_agency WHERE profile_url = $1`, profileURL)
	if err != nil {
		return nil, fmt.Errorf("postgres: get agency %q: %w", profileURL, mapError(err))
	}
	return &a, nil
}

func (s *PostgresStore) CreateAgency(ctx context.Context, a *models.Agency) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO real_estate_agency_agency (`+agencyColumns+`)
		VALUES (:id, :name, :creci, :city, :address_street, :address_number,
		        :contact_number_1, :contact_number_2, :contact_whatsapp, :logo_url, :profile_url, :details_checked_at)`, a)
	if err != nil {
		return fmt.Errorf("postgres: create agency %q: %w", a.ProfileURL, mapError(err))
	}
	return nil
}

// limitArg binds a LIMIT parameter. A non-positive limit becomes NULL,
// which PostgreSQL reads as no limit.
func limitArg(limit int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(limit), Valid: limit > 0}
}

func (s *PostgresStore) ListAgenciesWithoutDetails(ctx context.Context, limit int) ([]models.Agency, error) {
	var agencies []models.Agency
	err := s.db.SelectContext(ctx, &agencies,
		`SELECT `+agencyColumns+` FROM real_estate_agency_agency
		 WHERE creci = '' AND profile_url <> ''
		 ORDER BY details_checked_at NULLS FIRST, name
		 LIMIT $1`, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("postgres: list agencies without details: %w", err)
	}
	return agencies, nil
}

func (s *PostgresStore) UpdateAgencyDetails(ctx context.Context, a *models.Agency) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE real_estate_agency_agency
		SET creci = $2, contact_number_1 = $3, contact_number_2 = $4, details_checked_at = $5
		WHERE id = $1`, a.ID, a.Creci, a.ContactNumber1, a.ContactNumber2, a.DetailsCheckedAt)
	if err != nil {
		return fmt.Errorf("postgres: update agency %s: %w", a.ID, mapError(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("postgres: update agency %s: %w", a.ID, ErrNotFound)
	}
	return nil
}

type listingRow struct {
	ID                  uuid.UUID      `db:"id"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
	ReferenceCode       string         `db:"reference_code"`
	PropertyType        string         `db:"property_type"`
	TransactionType     string         `db:"transaction_type"`
	City                string         `db:"city"`
	Neighborhood        string         `db:"neighborhood"`
	BedroomQuantity     int            `db:"bedroom_quantity"`
	SuiteQuantity       int            `db:"suite_quantity"`
	BathroomQuantity    int            `db:"bathroom_quantity"`
	GarageSlotsQuantity int            `db:"garage_slots_quantity"`
	Price               float64        `db:"price"`
	Area                float64        `db:"area"`
	AreaTotal           float64        `db:"area_total"`
	CondPrice           float64        `db:"cond_price"`
	Available           bool           `db:"available"`
	AgencyID            uuid.UUID      `db:"agency_id"`
	Description         string         `db:"description"`
	ImagesURL           pq.StringArray `db:"images_url"`
	URL                 string         `db:"url"`
	DetailsCheckedAt    *time.Time     `db:"details_checked_at"`
}

const listingColumns = `id, created_at, updated_at, reference_code, property_type, transaction_type,
	city, neighborhood, bedroom_quantity, suite_quantity, bathroom_quantity, garage_slots_quantity,
	price, area, area_total, cond_price, available, agency_id, description, images_url, url,
	details_checked_at`

func newListingRow(l *models.Listing) listingRow {
	images := l.ImagesURL
	if images == nil {
		images = []string{}
	}
	return listingRow{
		ID: l.ID, CreatedAt: l.CreatedAt, UpdatedAt: l.UpdatedAt,
		ReferenceCode: l.ReferenceCode, PropertyType: string(l.PropertyType), TransactionType: string(l.TransactionType),
		City: l.City, Neighborhood: l.Neighborhood,
		BedroomQuantity: l.BedroomQuantity, SuiteQuantity: l.SuiteQuantity,
		BathroomQuantity: l.BathroomQuantity, GarageSlotsQuantity: l.GarageSlotsQuantity,
		Price: l.Price, Area: l.Area, AreaTotal: l.AreaTotal, CondPrice: l.CondPrice,
		Available: l.Available, AgencyID: l.AgencyID, Description: l.Description,
		ImagesURL: pq.StringArray(images), URL: l.URL, DetailsCheckedAt: l.DetailsCheckedAt,
	}
}

func (r listingRow) toModel() *models.Listing {
	return &models.Listing{
		ID: r.ID, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
		ReferenceCode: r.ReferenceCode, PropertyType: models.PropertyType(r.PropertyType),
		TransactionType: models.TransactionType(r.TransactionType),
		City: r.City, Neighborhood: r.Neighborhood,
		BedroomQuantity: r.BedroomQuantity, SuiteQuantity: r.SuiteQuantity,
		BathroomQuantity: r.BathroomQuantity, GarageSlotsQuantity: r.GarageSlotsQuantity,
		Price: r.Price, Area: r.Area, AreaTotal: r.AreaTotal, CondPrice: r.CondPrice,
		Available: r.Available, AgencyID: r.AgencyID, Description: r.Description,
		ImagesURL: []string(r.ImagesURL), URL: r.URL, DetailsCheckedAt: r.DetailsCheckedAt,
	}
}

func (s *PostgresStore) GetListingByReferenceCode(ctx context.Context, code string) (*models.Listing, error) {
	var row listingRow
	err := s.db.GetContext(ctx, &row,
		`SELECT `+listingColumns+` FROM real_estate_realestate WHERE reference_code = $1`, code)
	if err != nil {
		return nil, fmt.Errorf("postgres: get listing %s: %w", code, mapError(err))
	}
	return row.toModel(), nil
}

func (s *PostgresStore) CreateListing(ctx context.Context, l *models.Listing) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO real_estate_realestate (`+listingColumns+`)
		VALUES (:id, :created_at, :updated_at, :reference_code, :property_type, :transaction_type,
		        :city, :neighborhood, :bedroom_quantity, :suite_quantity, :bathroom_quantity, :garage_slots_quantity,
		        :price, :area, :area_total, :cond_price, :available, :agency_id, :description, :images_url, :url,
		        :details_checked_at)`,
		newListingRow(l))
	if err != nil {
		return fmt.Errorf("postgres: create listing %s: %w", l.ReferenceCode, mapError(err))
	}
	return nil
}

func (s *PostgresStore) ListListingsWithoutImages(ctx context.Context, limit int) ([]models.Listing, error) {
	var rows []listingRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT `+listingColumns+` FROM real_estate_realestate
		 WHERE cardinality(images_url) = 0 AND url <> ''
		 ORDER BY details_checked_at NULLS FIRST, created_at
		 LIMIT $1`, limitArg(limit))
	if err != nil {
		return nil, fmt.Errorf("postgres: list listings without images: %w", err)
	}
	listings := make([]models.Listing, 0, len(rows))
	for _, r := range rows {
		listings = append(listings, *r.toModel())
	}
	return listings, nil
}

func (s *PostgresStore) UpdateListingDetails(ctx context.Context, l *models.Listing) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE real_estate_realestate
		SET images_url = $2, cond_price = $3, updated_at = $4, details_checked_at = $5
		WHERE id = $1`, l.ID, pq.Array(l.ImagesURL), l.CondPrice, l.UpdatedAt, l.DetailsCheckedAt)
	if err != nil {
		return fmt.Errorf("postgres: update listing %s: %w", l.ReferenceCode, mapError(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("postgres: update listing %s: %w", l.ReferenceCode, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) AddSearchResult(ctx context.Context, r models.SearchResult) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO search_searchresultrealestate (id, search_id, real_estate_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (search_id, real_estate_id) DO NOTHING`, r.ID, r.SearchID, r.ListingID)
	if err != nil {
		return fmt.Errorf("postgres: add result %s/%s: %w", r.SearchID, r.ListingID, mapError(err))
	}
	return nil
}

func (s *PostgresStore) CountSearchResults(ctx context.Context, searchID uuid.UUID) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM search_searchresultrealestate WHERE search_id = $1`, searchID)
	if err != nil {
		return 0, fmt.Errorf("postgres: count results for %s: %w", searchID, err)
	}
	return n, nil
}
