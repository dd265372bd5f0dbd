package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"realestate-ingest/models"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict is returned when an insert violates a uniqueness constraint.
	ErrConflict = errors.New("storage: unique constraint violated")
)

// SearchStore reads searches and their filters and updates their progress.
type SearchStore interface {
	GetSearchFilter(ctx context.Context, searchID uuid.UUID) (models.SearchFilter, error)
	GetSearchProgress(ctx context.Context, searchID uuid.UUID) (models.SearchProgress, error)
	UpdateSearchProgress(ctx context.Context, progress models.SearchProgress) error
}

// AgencyStore persists agencies, unique by profile URL.
type AgencyStore interface {
	GetAgencyByProfileURL(ctx context.Context, profileURL string) (*models.Agency, error)
	CreateAgency(ctx context.Context, agency *models.Agency) error
	ListAgenciesWithoutDetails(ctx context.Context, limit int) ([]models.Agency, error)
	UpdateAgencyDetails(ctx context.Context, agency *models.Agency) error
}

// ListingStore persists listings, unique by reference code.
type ListingStore interface {
	GetListingByReferenceCode(ctx context.Context, code string) (*models.Listing, error)
	CreateListing(ctx context.Context, listing *models.Listing) error
	ListListingsWithoutImages(ctx context.Context, limit int) ([]models.Listing, error)
	UpdateListingDetails(ctx context.Context, listing *models.Listing) error
}

// ResultStore links searches to the listings they found. A pair is stored
// at most once.
type ResultStore interface {
	AddSearchResult(ctx context.Context, result models.SearchResult) error
	CountSearchResults(ctx context.Context, searchID uuid.UUID) (int, error)
}

// Store is the full persistence surface of the ingestion pipeline.
type Store interface {
	SearchStore
	AgencyStore
	ListingStore
	ResultStore
	Close() error
}

// RawListingWriter is the interface for persisting unprocessed scraped data.
type RawListingWriter interface {
	WriteRaw(searchID uuid.UUID, page int, listings []models.RawListing) error
	Close() error
}

var (
	_ Store            = (*PostgresStore)(nil)
	_ Store            = (*MongoStore)(nil)
	_ Store            = (*MemoryStore)(nil)
	_ RawListingWriter = (*CSVWriter)(nil)
)
