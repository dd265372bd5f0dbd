package models

import (
	"time"

	"github.com/google/uuid"
)

// QueryStatus is the ingestion state of a search.
type QueryStatus string

// States in the order a search goes through them. StatusStarted is kept for
// compatibility with records written by the API layer; ingestion never sets it.
const (
	StatusNotStarted QueryStatus = "not_started"
	StatusStarted    QueryStatus = "started"
	StatusPartial    QueryStatus = "partial"
	StatusFinished   QueryStatus = "finished"
)

// SearchFilter is the user-defined filter a search was created with.
type SearchFilter struct {
	PropertyTypes    []PropertyType
	TransactionTypes []TransactionType
	City             string
	Neighborhoods    []string
	Bedrooms         []int
	Suites           []int
	GarageSlots      []int
	MinPrice         float64
	MaxPrice         float64
	MinArea          float64
	MaxArea          float64
}

// SearchProgress is the status/count record of one search.
type SearchProgress struct {
	SearchID uuid.UUID
	Status   QueryStatus
	Total    int
}

// SearchResult links a search to a listing it found.
type SearchResult struct {
	ID        uuid.UUID `bson:"_id"`
	SearchID  uuid.UUID `bson:"search_id"`
	ListingID uuid.UUID `bson:"real_estate_id"`
}

// CrawlState is the per-invocation pagination state. Total and TotalPages
// are meaningful only once Resolved is set, which happens on page 1.
type CrawlState struct {
	Page       int
	Total      int
	TotalPages int
	Resolved   bool
}

// PageResult is what a crawl session emits for every page it visits.
// Degraded marks a page whose fetch failed and was treated as empty.
type PageResult struct {
	Page       int
	Total      int
	TotalPages int
	Listings   []RawListing
	Degraded   bool
}

// IngestOutcome says what ingestion did with one listing.
type IngestOutcome string

const (
	OutcomeCreated  IngestOutcome = "created"
	OutcomeExisting IngestOutcome = "existing"
)

// CrawlReport holds the computed summary of one crawl.
type CrawlReport struct {
	SearchID               uuid.UUID
	StartedAt              time.Time
	Duration               time.Duration
	Total                  int
	TotalPages             int
	PagesFetched           int
	PagesDegraded          int
	ListingsSeen           int
	ListingsCreated        int
	ListingsExisting       int
	ListingsFailed         int
	SearchResults          int
	AveragePrice           float64
	MinPrice               float64
	MaxPrice               float64
	MostExpensive          *NormalizedListing
	ListingsByNeighborhood map[string]int
	Finished               bool
}
