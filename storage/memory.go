package storage

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"realestate-ingest/models"
)

type memorySearch struct {
	filter   models.SearchFilter
	progress models.SearchProgress
}

type resultKey struct {
	search  uuid.UUID
	listing uuid.UUID
}

// MemoryStore keeps everything in process memory. It enforces the same
// uniqueness rules as the database backends and is safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	searches map[uuid.UUID]*memorySearch
	agencies map[string]models.Agency  // by profile URL
	listings map[string]models.Listing // by reference code
	results  map[resultKey]models.SearchResult

	// ProgressHistory records every progress update in order.
	ProgressHistory []models.SearchProgress
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		searches: make(map[uuid.UUID]*memorySearch),
		agencies: make(map[string]models.Agency),
		listings: make(map[string]models.Listing),
		results:  make(map[resultKey]models.SearchResult),
	}
}

// AddSearch registers a search in NOT_STARTED state, as the API service
// would when a user creates it.
func (m *MemoryStore) AddSearch(searchID uuid.UUID, filter models.SearchFilter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searches[searchID] = &memorySearch{
		filter:   filter,
		progress: models.SearchProgress{SearchID: searchID, Status: models.StatusNotStarted},
	}
}

func (m *MemoryStore) GetSearchFilter(_ context.Context, searchID uuid.UUID) (models.SearchFilter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.searches[searchID]
	if !ok {
		return models.SearchFilter{}, fmt.Errorf("memory: search %s: %w", searchID, ErrNotFound)
	}
	return s.filter, nil
}

func (m *MemoryStore) GetSearchProgress(_ context.Context, searchID uuid.UUID) (models.SearchProgress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.searches[searchID]
	if !ok {
		return models.SearchProgress{}, fmt.Errorf("memory: search %s: %w", searchID, ErrNotFound)
	}
	return s.progress, nil
}

func (m *MemoryStore) UpdateSearchProgress(_ context.Context, p models.SearchProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.searches[p.SearchID]
	if !ok {
		return fmt.Errorf("memory: search %s: %w", p.SearchID, ErrNotFound)
	}
	s.progress = p
	m.ProgressHistory = append(m.ProgressHistory, p)
	return nil
}

func (m *MemoryStore) GetAgencyByProfileURL(_ context.Context, profileURL string) (*models.Agency, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agencies[profileURL]
	if !ok {
		return nil, fmt.Errorf("memory: agency %q: %w", profileURL, ErrNotFound)
	}
	return &a, nil
}

func (m *MemoryStore) CreateAgency(_ context.Context, a *models.Agency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.agencies[a.ProfileURL]; exists {
		return fmt.Errorf("memory: agency %q: %w", a.ProfileURL, ErrConflict)
	}
	m.agencies[a.ProfileURL] = *a
	return nil
}

func (m *MemoryStore) ListAgenciesWithoutDetails(_ context.Context, limit int) ([]models.Agency, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Agency
	for _, a := range m.agencies {
		if a.Creci == "" && a.ProfileURL != "" {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := compareChecked(out[i].DetailsCheckedAt, out[j].DetailsCheckedAt); c != 0 {
			return c < 0
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) UpdateAgencyDetails(_ context.Context, a *models.Agency) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, stored := range m.agencies {
		if stored.ID == a.ID {
			stored.Creci = a.Creci
			stored.ContactNumber1 = a.ContactNumber1
			stored.ContactNumber2 = a.ContactNumber2
			stored.DetailsCheckedAt = a.DetailsCheckedAt
			m.agencies[key] = stored
			return nil
		}
	}
	return fmt.Errorf("memory: agency %s: %w", a.ID, ErrNotFound)
}

func (m *MemoryStore) GetListingByReferenceCode(_ context.Context, code string) (*models.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.listings[code]
	if !ok {
		return nil, fmt.Errorf("memory: listing %s: %w", code, ErrNotFound)
	}
	l.ImagesURL = slices.Clone(l.ImagesURL)
	return &l, nil
}

func (m *MemoryStore) CreateListing(_ context.Context, l *models.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.listings[l.ReferenceCode]; exists {
		return fmt.Errorf("memory: listing %s: %w", l.ReferenceCode, ErrConflict)
	}
	stored := *l
	stored.ImagesURL = slices.Clone(l.ImagesURL)
	m.listings[l.ReferenceCode] = stored
	return nil
}

func (m *MemoryStore) ListListingsWithoutImages(_ context.Context, limit int) ([]models.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Listing
	for _, l := range m.listings {
		if len(l.ImagesURL) == 0 && l.URL != "" {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := compareChecked(out[i].DetailsCheckedAt, out[j].DetailsCheckedAt); c != 0 {
			return c < 0
		}
		return out[i].ReferenceCode < out[j].ReferenceCode
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) UpdateListingDetails(_ context.Context, l *models.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for code, stored := range m.listings {
		if stored.ID == l.ID {
			stored.ImagesURL = slices.Clone(l.ImagesURL)
			stored.CondPrice = l.CondPrice
			stored.UpdatedAt = l.UpdatedAt
			stored.DetailsCheckedAt = l.DetailsCheckedAt
			m.listings[code] = stored
			return nil
		}
	}
	return fmt.Errorf("memory: listing %s: %w", l.ID, ErrNotFound)
}

func (m *MemoryStore) AddSearchResult(_ context.Context, r models.SearchResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := resultKey{search: r.SearchID, listing: r.ListingID}
	if _, exists := m.results[key]; !exists {
		m.results[key] = r
	}
	return nil
}

func (m *MemoryStore) CountSearchResults(_ context.Context, searchID uuid.UUID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for key := range m.results {
		if key.search == searchID {
			n++
		}
	}
	return n, nil
}

// compareChecked orders never-checked records first, then oldest check first.
func compareChecked(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	default:
		return a.Compare(*b)
	}
}

// ListingCount returns the number of stored listings.
func (m *MemoryStore) ListingCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.listings)
}

// AgencyCount returns the number of stored agencies.
func (m *MemoryStore) AgencyCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.agencies)
}

func (m *MemoryStore) Close() error { return nil }
