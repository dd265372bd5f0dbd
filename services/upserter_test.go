package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"realestate-ingest/models"
	"realestate-ingest/storage"
)

const valeProfile = testBaseURL + "/imobiliaria/vale"

func TestIngestCreatesAgencyAndListing(t *testing.T) {
	store := storage.NewMemoryStore()
	searchID := newSearch(store)
	u := NewUpserter(store, newTestLogger())
	fixed := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	u.now = func() time.Time { return fixed }

	outcome, err := u.Ingest(context.Background(), searchID, normalized("AP0451", valeProfile))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCreated, outcome)

	agency, err := store.GetAgencyByProfileURL(context.Background(), valeProfile)
	require.NoError(t, err)
	assert.Equal(t, "Vale Imoveis", agency.Name)
	assert.Equal(t, "https://cdn.imoveis-sc.com.br/logos/vale.png", agency.LogoURL)
	assert.Empty(t, agency.Creci)
	assert.Empty(t, agency.ContactNumber1)

	l, err := store.GetListingByReferenceCode(context.Background(), "AP0451")
	require.NoError(t, err)
	assert.Equal(t, agency.ID, l.AgencyID)
	assert.True(t, l.Available)
	assert.Equal(t, 68.5, l.Area)
	assert.Equal(t, 68.5, l.AreaTotal)
	assert.Zero(t, l.BathroomQuantity)
	assert.Zero(t, l.CondPrice)
	assert.Empty(t, l.Description)
	assert.NotNil(t, l.ImagesURL)
	assert.Empty(t, l.ImagesURL)
	assert.Equal(t, fixed, l.CreatedAt)

	n, err := store.CountSearchResults(context.Background(), searchID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngestTwiceKeepsOneListing(t *testing.T) {
	store := storage.NewMemoryStore()
	searchID := newSearch(store)
	u := NewUpserter(store, newTestLogger())

	first, err := u.Ingest(context.Background(), searchID, normalized("AP0451", valeProfile))
	require.NoError(t, err)

	changed := normalized("AP0451", valeProfile)
	changed.Price = 1
	second, err := u.Ingest(context.Background(), searchID, changed)
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeCreated, first)
	assert.Equal(t, models.OutcomeExisting, second)
	assert.Equal(t, 1, store.ListingCount())

	l, err := store.GetListingByReferenceCode(context.Background(), "AP0451")
	require.NoError(t, err)
	assert.Equal(t, 550000.0, l.Price, "existing listings are not updated")

	n, err := store.CountSearchResults(context.Background(), searchID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestIngestSharesAgencyAcrossListingsAndSearches(t *testing.T) {
	store := storage.NewMemoryStore()
	s1, s2 := newSearch(store), newSearch(store)
	u := NewUpserter(store, newTestLogger())

	for _, code := range []string{"AP0001", "AP0002"} {
		_, err := u.Ingest(context.Background(), s1, normalized(code, valeProfile))
		require.NoError(t, err)
	}
	outcome, err := u.Ingest(context.Background(), s2, normalized("AP0001", valeProfile))
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeExisting, outcome)
	assert.Equal(t, 1, store.AgencyCount())
	assert.Equal(t, 2, store.ListingCount())

	n1, _ := store.CountSearchResults(context.Background(), s1)
	n2, _ := store.CountSearchResults(context.Background(), s2)
	assert.Equal(t, 2, n1)
	assert.Equal(t, 1, n2)
}

// racingStore behaves as if another crawl inserted the same agency and
// listing between this crawl's lookup and insert.
type racingStore struct {
	*storage.MemoryStore
	agencyLookups  int
	listingLookups int
}

func (s *racingStore) GetAgencyByProfileURL(ctx context.Context, profileURL string) (*models.Agency, error) {
	s.agencyLookups++
	if s.agencyLookups == 1 {
		return nil, storage.ErrNotFound
	}
	return s.MemoryStore.GetAgencyByProfileURL(ctx, profileURL)
}

func (s *racingStore) GetListingByReferenceCode(ctx context.Context, code string) (*models.Listing, error) {
	s.listingLookups++
	if s.listingLookups == 1 {
		return nil, storage.ErrNotFound
	}
	return s.MemoryStore.GetListingByReferenceCode(ctx, code)
}

func TestIngestResolvesConcurrentInserts(t *testing.T) {
	mem := storage.NewMemoryStore()
	searchID := newSearch(mem)
	winner := &models.Agency{ID: uuid.New(), Name: "Vale", ProfileURL: valeProfile}
	require.NoError(t, mem.CreateAgency(context.Background(), winner))
	winnerListing := &models.Listing{ID: uuid.New(), ReferenceCode: "AP0451", AgencyID: winner.ID}
	require.NoError(t, mem.CreateListing(context.Background(), winnerListing))

	store := &racingStore{MemoryStore: mem}
	u := NewUpserter(store, newTestLogger())

	outcome, err := u.Ingest(context.Background(), searchID, normalized("AP0451", valeProfile))
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeExisting, outcome)
	assert.Equal(t, 2, store.agencyLookups)
	assert.Equal(t, 2, store.listingLookups)
	assert.Equal(t, 1, mem.AgencyCount())
	assert.Equal(t, 1, mem.ListingCount())

	n, err := mem.CountSearchResults(context.Background(), searchID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

type brokenStore struct {
	*storage.MemoryStore
}

var errStoreDown = errors.New("connection refused")

func (brokenStore) CreateListing(context.Context, *models.Listing) error {
	return errStoreDown
}

func TestIngestReportsStoreFailures(t *testing.T) {
	mem := storage.NewMemoryStore()
	searchID := newSearch(mem)
	u := NewUpserter(brokenStore{mem}, newTestLogger())

	_, err := u.Ingest(context.Background(), searchID, normalized("AP0451", valeProfile))
	require.Error(t, err)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Contains(t, err.Error(), "AP0451")

	n, _ := mem.CountSearchResults(context.Background(), searchID)
	assert.Zero(t, n)
}
