package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"realestate-ingest/models"
	"realestate-ingest/storage"
	"realestate-ingest/utils"
)

// Upserter persists normalized listings: it resolves or creates the agency,
// resolves or creates the listing and links it to the owning search.
// Uniqueness conflicts raised by a concurrent writer are resolved by reading
// back the winner's record.
type Upserter struct {
	store  storage.Store
	logger *utils.Logger
	now    func() time.Time
	newID  func() uuid.UUID
}

func NewUpserter(store storage.Store, logger *utils.Logger) *Upserter {
	return &Upserter{
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  uuid.New,
	}
}

// Ingest stores one listing for searchID. An existing listing is left as it
// is; only the search result link is added.
func (u *Upserter) Ingest(ctx context.Context, searchID uuid.UUID, n models.NormalizedListing) (models.IngestOutcome, error) {
	agency, err := u.resolveAgency(ctx, n.Agency)
	if err != nil {
		return "", err
	}

	listing, outcome, err := u.resolveListing(ctx, n, agency.ID)
	if err != nil {
		return "", err
	}

	result := models.SearchResult{ID: u.newID(), SearchID: searchID, ListingID: listing.ID}
	if err := u.store.AddSearchResult(ctx, result); err != nil {
		return "", fmt.Errorf("upserter: link listing %s to search %s: %w", n.ReferenceCode, searchID, err)
	}
	return outcome, nil
}

func (u *Upserter) resolveAgency(ctx context.Context, raw models.RawAgency) (*models.Agency, error) {
	existing, err := u.store.GetAgencyByProfileURL(ctx, raw.ProfileURL)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("upserter: lookup agency %q: %w", raw.ProfileURL, err)
	}

	agency := &models.Agency{
		ID:         u.newID(),
		Name:       raw.Name,
		LogoURL:    raw.LogoURL,
		ProfileURL: raw.ProfileURL,
	}
	err = u.store.CreateAgency(ctx, agency)
	switch {
	case err == nil:
		u.logger.Debug("[upserter] Created agency %q", agency.Name)
		return agency, nil
	case errors.Is(err, storage.ErrConflict):
		u.logger.Debug("[upserter] Agency %q created concurrently, re-reading", raw.ProfileURL)
		winner, err := u.store.GetAgencyByProfileURL(ctx, raw.ProfileURL)
		if err != nil {
			return nil, fmt.Errorf("upserter: re-read agency %q after conflict: %w", raw.ProfileURL, err)
		}
		return winner, nil
	default:
		return nil, fmt.Errorf("upserter: create agency %q: %w", raw.ProfileURL, err)
	}
}

func (u *Upserter) resolveListing(ctx context.Context, n models.NormalizedListing, agencyID uuid.UUID) (*models.Listing, models.IngestOutcome, error) {
	existing, err := u.store.GetListingByReferenceCode(ctx, n.ReferenceCode)
	if err == nil {
		return existing, models.OutcomeExisting, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, "", fmt.Errorf("upserter: lookup listing %s: %w", n.ReferenceCode, err)
	}

	listing := u.newListing(n, agencyID)
	err = u.store.CreateListing(ctx, listing)
	switch {
	case err == nil:
		return listing, models.OutcomeCreated, nil
	case errors.Is(err, storage.ErrConflict):
		winner, err := u.store.GetListingByReferenceCode(ctx, n.ReferenceCode)
		if err != nil {
			return nil, "", fmt.Errorf("upserter: re-read listing %s after conflict: %w", n.ReferenceCode, err)
		}
		return winner, models.OutcomeExisting, nil
	default:
		return nil, "", fmt.Errorf("upserter: create listing %s: %w", n.ReferenceCode, err)
	}
}

func (u *Upserter) newListing(n models.NormalizedListing, agencyID uuid.UUID) *models.Listing {
	now := u.now().UTC()
	return &models.Listing{
		ID:                  u.newID(),
		CreatedAt:           now,
		UpdatedAt:           now,
		ReferenceCode:       n.ReferenceCode,
		PropertyType:        n.PropertyType,
		TransactionType:     n.TransactionType,
		City:                n.City,
		Neighborhood:        n.Neighborhood,
		BedroomQuantity:     n.BedroomQuantity,
		SuiteQuantity:       n.SuiteQuantity,
		GarageSlotsQuantity: n.GarageSlotsQuantity,
		Price:               n.Price,
		Area:                n.Area,
		AreaTotal:           n.Area,
		Available:           true,
		AgencyID:            agencyID,
		ImagesURL:           []string{},
		URL:                 n.URL,
	}
}
