package services

import (
	"context"
	"fmt"
	"time"

	"realestate-ingest/models"
	"realestate-ingest/scraper/isc"
	"realestate-ingest/storage"
	"realestate-ingest/utils"
)

// EnrichResult counts what one enrichment pass did.
type EnrichResult struct {
	Visited int
	Updated int
	Failed  int
}

// Enricher fills the agency and listing fields that only the provider's
// detail pages carry. It shares the courtesy throttle with the crawler.
type Enricher struct {
	store    storage.Store
	fetcher  isc.Fetcher
	throttle *utils.Throttle
	logger   *utils.Logger
	now      func() time.Time
}

func NewEnricher(store storage.Store, fetcher isc.Fetcher, throttle *utils.Throttle, logger *utils.Logger) *Enricher {
	if throttle == nil {
		throttle = utils.NewThrottle(0)
	}
	return &Enricher{store: store, fetcher: fetcher, throttle: throttle, logger: logger, now: time.Now}
}

// EnrichAgencies visits the profile page of up to limit agencies that have
// no CRECI yet, least recently checked first, and stores the CRECI and the
// first two phone numbers. Every visit records the check time, so agencies
// whose page never carries a CRECI rotate to the back of the queue.
func (e *Enricher) EnrichAgencies(ctx context.Context, limit int) (EnrichResult, error) {
	var res EnrichResult

	agencies, err := e.store.ListAgenciesWithoutDetails(ctx, limit)
	if err != nil {
		return res, fmt.Errorf("enricher: list agencies: %w", err)
	}
	e.logger.Info("[enricher] %d agencies without details", len(agencies))

	for i := range agencies {
		a := &agencies[i]
		changed, failed := false, false

		body, err := e.fetch(ctx, a.ProfileURL)
		switch {
		case err != nil && ctx.Err() != nil:
			return res, ctx.Err()
		case err != nil:
			failed = true
			res.Failed++
			e.logger.Warn("[enricher] Agency %q: %v", a.Name, err)
		default:
			res.Visited++
			changed = applyAgencyDetails(a, isc.ParseAgencyDetails(body))
			if !changed {
				e.logger.Debug("[enricher] Agency %q: profile page has no new details", a.Name)
			}
		}

		checked := e.now().UTC()
		a.DetailsCheckedAt = &checked
		if err := e.store.UpdateAgencyDetails(ctx, a); err != nil {
			if !failed {
				res.Failed++
			}
			e.logger.Error("[enricher] Agency %q: update failed: %v", a.Name, err)
			continue
		}
		if changed {
			res.Updated++
		}
	}

	e.logger.Info("[enricher] Agencies - %d visited, %d updated, %d failed", res.Visited, res.Updated, res.Failed)
	return res, nil
}

// EnrichListings visits the page of up to limit listings that have no
// images yet, least recently checked first, and stores the gallery and the
// condominium fee. Like EnrichAgencies it records the check time on every
// visit.
func (e *Enricher) EnrichListings(ctx context.Context, limit int) (EnrichResult, error) {
	var res EnrichResult

	listings, err := e.store.ListListingsWithoutImages(ctx, limit)
	if err != nil {
		return res, fmt.Errorf("enricher: list listings: %w", err)
	}
	e.logger.Info("[enricher] %d listings without images", len(listings))

	for i := range listings {
		l := &listings[i]
		changed, failed := false, false

		body, err := e.fetch(ctx, l.URL)
		switch {
		case err != nil && ctx.Err() != nil:
			return res, ctx.Err()
		case err != nil:
			failed = true
			res.Failed++
			e.logger.Warn("[enricher] Listing %s: %v", l.ReferenceCode, err)
		default:
			res.Visited++
			changed = applyListingDetails(l, isc.ParseListingDetails(body))
			if !changed {
				e.logger.Debug("[enricher] Listing %s: page has no gallery", l.ReferenceCode)
			}
		}

		now := e.now().UTC()
		l.DetailsCheckedAt = &now
		if changed {
			l.UpdatedAt = now
		}
		if err := e.store.UpdateListingDetails(ctx, l); err != nil {
			if !failed {
				res.Failed++
			}
			e.logger.Error("[enricher] Listing %s: update failed: %v", l.ReferenceCode, err)
			continue
		}
		if changed {
			res.Updated++
		}
	}

	e.logger.Info("[enricher] Listings - %d visited, %d updated, %d failed", res.Visited, res.Updated, res.Failed)
	return res, nil
}

// applyAgencyDetails copies what the profile page carries onto a and
// reports whether any stored field changed.
func applyAgencyDetails(a *models.Agency, d models.AgencyDetails) bool {
	before := [3]string{a.Creci, a.ContactNumber1, a.ContactNumber2}
	if d.Creci != "" {
		a.Creci = d.Creci
	}
	if len(d.PhoneNumbers) > 0 {
		a.ContactNumber1 = d.PhoneNumbers[0]
	}
	if len(d.PhoneNumbers) > 1 {
		a.ContactNumber2 = d.PhoneNumbers[1]
	}
	return before != [3]string{a.Creci, a.ContactNumber1, a.ContactNumber2}
}

func applyListingDetails(l *models.Listing, d models.ListingDetails) bool {
	if len(d.Images) == 0 && d.CondoPrice == "" {
		return false
	}
	condo := ParseDecimal(d.CondoPrice)
	changed := len(d.Images) > 0 || condo != l.CondPrice
	l.ImagesURL = append([]string{}, d.Images...)
	l.CondPrice = condo
	return changed
}

func (e *Enricher) fetch(ctx context.Context, pageURL string) (string, error) {
	if err := e.throttle.Wait(ctx); err != nil {
		return "", err
	}
	return e.fetcher.Fetch(ctx, pageURL)
}
