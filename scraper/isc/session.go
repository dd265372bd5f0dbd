package isc

import (
	"context"
	"errors"
	"iter"
	"net/url"
	"sync/atomic"

	"realestate-ingest/models"
	"realestate-ingest/utils"
)

// ErrPagesConsumed is yielded when a page sequence is ranged over a second time.
var ErrPagesConsumed = errors.New("isc: page sequence already consumed")

// Session paginates through the provider's results for one search URL, one
// page at a time, waiting on the throttle before every request.
type Session struct {
	fetcher  Fetcher
	throttle *utils.Throttle
	logger   *utils.Logger
}

// NewSession creates a Session. A nil throttle disables the courtesy delay.
func NewSession(fetcher Fetcher, throttle *utils.Throttle, logger *utils.Logger) *Session {
	if throttle == nil {
		throttle = utils.NewThrottle(0)
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Session{fetcher: fetcher, throttle: throttle, logger: logger}
}

// Pages returns the lazy sequence of result pages for searchURL. Page 1
// resolves the total listing and page counts; the sequence then visits
// pages 2..TotalPages in order and stops.
//
// A page whose fetch fails is yielded with Degraded set and no listings.
// The only error ever yielded is a context or throttle error, after which
// the sequence ends. The sequence can be ranged over once.
func (s *Session) Pages(ctx context.Context, searchURL string) iter.Seq2[models.PageResult, error] {
	var used atomic.Bool
	// Unparsable search URLs leave card links unresolved.
	base, _ := url.Parse(searchURL)

	return func(yield func(models.PageResult, error) bool) {
		if used.Swap(true) {
			yield(models.PageResult{}, ErrPagesConsumed)
			return
		}

		state := models.CrawlState{Page: 1}
		for !state.Resolved || state.Page <= state.TotalPages {
			var (
				page models.PageResult
				err  error
			)
			page, state, err = s.crawlPage(ctx, searchURL, base, state)
			if err != nil {
				yield(models.PageResult{Page: state.Page}, err)
				return
			}
			if !yield(page, nil) {
				return
			}
			state.Page++
		}
		s.logger.Info("[isc] Pagination complete - %d pages, %d listings reported", state.TotalPages, state.Total)
	}
}

// crawlPage fetches and parses state.Page and returns the state with the
// totals resolved.
func (s *Session) crawlPage(
	ctx context.Context, searchURL string, base *url.URL, state models.CrawlState,
) (models.PageResult, models.CrawlState, error) {
	if err := ctx.Err(); err != nil {
		return models.PageResult{}, state, err
	}
	if err := s.throttle.Wait(ctx); err != nil {
		return models.PageResult{}, state, err
	}

	log := s.logger.With("page", state.Page)
	pageURL := PageURL(searchURL, state.Page)
	log.Debug("[isc] Fetching page %d: %s", state.Page, pageURL)

	body, err := s.fetcher.Fetch(ctx, pageURL)
	degraded := false
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.PageResult{}, state, ctxErr
		}
		log.Warn("[isc] Page %d fetch failed, treating as empty: %v", state.Page, err)
		body = ""
		degraded = true
	}

	if !state.Resolved {
		state.Total, state.TotalPages = ParseTotals(body)
		state.Resolved = true
		log.Info("[isc] Search reports %d listings over %d pages", state.Total, state.TotalPages)
	}

	listings := ParsePage(body, base)
	for _, l := range listings {
		if len(l.Missing) > 0 {
			log.Debug("[isc] Page %d card %q missing %v", state.Page, l.Code, l.Missing)
		}
	}
	log.Info("[isc] Page %d of %d - %d listings", state.Page, state.TotalPages, len(listings))

	return models.PageResult{
		Page:       state.Page,
		Total:      state.Total,
		TotalPages: state.TotalPages,
		Listings:   listings,
		Degraded:   degraded,
	}, state, nil
}
