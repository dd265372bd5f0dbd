package services

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"realestate-ingest/models"
	"realestate-ingest/scraper/isc"
	"realestate-ingest/storage"
	"realestate-ingest/utils"
)

// PageSource yields the result pages of one provider search URL.
// isc.Session is the production implementation.
type PageSource interface {
	Pages(ctx context.Context, searchURL string) iter.Seq2[models.PageResult, error]
}

// OrchestratorOptions holds the optional collaborators of an Orchestrator.
type OrchestratorOptions struct {
	// BaseURL is the provider root; isc.DefaultBaseURL when empty.
	BaseURL string
	// RawWriter receives every parsed page before normalization. Optional.
	RawWriter storage.RawListingWriter
	// Metrics is optional.
	Metrics *utils.Metrics
}

// Orchestrator runs one crawl: it loads the search filter, walks the
// provider pages and ingests every listing while advancing the search
// progress.
type Orchestrator struct {
	store      storage.Store
	pages      PageSource
	normalizer *Normalizer
	upserter   *Upserter
	reports    *ReportService
	logger     *utils.Logger
	opts       OrchestratorOptions
	now        func() time.Time
}

func NewOrchestrator(store storage.Store, pages PageSource, logger *utils.Logger, opts OrchestratorOptions) *Orchestrator {
	if opts.BaseURL == "" {
		opts.BaseURL = isc.DefaultBaseURL
	}
	return &Orchestrator{
		store:      store,
		pages:      pages,
		normalizer: NewNormalizer(logger),
		upserter:   NewUpserter(store, logger),
		reports:    NewReportService(),
		logger:     logger,
		opts:       opts,
		now:        time.Now,
	}
}

// Run crawls the search identified by searchID once. It fails with
// ErrDependencyResolution, before any page is fetched, when the search or
// its filter cannot be loaded. A cancelled context stops the crawl between
// pages. In both cases, and when a panic is recovered, the search progress
// is not moved to FINISHED. The returned report is non-nil whenever the
// crawl got past filter resolution.
func (o *Orchestrator) Run(ctx context.Context, searchID uuid.UUID) (report *models.CrawlReport, err error) {
	log := o.logger.With("search_id", searchID.String())
	defer func() {
		if r := recover(); r != nil {
			log.Error("[orchestrator] Search %s: crawl panicked: %v\n%s", searchID, r, debug.Stack())
			err = fmt.Errorf("orchestrator: crawl of search %s panicked: %v", searchID, r)
		}
	}()

	filter, err := o.resolveFilter(ctx, searchID)
	if err != nil {
		log.Error("[orchestrator] Search %s: %v", searchID, err)
		return nil, err
	}

	searchURL := isc.BuildSearchURL(o.opts.BaseURL, filter)
	log.Info("[orchestrator] Search %s: crawling %s", searchID, searchURL)

	report = &models.CrawlReport{SearchID: searchID, StartedAt: o.now()}
	tracker := NewProgressTracker(o.store, searchID, log)
	seen := utils.NewCodeSet()
	var ingested []models.NormalizedListing

	for page, pageErr := range o.pages.Pages(ctx, searchURL) {
		if pageErr != nil {
			log.Warn("[orchestrator] Search %s: crawl stopped at page %d: %v", searchID, page.Page, pageErr)
			o.finishReport(report, ingested)
			return report, pageErr
		}

		report.PagesFetched++
		if page.Degraded {
			report.PagesDegraded++
		}
		o.opts.Metrics.ObservePage(page.Degraded)

		if page.Page == 1 {
			report.Total, report.TotalPages = page.Total, page.TotalPages
			if err := tracker.MarkPartial(ctx, page.Total); err != nil {
				o.finishReport(report, ingested)
				return report, err
			}
		}

		o.writeRaw(log, searchID, page)
		ingested = append(ingested, o.ingestPage(ctx, log, searchID, page, seen, report)...)
	}

	if err := tracker.MarkFinished(ctx); err != nil {
		o.finishReport(report, ingested)
		return report, err
	}
	report.Finished = true

	if n, err := o.store.CountSearchResults(ctx, searchID); err != nil {
		log.Warn("[orchestrator] Search %s: cannot count results: %v", searchID, err)
	} else {
		report.SearchResults = n
	}

	o.finishReport(report, ingested)
	log.Info("[orchestrator] Search %s finished - %d pages (%d degraded), %d unique codes, %d created, %d existing, %d failed in %v",
		searchID, report.PagesFetched, report.PagesDegraded, seen.Size(),
		report.ListingsCreated, report.ListingsExisting, report.ListingsFailed, report.Duration)
	return report, nil
}

// Reports returns the ReportService the orchestrator summarizes crawls with.
func (o *Orchestrator) Reports() *ReportService {
	return o.reports
}

func (o *Orchestrator) resolveFilter(ctx context.Context, searchID uuid.UUID) (models.SearchFilter, error) {
	filter, err := o.store.GetSearchFilter(ctx, searchID)
	if err != nil {
		return models.SearchFilter{}, fmt.Errorf("%w: load filter of search %s: %w", ErrDependencyResolution, searchID, err)
	}
	switch {
	case filter.City == "":
		return models.SearchFilter{}, fmt.Errorf("%w: search %s has no city", ErrDependencyResolution, searchID)
	case len(filter.PropertyTypes) == 0:
		return models.SearchFilter{}, fmt.Errorf("%w: search %s has no property type", ErrDependencyResolution, searchID)
	case len(filter.TransactionTypes) == 0:
		return models.SearchFilter{}, fmt.Errorf("%w: search %s has no transaction type", ErrDependencyResolution, searchID)
	}
	return filter, nil
}

func (o *Orchestrator) writeRaw(log *utils.Logger, searchID uuid.UUID, page models.PageResult) {
	if o.opts.RawWriter == nil || len(page.Listings) == 0 {
		return
	}
	if err := o.opts.RawWriter.WriteRaw(searchID, page.Page, page.Listings); err != nil {
		log.Warn("[orchestrator] Page %d: raw dump failed: %v", page.Page, err)
	}
}

// ingestPage stores every listing of page. A failing listing is logged and
// skipped. Codes already handled earlier in this crawl are skipped too.
func (o *Orchestrator) ingestPage(
	ctx context.Context, log *utils.Logger, searchID uuid.UUID, page models.PageResult,
	seen *utils.CodeSet, report *models.CrawlReport,
) []models.NormalizedListing {
	log = log.With("page", page.Page)
	var ingested []models.NormalizedListing
	for _, raw := range page.Listings {
		report.ListingsSeen++

		n, err := o.normalizer.Normalize(raw)
		if err != nil {
			o.failListing(log, report, page.Page, raw.Code, err)
			continue
		}
		if !seen.Add(n.ReferenceCode) {
			log.Debug("[orchestrator] Page %d: listing %s already handled in this crawl", page.Page, n.ReferenceCode)
			continue
		}

		outcome, err := o.upserter.Ingest(ctx, searchID, n)
		if err != nil {
			o.failListing(log, report, page.Page, n.ReferenceCode, err)
			continue
		}

		switch outcome {
		case models.OutcomeCreated:
			report.ListingsCreated++
		case models.OutcomeExisting:
			report.ListingsExisting++
		}
		o.opts.Metrics.ObserveListing(string(outcome))
		ingested = append(ingested, n)
	}
	return ingested
}

func (o *Orchestrator) failListing(log *utils.Logger, report *models.CrawlReport, page int, code string, err error) {
	log = log.With("code", code)
	report.ListingsFailed++
	o.opts.Metrics.ObserveListing("failed")
	if errors.Is(err, ErrInvalidListing) {
		log.Warn("[orchestrator] Page %d: skipping listing %q: %v", page, code, err)
		return
	}
	log.Error("[orchestrator] Page %d: listing %q not stored: %v", page, code, err)
}

func (o *Orchestrator) finishReport(report *models.CrawlReport, ingested []models.NormalizedListing) {
	report.Duration = o.now().Sub(report.StartedAt)
	o.reports.Summarize(report, ingested)
	o.opts.Metrics.ObserveCrawl(report.Duration)
}
