package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"realestate-ingest/models"
	"realestate-ingest/storage"
	"realestate-ingest/utils"
)

// allowedTransitions lists, per target state, the states a search may be in
// before moving there. PARTIAL is reachable from every state so a finished
// or interrupted search can be crawled again.
var allowedTransitions = map[models.QueryStatus][]models.QueryStatus{
	models.StatusPartial: {
		models.StatusNotStarted, models.StatusStarted, models.StatusPartial, models.StatusFinished,
	},
	models.StatusFinished: {models.StatusPartial},
}

func canTransition(from, to models.QueryStatus) bool {
	for _, s := range allowedTransitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

// ProgressTracker owns the status/count record of one search during a crawl.
type ProgressTracker struct {
	store    storage.SearchStore
	searchID uuid.UUID
	logger   *utils.Logger
}

func NewProgressTracker(store storage.SearchStore, searchID uuid.UUID, logger *utils.Logger) *ProgressTracker {
	return &ProgressTracker{store: store, searchID: searchID, logger: logger}
}

// MarkPartial records the listing total reported by page 1 and moves the
// search to PARTIAL.
func (t *ProgressTracker) MarkPartial(ctx context.Context, total int) error {
	return t.transition(ctx, models.StatusPartial, &total)
}

// MarkFinished moves the search from PARTIAL to FINISHED, keeping its total.
func (t *ProgressTracker) MarkFinished(ctx context.Context) error {
	return t.transition(ctx, models.StatusFinished, nil)
}

func (t *ProgressTracker) transition(ctx context.Context, to models.QueryStatus, total *int) error {
	current, err := t.store.GetSearchProgress(ctx, t.searchID)
	if err != nil {
		return fmt.Errorf("progress: load search %s: %w", t.searchID, err)
	}
	if !canTransition(current.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, to)
	}

	next := current
	next.SearchID = t.searchID
	next.Status = to
	if total != nil {
		next.Total = *total
	}
	if err := t.store.UpdateSearchProgress(ctx, next); err != nil {
		return fmt.Errorf("progress: save search %s: %w", t.searchID, err)
	}

	t.logger.Info("[progress] Search %s: %s -> %s (total %d)", t.searchID, current.Status, to, next.Total)
	return nil
}
