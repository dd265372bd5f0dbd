package services

import "errors"

var (
	// ErrDependencyResolution means the search or its filter could not be
	// loaded. The crawl is aborted before any page is fetched.
	ErrDependencyResolution = errors.New("cannot resolve search")

	// ErrInvalidListing means a scraped listing cannot be stored. Only that
	// listing is skipped.
	ErrInvalidListing = errors.New("invalid listing")

	// ErrInvalidTransition is returned when a search is asked to move to a
	// state its current state does not lead to.
	ErrInvalidTransition = errors.New("invalid search status transition")
)
