package services

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"realestate-ingest/models"
	"realestate-ingest/scraper/isc"
	"realestate-ingest/utils"
)

// Normalizer converts RawListings into canonical values.
type Normalizer struct {
	logger *utils.Logger
}

// NewNormalizer creates a Normalizer with the given logger.
func NewNormalizer(logger *utils.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize canonicalizes one raw listing. It fails with ErrInvalidListing
// when the listing cannot be stored: no reference code, no agency profile,
// or a count that is not an integer. Unparsable prices and areas become 0.
func (n *Normalizer) Normalize(raw models.RawListing) (models.NormalizedListing, error) {
	code := strings.TrimSpace(raw.Code)
	if code == "" {
		return models.NormalizedListing{}, fmt.Errorf("%w: missing reference code (url %q)", ErrInvalidListing, raw.URL)
	}
	if raw.Agency == nil || strings.TrimSpace(raw.Agency.ProfileURL) == "" {
		return models.NormalizedListing{}, fmt.Errorf("%w: listing %s has no agency profile", ErrInvalidListing, code)
	}

	bedrooms, err := parseCount(raw.Bedrooms)
	if err != nil {
		return models.NormalizedListing{}, fmt.Errorf("%w: listing %s bedrooms: %v", ErrInvalidListing, code, err)
	}
	suites, err := parseCount(raw.Suites)
	if err != nil {
		return models.NormalizedListing{}, fmt.Errorf("%w: listing %s suites: %v", ErrInvalidListing, code, err)
	}
	garageSlots, err := parseCount(raw.GarageSlots)
	if err != nil {
		return models.NormalizedListing{}, fmt.Errorf("%w: listing %s garage slots: %v", ErrInvalidListing, code, err)
	}

	transactionType, propertyType := n.typesFromURL(raw.URL)

	return models.NormalizedListing{
		ReferenceCode:       code,
		PropertyType:        propertyType,
		TransactionType:     transactionType,
		City:                normaliseText(raw.City),
		Neighborhood:        normaliseText(raw.Neighborhood),
		BedroomQuantity:     bedrooms,
		SuiteQuantity:       suites,
		GarageSlotsQuantity: garageSlots,
		Price:               n.parseDecimal("price", code, raw.Price),
		Area:                n.parseDecimal("area", code, raw.Area),
		URL:                 strings.TrimSpace(raw.URL),
		Agency: models.RawAgency{
			Name:       normaliseText(raw.Agency.Name),
			ProfileURL: strings.TrimSpace(raw.Agency.ProfileURL),
			LogoURL:    strings.TrimSpace(raw.Agency.LogoURL),
		},
	}, nil
}

func (n *Normalizer) parseDecimal(field, code, raw string) float64 {
	v, ok := parseDecimal(raw)
	if !ok && strings.TrimSpace(raw) != "" {
		n.logger.Warn("[normalizer] Listing %s: cannot convert %s %q, using 0", code, field, raw)
	}
	return v
}

// typesFromURL reads the transaction and property tokens from a listing URL
// path (/{city}/{transaction}/{property-type}/...).
func (n *Normalizer) typesFromURL(rawURL string) (models.TransactionType, models.PropertyType) {
	segments := pathSegments(rawURL)

	var txToken, typeToken string
	if len(segments) > 1 {
		txToken = segments[1]
	}
	if len(segments) > 2 {
		typeToken = segments[2]
	}

	tt, ok := isc.TransactionTypeFromToken(txToken)
	if !ok {
		n.logger.Debug("[normalizer] Unknown transaction token %q in %s, using %s", txToken, rawURL, tt)
	}
	pt, ok := isc.PropertyTypeFromToken(typeToken)
	if !ok {
		n.logger.Debug("[normalizer] Unknown property token %q in %s, using %s", typeToken, rawURL, pt)
	}
	return tt, pt
}

func pathSegments(rawURL string) []string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil
	}
	var segments []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// ParseDecimal converts a provider number using "." as thousands separator
// and "," as decimal separator. Examples:
//
//	"1.234,56"   → 1234.56
//	"550.000,00" → 550000
//	"68"         → 68
//
// Anything unparsable yields 0.
func ParseDecimal(raw string) float64 {
	v, _ := parseDecimal(raw)
	return v
}

func parseDecimal(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.Replace(s, ",", ".", 1)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseCount reads a bedroom/suite/garage count. An empty value means 0.
func parseCount(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", raw)
	}
	if n < 0 {
		return 0, fmt.Errorf("negative count: %q", raw)
	}
	return n, nil
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
