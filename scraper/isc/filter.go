package isc

import (
	"strconv"
	"strings"

	"realestate-ingest/models"
)

// bucketCap is the smallest quantity the provider folds into its "5+" option.
const bucketCap = 5

const bucketCapOption = "5+"

// CollapseBuckets turns filter quantities into provider options: values of
// five or more become "5+", duplicates are dropped keeping first-seen order,
// and negative values are ignored.
func CollapseBuckets(values []int) []string {
	options := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, n := range values {
		if n < 0 {
			continue
		}
		opt := bucketCapOption
		if n < bucketCap {
			opt = strconv.Itoa(n)
		}
		if _, dup := seen[opt]; dup {
			continue
		}
		seen[opt] = struct{}{}
		options = append(options, opt)
	}
	return options
}

// bucketOmitted reports whether a bucket parameter must be left out of the
// URL: the provider treats "0" as "any", and an empty list has nothing to say.
func bucketOmitted(options []string) bool {
	return len(options) == 0 || (len(options) == 1 && options[0] == "0")
}

// EncodeFilter renders f in the provider's path+query grammar:
//
//	{city}/{tx+tx}/{type+type}/{hood_hood}[/quartos/{b,b}]?valor={min}-{max}&area={min}-{max}[&suites=..][&vagas=..]
//
// Suite and garage options are percent-encoded ("," as %2C, "+" as %2B).
// The result depends on f only.
func EncodeFilter(f models.SearchFilter) string {
	var b strings.Builder

	b.WriteString(f.City)
	b.WriteByte('/')
	b.WriteString(strings.Join(transactionSegment(f.TransactionTypes), "+"))
	b.WriteByte('/')
	b.WriteString(strings.Join(propertySegment(f.PropertyTypes), "+"))
	b.WriteByte('/')
	b.WriteString(strings.Join(f.Neighborhoods, "_"))

	if bedrooms := CollapseBuckets(f.Bedrooms); !bucketOmitted(bedrooms) {
		b.WriteString("/quartos/")
		b.WriteString(strings.Join(bedrooms, ","))
	}

	b.WriteString("?valor=")
	b.WriteString(formatBound(f.MinPrice))
	b.WriteByte('-')
	b.WriteString(formatBound(f.MaxPrice))
	b.WriteString("&area=")
	b.WriteString(formatBound(f.MinArea))
	b.WriteByte('-')
	b.WriteString(formatBound(f.MaxArea))

	if suites := CollapseBuckets(f.Suites); !bucketOmitted(suites) {
		b.WriteString("&suites=")
		b.WriteString(encodeQueryBucket(suites))
	}
	if garages := CollapseBuckets(f.GarageSlots); !bucketOmitted(garages) {
		b.WriteString("&vagas=")
		b.WriteString(encodeQueryBucket(garages))
	}

	return b.String()
}

// BuildSearchURL joins the provider base URL and the encoded filter.
func BuildSearchURL(baseURL string, f models.SearchFilter) string {
	return strings.TrimRight(baseURL, "/") + "/" + EncodeFilter(f)
}

// PageURL returns the URL of result page n. Page 1 is the search URL itself.
func PageURL(searchURL string, page int) string {
	if page <= 1 {
		return searchURL
	}
	return searchURL + "&page=" + strconv.Itoa(page)
}

func transactionSegment(types []models.TransactionType) []string {
	tokens := make([]string, 0, len(types))
	for _, tt := range types {
		tokens = appendUnique(tokens, TransactionToken(tt))
	}
	return tokens
}

func propertySegment(types []models.PropertyType) []string {
	tokens := make([]string, 0, len(types))
	for _, pt := range types {
		tokens = appendUnique(tokens, PropertyToken(pt))
	}
	return tokens
}

func appendUnique(tokens []string, tok string) []string {
	for _, t := range tokens {
		if t == tok {
			return tokens
		}
	}
	return append(tokens, tok)
}

func encodeQueryBucket(options []string) string {
	encoded := make([]string, len(options))
	for i, opt := range options {
		encoded[i] = strings.ReplaceAll(opt, "+", "%2B")
	}
	return strings.Join(encoded, "%2C")
}

// formatBound truncates a price or area bound to an integer, as the provider
// only accepts whole numbers.
func formatBound(v float64) string {
	return strconv.FormatInt(int64(v), 10)
}
