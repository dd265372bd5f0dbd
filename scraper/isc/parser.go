package isc

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"realestate-ingest/models"
)

var (
	pageCountRe    = regexp.MustCompile(`de (\d+)`)
	ratingSuffixRe = regexp.MustCompile(`\s*-\s*\d+(\.\d+)?$`)
	styleURLRe     = regexp.MustCompile(`url\((.*?)\)`)
	creciRe        = regexp.MustCompile(`CRECI:\s*(\d+)`)
	nonDigitRe     = regexp.MustCompile(`\D`)
)

// field names reported in RawListing.Missing
const (
	fieldCode         = "code"
	fieldModel        = "model"
	fieldCity         = "city"
	fieldNeighborhood = "neighborhood"
	fieldSummary      = "summary"
	fieldURL          = "url"
	fieldBedrooms     = "bedrooms"
	fieldSuites       = "suites"
	fieldGarageSlots  = "garage_slots"
	fieldArea         = "area"
	fieldPrice        = "price"
	fieldAgency       = "agency"
)

func parseDocument(body string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		// The html tokenizer only fails on reader errors; a strings.Reader
		// has none, but an empty document keeps callers total anyway.
		doc, _ = goquery.NewDocumentFromReader(strings.NewReader(""))
	}
	return doc
}

// ParseTotals reads the listing count and page count from a result page.
// A missing count is 0 and a missing page count is 1, so pagination always
// has an upper bound.
func ParseTotals(body string) (total, pages int) {
	doc := parseDocument(body)

	countText := doc.Find("div.header-data span.lista-imovel-count").First().Text()
	if digits := nonDigitRe.ReplaceAllString(countText, ""); digits != "" {
		if n, err := strconv.Atoi(digits); err == nil {
			total = n
		}
	}

	pages = 1
	nav := doc.Find("div.navigation").First()
	if nav.Length() > 0 {
		if m := pageCountRe.FindStringSubmatch(strings.Join(strings.Fields(nav.Text()), " ")); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				pages = n
			}
		}
	}
	return total, pages
}

// ParsePage extracts every listing card of a result page. Relative links are
// resolved against base when it is not nil. A page without listing cards,
// including empty or truncated markup, yields an empty slice.
func ParsePage(body string, base *url.URL) []models.RawListing {
	doc := parseDocument(body)

	cards := doc.Find("div.imovel-data")
	listings := make([]models.RawListing, 0, cards.Length())
	cards.Each(func(_ int, card *goquery.Selection) {
		listings = append(listings, parseCard(card, base))
	})
	return listings
}

func parseCard(card *goquery.Selection, base *url.URL) models.RawListing {
	var missing []string
	take := func(name string) func(string, bool) string {
		return func(value string, ok bool) string {
			if !ok {
				missing = append(missing, name)
			}
			return value
		}
	}

	location, hasLocation := extractLocation(card)
	city, hasCity := locationPart(location, hasLocation, 0)
	neighborhood, hasNeighborhood := locationPart(location, hasLocation, 1)

	raw := models.RawListing{
		Code:         take(fieldCode)(metaContent(card, "sku")),
		Model:        take(fieldModel)(metaContent(card, "model")),
		City:         take(fieldCity)(city, hasCity),
		Neighborhood: take(fieldNeighborhood)(neighborhood, hasNeighborhood),
		Summary:      take(fieldSummary)(metaContent(card, "name")),
		URL:          take(fieldURL)(extractURL(card, base)),
		Bedrooms:     take(fieldBedrooms)(featureValue(card, "mdi-bed-king-outline")),
		Suites:       take(fieldSuites)(featureValue(card, "mdi-shower")),
		GarageSlots:  take(fieldGarageSlots)(featureValue(card, "mdi-car")),
		Area:         take(fieldArea)(featureValue(card, "mdi-arrow-expand")),
		Price:        take(fieldPrice)(metaContent(card, "lowprice")),
	}

	if agency, ok := extractAgency(card, base); ok {
		raw.Agency = agency
	} else {
		missing = append(missing, fieldAgency)
	}

	raw.Missing = missing
	return raw
}

func metaContent(card *goquery.Selection, itemprop string) (string, bool) {
	return card.Find(`meta[itemprop="` + itemprop + `"]`).First().Attr("content")
}

// extractLocation returns the "City, Neighborhood" caption of a card.
func extractLocation(card *goquery.Selection) (string, bool) {
	strong := card.Find("div.imovel-extra strong").First()
	if strong.Length() == 0 {
		return "", false
	}
	return strong.Text(), true
}

func locationPart(location string, ok bool, idx int) (string, bool) {
	if !ok {
		return "", false
	}
	parts := strings.Split(location, ",")
	if idx >= len(parts) {
		return "", false
	}
	return strings.TrimSpace(parts[idx]), true
}

func extractURL(card *goquery.Selection, base *url.URL) (string, bool) {
	href, ok := card.Find("a").First().Attr("href")
	if !ok {
		return "", false
	}
	return resolve(base, href), true
}

// featureValue reads the <strong> of the <li> holding the given icon.
func featureValue(card *goquery.Selection, iconClass string) (string, bool) {
	li := card.Find("i." + iconClass).First().Closest("li")
	if li.Length() == 0 {
		return "", false
	}
	strong := li.Find("strong").First()
	if strong.Length() == 0 {
		return "", false
	}
	return strings.TrimSpace(strong.Text()), true
}

func extractAgency(card *goquery.Selection, base *url.URL) (*models.RawAgency, bool) {
	a := card.Find("a.imovel-anunciante").First()
	if a.Length() == 0 {
		return nil, false
	}

	agency := &models.RawAgency{}
	if href, ok := a.Attr("href"); ok {
		agency.ProfileURL = resolve(base, href)
	}
	if title, ok := a.Attr("title"); ok {
		agency.Name = strings.TrimSpace(ratingSuffixRe.ReplaceAllString(title, ""))
	}
	if style, ok := a.Attr("style"); ok {
		if m := styleURLRe.FindStringSubmatch(style); m != nil {
			agency.LogoURL = strings.Trim(strings.TrimSpace(m[1]), `'"`)
		}
	}
	return agency, true
}

func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if base == nil || href == "" {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// ParseAgencyDetails reads the CRECI registration and phone numbers from an
// agency profile page. Absent markup leaves the matching field empty.
func ParseAgencyDetails(body string) models.AgencyDetails {
	doc := parseDocument(body)

	var details models.AgencyDetails
	doc.Find("h1.title span").EachWithBreak(func(_ int, span *goquery.Selection) bool {
		if m := creciRe.FindStringSubmatch(span.Text()); m != nil {
			details.Creci = m[1]
			return false
		}
		return true
	})

	doc.Find(`a[href^="tel:+"]`).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		details.PhoneNumbers = append(details.PhoneNumbers, strings.TrimPrefix(href, "tel:"))
	})
	return details
}

// ParseListingDetails reads gallery images and the condominium fee from a
// listing page.
func ParseListingDetails(body string) models.ListingDetails {
	doc := parseDocument(body)

	var details models.ListingDetails
	doc.Find("div.visualizar-galeria img").Each(func(_ int, img *goquery.Selection) {
		src := img.AttrOr("src", "")
		if src == "" {
			src = img.AttrOr("data-src", "")
		}
		if src != "" {
			details.Images = append(details.Images, src)
		}
	})

	details.CondoPrice = strings.TrimSpace(doc.Find("div.visualizar-preco.has-extra span").First().Text())
	return details
}
