package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"realestate-ingest/models"
	"realestate-ingest/storage"
)

const testBaseURL = "https://www.imoveis-sc.com.br"

// pageFetcher answers the n-th request with bodies[n] or fails[n].
type pageFetcher struct {
	mu     sync.Mutex
	urls   []string
	bodies map[int]string
	fails  map[int]error
}

func (f *pageFetcher) Fetch(_ context.Context, u string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, u)
	n := len(f.urls)
	if err, ok := f.fails[n]; ok {
		return "", err
	}
	return f.bodies[n], nil
}

func (f *pageFetcher) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

// urlFetcher answers by exact URL.
type urlFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	calls  []string
}

func (f *urlFetcher) Fetch(_ context.Context, u string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, u)
	body, ok := f.bodies[u]
	if !ok {
		return "", fmt.Errorf("no page for %s", u)
	}
	return body, nil
}

type card struct {
	code   string
	hood   string
	price  string
	agency string
}

func (c card) html() string {
	return fmt.Sprintf(`<div class="imovel-data">
<meta itemprop="model" content="Apartamento"><meta itemprop="sku" content="%[1]s">
<a href="/blumenau/comprar/apartamento/%[2]s/imovel/%[1]s"></a>
<div class="imovel-extra"><strong>Blumenau, %[2]s</strong></div>
<ul><li><i class="mdi mdi-bed-king-outline"></i><strong>2</strong></li>
<li><i class="mdi mdi-arrow-expand"></i><strong>70,00</strong></li></ul>
<div itemprop="offers"><meta itemprop="lowprice" content="%[3]s"></div>
<a class="imovel-anunciante" href="/imobiliaria/%[4]s" title="%[4]s - 4.5"
   style="background-image: url('https://cdn.imoveis-sc.com.br/logos/%[4]s.png');"></a>
</div>`, c.code, c.hood, c.price, c.agency)
}

// rawCard is listing markup used verbatim.
type rawCard string

func (c rawCard) html() string { return string(c) }

type cardMarkup interface{ html() string }

func searchPage(total, pages int, cards ...cardMarkup) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<html><body><div class="header-data"><span class="lista-imovel-count">%d</span></div>`, total)
	for _, c := range cards {
		b.WriteString(c.html())
	}
	fmt.Fprintf(&b, `<div class="navigation"><span>Página 1 de %d</span></div></body></html>`, pages)
	return b.String()
}

func blumenauFilter() models.SearchFilter {
	return models.SearchFilter{
		PropertyTypes:    []models.PropertyType{models.PropertyApartment},
		TransactionTypes: []models.TransactionType{models.TransactionBuy},
		City:             "blumenau",
		Neighborhoods:    []string{"centro"},
		Bedrooms:         []int{2},
		MinPrice:         100000,
		MaxPrice:         900000,
		MinArea:          30,
		MaxArea:          120,
	}
}

func newSearch(store *storage.MemoryStore) uuid.UUID {
	id := uuid.New()
	store.AddSearch(id, blumenauFilter())
	return id
}

func normalized(code, profile string) models.NormalizedListing {
	return models.NormalizedListing{
		ReferenceCode:       code,
		PropertyType:        models.PropertyApartment,
		TransactionType:     models.TransactionBuy,
		City:                "Blumenau",
		Neighborhood:        "Centro",
		BedroomQuantity:     2,
		SuiteQuantity:       1,
		GarageSlotsQuantity: 1,
		Price:               550000,
		Area:                68.5,
		URL:                 testBaseURL + "/blumenau/comprar/apartamento/centro/imovel/" + code,
		Agency: models.RawAgency{
			Name:       "Vale Imoveis",
			ProfileURL: profile,
			LogoURL:    "https://cdn.imoveis-sc.com.br/logos/vale.png",
		},
	}
}
