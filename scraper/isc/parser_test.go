package isc

import (
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(data)
}

func providerBase(t *testing.T) *url.URL {
	t.Helper()
	u, err := url.Parse(DefaultBaseURL)
	require.NoError(t, err)
	return u
}

func TestParseTotals(t *testing.T) {
	total, pages := ParseTotals(readFixture(t, "search_page.html"))
	assert.Equal(t, 47, total)
	assert.Equal(t, 5, pages)
}

func TestParseTotalsDefaults(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantTotal int
		wantPages int
	}{
		{"empty body", "", 0, 1},
		{"no navigation", `<div class="header-data"><span class="lista-imovel-count">3</span></div>`, 3, 1},
		{"navigation without count", `<div class="navigation">Página única</div>`, 0, 1},
		{"thousands separator", `<div class="header-data"><span class="lista-imovel-count">1.204</span></div>`, 1204, 1},
		{"garbage count", `<div class="header-data"><span class="lista-imovel-count">muitos</span></div>`, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, pages := ParseTotals(tt.body)
			assert.Equal(t, tt.wantTotal, total)
			assert.Equal(t, tt.wantPages, pages)
		})
	}
}

func TestParsePageFullCard(t *testing.T) {
	listings := ParsePage(readFixture(t, "search_page.html"), providerBase(t))
	require.Len(t, listings, 2)

	first := listings[0]
	assert.Equal(t, "AP0451", first.Code)
	assert.Equal(t, "Apartamento", first.Model)
	assert.Equal(t, "Blumenau", first.City)
	assert.Equal(t, "Centro", first.Neighborhood)
	assert.Equal(t, "Apartamento com 2 quartos à venda, 68 m² em Centro", first.Summary)
	assert.Equal(t, "https://www.imoveis-sc.com.br/blumenau/comprar/apartamento/centro/imovel/AP0451", first.URL)
	assert.Equal(t, "2", first.Bedrooms)
	assert.Equal(t, "1", first.Suites)
	assert.Equal(t, "1", first.GarageSlots)
	assert.Equal(t, "68,50", first.Area)
	assert.Equal(t, "550.000,00", first.Price)
	assert.Empty(t, first.Missing)

	require.NotNil(t, first.Agency)
	assert.Equal(t, "Vale Imóveis", first.Agency.Name)
	assert.Equal(t, "https://www.imoveis-sc.com.br/imobiliaria/vale-imoveis", first.Agency.ProfileURL)
	assert.Equal(t, "https://cdn.imoveis-sc.com.br/logos/vale.png", first.Agency.LogoURL)
}

func TestParsePageFieldsFailIndependently(t *testing.T) {
	listings := ParsePage(readFixture(t, "search_page.html"), providerBase(t))
	require.Len(t, listings, 2)

	second := listings[1]
	assert.Equal(t, "CA0099", second.Code)
	assert.Equal(t, "Blumenau", second.City)
	assert.Empty(t, second.Neighborhood)
	assert.Equal(t, "3", second.Bedrooms)
	assert.Empty(t, second.Suites)
	assert.Empty(t, second.GarageSlots)
	assert.Empty(t, second.Price)
	assert.ElementsMatch(t,
		[]string{"model", "neighborhood", "suites", "garage_slots", "area", "price"},
		second.Missing)

	require.NotNil(t, second.Agency)
	assert.Equal(t, "Casa Forte", second.Agency.Name)
	assert.Empty(t, second.Agency.LogoURL)
}

func TestParsePageWithoutAgency(t *testing.T) {
	body := `<div class="imovel-data"><meta itemprop="sku" content="X1"></div>`

	listings := ParsePage(body, nil)
	require.Len(t, listings, 1)
	assert.Equal(t, "X1", listings[0].Code)
	assert.Nil(t, listings[0].Agency)
	assert.Contains(t, listings[0].Missing, "agency")
}

func TestParsePageNeverFails(t *testing.T) {
	inputs := map[string]string{
		"empty":             "",
		"plain text":        "Service temporarily unavailable",
		"no containers":     `<html><body><div class="lista-vazia">Nenhum imóvel</div></body></html>`,
		"truncated":         `<div class="imovel-data"><meta itemprop="sku" content="TR1"><div class="imovel-extra"><strong>Blum`,
		"unbalanced":        `</div></div><li><i class="mdi-car"></li></ul>`,
		"binary":            "\x00\xff\xfe<div",
		"json error":        `{"error":"rate limited"}`,
		"nested containers": `<div class="imovel-data"><div class="imovel-data"></div></div>`,
	}

	for name, body := range inputs {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				listings := ParsePage(body, providerBase(t))
				assert.NotNil(t, listings)
			})
		})
	}
}

func TestParsePageTruncatedKeepsAvailableFields(t *testing.T) {
	body := `<div class="imovel-data"><meta itemprop="sku" content="TR1"><div class="imovel-extra"><strong>Blumenau, Vel`

	listings := ParsePage(body, nil)
	require.Len(t, listings, 1)
	assert.Equal(t, "TR1", listings[0].Code)
	assert.Equal(t, "Blumenau", listings[0].City)
	assert.Equal(t, "Vel", listings[0].Neighborhood)
}

func TestParsePageNoContainers(t *testing.T) {
	listings := ParsePage(`<html><body><p>Nenhum resultado</p></body></html>`, nil)
	assert.Empty(t, listings)
}

func TestParseAgencyDetails(t *testing.T) {
	details := ParseAgencyDetails(readFixture(t, "agency_page.html"))

	assert.Equal(t, "4512", details.Creci)
	assert.Equal(t, []string{"+554733221100", "+5547999887766"}, details.PhoneNumbers)
}

func TestParseAgencyDetailsAbsentMarkup(t *testing.T) {
	details := ParseAgencyDetails(`<h1 class="title">Sem registro</h1>`)

	assert.Empty(t, details.Creci)
	assert.Empty(t, details.PhoneNumbers)
}

func TestParseListingDetails(t *testing.T) {
	details := ParseListingDetails(readFixture(t, "listing_page.html"))

	assert.Equal(t, []string{
		"https://cdn.imoveis-sc.com.br/ap0451/1.jpg",
		"https://cdn.imoveis-sc.com.br/ap0451/2.jpg",
	}, details.Images)
	assert.Equal(t, "890,00", details.CondoPrice)
}

func TestParseListingDetailsAbsentMarkup(t *testing.T) {
	details := ParseListingDetails("")

	assert.Empty(t, details.Images)
	assert.Empty(t, details.CondoPrice)
}
