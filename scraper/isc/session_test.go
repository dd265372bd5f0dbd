package isc

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"realestate-ingest/models"
	"realestate-ingest/utils"
)

const testSearchURL = "https://www.imoveis-sc.com.br/blumenau/comprar/casa/centro?valor=1-2&area=3-4"

// scriptedFetcher serves canned bodies by page number and records every URL
// it was asked for.
type scriptedFetcher struct {
	mu     sync.Mutex
	urls   []string
	bodies map[int]string
	fails  map[int]error
}

func (f *scriptedFetcher) Fetch(_ context.Context, u string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, u)
	page := len(f.urls)
	if err, ok := f.fails[page]; ok {
		return "", err
	}
	return f.bodies[page], nil
}

func (f *scriptedFetcher) fetched() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.urls...)
}

func resultPage(total, pages int, codes ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<div class="header-data"><span class="lista-imovel-count">%d</span></div>`, total)
	for _, code := range codes {
		fmt.Fprintf(&b, `<div class="imovel-data"><meta itemprop="sku" content="%s">`+
			`<a href="/blumenau/comprar/casa/centro/imovel/%s"></a></div>`, code, code)
	}
	fmt.Fprintf(&b, `<div class="navigation">Página 1 de %d</div>`, pages)
	return b.String()
}

func collect(t *testing.T, seq func(func(models.PageResult, error) bool)) ([]models.PageResult, []error) {
	t.Helper()
	var (
		pages []models.PageResult
		errs  []error
	)
	seq(func(p models.PageResult, err error) bool {
		if err != nil {
			errs = append(errs, err)
			return true
		}
		pages = append(pages, p)
		return true
	})
	return pages, errs
}

func TestSessionFetchesEveryPageInOrder(t *testing.T) {
	f := &scriptedFetcher{bodies: map[int]string{
		1: resultPage(47, 5, "A1", "A2"),
		2: resultPage(47, 5, "B1"),
		3: resultPage(47, 5, "C1"),
		4: resultPage(47, 5, "D1"),
		5: resultPage(47, 5, "E1"),
	}}

	s := NewSession(f, nil, utils.NewNopLogger())
	pages, errs := collect(t, s.Pages(context.Background(), testSearchURL))

	require.Empty(t, errs)
	require.Len(t, pages, 5)
	for i, p := range pages {
		assert.Equal(t, i+1, p.Page)
		assert.Equal(t, 47, p.Total)
		assert.Equal(t, 5, p.TotalPages)
		assert.False(t, p.Degraded)
	}
	assert.Equal(t, "A1", pages[0].Listings[0].Code)
	assert.Equal(t, "https://www.imoveis-sc.com.br/blumenau/comprar/casa/centro/imovel/A1", pages[0].Listings[0].URL)

	urls := f.fetched()
	require.Len(t, urls, 5)
	assert.Equal(t, testSearchURL, urls[0])
	for n := 2; n <= 5; n++ {
		assert.Equal(t, fmt.Sprintf("%s&page=%d", testSearchURL, n), urls[n-1])
	}
}

func TestSessionFailedPageDegradesAndContinues(t *testing.T) {
	f := &scriptedFetcher{
		bodies: map[int]string{
			1: resultPage(47, 5, "A1"),
			2: resultPage(47, 5, "B1"),
			4: resultPage(47, 5, "D1"),
			5: resultPage(47, 5, "E1"),
		},
		fails: map[int]error{3: fmt.Errorf("%w: i/o timeout", ErrFetch)},
	}

	pages, errs := collect(t, NewSession(f, nil, nil).Pages(context.Background(), testSearchURL))

	require.Empty(t, errs)
	require.Len(t, pages, 5)
	assert.True(t, pages[2].Degraded)
	assert.Empty(t, pages[2].Listings)
	assert.Equal(t, "D1", pages[3].Listings[0].Code)
	assert.Equal(t, "E1", pages[4].Listings[0].Code)
	assert.Len(t, f.fetched(), 5)
}

func TestSessionTagsPageLogsWithPageNumber(t *testing.T) {
	f := &scriptedFetcher{
		bodies: map[int]string{1: resultPage(20, 2, "A1")},
		fails:  map[int]error{2: ErrFetch},
	}
	core, logs := observer.New(zapcore.DebugLevel)

	_, errs := collect(t, NewSession(f, nil, utils.NewLoggerFromCore(core)).Pages(context.Background(), testSearchURL))
	require.Empty(t, errs)

	failed := logs.FilterLevelExact(zapcore.WarnLevel).All()
	require.Len(t, failed, 1)
	assert.Equal(t, int64(2), failed[0].ContextMap()["page"])

	fetched := logs.FilterMessageSnippet("Fetching page").All()
	require.Len(t, fetched, 2)
	assert.Equal(t, int64(1), fetched[0].ContextMap()["page"])
}

func TestSessionFirstPageFailureStillTerminates(t *testing.T) {
	f := &scriptedFetcher{fails: map[int]error{1: ErrFetch}}

	pages, errs := collect(t, NewSession(f, nil, nil).Pages(context.Background(), testSearchURL))

	require.Empty(t, errs)
	require.Len(t, pages, 1)
	assert.True(t, pages[0].Degraded)
	assert.Equal(t, 0, pages[0].Total)
	assert.Equal(t, 1, pages[0].TotalPages)
}

func TestSessionMalformedFirstPageDefaultsToOnePage(t *testing.T) {
	f := &scriptedFetcher{bodies: map[int]string{1: "<html><body>manutenção"}}

	pages, errs := collect(t, NewSession(f, nil, nil).Pages(context.Background(), testSearchURL))

	require.Empty(t, errs)
	require.Len(t, pages, 1)
	assert.Empty(t, pages[0].Listings)
	assert.Len(t, f.fetched(), 1)
}

func TestSessionStopsOnCancellation(t *testing.T) {
	f := &scriptedFetcher{bodies: map[int]string{
		1: resultPage(30, 3, "A1"),
		2: resultPage(30, 3, "B1"),
		3: resultPage(30, 3, "C1"),
	}}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		pages []models.PageResult
		errs  []error
	)
	for p, err := range NewSession(f, nil, nil).Pages(ctx, testSearchURL) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		pages = append(pages, p)
		if p.Page == 1 {
			cancel()
		}
	}

	assert.Len(t, pages, 1)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], context.Canceled)
	assert.Len(t, f.fetched(), 1)
}

func TestSessionConsumerBreakStopsFetching(t *testing.T) {
	f := &scriptedFetcher{bodies: map[int]string{
		1: resultPage(30, 3, "A1"),
		2: resultPage(30, 3, "B1"),
	}}

	for p := range NewSession(f, nil, nil).Pages(context.Background(), testSearchURL) {
		if p.Page == 2 {
			break
		}
	}

	assert.Len(t, f.fetched(), 2)
}

func TestSessionSequenceIsSingleUse(t *testing.T) {
	f := &scriptedFetcher{bodies: map[int]string{1: resultPage(1, 1, "A1")}}
	seq := NewSession(f, nil, nil).Pages(context.Background(), testSearchURL)

	first, errs := collect(t, seq)
	require.Empty(t, errs)
	require.Len(t, first, 1)

	second, errs := collect(t, seq)
	assert.Empty(t, second)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrPagesConsumed)
	assert.Len(t, f.fetched(), 1)
}

func TestSessionThrottlesBetweenPages(t *testing.T) {
	f := &scriptedFetcher{bodies: map[int]string{
		1: resultPage(3, 3), 2: resultPage(3, 3), 3: resultPage(3, 3),
	}}
	interval := 25 * time.Millisecond

	start := time.Now()
	pages, errs := collect(t, NewSession(f, utils.NewThrottle(interval), nil).Pages(context.Background(), testSearchURL))
	elapsed := time.Since(start)

	require.Empty(t, errs)
	assert.Len(t, pages, 3)
	assert.GreaterOrEqual(t, elapsed, 2*interval-5*time.Millisecond)
}

func TestSessionOverHTTP(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		mu.Lock()
		order = append(order, page)
		mu.Unlock()

		switch page {
		case "":
			_, _ = w.Write([]byte(resultPage(3, 2, "H1", "H2")))
		case "2":
			_, _ = w.Write([]byte(resultPage(3, 2, "H3")))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	searchURL := srv.URL + "/blumenau/comprar/casa/centro?valor=1-2&area=3-4"
	s := NewSession(NewCollyFetcher(FetcherOptions{Timeout: 2 * time.Second}), utils.NewThrottle(time.Millisecond), nil)
	pages, errs := collect(t, s.Pages(context.Background(), searchURL))

	require.Empty(t, errs)
	require.Len(t, pages, 2)
	assert.Len(t, pages[0].Listings, 2)
	assert.Equal(t, "H3", pages[1].Listings[0].Code)
	assert.Equal(t, srv.URL+"/blumenau/comprar/casa/centro/imovel/H3", pages[1].Listings[0].URL)
	assert.Equal(t, []string{"", "2"}, order)
}
