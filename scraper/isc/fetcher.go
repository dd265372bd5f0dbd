package isc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

// DefaultBaseURL is the provider's public site.
const DefaultBaseURL = "https://www.imoveis-sc.com.br"

const defaultRequestTimeout = 10 * time.Second

// ErrFetch marks a page that could not be retrieved: a network failure, a
// timeout or a non-200 status.
var ErrFetch = errors.New("isc: fetch failed")

// browserHeaders is the static header set sent with every request. The
// provider serves listing fragments to XHR-looking requests only.
var browserHeaders = map[string]string{
	"Accept":             "*/*",
	"Accept-Language":    "en-US,en;q=0.9,pt;q=0.8,pt-BR;q=0.7",
	"Sec-Ch-Ua-Platform": `"Windows"`,
	"Sec-Fetch-Dest":     "empty",
	"Sec-Fetch-Mode":     "cors",
	"Sec-Fetch-Site":     "same-origin",
	"X-Requested-With":   "XMLHttpRequest",
}

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/132.0.0.0 Safari/537.36"

// Fetcher retrieves the markup behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FetcherOptions configures a CollyFetcher.
type FetcherOptions struct {
	Timeout   time.Duration
	Transport http.RoundTripper
}

// CollyFetcher fetches provider pages with a colly collector per request,
// so every request carries its own context. Connections are pooled through
// the shared transport.
type CollyFetcher struct {
	timeout   time.Duration
	transport http.RoundTripper
}

// NewCollyFetcher creates a CollyFetcher. A zero timeout means 10s and a nil
// transport means a clone of http.DefaultTransport.
func NewCollyFetcher(opts FetcherOptions) *CollyFetcher {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	return &CollyFetcher{timeout: timeout, transport: transport}
}

// Fetch performs one GET and returns the response body. Any failure is
// wrapped in ErrFetch; a cancelled ctx is reported as ctx.Err() instead.
func (f *CollyFetcher) Fetch(ctx context.Context, url string) (string, error) {
	c := colly.NewCollector(
		colly.StdlibContext(ctx),
		colly.UserAgent(browserUserAgent),
		colly.DetectCharset(),
		colly.AllowURLRevisit(),
	)
	c.WithTransport(f.transport)
	c.SetRequestTimeout(f.timeout)

	var (
		body   string
		status int
	)

	c.OnRequest(func(r *colly.Request) {
		for key, value := range browserHeaders {
			r.Headers.Set(key, value)
		}
	})

	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = string(r.Body)
	})

	if err := c.Visit(url); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("%w: GET %s: %v", ErrFetch, url, err)
	}

	if status != http.StatusOK {
		return "", fmt.Errorf("%w: GET %s: status %d", ErrFetch, url, status)
	}
	return body, nil
}
