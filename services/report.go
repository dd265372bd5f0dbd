package services

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"realestate-ingest/models"
)

// ReportService turns the listings of one crawl into a CrawlReport summary
// and renders it.
type ReportService struct{}

func NewReportService() *ReportService {
	return &ReportService{}
}

// Summarize fills the price and neighborhood statistics of r from the
// listings ingested during the crawl. Listings without a price are left out
// of the price statistics.
func (s *ReportService) Summarize(r *models.CrawlReport, listings []models.NormalizedListing) {
	r.ListingsByNeighborhood = make(map[string]int)
	r.AveragePrice, r.MinPrice, r.MaxPrice = 0, 0, 0
	r.MostExpensive = nil

	var (
		total  float64
		priced int
	)
	for i := range listings {
		l := listings[i]
		if l.Neighborhood != "" {
			r.ListingsByNeighborhood[l.Neighborhood]++
		}
		if l.Price <= 0 {
			continue
		}
		if priced == 0 || l.Price < r.MinPrice {
			r.MinPrice = l.Price
		}
		if priced == 0 || l.Price > r.MaxPrice {
			r.MaxPrice = l.Price
			r.MostExpensive = &l
		}
		total += l.Price
		priced++
	}

	if priced > 0 {
		r.AveragePrice = round2(total / float64(priced))
		r.MinPrice = round2(r.MinPrice)
		r.MaxPrice = round2(r.MaxPrice)
	}
}

// Print renders r as tables on w.
func (s *ReportService) Print(w io.Writer, r *models.CrawlReport) {
	status := "not finished"
	if r.Finished {
		status = "finished"
	}

	overview := newReportTable(w, "Crawl "+r.SearchID.String())
	overview.AppendHeader(table.Row{"Metric", "Value"})
	overview.AppendRows([]table.Row{
		{"Status", status},
		{"Duration", r.Duration.Round(time.Millisecond).String()},
		{"Listings reported", r.Total},
		{"Pages fetched", fmt.Sprintf("%d / %d", r.PagesFetched, r.TotalPages)},
		{"Pages degraded", r.PagesDegraded},
		{"Listings seen", r.ListingsSeen},
		{"Created", r.ListingsCreated},
		{"Already stored", r.ListingsExisting},
		{"Failed", r.ListingsFailed},
		{"Search results", r.SearchResults},
	})
	overview.Render()

	prices := newReportTable(w, "Prices")
	prices.AppendHeader(table.Row{"Min", "Average", "Max"})
	if r.AveragePrice > 0 {
		prices.AppendRow(table.Row{formatPrice(r.MinPrice), formatPrice(r.AveragePrice), formatPrice(r.MaxPrice)})
	} else {
		prices.AppendRow(table.Row{"-", "-", "-"})
	}
	if r.MostExpensive != nil {
		prices.AppendFooter(table.Row{
			"Most expensive",
			truncate(r.MostExpensive.ReferenceCode+" "+r.MostExpensive.Neighborhood, 40),
			formatPrice(r.MostExpensive.Price),
		})
	}
	prices.Render()

	if len(r.ListingsByNeighborhood) == 0 {
		return
	}
	hoods := newReportTable(w, "Listings by neighborhood")
	hoods.AppendHeader(table.Row{"Neighborhood", "Listings"})
	for _, nc := range sortedNeighborhoods(r.ListingsByNeighborhood) {
		hoods.AppendRow(table.Row{truncate(nc.name, 40), nc.count})
	}
	hoods.Render()
}

func newReportTable(w io.Writer, title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(title)
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	return t
}

type neighborhoodCount struct {
	name  string
	count int
}

// sortedNeighborhoods orders by count descending, then by name.
func sortedNeighborhoods(m map[string]int) []neighborhoodCount {
	out := make([]neighborhoodCount, 0, len(m))
	for name, count := range m {
		out = append(out, neighborhoodCount{name, count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].name < out[j].name
	})
	return out
}

func formatPrice(v float64) string {
	return fmt.Sprintf("R$ %.2f", v)
}

func round2(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
