package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"realestate-ingest/models"
)

var csvHeader = []string{
	"search_id", "page", "code", "model", "city", "neighborhood", "summary", "url",
	"bedrooms", "suites", "garage_slots", "area", "price",
	"agency_name", "agency_profile_url", "agency_logo_url", "missing_fields", "scraped_at",
}

// CSVWriter appends raw (unnormalized) listings to a CSV file, exactly as
// they were scraped. It is safe for concurrent use.
type CSVWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
	now    func() time.Time
}

// NewCSVWriter opens the CSV file at the given path for appending and writes
// the header row if the file is new. Intermediate directories are created
// automatically.
func NewCSVWriter(path string) (*CSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("csv: open file %q: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("csv: stat file %q: %w", path, err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("csv: write header: %w", err)
		}
		w.Flush()
	}

	return &CSVWriter{file: f, writer: w, now: time.Now}, nil
}

// WriteRaw appends one row per listing of the given result page.
func (c *CSVWriter) WriteRaw(searchID uuid.UUID, page int, listings []models.RawListing) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	scrapedAt := c.now().UTC().Format(time.RFC3339)
	for _, l := range listings {
		var agency models.RawAgency
		if l.Agency != nil {
			agency = *l.Agency
		}
		row := []string{
			searchID.String(),
			strconv.Itoa(page),
			l.Code,
			l.Model,
			l.City,
			l.Neighborhood,
			l.Summary,
			l.URL,
			l.Bedrooms,
			l.Suites,
			l.GarageSlots,
			l.Area,
			l.Price,
			agency.Name,
			agency.ProfileURL,
			agency.LogoURL,
			strings.Join(l.Missing, ";"),
			scrapedAt,
		}
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
