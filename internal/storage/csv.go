package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/nao1215/webcrawl/internal/model"
)

// csvHeader is written once at the top of every CSV file.
var csvHeader = []string{"url", "title", "status_code", "depth", "fetched_at"}

// CSVStore appends recorded pages to a CSV file. It is safe for concurrent
// use.
type CSVStore struct {
	mu sync.Mutex
	w  *csv.Writer

	// closer is the destination when it needs closing, nil otherwise.
	closer io.Closer

	// closed makes SavePage after Close an error and Close idempotent.
	closed bool
}

// NewCSVStore writes the header to w and returns a store writing rows to it.
func NewCSVStore(w io.Writer) (*CSVStore, error) {
	s := &CSVStore{w: csv.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	if err := s.w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	return s, nil
}

// CreateCSVStore creates (or truncates) the file at path.
func CreateCSVStore(path string) (*CSVStore, error) {
	f, err := os.Create(path) //nolint:gosec // path comes from the --csv flag
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV file: %w", err)
	}
	s, err := NewCSVStore(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

// SavePage appends one row and flushes it.
func (s *CSVStore) SavePage(_ context.Context, _ string, page *model.PageRecord, _ []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	row := []string{
		page.URL,
		page.Title,
		strconv.Itoa(page.StatusCode),
		strconv.Itoa(page.Depth),
		formatTimestamp(page.FetchedAt),
	}
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("failed to write CSV row: %w", err)
	}
	s.w.Flush()
	return s.w.Error()
}

// Close flushes pending rows and closes the underlying writer if it is an
// io.Closer.
func (s *CSVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.w.Flush()
	err := s.w.Error()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
