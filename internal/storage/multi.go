package storage

import (
	"context"
	"errors"

	"github.com/nao1215/webcrawl/internal/crawler"
	"github.com/nao1215/webcrawl/internal/model"
)

// Multi writes every page to all of its stores. Run lifecycle calls are
// forwarded to the stores that implement crawler.RunRecorder.
type Multi struct {
	stores []crawler.PageStore
}

// NewMulti returns a Multi over the non-nil stores.
func NewMulti(stores ...crawler.PageStore) *Multi {
	m := &Multi{stores: make([]crawler.PageStore, 0, len(stores))}
	for _, s := range stores {
		if s != nil {
			m.stores = append(m.stores, s)
		}
	}
	return m
}

// Len returns the number of stores.
func (m *Multi) Len() int {
	return len(m.stores)
}

// SavePage saves to every store and joins their errors.
func (m *Multi) SavePage(ctx context.Context, runID string, page *model.PageRecord, body []byte) error {
	var errs []error
	for _, s := range m.stores {
		if err := s.SavePage(ctx, runID, page, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// BeginRun implements crawler.RunRecorder.
func (m *Multi) BeginRun(ctx context.Context, run *model.CrawlResult) error {
	var errs []error
	for _, s := range m.stores {
		if rec, ok := s.(crawler.RunRecorder); ok {
			if err := rec.BeginRun(ctx, run); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// FinishRun implements crawler.RunRecorder.
func (m *Multi) FinishRun(ctx context.Context, run *model.CrawlResult) error {
	var errs []error
	for _, s := range m.stores {
		if rec, ok := s.(crawler.RunRecorder); ok {
			if err := rec.FinishRun(ctx, run); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
