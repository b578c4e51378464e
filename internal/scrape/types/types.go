package types

import (
	"context"

	"tenderwatch-engine/internal/domain"
)

type ScrapeResult struct {
	Source string
	Leads  []domain.TenderLead
}

// Fetcher is the contract every portal adapter implements. Fetch returns
// whatever it could gather; a partially failed portal returns the leads it
// did get rather than an error.
type Fetcher interface {
	Name() string
	// Stateful reports whether the adapter drives a browser session and must
	// therefore run alone, outside the concurrent lane.
	Stateful() bool
	Fetch(ctx context.Context) (ScrapeResult, error)
}
