// Package enrich backfills persisted tenders from their referenced result
// documents: download, extract text, ask the LLM for the structured facts,
// write back through the store's merge discipline.
package enrich

import (
	"context"
	"log"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"tenderwatch-engine/internal/domain"
	"tenderwatch-engine/internal/store"
)

type Runner struct {
	Store     *store.Store
	Cache     *store.DocCache
	Extractor Extractor

	HTTP *http.Client
	// BatchSize bounds one invocation; re-running resumes the remaining
	// backlog. Delay paces the external LLM calls to stay inside quota, and
	// concurrent calls are not allowed.
	BatchSize    int
	Delay        time.Duration
	MinTextChars int
}

func (r *Runner) withDefaults() *Runner {
	if r.HTTP == nil {
		r.HTTP = &http.Client{Timeout: 60 * time.Second}
	}
	if r.BatchSize <= 0 {
		r.BatchSize = 20
	}
	if r.Delay <= 0 {
		r.Delay = 5 * time.Second
	}
	if r.MinTextChars <= 0 {
		r.MinTextChars = 50
	}
	return r
}

// Run processes one bounded batch of the enrichment backlog, strictly
// sequentially. Per-record failures are scoped to that record:
// unreadable/too-short documents reach the terminal confirmed-empty state,
// external-service failures leave the record in the backlog for a later
// pass.
func (r *Runner) Run(ctx context.Context) (processed, enriched int, err error) {
	r = r.withDefaults()

	backlog, err := r.Store.UnenrichedWithPDF(r.BatchSize)
	if err != nil {
		return 0, 0, err
	}
	if len(backlog) == 0 {
		log.Printf("[enrich] backlog empty")
		return 0, 0, nil
	}
	log.Printf("[enrich] batch=%d", len(backlog))

	limiter := rate.NewLimiter(rate.Every(r.Delay), 1)

	for _, t := range backlog {
		select {
		case <-ctx.Done():
			return processed, enriched, ctx.Err()
		default:
		}

		b, err := r.Cache.Fetch(ctx, r.HTTP, t.PDFURL)
		if err != nil {
			// transient: stays in the backlog for the next pass
			log.Printf("[enrich] id=%s download err=%v", t.ID, err)
			continue
		}

		text, err := ExtractText(t.PDFURL, b)
		if err != nil || len([]rune(text)) < r.MinTextChars {
			// terminal: a corrupt or effectively empty document will not
			// improve on retry
			if err != nil {
				log.Printf("[enrich] id=%s extract err=%v, confirming empty", t.ID, err)
			} else {
				log.Printf("[enrich] id=%s text too short (%d), confirming empty", t.ID, len([]rune(text)))
			}
			if aerr := r.Store.ApplyEnrichment(t.ID, domain.Enrichment{}); aerr != nil {
				log.Printf("[enrich] id=%s mark empty err=%v", t.ID, aerr)
			}
			processed++
			continue
		}

		if err := limiter.Wait(ctx); err != nil {
			return processed, enriched, err
		}

		e, err := r.Extractor.Extract(ctx, text)
		if err != nil {
			// quota or malformed reply: retry on a future pass
			log.Printf("[enrich] id=%s extract call err=%v", t.ID, err)
			continue
		}

		if err := r.Store.ApplyEnrichment(t.ID, e); err != nil {
			log.Printf("[enrich] id=%s write back err=%v", t.ID, err)
			continue
		}
		processed++
		if !e.Empty() {
			enriched++
		}
		log.Printf("[enrich] id=%s done empty=%v", t.ID, e.Empty())
	}

	return processed, enriched, nil
}
