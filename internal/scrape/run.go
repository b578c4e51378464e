package scrape

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"tenderwatch-engine/internal/domain"
	"tenderwatch-engine/internal/scrape/types"
	"tenderwatch-engine/internal/store"
)

type Summary struct {
	PerSource       map[string]int
	PerMunicipality map[string]int
	Added           int
	Updated         int
}

// AggregateOnce runs one full aggregation pass: stateless fetchers
// concurrently, stateful (browser-session) fetchers strictly sequentially,
// then a single batched merge into the store. Every per-source failure is
// logged and swallowed; only a store failure aborts the pass.
func AggregateOnce(ctx context.Context, fetchers []types.Fetcher, st *store.Store) (Summary, error) {
	var stateless, stateful []types.Fetcher
	for _, f := range fetchers {
		if f.Stateful() {
			stateful = append(stateful, f)
		} else {
			stateless = append(stateless, f)
		}
	}

	// Independent result slot per fetcher: one slow or broken source must
	// not block or cancel the others.
	results := make(chan types.ScrapeResult, len(fetchers))

	var g errgroup.Group
	for _, f := range stateless {
		f := f
		g.Go(func() error {
			fctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
			defer cancel()

			log.Printf("[%s] running...", f.Name())
			res, err := f.Fetch(fctx)
			if err != nil {
				log.Printf("[%s] error: %v", f.Name(), err)
				return nil // best-effort: don't cancel siblings
			}
			results <- res
			return nil
		})
	}
	_ = g.Wait()

	// A browser session's frame tree is process-wide mutable state; one
	// actor at a time.
	for _, f := range stateful {
		fctx, cancel := context.WithTimeout(ctx, 15*time.Minute)
		log.Printf("[%s] running (sequential)...", f.Name())
		res, err := f.Fetch(fctx)
		cancel()
		if err != nil {
			log.Printf("[%s] error: %v", f.Name(), err)
			continue
		}
		results <- res
	}
	close(results)

	sum := Summary{
		PerSource:       map[string]int{},
		PerMunicipality: map[string]int{},
	}

	var batch []domain.Tender
	for res := range results {
		sum.PerSource[res.Source] += len(res.Leads)
		log.Printf("[pass] source=%s leads=%d", res.Source, len(res.Leads))
		for _, lead := range res.Leads {
			t := TenderFromLead(lead)
			if t.Title == "" || t.AnnouncementDate == "" {
				log.Printf("[pass] dropping malformed lead source=%s title=%q", res.Source, lead.Title)
				continue
			}
			sum.PerMunicipality[t.Municipality]++
			batch = append(batch, t)
		}
	}

	added, updated, err := st.MergeBatch(batch)
	if err != nil {
		return sum, err
	}
	sum.Added = added
	sum.Updated = updated

	for muni, n := range sum.PerMunicipality {
		log.Printf("[tally] %s: %d", muni, n)
	}
	log.Printf("[pass] merged batch=%d added=%d updated=%d", len(batch), added, updated)

	return sum, nil
}
