// Package store persists the canonical tender dataset: a single JSON array
// the display application reads. The engine is the only writer; a file lock
// keeps concurrent invocations honest.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gofrs/flock"

	"tenderwatch-engine/internal/domain"
)

type Store struct {
	path string
	lock *flock.Flock
}

func Open(path string) *Store {
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

func (s *Store) Path() string { return s.path }

// Load reads the current dataset. A missing file is an empty dataset; a
// corrupt file is the one condition that aborts a run.
func (s *Store) Load() ([]domain.Tender, error) {
	b, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", s.path, err)
	}
	if len(b) == 0 {
		return nil, nil
	}
	var tenders []domain.Tender
	if err := json.Unmarshal(b, &tenders); err != nil {
		return nil, fmt.Errorf("store: %s is corrupt: %w", s.path, err)
	}
	return tenders, nil
}

// MergeBatch merges one pass's normalized output into the dataset under the
// backfill-only / status-monotonic rules and rewrites the file once.
func (s *Store) MergeBatch(incoming []domain.Tender) (added, updated int, err error) {
	if err := s.lock.Lock(); err != nil {
		return 0, 0, fmt.Errorf("store: lock: %w", err)
	}
	defer s.lock.Unlock()

	existing, err := s.Load()
	if err != nil {
		return 0, 0, err
	}

	byID := make(map[string]int, len(existing))
	for i, t := range existing {
		byID[t.ID] = i
	}

	for _, in := range incoming {
		if in.ID == "" {
			continue
		}
		i, ok := byID[in.ID]
		if !ok {
			existing = append(existing, in)
			byID[in.ID] = len(existing) - 1
			added++
			continue
		}
		if merge(&existing[i], in) {
			updated++
		}
	}

	sort.SliceStable(existing, func(i, j int) bool {
		return existing[i].AnnouncementDate > existing[j].AnnouncementDate
	})

	if err := s.write(existing); err != nil {
		return 0, 0, err
	}
	return added, updated, nil
}

// ApplyEnrichment backfills one record's enrichment fields and marks it
// enriched, re-reading the file first so fields discovered since the caller
// loaded its copy are never lost.
func (s *Store) ApplyEnrichment(id string, e domain.Enrichment) error {
	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("store: lock: %w", err)
	}
	defer s.lock.Unlock()

	tenders, err := s.Load()
	if err != nil {
		return err
	}

	found := false
	for i := range tenders {
		if tenders[i].ID != id {
			continue
		}
		t := &tenders[i]
		backfill(&t.EstimatedPrice, e.EstimatedPrice)
		backfill(&t.WinningContractor, e.WinningContractor)
		backfill(&t.DesignFirm, e.DesignFirm)
		backfill(&t.ConstructionPeriod, e.ConstructionPeriod)
		backfill(&t.Description, e.Description)
		t.IsEnriched = true
		found = true
		break
	}
	if !found {
		return fmt.Errorf("store: no tender %s", id)
	}
	return s.write(tenders)
}

// merge applies incoming onto dst in place. Reports whether anything changed.
func merge(dst *domain.Tender, in domain.Tender) bool {
	changed := false

	changed = backfill(&dst.WinningContractor, in.WinningContractor) || changed
	changed = backfill(&dst.DesignFirm, in.DesignFirm) || changed
	changed = backfill(&dst.EstimatedPrice, in.EstimatedPrice) || changed
	changed = backfill(&dst.ConstructionPeriod, in.ConstructionPeriod) || changed
	changed = backfill(&dst.Description, in.Description) || changed

	if dst.PDFURL == "" && in.PDFURL != "" {
		dst.PDFURL = in.PDFURL
		changed = true
	}

	if in.Status.MoreFinalThan(dst.Status) {
		dst.Status = in.Status
		changed = true
	}
	if dst.BiddingDate == "" && in.BiddingDate != "" {
		dst.BiddingDate = in.BiddingDate
		changed = true
	}

	// isEnriched is set exactly once and never reset
	if in.IsEnriched && !dst.IsEnriched {
		dst.IsEnriched = true
		changed = true
	}

	return changed
}

func backfill(dst **string, in *string) bool {
	if *dst == nil && in != nil && *in != "" {
		v := *in
		*dst = &v
		return true
	}
	return false
}

// write replaces the file in one step (temp file + rename) so readers never
// observe a partially written array.
func (s *Store) write(tenders []domain.Tender) error {
	if tenders == nil {
		tenders = []domain.Tender{}
	}
	b, err := json.MarshalIndent(tenders, "", "  ")
	if err != nil {
		return fmt.Errorf("store: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".tenders-*.json")
	if err != nil {
		return fmt.Errorf("store: temp file: %w", err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("store: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store: rename: %w", err)
	}
	return nil
}

// UnenrichedWithPDF returns the enrichment backlog: records that reference a
// result document and have not reached a terminal enrichment state.
func (s *Store) UnenrichedWithPDF(limit int) ([]domain.Tender, error) {
	tenders, err := s.Load()
	if err != nil {
		return nil, err
	}
	var out []domain.Tender
	for _, t := range tenders {
		if t.PDFURL == "" || t.IsEnriched {
			continue
		}
		out = append(out, t)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
