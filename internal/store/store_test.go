package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenderwatch-engine/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return Open(filepath.Join(t.TempDir(), "tenders.json"))
}

func strptr(s string) *string { return &s }

func baseTender() domain.Tender {
	return domain.Tender{
		ID:               "ebid:2025-0042",
		Municipality:     "松山市",
		Title:            "市民会館改修工事",
		Category:         domain.CategoryConstruction,
		AnnouncementDate: "2025-03-10",
		BiddingDate:      "2025-04-01",
		Link:             "https://ebid.example/detail/42",
		Status:           domain.StatusOpen,
	}
}

func TestMergeBatchInsertAndIdempotence(t *testing.T) {
	s := newTestStore(t)

	added, updated, err := s.MergeBatch([]domain.Tender{baseTender()})
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, 0, updated)

	// merging the identical pass again changes nothing
	added, updated, err = s.MergeBatch([]domain.Tender{baseTender()})
	require.NoError(t, err)
	assert.Equal(t, 0, added)
	assert.Equal(t, 0, updated)

	tenders, err := s.Load()
	require.NoError(t, err)
	assert.Len(t, tenders, 1)
}

func TestMergeBackfillNeverOverwrites(t *testing.T) {
	s := newTestStore(t)

	first := baseTender()
	first.WinningContractor = strptr("株式会社A建設")
	_, _, err := s.MergeBatch([]domain.Tender{first})
	require.NoError(t, err)

	second := baseTender()
	second.WinningContractor = strptr("株式会社B建設")
	second.DesignFirm = strptr("C設計事務所")
	_, _, err = s.MergeBatch([]domain.Tender{second})
	require.NoError(t, err)

	tenders, err := s.Load()
	require.NoError(t, err)
	require.Len(t, tenders, 1)
	// existing value kept, missing value filled
	assert.Equal(t, "株式会社A建設", *tenders[0].WinningContractor)
	assert.Equal(t, "C設計事務所", *tenders[0].DesignFirm)
}

func TestMergeStatusMonotonic(t *testing.T) {
	s := newTestStore(t)

	awarded := baseTender()
	awarded.Status = domain.StatusAwarded
	_, _, err := s.MergeBatch([]domain.Tender{awarded})
	require.NoError(t, err)

	// an open observation must not regress an awarded record
	open := baseTender()
	open.Status = domain.StatusOpen
	_, _, err = s.MergeBatch([]domain.Tender{open})
	require.NoError(t, err)

	tenders, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAwarded, tenders[0].Status)
}

func TestMergeAdoptsBiddingDateWhenMissing(t *testing.T) {
	s := newTestStore(t)

	first := baseTender()
	first.BiddingDate = ""
	_, _, err := s.MergeBatch([]domain.Tender{first})
	require.NoError(t, err)

	second := baseTender()
	second.BiddingDate = "2025-04-01"
	second.Status = domain.StatusOpen // not more final: status kept, date adopted
	_, _, err = s.MergeBatch([]domain.Tender{second})
	require.NoError(t, err)

	tenders, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, "2025-04-01", tenders[0].BiddingDate)
}

func TestMergeSortsByAnnouncementDateDesc(t *testing.T) {
	s := newTestStore(t)

	older := baseTender()
	older.ID = "a"
	older.AnnouncementDate = "2025-01-05"
	newer := baseTender()
	newer.ID = "b"
	newer.AnnouncementDate = "2025-03-10"

	_, _, err := s.MergeBatch([]domain.Tender{older, newer})
	require.NoError(t, err)

	tenders, err := s.Load()
	require.NoError(t, err)
	require.Len(t, tenders, 2)
	assert.Equal(t, "b", tenders[0].ID)
	assert.Equal(t, "a", tenders[1].ID)
}

// Two raw rows sharing one contract number arrive in successive passes; the
// second reports the award. The store must end with one tender, awarded,
// contractor populated, original bidding date kept.
func TestReconcileOpenThenAwarded(t *testing.T) {
	s := newTestStore(t)

	pass1 := baseTender() // open, no contractor, biddingDate 2025-04-01
	_, _, err := s.MergeBatch([]domain.Tender{pass1})
	require.NoError(t, err)

	pass2 := baseTender()
	pass2.Status = domain.StatusAwarded
	pass2.BiddingDate = ""
	pass2.WinningContractor = strptr("伊予建設株式会社")
	pass2.PDFURL = "https://ebid.example/result/42.pdf"
	_, _, err = s.MergeBatch([]domain.Tender{pass2})
	require.NoError(t, err)

	tenders, err := s.Load()
	require.NoError(t, err)
	require.Len(t, tenders, 1)

	got := tenders[0]
	assert.Equal(t, domain.StatusAwarded, got.Status)
	assert.Equal(t, "伊予建設株式会社", *got.WinningContractor)
	assert.Equal(t, "2025-04-01", got.BiddingDate)
	assert.Equal(t, "https://ebid.example/result/42.pdf", got.PDFURL)
}

func TestApplyEnrichmentBackfillsAndMarksTerminal(t *testing.T) {
	s := newTestStore(t)

	first := baseTender()
	first.PDFURL = "https://ebid.example/result/42.pdf"
	first.WinningContractor = strptr("既存建設") // discovered by a scrape pass
	_, _, err := s.MergeBatch([]domain.Tender{first})
	require.NoError(t, err)

	err = s.ApplyEnrichment(first.ID, domain.Enrichment{
		WinningContractor: strptr("抽出された建設会社"), // must not overwrite
		EstimatedPrice:    strptr("¥45,000,000"),
	})
	require.NoError(t, err)

	tenders, err := s.Load()
	require.NoError(t, err)
	got := tenders[0]
	assert.True(t, got.IsEnriched)
	assert.Equal(t, "既存建設", *got.WinningContractor)
	assert.Equal(t, "¥45,000,000", *got.EstimatedPrice)
}

func TestApplyEnrichmentUnknownID(t *testing.T) {
	s := newTestStore(t)
	err := s.ApplyEnrichment("nope", domain.Enrichment{})
	assert.Error(t, err)
}

func TestUnenrichedWithPDF(t *testing.T) {
	s := newTestStore(t)

	withPDF := baseTender()
	withPDF.ID = "a"
	withPDF.PDFURL = "https://x/result.pdf"

	enriched := baseTender()
	enriched.ID = "b"
	enriched.PDFURL = "https://x/other.pdf"
	enriched.IsEnriched = true

	noPDF := baseTender()
	noPDF.ID = "c"

	_, _, err := s.MergeBatch([]domain.Tender{withPDF, enriched, noPDF})
	require.NoError(t, err)

	backlog, err := s.UnenrichedWithPDF(10)
	require.NoError(t, err)
	require.Len(t, backlog, 1)
	assert.Equal(t, "a", backlog[0].ID)
}

func TestLoadCorruptFileFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tenders.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := Open(path)
	_, err := s.Load()
	assert.Error(t, err)
}
