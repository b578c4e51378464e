package ebid

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenderwatch-engine/internal/config"
	"tenderwatch-engine/internal/domain"
	"tenderwatch-engine/internal/nav"
)

// fakeSession plays a portal whose result rows depend on the selected
// category. One session per portal, like the real driver.
type fakeSession struct {
	rowsByCategory map[string][]nav.Row
	failSubmitFor  string
	doc            *nav.Document

	category     string
	detailOpen   bool
	detailClosed int
	closed       bool
}

func (f *fakeSession) Open(ctx context.Context, url string) error { return nil }
func (f *fakeSession) HasFrame(name string) bool                  { return true }
func (f *fakeSession) ClickMenu(ctx context.Context, frame, screenID string) error {
	return nil
}
func (f *fakeSession) HasSearchForm(frame string) bool { return true }
func (f *fakeSession) SetFilter(ctx context.Context, frame, name, value string) error {
	return nil
}
func (f *fakeSession) SelectCategory(ctx context.Context, frame, code string) error {
	f.category = code
	return nil
}
func (f *fakeSession) SubmitSearch(ctx context.Context, frame string) error {
	if f.category == f.failSubmitFor {
		return errors.New("session timed out")
	}
	return nil
}
func (f *fakeSession) ResultRows(ctx context.Context, frame string) ([]nav.Row, error) {
	return f.rowsByCategory[f.category], nil
}
func (f *fakeSession) PageCount(ctx context.Context, frame string) (int, error) { return 1, nil }
func (f *fakeSession) JumpToPage(ctx context.Context, frame string, page int) error {
	return nil
}
func (f *fakeSession) OpenDetail(ctx context.Context, frame, ref string) error {
	f.detailOpen = true
	return nil
}
func (f *fakeSession) CaptureDocument(ctx context.Context) (*nav.Document, error) {
	if !f.detailOpen || f.doc == nil {
		return nil, nav.ErrNoDocument
	}
	return f.doc, nil
}
func (f *fakeSession) CloseDetail(ctx context.Context) error {
	f.detailOpen = false
	f.detailClosed++
	return nil
}
func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

type fakeSink struct {
	docs map[string][]byte
}

func (s *fakeSink) Put(ctx context.Context, url string, b []byte) error {
	if s.docs == nil {
		s.docs = map[string][]byte{}
	}
	s.docs[url] = b
	return nil
}

func testEbidPortal(codes ...string) config.EbidPortal {
	return config.EbidPortal{
		Name:          "愛媛県",
		EntryURL:      "https://ebid.example/entry",
		MenuFrame:     "menu",
		SearchFrame:   "search",
		ResultFrame:   "result",
		ScreenID:      "PPI00040",
		CategoryCodes: codes,
		Columns:       config.ColumnMap{ContractNo: 0, Title: 1, Date: 2, Bidding: 3, Status: 4},
	}
}

func row(no, title, date, status, ref string) nav.Row {
	return nav.Row{Cells: []string{no, title, date, "", status}, DetailRef: ref}
}

func TestFetchBrokenCategoryDoesNotAbortSiblings(t *testing.T) {
	sess := &fakeSession{
		failSubmitFor: "02",
		rowsByCategory: map[string][]nav.Row{
			"01": {row("2025-01", "市民会館改修工事", "令和7年3月10日", "受付中", "")},
			"02": {row("2025-02", "庁舎空調設備更新工事", "令和7年3月11日", "受付中", "")},
			"03": {row("2025-03", "小学校耐震補強工事", "令和7年3月12日", "受付中", "")},
		},
	}

	s := New(Config{Portals: []config.EbidPortal{testEbidPortal("01", "02", "03")}},
		func(config.EbidPortal) (nav.SessionDriver, error) { return sess, nil }, &fakeSink{})

	res, err := s.Fetch(context.Background())
	require.NoError(t, err)

	var nos []string
	for _, l := range res.Leads {
		nos = append(nos, l.ContractNo)
	}
	// the submit failure on 02 yields zero records from 02 only
	assert.Contains(t, nos, "2025-01")
	assert.NotContains(t, nos, "2025-02")
	assert.Contains(t, nos, "2025-03")
	assert.True(t, sess.closed, "session must close after the portal walk")
}

func TestFetchClassifierDropsOutOfScopeRows(t *testing.T) {
	sess := &fakeSession{
		rowsByCategory: map[string][]nav.Row{
			"01": {
				row("2025-01", "市民会館改修工事", "令和7年3月10日", "受付中", ""),
				row("2025-02", "市道5号線舗装補修工事", "令和7年3月11日", "受付中", ""),
			},
		},
	}

	s := New(Config{Portals: []config.EbidPortal{testEbidPortal("01")}},
		func(config.EbidPortal) (nav.SessionDriver, error) { return sess, nil }, &fakeSink{})

	res, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Leads, 1)
	assert.Equal(t, "市民会館改修工事", res.Leads[0].Title)
	assert.Equal(t, "愛媛県", res.Leads[0].Municipality)
	assert.Equal(t, domain.StatusOpen, res.Leads[0].Status)
}

func TestFetchAwardedRowCapturesDocument(t *testing.T) {
	sess := &fakeSession{
		doc: &nav.Document{Name: "result.pdf", Bytes: []byte("%PDF-fake")},
		rowsByCategory: map[string][]nav.Row{
			"01": {row("2025-09", "体育館改修工事", "令和7年2月1日", "落札者決定", "javascript:openDetail(9)")},
		},
	}
	sink := &fakeSink{}

	s := New(Config{Portals: []config.EbidPortal{testEbidPortal("01")}},
		func(config.EbidPortal) (nav.SessionDriver, error) { return sess, nil }, sink)

	res, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Leads, 1)

	lead := res.Leads[0]
	assert.Equal(t, domain.StatusAwarded, lead.Status)
	assert.Equal(t, "ebid://愛媛県/2025-09/result.pdf", lead.PDFURL)
	assert.Equal(t, []byte("%PDF-fake"), sink.docs[lead.PDFURL])
	assert.Equal(t, 1, sess.detailClosed, "detail popup must close after capture")
}

func TestFetchBrokenDriverYieldsZeroRecords(t *testing.T) {
	broken := testEbidPortal("01")
	ok := testEbidPortal("01")
	ok.Name = "香川県"

	sess := &fakeSession{
		rowsByCategory: map[string][]nav.Row{
			"01": {row("2025-01", "市民会館改修工事", "令和7年3月10日", "受付中", "")},
		},
	}

	s := New(Config{Portals: []config.EbidPortal{broken, ok}},
		func(p config.EbidPortal) (nav.SessionDriver, error) {
			if p.Name == "愛媛県" {
				return nil, errors.New("browser launch failed")
			}
			return sess, nil
		}, &fakeSink{})

	res, err := s.Fetch(context.Background())
	require.NoError(t, err, "one broken portal must not fail the fetch")
	require.Len(t, res.Leads, 1)
	assert.Equal(t, "香川県", res.Leads[0].Municipality)
}
