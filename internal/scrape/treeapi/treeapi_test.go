package treeapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenderwatch-engine/internal/config"
	"tenderwatch-engine/internal/domain"
	"tenderwatch-engine/internal/scrape/util"
)

// fakeAPI serves a one-year, two-category tree with paged item lists.
func fakeAPI(t *testing.T, perCategory map[string][]treeItem) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "application/json")

		if q.Get("category") == "" {
			resp := map[string]any{"years": []map[string]any{{
				"year": "2025",
				"categories": []map[string]any{
					{"code": "04", "name": "建築工事", "total": len(perCategory["04"])},
					{"code": "05", "name": "建築コンサル", "total": len(perCategory["05"])},
				},
			}}}
			_ = json.NewEncoder(w).Encode(resp)
			return
		}

		items := perCategory[q.Get("category")]
		offset, _ := strconv.Atoi(q.Get("offset"))
		limit, _ := strconv.Atoi(q.Get("limit"))
		end := offset + limit
		if offset > len(items) {
			offset = len(items)
		}
		if end > len(items) {
			end = len(items)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"total": len(items),
			"items": items[offset:end],
		})
	}))
}

func TestFetchWalksTreeAndPages(t *testing.T) {
	var construction []treeItem
	for i := 0; i < 7; i++ {
		construction = append(construction, treeItem{
			ContractNo:   "K2025-" + strconv.Itoa(i),
			Title:        "第" + strconv.Itoa(i) + "号 庁舎改修工事",
			Municipality: "愛媛県",
			Announced:    "令和7年4月1日",
			Status:       "公告中",
			DetailURL:    "/detail/" + strconv.Itoa(i),
		})
	}
	consulting := []treeItem{
		{ContractNo: "C2025-0", Title: "県営住宅実施設計業務", Announced: "R07.04.02", Status: "落札者決定", ResultPDF: "/result/c0.pdf"},
		{ContractNo: "C2025-1", Title: "河川測量業務", Announced: "R07.04.03", Status: "公告中"},
	}

	srv := fakeAPI(t, map[string][]treeItem{"04": construction, "05": consulting})
	defer srv.Close()

	s := New(Config{
		Portals: []config.TreePortal{{Name: "愛媛県", URL: srv.URL, PageSize: 3}},
	}, util.NewHostLimiter(100, 10))

	res, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "treeapi", res.Source)

	// 7 construction rows across 3 pages, plus the design job; the river
	// survey row is classified out
	require.Len(t, res.Leads, 8)

	byNo := map[string]domain.TenderLead{}
	for _, l := range res.Leads {
		byNo[l.ContractNo] = l
	}
	assert.Contains(t, byNo, "K2025-6")
	awarded := byNo["C2025-0"]
	assert.Equal(t, domain.StatusAwarded, awarded.Status)
	assert.Equal(t, srv.URL+"/result/c0.pdf", awarded.PDFURL)
	assert.NotContains(t, byNo, "C2025-1")
}

func TestFetchCursorSkipsProcessedPrefix(t *testing.T) {
	var items []treeItem
	for i := 0; i < 6; i++ {
		items = append(items, treeItem{
			ContractNo: "K2025-" + strconv.Itoa(i),
			Title:      "庁舎改修工事 その" + strconv.Itoa(i),
			Announced:  "2025-04-01",
		})
	}
	srv := fakeAPI(t, map[string][]treeItem{"04": items, "05": nil})
	defer srv.Close()

	s := New(Config{
		Portals: []config.TreePortal{{Name: "愛媛県", URL: srv.URL, PageSize: 3}},
		Cursor:  3,
	}, util.NewHostLimiter(100, 10))

	res, err := s.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Leads, 3)
	assert.Equal(t, "K2025-3", res.Leads[0].ContractNo)
}

func TestFetchLyingTotalStopsPaging(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		if q.Get("category") == "" {
			_ = json.NewEncoder(w).Encode(map[string]any{"years": []map[string]any{{
				"year":       "2025",
				"categories": []map[string]any{{"code": "04", "total": 0}},
			}}})
			return
		}
		// reports total=0 yet always serves a full page
		offset := q.Get("offset")
		_ = json.NewEncoder(w).Encode(map[string]any{"total": 0, "items": []treeItem{
			{ContractNo: "K-" + offset + "-a", Title: "庁舎改修工事", Announced: "2025-04-01"},
			{ContractNo: "K-" + offset + "-b", Title: "庁舎改修工事", Announced: "2025-04-01"},
		}})
	}))
	defer srv.Close()

	s := New(Config{
		Portals: []config.TreePortal{{Name: "愛媛県", URL: srv.URL, PageSize: 2}},
	}, util.NewHostLimiter(1000, 100))

	res, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Leads, 2*maxListPages, "the walk must stop at the page cap")
}

func TestFetchBrokenBranchContinues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		switch {
		case q.Get("category") == "":
			_ = json.NewEncoder(w).Encode(map[string]any{"years": []map[string]any{{
				"year": "2025",
				"categories": []map[string]any{
					{"code": "04", "total": 1},
					{"code": "05", "total": 1},
				},
			}}})
		case q.Get("category") == "04":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			_ = json.NewEncoder(w).Encode(map[string]any{"total": 1, "items": []treeItem{
				{ContractNo: "C1", Title: "校舎増築設計業務", Announced: "2025-04-01"},
			}})
		}
	}))
	defer srv.Close()

	s := New(Config{
		Portals: []config.TreePortal{{Name: "愛媛県", URL: srv.URL}},
	}, util.NewHostLimiter(100, 10))

	res, err := s.Fetch(context.Background())
	require.NoError(t, err, "a broken category must not fail the portal")
	require.Len(t, res.Leads, 1)
	assert.Equal(t, "C1", res.Leads[0].ContractNo)
}
