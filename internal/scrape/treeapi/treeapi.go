// Package treeapi ingests the portals that expose a hierarchical JSON API:
// fiscal year → work category → announcement list, with offset paging inside
// each list. The response shape is parsed defensively; these APIs are
// undocumented and drift.
package treeapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tenderwatch-engine/internal/classify"
	"tenderwatch-engine/internal/config"
	"tenderwatch-engine/internal/domain"
	"tenderwatch-engine/internal/scrape/types"
	"tenderwatch-engine/internal/scrape/util"
)

type Config struct {
	Portals []config.TreePortal
	// Cursor resumes a previously interrupted walk: lists before this offset
	// are skipped on the first category of the first portal. Zero starts
	// from the beginning.
	Cursor int
}

type Scraper struct {
	cfg     Config
	hc      *http.Client
	limiter *util.HostLimiter
}

func New(cfg Config, limiter *util.HostLimiter) *Scraper {
	return &Scraper{
		cfg:     cfg,
		hc:      &http.Client{Timeout: 25 * time.Second},
		limiter: limiter,
	}
}

func (s *Scraper) Name() string   { return "treeapi" }
func (s *Scraper) Stateful() bool { return false }

// Response schema is typically:
//
//	{ "years": [ { "year": "2025", "categories": [
//	    { "code": "04", "name": "建築工事", "total": N,
//	      "items": [ ... ] } ] } ] }
//
// with paged item fetches at <base>?year=&category=&offset=&limit=.
type treeResponse struct {
	Years []struct {
		Year       string `json:"year"`
		Categories []struct {
			Code  string `json:"code"`
			Name  string `json:"name"`
			Total int    `json:"total"`
		} `json:"categories"`
	} `json:"years"`
}

type listResponse struct {
	Total int        `json:"total"`
	Items []treeItem `json:"items"`
}

type treeItem struct {
	ContractNo   string `json:"contractNo"`
	Title        string `json:"title"`
	Municipality string `json:"municipality"`
	Announced    string `json:"announced"`
	Bidding      string `json:"bidding"`
	Status       string `json:"status"`
	DetailURL    string `json:"detailUrl"`
	ResultPDF    string `json:"resultPdf"`
}

func (s *Scraper) Fetch(ctx context.Context) (types.ScrapeResult, error) {
	var out []domain.TenderLead
	for _, portal := range s.cfg.Portals {
		leads, err := s.fetchPortal(ctx, portal)
		if err != nil {
			log.Printf("[treeapi] portal=%q err=%v", portal.Name, err)
			continue
		}
		out = append(out, leads...)
	}
	return types.ScrapeResult{Source: s.Name(), Leads: out}, nil
}

func (s *Scraper) fetchPortal(ctx context.Context, portal config.TreePortal) ([]domain.TenderLead, error) {
	var tree treeResponse
	if err := s.getJSON(ctx, portal.URL, &tree); err != nil {
		return nil, fmt.Errorf("tree: %w", err)
	}

	pageSize := portal.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	cursor := s.cfg.Cursor
	var leads []domain.TenderLead
	for _, year := range tree.Years {
		for _, cat := range year.Categories {
			catLeads, err := s.fetchCategory(ctx, portal, year.Year, cat.Code, cat.Total, pageSize, cursor)
			cursor = 0 // the cursor applies to the first list only
			if err != nil {
				// a broken branch yields zero records; siblings continue
				log.Printf("[treeapi] portal=%q year=%s category=%s err=%v",
					portal.Name, year.Year, cat.Code, err)
				continue
			}
			leads = append(leads, catLeads...)
		}
	}
	return leads, nil
}

// maxListPages caps the offset walk per category; an API that reports a bad
// total while serving full pages forever must not pin the pass.
const maxListPages = 40

func (s *Scraper) fetchCategory(ctx context.Context, portal config.TreePortal, year, category string, total, pageSize, cursor int) ([]domain.TenderLead, error) {
	var leads []domain.TenderLead
	pages := 0
	for offset := cursor; ; offset += pageSize {
		if pages++; pages > maxListPages {
			log.Printf("[treeapi] portal=%q category=%s stopping after %d pages", portal.Name, category, maxListPages)
			return leads, nil
		}
		u, err := url.Parse(portal.URL)
		if err != nil {
			return leads, err
		}
		q := u.Query()
		q.Set("year", year)
		q.Set("category", category)
		q.Set("offset", strconv.Itoa(offset))
		q.Set("limit", strconv.Itoa(pageSize))
		u.RawQuery = q.Encode()

		var list listResponse
		if err := s.getJSON(ctx, u.String(), &list); err != nil {
			return leads, err
		}

		for _, item := range list.Items {
			lead, ok := leadFromItem(portal, item)
			if !ok {
				continue
			}
			leads = append(leads, lead)
		}

		if len(list.Items) < pageSize {
			return leads, nil
		}
		if total > 0 && offset+pageSize >= total {
			return leads, nil
		}
	}
}

func leadFromItem(portal config.TreePortal, item treeItem) (domain.TenderLead, bool) {
	title := util.CleanText(item.Title)
	if title == "" {
		return domain.TenderLead{}, false
	}
	if !classify.Relevant(title) {
		return domain.TenderLead{}, false
	}

	muni := util.CleanText(item.Municipality)
	if muni == "" {
		muni = portal.Name
	}

	return domain.TenderLead{
		Source:          "treeapi",
		Municipality:    muni,
		ContractNo:      item.ContractNo,
		Title:           title,
		AnnouncementRaw: item.Announced,
		BiddingRaw:      item.Bidding,
		Link:            util.ResolveURL(portal.URL, item.DetailURL),
		PDFURL:          util.ResolveURL(portal.URL, item.ResultPDF),
		Status:          classify.StatusFromText(item.Status),
	}, true
}

func (s *Scraper) getJSON(ctx context.Context, rawURL string, dst any) error {
	if err := s.limiter.WaitURL(ctx, rawURL); err != nil {
		return err
	}

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0")
	req.Header.Set("Accept", "application/json")

	res, err := s.hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return fmt.Errorf("status %d", res.StatusCode)
	}

	b, err := io.ReadAll(io.LimitReader(res.Body, 10<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}
