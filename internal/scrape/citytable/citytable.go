// Package citytable scrapes the municipal portals that publish tenders as a
// plain HTML table with numbered pagination. The portals differ only in
// column order and selectors, which come from config.
package citytable

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/PuerkitoBio/goquery"

	"tenderwatch-engine/internal/classify"
	"tenderwatch-engine/internal/config"
	"tenderwatch-engine/internal/domain"
	"tenderwatch-engine/internal/scrape/types"
	"tenderwatch-engine/internal/scrape/util"
)

type Config struct {
	Portals []config.TablePortal
}

type Scraper struct {
	cfg     Config
	hc      *http.Client
	limiter *util.HostLimiter
}

func New(cfg Config, limiter *util.HostLimiter) *Scraper {
	return &Scraper{
		cfg:     cfg,
		hc:      &http.Client{Timeout: 20 * time.Second},
		limiter: limiter,
	}
}

func (s *Scraper) Name() string   { return "citytable" }
func (s *Scraper) Stateful() bool { return false }

func (s *Scraper) Fetch(ctx context.Context) (types.ScrapeResult, error) {
	var out []domain.TenderLead
	for _, portal := range s.cfg.Portals {
		leads, err := s.fetchPortal(ctx, portal)
		if err != nil {
			// one broken portal yields zero records, not a failed pass
			log.Printf("[citytable] portal=%q err=%v", portal.Name, err)
			continue
		}
		out = append(out, leads...)
	}
	return types.ScrapeResult{Source: s.Name(), Leads: out}, nil
}

func (s *Scraper) fetchPortal(ctx context.Context, portal config.TablePortal) ([]domain.TenderLead, error) {
	maxPages := portal.MaxPages
	if maxPages <= 0 {
		maxPages = 1
	}

	var leads []domain.TenderLead
	for page := 1; page <= maxPages; page++ {
		pageLeads, err := s.fetchPage(ctx, portal, page)
		if err != nil {
			if page == 1 {
				return nil, err
			}
			// later pages are best-effort; keep what we have
			log.Printf("[citytable] portal=%q page=%d err=%v", portal.Name, page, err)
			break
		}
		if len(pageLeads) == 0 {
			break // walked past the last page
		}
		leads = append(leads, pageLeads...)
	}
	return leads, nil
}

func (s *Scraper) fetchPage(ctx context.Context, portal config.TablePortal, page int) ([]domain.TenderLead, error) {
	pageURL := portal.URL
	if page > 1 {
		if portal.PageParam == "" {
			return nil, nil // single-page portal
		}
		u, err := url.Parse(portal.URL)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		q.Set(portal.PageParam, strconv.Itoa(page))
		u.RawQuery = q.Encode()
		pageURL = u.String()
	}

	if err := s.limiter.WaitURL(ctx, pageURL); err != nil {
		return nil, err
	}

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0")

	res, err := s.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get page: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode >= 400 {
		return nil, fmt.Errorf("page status %d", res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	rowSel := portal.RowSelector
	if rowSel == "" {
		rowSel = "table tr"
	}

	var leads []domain.TenderLead
	doc.Find(rowSel).Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if tds.Length() == 0 {
			return // header row
		}
		lead, ok := leadFromRow(portal, tds)
		if !ok {
			return
		}
		// rejected rows are dropped here, not merely flagged downstream
		if !classify.Relevant(lead.Title + " " + lead.CategoryHint + " " + lead.Description) {
			return
		}
		leads = append(leads, lead)
	})

	return leads, nil
}

func leadFromRow(portal config.TablePortal, tds *goquery.Selection) (domain.TenderLead, bool) {
	cell := func(i int) string {
		if i < 0 || i >= tds.Length() {
			return ""
		}
		return util.CleanText(tds.Eq(i).Text())
	}

	title := cell(portal.Columns.Title)
	if title == "" {
		return domain.TenderLead{}, false
	}

	lead := domain.TenderLead{
		Source:          "citytable",
		Municipality:    portal.Name,
		ContractNo:      cell(portal.Columns.ContractNo),
		Title:           title,
		AnnouncementRaw: cell(portal.Columns.Date),
		BiddingRaw:      cell(portal.Columns.Bidding),
	}

	if st := cell(portal.Columns.Status); st != "" {
		lead.Status = classify.StatusFromText(st)
	}

	// first link in the title cell is the detail page; a PDF link anywhere in
	// the row is the result document
	if href, ok := tds.Eq(portal.Columns.Title).Find("a").First().Attr("href"); ok {
		lead.Link = util.ResolveURL(portal.URL, href)
	}
	tds.Find(`a[href$=".pdf"], a[href$=".zip"]`).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if href, ok := a.Attr("href"); ok {
			lead.PDFURL = util.ResolveURL(portal.URL, href)
			return false
		}
		return true
	})

	if lead.Link == "" {
		lead.Link = portal.URL
	}
	return lead, true
}
