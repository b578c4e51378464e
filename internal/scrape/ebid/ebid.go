// Package ebid drives the shared prefectural e-bidding frontends. These are
// frameset applications with server-side session state and no addressable
// URLs; every search is a fresh walk through the UI via the navigation
// engine. One browser session per portal, categories iterated sequentially.
package ebid

import (
	"context"
	"log"

	"tenderwatch-engine/internal/classify"
	"tenderwatch-engine/internal/config"
	"tenderwatch-engine/internal/domain"
	"tenderwatch-engine/internal/nav"
	"tenderwatch-engine/internal/scrape/types"
	"tenderwatch-engine/internal/scrape/util"
)

type Config struct {
	Portals []config.EbidPortal
}

// DriverFactory opens a session driver for one portal. Production wires the
// rod driver; tests wire a fake.
type DriverFactory func(p config.EbidPortal) (nav.SessionDriver, error)

func RodDriverFactory(p config.EbidPortal) (nav.SessionDriver, error) {
	return nav.NewRodDriver(nav.RodConfig{
		Headless:      p.Headless,
		RowSelector:   p.RowSelector,
		PageJumpFunc:  p.PageJumpFunc,
		PagerSelector: p.PagerSelector,
	})
}

// DocSink receives result documents captured from detail popups; the
// enrichment pass later reads them back by the same URL. The store's
// document cache satisfies this.
type DocSink interface {
	Put(ctx context.Context, url string, b []byte) error
}

type Scraper struct {
	cfg     Config
	drivers DriverFactory
	docs    DocSink
}

func New(cfg Config, drivers DriverFactory, docs DocSink) *Scraper {
	return &Scraper{cfg: cfg, drivers: drivers, docs: docs}
}

func (s *Scraper) Name() string   { return "ebid" }
func (s *Scraper) Stateful() bool { return true }

func (s *Scraper) Fetch(ctx context.Context) (types.ScrapeResult, error) {
	var out []domain.TenderLead
	for _, portal := range s.cfg.Portals {
		leads, err := s.fetchPortal(ctx, portal)
		if err != nil {
			log.Printf("[ebid] portal=%q err=%v", portal.Name, err)
		}
		// keep whatever the session gathered before a failure
		out = append(out, leads...)
	}
	return types.ScrapeResult{Source: s.Name(), Leads: out}, nil
}

func (s *Scraper) fetchPortal(ctx context.Context, portal config.EbidPortal) ([]domain.TenderLead, error) {
	drv, err := s.drivers(portal)
	if err != nil {
		return nil, err
	}

	engine := nav.NewEngine(drv, nav.Config{
		EntryURL:    portal.EntryURL,
		MenuFrame:   portal.MenuFrame,
		SearchFrame: portal.SearchFrame,
		ResultFrame: portal.ResultFrame,
	})
	defer engine.Close()

	var leads []domain.TenderLead
	for _, code := range portal.CategoryCodes {
		rows, err := engine.Navigate(ctx, nav.Target{
			ScreenID:     portal.ScreenID,
			CategoryCode: code,
		})
		if err != nil {
			// any navigation failure is scoped to this category: zero records,
			// siblings still run in the same session
			log.Printf("[ebid] portal=%q category=%s skipped: %v", portal.Name, code, err)
			continue
		}

		for _, row := range rows {
			lead, ok := s.leadFromRow(ctx, engine, portal, row)
			if !ok {
				continue
			}
			leads = append(leads, lead)
		}
		log.Printf("[ebid] portal=%q category=%s rows=%d", portal.Name, code, len(rows))
	}
	return leads, nil
}

func (s *Scraper) leadFromRow(ctx context.Context, engine *nav.Engine, portal config.EbidPortal, row nav.Row) (domain.TenderLead, bool) {
	cell := func(i int) string {
		if i < 0 || i >= len(row.Cells) {
			return ""
		}
		return util.CleanText(row.Cells[i])
	}

	title := cell(portal.Columns.Title)
	if title == "" {
		return domain.TenderLead{}, false
	}
	if !classify.Relevant(title) {
		return domain.TenderLead{}, false
	}

	lead := domain.TenderLead{
		Source:          "ebid",
		Municipality:    portal.Name,
		ContractNo:      cell(portal.Columns.ContractNo),
		Title:           title,
		AnnouncementRaw: cell(portal.Columns.Date),
		BiddingRaw:      cell(portal.Columns.Bidding),
		Link:            portal.EntryURL, // no addressable detail URL exists
		Status:          classify.StatusFromText(cell(portal.Columns.Status)),
	}

	// awarded rows carry their result document behind the detail popup; the
	// bytes go into the document cache under a stable pseudo-URL so the
	// enrichment pass can read them back without a session
	if lead.Status == domain.StatusAwarded && row.DetailRef != "" {
		doc, err := engine.FetchDetailDocument(ctx, row)
		if err != nil {
			log.Printf("[ebid] portal=%q detail doc title=%q err=%v", portal.Name, title, err)
		} else if doc != nil {
			docURL := "ebid://" + portal.Name + "/" + lead.ContractNo + "/" + doc.Name
			if s.docs != nil {
				if err := s.docs.Put(ctx, docURL, doc.Bytes); err != nil {
					log.Printf("[ebid] portal=%q cache doc err=%v", portal.Name, err)
				} else {
					lead.PDFURL = docURL
				}
			}
		}
	}

	return lead, true
}
