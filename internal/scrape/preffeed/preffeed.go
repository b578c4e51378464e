// Package preffeed ingests the prefectural portals that syndicate their
// procurement notices as RSS/Atom feeds. Feeds carry the announcement only;
// award status arrives later from other families and merges onto the same
// record.
package preffeed

import (
	"context"
	"log"
	"time"

	"github.com/mmcdole/gofeed"

	"tenderwatch-engine/internal/classify"
	"tenderwatch-engine/internal/config"
	"tenderwatch-engine/internal/domain"
	"tenderwatch-engine/internal/scrape/types"
	"tenderwatch-engine/internal/scrape/util"
)

type Config struct {
	Portals []config.FeedPortal
}

type Scraper struct {
	cfg     Config
	parser  *gofeed.Parser
	limiter *util.HostLimiter
}

func New(cfg Config, limiter *util.HostLimiter) *Scraper {
	p := gofeed.NewParser()
	p.UserAgent = "Mozilla/5.0"
	return &Scraper{cfg: cfg, parser: p, limiter: limiter}
}

func (s *Scraper) Name() string   { return "preffeed" }
func (s *Scraper) Stateful() bool { return false }

func (s *Scraper) Fetch(ctx context.Context) (types.ScrapeResult, error) {
	var out []domain.TenderLead
	for _, portal := range s.cfg.Portals {
		leads, err := s.fetchFeed(ctx, portal)
		if err != nil {
			log.Printf("[preffeed] portal=%q err=%v", portal.Name, err)
			continue
		}
		out = append(out, leads...)
	}
	return types.ScrapeResult{Source: s.Name(), Leads: out}, nil
}

func (s *Scraper) fetchFeed(ctx context.Context, portal config.FeedPortal) ([]domain.TenderLead, error) {
	if err := s.limiter.WaitURL(ctx, portal.URL); err != nil {
		return nil, err
	}

	fctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	feed, err := s.parser.ParseURLWithContext(portal.URL, fctx)
	if err != nil {
		return nil, err
	}

	var leads []domain.TenderLead
	for _, item := range feed.Items {
		title := util.CleanText(item.Title)
		if title == "" {
			continue
		}

		desc := util.CleanText(item.Description)
		if !classify.Relevant(title + " " + desc) {
			continue
		}

		lead := domain.TenderLead{
			Source:       "preffeed",
			Municipality: portal.Name,
			Title:        title,
			Description:  desc,
			Link:         util.ResolveURL(portal.URL, item.Link),
			Status:       domain.StatusOpen, // feeds only announce openings
		}

		if item.PublishedParsed != nil {
			lead.AnnouncementRaw = item.PublishedParsed.Format("2006-01-02")
		} else {
			// some portals put the era date in the title or description
			lead.AnnouncementRaw = title + " " + desc
		}

		for _, enc := range item.Enclosures {
			if enc.URL != "" {
				lead.PDFURL = util.ResolveURL(portal.URL, enc.URL)
				break
			}
		}

		leads = append(leads, lead)
	}
	return leads, nil
}
