package scrape

import (
	"strings"

	"tenderwatch-engine/internal/classify"
	"tenderwatch-engine/internal/domain"
	"tenderwatch-engine/internal/jpdate"
	"tenderwatch-engine/internal/scrape/util"
)

// TenderFromLead shapes one raw portal row into the canonical Tender. The id
// must come out identical on every scrape of the same real-world record:
// source-native contract number when the portal has one, content hash of
// (source, title) when it does not.
func TenderFromLead(lead domain.TenderLead) domain.Tender {
	title := util.CleanText(lead.Title)

	id := ""
	if no := util.CleanText(lead.ContractNo); no != "" {
		id = lead.Source + ":" + no
	} else {
		id = lead.Source + ":" + util.HashString(lead.Source+"|"+title)
	}

	status := lead.Status
	if status == "" {
		status = domain.StatusUnknown
	}

	return domain.Tender{
		ID:               id,
		Municipality:     util.CleanText(lead.Municipality),
		Title:            title,
		Category:         classify.InferCategory(lead.CategoryHint + " " + title),
		AnnouncementDate: jpdate.ToISO(lead.AnnouncementRaw),
		BiddingDate:      jpdate.ToISO(lead.BiddingRaw),
		Link:             strings.TrimSpace(lead.Link),
		PDFURL:           strings.TrimSpace(lead.PDFURL),
		Status:           status,
	}
}
