package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"tenderwatch-engine/internal/domain"
)

func TestTenderFromLeadContractNumberID(t *testing.T) {
	lead := domain.TenderLead{
		Source:          "ebid",
		Municipality:    "松山市",
		ContractNo:      " 2025-0042 ",
		Title:           "市民会館　改修工事",
		AnnouncementRaw: "令和7年3月10日",
		BiddingRaw:      "R07.04.01",
		Link:            "https://ebid.example/detail/42",
		Status:          domain.StatusOpen,
	}

	got := TenderFromLead(lead)
	assert.Equal(t, "ebid:2025-0042", got.ID)
	assert.Equal(t, "市民会館 改修工事", got.Title)
	assert.Equal(t, "2025-03-10", got.AnnouncementDate)
	assert.Equal(t, "2025-04-01", got.BiddingDate)
	assert.Equal(t, domain.CategoryConstruction, got.Category)
	assert.Equal(t, domain.StatusOpen, got.Status)
}

func TestTenderFromLeadHashFallbackIsStable(t *testing.T) {
	lead := domain.TenderLead{
		Source:          "citytable",
		Municipality:    "今治市",
		Title:           "庁舎空調設備更新工事",
		AnnouncementRaw: "2025/06/01",
	}

	a := TenderFromLead(lead)
	b := TenderFromLead(lead)
	assert.Equal(t, a.ID, b.ID, "repeated scrapes must derive the same id")
	assert.NotEmpty(t, a.ID)

	// a different title must not collide
	lead.Title = "庁舎電気設備更新工事"
	c := TenderFromLead(lead)
	assert.NotEqual(t, a.ID, c.ID)
}

func TestTenderFromLeadDefaults(t *testing.T) {
	lead := domain.TenderLead{
		Source:          "preffeed",
		Municipality:    "宇和島市",
		Title:           "学校体育館改修工事実施設計業務",
		AnnouncementRaw: "2025-05-20",
	}

	got := TenderFromLead(lead)
	assert.Equal(t, domain.StatusUnknown, got.Status)
	assert.Equal(t, domain.CategoryDesign, got.Category)
	assert.Empty(t, got.BiddingDate)
}
