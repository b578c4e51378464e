package domain

type Category string

const (
	CategoryConstruction Category = "construction"
	CategoryDesign       Category = "design-consulting"
	CategoryOther        Category = "other"
)

type Status string

const (
	StatusUnknown     Status = "unknown"
	StatusOpen        Status = "open"
	StatusClosingSoon Status = "closing-soon"
	StatusClosed      Status = "closed"
	StatusAwarded     Status = "awarded"
)

// finality orders statuses by how settled they are; merges only ever move a
// record toward a more final status.
var finality = map[Status]int{
	StatusUnknown:     0,
	StatusOpen:        1,
	StatusClosingSoon: 2,
	StatusClosed:      3,
	StatusAwarded:     4,
}

func (s Status) MoreFinalThan(o Status) bool {
	return finality[s] > finality[o]
}

// Tender is the canonical entity persisted in the store. Dates are ISO
// calendar dates ("2006-01-02") so the file sorts and diffs cleanly.
type Tender struct {
	ID               string   `json:"id"`
	Municipality     string   `json:"municipality"`
	Title            string   `json:"title"`
	Category         Category `json:"category"`
	AnnouncementDate string   `json:"announcementDate"`
	BiddingDate      string   `json:"biddingDate,omitempty"`
	Link             string   `json:"link"`
	PDFURL           string   `json:"pdfUrl,omitempty"`
	Status           Status   `json:"status"`

	WinningContractor  *string `json:"winningContractor"`
	DesignFirm         *string `json:"designFirm"`
	EstimatedPrice     *string `json:"estimatedPrice"`
	ConstructionPeriod *string `json:"constructionPeriod"`
	Description        *string `json:"description"`

	IsEnriched bool `json:"isEnriched"`
}

// Enrichment carries the fields the document-extraction stage can backfill.
// Every field is independently nullable.
type Enrichment struct {
	EstimatedPrice     *string `json:"estimatedPrice"`
	WinningContractor  *string `json:"winningContractor"`
	DesignFirm         *string `json:"designFirm"`
	ConstructionPeriod *string `json:"constructionPeriod"`
	Description        *string `json:"description"`
}

func (e Enrichment) Empty() bool {
	return e.EstimatedPrice == nil &&
		e.WinningContractor == nil &&
		e.DesignFirm == nil &&
		e.ConstructionPeriod == nil &&
		e.Description == nil
}

// TenderLead is the raw, portal-shaped row an adapter emits before
// normalization. Date fields are the source's own text (often era-calendar
// notation); the normalizer converts them.
type TenderLead struct {
	Source          string // adapter name (citytable/preffeed/treeapi/ebid)
	Municipality    string
	ContractNo      string // source-native contract/case number, may be empty
	Title           string
	CategoryHint    string // source's own category column, may be empty
	AnnouncementRaw string
	BiddingRaw      string
	Link            string
	PDFURL          string
	Description     string
	Status          Status
}
