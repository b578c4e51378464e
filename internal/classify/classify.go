// Package classify decides whether a scraped row belongs to the
// architecture/design domain this dataset covers, and infers a category when
// the source has no explicit one.
package classify

import (
	"strings"

	"tenderwatch-engine/internal/domain"
)

// Building construction, design and building-systems terms.
var relevantKeywords = []string{
	"建築",
	"設計",
	"改修",
	"新築",
	"増築",
	"改築",
	"耐震",
	"大規模改造",
	"空調",
	"空気調和",
	"電気設備",
	"機械設備",
	"給排水",
	"衛生設備",
	"昇降機",
	"エレベーター",
	"外壁",
	"屋上防水",
	"内装",
	"営繕",
	"監理",
}

// Civil-engineering terms that put a row out of scope.
var excludedKeywords = []string{
	"道路",
	"舗装",
	"橋梁",
	"橋りょう",
	"河川",
	"砂防",
	"護岸",
	"治山",
	"下水道",
	"水道管",
	"管渠",
	"配水管",
	"送水管",
	"用地測量",
	"区画線",
	"法面",
	"擁壁",
	"浚渫",
	"農道",
	"林道",
}

// Relevant reports whether text (title + category hint + description,
// concatenated) is in scope. A row is rejected only when an excluded term
// matches and no relevant term does: a building-renovation line item inside
// a road-maintenance contract must survive.
func Relevant(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	for _, kw := range relevantKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	for _, kw := range excludedKeywords {
		if strings.Contains(text, kw) {
			return false
		}
	}
	return true
}

var designKeywords = []string{
	"設計",
	"測量",
	"調査",
	"診断",
	"監理",
	"コンサル",
	"計画策定",
}

var constructionKeywords = []string{
	"工事",
	"建築",
	"新築",
	"改修",
	"増築",
	"改築",
	"解体",
	"修繕",
}

// StatusFromText maps a portal's status column wording to the canonical
// status. Unknown wording stays unknown rather than guessing.
func StatusFromText(s string) domain.Status {
	switch {
	case strings.Contains(s, "落札") || strings.Contains(s, "結果") || strings.Contains(s, "契約済"):
		return domain.StatusAwarded
	case strings.Contains(s, "締切間近") || strings.Contains(s, "まもなく"):
		return domain.StatusClosingSoon
	case strings.Contains(s, "締切") || strings.Contains(s, "受付終了"):
		return domain.StatusClosed
	case strings.Contains(s, "受付中") || strings.Contains(s, "公告中") || strings.Contains(s, "公告"):
		return domain.StatusOpen
	default:
		return domain.StatusUnknown
	}
}

// InferCategory derives the canonical category from title text for sources
// without an explicit category column. Design terms win over construction
// terms: "改修工事実施設計業務" is a design job about construction work.
func InferCategory(title string) domain.Category {
	for _, kw := range designKeywords {
		if strings.Contains(title, kw) {
			return domain.CategoryDesign
		}
	}
	for _, kw := range constructionKeywords {
		if strings.Contains(title, kw) {
			return domain.CategoryConstruction
		}
	}
	return domain.CategoryOther
}
