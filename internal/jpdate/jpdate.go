// Package jpdate converts Japanese era-calendar date text into Gregorian
// calendar dates. Municipal portals mix the long form (令和7年3月10日), the
// abbreviated form (R08.02.20, H31.4.1) and plain western dates, sometimes
// within one table.
package jpdate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Era year 1 of Reiwa is 2019, so gregorian = offset + eraYear.
var eraOffsets = map[string]int{
	"令和": 2018,
	"平成": 1988,
	"昭和": 1925,
}

var eraAbbrev = map[byte]string{
	'R': "令和",
	'H': "平成",
	'S': "昭和",
}

var (
	longRe    = regexp.MustCompile(`(令和|平成|昭和)\s*(元|\d{1,2})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日?`)
	abbrevRe  = regexp.MustCompile(`([RHS])\s?(\d{1,2})[.\-/](\d{1,2})[.\-/](\d{1,2})`)
	westernRe = regexp.MustCompile(`(\d{4})\s*[年.\-/]\s*(\d{1,2})\s*[月.\-/]\s*(\d{1,2})\s*日?`)
)

// Parse extracts the first recognizable date from s. It accepts era long
// form, era abbreviated form and western notation, in that priority.
func Parse(s string) (time.Time, error) {
	s = normalize(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("jpdate: empty input")
	}

	if m := longRe.FindStringSubmatch(s); m != nil {
		year := 1
		if m[2] != "元" {
			year, _ = strconv.Atoi(m[2])
		}
		return mkdate(eraOffsets[m[1]]+year, m[3], m[4])
	}

	if m := abbrevRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[2])
		era := eraAbbrev[m[1][0]]
		return mkdate(eraOffsets[era]+year, m[3], m[4])
	}

	if m := westernRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		return mkdate(year, m[2], m[3])
	}

	return time.Time{}, fmt.Errorf("jpdate: unrecognized date %q", s)
}

// ToISO returns the first date in s as "2006-01-02", or "" when no date is
// found. Adapters use this form directly in leads.
func ToISO(s string) string {
	t, err := Parse(s)
	if err != nil {
		return ""
	}
	return t.Format("2006-01-02")
}

func mkdate(year int, monthStr, dayStr string) (time.Time, error) {
	month, _ := strconv.Atoi(monthStr)
	day, _ := strconv.Atoi(dayStr)
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("jpdate: out of range %d-%d-%d", year, month, day)
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

func normalize(s string) string {
	s = strings.TrimSpace(s)
	// fullwidth digits and separators show up on older portals
	r := strings.NewReplacer(
		"０", "0", "１", "1", "２", "2", "３", "3", "４", "4",
		"５", "5", "６", "6", "７", "7", "８", "8", "９", "9",
		"Ｒ", "R", "Ｈ", "H", "Ｓ", "S",
		"．", ".", "／", "/", "－", "-",
	)
	return r.Replace(s)
}
