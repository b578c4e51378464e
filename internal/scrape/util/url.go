package util

import (
	"net/url"
	"strings"
)

// ResolveURL makes href absolute against base. Portal tables link relatively
// ("./result.pdf", "/keiyaku/detail?id=42") or already absolutely.
func ResolveURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	bu, err := url.Parse(base)
	if err != nil {
		return href
	}
	hu, err := url.Parse(href)
	if err != nil {
		return href
	}
	return bu.ResolveReference(hu).String()
}
