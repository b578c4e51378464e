package config

import (
	"fmt"
	"strings"
)

type Validation struct {
	Errors   []string
	Warnings []string
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate fills defaults and flags configs that would make a
// pass useless (no sources) or abusive (no pacing).
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	out := cfg
	var res Validation

	if out.App.DataDir == "" {
		out.App.DataDir = "."
	}
	if out.Store.File == "" {
		out.Store.File = "tenders.json"
	}
	if out.Store.DocCache == "" {
		out.Store.DocCache = "doccache.db"
	}
	if out.Limiter.RequestsPerSecond <= 0 {
		out.Limiter.RequestsPerSecond = 2
	}
	if out.Limiter.Burst <= 0 {
		out.Limiter.Burst = 1
	}
	if out.Enrich.Model == "" {
		out.Enrich.Model = "gemini-2.0-flash"
	}
	if out.Enrich.BatchSize <= 0 {
		out.Enrich.BatchSize = 20
	}
	if out.Enrich.DelaySeconds <= 0 {
		out.Enrich.DelaySeconds = 5
	}
	if out.Enrich.MinTextChars <= 0 {
		out.Enrich.MinTextChars = 50
	}

	anySource := (out.Sources.CityTable.Enabled && len(out.Sources.CityTable.Portals) > 0) ||
		(out.Sources.Feeds.Enabled && len(out.Sources.Feeds.Portals) > 0) ||
		(out.Sources.TreeAPI.Enabled && len(out.Sources.TreeAPI.Portals) > 0) ||
		(out.Sources.Ebid.Enabled && len(out.Sources.Ebid.Portals) > 0)
	if !anySource {
		res.addErr("no sources enabled: enable citytable, feeds, treeapi or ebid")
	}

	for _, p := range out.Sources.CityTable.Portals {
		if strings.TrimSpace(p.URL) == "" {
			res.addErr("citytable portal %q has no url", p.Name)
		}
	}
	for _, p := range out.Sources.Feeds.Portals {
		if strings.TrimSpace(p.URL) == "" {
			res.addErr("feed portal %q has no url", p.Name)
		}
	}
	for _, p := range out.Sources.TreeAPI.Portals {
		if strings.TrimSpace(p.URL) == "" {
			res.addErr("treeapi portal %q has no url", p.Name)
		}
	}
	for _, p := range out.Sources.Ebid.Portals {
		if strings.TrimSpace(p.EntryURL) == "" {
			res.addErr("ebid portal %q has no entry_url", p.Name)
		}
		if len(p.CategoryCodes) == 0 {
			res.addWarn("ebid portal %q has no category codes; nothing will be searched", p.Name)
		}
	}

	if out.Limiter.RequestsPerSecond > 10 {
		res.addWarn("limiter.requests_per_second=%v is aggressive for municipal portals", out.Limiter.RequestsPerSecond)
	}
	if out.Enrich.DelaySeconds < 2 {
		res.addWarn("enrich.delay_seconds=%d may exhaust the LLM quota", out.Enrich.DelaySeconds)
	}

	return out, res
}
