package nav

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodConfig holds the per-portal selectors the rod driver needs. The e-bid
// frontends differ only in naming, not in structure, so selectors come from
// config rather than code.
type RodConfig struct {
	Headless bool
	// RowSelector matches result rows inside the result frame.
	RowSelector string
	// SubmitSelector matches the search button inside the search frame.
	SubmitSelector string
	// PageJumpFunc is the portal's own in-session paging function, called as
	// PageJumpFunc(n) inside the result frame.
	PageJumpFunc string
	// PagerSelector matches the element whose text holds "current/total".
	PagerSelector string
}

func (c RodConfig) withDefaults() RodConfig {
	if c.RowSelector == "" {
		c.RowSelector = "table tr"
	}
	if c.SubmitSelector == "" {
		c.SubmitSelector = `input[type="submit"]`
	}
	if c.PageJumpFunc == "" {
		c.PageJumpFunc = "movePage"
	}
	if c.PagerSelector == "" {
		c.PagerSelector = ".pager"
	}
	return c
}

// RodDriver implements SessionDriver on a real Chromium session via rod.
type RodDriver struct {
	cfg      RodConfig
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	popup    *rod.Page
}

func NewRodDriver(cfg RodConfig) (*RodDriver, error) {
	l := launcher.New().Headless(cfg.Headless)
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("nav: launch browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("nav: connect browser: %w", err)
	}

	return &RodDriver{cfg: cfg.withDefaults(), launcher: l, browser: browser}, nil
}

func (d *RodDriver) Open(ctx context.Context, url string) error {
	page, err := d.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return err
	}
	d.page = page
	if err := page.Context(ctx).Navigate(url); err != nil {
		return err
	}
	return page.Context(ctx).WaitLoad()
}

func frameSelector(name string) string {
	return fmt.Sprintf(`frame[name=%q], iframe[name=%q]`, name, name)
}

func (d *RodDriver) framePage(name string) (*rod.Page, error) {
	el, err := d.page.Element(frameSelector(name))
	if err != nil {
		return nil, err
	}
	return el.Frame()
}

func (d *RodDriver) HasFrame(name string) bool {
	if d.page == nil {
		return false
	}
	has, _, err := d.page.Has(frameSelector(name))
	return err == nil && has
}

func (d *RodDriver) ClickMenu(ctx context.Context, frame, screenID string) error {
	fp, err := d.framePage(frame)
	if err != nil {
		return err
	}
	sel := fmt.Sprintf(`[onclick*=%q], a[href*=%q]`, screenID, screenID)
	el, err := fp.Context(ctx).Element(sel)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (d *RodDriver) HasSearchForm(frame string) bool {
	fp, err := d.framePage(frame)
	if err != nil {
		return false
	}
	has, _, err := fp.Has("form")
	return err == nil && has
}

func (d *RodDriver) SetFilter(ctx context.Context, frame, name, value string) error {
	fp, err := d.framePage(frame)
	if err != nil {
		return err
	}
	el, err := fp.Context(ctx).Element(fmt.Sprintf(`[name=%q]`, name))
	if err != nil {
		return err
	}
	return el.Input(value)
}

func (d *RodDriver) SelectCategory(ctx context.Context, frame, code string) error {
	fp, err := d.framePage(frame)
	if err != nil {
		return err
	}
	// category <select> elements carry the code as the option value
	_, err = fp.Context(ctx).Eval(`(code) => {
		const sels = document.querySelectorAll("select");
		for (const s of sels) {
			for (const o of s.options) {
				if (o.value === code) {
					s.value = code;
					s.dispatchEvent(new Event("change", { bubbles: true }));
					return true;
				}
			}
		}
		throw new Error("category option not found: " + code);
	}`, code)
	return err
}

func (d *RodDriver) SubmitSearch(ctx context.Context, frame string) error {
	fp, err := d.framePage(frame)
	if err != nil {
		return err
	}
	el, err := fp.Context(ctx).Element(d.cfg.SubmitSelector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (d *RodDriver) ResultRows(ctx context.Context, frame string) ([]Row, error) {
	fp, err := d.framePage(frame)
	if err != nil {
		return nil, err
	}
	els, err := fp.Context(ctx).Elements(d.cfg.RowSelector)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for _, el := range els {
		tds, err := el.Elements("td")
		if err != nil || len(tds) == 0 {
			continue // header or spacer row
		}
		row := Row{}
		for _, td := range tds {
			txt, err := td.Text()
			if err != nil {
				txt = ""
			}
			row.Cells = append(row.Cells, strings.TrimSpace(txt))
		}
		if a, err := el.Elements("a"); err == nil && len(a) > 0 {
			if href, err := a[0].Attribute("href"); err == nil && href != nil {
				row.DetailRef = *href
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (d *RodDriver) PageCount(ctx context.Context, frame string) (int, error) {
	fp, err := d.framePage(frame)
	if err != nil {
		return 0, err
	}
	// pager text renders as "1/4" or "1 / 4 ページ"
	obj, err := fp.Context(ctx).Eval(fmt.Sprintf(`() => {
		const el = document.querySelector(%q);
		if (!el) return 1;
		const m = el.textContent.match(/\/\s*(\d+)/);
		return m ? parseInt(m[1], 10) : 1;
	}`, d.cfg.PagerSelector))
	if err != nil {
		return 0, err
	}
	return obj.Value.Int(), nil
}

func (d *RodDriver) JumpToPage(ctx context.Context, frame string, page int) error {
	fp, err := d.framePage(frame)
	if err != nil {
		return err
	}
	_, err = fp.Context(ctx).Eval(fmt.Sprintf(`() => %s(%d)`, d.cfg.PageJumpFunc, page))
	return err
}

func (d *RodDriver) OpenDetail(ctx context.Context, frame, ref string) error {
	fp, err := d.framePage(frame)
	if err != nil {
		return err
	}

	wait := d.page.WaitOpen()

	if js, ok := strings.CutPrefix(ref, "javascript:"); ok {
		if _, err := fp.Context(ctx).Eval(fmt.Sprintf("() => { %s }", js)); err != nil {
			return err
		}
	} else {
		el, err := fp.Context(ctx).Element(fmt.Sprintf(`a[href=%q]`, ref))
		if err != nil {
			return err
		}
		if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return err
		}
	}

	popup, err := wait()
	if err != nil {
		return fmt.Errorf("detail popup did not open: %w", err)
	}
	d.popup = popup
	return popup.Context(ctx).WaitLoad()
}

func (d *RodDriver) CaptureDocument(ctx context.Context) (*Document, error) {
	if d.popup == nil {
		return nil, ErrNoDocument
	}

	info, err := d.popup.Info()
	if err != nil {
		return nil, err
	}

	docURL := ""
	if strings.HasSuffix(strings.ToLower(info.URL), ".pdf") {
		// the popup itself is the document
		docURL = info.URL
	} else {
		has, el, err := d.popup.Has(`a[href$=".pdf"], a[href$=".zip"], a[href*="download"]`)
		if err != nil || !has {
			return nil, ErrNoDocument
		}
		href, err := el.Attribute("href")
		if err != nil || href == nil {
			return nil, ErrNoDocument
		}
		docURL = *href
	}

	b, err := d.popup.Context(ctx).GetResource(docURL)
	if err != nil {
		return nil, err
	}

	name := docURL
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return &Document{Name: name, Bytes: b}, nil
}

func (d *RodDriver) CloseDetail(ctx context.Context) error {
	if d.popup == nil {
		return nil
	}
	err := d.popup.Close()
	d.popup = nil
	return err
}

func (d *RodDriver) Close() error {
	var err error
	if d.page != nil {
		_ = d.page.Close()
	}
	if d.browser != nil {
		err = d.browser.Close()
	}
	if d.launcher != nil {
		d.launcher.Cleanup()
	}
	return err
}
