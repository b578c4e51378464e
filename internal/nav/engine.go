// Package nav drives a stateful legacy e-bidding portal session through its
// load → menu → search → paginate → detail flow. These systems render inside
// a frameset, keep all state server-side in the session, and offer no
// addressable URLs, so the only way in is to walk the UI one step at a time.
package nav

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

type State int

const (
	StateEntry State = iota
	StateMenuResolved
	StateSearchConfigured
	StateResultsLoaded
	StatePaginating
	StateDetailOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateEntry:
		return "Entry"
	case StateMenuResolved:
		return "MenuResolved"
	case StateSearchConfigured:
		return "SearchConfigured"
	case StateResultsLoaded:
		return "ResultsLoaded"
	case StatePaginating:
		return "Paginating"
	case StateDetailOpen:
		return "DetailOpen"
	case StateClosed:
		return "Closed"
	}
	return "Unknown"
}

var (
	ErrFrameNotFound      = errors.New("nav: frame not found")
	ErrSearchFormNotFound = errors.New("nav: search form not found")
	ErrNoDocument         = errors.New("nav: no document captured")
)

// Target identifies one search the engine runs inside a session: a menu
// screen, a category code and optional search filters.
type Target struct {
	ScreenID     string
	CategoryCode string
	Filters      map[string]string
}

// Row is one result line as the portal renders it, plus the opaque reference
// the portal uses to open its detail view.
type Row struct {
	Cells     []string
	DetailRef string
}

// Document is a binary result document captured from a detail popup.
type Document struct {
	Name  string
	Bytes []byte
}

// SessionDriver is the low-level surface the engine drives. The production
// implementation wraps a rod browser session; tests inject a fake.
type SessionDriver interface {
	Open(ctx context.Context, url string) error
	HasFrame(name string) bool
	ClickMenu(ctx context.Context, frame, screenID string) error
	HasSearchForm(frame string) bool
	SetFilter(ctx context.Context, frame, name, value string) error
	SelectCategory(ctx context.Context, frame, code string) error
	SubmitSearch(ctx context.Context, frame string) error
	ResultRows(ctx context.Context, frame string) ([]Row, error)
	PageCount(ctx context.Context, frame string) (int, error)
	JumpToPage(ctx context.Context, frame string, page int) error
	OpenDetail(ctx context.Context, frame, ref string) error
	CaptureDocument(ctx context.Context) (*Document, error)
	CloseDetail(ctx context.Context) error
	Close() error
}

type Config struct {
	EntryURL    string
	MenuFrame   string
	SearchFrame string
	ResultFrame string
	// Retries is the attempt count for each frame/form precondition;
	// SettleDelay is the pause between attempts. The portals expose no load
	// completion signal, so a bounded wait is the pragmatic substitute.
	Retries     int
	SettleDelay time.Duration
	MaxPages    int
}

func (c Config) withDefaults() Config {
	if c.Retries <= 0 {
		c.Retries = 5
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 2 * time.Second
	}
	if c.MaxPages <= 0 {
		c.MaxPages = 20
	}
	return c
}

// Engine walks a single session through its states. Not safe for concurrent
// use: the session's frame tree is shared mutable state, one actor only.
type Engine struct {
	drv   SessionDriver
	cfg   Config
	state State
}

func NewEngine(drv SessionDriver, cfg Config) *Engine {
	return &Engine{drv: drv, cfg: cfg.withDefaults(), state: StateEntry}
}

func (e *Engine) State() State { return e.state }

// Navigate runs one target through the session and returns every result row
// across all pages. A frame or form that never settles fails this target
// only; the caller skips it and moves on.
func (e *Engine) Navigate(ctx context.Context, t Target) ([]Row, error) {
	if e.state == StateClosed {
		return nil, fmt.Errorf("nav: session closed")
	}

	if e.state == StateEntry {
		if err := e.drv.Open(ctx, e.cfg.EntryURL); err != nil {
			return nil, fmt.Errorf("nav: open entry: %w", err)
		}
	}

	// Entry → MenuResolved: the menu frame must exist.
	if err := e.awaitFrame(ctx, e.cfg.MenuFrame); err != nil {
		return nil, err
	}
	if err := e.drv.ClickMenu(ctx, e.cfg.MenuFrame, t.ScreenID); err != nil {
		return nil, fmt.Errorf("nav: menu %q: %w", t.ScreenID, err)
	}
	e.state = StateMenuResolved

	// MenuResolved → SearchConfigured: the search form must exist.
	if err := e.awaitSearchForm(ctx); err != nil {
		return nil, err
	}
	if t.CategoryCode != "" {
		if err := e.drv.SelectCategory(ctx, e.cfg.SearchFrame, t.CategoryCode); err != nil {
			return nil, fmt.Errorf("nav: category %q: %w", t.CategoryCode, err)
		}
	}
	for name, value := range t.Filters {
		if err := e.drv.SetFilter(ctx, e.cfg.SearchFrame, name, value); err != nil {
			return nil, fmt.Errorf("nav: filter %s=%s: %w", name, value, err)
		}
	}
	e.state = StateSearchConfigured

	// SearchConfigured → ResultsLoaded.
	if err := e.drv.SubmitSearch(ctx, e.cfg.SearchFrame); err != nil {
		return nil, fmt.Errorf("nav: submit search: %w", err)
	}
	if err := e.awaitFrame(ctx, e.cfg.ResultFrame); err != nil {
		return nil, err
	}
	e.state = StateResultsLoaded

	rows, err := e.drv.ResultRows(ctx, e.cfg.ResultFrame)
	if err != nil {
		return nil, fmt.Errorf("nav: result rows: %w", err)
	}

	pages, err := e.drv.PageCount(ctx, e.cfg.ResultFrame)
	if err != nil {
		log.Printf("[nav] page count unavailable, assuming single page: %v", err)
		pages = 1
	}
	if pages > e.cfg.MaxPages {
		pages = e.cfg.MaxPages
	}

	// ResultsLoaded → Paginating: in-session page jumps, no reload of the
	// search form.
	for p := 2; p <= pages; p++ {
		e.state = StatePaginating
		if err := e.drv.JumpToPage(ctx, e.cfg.ResultFrame, p); err != nil {
			log.Printf("[nav] page jump %d failed, keeping %d rows: %v", p, len(rows), err)
			break
		}
		e.settle()
		more, err := e.drv.ResultRows(ctx, e.cfg.ResultFrame)
		if err != nil {
			log.Printf("[nav] rows on page %d failed, keeping %d rows: %v", p, len(rows), err)
			break
		}
		rows = append(rows, more...)
	}
	e.state = StateResultsLoaded

	return rows, nil
}

// FetchDetailDocument opens the detail view for one row, captures the result
// document from the secondary (popup) context and closes it again. The
// session returns to ResultsLoaded either way.
func (e *Engine) FetchDetailDocument(ctx context.Context, row Row) (*Document, error) {
	if e.state != StateResultsLoaded {
		return nil, fmt.Errorf("nav: detail fetch requires loaded results, state=%s", e.state)
	}
	if row.DetailRef == "" {
		return nil, ErrNoDocument
	}

	if err := e.drv.OpenDetail(ctx, e.cfg.ResultFrame, row.DetailRef); err != nil {
		return nil, fmt.Errorf("nav: open detail: %w", err)
	}
	e.state = StateDetailOpen
	e.settle()

	doc, err := e.drv.CaptureDocument(ctx)

	if cerr := e.drv.CloseDetail(ctx); cerr != nil {
		log.Printf("[nav] close detail: %v", cerr)
	}
	e.state = StateResultsLoaded

	if err != nil {
		return nil, fmt.Errorf("nav: capture document: %w", err)
	}
	return doc, nil
}

// Close ends the session. Safe to call twice.
func (e *Engine) Close() error {
	if e.state == StateClosed {
		return nil
	}
	e.state = StateClosed
	return e.drv.Close()
}

func (e *Engine) awaitFrame(ctx context.Context, name string) error {
	for i := 0; i < e.cfg.Retries; i++ {
		if e.drv.HasFrame(name) {
			return nil
		}
		if err := e.sleep(ctx); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %q after %d attempts", ErrFrameNotFound, name, e.cfg.Retries)
}

func (e *Engine) awaitSearchForm(ctx context.Context) error {
	for i := 0; i < e.cfg.Retries; i++ {
		if e.drv.HasFrame(e.cfg.SearchFrame) && e.drv.HasSearchForm(e.cfg.SearchFrame) {
			return nil
		}
		if err := e.sleep(ctx); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: frame %q after %d attempts", ErrSearchFormNotFound, e.cfg.SearchFrame, e.cfg.Retries)
}

func (e *Engine) settle() {
	time.Sleep(e.cfg.SettleDelay)
}

func (e *Engine) sleep(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(e.cfg.SettleDelay):
		return nil
	}
}
