// Package browsertest provides an in-memory browser.Page for tests.
package browsertest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/xkilldash9x/remixer/internal/browser"
)

// ScriptFunc answers one script invocation.
type ScriptFunc func(args []interface{}) (interface{}, error)

// Page is a scriptable fake. Selector presence is driven by SetCount, script
// results by Handle. Every call is recorded for later assertions.
type Page struct {
	mu          sync.Mutex
	counts      map[string]int
	scripts     map[string]ScriptFunc
	clickErrs   map[string]error
	calls       []string
	url         string
	cookies     []*http.Cookie
	downloadDir string

	// NavigateErr, when set, fails every Navigate and Reload.
	NavigateErr error
	// OnClick runs after a successful click, e.g. to mutate selector counts.
	OnClick func(selector string)
	// OnPaste runs after PressPaste.
	OnPaste func()
}

var _ browser.Page = (*Page)(nil)

func NewPage() *Page {
	return &Page{
		counts:    map[string]int{},
		scripts:   map[string]ScriptFunc{},
		clickErrs: map[string]error{},
	}
}

func (p *Page) record(format string, args ...interface{}) {
	p.calls = append(p.calls, fmt.Sprintf(format, args...))
}

// SetCount sets how many elements match selector.
func (p *Page) SetCount(selector string, n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[selector] = n
}

// Handle installs the handler for the named script.
func (p *Page) Handle(name string, fn ScriptFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scripts[name] = fn
}

// FailClick makes clicks on selector return err.
func (p *Page) FailClick(selector string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clickErrs[selector] = err
}

func (p *Page) SetURL(u string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = u
}

func (p *Page) SetCookies(cookies ...*http.Cookie) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cookies = cookies
}

// Calls returns the recorded call log, e.g. "click button.send".
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

// CountCalls returns how many recorded calls equal call.
func (p *Page) CountCalls(call string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (p *Page) DownloadDir() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.downloadDir
}

func (p *Page) Navigate(ctx context.Context, url string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("navigate %s", url)
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	p.url = url
	return ctx.Err()
}

func (p *Page) Reload(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("reload")
	if p.NavigateErr != nil {
		return p.NavigateErr
	}
	return ctx.Err()
}

func (p *Page) URL(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, ctx.Err()
}

func (p *Page) Count(ctx context.Context, selector string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("count %s", selector)
	return p.counts[selector], ctx.Err()
}

func (p *Page) Click(ctx context.Context, selector string) error {
	p.mu.Lock()
	p.record("click %s", selector)
	if err := p.clickErrs[selector]; err != nil {
		p.mu.Unlock()
		return err
	}
	if p.counts[selector] == 0 {
		p.mu.Unlock()
		return fmt.Errorf("no element matches %q", selector)
	}
	hook := p.OnClick
	p.mu.Unlock()

	if hook != nil {
		hook(selector)
	}
	return ctx.Err()
}

func (p *Page) PressPaste(ctx context.Context) error {
	p.mu.Lock()
	p.record("paste")
	hook := p.OnPaste
	p.mu.Unlock()

	if hook != nil {
		hook()
	}
	return ctx.Err()
}

// Evaluate dispatches on script.Name. Scripts without a handler resolve to null.
func (p *Page) Evaluate(ctx context.Context, script browser.Script, res interface{}) error {
	p.mu.Lock()
	p.record("script %s", script.Name)
	fn := p.scripts[script.Name]
	p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	var out interface{}
	if fn != nil {
		var err error
		if out, err = fn(script.Args); err != nil {
			return err
		}
	}
	if res == nil {
		return nil
	}
	b, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, res)
}

func (p *Page) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*http.Cookie(nil), p.cookies...), ctx.Err()
}

func (p *Page) SetDownloadDir(ctx context.Context, dir string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.downloadDir = dir
	return ctx.Err()
}

// Driver hands out a fixed Page and counts lifecycle calls.
type Driver struct {
	mu       sync.Mutex
	Page     browser.Page
	StartErr error
	StopErr  error
	starts   int
	stops    int
}

var _ browser.Driver = (*Driver)(nil)

func (d *Driver) Name() string { return "fake" }

func (d *Driver) Start(ctx context.Context) (browser.Page, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.starts++
	if d.StartErr != nil {
		return nil, d.StartErr
	}
	return d.Page, nil
}

func (d *Driver) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stops++
	return d.StopErr
}

// Counts returns how many times Start and Stop were called.
func (d *Driver) Counts() (starts, stops int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.starts, d.stops
}
