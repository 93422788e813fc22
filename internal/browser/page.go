// internal/browser/page.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Script is a named in-page function. Source must be a JavaScript function
// expression; it is invoked with Args (JSON encoded) and its return value,
// awaited if it is a promise, is decoded into the caller's result.
type Script struct {
	Name   string
	Source string
	Args   []interface{}
}

// With returns a copy of the script bound to the given arguments.
func (s Script) With(args ...interface{}) Script {
	s.Args = args
	return s
}

// Expression renders the invocation as a single expression that always
// resolves to a JSON value (undefined becomes null).
func (s Script) Expression() (string, error) {
	encoded := make([]string, 0, len(s.Args))
	for i, arg := range s.Args {
		b, err := json.Marshal(arg)
		if err != nil {
			return "", fmt.Errorf("script %s: encoding argument %d: %w", s.Name, i, err)
		}
		encoded = append(encoded, string(b))
	}
	return fmt.Sprintf("Promise.resolve((%s)(%s)).then(r => r === undefined ? null : r)",
		strings.TrimSpace(s.Source), strings.Join(encoded, ", ")), nil
}

// Page is the small set of browser primitives the automation layer needs.
// Every call is bounded by ctx.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	URL(ctx context.Context) (string, error)
	// Count returns how many elements currently match the CSS selector.
	Count(ctx context.Context, selector string) (int, error)
	// Click performs a native click on the first element matching selector.
	Click(ctx context.Context, selector string) error
	// PressPaste sends the paste key combination to the focused element.
	PressPaste(ctx context.Context) error
	// Evaluate runs the script and decodes its result into res, which may be nil.
	Evaluate(ctx context.Context, script Script, res interface{}) error
	Cookies(ctx context.Context) ([]*http.Cookie, error)
	// SetDownloadDir routes browser-initiated downloads into dir.
	SetDownloadDir(ctx context.Context, dir string) error
}

// Driver launches a browser and hands out its single page.
type Driver interface {
	Name() string
	Start(ctx context.Context) (Page, error)
	Stop(ctx context.Context) error
}

// countScript backs Page.Count for drivers without a native count primitive.
var countScript = Script{
	Name:   "count",
	Source: `(sel) => document.querySelectorAll(sel).length`,
}
