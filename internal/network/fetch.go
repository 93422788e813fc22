// File: internal/network/fetch.go
package network

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

const (
	imageAccept = "image/avif,image/webp,image/apng,image/*,*/*;q=0.8"
	// maxImageBytes caps a single artifact download.
	maxImageBytes = 64 << 20
)

// FetchRequest describes an authenticated image download that impersonates
// the live browser session.
type FetchRequest struct {
	URL       string
	UserAgent string
	Referer   string
	Cookies   []*http.Cookie
}

// Fetched is a downloaded image and its sniffed type.
type Fetched struct {
	Data        []byte
	ContentType string
	// Extension includes the leading dot, e.g. ".png".
	Extension string
}

// Fetcher downloads images with the browser's cookies and user agent.
type Fetcher struct {
	client *http.Client
	logger *zap.Logger
}

func NewFetcher(client *http.Client, logger *zap.Logger) *Fetcher {
	if client == nil {
		client = NewClient(nil)
	}
	return &Fetcher{client: client, logger: logger.Named("fetcher")}
}

// Fetch performs the GET. Anything but a 200 carrying image bytes is an error.
func (f *Fetcher) Fetch(ctx context.Context, fr FetchRequest) (*Fetched, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fr.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", imageAccept)
	if fr.UserAgent != "" {
		req.Header.Set("User-Agent", fr.UserAgent)
	}
	if fr.Referer != "" {
		req.Header.Set("Referer", fr.Referer)
	}
	for _, c := range cookiesFor(req.URL, fr.Cookies) {
		req.AddCookie(c)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	f.logger.Debug("Image response received.", zap.Int("status", resp.StatusCode), zap.String("content_type", resp.Header.Get("Content-Type")))
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected HTTP status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}

	mtype := mimetype.Detect(data)
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, fmt.Errorf("response is %s, not an image", mtype.String())
	}
	return &Fetched{Data: data, ContentType: mtype.String(), Extension: mtype.Extension()}, nil
}

// cookiesFor returns the subset of a browser's cookie dump that the browser
// itself would send to target, matching on domain, path and secure flag.
// A cookie without a domain is treated as host-only for target.
func cookiesFor(target *url.URL, cookies []*http.Cookie) []*http.Cookie {
	if len(cookies) == 0 {
		return nil
	}
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	for _, c := range cookies {
		origin := target
		if host := strings.TrimPrefix(c.Domain, "."); host != "" {
			origin = &url.URL{Scheme: target.Scheme, Host: host, Path: "/"}
		}
		jar.SetCookies(origin, []*http.Cookie{c})
	}
	return jar.Cookies(target)
}
