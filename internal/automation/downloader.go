package automation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/remixer/internal/domain"
	"github.com/xkilldash9x/remixer/internal/network"
	"github.com/xkilldash9x/remixer/internal/observability"
	"github.com/xkilldash9x/remixer/internal/poll"
)

// Download tiers, in the order they are attempted.
const (
	TierFetch      = "fetch"
	TierButton     = "button"
	TierFilesystem = "filesystem"
)

// ImageFetcher performs the authenticated HTTP download of the direct tier.
type ImageFetcher interface {
	Fetch(ctx context.Context, req network.FetchRequest) (*network.Fetched, error)
}

// HighQualityURL asks the image CDN for the largest rendition by replacing the
// sizing suffix after the first '='.
func HighQualityURL(u string) string {
	i := strings.Index(u, "=")
	if i < 0 {
		return u
	}
	return u[:i] + "=s4096"
}

// Downloader retrieves the latest generated image, trying the direct fetch,
// then the UI download button, then the filesystem.
type Downloader struct {
	Deps
	fetcher ImageFetcher
	scanner *Scanner
	metrics *observability.Metrics
	logger  *zap.Logger
}

func NewDownloader(d Deps, fetcher ImageFetcher, scanner *Scanner, metrics *observability.Metrics) *Downloader {
	return &Downloader{
		Deps:    d,
		fetcher: fetcher,
		scanner: scanner,
		metrics: metrics,
		logger:  d.Logger.Named("downloader"),
	}
}

// Download returns the first artifact any tier produces.
func (d *Downloader) Download(ctx context.Context) (domain.ImageArtifact, error) {
	if err := d.settle(ctx, d.Timeouts.DownloadSettle); err != nil {
		return domain.ImageArtifact{}, err
	}

	var errs []error

	art, err := d.viaFetch(ctx)
	d.observe(TierFetch, err)
	if err == nil {
		return art, nil
	}
	if ctx.Err() != nil {
		return domain.ImageArtifact{}, ctx.Err()
	}
	d.logger.Warn("Direct fetch failed.", zap.Error(err))
	errs = append(errs, fmt.Errorf("%s: %w", TierFetch, err))

	// A successful button click only starts a browser download; the
	// filesystem tier picks up the file either way.
	err = d.viaButton(ctx)
	d.observe(TierButton, err)
	if err != nil {
		if ctx.Err() != nil {
			return domain.ImageArtifact{}, ctx.Err()
		}
		d.logger.Warn("Download button failed.", zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", TierButton, err))
	}

	art, err = d.viaFilesystem(ctx)
	d.observe(TierFilesystem, err)
	if err == nil {
		return art, nil
	}
	if ctx.Err() != nil {
		return domain.ImageArtifact{}, ctx.Err()
	}
	d.logger.Warn("Filesystem scan failed.", zap.Error(err))
	errs = append(errs, fmt.Errorf("%s: %w", TierFilesystem, err))

	return domain.ImageArtifact{}, domain.DownloadError("all download strategies failed", errors.Join(errs...))
}

func (d *Downloader) observe(tier string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	d.metrics.ObserveDownload(tier, result)
}

func (d *Downloader) viaFetch(ctx context.Context) (domain.ImageArtifact, error) {
	if d.fetcher == nil {
		return domain.ImageArtifact{}, errors.New("direct fetch disabled")
	}

	var src *string
	if err := d.Page.Evaluate(ctx, findImageURL.With(d.Selectors.GeneratedImageURLFragment, d.Selectors.MinGeneratedImageSize), &src); err != nil {
		return domain.ImageArtifact{}, fmt.Errorf("locating image: %w", err)
	}
	if src == nil || *src == "" {
		return domain.ImageArtifact{}, errors.New("image URL not found")
	}
	url := HighQualityURL(*src)
	d.logger.Info("Fetching image.", zap.String("url", preview(url, 80)))

	// Session state is read fresh every time; cookies rotate.
	cookies, err := d.Page.Cookies(ctx)
	if err != nil {
		return domain.ImageArtifact{}, fmt.Errorf("reading cookies: %w", err)
	}
	var ua string
	if err := d.Page.Evaluate(ctx, userAgent, &ua); err != nil {
		d.logger.Debug("Could not read the user agent.", zap.Error(err))
	}

	fetched, err := d.fetcher.Fetch(ctx, network.FetchRequest{
		URL:       url,
		UserAgent: ua,
		Referer:   d.appOrigin(),
		Cookies:   cookies,
	})
	if err != nil {
		return domain.ImageArtifact{}, err
	}

	ext := fetched.Extension
	if !domain.IsImageExtension(ext) {
		ext = ".png"
	}
	if err := os.MkdirAll(d.App.OutputDir, 0o755); err != nil {
		return domain.ImageArtifact{}, fmt.Errorf("creating output dir: %w", err)
	}
	id := domain.ShortID()
	path := filepath.Join(d.App.OutputDir, domain.GeneratedFilename(id, ext))
	if err := os.WriteFile(path, fetched.Data, 0o644); err != nil {
		return domain.ImageArtifact{}, fmt.Errorf("writing image: %w", err)
	}
	d.logger.Info("Image downloaded.", zap.String("path", path), zap.Int("bytes", len(fetched.Data)))
	return domain.NewImageArtifactWithID(id, path, d.Clock.Now()), nil
}

func (d *Downloader) viaButton(ctx context.Context) error {
	var imageSel string
	err := poll.Until(ctx, d.Clock, d.Timeouts.Short, d.Timeouts.ElementClickable, func(ctx context.Context) (bool, error) {
		sel, err := d.Selectors.ImageButton.First(ctx, d.Page)
		if err != nil {
			return false, err
		}
		imageSel = sel
		return true, nil
	})
	if err == nil {
		if err := d.settle(ctx, d.Timeouts.Medium); err != nil {
			return err
		}
		if ok, err := d.clickScripted(ctx, imageSel, 0); err != nil || !ok {
			d.logger.Debug("Could not open the image viewer.", zap.String("selector", imageSel), zap.Error(err))
		} else if err := d.settle(ctx, d.Timeouts.Medium); err != nil {
			return err
		}
	} else if ctx.Err() != nil {
		return ctx.Err()
	}

	for _, sel := range d.Selectors.DownloadButton {
		ok, err := d.clickScripted(ctx, sel, 0)
		if err != nil || !ok {
			continue
		}
		d.logger.Info("Download button clicked.", zap.String("selector", sel))
		return d.settle(ctx, d.Timeouts.DownloadClickSettle)
	}
	return errors.New("download button not found")
}

func (d *Downloader) viaFilesystem(ctx context.Context) (domain.ImageArtifact, error) {
	path, err := d.scanner.ScanRecent(ctx)
	if err != nil {
		return domain.ImageArtifact{}, err
	}
	return d.scanner.Claim(path)
}
