package automation

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/remixer/internal/domain"
	"github.com/xkilldash9x/remixer/internal/poll"
)

var scannedExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".webp": {},
}

// DefaultDownloadDirs are always scanned in addition to the configured ones.
var DefaultDownloadDirs = []string{"~/Downloads", "~/İndirilenler"}

// Scanner finds images the browser saved on its own and claims them into the
// output directory.
type Scanner struct {
	dirs      []string
	outputDir string
	window    time.Duration
	clock     poll.Clock
	logger    *zap.Logger
}

// NewScanner scans dirs (~ expanded, duplicates dropped) for files modified
// within window of the clock's now.
func NewScanner(dirs []string, outputDir string, window time.Duration, clock poll.Clock, logger *zap.Logger) *Scanner {
	seen := make(map[string]struct{})
	var expanded []string
	for _, d := range append(append([]string(nil), dirs...), DefaultDownloadDirs...) {
		if d == "" {
			continue
		}
		p, err := homedir.Expand(d)
		if err != nil {
			logger.Debug("Skipping download dir.", zap.String("dir", d), zap.Error(err))
			continue
		}
		p = filepath.Clean(p)
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		expanded = append(expanded, p)
	}
	return &Scanner{dirs: expanded, outputDir: outputDir, window: window, clock: clock, logger: logger.Named("fsscan")}
}

func (s *Scanner) Dirs() []string { return append([]string(nil), s.dirs...) }

// ScanRecent returns the newest fresh image across the scanned directories.
// Files already claimed as generated artifacts are ignored.
func (s *Scanner) ScanRecent(ctx context.Context) (string, error) {
	now := s.clock.Now()
	var (
		newest    string
		newestMod time.Time
	)
	for _, dir := range s.dirs {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || strings.HasPrefix(e.Name(), "generated_") {
				continue
			}
			if _, ok := scannedExtensions[strings.ToLower(filepath.Ext(e.Name()))]; !ok {
				continue
			}
			info, err := e.Info()
			if err != nil {
				continue
			}
			mod := info.ModTime()
			age := now.Sub(mod)
			if age > s.window || age < -s.window {
				continue
			}
			if newest == "" || mod.After(newestMod) {
				newest, newestMod = filepath.Join(dir, e.Name()), mod
			}
		}
	}
	if newest == "" {
		return "", domain.DownloadError("no downloaded file found", nil)
	}
	s.logger.Debug("Found recent download.", zap.String("path", newest), zap.Time("modified", newestMod))
	return newest, nil
}

// Claim moves path into the output directory under a generated name, unless
// it already lives there.
func (s *Scanner) Claim(path string) (domain.ImageArtifact, error) {
	now := s.clock.Now()
	outAbs, err := filepath.Abs(s.outputDir)
	if err != nil {
		return domain.ImageArtifact{}, err
	}
	srcAbs, err := filepath.Abs(path)
	if err != nil {
		return domain.ImageArtifact{}, err
	}
	if filepath.Dir(srcAbs) == outAbs {
		return domain.NewImageArtifact(srcAbs, now), nil
	}

	if err := os.MkdirAll(outAbs, 0o755); err != nil {
		return domain.ImageArtifact{}, fmt.Errorf("creating output dir: %w", err)
	}
	id := domain.ShortID()
	dst := filepath.Join(outAbs, domain.GeneratedFilename(id, filepath.Ext(srcAbs)))
	if err := moveFile(srcAbs, dst); err != nil {
		return domain.ImageArtifact{}, fmt.Errorf("moving %s: %w", srcAbs, err)
	}
	s.logger.Info("Claimed downloaded file.", zap.String("from", srcAbs), zap.String("to", dst))
	return domain.NewImageArtifactWithID(id, dst, now), nil
}

// moveFile renames src to dst, copying across filesystems when rename fails.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	in.Close()
	return os.Remove(src)
}
