// File: internal/clipboard/clipboard.go
package clipboard

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	textclip "github.com/atotto/clipboard"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	// webp sources are decoded through the image registry.
	_ "golang.org/x/image/webp"

	"github.com/xkilldash9x/remixer/internal/config"
	"github.com/xkilldash9x/remixer/internal/domain"
)

// Swapped out in tests.
var (
	execCommandContext = exec.CommandContext
	lookPath           = exec.LookPath
	writeText          = textclip.WriteAll
)

const pngMIME = "image/png"

// Bridge places images on the OS clipboard by piping PNG bytes into an
// external utility (xclip by default).
type Bridge struct {
	command string
	args    []string
	logger  *zap.Logger
}

func NewBridge(cfg config.ClipboardConfig, logger *zap.Logger) *Bridge {
	return &Bridge{
		command: cfg.Command,
		args:    cfg.Args,
		logger:  logger.Named("clipboard"),
	}
}

// Available reports whether the clipboard utility can be found on PATH.
func (b *Bridge) Available() error {
	if _, err := lookPath(b.command); err != nil {
		return domain.ClipboardError(fmt.Sprintf("%s is not installed", b.command), err)
	}
	return nil
}

// CopyImage puts the image at path on the clipboard as image/png. PNG sources
// are copied as-is; any other format is decoded and re-encoded losslessly.
func (b *Bridge) CopyImage(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.ClipboardError("source image not found", err)
		}
		return domain.ClipboardError("failed to read source image", err)
	}

	payload, converted, err := toPNG(data)
	if err != nil {
		return domain.ClipboardError("failed to convert image to PNG", err)
	}

	var stderr bytes.Buffer
	cmd := execCommandContext(ctx, b.command, b.args...)
	cmd.Stdin = bytes.NewReader(payload)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			err = fmt.Errorf("%w: %s", err, msg)
		}
		return domain.ClipboardError(fmt.Sprintf("%s exited with an error", b.command), err)
	}

	b.logger.Info("Image copied to clipboard.",
		zap.String("path", path),
		zap.Bool("converted", converted),
		zap.Int("bytes", len(payload)),
	)
	return nil
}

// toPNG returns data unchanged when it is already PNG, otherwise a PNG
// re-encoding with EXIF orientation applied.
func toPNG(data []byte) ([]byte, bool, error) {
	mtype := mimetype.Detect(data)
	if mtype.Is(pngMIME) {
		return data, false, nil
	}
	if !strings.HasPrefix(mtype.String(), "image/") {
		return nil, false, fmt.Errorf("unsupported source type %s", mtype.String())
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, false, fmt.Errorf("decoding %s: %w", mtype.String(), err)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, false, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), true, nil
}

// CopyText places plain text on the clipboard.
func (b *Bridge) CopyText(text string) error {
	if err := writeText(text); err != nil {
		return domain.ClipboardError("failed to copy text", err)
	}
	return nil
}
