package automation

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/xkilldash9x/remixer/internal/domain"
	"github.com/xkilldash9x/remixer/internal/poll"
)

// ImageCopier puts an image file on the system clipboard.
type ImageCopier interface {
	CopyImage(ctx context.Context, path string) error
}

// Uploader attaches an image to the prompt by pasting it from the clipboard.
type Uploader struct {
	Deps
	clip   ImageCopier
	logger *zap.Logger
}

func NewUploader(d Deps, clip ImageCopier) *Uploader {
	return &Uploader{Deps: d, clip: clip, logger: d.Logger.Named("uploader")}
}

// UploadImage copies path to the clipboard, focuses the input surface, pastes
// and waits for the preview. A preview that never shows is logged and
// tolerated.
func (u *Uploader) UploadImage(ctx context.Context, path string) error {
	u.logger.Info("Uploading image.", zap.String("path", path))

	if err := u.clip.CopyImage(ctx, path); err != nil {
		return err
	}

	sel, err := u.waitFirst(ctx, u.Selectors.InputSurface, u.Timeouts.ElementVisible)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return domain.UploadError("input surface not found", err)
	}
	if err := u.Page.Click(ctx, sel); err != nil {
		return domain.UploadError("could not focus the input surface", err)
	}
	if err := u.settle(ctx, u.Timeouts.Short); err != nil {
		return err
	}
	if err := u.Page.PressPaste(ctx); err != nil {
		return domain.UploadError("paste failed", err)
	}
	if err := u.settle(ctx, u.Timeouts.UploadSettle); err != nil {
		return err
	}

	attempt, err := poll.Attempts(ctx, u.Clock, u.Timeouts.UploadVerifyAttempts, u.Timeouts.UploadVerifyInterval,
		func(ctx context.Context) (bool, error) {
			var seen bool
			err := u.Page.Evaluate(ctx, checkUploadedImage.With([]string(u.Selectors.UploadedImage)), &seen)
			return seen, err
		})
	switch {
	case err == nil:
		u.logger.Info("Upload verified.", zap.Int("attempt", attempt))
	case errors.Is(err, poll.ErrTimeout):
		u.logger.Warn("Upload preview never appeared, continuing.", zap.Int("attempts", attempt), zap.Error(err))
	default:
		return err
	}
	return nil
}
