package automation

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/remixer/internal/domain"
	"github.com/xkilldash9x/remixer/internal/poll"
)

// Generator produces one image per call: tool selection, prompt, wait, download.
type Generator struct {
	Deps
	tools       *ToolSelector
	prompts     *PromptManager
	downloader  *Downloader
	requireTool bool
	logger      *zap.Logger
}

func NewGenerator(d Deps, tools *ToolSelector, prompts *PromptManager, downloader *Downloader, requireTool bool) *Generator {
	return &Generator{
		Deps:        d,
		tools:       tools,
		prompts:     prompts,
		downloader:  downloader,
		requireTool: requireTool,
		logger:      d.Logger.Named("generator"),
	}
}

// Generate runs one generation round. report, if non-nil, receives the
// per-image phases as they are entered.
func (g *Generator) Generate(ctx context.Context, prompt string, report domain.PhaseFunc) (domain.ImageArtifact, error) {
	if report == nil {
		report = func(domain.Phase, string) {}
	}

	if !g.tools.SelectImageTool(ctx) {
		if err := ctx.Err(); err != nil {
			return domain.ImageArtifact{}, err
		}
		if g.requireTool {
			return domain.ImageArtifact{}, domain.ImageGenerationError("image tool could not be selected", nil)
		}
		g.logger.Warn("Image tool not selected, sending the prompt anyway.")
		report(domain.PhaseToolSelected, "image tool not confirmed")
	} else {
		report(domain.PhaseToolSelected, "")
	}

	if err := g.prompts.SendPrompt(ctx, prompt); err != nil {
		return domain.ImageArtifact{}, err
	}
	report(domain.PhaseGenPromptSent, "")

	report(domain.PhaseAwaitingGeneration, "")
	if err := g.WaitForImageGeneration(ctx, g.Timeouts.ImageGeneration); err != nil {
		return domain.ImageArtifact{}, err
	}

	report(domain.PhaseDownloading, "")
	return g.downloader.Download(ctx)
}

// WaitForImageGeneration polls for the generated image marker.
func (g *Generator) WaitForImageGeneration(ctx context.Context, timeout time.Duration) error {
	g.logger.Info("Waiting for image generation.", zap.Duration("timeout", timeout))
	err := poll.Until(ctx, g.Clock, time.Second, timeout, func(ctx context.Context) (bool, error) {
		n, err := g.Selectors.GeneratedImage.Total(ctx, g.Page)
		return err == nil && n > 0, err
	})
	if err != nil {
		if errors.Is(err, poll.ErrTimeout) {
			return domain.ImageGenerationError("image was not generated in time", err)
		}
		return err
	}
	g.logger.Info("Image generated.")
	return g.settle(ctx, g.Timeouts.Medium)
}
