package automation

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/xkilldash9x/remixer/internal/domain"
	"github.com/xkilldash9x/remixer/internal/poll"
)

// minResponseLength filters out placeholders such as "..." or a lone emoji.
const minResponseLength = 10

// PromptManager writes prompts and reads back the model's reply.
type PromptManager struct {
	Deps
	logger *zap.Logger
}

func NewPromptManager(d Deps) *PromptManager {
	return &PromptManager{Deps: d, logger: d.Logger.Named("prompt")}
}

// SendPrompt fills the editor with text and presses send.
func (p *PromptManager) SendPrompt(ctx context.Context, text string) error {
	p.logger.Info("Sending prompt.", zap.Int("length", utf8.RuneCountInString(text)))

	var written bool
	if err := p.Page.Evaluate(ctx, writePrompt.With(text, []string(p.Selectors.PromptArea)), &written); err != nil {
		return domain.ResponseError("could not write the prompt", err)
	}
	if !written {
		return domain.ResponseError("prompt area not found", nil)
	}
	if err := p.settle(ctx, p.Timeouts.Short); err != nil {
		return err
	}

	sel, err := p.waitFirst(ctx, p.Selectors.SendButton, p.Timeouts.ElementClickable)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return domain.ResponseError("send button not found", err)
	}
	if err := p.Page.Click(ctx, sel); err != nil {
		return domain.ResponseError("could not click send", err)
	}
	p.logger.Debug("Prompt sent.", zap.String("selector", sel))
	return nil
}

// WaitForResponse waits until the stop indicator disappears. An indicator that
// never shows counts as done; one that never clears is logged and ignored.
func (p *PromptManager) WaitForResponse(ctx context.Context, timeout time.Duration) error {
	if err := p.settle(ctx, p.Timeouts.Long); err != nil {
		return err
	}

	err := poll.Until(ctx, p.Clock, time.Second, timeout, func(ctx context.Context) (bool, error) {
		n, err := p.Selectors.StopIndicator.Total(ctx, p.Page)
		return err == nil && n == 0, err
	})
	switch {
	case err == nil:
	case errors.Is(err, poll.ErrTimeout):
		p.logger.Warn("Response still streaming at timeout, continuing.", zap.Duration("timeout", timeout))
	default:
		return err
	}
	return p.settle(ctx, p.Timeouts.ResponseCheck)
}

// ResponseText returns the first response candidate longer than the minimum,
// trying the response chain in order.
func (p *PromptManager) ResponseText(ctx context.Context) (string, error) {
	for _, sel := range p.Selectors.Response {
		var text string
		if err := p.Page.Evaluate(ctx, extractResponseText.With(sel, []string(p.Selectors.Thoughts)), &text); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			p.logger.Debug("Response extraction failed.", zap.String("selector", sel), zap.Error(err))
			continue
		}
		text = strings.TrimSpace(text)
		if utf8.RuneCountInString(text) > minResponseLength {
			p.logger.Info("Response received.", zap.String("selector", sel), zap.String("preview", preview(text, 100)))
			return text, nil
		}
	}
	return "", domain.ResponseError("no response text found, check the app session", nil)
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
