package automation

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// OptionResolver picks the menu entry to click from the option texts.
type OptionResolver interface {
	Resolve(options []string) (int, bool)
}

// RankedResolver prefers a case-insensitive phrase match and falls back to
// fixed positions, in order.
type RankedResolver struct {
	Phrases  []string
	Fallback []int
}

func (r RankedResolver) Resolve(options []string) (int, bool) {
	for i, opt := range options {
		text := strings.ToLower(strings.TrimSpace(opt))
		for _, phrase := range r.Phrases {
			if phrase != "" && strings.Contains(text, strings.ToLower(phrase)) {
				return i, true
			}
		}
	}
	for _, idx := range r.Fallback {
		if idx >= 0 && idx < len(options) {
			return idx, true
		}
	}
	return -1, false
}

// ToolSelector switches the composer into image generation mode.
type ToolSelector struct {
	Deps
	resolver OptionResolver
	logger   *zap.Logger
}

func NewToolSelector(d Deps, resolver OptionResolver) *ToolSelector {
	return &ToolSelector{Deps: d, resolver: resolver, logger: d.Logger.Named("tools")}
}

// SelectImageTool opens the tools menu and clicks the image option. It reports
// false rather than failing; callers decide whether that is fatal.
func (t *ToolSelector) SelectImageTool(ctx context.Context) bool {
	trigger, err := t.waitFirst(ctx, t.Selectors.ToolsTrigger, t.Timeouts.ButtonClick)
	if err != nil {
		t.logger.Warn("Tools menu trigger not found.", zap.Error(err))
		return false
	}
	if ok, err := t.clickScripted(ctx, trigger, 0); err != nil || !ok {
		t.logger.Warn("Could not open the tools menu.", zap.String("selector", trigger), zap.Error(err))
		return false
	}
	if err := t.settle(ctx, t.Timeouts.Medium); err != nil {
		return false
	}

	var (
		optionSel string
		texts     []string
	)
	for _, sel := range t.Selectors.ToolOption {
		var got []string
		if err := t.Page.Evaluate(ctx, optionTexts.With(sel), &got); err != nil {
			t.logger.Debug("Reading tool options failed.", zap.String("selector", sel), zap.Error(err))
			continue
		}
		if len(got) > 0 {
			optionSel, texts = sel, got
			break
		}
	}
	if len(texts) == 0 {
		t.logger.Warn("Tools menu has no options.")
		return false
	}

	idx, ok := t.resolver.Resolve(texts)
	if !ok {
		t.logger.Warn("No tool option matched.", zap.Strings("options", texts))
		return false
	}
	if ok, err := t.clickScripted(ctx, optionSel, idx); err != nil || !ok {
		t.logger.Warn("Could not click the tool option.", zap.Int("index", idx), zap.Error(err))
		return false
	}
	if err := t.settle(ctx, t.Timeouts.Medium); err != nil {
		return false
	}
	t.logger.Info("Image tool selected.", zap.Int("index", idx), zap.String("option", texts[idx]))
	return true
}
