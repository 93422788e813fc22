// Package automation drives the target app through a browser.Page: navigation,
// image upload, prompt exchange, tool selection, generation and download.
package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xkilldash9x/remixer/internal/browser"
	"github.com/xkilldash9x/remixer/internal/config"
)

// ErrChainExhausted is returned when no selector in a chain matches.
var ErrChainExhausted = errors.New("no selector in chain matched")

// Chain is an ordered list of CSS selectors for one UI affordance.
type Chain []string

// First returns the first selector that currently matches at least one
// element. Count failures on a single selector are skipped.
func (c Chain) First(ctx context.Context, page browser.Page) (string, error) {
	var lastErr error
	for _, sel := range c {
		n, err := page.Count(ctx, sel)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
			continue
		}
		if n > 0 {
			return sel, nil
		}
	}
	if lastErr != nil {
		return "", fmt.Errorf("%w [%s]: %v", ErrChainExhausted, c, lastErr)
	}
	return "", fmt.Errorf("%w [%s]", ErrChainExhausted, c)
}

// Present reports whether any selector of the chain matches.
func (c Chain) Present(ctx context.Context, page browser.Page) bool {
	_, err := c.First(ctx, page)
	return err == nil
}

// Total sums the matches of every selector.
func (c Chain) Total(ctx context.Context, page browser.Page) (int, error) {
	total := 0
	for _, sel := range c {
		n, err := page.Count(ctx, sel)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}

func (c Chain) String() string { return strings.Join(c, " | ") }

// Selectors is the typed view of the configured selector chains.
type Selectors struct {
	InputSurface    Chain
	PromptArea      Chain
	SendButton      Chain
	StopIndicator   Chain
	Response        Chain
	Thoughts        Chain
	ToolsTrigger    Chain
	ToolOption      Chain
	NewConversation Chain
	SignIn          Chain
	GeneratedImage  Chain
	ImageButton     Chain
	UploadedImage   Chain
	DownloadButton  Chain

	GeneratedImageURLFragment string
	MinGeneratedImageSize     int
}

func NewSelectors(cfg config.SelectorsConfig) Selectors {
	return Selectors{
		InputSurface:              Chain(cfg.InputSurface),
		PromptArea:                Chain(cfg.PromptArea),
		SendButton:                Chain(cfg.SendButton),
		StopIndicator:             Chain(cfg.StopIndicator),
		Response:                  Chain(cfg.Response),
		Thoughts:                  Chain(cfg.Thoughts),
		ToolsTrigger:              Chain(cfg.ToolsTrigger),
		ToolOption:                Chain(cfg.ToolOption),
		NewConversation:           Chain(cfg.NewConversation),
		SignIn:                    Chain(cfg.SignIn),
		GeneratedImage:            Chain(cfg.GeneratedImage),
		ImageButton:               Chain(cfg.ImageButton),
		UploadedImage:             Chain(cfg.UploadedImage),
		DownloadButton:            Chain(cfg.DownloadButton),
		GeneratedImageURLFragment: cfg.GeneratedImageURLFragment,
		MinGeneratedImageSize:     cfg.MinGeneratedImageSize,
	}
}
