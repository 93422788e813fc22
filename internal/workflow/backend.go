// Package workflow runs generation requests end to end: it owns the phase
// state machine, progress reporting, per-requester tracking and the single
// place where failures become results.
package workflow

import (
	"context"

	"github.com/xkilldash9x/remixer/internal/domain"
)

// Backend is one way of talking to the image assistant. Phase methods require
// a prior Acquire; Release must be safe to call more than once.
type Backend interface {
	Name() string
	Acquire(ctx context.Context) error
	Release(ctx context.Context) error

	CheckSession(ctx context.Context) (bool, string)
	NavigateToApp(ctx context.Context) error
	// NewConversation resets the chat and never fails.
	NewConversation(ctx context.Context)

	// Analyze uploads imagePath, sends instruction and returns the reply text.
	Analyze(ctx context.Context, imagePath, instruction string, report domain.PhaseFunc) (string, error)
	// Generate produces one image from prompt.
	Generate(ctx context.Context, prompt string, report domain.PhaseFunc) (domain.ImageArtifact, error)
}
