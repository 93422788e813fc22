package workflow

import (
	"context"
	"fmt"
	"sort"

	"github.com/xkilldash9x/remixer/internal/config"
	"github.com/xkilldash9x/remixer/internal/domain"
)

// Job is everything a run needs besides the backend.
type Job struct {
	Request  domain.WorkflowRequest
	Strategy string
	// Instruction is the analysis prompt sent with the photo.
	Instruction string
	// Prompt is the generation prompt supplied by the user for direct runs.
	Prompt string
}

// Strategy decides how the generation prompt is obtained. The generation loop
// itself is shared by every strategy.
type Strategy interface {
	Name() string
	Description() string
	Validate(job Job) error
	Prepare(ctx context.Context, b Backend, job Job, report domain.PhaseFunc) (domain.PromptText, error)
}

// AnalyzeAndGenerate uploads the photo and asks the assistant to describe it.
type AnalyzeAndGenerate struct{}

func (AnalyzeAndGenerate) Name() string { return config.StrategyAnalyzeAndGenerate }

func (AnalyzeAndGenerate) Description() string {
	return "analyze the photo, extract a prompt, generate new images from it"
}

func (AnalyzeAndGenerate) Validate(job Job) error {
	if job.Request.SourceImage == "" {
		return domain.ValidationError("a source photo is required")
	}
	if _, err := domain.NewPromptText(job.Instruction); err != nil {
		return domain.ValidationError("an analysis prompt is required")
	}
	return nil
}

func (AnalyzeAndGenerate) Prepare(ctx context.Context, b Backend, job Job, report domain.PhaseFunc) (domain.PromptText, error) {
	text, err := b.Analyze(ctx, job.Request.SourceImage, job.Instruction, report)
	if err != nil {
		return domain.PromptText{}, err
	}
	p, err := domain.NewPromptText(text)
	if err != nil {
		return domain.PromptText{}, domain.ResponseError("the assistant returned an empty prompt", err)
	}
	return p, nil
}

// DirectGenerate skips the analysis and generates from the user's prompt.
type DirectGenerate struct{}

func (DirectGenerate) Name() string { return config.StrategyDirectGenerate }

func (DirectGenerate) Description() string { return "generate images directly from a given prompt" }

func (DirectGenerate) Validate(job Job) error {
	_, err := domain.NewPromptText(job.Prompt)
	return err
}

func (DirectGenerate) Prepare(_ context.Context, _ Backend, job Job, _ domain.PhaseFunc) (domain.PromptText, error) {
	return domain.NewPromptText(job.Prompt)
}

var strategies = map[string]Strategy{
	config.StrategyAnalyzeAndGenerate: AnalyzeAndGenerate{},
	config.StrategyDirectGenerate:     DirectGenerate{},
}

// StrategyFor looks up a strategy by name.
func StrategyFor(name string) (Strategy, error) {
	s, ok := strategies[name]
	if !ok {
		return nil, domain.ValidationError(fmt.Sprintf("unknown strategy %q", name))
	}
	return s, nil
}

// StrategyNames lists the registered strategies, sorted.
func StrategyNames() []string {
	names := make([]string, 0, len(strategies))
	for n := range strategies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
