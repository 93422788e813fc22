package workflow

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/xkilldash9x/remixer/internal/domain"
	"github.com/xkilldash9x/remixer/internal/poll"
)

// Reporter receives workflow events. Implementations must not block for long;
// the run waits on them.
type Reporter interface {
	Report(ctx context.Context, ev domain.Event)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context, ev domain.Event)

func (f ReporterFunc) Report(ctx context.Context, ev domain.Event) { f(ctx, ev) }

type NopReporter struct{}

func (NopReporter) Report(context.Context, domain.Event) {}

const separator = "────────────────────────"

var progressSteps = []string{
	"Start browser",
	"Open app",
	"Upload photo",
	"Analyze photo",
	"Generate image",
	"Download image",
}

// stepOf maps a phase onto the step it is working on.
func stepOf(p domain.Phase) int {
	switch p {
	case domain.PhasePending:
		return 0
	case domain.PhaseBrowserReady:
		return 1
	case domain.PhaseNavigated:
		return 2
	case domain.PhaseUploaded, domain.PhasePromptSent, domain.PhaseAwaitingResponse:
		return 3
	case domain.PhasePromptReceived, domain.PhaseToolSelected, domain.PhaseGenPromptSent, domain.PhaseAwaitingGeneration:
		return 4
	case domain.PhaseDownloading, domain.PhaseImageReady:
		return 5
	case domain.PhaseCompleted:
		return len(progressSteps)
	default:
		return -1
	}
}

// Progress is a snapshot rendered by BuildProgress.
type Progress struct {
	Phase   domain.Phase
	Detail  string
	Current int
	Total   int
	Elapsed time.Duration
}

// BuildProgress renders the step list with done, current and pending markers,
// then the image counter and elapsed time.
func BuildProgress(p Progress) string {
	var b strings.Builder
	b.WriteString("remixer: " + p.Phase.Label() + "\n")
	b.WriteString(separator + "\n")

	current := stepOf(p.Phase)
	for i, step := range progressSteps {
		switch {
		case current < 0:
			fmt.Fprintf(&b, "  · %s\n", step)
		case i < current:
			fmt.Fprintf(&b, "  ✔ %s\n", step)
		case i == current:
			fmt.Fprintf(&b, "  ▶ %s...\n", step)
		default:
			fmt.Fprintf(&b, "  · %s\n", step)
		}
	}

	if p.Total > 0 {
		fmt.Fprintf(&b, "\nImages: %d/%d\n", p.Current, p.Total)
	}
	if p.Detail != "" {
		fmt.Fprintf(&b, "\n%s\n", p.Detail)
	}
	if secs := int(p.Elapsed / time.Second); secs > 0 {
		fmt.Fprintf(&b, "\nElapsed: %ds\n", secs)
	}
	return b.String()
}

// FormatResult is the final summary shown to the user. It never includes a
// stack trace.
func FormatResult(r domain.GenerationResult) string {
	var b strings.Builder
	switch {
	case r.Success:
		fmt.Fprintf(&b, "Done: %d/%d image(s) generated\n", len(r.Images), r.Requested)
	default:
		b.WriteString("Failed\n")
	}
	b.WriteString(separator + "\n")

	for i, img := range r.Images {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, img.Path())
	}
	if r.Prompt != "" {
		p, _ := domain.NewPromptText(r.Prompt)
		fmt.Fprintf(&b, "\nPrompt: %s\n", p.Preview(200))
	}
	if r.ErrorMessage != "" {
		if r.Success {
			fmt.Fprintf(&b, "\nStopped early: %s\n", r.ErrorMessage)
		} else {
			fmt.Fprintf(&b, "\nReason: %s\n", r.ErrorMessage)
		}
	}
	fmt.Fprintf(&b, "\nElapsed: %ds\n", r.Seconds())
	return b.String()
}

// TerminalReporter renders progress to a writer at most once per interval.
// Terminal phases and the final result are always written.
type TerminalReporter struct {
	mu      sync.Mutex
	out     io.Writer
	limiter *rate.Limiter
	clock   poll.Clock
	started time.Time
	state   Progress
}

func NewTerminalReporter(out io.Writer, interval time.Duration, clock poll.Clock) *TerminalReporter {
	if clock == nil {
		clock = poll.RealClock()
	}
	return &TerminalReporter{
		out:     out,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		clock:   clock,
	}
}

func (t *TerminalReporter) Report(_ context.Context, ev domain.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	if t.started.IsZero() {
		t.started = ev.At()
		if t.started.IsZero() {
			t.started = now
		}
	}

	force := false
	switch e := ev.(type) {
	case domain.PhaseChanged:
		t.state.Phase, t.state.Detail = e.To, e.Detail
		force = e.To.Terminal()
	case domain.ImageProgress:
		t.state.Current, t.state.Total = e.Current, e.Total
	case domain.Completed:
		fmt.Fprint(t.out, "\n"+FormatResult(e.Result))
		return
	}
	t.state.Elapsed = now.Sub(t.started)

	if !force && !t.limiter.AllowN(now, 1) {
		return
	}
	fmt.Fprint(t.out, "\n"+BuildProgress(t.state))
}
