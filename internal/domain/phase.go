// internal/domain/phase.go
package domain

// Phase is one state of a workflow request.
type Phase int

const (
	PhasePending Phase = iota
	PhaseBrowserReady
	PhaseNavigated
	PhaseUploaded
	PhasePromptSent
	PhaseAwaitingResponse
	PhasePromptReceived
	PhaseToolSelected
	PhaseGenPromptSent
	PhaseAwaitingGeneration
	PhaseDownloading
	PhaseImageReady
	PhaseCompleted
	PhaseFailed
)

// PhaseFunc receives phase transitions reported from inside a backend.
type PhaseFunc func(p Phase, detail string)

// Phases lists every phase in declaration order.
func Phases() []Phase {
	return []Phase{
		PhasePending, PhaseBrowserReady, PhaseNavigated, PhaseUploaded, PhasePromptSent,
		PhaseAwaitingResponse, PhasePromptReceived, PhaseToolSelected, PhaseGenPromptSent,
		PhaseAwaitingGeneration, PhaseDownloading, PhaseImageReady, PhaseCompleted, PhaseFailed,
	}
}

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "PENDING"
	case PhaseBrowserReady:
		return "BROWSER_READY"
	case PhaseNavigated:
		return "NAVIGATED"
	case PhaseUploaded:
		return "UPLOADED"
	case PhasePromptSent:
		return "PROMPT_SENT"
	case PhaseAwaitingResponse:
		return "AWAITING_RESPONSE"
	case PhasePromptReceived:
		return "PROMPT_RECEIVED"
	case PhaseToolSelected:
		return "TOOL_SELECTED"
	case PhaseGenPromptSent:
		return "GEN_PROMPT_SENT"
	case PhaseAwaitingGeneration:
		return "AWAITING_GENERATION"
	case PhaseDownloading:
		return "DOWNLOADING"
	case PhaseImageReady:
		return "IMAGE_READY"
	case PhaseCompleted:
		return "COMPLETED"
	case PhaseFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Label is the human readable step name shown in progress output.
func (p Phase) Label() string {
	switch p {
	case PhasePending:
		return "Waiting to start"
	case PhaseBrowserReady:
		return "Starting browser"
	case PhaseNavigated:
		return "Connecting to the app"
	case PhaseUploaded:
		return "Uploading photo"
	case PhasePromptSent:
		return "Sending analysis prompt"
	case PhaseAwaitingResponse:
		return "Waiting for the response"
	case PhasePromptReceived:
		return "Prompt received"
	case PhaseToolSelected:
		return "Selecting image tool"
	case PhaseGenPromptSent:
		return "Sending generation prompt"
	case PhaseAwaitingGeneration:
		return "Generating image"
	case PhaseDownloading:
		return "Downloading image"
	case PhaseImageReady:
		return "Image ready"
	case PhaseCompleted:
		return "Completed"
	case PhaseFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

func (p Phase) Terminal() bool {
	switch p {
	case PhaseCompleted, PhaseFailed:
		return true
	default:
		return false
	}
}

// perImage reports the phases repeated for every requested image.
func (p Phase) perImage() bool {
	switch p {
	case PhaseToolSelected, PhaseGenPromptSent, PhaseAwaitingGeneration, PhaseDownloading, PhaseImageReady:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a request may move from p to next.
// FAILED is reachable from every non-terminal phase. COMPLETED is reachable
// from IMAGE_READY, and from the other per-image phases when a run stops early
// after at least one image was produced. A new image cycle may start from any
// per-image phase, so a run can move past a failed image.
func (p Phase) CanTransition(next Phase) bool {
	if p.Terminal() {
		return false
	}
	if next == PhaseFailed {
		return true
	}
	if next == PhaseCompleted {
		return p.perImage()
	}
	if next == PhaseToolSelected {
		return p == PhasePromptReceived || p.perImage()
	}
	switch p {
	case PhasePending:
		return next == PhaseBrowserReady
	case PhaseBrowserReady:
		return next == PhaseNavigated
	case PhaseNavigated:
		// direct generation skips the upload and analysis phases.
		return next == PhaseUploaded || next == PhasePromptReceived
	case PhaseUploaded:
		return next == PhasePromptSent
	case PhasePromptSent:
		return next == PhaseAwaitingResponse
	case PhaseAwaitingResponse:
		return next == PhasePromptReceived
	case PhasePromptReceived:
		return next == PhaseToolSelected
	case PhaseToolSelected:
		return next == PhaseGenPromptSent
	case PhaseGenPromptSent:
		return next == PhaseAwaitingGeneration
	case PhaseAwaitingGeneration:
		return next == PhaseDownloading
	case PhaseDownloading:
		return next == PhaseImageReady
	case PhaseImageReady:
		return next == PhaseToolSelected
	default:
		return false
	}
}
