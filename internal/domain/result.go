// internal/domain/result.go
package domain

import "time"

// GenerationResult is built once per WorkflowRequest when it reaches a terminal phase.
type GenerationResult struct {
	RequestID string
	Success   bool
	Images    []ImageArtifact
	Prompt    string
	Duration  time.Duration
	Requested int
	// ErrorMessage is set on failure, and on partial success when a later image failed.
	ErrorMessage string
	Err          error
}

// Paths returns the artifact paths in production order.
func (r GenerationResult) Paths() []string {
	paths := make([]string, 0, len(r.Images))
	for _, img := range r.Images {
		paths = append(paths, img.Path())
	}
	return paths
}

// Partial reports a successful run that produced fewer images than requested.
func (r GenerationResult) Partial() bool {
	return r.Success && r.Requested > 0 && len(r.Images) < r.Requested
}

func (r GenerationResult) Seconds() int {
	return int(r.Duration / time.Second)
}
