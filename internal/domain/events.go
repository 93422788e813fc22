// internal/domain/events.go
package domain

import "time"

// Event is anything reported to the progress collaborator.
type Event interface {
	isEvent()
	At() time.Time
}

type PhaseChanged struct {
	RequestID string
	From      Phase
	To        Phase
	Detail    string
	Time      time.Time
}

type ImageProgress struct {
	RequestID string
	Current   int
	Total     int
	Time      time.Time
}

type Completed struct {
	Result GenerationResult
	Time   time.Time
}

func (PhaseChanged) isEvent()  {}
func (ImageProgress) isEvent() {}
func (Completed) isEvent()     {}

func (e PhaseChanged) At() time.Time  { return e.Time }
func (e ImageProgress) At() time.Time { return e.Time }
func (e Completed) At() time.Time     { return e.Time }
