package workflow

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrAlreadyRunning rejects a second submission from a requester whose first
// request has not finished.
var ErrAlreadyRunning = errors.New("a request is already in progress for this requester")

// ErrCancelled is returned by Begin when the requester cancelled while still
// queued for the browser.
var ErrCancelled = errors.New("request cancelled before it reached the browser")

type tracked struct {
	requestID string
	abandon   context.CancelCauseFunc
}

// Tracker serializes access to the shared browser and remembers the active
// request of every requester.
type Tracker struct {
	sem *semaphore.Weighted

	mu     sync.Mutex
	active map[string]*tracked
}

func NewTracker() *Tracker {
	return &Tracker{
		sem:    semaphore.NewWeighted(1),
		active: make(map[string]*tracked),
	}
}

// Begin registers requestID for requesterID and waits for the browser. The
// returned release must be called when the run ends.
func (t *Tracker) Begin(ctx context.Context, requesterID, requestID string) (func(), error) {
	t.mu.Lock()
	if _, busy := t.active[requesterID]; busy {
		t.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	waitCtx, abandon := context.WithCancelCause(ctx)
	entry := &tracked{requestID: requestID, abandon: abandon}
	t.active[requesterID] = entry
	t.mu.Unlock()

	if err := t.sem.Acquire(waitCtx, 1); err != nil {
		t.forget(requesterID, entry)
		abandon(nil)
		if errors.Is(context.Cause(waitCtx), ErrCancelled) {
			return nil, ErrCancelled
		}
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			abandon(nil)
			t.sem.Release(1)
			t.forget(requesterID, entry)
		})
	}, nil
}

func (t *Tracker) forget(requesterID string, entry *tracked) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active[requesterID] == entry {
		delete(t.active, requesterID)
	}
}

// Cancel stops tracking the requester's request. A request still queued for
// the browser gives up with ErrCancelled; a browser action in flight is not
// interrupted.
func (t *Tracker) Cancel(requesterID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.active[requesterID]
	if !ok {
		return false
	}
	entry.abandon(ErrCancelled)
	delete(t.active, requesterID)
	return true
}

// Active returns the request id tracked for requesterID.
func (t *Tracker) Active(requesterID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.active[requesterID]
	if !ok {
		return "", false
	}
	return entry.requestID, true
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}
