// Package popup abstracts the provider consent window. The connect workflow
// never learns how the window was shown; it only polls whether it is closed.
package popup

import (
	"context"
	"sync"
)

// Request describes the window to open.
type Request struct {
	URL    string
	Title  string
	Width  int
	Height int
}

type Window interface {
	// Closed reports whether the user is done with the window.
	Closed() bool
	Close()
}

type Opener interface {
	Open(ctx context.Context, req Request) (Window, error)
}

// ManualWindow is closed by an explicit Close call, typically when the user
// confirms they finished authorizing in the browser.
type ManualWindow struct {
	req    Request
	mu     sync.Mutex
	closed bool
}

func NewManualWindow(req Request) *ManualWindow {
	return &ManualWindow{req: req}
}

func (w *ManualWindow) Request() Request {
	return w.req
}

func (w *ManualWindow) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

func (w *ManualWindow) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}
