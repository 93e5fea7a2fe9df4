package popup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/browser"
	"github.com/rs/zerolog/log"
)

// BrowserOpener shows the authorization URL in the system browser, or just
// prints it when launching is disabled. Either way the returned window is a
// ManualWindow handed to OnOpen so the caller can close it on confirmation.
type BrowserOpener struct {
	// Launch starts the browser. Nil disables launching.
	Launch func(url string) error
	// Out receives the URL so it can be copied when no browser is available.
	Out io.Writer
	// OnOpen is invoked with every opened window.
	OnOpen func(*ManualWindow)
}

func NewBrowserOpener(openBrowser bool, out io.Writer, onOpen func(*ManualWindow)) *BrowserOpener {
	o := &BrowserOpener{Out: out, OnOpen: onOpen}
	if openBrowser {
		o.Launch = launchSystemBrowser
	}
	return o
}

func (o *BrowserOpener) Open(ctx context.Context, req Request) (Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.URL) == "" {
		return nil, errors.New("popup: authorization URL is empty")
	}

	if o.Launch != nil {
		if err := o.Launch(req.URL); err != nil {
			// Fall through to printing so the user can still complete the flow.
			log.Warn().Err(err).Str("component", "popup").Msg("browser launch failed")
			if o.Out == nil {
				return nil, fmt.Errorf("open %s: %w", req.Title, err)
			}
		}
	}
	if o.Out != nil {
		fmt.Fprintf(o.Out, "%s: open this URL to continue\n  %s\n", req.Title, req.URL)
	}

	win := NewManualWindow(req)
	if o.OnOpen != nil {
		o.OnOpen(win)
	}
	return win, nil
}

func init() {
	// pkg/browser copies the child's output to ours by default, which would
	// scribble over the TUI.
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard
}

func launchSystemBrowser(url string) error {
	return browser.OpenURL(url)
}
