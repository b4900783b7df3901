// Package capture acquires full-page screenshots with headless Chrome and
// recompresses them for downstream generation and storage.
package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"

	"github.com/siteroast/siteroast/internal/roast"
)

// Fixed, backend-agnostic user messages. No chromedp detail crosses this
// boundary.
const (
	MsgUnresolvable = "the site could not be reached - does it exist?"
	MsgTimeout      = "the site took too long to load"
	MsgBlocked      = "the site refused to be captured"
)

// Config controls the behavior of the capturer.
type Config struct {
	UserAgent   string
	NavTimeout  time.Duration
	SettleDelay time.Duration
	MaxWidth    int
	JPEGQuality int
}

// Capturer implements roast.Capturer using chromedp and headless Chrome.
type Capturer struct {
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc
}

// disable CSS animations and transitions so the screenshot is stable.
const freezeAnimationsCSS = `
(() => {
  const style = document.createElement('style');
  style.textContent = '*, *::before, *::after {' +
    ' animation: none !important;' +
    ' transition: none !important;' +
    ' scroll-behavior: auto !important; }';
  document.head.appendChild(style);
})();`

// New creates a chromedp-backed capturer. The exec allocator is shared
// across captures; each capture gets its own browser context.
func New(cfg Config) (*Capturer, error) {
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 30 * time.Second
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 500 * time.Millisecond
	}
	if cfg.MaxWidth <= 0 {
		cfg.MaxWidth = 1440
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 80
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Capturer{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context.
func (c *Capturer) Close() {
	c.allocCancel()
}

// Capture navigates to url, takes a full-page screenshot, and returns it
// recompressed as JPEG. Errors are classified into exactly three kinds:
// unresolvable, timeout, or blocked.
func (c *Capturer) Capture(ctx context.Context, url string) ([]byte, error) {
	taskCtx, taskCancel := chromedp.NewContext(c.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, c.cfg.NavTimeout)
	defer cancel()

	var raw []byte
	actions := []chromedp.Action{
		c.setupAction(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(freezeAnimationsCSS, nil),
		chromedp.Sleep(c.cfg.SettleDelay),
		chromedp.FullScreenshot(&raw, 100),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return nil, classify(err)
	}

	compressed, err := Compress(raw, c.cfg.MaxWidth, c.cfg.JPEGQuality)
	if err != nil {
		return nil, roast.NewFailure(roast.KindCaptureBlocked, MsgBlocked, fmt.Errorf("recompress screenshot: %w", err))
	}
	return compressed, nil
}

func (c *Capturer) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if c.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(c.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

// classify folds backend-specific errors into the three capture kinds.
func classify(err error) *roast.Failure {
	msg := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "ERR_TIMED_OUT"):
		return roast.NewFailure(roast.KindCaptureTimeout, MsgTimeout, err)
	case strings.Contains(msg, "ERR_NAME_NOT_RESOLVED") || strings.Contains(msg, "no such host"):
		return roast.NewFailure(roast.KindCaptureUnresolvable, MsgUnresolvable, err)
	default:
		// Offline, automation blocking, protocol errors: all "blocked".
		return roast.NewFailure(roast.KindCaptureBlocked, MsgBlocked, err)
	}
}
