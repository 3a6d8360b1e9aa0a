package preview

import (
	"context"
	"fmt"
	"time"

	"appforge/internal/logging"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// SmokeChecker loads a Running preview in a headless browser and reports
// console errors the page produced while settling. Entirely optional: it is
// only usable when a local Chromium can be resolved.
type SmokeChecker struct {
	browserPath string
}

// NewSmokeChecker resolves a local browser binary. ok is false when none is
// installed; callers skip the check in that case.
func NewSmokeChecker() (*SmokeChecker, bool) {
	path, has := launcher.LookPath()
	if !has {
		logging.PreviewDebug("no local browser found, smoke checks disabled")
		return nil, false
	}
	return &SmokeChecker{browserPath: path}, true
}

// Check navigates to the URL and returns console error messages observed
// while the page settles.
func (s *SmokeChecker) Check(ctx context.Context, url string) ([]string, error) {
	launch := launcher.New().Bin(s.browserPath).Headless(true)
	controlURL, err := launch.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	defer launch.Cleanup()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("open page: %w", err)
	}

	var consoleErrors []string
	wait := page.EachEvent(func(e *proto.RuntimeConsoleAPICalled) {
		if e.Type == proto.RuntimeConsoleAPICalledTypeError {
			consoleErrors = append(consoleErrors, page.MustObjectsToJSON(e.Args).String())
		}
	})
	go wait()

	if err := page.WaitLoad(); err != nil {
		return consoleErrors, fmt.Errorf("page load: %w", err)
	}
	// Give the SPA a moment to mount and surface runtime errors.
	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
	}

	logging.PreviewDebug("smoke check %s: %d console errors", url, len(consoleErrors))
	return consoleErrors, nil
}
