package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Snapshot renders an HTML report to a PNG using a headless browser, so a
// monitor alert can attach a picture of the report instead of a link into a
// filesystem the recipient cannot reach.
func Snapshot(ctx context.Context, reportPath, pngPath string) error {
	abs, err := filepath.Abs(reportPath)
	if err != nil {
		return fmt.Errorf("resolving report path: %w", err)
	}
	if _, err := os.Stat(abs); err != nil {
		return fmt.Errorf("reading report: %w", err)
	}

	l := launcher.New().Headless(true)
	url, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launching browser: %w", err)
	}
	defer l.Cleanup()

	browser := rod.New().ControlURL(url).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connecting to browser: %w", err)
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{URL: "file://" + abs})
	if err != nil {
		return fmt.Errorf("opening report page: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("loading report page: %w", err)
	}

	png, err := page.Screenshot(true, nil)
	if err != nil {
		return fmt.Errorf("capturing report: %w", err)
	}
	if err := os.WriteFile(pngPath, png, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}
