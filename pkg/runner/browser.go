package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// BrowserConfig configures a BrowserRunner.
type BrowserConfig struct {
	// Timeout bounds one whole suite execution. Zero means DefaultTimeout.
	Timeout time.Duration

	// Headless runs the browser without a display. Default in NewBrowser.
	Headless bool

	// NoSandbox disables the Chrome sandbox, needed in most containers.
	NoSandbox bool

	// Suite is the check list to execute. Zero value means DefaultSuite.
	Suite Suite
}

// DefaultTimeout bounds a suite execution when no timeout is configured.
const DefaultTimeout = 5 * time.Minute

// BrowserRunner drives a headless Chrome via chromedp and executes the
// configured suite checks against the target URL.
type BrowserRunner struct {
	cfg BrowserConfig
}

var _ Runner = (*BrowserRunner)(nil)

// NewBrowser creates a BrowserRunner with defaults applied.
func NewBrowser(cfg BrowserConfig) *BrowserRunner {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if len(cfg.Suite.Checks) == 0 {
		cfg.Suite = DefaultSuite()
	}
	return &BrowserRunner{cfg: cfg}
}

// Run executes the suite. A timeout or failing checks produce a FAILED
// result; only a browser that cannot start at all produces ERROR. Run never
// returns an error alongside a nil result unless ctx was already dead.
func (r *BrowserRunner) Run(ctx context.Context, url string) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	result := &Result{Status: StatusCompleted}
	result.Logs = append(result.Logs, fmt.Sprintf("Starting tests for URL: %s", url))

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", r.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
	)
	if r.cfg.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(runCtx, opts...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	// Starting the browser is the one unrecoverable setup step.
	if err := chromedp.Run(browserCtx,
		chromedp.EmulateViewport(int64(r.cfg.Suite.Viewport.Width), int64(r.cfg.Suite.Viewport.Height)),
	); err != nil {
		if timedOut(runCtx, err) {
			result.Status = StatusFailed
			result.Logs = append(result.Logs, timeoutLogLine(r.cfg.Timeout))
			return result, nil
		}
		result.Status = StatusError
		result.Logs = append(result.Logs, fmt.Sprintf("Failed to initialize browser: %v", err))
		return result, nil
	}

	for i, check := range r.cfg.Suite.Checks {
		result.Logs = append(result.Logs, fmt.Sprintf("Test %d: %s...", i+1, check.Name))
		result.TestsRun++

		failure, err := r.runCheck(browserCtx, url, check)
		if err != nil {
			if timedOut(runCtx, err) {
				result.Status = StatusFailed
				result.Logs = append(result.Logs, timeoutLogLine(r.cfg.Timeout))
				return result, nil
			}
			// Probe faults count as check failures, not suite errors.
			failure = &Failure{Test: check.Name, Error: err.Error()}
		}

		if failure == nil {
			result.TestsPassed++
			result.Logs = append(result.Logs, fmt.Sprintf("PASS %s", check.Name))
			continue
		}

		result.TestsFailed++
		result.Logs = append(result.Logs, fmt.Sprintf("FAIL %s: %s", check.Name, failure.Error))

		// Best-effort evidence capture; a failing screenshot never fails
		// the check twice.
		var shot []byte
		if err := chromedp.Run(browserCtx, chromedp.CaptureScreenshot(&shot)); err == nil {
			failure.Screenshot = shot
		}

		result.Failures = append(result.Failures, *failure)
	}

	if result.TestsFailed > 0 {
		result.Status = StatusFailed
		result.Logs = append(result.Logs,
			fmt.Sprintf("Tests completed: %d/%d passed", result.TestsPassed, result.TestsRun))
	} else {
		result.Logs = append(result.Logs,
			fmt.Sprintf("All tests passed: %d/%d", result.TestsPassed, result.TestsRun))
	}

	return result, nil
}

// runCheck returns a non-nil Failure when the check fails, or an error when
// the probe itself faulted.
func (r *BrowserRunner) runCheck(ctx context.Context, url string, check Check) (*Failure, error) {
	switch check.Kind {
	case CheckNavigate:
		resp, err := chromedp.RunResponse(ctx, chromedp.Navigate(url))
		if err != nil {
			return &Failure{Test: check.Name, Error: err.Error()}, nil
		}
		if resp != nil && resp.Status >= 400 {
			return &Failure{Test: check.Name, Error: fmt.Sprintf("HTTP %d", resp.Status)}, nil
		}
		return nil, nil

	case CheckTitle:
		var title string
		if err := chromedp.Run(ctx, chromedp.Title(&title)); err != nil {
			return nil, err
		}
		if title == "" {
			return &Failure{Test: check.Name, Error: "Page title is empty or missing"}, nil
		}
		return nil, nil

	case CheckSelector:
		var nodes []*cdp.Node
		err := chromedp.Run(ctx,
			chromedp.Nodes(check.Selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
		if err != nil {
			return nil, err
		}
		if len(nodes) == 0 {
			return &Failure{
				Test:  check.Name,
				Error: fmt.Sprintf("No element matches selector %q", check.Selector),
			}, nil
		}
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown check kind: %s", check.Kind)
	}
}

func timedOut(ctx context.Context, err error) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded)
}

func timeoutLogLine(timeout time.Duration) string {
	return fmt.Sprintf("Test execution timed out after %s", timeout)
}
