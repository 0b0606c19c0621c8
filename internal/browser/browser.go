package browser

import (
	"context"
	"os"
	"os/exec"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// Options configures the Chrome process behind a Session.
type Options struct {
	Headless bool
	ExecPath string
}

// Session owns one headless Chrome process. Tabs opened from it share the
// process; Close tears everything down.
type Session struct {
	browserCtx  context.Context
	cancelAlloc context.CancelFunc
	cancelTab   context.CancelFunc

	startOnce sync.Once
	startErr  error
	closeOnce sync.Once
}

// NewSession prepares a Chrome allocator. The browser itself starts on the
// first tab.
func NewSession(opts Options) *Session {
	execPath := opts.ExecPath
	if execPath == "" {
		execPath = FindChromeBinary()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent(userAgent),
	)
	if execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	zap.L().Debug("browser session prepared", zap.String("chrome", execPath), zap.Bool("headless", opts.Headless))
	return &Session{
		browserCtx:  browserCtx,
		cancelAlloc: cancelAlloc,
		cancelTab:   cancelTab,
	}
}

// Run executes actions in a fresh tab. The tab closes when Run returns or
// ctx is done.
func (s *Session) Run(ctx context.Context, actions ...chromedp.Action) error {
	s.startOnce.Do(func() {
		// An empty run launches the browser so later tabs share it.
		s.startErr = chromedp.Run(s.browserCtx)
	})
	if s.startErr != nil {
		return eris.Wrap(s.startErr, "starting browser")
	}

	tabCtx, cancelTab := chromedp.NewContext(s.browserCtx)
	defer cancelTab()

	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	return chromedp.Run(tabCtx, actions...)
}

// Close shuts down the browser process.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancelTab()
		s.cancelAlloc()
	})
}

// FindChromeBinary locates a Chrome or Chromium binary, preferring
// $CHROME_BIN.
func FindChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	for _, name := range []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	for _, p := range []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
		"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
