package browser

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/playwright-community/playwright-go"
)

// LaunchOptions configures the shared browser process and the device every
// session emulates.
type LaunchOptions struct {
	Browser           string // chromium, firefox or webkit
	Channel           string
	Headless          bool
	SlowMo            time.Duration
	Device            string // playwright device descriptor name, e.g. "Desktop Chrome"
	ViewportWidth     int
	ViewportHeight    int
	IgnoreHTTPSErrors bool
	Locale            string
	// SkipInstall assumes the driver and browsers are already present.
	SkipInstall bool
}

// PlaywrightLauncher drives a real browser through playwright-go.
type PlaywrightLauncher struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	device  *playwright.DeviceDescriptor
	opts    LaunchOptions
}

// NewPlaywrightLauncher installs the driver if needed, starts playwright and
// launches the configured browser.
func NewPlaywrightLauncher(opts LaunchOptions) (*PlaywrightLauncher, error) {
	if opts.Browser == "" {
		opts.Browser = "chromium"
	}
	runOpts := &playwright.RunOptions{Browsers: []string{opts.Browser}}

	if !opts.SkipInstall && os.Getenv("PLAYWRIGHT_PREINSTALLED") != "1" {
		if err := playwright.Install(runOpts); err != nil {
			return nil, fmt.Errorf("could not install playwright browsers: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}

	var browserType playwright.BrowserType
	switch opts.Browser {
	case "chromium":
		browserType = pw.Chromium
	case "firefox":
		browserType = pw.Firefox
	case "webkit":
		browserType = pw.WebKit
	default:
		_ = pw.Stop()
		return nil, fmt.Errorf("unknown browser %q", opts.Browser)
	}

	launch := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		SlowMo:   playwright.Float(float64(opts.SlowMo.Milliseconds())),
	}
	if opts.Channel != "" {
		launch.Channel = playwright.String(opts.Channel)
	}
	b, err := browserType.Launch(launch)
	if err != nil {
		_ = pw.Stop()
		return nil, fmt.Errorf("could not launch %s: %w", opts.Browser, err)
	}

	l := &PlaywrightLauncher{pw: pw, browser: b, opts: opts}
	if opts.Device != "" {
		device, ok := pw.Devices[opts.Device]
		if !ok {
			_ = l.Close()
			return nil, fmt.Errorf("unknown device %q", opts.Device)
		}
		l.device = device
	}
	return l, nil
}

func (l *PlaywrightLauncher) contextOptions(opts SessionOptions) playwright.BrowserNewContextOptions {
	ctxOpts := playwright.BrowserNewContextOptions{}
	if d := l.device; d != nil {
		ctxOpts.UserAgent = playwright.String(d.UserAgent)
		ctxOpts.Viewport = d.Viewport
		ctxOpts.DeviceScaleFactor = playwright.Float(d.DeviceScaleFactor)
		ctxOpts.IsMobile = playwright.Bool(d.IsMobile)
		ctxOpts.HasTouch = playwright.Bool(d.HasTouch)
	}
	if l.opts.ViewportWidth > 0 && l.opts.ViewportHeight > 0 {
		ctxOpts.Viewport = &playwright.Size{Width: l.opts.ViewportWidth, Height: l.opts.ViewportHeight}
	}
	if l.opts.IgnoreHTTPSErrors {
		ctxOpts.IgnoreHttpsErrors = playwright.Bool(true)
	}
	if l.opts.Locale != "" {
		ctxOpts.Locale = playwright.String(l.opts.Locale)
	}
	if opts.BaseURL != "" {
		ctxOpts.BaseURL = playwright.String(opts.BaseURL)
	}
	if opts.StorageState != "" {
		ctxOpts.StorageStatePath = playwright.String(opts.StorageState)
	}
	if opts.RecordVideo {
		ctxOpts.RecordVideo = &playwright.RecordVideo{Dir: opts.ArtifactDir}
	}
	return ctxOpts
}

// NewSession opens a fresh browser context and page.
func (l *PlaywrightLauncher) NewSession(opts SessionOptions) (Session, error) {
	if (opts.RecordVideo || opts.RecordTrace) && opts.ArtifactDir != "" {
		if err := os.MkdirAll(opts.ArtifactDir, 0755); err != nil {
			return nil, fmt.Errorf("creating artifact dir: %w", err)
		}
	}

	bctx, err := l.browser.NewContext(l.contextOptions(opts))
	if err != nil {
		return nil, fmt.Errorf("could not create context: %w", err)
	}

	s := &playwrightSession{ctx: bctx, dir: opts.ArtifactDir, video: opts.RecordVideo}
	if opts.RecordTrace {
		err := bctx.Tracing().Start(playwright.TracingStartOptions{
			Screenshots: playwright.Bool(true),
			Snapshots:   playwright.Bool(true),
			Sources:     playwright.Bool(true),
		})
		if err != nil {
			_ = bctx.Close()
			return nil, fmt.Errorf("could not start tracing: %w", err)
		}
		s.tracing = true
	}

	page, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		return nil, fmt.Errorf("could not create page: %w", err)
	}
	if opts.ActionTimeout > 0 {
		page.SetDefaultTimeout(ms(opts.ActionTimeout))
	}
	s.page = &playwrightPage{page: page}
	return s, nil
}

// Close shuts the browser and the playwright driver down.
func (l *PlaywrightLauncher) Close() error {
	var errs []error
	if l.browser != nil {
		errs = append(errs, l.browser.Close())
	}
	if l.pw != nil {
		errs = append(errs, l.pw.Stop())
	}
	return errors.Join(errs...)
}

type playwrightSession struct {
	ctx     playwright.BrowserContext
	page    *playwrightPage
	dir     string
	video   bool
	tracing bool
}

func (s *playwrightSession) Page() Page {
	return s.page
}

func (s *playwrightSession) Close(keep Keep) (Artifacts, error) {
	var art Artifacts
	var errs []error

	if s.tracing {
		if keep.Trace {
			path := filepath.Join(s.dir, "trace.zip")
			if err := s.ctx.Tracing().Stop(path); err != nil {
				errs = append(errs, fmt.Errorf("saving trace: %w", err))
			} else {
				art.Trace = path
			}
		} else if err := s.ctx.Tracing().Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stopping trace: %w", err))
		}
	}

	// the recording is only complete once the context is closed
	var recorded string
	if s.video {
		if v := s.page.page.Video(); v != nil {
			recorded, _ = v.Path()
		}
	}
	if err := s.ctx.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing context: %w", err))
	}

	if recorded != "" {
		if keep.Video {
			dst := filepath.Join(s.dir, "video.webm")
			if err := os.Rename(recorded, dst); err != nil {
				errs = append(errs, fmt.Errorf("saving video: %w", err))
			} else {
				art.Video = dst
			}
		} else {
			_ = os.Remove(recorded)
		}
	}

	return art, errors.Join(errs...)
}

type playwrightPage struct {
	page playwright.Page
}

func (p *playwrightPage) Goto(url string, timeout time.Duration) error {
	opts := playwright.PageGotoOptions{}
	if timeout > 0 {
		opts.Timeout = playwright.Float(ms(timeout))
	}
	_, err := p.page.Goto(url, opts)
	if err != nil && strings.Contains(err.Error(), "ERR_TOO_MANY_REDIRECTS") {
		return fmt.Errorf("redirect loop navigating to %s (is the session state still valid?): %w", url, err)
	}
	return translate(err)
}

func (p *playwrightPage) URL() string {
	return p.page.URL()
}

func (p *playwrightPage) Title() (string, error) {
	title, err := p.page.Title()
	return title, translate(err)
}

func (p *playwrightPage) WaitForLoadState(state string, timeout time.Duration) error {
	opts := playwright.PageWaitForLoadStateOptions{}
	switch state {
	case LoadStateLoad:
		opts.State = playwright.LoadStateLoad
	case LoadStateDOMContentLoaded:
		opts.State = playwright.LoadStateDomcontentloaded
	case LoadStateNetworkIdle, "":
		opts.State = playwright.LoadStateNetworkidle
	default:
		return fmt.Errorf("unknown load state %q", state)
	}
	if timeout > 0 {
		opts.Timeout = playwright.Float(ms(timeout))
	}
	return translate(p.page.WaitForLoadState(opts))
}

func (p *playwrightPage) Locator(selector string) Locator {
	return &playwrightLocator{loc: p.page.Locator(selector)}
}

func (p *playwrightPage) Screenshot(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	_, err := p.page.Screenshot(playwright.PageScreenshotOptions{
		Path:     playwright.String(path),
		FullPage: playwright.Bool(true),
	})
	return translate(err)
}

type playwrightLocator struct {
	loc playwright.Locator
}

func timeoutOpt(d time.Duration) *float64 {
	if d <= 0 {
		return nil
	}
	return playwright.Float(ms(d))
}

func (l *playwrightLocator) Click(opts ClickOptions) error {
	clickOpts := playwright.LocatorClickOptions{Timeout: timeoutOpt(opts.Timeout)}
	if opts.ClickCount > 1 {
		clickOpts.ClickCount = playwright.Int(opts.ClickCount)
	}
	return translate(l.loc.Click(clickOpts))
}

func (l *playwrightLocator) Fill(value string, timeout time.Duration) error {
	return translate(l.loc.Fill(value, playwright.LocatorFillOptions{Timeout: timeoutOpt(timeout)}))
}

func (l *playwrightLocator) Check(timeout time.Duration) error {
	return translate(l.loc.Check(playwright.LocatorCheckOptions{Timeout: timeoutOpt(timeout)}))
}

func (l *playwrightLocator) Uncheck(timeout time.Duration) error {
	return translate(l.loc.Uncheck(playwright.LocatorUncheckOptions{Timeout: timeoutOpt(timeout)}))
}

func (l *playwrightLocator) Blur(timeout time.Duration) error {
	return translate(l.loc.Blur(playwright.LocatorBlurOptions{Timeout: timeoutOpt(timeout)}))
}

func (l *playwrightLocator) WaitFor(state string, timeout time.Duration) error {
	opts := playwright.LocatorWaitForOptions{Timeout: timeoutOpt(timeout)}
	switch state {
	case StateVisible, "":
		opts.State = playwright.WaitForSelectorStateVisible
	case StateHidden:
		opts.State = playwright.WaitForSelectorStateHidden
	case StateAttached:
		opts.State = playwright.WaitForSelectorStateAttached
	case StateDetached:
		opts.State = playwright.WaitForSelectorStateDetached
	default:
		return fmt.Errorf("unknown element state %q", state)
	}
	return translate(l.loc.WaitFor(opts))
}

func (l *playwrightLocator) Count() (int, error) {
	n, err := l.loc.Count()
	return n, translate(err)
}

func (l *playwrightLocator) IsVisible() (bool, error) {
	v, err := l.loc.IsVisible()
	return v, translate(err)
}

func (l *playwrightLocator) IsChecked() (bool, error) {
	v, err := l.loc.IsChecked()
	return v, translate(err)
}

func (l *playwrightLocator) InputValue() (string, error) {
	v, err := l.loc.InputValue()
	return v, translate(err)
}

func (l *playwrightLocator) TextContent() (string, error) {
	v, err := l.loc.TextContent()
	return v, translate(err)
}

func (l *playwrightLocator) InnerText() (string, error) {
	v, err := l.loc.InnerText()
	return v, translate(err)
}

func (l *playwrightLocator) GetAttribute(name string) (string, error) {
	v, err := l.loc.GetAttribute(name)
	return v, translate(err)
}

func (l *playwrightLocator) ComputedStyle(property string) (string, error) {
	v, err := l.loc.Evaluate("(el, prop) => getComputedStyle(el).getPropertyValue(prop)", property)
	if err != nil {
		return "", translate(err)
	}
	s, _ := v.(string)
	return s, nil
}

func (l *playwrightLocator) Evaluate(expression string, arg any) (any, error) {
	v, err := l.loc.Evaluate(expression, arg)
	return v, translate(err)
}

// translate maps playwright failures onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if strings.Contains(err.Error(), "strict mode violation") {
		return fmt.Errorf("%w: %v", ErrStrictMode, err)
	}
	return err
}

func ms(d time.Duration) float64 {
	return float64(d.Milliseconds())
}
