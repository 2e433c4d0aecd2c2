// Package fakebrowser is an in-memory browser.Launcher for unit tests.
//
// Pages hold a flat DOM keyed by selector. A selector is looked up with its
// nth=N segments removed and the last nth index then picks one match, so
// ".card__body input >> nth=1" resolves to the second element registered under
// ".card__body input". Behaviour is attached through element hooks.
package fakebrowser

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/browser"
)

// Browser implements browser.Launcher. Setup builds the DOM of every new page.
type Browser struct {
	Setup func(p *Page)
	// LaunchErr makes NewSession fail.
	LaunchErr error

	mu        sync.Mutex
	sessions  []*Session
	active    int
	maxActive int
	closed    bool
}

func New(setup func(p *Page)) *Browser {
	return &Browser{Setup: setup}
}

func (b *Browser) NewSession(opts browser.SessionOptions) (browser.Session, error) {
	if b.LaunchErr != nil {
		return nil, b.LaunchErr
	}
	p := &Page{baseURL: opts.BaseURL, elements: make(map[string][]*Element)}
	if b.Setup != nil {
		b.Setup(p)
	}
	s := &Session{browser: b, page: p, opts: opts}

	b.mu.Lock()
	b.sessions = append(b.sessions, s)
	b.active++
	if b.active > b.maxActive {
		b.maxActive = b.active
	}
	b.mu.Unlock()
	return s, nil
}

func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// Sessions returns every session opened so far.
func (b *Browser) Sessions() []*Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Session(nil), b.sessions...)
}

// MaxActive returns the highest number of sessions open at the same time.
func (b *Browser) MaxActive() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.maxActive
}

func (b *Browser) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

type Session struct {
	browser *Browser
	page    *Page
	opts    browser.SessionOptions
	closed  bool
}

func (s *Session) Page() browser.Page {
	return s.page
}

// FakePage exposes the concrete page for assertions in tests.
func (s *Session) FakePage() *Page {
	return s.page
}

func (s *Session) Options() browser.SessionOptions {
	return s.opts
}

func (s *Session) Closed() bool {
	s.browser.mu.Lock()
	defer s.browser.mu.Unlock()
	return s.closed
}

// Close writes placeholder recordings for the kept artifacts.
func (s *Session) Close(keep browser.Keep) (browser.Artifacts, error) {
	var art browser.Artifacts
	if s.opts.RecordVideo && keep.Video {
		path := filepath.Join(s.opts.ArtifactDir, "video.webm")
		if err := writeFile(path, "webm"); err != nil {
			return art, err
		}
		art.Video = path
	}
	if s.opts.RecordTrace && keep.Trace {
		path := filepath.Join(s.opts.ArtifactDir, "trace.zip")
		if err := writeFile(path, "zip"); err != nil {
			return art, err
		}
		art.Trace = path
	}

	s.browser.mu.Lock()
	if !s.closed {
		s.closed = true
		s.browser.active--
	}
	s.browser.mu.Unlock()
	return art, nil
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0644)
}

// Element is one DOM node. Hooks run after the action has been applied.
type Element struct {
	Value   string
	Text    string
	Inner   string // innerText, Text when empty
	Visible bool
	Checked bool
	Attrs   map[string]string
	Styles  map[string]string

	OnClick func(p *Page, el *Element)
	OnFill  func(p *Page, el *Element)
	OnBlur  func(p *Page, el *Element)
	OnCheck func(p *Page, el *Element)
}

type Page struct {
	// OnGoto runs after the URL changed; it may rebuild the DOM or redirect.
	OnGoto func(p *Page, url string) error
	// Eval answers Locator.Evaluate.
	Eval func(el *Element, expression string, arg any) (any, error)
	// GotoErr makes Goto fail.
	GotoErr error

	mu          sync.Mutex
	baseURL     string
	url         string
	title       string
	elements    map[string][]*Element
	loadStates  []string
	screenshots []string
}

// Add registers elements under selector, appending to existing matches.
func (p *Page) Add(selector string, els ...*Element) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.elements[selector] = append(p.elements[selector], els...)
}

// Remove drops every element registered under selector.
func (p *Page) Remove(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.elements, selector)
}

// Element returns the i-th element registered under selector, or nil.
func (p *Page) Element(selector string, i int) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	els := p.elements[selector]
	if i < 0 || i >= len(els) {
		return nil
	}
	return els[i]
}

// Update runs fn under the page lock, for mutations from other goroutines.
func (p *Page) Update(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn()
}

func (p *Page) SetURL(u string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = u
}

func (p *Page) SetTitle(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.title = title
}

func (p *Page) LoadStates() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.loadStates...)
}

func (p *Page) Screenshots() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.screenshots...)
}

func (p *Page) Goto(target string, _ time.Duration) error {
	if p.GotoErr != nil {
		return p.GotoErr
	}
	resolved := target
	if p.baseURL != "" {
		base, err := url.Parse(p.baseURL)
		if err != nil {
			return err
		}
		ref, err := url.Parse(target)
		if err != nil {
			return err
		}
		resolved = base.ResolveReference(ref).String()
	}
	p.SetURL(resolved)
	if p.OnGoto != nil {
		return p.OnGoto(p, resolved)
	}
	return nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *Page) Title() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.title, nil
}

func (p *Page) WaitForLoadState(state string, _ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loadStates = append(p.loadStates, state)
	return nil
}

func (p *Page) Locator(selector string) browser.Locator {
	return &Locator{page: p, selector: selector}
}

func (p *Page) Screenshot(path string) error {
	if err := writeFile(path, "png"); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.screenshots = append(p.screenshots, path)
	return nil
}

var nthSegment = regexp.MustCompile(`^nth=(-?\d+)$`)

// resolve returns the elements matched by selector. Caller holds p.mu.
func (p *Page) resolve(selector string) []*Element {
	var parts []string
	nth, hasNth := 0, false
	for _, seg := range strings.Split(selector, ">>") {
		seg = strings.TrimSpace(seg)
		if m := nthSegment.FindStringSubmatch(seg); m != nil {
			nth, _ = strconv.Atoi(m[1])
			hasNth = true
			continue
		}
		parts = append(parts, seg)
	}
	els := p.elements[strings.Join(parts, " >> ")]
	if !hasNth {
		return els
	}
	if nth < 0 {
		nth += len(els)
	}
	if nth < 0 || nth >= len(els) {
		return nil
	}
	return els[nth : nth+1]
}

type Locator struct {
	page     *Page
	selector string
}

// one resolves a single element the way playwright actions do.
func (l *Locator) one() (*Element, error) {
	l.page.mu.Lock()
	defer l.page.mu.Unlock()
	els := l.page.resolve(l.selector)
	switch len(els) {
	case 0:
		return nil, fmt.Errorf("%w: waiting for locator(%q)", browser.ErrTimeout, l.selector)
	case 1:
		return els[0], nil
	default:
		return nil, fmt.Errorf("%w: locator(%q) resolved to %d elements", browser.ErrStrictMode, l.selector, len(els))
	}
}

// actionable also requires visibility, as playwright does before acting.
func (l *Locator) actionable() (*Element, error) {
	el, err := l.one()
	if err != nil {
		return nil, err
	}
	l.page.mu.Lock()
	visible := el.Visible
	l.page.mu.Unlock()
	if !visible {
		return nil, fmt.Errorf("%w: locator(%q) is not visible", browser.ErrTimeout, l.selector)
	}
	return el, nil
}

func (l *Locator) Click(opts browser.ClickOptions) error {
	el, err := l.actionable()
	if err != nil {
		return err
	}
	if el.OnClick != nil {
		el.OnClick(l.page, el)
	}
	return nil
}

func (l *Locator) Fill(value string, _ time.Duration) error {
	el, err := l.actionable()
	if err != nil {
		return err
	}
	l.page.Update(func() { el.Value = value })
	if el.OnFill != nil {
		el.OnFill(l.page, el)
	}
	return nil
}

func (l *Locator) setChecked(checked bool) error {
	el, err := l.actionable()
	if err != nil {
		return err
	}
	l.page.Update(func() { el.Checked = checked })
	if el.OnCheck != nil {
		el.OnCheck(l.page, el)
	}
	return nil
}

func (l *Locator) Check(_ time.Duration) error {
	return l.setChecked(true)
}

func (l *Locator) Uncheck(_ time.Duration) error {
	return l.setChecked(false)
}

func (l *Locator) Blur(_ time.Duration) error {
	el, err := l.one()
	if err != nil {
		return err
	}
	if el.OnBlur != nil {
		el.OnBlur(l.page, el)
	}
	return nil
}

func (l *Locator) stateHolds(state string) bool {
	l.page.mu.Lock()
	defer l.page.mu.Unlock()
	els := l.page.resolve(l.selector)
	switch state {
	case browser.StateAttached:
		return len(els) > 0
	case browser.StateDetached:
		return len(els) == 0
	case browser.StateHidden:
		return len(els) == 0 || (len(els) == 1 && !els[0].Visible)
	default:
		return len(els) == 1 && els[0].Visible
	}
}

func (l *Locator) WaitFor(state string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	deadline := time.Now().Add(timeout)
	for {
		if l.stateHolds(state) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: waiting for locator(%q) to be %s", browser.ErrTimeout, l.selector, state)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func (l *Locator) Count() (int, error) {
	l.page.mu.Lock()
	defer l.page.mu.Unlock()
	return len(l.page.resolve(l.selector)), nil
}

// read resolves one element and reads from it under the page lock.
func read[T any](l *Locator, fn func(el *Element) T) (T, error) {
	var zero T
	el, err := l.one()
	if err != nil {
		return zero, err
	}
	l.page.mu.Lock()
	defer l.page.mu.Unlock()
	return fn(el), nil
}

func (l *Locator) IsVisible() (bool, error) {
	n, _ := l.Count()
	if n == 0 {
		return false, nil
	}
	return read(l, func(el *Element) bool { return el.Visible })
}

func (l *Locator) IsChecked() (bool, error) {
	return read(l, func(el *Element) bool { return el.Checked })
}

func (l *Locator) InputValue() (string, error) {
	return read(l, func(el *Element) string { return el.Value })
}

func (l *Locator) TextContent() (string, error) {
	return read(l, func(el *Element) string { return el.Text })
}

func (l *Locator) InnerText() (string, error) {
	return read(l, func(el *Element) string {
		if el.Inner != "" {
			return el.Inner
		}
		return el.Text
	})
}

func (l *Locator) GetAttribute(name string) (string, error) {
	return read(l, func(el *Element) string { return el.Attrs[name] })
}

func (l *Locator) ComputedStyle(property string) (string, error) {
	return read(l, func(el *Element) string { return el.Styles[property] })
}

func (l *Locator) Evaluate(expression string, arg any) (any, error) {
	el, err := l.one()
	if err != nil {
		return nil, err
	}
	if l.page.Eval == nil {
		return nil, fmt.Errorf("fakebrowser: no evaluator for %q", expression)
	}
	return l.page.Eval(el, expression, arg)
}
