package browser

import (
	"errors"
	"time"
)

var (
	// ErrTimeout is returned when an action or wait exceeds its timeout.
	ErrTimeout = errors.New("timeout")
	// ErrNotFound is returned when a locator matches no element.
	ErrNotFound = errors.New("element not found")
	// ErrStrictMode is returned when a single-element operation matches several elements.
	ErrStrictMode = errors.New("strict mode violation")
)

// Load states accepted by Page.WaitForLoadState.
const (
	LoadStateLoad             = "load"
	LoadStateDOMContentLoaded = "domcontentloaded"
	LoadStateNetworkIdle      = "networkidle"
)

// Element states accepted by Locator.WaitFor.
const (
	StateVisible  = "visible"
	StateHidden   = "hidden"
	StateAttached = "attached"
	StateDetached = "detached"
)

// Launcher starts isolated browser sessions sharing one browser process.
type Launcher interface {
	NewSession(opts SessionOptions) (Session, error)
	Close() error
}

type SessionOptions struct {
	BaseURL       string
	StorageState  string // playwright storage-state JSON, empty for a clean profile
	ArtifactDir   string // video and trace files are written here
	RecordVideo   bool
	RecordTrace   bool
	ActionTimeout time.Duration
}

// Session is one isolated browser context with a single page.
type Session interface {
	Page() Page
	// Close ends the session. Recordings not selected by keep are discarded.
	Close(keep Keep) (Artifacts, error)
}

// Keep selects which recordings survive Session.Close.
type Keep struct {
	Video bool
	Trace bool
}

// Artifacts holds the paths of the recordings kept by Session.Close.
type Artifacts struct {
	Video string
	Trace string
}

type Page interface {
	Goto(url string, timeout time.Duration) error
	URL() string
	Title() (string, error)
	WaitForLoadState(state string, timeout time.Duration) error
	Locator(selector string) Locator
	Screenshot(path string) error
}

type ClickOptions struct {
	ClickCount int
	Timeout    time.Duration
}

// Locator addresses elements with a Playwright selector, including
// ">>" chains and nth=N. Actions and single-element reads fail with
// ErrStrictMode when the selector matches more than one element.
type Locator interface {
	Click(opts ClickOptions) error
	Fill(value string, timeout time.Duration) error
	Check(timeout time.Duration) error
	Uncheck(timeout time.Duration) error
	Blur(timeout time.Duration) error
	WaitFor(state string, timeout time.Duration) error

	Count() (int, error)
	IsVisible() (bool, error)
	IsChecked() (bool, error)
	InputValue() (string, error)
	TextContent() (string, error)
	InnerText() (string, error)
	GetAttribute(name string) (string, error)
	ComputedStyle(property string) (string, error)
	Evaluate(expression string, arg any) (any, error)
}
