package fakebrowser

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abdul-hamid-achik/pagespec/packages/browser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPage(t *testing.T, setup func(p *Page)) (*Browser, browser.Page) {
	t.Helper()
	b := New(setup)
	s, err := b.NewSession(browser.SessionOptions{BaseURL: "https://admin.example.test"})
	require.NoError(t, err)
	return b, s.Page()
}

func TestLocator_Nth(t *testing.T) {
	_, page := newPage(t, func(p *Page) {
		p.Add(".card__body input", &Element{Value: "start", Visible: true}, &Element{Value: "end", Visible: true})
	})

	n, err := page.Locator(".card__body input").Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	v, err := page.Locator(".card__body input >> nth=1").InputValue()
	require.NoError(t, err)
	assert.Equal(t, "end", v)

	v, err = page.Locator(".card__body input >> nth=-1").InputValue()
	require.NoError(t, err)
	assert.Equal(t, "end", v)

	_, err = page.Locator(".card__body input").InputValue()
	assert.ErrorIs(t, err, browser.ErrStrictMode)

	n, _ = page.Locator(".card__body input >> nth=5").Count()
	assert.Equal(t, 0, n)
}

func TestLocator_ChainedNth(t *testing.T) {
	_, page := newPage(t, func(p *Page) {
		p.Add(`.card >> div.select__trigger:has-text("Vali")`, &Element{Text: "Vali", Visible: true})
	})
	text, err := page.Locator(`.card >> nth=0 >> div.select__trigger:has-text("Vali")`).TextContent()
	require.NoError(t, err)
	assert.Equal(t, "Vali", text)
}

func TestLocator_ActionsAndHooks(t *testing.T) {
	_, page := newPage(t, func(p *Page) {
		p.Add("input.date", &Element{
			Visible: true,
			OnBlur: func(p *Page, el *Element) {
				el.Value = ""
				p.Add(".validation-error-message", &Element{Text: "Invalid date format", Visible: true})
			},
		})
		p.Add("input.hidden", &Element{})
	})

	in := page.Locator("input.date")
	require.NoError(t, in.Fill("01.09.12345", time.Second))
	v, _ := in.InputValue()
	assert.Equal(t, "01.09.12345", v)

	require.NoError(t, in.Blur(time.Second))
	require.NoError(t, page.Locator(".validation-error-message").WaitFor(browser.StateVisible, time.Second))
	v, _ = in.InputValue()
	assert.Empty(t, v)

	err := page.Locator("input.hidden").Click(browser.ClickOptions{})
	assert.ErrorIs(t, err, browser.ErrTimeout)
	err = page.Locator("input.missing").Fill("x", time.Second)
	assert.ErrorIs(t, err, browser.ErrTimeout)

	visible, err := page.Locator("input.missing").IsVisible()
	require.NoError(t, err)
	assert.False(t, visible)
}

func TestLocator_WaitForAppears(t *testing.T) {
	b, page := newPage(t, nil)
	fake := b.Sessions()[0].FakePage()

	go func() {
		time.Sleep(30 * time.Millisecond)
		fake.Add(".select__menu", &Element{Visible: true})
	}()
	require.NoError(t, page.Locator(".select__menu").WaitFor(browser.StateVisible, time.Second))

	err := page.Locator(".never").WaitFor(browser.StateVisible, 50*time.Millisecond)
	assert.ErrorIs(t, err, browser.ErrTimeout)
	require.NoError(t, page.Locator(".never").WaitFor(browser.StateDetached, 50*time.Millisecond))
}

func TestPage_GotoAndArtifacts(t *testing.T) {
	dir := t.TempDir()
	b := New(func(p *Page) {
		p.OnGoto = func(p *Page, url string) error {
			p.SetTitle("History")
			return nil
		}
	})
	s, err := b.NewSession(browser.SessionOptions{
		BaseURL:     "https://admin.example.test/",
		ArtifactDir: dir,
		RecordVideo: true,
		RecordTrace: true,
	})
	require.NoError(t, err)

	page := s.Page()
	require.NoError(t, page.Goto("/chat/history", 0))
	assert.Equal(t, "https://admin.example.test/chat/history", page.URL())
	title, _ := page.Title()
	assert.Equal(t, "History", title)

	shot := filepath.Join(dir, "failure.png")
	require.NoError(t, page.Screenshot(shot))
	assert.FileExists(t, shot)

	assert.Equal(t, 1, b.MaxActive())
	art, err := s.Close(browser.Keep{Trace: true})
	require.NoError(t, err)
	assert.Empty(t, art.Video)
	assert.Equal(t, filepath.Join(dir, "trace.zip"), art.Trace)
	_, statErr := os.Stat(filepath.Join(dir, "video.webm"))
	assert.True(t, os.IsNotExist(statErr))
	assert.True(t, b.Sessions()[0].Closed())
}
