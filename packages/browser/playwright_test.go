package browser

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))

	err := translate(fmt.Errorf("locator.click: %w", playwright.ErrTimeout))
	assert.ErrorIs(t, err, ErrTimeout)

	err = translate(errors.New("strict mode violation: locator('input') resolved to 2 elements"))
	assert.ErrorIs(t, err, ErrStrictMode)

	other := errors.New("net::ERR_CONNECTION_REFUSED")
	assert.Same(t, other, translate(other))
}

func TestTimeoutOpt(t *testing.T) {
	assert.Nil(t, timeoutOpt(0))
	require.NotNil(t, timeoutOpt(1500*time.Millisecond))
	assert.Equal(t, 1500.0, *timeoutOpt(1500 * time.Millisecond))
}

func TestContextOptions(t *testing.T) {
	l := &PlaywrightLauncher{
		device: &playwright.DeviceDescriptor{
			UserAgent:         "Mozilla/5.0 test",
			Viewport:          &playwright.Size{Width: 1280, Height: 720},
			DeviceScaleFactor: 1,
		},
		opts: LaunchOptions{Locale: "et-EE", IgnoreHTTPSErrors: true},
	}

	opts := l.contextOptions(SessionOptions{
		BaseURL:      "https://admin.example.test",
		StorageState: "tests/.auth/user.json",
		ArtifactDir:  "test-results/a",
		RecordVideo:  true,
	})

	require.NotNil(t, opts.BaseURL)
	assert.Equal(t, "https://admin.example.test", *opts.BaseURL)
	require.NotNil(t, opts.StorageStatePath)
	assert.Equal(t, "tests/.auth/user.json", *opts.StorageStatePath)
	require.NotNil(t, opts.Viewport)
	assert.Equal(t, 1280, opts.Viewport.Width)
	assert.Equal(t, "Mozilla/5.0 test", *opts.UserAgent)
	assert.Equal(t, "et-EE", *opts.Locale)
	assert.True(t, *opts.IgnoreHttpsErrors)
	require.NotNil(t, opts.RecordVideo)
	assert.Equal(t, "test-results/a", opts.RecordVideo.Dir)

	l.opts.ViewportWidth, l.opts.ViewportHeight = 390, 844
	opts = l.contextOptions(SessionOptions{})
	assert.Equal(t, 390, opts.Viewport.Width)
	assert.Nil(t, opts.BaseURL)
	assert.Nil(t, opts.StorageStatePath)
	assert.Nil(t, opts.RecordVideo)
}
