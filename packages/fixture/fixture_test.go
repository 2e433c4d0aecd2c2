package fixture

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const validState = `{
  "cookies": [
    {"name": "customJwtCookie", "value": "abc", "domain": ".example.test", "path": "/", "expires": 1900000000.5, "httpOnly": true, "secure": true, "sameSite": "Lax"},
    {"name": "other", "value": "x", "domain": "elsewhere.test", "path": "/", "expires": -1}
  ],
  "origins": [
    {"origin": "https://admin.example.test", "localStorage": [{"name": "lang", "value": "et"}]}
  ]
}`

func writeState(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "user.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	state, err := Load(writeState(t, validState))
	require.NoError(t, err)

	require.Len(t, state.Cookies, 2)
	assert.Equal(t, "customJwtCookie", state.Cookies[0].Name)
	assert.Equal(t, int64(1900000000), state.Cookies[0].Expires.Unix())
	assert.True(t, state.Cookies[1].Expires.IsZero())

	origin, ok := state.OriginFor("https://admin.example.test/chat/history")
	require.True(t, ok)
	assert.Equal(t, "et", origin.LocalStorage["lang"])
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"not json", "{cookies", ErrInvalid},
		{"missing origins", `{"cookies": []}`, ErrInvalid},
		{"cookie without domain", `{"cookies": [{"name": "a", "value": "b", "path": "/", "expires": -1}], "origins": []}`, ErrInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeState(t, tt.content))
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorIs(t, err, ErrMissing)
}

func TestCookie_MatchesHost(t *testing.T) {
	assert.True(t, Cookie{Domain: ".example.test"}.MatchesHost("admin.example.test"))
	assert.True(t, Cookie{Domain: ".example.test"}.MatchesHost("example.test"))
	assert.False(t, Cookie{Domain: ".example.test"}.MatchesHost("badexample.test"))
	assert.True(t, Cookie{Domain: "admin.example.test"}.MatchesHost("ADMIN.example.test"))
	assert.False(t, Cookie{Domain: "admin.example.test"}.MatchesHost("example.test"))
}

func TestState_Check(t *testing.T) {
	state, err := Parse([]byte(validState))
	require.NoError(t, err)

	assert.NoError(t, state.Check("https://admin.example.test", now))
	assert.NoError(t, state.Check("", now))
	assert.ErrorIs(t, state.Check("https://unrelated.test", now), ErrNoSession)

	late := time.Unix(1900000001, 0)
	assert.NoError(t, state.Check("https://admin.example.test", late), "origin storage still counts")

	state.Origins = nil
	assert.ErrorIs(t, state.Check("https://admin.example.test", late), ErrExpired)

	// session cookies never expire
	assert.NoError(t, state.Check("https://elsewhere.test", late))
}

func TestCheck(t *testing.T) {
	path := writeState(t, validState)
	state, err := Check(path, "https://admin.example.test", now)
	require.NoError(t, err)
	assert.Equal(t, path, state.Path)

	_, err = Check(path, "https://unrelated.test", now)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.Contains(t, err.Error(), path)
}
