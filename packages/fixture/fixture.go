package fixture

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed storage_state.schema.json
var schemaJSON []byte

var (
	ErrMissing   = errors.New("session fixture not found")
	ErrInvalid   = errors.New("invalid session fixture")
	ErrNoSession = errors.New("session fixture has no session for host")
	ErrExpired   = errors.New("session fixture expired")
)

type Cookie struct {
	Name   string
	Domain string
	Path   string
	// Expires is zero for session cookies.
	Expires time.Time
}

// Expired reports whether the cookie is past its expiry at now.
func (c Cookie) Expired(now time.Time) bool {
	return !c.Expires.IsZero() && !c.Expires.After(now)
}

// MatchesHost applies cookie domain matching: ".example.test" covers every
// subdomain, a bare domain only itself.
func (c Cookie) MatchesHost(host string) bool {
	domain := strings.ToLower(c.Domain)
	host = strings.ToLower(host)
	if d, ok := strings.CutPrefix(domain, "."); ok {
		return host == d || strings.HasSuffix(host, "."+d)
	}
	return host == domain
}

type Origin struct {
	Origin       string
	LocalStorage map[string]string
}

// State is a loaded Playwright storage-state file.
type State struct {
	Path    string
	Cookies []Cookie
	Origins []Origin
}

// Load reads and validates a storage-state file.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissing, path)
		}
		return nil, fmt.Errorf("failed to read session fixture: %w", err)
	}
	state, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	state.Path = path
	return state, nil
}

// Parse validates data against the storage-state schema and extracts its
// cookies and origins.
func Parse(data []byte) (*State, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: not valid JSON", ErrInvalid)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}

	doc := gjson.ParseBytes(data)
	state := &State{}
	doc.Get("cookies").ForEach(func(_, c gjson.Result) bool {
		cookie := Cookie{
			Name:   c.Get("name").String(),
			Domain: c.Get("domain").String(),
			Path:   c.Get("path").String(),
		}
		// Playwright writes -1 for session cookies.
		if exp := c.Get("expires").Float(); exp > 0 {
			sec, frac := math.Modf(exp)
			cookie.Expires = time.Unix(int64(sec), int64(frac*1e9))
		}
		state.Cookies = append(state.Cookies, cookie)
		return true
	})
	doc.Get("origins").ForEach(func(_, o gjson.Result) bool {
		origin := Origin{Origin: o.Get("origin").String(), LocalStorage: map[string]string{}}
		o.Get("localStorage").ForEach(func(_, kv gjson.Result) bool {
			origin.LocalStorage[kv.Get("name").String()] = kv.Get("value").String()
			return true
		})
		state.Origins = append(state.Origins, origin)
		return true
	})
	return state, nil
}

// CookiesFor returns the cookies sent to host.
func (s *State) CookiesFor(host string) []Cookie {
	var out []Cookie
	for _, c := range s.Cookies {
		if c.MatchesHost(host) {
			out = append(out, c)
		}
	}
	return out
}

// OriginFor returns the localStorage entry for the origin of baseURL.
func (s *State) OriginFor(baseURL string) (*Origin, bool) {
	want := strings.TrimSuffix(baseURL, "/")
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		want = u.Scheme + "://" + u.Host
	}
	for i := range s.Origins {
		if strings.TrimSuffix(s.Origins[i].Origin, "/") == want {
			return &s.Origins[i], true
		}
	}
	return nil, false
}

// Check reports whether the state still carries a session for baseURL at
// now. With an empty baseURL only the file structure is checked.
func (s *State) Check(baseURL string, now time.Time) error {
	if baseURL == "" {
		return nil
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return fmt.Errorf("invalid base URL %q", baseURL)
	}
	host := u.Hostname()

	_, hasOrigin := s.OriginFor(baseURL)
	cookies := s.CookiesFor(host)
	if len(cookies) == 0 {
		if hasOrigin {
			return nil
		}
		return fmt.Errorf("%w %s", ErrNoSession, host)
	}

	for _, c := range cookies {
		if !c.Expired(now) {
			return nil
		}
	}
	if hasOrigin {
		return nil
	}
	return fmt.Errorf("%w: every cookie for %s expired", ErrExpired, host)
}

// Check loads path and checks it against baseURL.
func Check(path, baseURL string, now time.Time) (*State, error) {
	state, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := state.Check(baseURL, now); err != nil {
		return state, fmt.Errorf("%s: %w", path, err)
	}
	return state, nil
}
