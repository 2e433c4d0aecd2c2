package mock

import (
	"net/http"
	"regexp"
	"strings"
)

// Route represents a mock route
type Route struct {
	Method      string
	PathPattern string
	PathRegex   *regexp.Regexp
	Name        string
	Handler     func(w http.ResponseWriter, r *http.Request, params map[string]string)
}

// Router matches incoming requests to routes
type Router struct {
	routes []*Route
}

// NewRouter creates a new router
func NewRouter() *Router {
	return &Router{
		routes: make([]*Route, 0),
	}
}

// AddRoute adds a route to the router. Path segments written as {{name}}
// become parameters.
func (r *Router) AddRoute(route *Route) {
	if route.PathRegex == nil && strings.Contains(route.PathPattern, "{{") {
		route.PathRegex = createPathRegex(route.PathPattern)
	}
	r.routes = append(r.routes, route)
}

// Match finds a route matching the given method and path
func (r *Router) Match(method, path string) (*Route, map[string]string) {
	// Normalize path
	path = normalizePath(path)

	for _, route := range r.routes {
		if !strings.EqualFold(route.Method, method) {
			continue
		}

		if params := matchPath(route, path); params != nil {
			return route, params
		}
	}

	return nil, nil
}

// Allowed reports whether any route serves path with another method.
func (r *Router) Allowed(path string) bool {
	path = normalizePath(path)
	for _, route := range r.routes {
		if matchPath(route, path) != nil {
			return true
		}
	}
	return false
}

func normalizePath(path string) string {
	// Ensure path starts with /
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	// Remove trailing slash (except for root)
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	return path
}

func matchPath(route *Route, path string) map[string]string {
	// Try regex match first
	if route.PathRegex != nil {
		matches := route.PathRegex.FindStringSubmatch(path)
		if matches != nil {
			params := make(map[string]string)
			names := route.PathRegex.SubexpNames()
			for i, name := range names {
				if i > 0 && name != "" && i < len(matches) {
					params[name] = matches[i]
				}
			}
			return params
		}
	}

	// Exact match
	if route.PathPattern == path {
		return make(map[string]string)
	}

	return nil
}

var paramPattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

func createPathRegex(pattern string) *regexp.Regexp {
	var b strings.Builder
	last := 0
	for _, m := range paramPattern.FindAllStringSubmatchIndex(pattern, -1) {
		b.WriteString(regexp.QuoteMeta(pattern[last:m[0]]))
		b.WriteString("(?P<" + pattern[m[2]:m[3]] + ">[^/]+)")
		last = m[1]
	}
	b.WriteString(regexp.QuoteMeta(pattern[last:]))

	regex, err := regexp.Compile("^" + b.String() + "$")
	if err != nil {
		// Fallback to literal match
		return regexp.MustCompile("^" + regexp.QuoteMeta(pattern) + "$")
	}
	return regex
}
