// Package router maps URL paths to views through a static route table.
package router

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/entreepos/entree-web/internal/views"
)

var (
	ErrInvalidPattern = errors.New("router: invalid route pattern")
	ErrDuplicateRoute = errors.New("router: duplicate route pattern")
)

type Route struct {
	Pattern string
	View    views.View
}

// Match is the result of resolving a path. Found is false when the not-found
// view was substituted.
type Match struct {
	Layout views.Layout
	View   views.View
	Found  bool
}

// Table is an ordered, immutable set of static routes sharing one layout.
type Table struct {
	layout   views.Layout
	notFound views.View
	routes   []Route
	index    map[string]int
}

func NewTable(layout views.Layout, notFound views.View, routes ...Route) (*Table, error) {
	t := &Table{
		layout:   layout,
		notFound: notFound,
		routes:   make([]Route, 0, len(routes)),
		index:    make(map[string]int, len(routes)),
	}
	for _, r := range routes {
		if err := validatePattern(r.Pattern); err != nil {
			return nil, err
		}
		if _, exists := t.index[r.Pattern]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRoute, r.Pattern)
		}
		t.index[r.Pattern] = len(t.routes)
		t.routes = append(t.routes, r)
	}
	return t, nil
}

// DefaultTable is the site's route table.
func DefaultTable() *Table {
	t, err := NewTable(views.AppShell, views.NotFound,
		Route{Pattern: "/", View: views.Home},
		Route{Pattern: "/login", View: views.Login},
		Route{Pattern: "/login/success", View: views.LoginSuccess},
		Route{Pattern: "/register", View: views.Register},
	)
	if err != nil {
		panic(err)
	}
	return t
}

func validatePattern(p string) error {
	if !strings.HasPrefix(p, "/") {
		return fmt.Errorf("%w: %q must start with /", ErrInvalidPattern, p)
	}
	if strings.ContainsAny(p, ":*{}") {
		return fmt.Errorf("%w: %q must be static", ErrInvalidPattern, p)
	}
	if path.Clean(p) != p {
		return fmt.Errorf("%w: %q is not a clean path", ErrInvalidPattern, p)
	}
	return nil
}

// Resolve returns the view for urlPath. Paths are cleaned first, so "/login/"
// and "/login" resolve alike; anything unmatched gets the not-found view.
func (t *Table) Resolve(urlPath string) Match {
	if urlPath == "" {
		urlPath = "/"
	}
	if i, ok := t.index[path.Clean(urlPath)]; ok {
		return Match{Layout: t.layout, View: t.routes[i].View, Found: true}
	}
	return Match{Layout: t.layout, View: t.notFound, Found: false}
}

func (t *Table) Layout() views.Layout {
	return t.layout
}

// Routes returns a copy of the table in declaration order.
func (t *Table) Routes() []Route {
	out := make([]Route, len(t.routes))
	copy(out, t.routes)
	return out
}
