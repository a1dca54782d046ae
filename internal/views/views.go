// Package views renders the site's pages and components from embedded
// html/template files.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io"

	"go.uber.org/zap"

	"github.com/entreepos/entree-web/internal/dom"
	"github.com/entreepos/entree-web/internal/messenger"
)

//go:embed templates
var templatesFS embed.FS

type Kind int

const (
	// KindPage views render inside a Layout.
	KindPage Kind = iota
	// KindPartial views render on their own.
	KindPartial
)

type View struct {
	Name  string
	Title string
	Kind  Kind
	// MountsMessenger views run the Messenger bootstrap once per render.
	MountsMessenger bool
}

type Layout struct {
	Name string
}

var AppShell = Layout{Name: "layout"}

var (
	Footer          = View{Name: "footer", Kind: KindPartial}
	MessengerButton = View{Name: "messenger_button", Kind: KindPartial, MountsMessenger: true}
	Home            = View{Name: "home", Title: "Entree", MountsMessenger: true}
	Login           = View{Name: "login", Title: "Login | Entree"}
	LoginSuccess    = View{Name: "login_success", Title: "Logged in | Entree"}
	Register        = View{Name: "register", Title: "Register | Entree"}
	NotFound        = View{Name: "not_found", Title: "Not found | Entree"}
)

func All() []View {
	return []View{Footer, MessengerButton, Home, Login, LoginSuccess, Register, NotFound}
}

type PageData struct {
	Title string
	Path  string
}

type Renderer struct {
	base      *template.Template
	pages     map[string]*template.Template
	bootstrap *messenger.Bootstrap
	logger    *zap.Logger
}

// NewRenderer parses every template once. bootstrap may be nil, in which case
// Messenger views render with an inert button.
func NewRenderer(bootstrap *messenger.Bootstrap, logger *zap.Logger) (*Renderer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, err := template.ParseFS(templatesFS, "templates/layout.tmpl", "templates/partials/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse base templates: %w", err)
	}

	pages := make(map[string]*template.Template)
	for _, v := range All() {
		if v.Kind != KindPage {
			continue
		}
		page, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("failed to clone base templates: %w", err)
		}
		if _, err := page.ParseFS(templatesFS, "templates/pages/"+v.Name+".tmpl"); err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", v.Name, err)
		}
		pages[v.Name] = page
	}

	return &Renderer{
		base:      base,
		pages:     pages,
		bootstrap: bootstrap,
		logger:    logger,
	}, nil
}

// Render writes view to w. Pages are wrapped in layout; partials ignore it.
// A bootstrap failure is logged and the page is written without the SDK.
func (r *Renderer) Render(w io.Writer, layout Layout, view View, data PageData) error {
	if data.Title == "" {
		data.Title = view.Title
	}

	var buf bytes.Buffer
	switch view.Kind {
	case KindPage:
		page, ok := r.pages[view.Name]
		if !ok {
			return fmt.Errorf("unknown view: %s", view.Name)
		}
		if page.Lookup(layout.Name) == nil {
			return fmt.Errorf("unknown layout: %s", layout.Name)
		}
		if err := page.ExecuteTemplate(&buf, layout.Name, data); err != nil {
			return fmt.Errorf("failed to render %s: %w", view.Name, err)
		}
	case KindPartial:
		if r.base.Lookup(view.Name) == nil {
			return fmt.Errorf("unknown view: %s", view.Name)
		}
		if err := r.base.ExecuteTemplate(&buf, view.Name, data); err != nil {
			return fmt.Errorf("failed to render %s: %w", view.Name, err)
		}
	default:
		return fmt.Errorf("unknown view kind: %d", view.Kind)
	}

	if !view.MountsMessenger || r.bootstrap == nil {
		_, err := buf.WriteTo(w)
		return err
	}
	return r.mountMessenger(w, view, buf.Bytes())
}

func (r *Renderer) mountMessenger(w io.Writer, view View, rendered []byte) error {
	doc, err := dom.Parse(bytes.NewReader(rendered))
	if err != nil {
		return err
	}
	if err := r.bootstrap.Attach(doc, messenger.ButtonElementID); err != nil {
		r.logger.Warn("Serving view with inert Messenger button",
			zap.String("view", view.Name),
			zap.Error(err))
		_, err := w.Write(rendered)
		return err
	}
	return doc.Render(w)
}
