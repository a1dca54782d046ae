package views

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/entreepos/entree-web/internal/dom"
	"github.com/entreepos/entree-web/internal/messenger"
)

func newTestRenderer(t *testing.T, cfg messenger.Config) *Renderer {
	t.Helper()
	r, err := NewRenderer(messenger.NewBootstrap(cfg, nil), nil)
	require.NoError(t, err)
	return r
}

func render(t *testing.T, r *Renderer, v View, data PageData) *dom.Document {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, AppShell, v, data))
	doc, err := dom.Parse(&buf)
	require.NoError(t, err)
	return doc
}

func form(t *testing.T, doc *dom.Document) *html.Node {
	t.Helper()
	f := doc.FirstElementByTag("form")
	require.NotNil(t, f)
	return f
}

func attr(n *html.Node, key string) string {
	v, _ := dom.Attr(n, key)
	return v
}

var testConfig = messenger.Config{AppID: "APP123", PageID: "PAGE456"}

func TestRegisterFormContract(t *testing.T) {
	doc := render(t, newTestRenderer(t, testConfig), Register, PageData{})

	f := form(t, doc)
	assert.Equal(t, "/register/register", attr(f, "action"))
	assert.Equal(t, "POST", strings.ToUpper(attr(f, "method")))
	assert.Equal(t, "register", attr(f, "id"))
	assert.Equal(t, "utf-8", attr(f, "accept-charset"))

	inputs := doc.ElementsByTag("input")
	require.Len(t, inputs, 4)
	for _, in := range inputs[:3] {
		_, required := dom.Attr(in, "required")
		assert.True(t, required, "input %s should be required", attr(in, "name"))
	}
	assert.Equal(t, "email", attr(inputs[2], "type"))

	assert.Nil(t, doc.GetElementByID(messenger.SDKScriptID))
}

func TestLoginFormContract(t *testing.T) {
	doc := render(t, newTestRenderer(t, testConfig), Login, PageData{})

	f := form(t, doc)
	assert.Equal(t, "/login", attr(f, "action"))
	assert.Equal(t, "post", attr(f, "method"))
	for _, in := range doc.ElementsByTag("input") {
		_, required := dom.Attr(in, "required")
		assert.False(t, required)
	}
}

func TestLoginSuccessLogoutForm(t *testing.T) {
	doc := render(t, newTestRenderer(t, testConfig), LoginSuccess, PageData{})

	assert.Contains(t, dom.Text(doc.FirstElementByTag("h1")), "successfully logged in")
	f := form(t, doc)
	assert.Equal(t, "/login/logout", attr(f, "action"))
	assert.Equal(t, "get", attr(f, "method"))
}

func TestHomeMountsMessengerOnce(t *testing.T) {
	doc := render(t, newTestRenderer(t, testConfig), Home, PageData{})

	button := doc.GetElementByID(messenger.ButtonElementID)
	require.NotNil(t, button)
	assert.Equal(t, "APP123", attr(button, messenger.AttrAppID))
	assert.Equal(t, "PAGE456", attr(button, messenger.AttrPageID))
	assert.Equal(t, "fb-messengermessageus", attr(button, "class"))

	sdk := 0
	for _, s := range doc.ElementsByTag("script") {
		if attr(s, "id") == messenger.SDKScriptID {
			sdk++
		}
	}
	assert.Equal(t, 1, sdk)
	assert.NotNil(t, doc.GetElementByID("footer"))
	assert.Equal(t, "Entree", dom.Text(doc.FirstElementByTag("title")))
}

func TestHomeWithoutConfigurationIsInert(t *testing.T) {
	doc := render(t, newTestRenderer(t, messenger.Config{}), Home, PageData{})

	button := doc.GetElementByID(messenger.ButtonElementID)
	require.NotNil(t, button)
	_, ok := dom.Attr(button, messenger.AttrAppID)
	assert.False(t, ok)
	assert.Nil(t, doc.GetElementByID(messenger.SDKScriptID))
}

func TestHomeWithoutBootstrap(t *testing.T) {
	r, err := NewRenderer(nil, nil)
	require.NoError(t, err)

	doc := render(t, r, Home, PageData{})
	assert.NotNil(t, doc.GetElementByID(messenger.ButtonElementID))
	assert.Nil(t, doc.GetElementByID(messenger.SDKScriptID))
}

func TestFooterPartial(t *testing.T) {
	r := newTestRenderer(t, testConfig)
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, AppShell, Footer, PageData{}))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, `<footer id="footer">`))
	assert.Contains(t, out, "https://www.facebook.com/entreebot/")
	assert.Contains(t, out, "https://twitter.com/EntreeBot")
	assert.Contains(t, out, "© Entree POS Inc.")
	assert.NotContains(t, out, "<html")
}

func TestMessengerButtonPartial(t *testing.T) {
	r := newTestRenderer(t, testConfig)
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, AppShell, MessengerButton, PageData{}))

	doc, err := dom.Parse(&buf)
	require.NoError(t, err)
	button := doc.GetElementByID(messenger.ButtonElementID)
	require.NotNil(t, button)
	assert.Equal(t, "APP123", attr(button, messenger.AttrAppID))
	assert.Equal(t, "xlarge", attr(button, "size"))
	assert.NotNil(t, doc.GetElementByID(messenger.SDKScriptID))
}

func TestNotFoundEscapesPath(t *testing.T) {
	r := newTestRenderer(t, testConfig)
	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, AppShell, NotFound, PageData{Path: "/<script>"}))

	out := buf.String()
	assert.Contains(t, out, "Page not found")
	assert.Contains(t, out, "/&lt;script&gt;")
}

func TestRenderUnknown(t *testing.T) {
	r := newTestRenderer(t, testConfig)
	var buf bytes.Buffer

	assert.Error(t, r.Render(&buf, AppShell, View{Name: "nope"}, PageData{}))
	assert.Error(t, r.Render(&buf, AppShell, View{Name: "nope", Kind: KindPartial}, PageData{}))
	assert.Error(t, r.Render(&buf, Layout{Name: "other"}, Home, PageData{}))
}

func TestTitleOverride(t *testing.T) {
	doc := render(t, newTestRenderer(t, testConfig), Login, PageData{Title: "Sign in"})
	assert.Equal(t, "Sign in", dom.Text(doc.FirstElementByTag("title")))
}
