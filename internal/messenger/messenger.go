// Package messenger attaches the Facebook Messenger SDK to a rendered page.
//
// Attach binds the "send to Messenger" button to an app and page id and makes
// sure the SDK is loaded exactly once per document, however many times it is
// called.
package messenger

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/entreepos/entree-web/internal/dom"
)

const (
	ButtonElementID = "send-to-messenger-button"

	AttrAppID  = "messenger_app_id"
	AttrPageID = "page_id"

	SDKScriptID  = "facebook-jssdk"
	InitScriptID = "facebook-jssdk-init"
	SDKURL       = "//connect.facebook.net/en_US/sdk.js"
	SDKVersion   = "v2.6"
)

var (
	ErrMissingTargetElement = errors.New("messenger: target element not found")
	ErrMissingConfiguration = errors.New("messenger: app id and page id are required")
)

// Config identifies the Facebook app and page the button talks to.
type Config struct {
	AppID  string `toml:"app_id"`
	PageID string `toml:"page_id"`
}

func (c Config) Validate() error {
	if c.AppID == "" || c.PageID == "" {
		return ErrMissingConfiguration
	}
	return nil
}

// Bootstrap carries the Messenger configuration built once at startup.
type Bootstrap struct {
	config Config
	logger *zap.Logger
}

func NewBootstrap(config Config, logger *zap.Logger) *Bootstrap {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bootstrap{config: config, logger: logger}
}

func (b *Bootstrap) Config() Config {
	return b.config
}

func (b *Bootstrap) Attach(doc *dom.Document, elementID string) error {
	if err := Attach(doc, elementID, b.config.AppID, b.config.PageID); err != nil {
		b.logger.Warn("Messenger bootstrap failed",
			zap.String("element", elementID),
			zap.Error(err))
		return err
	}
	b.logger.Debug("Messenger bootstrap attached", zap.String("element", elementID))
	return nil
}

// Attach sets the identifier attributes on the element with elementID, adds
// the SDK init hook and injects the SDK script unless a script with
// SDKScriptID is already present. The attributes are written on every call;
// the script is injected at most once.
func Attach(doc *dom.Document, elementID, appID, pageID string) error {
	if err := (Config{AppID: appID, PageID: pageID}).Validate(); err != nil {
		return err
	}
	target := doc.GetElementByID(elementID)
	if target == nil {
		return fmt.Errorf("%w: #%s", ErrMissingTargetElement, elementID)
	}

	dom.SetAttr(target, AttrAppID, appID)
	dom.SetAttr(target, AttrPageID, pageID)

	sdk := doc.GetElementByID(SDKScriptID)
	if sdk == nil {
		sdk = dom.CreateElement("script")
		dom.SetAttr(sdk, "id", SDKScriptID)
		dom.SetAttr(sdk, "src", SDKURL)
		dom.SetAttr(sdk, "async", "")
		if err := insertScript(doc, sdk); err != nil {
			return err
		}
	}
	return ensureInitHook(doc, sdk, appID)
}

// ensureInitHook writes the inline script that initializes the SDK. A new
// hook goes directly in front of sdk so it runs before the SDK loads.
func ensureInitHook(doc *dom.Document, sdk *html.Node, appID string) error {
	body, err := initScript(appID)
	if err != nil {
		return err
	}
	if hook := doc.GetElementByID(InitScriptID); hook != nil {
		dom.SetText(hook, body)
		return nil
	}

	hook := dom.CreateElement("script")
	dom.SetAttr(hook, "id", InitScriptID)
	dom.SetText(hook, body)
	return dom.InsertBefore(hook, sdk)
}

// insertScript puts n immediately before the first script element, or at the
// end of body (then head, then the root) when the page has none.
func insertScript(doc *dom.Document, n *html.Node) error {
	if first := doc.FirstElementByTag("script"); first != nil {
		return dom.InsertBefore(n, first)
	}
	for _, parent := range []*html.Node{doc.Body(), doc.Head(), doc.Root()} {
		if parent != nil {
			dom.AppendChild(parent, n)
			return nil
		}
	}
	return fmt.Errorf("messenger: document has no root")
}

// initScript calls FB.init directly when the SDK already loaded and otherwise
// leaves it to the SDK's fbAsyncInit callback.
func initScript(appID string) (string, error) {
	settings, err := json.Marshal(struct {
		AppID   string `json:"appId"`
		XFBML   bool   `json:"xfbml"`
		Version string `json:"version"`
	}{appID, true, SDKVersion})
	if err != nil {
		return "", fmt.Errorf("failed to encode sdk settings: %w", err)
	}
	return fmt.Sprintf(`(function(w){var init=function(){FB.init(%s);};if(w.FB){init();}else{w.fbAsyncInit=init;}}(window));`, settings), nil
}
