package http

import (
	"errors"
	"net/url"
	"strings"

	"support_inbox/core/domain"
	"support_inbox/core/port/out"
	"support_inbox/core/service/auth"
	"support_inbox/core/service/inbox"
	"support_inbox/pkg/apperr"
	"support_inbox/pkg/logger"
	"support_inbox/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// OAuthHandler runs the Gmail sign-in flow.
type OAuthHandler struct {
	oauth    *auth.OAuthService
	inbox    *inbox.Service
	realtime out.RealtimePort
	auth     fiber.Handler

	// sample reloads the sample dataset after sign-out.
	sample func() *inbox.SampleData

	// frontendURL, when set, receives the browser after the callback.
	frontendURL string
}

type OAuthHandlerConfig struct {
	OAuth       *auth.OAuthService
	Inbox       *inbox.Service
	Realtime    out.RealtimePort
	Auth        fiber.Handler
	Sample      func() *inbox.SampleData
	FrontendURL string
}

func NewOAuthHandler(cfg OAuthHandlerConfig) *OAuthHandler {
	if cfg.Auth == nil {
		cfg.Auth = passThrough
	}
	return &OAuthHandler{
		oauth:       cfg.OAuth,
		inbox:       cfg.Inbox,
		realtime:    cfg.Realtime,
		auth:        cfg.Auth,
		sample:      cfg.Sample,
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
	}
}

func (h *OAuthHandler) Register(app fiber.Router) {
	oauth := app.Group("/oauth")
	oauth.Get("/google/connect", h.Connect)
	oauth.Get("/google/callback", h.Callback)
	oauth.Get("/status", h.Status)
	oauth.Post("/disconnect", h.auth, h.Disconnect)
}

// Connect returns the consent URL, or redirects to it with ?redirect=true.
func (h *OAuthHandler) Connect(c *fiber.Ctx) error {
	authURL, err := h.oauth.AuthURL(c.UserContext())
	if err != nil {
		return err
	}
	if c.QueryBool("redirect") {
		return c.Redirect(authURL, fiber.StatusFound)
	}
	return response.OK(c, fiber.Map{"auth_url": authURL})
}

// Callback completes the sign-in and loads the account's inbox. A failed
// load does not fail the sign-in; the UI can retry with /gmail/load.
func (h *OAuthHandler) Callback(c *fiber.Ctx) error {
	if reason := c.Query("error"); reason != "" {
		logger.WithField("reason", reason).Warn("google sign-in cancelled")
		return h.fail(c, apperr.OAuthFailed("google", errors.New(reason)))
	}

	session, err := h.oauth.HandleCallback(c.UserContext(), c.Query("code"), c.Query("state"))
	if err != nil {
		return h.fail(c, err)
	}

	ctx := c.UserContext()
	h.broadcast(c, domain.NewEvent(domain.EventSignedIn, fiber.Map{"email": session.Email}))
	if _, err := h.inbox.LoadFromProvider(ctx); err != nil {
		logger.WithError(err).Warn("initial gmail load failed")
		h.broadcast(c, domain.NewNoticeEvent(domain.NoticeWarning, "Gmail", "Signed in, but loading emails failed. Try refreshing."))
	}

	if h.frontendURL != "" {
		fragment := url.Values{"session": {session.Token}, "email": {session.Email}}
		return c.Redirect(h.frontendURL+"/#"+fragment.Encode(), fiber.StatusFound)
	}
	return response.OK(c, session)
}

func (h *OAuthHandler) fail(c *fiber.Ctx, err error) error {
	if h.frontendURL == "" {
		return err
	}
	code := apperr.AsAppError(err).Code
	return c.Redirect(h.frontendURL+"/#"+url.Values{"oauth_error": {code}}.Encode(), fiber.StatusFound)
}

type oauthStatus struct {
	auth.Status
	Mode inbox.Mode `json:"mode"`
}

func (h *OAuthHandler) Status(c *fiber.Ctx) error {
	return response.OK(c, oauthStatus{Status: h.oauth.Status(), Mode: h.inbox.Mode()})
}

// Disconnect signs out and puts the sample inbox back.
func (h *OAuthHandler) Disconnect(c *fiber.Ctx) error {
	h.oauth.Disconnect()
	if h.inbox.Mode() == inbox.ModeGmail && h.sample != nil {
		h.inbox.LoadSample(h.sample())
	}
	h.broadcast(c, domain.NewEvent(domain.EventSignedOut, nil))
	return response.OK(c, oauthStatus{Status: h.oauth.Status(), Mode: h.inbox.Mode()})
}

func (h *OAuthHandler) broadcast(c *fiber.Ctx, event *domain.RealtimeEvent) {
	if h.realtime != nil {
		h.realtime.Broadcast(c.UserContext(), event)
	}
}
