// Package web contains the browser-facing Gin handlers: the OAuth callback route, the
// login entry page, the landing page and the health probe.
package web

import (
	"context"
	"errors"
	"html"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/googler-dev/googler-web/internal/config"
	"github.com/googler-dev/googler-web/internal/handshake"
	"github.com/googler-dev/googler-web/internal/logging"
	"github.com/googler-dev/googler-web/internal/session"
)

// Handler serves the web routes. Configuration and exchanger can be swapped at runtime;
// a callback request keeps the snapshot it started with.
type Handler struct {
	mu        sync.RWMutex
	cfg       *config.Config
	exchanger handshake.Exchanger
	store     session.Store
}

// NewHandler creates a handler backed by store.
func NewHandler(cfg *config.Config, exchanger handshake.Exchanger, store session.Store) *Handler {
	return &Handler{cfg: cfg, exchanger: exchanger, store: store}
}

// UpdateConfig replaces the configuration and exchanger used by subsequent requests.
func (h *Handler) UpdateConfig(cfg *config.Config, exchanger handshake.Exchanger) {
	h.mu.Lock()
	h.cfg = cfg
	h.exchanger = exchanger
	h.mu.Unlock()
}

func (h *Handler) snapshot() (*config.Config, handshake.Exchanger) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg, h.exchanger
}

// Callback mounts one handshake for the redirect in c and runs it. Success answers with a
// session cookie and a redirect to the landing route; failure renders the error view with a
// link to the login route.
func (h *Handler) Callback(c *gin.Context) {
	cfg, exchanger := h.snapshot()
	ctx := c.Request.Context()
	logger := logging.Entry(ctx)

	var landing string
	hs := handshake.New(c.Request.URL.Query(), handshake.Options{
		Exchanger: exchanger,
		Session: handshake.SessionFunc(func(identity handshake.Identity) {
			record := session.NewRecord(identity, cfg.Session.TTL())
			// The request may be ending; persisting the session must not depend on it.
			if err := h.store.Save(context.WithoutCancel(ctx), record); err != nil {
				logger.WithError(err).Error("failed to persist session")
				return
			}
			setSessionCookie(c, cfg.Session, record)
		}),
		Navigator: handshake.NavigatorFunc(func(route string) { landing = route }),
		Routes:    handshake.Routes{Landing: cfg.Routes.Landing, Login: cfg.Routes.Login},
		Logger:    logger,
	})
	stop := context.AfterFunc(ctx, hs.Dispose)
	defer stop()

	state := hs.Run(ctx)
	c.Header("Cache-Control", "no-store")
	switch state.Phase {
	case handshake.Succeeded:
		c.Redirect(http.StatusFound, landing)
	case handshake.Failed:
		loginRoute, _ := hs.RecoveryRoute()
		body := strings.NewReplacer(
			"{{MESSAGE}}", html.EscapeString(state.Error),
			"{{LOGIN_ROUTE}}", html.EscapeString(loginRoute),
		).Replace(authFailedHtml)
		renderPage(c, http.StatusOK, "Authentication Failed", body)
	default:
		// The client went away before the exchange settled.
		c.AbortWithStatus(http.StatusRequestTimeout)
	}
}

// LoginPage renders the re-authentication entry page.
func (h *Handler) LoginPage(c *gin.Context) {
	cfg, _ := h.snapshot()
	body := strings.Replace(loginHtml, "{{AUTHORIZE_URL}}", html.EscapeString(cfg.Login.AuthorizeURL), 1)
	renderPage(c, http.StatusOK, "Sign in", body)
}

// Landing shows the signed-in identity, or sends the visitor to the login route when the
// request carries no valid session.
func (h *Handler) Landing(c *gin.Context) {
	cfg, _ := h.snapshot()
	record, err := h.currentSession(c, cfg.Session)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			logging.Entry(c.Request.Context()).WithError(err).Warn("failed to load session")
		}
		c.Redirect(http.StatusFound, cfg.Routes.Login)
		return
	}
	greeting := ""
	if identity := record.Identity(); identity.Present {
		greeting = ", " + html.EscapeString(identity.Username)
	}
	renderPage(c, http.StatusOK, "Googler", strings.Replace(landingHtml, "{{USERNAME}}", greeting, 1))
}

// Health answers the liveness probe.
func (h *Handler) Health(c *gin.Context) {
	logging.SkipGinRequestLogging(c)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) currentSession(c *gin.Context, cfg config.SessionConfig) (*session.Record, error) {
	id, err := c.Cookie(cfg.CookieName)
	if err != nil || strings.TrimSpace(id) == "" {
		return nil, session.ErrNotFound
	}
	record, err := h.store.Load(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	if !record.Authenticated {
		return nil, session.ErrNotFound
	}
	return record, nil
}

func setSessionCookie(c *gin.Context, cfg config.SessionConfig, record *session.Record) {
	maxAge := int(cfg.TTL().Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(cfg.CookieName, record.ID, maxAge, "/", "", cfg.SecureCookie, true)
}

func renderPage(c *gin.Context, status int, title, body string) {
	page := strings.NewReplacer("{{TITLE}}", html.EscapeString(title), "{{BODY}}", body).Replace(pageShellHtml)
	c.Data(status, "text/html; charset=utf-8", []byte(page))
}
