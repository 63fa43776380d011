// Package api exposes the donor, emergency, dashboard, chat and relay operations over
// HTTP.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bloodfinder/internal/apperr"
	"bloodfinder/internal/auth"
	"bloodfinder/internal/chat"
	"bloodfinder/internal/config"
	"bloodfinder/internal/dashboard"
	"bloodfinder/internal/donor"
	"bloodfinder/internal/emergency"
	"bloodfinder/internal/relay"
	"bloodfinder/internal/render"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Handler carries every service the routes need. Build it once in main.
type Handler struct {
	cfg         config.App
	donors      *donor.Service
	emergencies *emergency.Service
	dashboard   *dashboard.Service
	sessions    *auth.Sessions
	relay       *relay.Handler
	chats       *chat.Registry
	renderer    *render.Renderer
	health      map[string]HealthCheck
	logger      *zap.Logger
}

// Deps groups the constructor arguments.
type Deps struct {
	Config      config.App
	Donors      *donor.Service
	Emergencies *emergency.Service
	Dashboard   *dashboard.Service
	Sessions    *auth.Sessions
	Relay       *relay.Handler
	Chats       *chat.Registry
	Renderer    *render.Renderer
	Health      map[string]HealthCheck
	Logger      *zap.Logger
}

func New(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Renderer == nil {
		d.Renderer = render.NewRenderer()
	}
	return &Handler{
		cfg:         d.Config,
		donors:      d.Donors,
		emergencies: d.Emergencies,
		dashboard:   d.Dashboard,
		sessions:    d.Sessions,
		relay:       d.Relay,
		chats:       d.Chats,
		renderer:    d.Renderer,
		health:      d.Health,
		logger:      d.Logger,
	}
}

// fail writes err as {"error": ...} with the status its kind maps to. Store and
// upstream causes are logged, not returned.
func (h *Handler) fail(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	switch {
	case errors.Is(err, chat.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	}

	msg := err.Error()
	var e *apperr.Error
	if errors.As(err, &e) && e.Kind == apperr.KindTransport && e.Message != "" {
		msg = e.Message
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("kind", apperr.KindOf(err).String()),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"error": msg})
}

func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, check := range h.health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// Config returns browser-safe settings, the registration share links and the required
// keys that are missing.
func (h *Handler) Config(c *gin.Context) {
	pub := h.cfg.PublicView()
	origin := h.origin(c)
	pub.RegisterURL = donor.RegisterURL(origin)
	pub.ShareURL = donor.ShareRegistrationURL(origin)
	c.JSON(http.StatusOK, pub)
}

// origin is PUBLIC_URL when set, else the scheme and host the request arrived on.
func (h *Handler) origin(c *gin.Context) string {
	if h.cfg.PublicURL != "" {
		return h.cfg.PublicURL
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if p := c.GetHeader("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}
	return scheme + "://" + c.Request.Host
}
