package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"bloodfinder/internal/auth"
	"bloodfinder/internal/httpmiddleware"
	"bloodfinder/internal/logging"
	"bloodfinder/internal/metrics"
)

// RouterOptions tunes the middleware stack.
type RouterOptions struct {
	AllowOrigins    []string
	RateLimitPerMin int
	RelayPerMin     int
	Logger          *zap.Logger
}

// NewRouter mounts every route on a fresh engine.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if len(opts.AllowOrigins) == 0 {
		opts.AllowOrigins = []string{"*"}
	}

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	r.Use(logging.GinLogger(opts.Logger, "/healthz", "/metrics"))
	r.Use(metrics.GinMiddleware())
	r.Use(cors.New(cors.Config{
		AllowOrigins:  opts.AllowOrigins,
		AllowMethods:  []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}))
	r.Use(httpmiddleware.SecurityHeaders())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", h.Healthz)

	api := r.Group("/api")
	if opts.RateLimitPerMin > 0 {
		api.Use(httpmiddleware.NewTokenBucket("api", opts.RateLimitPerMin, opts.RateLimitPerMin, opts.Logger).GinMiddleware())
	}
	private := auth.RequireSession(h.sessions)

	api.GET("/config", h.Config)
	api.POST("/login", h.Login)
	api.POST("/logout", h.Logout)
	api.GET("/session", h.Session)

	api.POST("/donors", h.RegisterDonor)
	api.GET("/donors", private, h.ListDonors)
	api.GET("/donors/branches", private, h.BranchSuggestions)
	api.GET("/donors/export.csv", private, h.ExportCSV)
	api.GET("/donors/export.xlsx", private, h.ExportXLSX)

	api.GET("/emergencies", h.ListEmergencies)
	api.POST("/emergencies", h.CreateEmergency)
	api.PATCH("/emergencies/:id/status", private, h.UpdateEmergencyStatus)

	api.GET("/dashboard/stats", private, h.DashboardStats)
	api.GET("/dashboard/distribution", private, h.DashboardDistribution)

	relayRoutes := []gin.HandlerFunc{}
	if opts.RelayPerMin > 0 {
		relayRoutes = append(relayRoutes, httpmiddleware.NewTokenBucket("relay", opts.RelayPerMin, opts.RelayPerMin, opts.Logger).GinMiddleware())
	}
	api.POST("/telegram-send", append(relayRoutes, h.relay.Send)...)
	api.POST("/telegram-test", append(append([]gin.HandlerFunc{private}, relayRoutes...), h.relay.Test)...)

	api.POST("/chat", h.CreateChat)
	api.GET("/chat/:id", h.GetChat)
	api.POST("/chat/:id/messages", h.AskChat)
	api.POST("/chat/:id/regenerate/:msg", h.RegenerateChat)
	api.POST("/chat/:id/feedback/:msg", h.ChatFeedback)

	return r
}
