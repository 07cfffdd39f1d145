package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"campus-bus-backend/config"
	"campus-bus-backend/internal/metrics"
	"campus-bus-backend/internal/model"
	"campus-bus-backend/internal/mw"
)

// RouterOptions carries the cross-cutting pieces the router wires in.
type RouterOptions struct {
	Server   config.ServerConfig
	Tokens   mw.TokenParser
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestID(), mw.Logger(h.log, opts.Metrics), corsMiddleware(opts.Server.CORSOrigins))

	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	rateLimiter := mw.RateLimiter(rate.Limit(opts.Server.RateLimitPerSec), opts.Server.RateLimitBurst)

	ttl := time.Duration(opts.Server.CacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl)

	requireAuth := mw.Auth(opts.Tokens)
	student := mw.RequireRoles(model.RoleStudent)
	conductor := mw.RequireRoles(model.RoleConductor)
	admin := mw.RequireRoles(model.RoleAdmin)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/health", h.Health)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)

		auth := api.Group("/auth")
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)

		private := api.Group("")
		private.Use(requireAuth, mw.FlushOnWrite(cacheStore))

		buses := private.Group("/buses")
		buses.GET("", caching, h.ListTrips)
		buses.GET("/mybus", conductor, caching, h.MyBus)
		buses.GET("/:id", caching, h.GetTrip)
		buses.POST("", admin, h.CreateTrip)
		buses.PUT("/:id", admin, h.UpdateTrip)
		buses.DELETE("/:id", admin, h.DeleteTrip)
		buses.DELETE("/fleet/:busNumber", admin, h.DeleteAsset)

		bookings := private.Group("/bookings", student)
		bookings.POST("", h.CreateBooking)
		bookings.GET("/mybookings", h.MyBookings)
		bookings.POST("/waitlist", h.JoinWaitingList)
		bookings.DELETE("/:id", h.CancelBooking)
		bookings.GET("/:id/qr", h.BoardingPass)

		cond := private.Group("/conductor", conductor)
		cond.GET("/bus/:id/bookings", h.Roster)
		cond.PUT("/bookings/:id/status", h.MarkStatus)

		adm := private.Group("/admin", admin)
		adm.GET("/stats", h.Stats)
		adm.GET("/report", h.Report)
		adm.GET("/conductors", h.Conductors)
		adm.GET("/buses/all", caching, h.Schedules)
		adm.POST("/buses/:id/promote", h.Promote)

		private.GET("/subscriptions", h.GetSubscription)
		private.PUT("/subscriptions", h.PutSubscription)
		private.DELETE("/subscriptions", h.DeleteSubscription)
	}

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
