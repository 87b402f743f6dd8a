package api

import (
	stdhttp "net/http"

	intconfig "busline/internal/config"
	h "busline/internal/http/handlers"
	"busline/internal/http/middleware"
	"busline/internal/utils"

	"github.com/gin-gonic/gin"
)

// Handlers bundles the wired handler set main builds once at startup.
type Handlers struct {
	Auth      h.AuthHandler
	Session   h.SessionHandler
	Booking   h.BookingHandler
	Trip      h.TripHandler
	Reconcile h.ReconcileHandler
}

func NewRouter(env intconfig.Env, hs Handlers) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery(), middleware.CORS())

	if err := r.SetTrustedProxies(nil); err != nil {
		utils.LogError("", "http", "setup", err)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"error":  "route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	secret := []byte(env.JWTSecret)

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/db-check", h.DBCheck)

		auth := api.Group("/auth")
		auth.POST("/login", hs.Auth.Login)
		auth.POST("/register", hs.Auth.Register)

		api.POST("/sessions", hs.Session.Create)

		bookings := api.Group("/bookings")
		bookings.POST("", middleware.AuthOptional(secret), hs.Booking.Create)
		bookings.GET("", middleware.AuthRequired(secret), hs.Booking.List)

		trips := api.Group("/trips")
		trips.GET("/:id/seats", hs.Trip.Seats)
		trips.GET("/:id/manifest", middleware.AuthRequired(secret), middleware.AdminOnly(), hs.Trip.Manifest)

		admin := api.Group("/admin", middleware.AuthRequired(secret), middleware.AdminOnly())
		admin.POST("/reconcile", hs.Reconcile.Run)
	}

	return r
}
