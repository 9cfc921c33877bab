package api

import (
	"net/http"

	accountDelivery "loopchat-backend/internal/account/delivery"
	"loopchat-backend/internal/auth/delivery"
	authUsecase "loopchat-backend/internal/auth/usecase"
	chatDelivery "loopchat-backend/internal/chat/delivery"
	"loopchat-backend/internal/resilience"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	r *gin.Engine,
	authUc authUsecase.AuthUsecase,
	limiter *resilience.RateLimiter,
	breakers *resilience.Registry,
	presenceHandler *chatDelivery.PresenceHandler,
	statusHandler *chatDelivery.StatusHandler,
	tokenHandler *chatDelivery.TokenHandler,
	accountHandler *accountDelivery.AccountHandler,
) {
	api := r.Group("/api")
	{
		// Health check (no auth required): circuit breaker diagnostics
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":   "ok",
				"breakers": breakers.Snapshots(),
			})
		})

		auth := delivery.AuthMiddleware(authUc)

		// Presence routes (protected)
		presence := api.Group("/presence")
		presence.Use(auth)
		{
			presence.POST("", chatDelivery.RateLimit(limiter, resilience.OpUpdatePresence), presenceHandler.UpdatePresence)
			presence.POST("/query", chatDelivery.RateLimit(limiter, resilience.OpGetPresence), presenceHandler.QueryPresence)
		}

		// Status routes (protected)
		status := api.Group("/status")
		status.Use(auth)
		{
			status.POST("/batch", chatDelivery.RateLimit(limiter, resilience.OpBatchStatusUpdate), statusHandler.BatchStatusUpdate)
		}

		// Room routes (protected)
		rooms := api.Group("/rooms")
		rooms.Use(auth)
		{
			rooms.POST("/:id/read", chatDelivery.RateLimit(limiter, resilience.OpResetUnread), statusHandler.ResetUnread)
			rooms.POST("/:id/mute", chatDelivery.RateLimit(limiter, resilience.OpMuteRoom), statusHandler.MuteRoom)
		}

		// Push token routes (protected)
		tokens := api.Group("/tokens")
		tokens.Use(auth)
		{
			tokens.POST("/register", chatDelivery.RateLimit(limiter, resilience.OpRegisterToken), tokenHandler.Register)
			tokens.DELETE("/:token", tokenHandler.Unregister)
		}

		// User routes (protected)
		users := api.Group("/users")
		users.Use(auth)
		{
			users.POST("/:id/block", chatDelivery.RateLimit(limiter, resilience.OpBlockUser), accountHandler.Block)
			users.DELETE("/:id/block", chatDelivery.RateLimit(limiter, resilience.OpUnblockUser), accountHandler.Unblock)
			users.POST("/:id/report", chatDelivery.RateLimit(limiter, resilience.OpReportUser), accountHandler.Report)
		}

		// Account routes (protected)
		accountGroup := api.Group("/account")
		accountGroup.Use(auth)
		{
			accountGroup.DELETE("", chatDelivery.RateLimit(limiter, resilience.OpDeleteAccount), accountHandler.DeleteAccount)
		}
	}
}
