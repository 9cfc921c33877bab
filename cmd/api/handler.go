package api

import (
	accountDelivery "loopchat-backend/internal/account/delivery"
	authUsecase "loopchat-backend/internal/auth/usecase"
	chatDelivery "loopchat-backend/internal/chat/delivery"
	"loopchat-backend/internal/resilience"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	authUsecase     authUsecase.AuthUsecase
	limiter         *resilience.RateLimiter
	breakers        *resilience.Registry
	presenceHandler *chatDelivery.PresenceHandler
	statusHandler   *chatDelivery.StatusHandler
	tokenHandler    *chatDelivery.TokenHandler
	accountHandler  *accountDelivery.AccountHandler
}

func NewHandler(
	authUc authUsecase.AuthUsecase,
	limiter *resilience.RateLimiter,
	breakers *resilience.Registry,
	presenceHandler *chatDelivery.PresenceHandler,
	statusHandler *chatDelivery.StatusHandler,
	tokenHandler *chatDelivery.TokenHandler,
	accountHandler *accountDelivery.AccountHandler,
) *Handler {
	return &Handler{
		authUsecase:     authUc,
		limiter:         limiter,
		breakers:        breakers,
		presenceHandler: presenceHandler,
		statusHandler:   statusHandler,
		tokenHandler:    tokenHandler,
		accountHandler:  accountHandler,
	}
}

func (h *Handler) Start(addr string) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.authUsecase, h.limiter, h.breakers, h.presenceHandler, h.statusHandler, h.tokenHandler, h.accountHandler)

	return r.Run(addr)
}
