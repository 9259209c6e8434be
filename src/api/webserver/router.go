package webserver

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stake-plus/filedao/src/api/config"
	"github.com/stake-plus/filedao/src/api/dao"
)

// New builds the API router. The returned limiter must be Run by the caller
// to reclaim idle entries.
func New(cfg config.Config, svc *dao.Service, rdb *redis.Client) (*gin.Engine, *RateLimiter) {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	limiter := NewRateLimiter(cfg.RateLimit, cfg.RateWindow)
	attachRoutes(r, cfg, svc, rdb, limiter)
	return r, limiter
}

func attachRoutes(r *gin.Engine, cfg config.Config, svc *dao.Service, rdb *redis.Client, limiter *RateLimiter) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "If-None-Match"},
		ExposeHeaders:    []string{"Content-Length", "ETag"},
		AllowCredentials: true,
	}))

	authH := NewAuth(rdb, []byte(cfg.JWTSecret), cfg.TokenTTL)
	memberH := NewMembers(svc)
	propH := NewProposals(svc)
	fileH := NewFiles(svc)

	v1 := r.Group("/v1")
	{
		public := v1.Group("")
		public.Use(RateLimitMiddleware(limiter))
		public.POST("/auth/challenge", authH.Challenge)
		public.POST("/auth/verify", authH.Verify)
		public.GET("/stats", fileH.Stats)

		secured := v1.Group("")
		secured.Use(JWTMiddleware([]byte(cfg.JWTSecret)), RateLimitMiddleware(limiter))
		secured.GET("/members", memberH.List)
		secured.GET("/members/:addr", memberH.Get)
		secured.POST("/members", AdminMiddleware(svc), memberH.Add)
		secured.DELETE("/members/:addr", memberH.Remove)

		secured.POST("/proposals", propH.Create)
		secured.GET("/proposals", propH.List)
		secured.GET("/proposals/:id", propH.Get)
		secured.POST("/proposals/:id/votes", propH.Vote)
		secured.POST("/proposals/:id/execute", propH.Execute)
		secured.POST("/proposals/:id/sync", propH.Sync)

		secured.GET("/access/:cid", fileH.Access)
		secured.GET("/files/shared", fileH.Shared)
		secured.GET("/files/deleted", fileH.Deleted)
	}
}
