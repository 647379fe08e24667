package api

import (
	"net/http"

	"vidmerge/config"

	"github.com/gin-gonic/gin"
)

func SetupRouter(svc Merger, cfg *config.Config) *gin.Engine {
	r := gin.Default()
	r.HandleMethodNotAllowed = true
	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "method not allowed"})
	})

	h := NewHandler(svc, cfg)

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Published artifacts are fetched by the address returned from a merge.
	r.GET("/files/*filepath", h.handleGetFile)

	v1 := r.Group("/api/v1")
	v1.Use(AuthMiddleware(cfg))
	{
		v1.POST("/merge", h.handleMerge)
	}
	return r
}
