package http

import "github.com/gin-gonic/gin"

// registerV1Routes sets up /api/v1: the site list and per-site series.
func (s *Server) registerV1Routes() {
	v1 := s.engine.Group("/api/v1")
	v1.Use(apiVersionMiddleware())

	sites := v1.Group("/sites")
	{
		sites.GET("", s.handleV1ListSites)
		sites.GET("/:site_id/series", s.handleV1Series)
		sites.GET("/:site_id/chart", s.handleV1Chart)
	}
}

func apiVersionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-API-Version", "v1")
		c.Next()
	}
}
