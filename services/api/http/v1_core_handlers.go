package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/02loveslollipop/howmuchwater/internal/apperr"
	"github.com/02loveslollipop/howmuchwater/internal/report"
	"github.com/02loveslollipop/howmuchwater/internal/store"
)

type seriesParams struct {
	Start string `form:"start" binding:"omitempty,datetime=2006-01-02"`
	End   string `form:"end" binding:"omitempty,datetime=2006-01-02"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=100000"`
	Order string `form:"order" binding:"omitempty,oneof=asc desc"`
}

// The chart is always the full ascending window.
type chartParams struct {
	Start string `form:"start" binding:"omitempty,datetime=2006-01-02"`
	End   string `form:"end" binding:"omitempty,datetime=2006-01-02"`
}

// handleV1ListSites returns every site with a stored series
// GET /api/v1/sites
func (s *Server) handleV1ListSites(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	sites, err := s.store.Sites(ctx)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": sites,
		"meta": gin.H{
			"count": len(sites),
		},
	})
}

// handleV1Series returns stored rows, newest first unless order=asc
// GET /api/v1/sites/:site_id/series
func (s *Server) handleV1Series(c *gin.Context) {
	siteID := c.Param("site_id")

	var params seriesParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit := params.Limit
	if limit == 0 {
		limit = s.cfg.DefaultLimit
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	rows, err := s.store.QuerySeries(ctx, store.SeriesQuery{
		SiteID:    siteID,
		Start:     params.Start,
		End:       params.End,
		Limit:     limit,
		Ascending: params.Order == "asc",
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": rows,
		"meta": gin.H{
			"site_id": siteID,
			"count":   len(rows),
			"limit":   limit,
		},
	})
}

// handleV1Chart returns positive discharge in date order for plotting
// GET /api/v1/sites/:site_id/chart
func (s *Server) handleV1Chart(c *gin.Context) {
	siteID := c.Param("site_id")

	var params chartParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	rows, err := s.store.QuerySeries(ctx, store.SeriesQuery{
		SiteID:    siteID,
		Start:     params.Start,
		End:       params.End,
		Ascending: true,
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	points := report.ChartPoints(rows)
	c.JSON(http.StatusOK, gin.H{
		"data": points,
		"meta": gin.H{
			"site_id": siteID,
			"count":   len(points),
		},
	})
}

func (s *Server) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrSiteNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "site not found"})
	case errors.Is(err, apperr.ErrInputFormat):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logger.Error("store query failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
