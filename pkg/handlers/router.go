package handlers

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arnavshah/pharmacal-api/pkg/logger"
	"github.com/arnavshah/pharmacal-api/pkg/metrics"
)

const version = "1.0.0"

// Router builds the gin engine with every route registered. It is shared by
// the long-running server and the serverless entry point.
func (h *Handler) Router(l *zap.Logger, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(logger.GinMiddleware(l), gin.Recovery())
	if len(h.CORS.AllowOrigins) > 0 {
		r.Use(h.corsMiddleware(l))
	}

	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "Pharma-cal booking API",
			"version": version,
		})
	})
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if m != nil {
		r.GET("/metrics", gin.WrapH(m.Handler()))
	}

	r.POST("/admin/login", h.Login)

	// Public booking endpoints
	api := r.Group("/api")
	{
		api.GET("/slots", h.ListSlots)
		api.GET("/slots/:code", h.GetSlot)
		api.POST("/slots/:code/book", h.BookSlot)
		api.POST("/slots/:code/cancel", h.CancelSlot)
		api.GET("/requesters", h.ListRequesterNames)
		api.POST("/cover-requests", h.SubmitCoverRequest)
	}

	// Admin Endpoints
	admin := r.Group("/admin")
	admin.Use(h.AuthMiddleware())
	{
		admin.GET("/availability", h.GetAvailability)
		admin.PUT("/availability", h.UpdateAvailability)
		admin.POST("/availability/preview", h.PreviewAvailability)

		admin.GET("/slots", h.ListSlotsAdmin)
		admin.POST("/slots/import", h.ImportSheet)
		admin.GET("/slots/export", h.ExportSheet)

		admin.GET("/staff", h.ListStaff)
		admin.POST("/staff", h.UpsertStaff)
		admin.DELETE("/staff", h.DeleteStaff)

		admin.GET("/requesters", h.ListRequesters)
		admin.POST("/requesters", h.AddRequester)
		admin.DELETE("/requesters", h.DeleteRequester)

		admin.GET("/cover-requests", h.ListCoverRequests)
	}

	return r
}

func (h *Handler) corsMiddleware(l *zap.Logger) gin.HandlerFunc {
	if l != nil {
		l.Info("cors enabled", zap.Strings("allow_origins", h.CORS.AllowOrigins))
	}
	return cors.New(cors.Config{
		AllowOrigins:  h.CORS.AllowOrigins,
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", bookingRefHeader},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        h.CORS.MaxAge,
	})
}
