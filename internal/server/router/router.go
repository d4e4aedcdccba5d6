package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/campcheck/internal/server/handlers"
)

// maxMultipartMemory bounds in-memory buffering of uploaded scan frames.
const maxMultipartMemory = 8 << 20

// New wires the Gin engine with required routes and middlewares. The
// WhatsApp routes are only mounted when webhook is non-nil.
func New(attendance *handlers.AttendanceHandler, webhook *handlers.WebhookHandler, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.MaxMultipartMemory = maxMultipartMemory
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	campers := r.Group("/campers")
	campers.POST("", attendance.RegisterCamper)
	campers.GET("", attendance.ListCampers)
	campers.GET("/export", attendance.ExportCampers)
	campers.GET("/:id", attendance.GetCamper)
	campers.GET("/:id/qr", attendance.CamperQRCode)
	campers.GET("/:id/badge.pdf", attendance.CamperBadge)
	r.GET("/groups", attendance.Groups)

	sessions := r.Group("/sessions")
	sessions.POST("", attendance.StartSession)
	sessions.GET("", attendance.History)
	sessions.GET("/active", attendance.ActiveSession)
	sessions.GET("/active/missing", attendance.MissingCampers)
	sessions.POST("/active/scans", attendance.RecordScan)
	sessions.POST("/active/scans/image", attendance.RecordScanImage)
	sessions.POST("/active/close", attendance.CloseSession)
	sessions.POST("/active/cancel", attendance.CancelSession)
	sessions.GET("/:id", attendance.SessionRecord)

	if webhook != nil {
		r.GET("/webhook", webhook.Verify)
		r.POST("/webhook", webhook.Receive)
		r.POST("/send-message", webhook.SendMessage)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if logger != nil {
		logger.Info("router initialized", zap.Bool("whatsapp", webhook != nil))
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
