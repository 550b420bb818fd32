package api

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/diabepredict/diabepredict/internal/auth"
	"github.com/diabepredict/diabepredict/internal/model"
	"github.com/diabepredict/diabepredict/internal/store"
)

// maxUploadBytes bounds request bodies; cohort CSVs are the largest
// legitimate payload.
const maxUploadBytes = 8 << 20

// SetupRouter wires middleware and routes around the handler set.
func SetupRouter(st store.Store, scorer model.Scorer, tokens *auth.TokenIssuer) *gin.Engine {
	h := NewHandler(st, scorer, tokens)

	router := gin.New()
	router.Use(
		gin.Logger(),
		gin.Recovery(),
		limitBodySize(maxUploadBytes),
		cors.New(cors.Config{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
			MaxAge:       12 * time.Hour,
		}),
	)

	router.GET("/healthz", h.Healthz)
	router.GET("/readyz", h.Readyz)

	v1 := router.Group("/api/v1")
	v1.POST("/auth/register", h.Register)
	v1.POST("/auth/login", h.Login)
	v1.GET("/model", h.ModelInfo)

	protected := v1.Group("", auth.Middleware(tokens))
	protected.POST("/assessments", h.Assess)
	protected.POST("/assessments/batch", h.AssessBatch)
	protected.GET("/analyses", h.ListAnalyses)
	protected.GET("/analyses/:id", h.GetAnalysis)

	return router
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
