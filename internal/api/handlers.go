// Package api exposes the risk-assessment service over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/diabepredict/diabepredict/internal/auth"
	"github.com/diabepredict/diabepredict/internal/batch"
	"github.com/diabepredict/diabepredict/internal/model"
	"github.com/diabepredict/diabepredict/internal/score"
	"github.com/diabepredict/diabepredict/internal/store"
)

type Handler struct {
	store  store.Store
	scorer model.Scorer
	tokens *auth.TokenIssuer
}

func NewHandler(st store.Store, scorer model.Scorer, tokens *auth.TokenIssuer) *Handler {
	return &Handler{store: st, scorer: scorer, tokens: tokens}
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Readyz(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"db":     fmt.Sprintf("unhealthy: %v", err),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "ok"})
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if req.Username == "" || req.Password == "" || req.Email == "" {
		validationError(c, "username, password and email are required")
		return
	}
	if len(req.Password) < 6 {
		validationError(c, "password must be at least 6 characters")
		return
	}
	if !validEmail(req.Email) {
		validationError(c, "invalid email address")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		internalError(c, err)
		return
	}

	id, err := h.store.CreateUser(c.Request.Context(), req.Username, hash, req.Email)
	if errors.Is(err, store.ErrDuplicateUsername) {
		c.JSON(http.StatusConflict, gin.H{"error": "username already exists"})
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":       id,
		"username": req.Username,
		"email":    req.Email,
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	user, err := h.store.UserByUsername(c.Request.Context(), req.Username)
	if errors.Is(err, store.ErrNotFound) || (err == nil && !auth.CheckPassword(user.PasswordHash, req.Password)) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"username": user.Username,
	})
}

func (h *Handler) ModelInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.scorer.Info())
}

func (h *Handler) Assess(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var rec model.PatientRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if err := rec.Validate(); err != nil {
		validationError(c, err.Error())
		return
	}

	p, err := h.scorer.Score(c.Request.Context(), rec)
	if err != nil {
		internalError(c, err)
		return
	}
	assessment := score.Assess(p, h.scorer.Info().Name)

	params, err := json.Marshal(rec)
	if err != nil {
		internalError(c, err)
		return
	}
	analysisID, err := h.store.CreateAnalysis(c.Request.Context(), &model.Analysis{
		UserID:       userID,
		AnalysisType: model.AnalysisIndividual,
		Parameters:   string(params),
		Result:       string(assessment.Band),
		Probability:  assessment.Probability,
	})
	if err != nil {
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"analysisId": analysisID,
		"assessment": assessment,
	})
}

func (h *Handler) AssessBatch(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing CSV upload in field \"file\""})
		return
	}
	f, err := file.Open()
	if err != nil {
		internalError(c, err)
		return
	}
	defer f.Close()

	report, err := batch.Process(c.Request.Context(), f, h.scorer)
	if err != nil {
		var missing *batch.MissingColumnsError
		if errors.As(err, &missing) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "missing_columns",
				"columns": missing.Columns,
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params, err := json.Marshal(gin.H{
		"batchId":  report.BatchID,
		"filename": file.Filename,
		"summary":  report.Summary,
	})
	if err != nil {
		internalError(c, err)
		return
	}
	analysisID, err := h.store.CreateAnalysis(c.Request.Context(), &model.Analysis{
		UserID:       userID,
		AnalysisType: model.AnalysisBatch,
		Parameters:   string(params),
		Result:       fmt.Sprintf("%d rows scored, %d high risk", report.Summary.Scored, report.Summary.HighRisk),
		Probability:  report.Summary.MeanProbability,
	})
	if err != nil {
		internalError(c, err)
		return
	}

	if c.Query("format") == "csv" {
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename(file.Filename)))
		c.Status(http.StatusOK)
		if err := report.WriteCSV(c.Writer); err != nil {
			log.Printf("stream batch csv: %v", err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"analysisId": analysisID,
		"report":     report,
	})
}

func (h *Handler) ListAnalyses(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	analysisType := c.Query("type")
	switch analysisType {
	case "", model.AnalysisIndividual, model.AnalysisBatch:
	default:
		validationError(c, "type must be individual or batch")
		return
	}

	analyses, err := h.store.AnalysesByUser(c.Request.Context(), userID, analysisType)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analyses": analyses})
}

func (h *Handler) GetAnalysis(c *gin.Context) {
	userID, ok := auth.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid analysis id"})
		return
	}

	analysis, err := h.store.AnalysisByID(c.Request.Context(), id, userID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
		return
	}
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

func validationError(c *gin.Context, detail string) {
	c.JSON(http.StatusUnprocessableEntity, gin.H{
		"error":  "validation_failed",
		"detail": detail,
	})
}

func internalError(c *gin.Context, err error) {
	log.Printf("internal error: %v", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

func validEmail(email string) bool {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	domain := email[at+1:]
	dot := strings.Index(domain, ".")
	return dot > 0 && dot < len(domain)-1
}

func exportFilename(uploaded string) string {
	base := strings.TrimSuffix(uploaded, ".csv")
	if base == "" {
		base = "cohort"
	}
	return base + "_results.csv"
}
