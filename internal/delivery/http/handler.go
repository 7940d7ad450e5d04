package http

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/bytelense/backend/internal/domain"
	"github.com/bytelense/backend/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Version is reported by the health and config endpoints
const Version = "1.0.0"

// ProfileUsecase is the profile surface used by the handlers
type ProfileUsecase interface {
	Login(ctx context.Context, name string) (*usecase.LoginResult, error)
	Onboard(ctx context.Context, req domain.OnboardingRequest) (*domain.UserProfile, error)
	Get(ctx context.Context, name string) (*domain.UserProfile, error)
	Update(ctx context.Context, name string, update domain.ProfileUpdate) (*domain.UserProfile, []string, error)
}

// ScanUsecase runs a scan and reports its events
type ScanUsecase interface {
	Run(ctx context.Context, req domain.ScanRequest, events domain.ScanEvents) (*domain.ScanResult, error)
}

// Features describes which optional capabilities are active
type Features struct {
	AIScoring bool `json:"ai_scoring"`
	USDA      bool `json:"usda_lookup"`
	WebSearch bool `json:"web_search"`
}

// HandlerOptions holds request limits and advertised features
type HandlerOptions struct {
	MaxImageSizeMB int
	MaxIterations  int
	Features       Features
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	profiles ProfileUsecase
	scans    ScanUsecase
	opts     HandlerOptions
	logger   zerolog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(profiles ProfileUsecase, scans ScanUsecase, opts HandlerOptions, logger zerolog.Logger) *Handler {
	if opts.MaxImageSizeMB <= 0 {
		opts.MaxImageSizeMB = 10
	}
	return &Handler{
		profiles: profiles,
		scans:    scans,
		opts:     opts,
		logger:   logger.With().Str("component", "http").Logger(),
	}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "bytelense-backend",
		"version": Version,
	})
}

// ClientConfig returns the features and limits the client should respect
func (h *Handler) ClientConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version": Version,
		"features": gin.H{
			"camera":        true,
			"upload":        true,
			"generative_ui": true,
			"citations":     true,
			"ai_scoring":    h.opts.Features.AIScoring,
			"usda_lookup":   h.opts.Features.USDA,
			"web_search":    h.opts.Features.WebSearch,
		},
		"limits": gin.H{
			"max_image_size_mb":    h.opts.MaxImageSizeMB,
			"max_react_iterations": h.opts.MaxIterations,
		},
	})
}

type loginRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

// Login reports whether a profile exists for the given name
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	result, err := h.profiles.Login(c.Request.Context(), req.Name)
	if err != nil {
		h.profileError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Onboard creates a new profile
func (h *Handler) Onboard(c *gin.Context) {
	var req domain.OnboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	profile, err := h.profiles.Onboard(c.Request.Context(), req)
	if err != nil {
		h.profileError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":       true,
		"profile":       profile,
		"daily_targets": profile.DailyTargets,
	})
}

// GetProfile returns a stored profile
func (h *Handler) GetProfile(c *gin.Context) {
	profile, err := h.profiles.Get(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.profileError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// UpdateProfile applies a partial profile update
func (h *Handler) UpdateProfile(c *gin.Context) {
	var update domain.ProfileUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	profile, fields, err := h.profiles.Update(c.Request.Context(), c.Param("name"), update)
	if err != nil {
		h.profileError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"profile":        profile,
		"updated_fields": fields,
	})
}

func (h *Handler) profileError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrProfileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
	case errors.Is(err, domain.ErrProfileExists):
		c.JSON(http.StatusConflict, gin.H{"error": "a profile with this name already exists"})
	default:
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg("profile request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// Scan runs a scan and streams its progress as server-sent events
func (h *Handler) Scan(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxScanBodyBytes())

	var req domain.ScanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "image exceeds the maximum size"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid scan request: " + err.Error()})
		return
	}
	if req.Source == "" {
		req.Source = "camera"
	}

	payload := req.ImageBase64
	if strings.HasPrefix(payload, "data:") {
		if _, data, ok := strings.Cut(payload, ","); ok {
			payload = data
		}
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > h.opts.MaxImageSizeMB<<20 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image exceeds the maximum size"})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	// the result is delivered through the event stream
	_, _ = h.scans.Run(c.Request.Context(), req, &sseEvents{c: c})
}

// base64 inflates the image by 4/3; the rest covers the JSON envelope
const scanBodyHeadroom = 64 << 10

func (h *Handler) maxScanBodyBytes() int64 {
	return int64(h.opts.MaxImageSizeMB<<20)*4/3 + scanBodyHeadroom
}

// Scan event names
const (
	EventScanProgress = "scan_progress"
	EventScanError    = "scan_error"
	EventScanComplete = "scan_complete"
)

// sseEvents writes scan notifications to the response stream
type sseEvents struct {
	c *gin.Context
}

func (e *sseEvents) Progress(event domain.ScanProgress) {
	e.send(EventScanProgress, event)
}

func (e *sseEvents) Failed(event domain.ScanError) {
	e.send(EventScanError, event)
}

func (e *sseEvents) Completed(result domain.ScanResult) {
	e.send(EventScanComplete, gin.H{"result": result})
}

func (e *sseEvents) send(name string, data any) {
	if e.c.Request.Context().Err() != nil {
		return
	}
	e.c.SSEvent(name, data)
	e.c.Writer.Flush()
}
