package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go-rivermind/internal/config"
	"go-rivermind/internal/decoder"
	apperrors "go-rivermind/internal/errors"
	"go-rivermind/internal/logger"
	"go-rivermind/internal/service"
	"go-rivermind/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// NewHandler builds the HTTP API
func NewHandler(svc service.RiverService, cfg *config.Config) http.Handler {
	r := gin.New()

	// Add middleware
	r.Use(
		gin.Recovery(),
		requestLogger(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", healthCheck)

	api := r.Group("/api")
	api.POST("/sessions", createSession(svc))
	api.GET("/sessions/:id", getSession(svc))
	api.DELETE("/sessions/:id", deleteSession(svc))
	api.POST("/sessions/:id/frames", analyzeFrame(svc, cfg))
	api.POST("/sessions/:id/frames/remote", analyzeRemoteFrame(svc, cfg))

	api.POST("/flow", flow(svc, cfg))
	api.POST("/drowning", analyzeVideo(svc, cfg))
	api.GET("/alerts", getAlerts(svc))
	api.GET("/emotion", getEmotion(svc))
	api.POST("/classify", classify(svc))
	api.POST("/drowning_alert", recordDrowningAlert(svc))
	api.GET("/drowning_alerts", listDrowningAlerts(svc))
	api.GET("/stats", stats(svc))

	r.GET("/ws/sessions/:id/stream", streamFrames(svc, cfg))

	return r
}

func createSession(svc service.RiverService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusCreated, svc.CreateSession())
	}
}

func getSession(svc service.RiverService) gin.HandlerFunc {
	return func(c *gin.Context) {
		sum, err := svc.GetSession(c.Param("id"))
		if err != nil {
			respondAppError(c, "failed to get session", err)
			return
		}
		c.JSON(http.StatusOK, sum)
	}
}

func deleteSession(svc service.RiverService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.DeleteSession(c.Param("id")); err != nil {
			respondAppError(c, "failed to delete session", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func analyzeFrame(svc service.RiverService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.AnalysisTimeout)
		defer cancel()

		data, err := formFile(c, "frame")
		if err != nil {
			respondAppError(c, "invalid frame upload", err)
			return
		}

		resp, err := svc.AnalyzeFrame(ctx, c.Param("id"), data, c.PostForm("expected_label"))
		if err != nil {
			respondAppError(c, "frame analysis failed", err)
			return
		}

		logger.WithSession(resp.SessionID).WithFields(logrus.Fields{
			"frame_index":        resp.FrameIndex,
			"emotion":            resp.Reading.Emotion,
			"processing_time_ms": time.Since(startTime).Milliseconds(),
		}).Debug("Frame analysis completed")

		c.JSON(http.StatusOK, resp)
	}
}

func analyzeRemoteFrame(svc service.RiverService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.FrameFetchTimeout+cfg.AnalysisTimeout)
		defer cancel()

		var req models.RemoteFrameRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}

		resp, err := svc.AnalyzeRemoteFrame(ctx, c.Param("id"), req)
		if err != nil {
			respondAppError(c, "remote frame analysis failed", err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func flow(svc service.RiverService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.AnalysisTimeout)
		defer cancel()

		frame, err := formFile(c, "frame")
		if err != nil {
			respondAppError(c, "invalid frame upload", err)
			return
		}
		var prev []byte
		if _, err := c.FormFile("prev_gray"); err == nil {
			if prev, err = formFile(c, "prev_gray"); err != nil {
				respondAppError(c, "invalid previous frame upload", err)
				return
			}
		}

		resp, err := svc.Flow(ctx, c.Query("session_id"), frame, prev)
		if err != nil {
			respondAppError(c, "flow analysis failed", err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func analyzeVideo(svc service.RiverService, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.RequestTimeout)
		defer cancel()

		fh, err := c.FormFile("video")
		if err != nil {
			respondError(c, http.StatusBadRequest, "no video file provided", err)
			return
		}
		if !decoder.IsVideoFile(fh.Filename) {
			respondAppError(c, "invalid file type",
				apperrors.NewValidationError("Please upload a video file (mp4, avi, mov, or mkv)", nil).WithDetails("filename=%s", fh.Filename))
			return
		}

		path, err := saveUpload(c, fh, cfg.UploadDir)
		if err != nil {
			respondAppError(c, "failed to save video file", err)
			return
		}
		defer func() {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				logger.WithError(err).WithField("path", path).Warn("Failed to remove uploaded video")
			}
		}()

		resp, err := svc.AnalyzeVideo(ctx, path)
		if err != nil {
			respondAppError(c, "video analysis failed", err)
			return
		}

		logger.WithFields(logrus.Fields{
			"frames":  resp.FramesAnalyzed,
			"emotion": resp.Emotion,
		}).Info("Video analysis completed")

		c.JSON(http.StatusOK, resp)
	}
}

func getAlerts(svc service.RiverService) gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := svc.Alerts(c.Query("session_id"))
		if err != nil {
			respondAppError(c, "failed to evaluate alerts", err)
			return
		}
		c.JSON(http.StatusOK, report)
	}
}

func getEmotion(svc service.RiverService) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := svc.Emotion(c.Query("session_id"))
		if err != nil {
			respondAppError(c, "failed to evaluate emotion", err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func classify(svc service.RiverService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ClassifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "invalid request format", err)
			return
		}
		resp, err := svc.Classify(req)
		if err != nil {
			respondAppError(c, "classification failed", err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func recordDrowningAlert(svc service.RiverService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.DrowningAlertRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, "no alert data provided", err)
			return
		}
		alert, err := svc.RecordDrowningAlert(c.Request.Context(), req)
		if err != nil {
			respondAppError(c, "failed to record alert", err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"success": true,
			"message": "Alert recorded successfully",
			"alert":   alert,
		})
	}
}

func listDrowningAlerts(svc service.RiverService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				respondAppError(c, "invalid limit", apperrors.NewValidationError("limit must be a non-negative integer", err))
				return
			}
			limit = n
		}
		list, err := svc.DrowningAlerts(c.Request.Context(), limit)
		if err != nil {
			respondAppError(c, "failed to list alerts", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"alerts": list})
	}
}

func stats(svc service.RiverService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, svc.Stats())
	}
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "available",
		"version": "1.0.0",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// formFile reads an uploaded multipart file into memory
func formFile(c *gin.Context, field string) ([]byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("no %s provided", field), err)
	}
	f, err := fh.Open()
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("could not open %s", field), err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("could not read %s", field), err)
	}
	return data, nil
}

// saveUpload stores a video under dir with a timestamped name
func saveUpload(c *gin.Context, fh *multipart.FileHeader, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", apperrors.NewInternalError("could not create upload directory", err)
	}
	name := fmt.Sprintf("video_%s%s", time.Now().Format("20060102_150405.000000000"), filepath.Ext(fh.Filename))
	path := filepath.Join(dir, name)
	if err := c.SaveUploadedFile(fh, path); err != nil {
		return "", apperrors.NewInternalError("could not save upload", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		os.Remove(path)
		return "", apperrors.NewValidationError("uploaded video is empty", err)
	}
	return path, nil
}

// Middleware and helper functions
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"ip":          c.ClientIP(),
		}).Info("Request handled")
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err.Err)
		}
	}
}

func determineStatusCode(err error) int {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// respondAppError responds with the status code carried by err
func respondAppError(c *gin.Context, message string, err error) {
	respondError(c, determineStatusCode(err), message, err)
}

func respondError(c *gin.Context, code int, message string, err error) {
	fields := logrus.Fields{
		"status_code": code,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}
	entry := logger.WithError(err).WithFields(fields)
	if code >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	resp := models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: fmt.Sprintf("%s: %v", message, err),
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		resp.Type = string(appErr.Type)
	}
	c.AbortWithStatusJSON(code, resp)
}
