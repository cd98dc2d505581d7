package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/bloodcell-ai-server/internal/domain"
)

// handleUpload validates and stores a smear image, then starts the
// analysis pipeline in the background.
func (s *Server) handleUpload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		abortWithError(c, http.StatusBadRequest, domain.ErrInvalidInput, "Missing file upload")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		abortWithError(c, http.StatusBadRequest, domain.ErrInvalidInput, "File must be an image")
		return
	}

	maxSize := s.config.Uploads.MaxSizeBytes
	if header.Size > maxSize {
		abortWithError(c, http.StatusBadRequest, domain.ErrInvalidInput,
			fmt.Sprintf("File size too large (max %dMB)", maxSize/(1024*1024)))
		return
	}

	image, err := io.ReadAll(io.LimitReader(file, maxSize))
	if err != nil {
		abortWithError(c, http.StatusInternalServerError, domain.ErrInternalServer, "Failed to read upload")
		return
	}

	analysisID := uuid.New().String()

	if err := os.MkdirAll(s.config.Uploads.Dir, 0755); err != nil {
		abortWithError(c, http.StatusInternalServerError, domain.ErrInternalServer, "Failed to prepare upload storage")
		return
	}
	imagePath := filepath.Join(s.config.Uploads.Dir, fmt.Sprintf("%s_%s", analysisID, filepath.Base(header.Filename)))
	if err := os.WriteFile(imagePath, image, 0644); err != nil {
		s.logger.WithError(err).Error("Failed to store uploaded image")
		abortWithError(c, http.StatusInternalServerError, domain.ErrInternalServer, "Failed to store upload")
		return
	}

	err = s.tracker.Set(c.Request.Context(), analysisID, domain.Progress{
		Status:   domain.StatusUploaded,
		Progress: 10,
		Stage:    "Image uploaded successfully",
	})
	if err != nil {
		s.logger.WithError(err).Warn("Failed to record initial progress")
	}

	// The pipeline outlives the request; detach it from the request context.
	go s.analyzer.Run(context.Background(), analysisID, imagePath, image)

	c.JSON(http.StatusOK, gin.H{
		"analysis_id": analysisID,
		"filename":    header.Filename,
		"status":      domain.StatusUploaded,
		"message":     "Image uploaded successfully. Analysis started.",
	})
}

// handleProgress reports where a running analysis stands.
func (s *Server) handleProgress(c *gin.Context) {
	analysisID := c.Param("id")

	p, found, err := s.tracker.Get(c.Request.Context(), analysisID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to read progress")
		abortWithError(c, http.StatusInternalServerError, domain.ErrInternalServer, "Failed to read progress")
		return
	}
	if !found {
		abortWithError(c, http.StatusNotFound, domain.ErrNotFound, "Analysis not found")
		return
	}

	c.JSON(http.StatusOK, p)
}

// handleResults returns the complete stored report.
func (s *Server) handleResults(c *gin.Context) {
	analysisID := c.Param("id")

	report, err := s.store.GetReport(c.Request.Context(), analysisID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load analysis result")
		abortWithError(c, http.StatusInternalServerError, domain.ErrDatabaseError, "Failed to load analysis result")
		return
	}
	if report == nil {
		abortWithError(c, http.StatusNotFound, domain.ErrNotFound, "Analysis results not found")
		return
	}

	c.JSON(http.StatusOK, report)
}

// handleExplanation generates (or regenerates) the medical narrative.
func (s *Server) handleExplanation(c *gin.Context) {
	analysisID := c.Param("id")

	explanation, err := s.analyzer.GenerateExplanation(c.Request.Context(), analysisID)
	if errors.Is(err, domain.ErrReportNotFound) {
		abortWithError(c, http.StatusNotFound, domain.ErrNotFound, "Analysis results not found")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to generate explanation")
		abortWithError(c, http.StatusInternalServerError, domain.ErrGeneration, "Error generating explanation")
		return
	}

	c.JSON(http.StatusOK, gin.H{"explanation": explanation})
}

// followUpRequest is the body for asking a question about a report.
type followUpRequest struct {
	Question string `json:"question" binding:"required"`
}

// handleAskFollowUp answers a question about a stored report and records
// the exchange.
func (s *Server) handleAskFollowUp(c *gin.Context) {
	analysisID := c.Param("id")

	var req followUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, domain.ErrInvalidInput, "Question is required")
		return
	}

	answer, err := s.analyzer.AnswerFollowUp(c.Request.Context(), analysisID, req.Question)
	if errors.Is(err, domain.ErrReportNotFound) {
		abortWithError(c, http.StatusNotFound, domain.ErrNotFound, "Analysis results not found")
		return
	}
	if err != nil {
		s.logger.WithError(err).Error("Failed to answer follow-up question")
		abortWithError(c, http.StatusInternalServerError, domain.ErrGeneration, "Error answering question")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"question": req.Question,
		"answer":   answer,
	})
}

// handleListFollowUps returns all recorded exchanges, oldest first.
func (s *Server) handleListFollowUps(c *gin.Context) {
	analysisID := c.Param("id")

	followUps, err := s.store.ListFollowUps(c.Request.Context(), analysisID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list follow-up questions")
		abortWithError(c, http.StatusInternalServerError, domain.ErrDatabaseError, "Failed to list follow-up questions")
		return
	}
	if followUps == nil {
		followUps = []domain.FollowUp{}
	}

	c.JSON(http.StatusOK, gin.H{"follow_ups": followUps})
}

// handleRecentAnalyses lists the most recently created reports.
func (s *Server) handleRecentAnalyses(c *gin.Context) {
	limit := 10
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			abortWithError(c, http.StatusBadRequest, domain.ErrInvalidInput, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	analyses, err := s.store.RecentAnalyses(c.Request.Context(), limit)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list recent analyses")
		abortWithError(c, http.StatusInternalServerError, domain.ErrDatabaseError, "Failed to list recent analyses")
		return
	}
	if analyses == nil {
		analyses = []domain.AnalysisSummary{}
	}

	c.JSON(http.StatusOK, gin.H{"analyses": analyses})
}

// progressDeleter is implemented by trackers that can drop entries.
type progressDeleter interface {
	Delete(ctx context.Context, analysisID string) error
}

// handleDeleteAnalysis removes a report, its follow-ups and its progress
// entry.
func (s *Server) handleDeleteAnalysis(c *gin.Context) {
	analysisID := c.Param("id")

	report, err := s.store.GetReport(c.Request.Context(), analysisID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to load analysis result")
		abortWithError(c, http.StatusInternalServerError, domain.ErrDatabaseError, "Failed to load analysis result")
		return
	}
	if report == nil {
		abortWithError(c, http.StatusNotFound, domain.ErrNotFound, "Analysis results not found")
		return
	}

	if err := s.store.DeleteAnalysis(c.Request.Context(), analysisID); err != nil {
		s.logger.WithError(err).Error("Failed to delete analysis")
		abortWithError(c, http.StatusInternalServerError, domain.ErrDatabaseError, "Failed to delete analysis")
		return
	}

	if deleter, ok := s.tracker.(progressDeleter); ok {
		if err := deleter.Delete(c.Request.Context(), analysisID); err != nil {
			s.logger.WithError(err).Warn("Failed to delete progress entry")
		}
	}

	c.JSON(http.StatusOK, gin.H{"deleted": analysisID})
}

// handleStats returns storage-level statistics.
func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.store.Stats(c.Request.Context())
	if err != nil {
		s.logger.WithError(err).Error("Failed to read storage stats")
		abortWithError(c, http.StatusInternalServerError, domain.ErrDatabaseError, "Failed to read storage stats")
		return
	}

	c.JSON(http.StatusOK, stats)
}
