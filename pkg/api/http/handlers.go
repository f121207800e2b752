package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/disasterproject/fanout/internal/domain"
)

// RunSubmitRequest represents a run submission request
type RunSubmitRequest struct {
	Description string `json:"description" binding:"required"`
	Context     string `json:"context"`
	MaxSubTasks int    `json:"max_subtasks"`
	Strategy    string `json:"strategy"`
}

// RunSubmitResponse represents a run submission response
type RunSubmitResponse struct {
	RunID       string `json:"run_id"`
	Status      string `json:"status"`
	SubmittedAt string `json:"submitted_at"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks": gin.H{
			"orchestrator": "ok",
			"workers":      s.pool.Size(),
		},
	})
}

// handleSubmitRun handles run submission
func (s *Server) handleSubmitRun(c *gin.Context) {
	var req RunSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Error("invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	var override domain.Strategy
	if req.Strategy != "" {
		parsed, err := domain.ParseStrategy(req.Strategy)
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: ErrorDetail{
					Code:    "INVALID_STRATEGY",
					Message: err.Error(),
				},
			})
			return
		}
		override = parsed
	}

	task := domain.Task{
		Description: req.Description,
		Context:     req.Context,
		MaxSubTasks: req.MaxSubTasks,
	}

	runID, err := s.manager.Submit(c.Request.Context(), task, override)
	if err != nil {
		s.logger.Error("failed to submit run", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: ErrorDetail{
				Code:    "SUBMISSION_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusCreated, RunSubmitResponse{
		RunID:       runID,
		Status:      string(domain.RunStateSubmitted),
		SubmittedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// handleListRuns handles listing finished runs
func (s *Server) handleListRuns(c *gin.Context) {
	results, err := s.store.List(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to list runs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "STORAGE_ERROR",
				Message: "Failed to list runs",
			},
		})
		return
	}

	type runSummary struct {
		RunID       string  `json:"run_id"`
		Success     bool    `json:"success"`
		Strategy    string  `json:"strategy"`
		SubTasks    int     `json:"subtasks"`
		TotalTokens int     `json:"total_tokens"`
		TotalCost   float64 `json:"total_cost"`
	}

	summaries := make([]runSummary, 0, len(results))
	for _, r := range results {
		summaries = append(summaries, runSummary{
			RunID:       r.TaskID,
			Success:     r.Success,
			Strategy:    string(r.Strategy),
			SubTasks:    len(r.SubTaskResults),
			TotalTokens: r.TotalTokens,
			TotalCost:   r.TotalCost,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  summaries,
		"total": len(summaries),
	})
}

// handleGetStatus handles getting run status
func (s *Server) handleGetStatus(c *gin.Context) {
	runID := c.Param("id")

	state, err := s.manager.GetStatus(c.Request.Context(), runID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Run not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id": runID,
		"status": state,
	})
}

// handleGetResult handles getting a run result
func (s *Server) handleGetResult(c *gin.Context) {
	runID := c.Param("id")

	result, err := s.manager.GetResult(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, domain.ErrResultNotFound) {
			// Distinguish a still-active run from an unknown one
			if state, stErr := s.manager.GetStatus(c.Request.Context(), runID); stErr == nil && !state.Terminal() {
				c.JSON(http.StatusConflict, ErrorResponse{
					Error: ErrorDetail{
						Code:    "NOT_COMPLETED",
						Message: "Run not yet completed",
					},
				})
				return
			}
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: ErrorDetail{
					Code:    "NOT_FOUND",
					Message: "Run not found",
				},
			})
			return
		}
		s.logger.Error("failed to get result", zap.String("run_id", runID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "STORAGE_ERROR",
				Message: "Failed to retrieve result",
			},
		})
		return
	}

	c.JSON(http.StatusOK, result)
}

// handleCancelRun handles run cancellation
func (s *Server) handleCancelRun(c *gin.Context) {
	runID := c.Param("id")

	if err := s.manager.Cancel(c.Request.Context(), runID); err != nil {
		if errors.Is(err, domain.ErrRunNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error: ErrorDetail{
					Code:    "NOT_FOUND",
					Message: "Run not found",
				},
			})
			return
		}
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: ErrorDetail{
				Code:    "CANCELLATION_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":       runID,
		"status":       string(domain.RunStateCancelled),
		"cancelled_at": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleWorkerStats handles getting per-account usage statistics
func (s *Server) handleWorkerStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"accounts":  s.pool.Stats(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
