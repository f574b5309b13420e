package ui

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"finresearch/adapters/excel"
	"finresearch/internal/errors"
	"finresearch/internal/report"
	"finresearch/internal/research"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AddResearchRoutes registers the research API
func (s *Server) AddResearchRoutes() {
	api := s.router.Group("/api/research")
	{
		api.POST("", s.handleResearch())
		api.GET("/events", s.handleEvents())
		api.GET("/runs", s.handleListRuns())
		api.GET("/runs/:id", s.handleGetRun())
		api.GET("/runs/:id/report", s.handleRunReport())
		api.GET("/runs/:id/export.xlsx", s.handleRunExport())
		api.GET("/runs/:id/usage", s.handleRunUsage())
	}
}

type researchRequest struct {
	Question string `json:"question"`
	RunID    string `json:"run_id"`
}

func (s *Server) handleResearch() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req researchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.writeError(c, errors.InvalidInput("request body must be JSON with a question field"))
			return
		}
		if strings.TrimSpace(req.Question) == "" {
			s.writeError(c, errors.InvalidInput("Question is required"))
			return
		}

		var opts []research.RunOption
		if req.RunID != "" {
			if _, err := uuid.Parse(req.RunID); err != nil {
				s.writeError(c, errors.InvalidInput("run_id must be a UUID"))
				return
			}
			opts = append(opts, research.WithRunID(req.RunID))
		}

		state, err := s.engine.Run(c.Request.Context(), req.Question, opts...)
		if err != nil {
			s.writeError(c, err)
			return
		}

		if s.runs != nil {
			if err := s.runs.Save(c.Request.Context(), state); err != nil {
				s.logger.Warn("failed to archive run %s: %v", state.RunID, err)
			}
		}
		c.JSON(http.StatusOK, state)
	}
}

func (s *Server) handleEvents() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.hub == nil {
			s.writeError(c, errors.NotFound("event stream"))
			return
		}
		s.hub.HandleSSE(c)
	}
}

func (s *Server) handleListRuns() gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 20
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 || n > 500 {
				s.writeError(c, errors.InvalidInput("limit must be between 1 and 500"))
				return
			}
			limit = n
		}

		runs, err := s.runs.ListRecent(c.Request.Context(), limit)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
	}
}

func (s *Server) handleGetRun() gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := s.runs.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, state)
	}
}

func (s *Server) handleRunReport() gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := s.runs.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			s.writeError(c, err)
			return
		}
		page, err := report.RenderHTML(state)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", page)
	}
}

func (s *Server) handleRunExport() gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := s.runs.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			s.writeError(c, err)
			return
		}
		var buf bytes.Buffer
		if err := excel.WriteLedger(&buf, state); err != nil {
			s.writeError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="run-`+state.RunID+`.xlsx"`)
		c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
	}
}

func (s *Server) handleRunUsage() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.usage == nil {
			s.writeError(c, errors.NotFound("usage accounting"))
			return
		}
		runID, err := uuid.Parse(c.Param("id"))
		if err != nil {
			s.writeError(c, errors.InvalidInput("run id must be a UUID"))
			return
		}
		byOp, err := s.usage.RunUsage(c.Request.Context(), runID)
		if err != nil {
			s.writeError(c, errors.WithCode(errors.CodeDatabaseError, err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"run_id": runID.String(), "operations": byOp})
	}
}

// statusFor maps error codes to HTTP statuses
func statusFor(code string) int {
	switch code {
	case errors.CodeInvalidInput:
		return http.StatusBadRequest
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodePlanningError:
		return http.StatusUnprocessableEntity
	case errors.CodeCollaboratorUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps the error's code to a status. A collaborator outage
// nested under another code still reports as 502.
func (s *Server) writeError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	if errors.HasCode(err, errors.CodeCollaboratorUnavailable) {
		code = errors.CodeCollaboratorUnavailable
	}
	if code == "UNKNOWN" {
		code = errors.CodeInternalError
	}
	status := statusFor(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}
