// Package server exposes the story pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Yates-Labs/beanstalk/internal/orchestrator"
	"github.com/Yates-Labs/beanstalk/internal/tracker"
)

var errStoreDisabled = errors.New("story store is disabled")

const shutdownTimeout = 10 * time.Second

// Server serves the pipeline and the stored stories.
type Server struct {
	pipeline *orchestrator.Pipeline
	router   *gin.Engine
	logger   logrus.FieldLogger
}

// New builds the router. A nil logger uses the standard logger.
func New(pipeline *orchestrator.Pipeline, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Server{
		pipeline: pipeline,
		router:   gin.New(),
		logger:   logger.WithField("component", "server"),
	}

	s.router.Use(gin.Recovery(), s.requestLogger())

	s.router.GET("/healthz", handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/v1")
	v1.POST("/stories", s.handleCreate)
	v1.GET("/stories", s.handleList)
	v1.GET("/stories/:id", s.handleGet)
	v1.POST("/stories/:id/like", s.handleLike)
	v1.GET("/stories/:id/questions", s.handleQuestions)
	v1.POST("/stories/:id/answer", s.handleAnswer)
	v1.GET("/report", s.handleReport)

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("Server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("Server stopped")
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("Request served")
	}
}

func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCreate(c *gin.Context) {
	var req struct {
		Request string `json:"request"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	res, err := s.pipeline.Run(c.Request.Context(), req.Request)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("story run failed: %v", err)})
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) handleList(c *gin.Context) {
	store := s.pipeline.Store()
	if store == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": errStoreDisabled.Error()})
		return
	}

	records, err := store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("failed to list stories: %v", err)})
		return
	}
	out := make([]tracker.Record, len(records))
	for i, rec := range records {
		out[i] = rec.Redacted()
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleGet(c *gin.Context) {
	rec, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, rec.Redacted())
}

func (s *Server) handleLike(c *gin.Context) {
	var req struct {
		Liked *bool `json:"liked" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"liked\": true|false}"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	store := s.pipeline.Store()
	if store == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": errStoreDisabled.Error()})
		return
	}

	rec, err := store.SetLiked(c.Request.Context(), id, *req.Liked)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec.Redacted())
}

func (s *Server) handleQuestions(c *gin.Context) {
	rec, ok := s.lookupSafe(c)
	if !ok {
		return
	}
	questions := s.pipeline.QA().SuggestQuestions(c.Request.Context(), rec.StoryValue())
	c.JSON(http.StatusOK, gin.H{"id": rec.ID, "questions": questions})
}

func (s *Server) handleAnswer(c *gin.Context) {
	var req struct {
		Question string `json:"question" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "body must be {\"question\": \"...\"}"})
		return
	}
	rec, ok := s.lookupSafe(c)
	if !ok {
		return
	}

	answer := s.pipeline.Ask(c.Request.Context(), rec.StoryValue(), req.Question)
	c.JSON(http.StatusOK, gin.H{"id": rec.ID, "question": req.Question, "answer": answer})
}

func (s *Server) handleReport(c *gin.Context) {
	store := s.pipeline.Store()
	if store == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": errStoreDisabled.Error()})
		return
	}

	records, err := store.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("failed to list stories: %v", err)})
		return
	}
	c.JSON(http.StatusOK, tracker.Summarize(records))
}

// lookup resolves the :id parameter to a record, writing the error response
// itself when it cannot.
func (s *Server) lookup(c *gin.Context) (tracker.Record, bool) {
	id, ok := parseID(c)
	if !ok {
		return tracker.Record{}, false
	}
	store := s.pipeline.Store()
	if store == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": errStoreDisabled.Error()})
		return tracker.Record{}, false
	}

	rec, err := store.Get(c.Request.Context(), id)
	if err != nil {
		writeStoreError(c, err)
		return tracker.Record{}, false
	}
	return rec, true
}

// lookupSafe is lookup restricted to stories that passed the safety gate.
func (s *Server) lookupSafe(c *gin.Context) (tracker.Record, bool) {
	rec, ok := s.lookup(c)
	if !ok {
		return rec, false
	}
	if !rec.Evaluation.SafetyPassed {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("story %d failed the safety check", rec.ID)})
		return rec, false
	}
	return rec, true
}

func parseID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid story id %q", c.Param("id"))})
		return 0, false
	}
	return id, true
}

func writeStoreError(c *gin.Context, err error) {
	if errors.Is(err, tracker.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
