// Package api serves the HTTP surface: job intake and inspection,
// summary and video metadata reads, per-video chat, and the two
// server-sent event streams.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/vidsum/pkg/chat"
	"github.com/codeready-toolchain/vidsum/pkg/events"
	"github.com/codeready-toolchain/vidsum/pkg/jobs"
	"github.com/codeready-toolchain/vidsum/pkg/pipeline"
	"github.com/codeready-toolchain/vidsum/pkg/store"
	"github.com/codeready-toolchain/vidsum/pkg/version"
)

// Server owns the HTTP endpoint handlers and the listener lifecycle.
type Server struct {
	registry    *jobs.Registry
	pipeline    *pipeline.Pipeline
	videos      *store.VideoStore
	jobsHub     *events.JobsHub
	chatHub     *events.ChatHub
	chat        *chat.Manager
	transcripts *chat.TranscriptStore
	paths       store.Paths

	httpServer *http.Server
}

// NewServer creates the API server over the given components.
func NewServer(registry *jobs.Registry, pipe *pipeline.Pipeline, videos *store.VideoStore,
	jobsHub *events.JobsHub, chatHub *events.ChatHub, chatMgr *chat.Manager,
	transcripts *chat.TranscriptStore, paths store.Paths) *Server {
	return &Server{
		registry:    registry,
		pipeline:    pipe,
		videos:      videos,
		jobsHub:     jobsHub,
		chatHub:     chatHub,
		chat:        chatMgr,
		transcripts: transcripts,
		paths:       paths,
	}
}

// Routes builds the gin engine with all endpoints and middleware.
func (s *Server) Routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestLogger(), gin.Recovery(), corsHeaders())

	router.POST("/summarize/:id", s.EnqueueJob)
	router.GET("/summarize/:id", s.GetJob)
	router.GET("/summarize/jobs/subscribe", s.SubscribeJobs)

	router.GET("/summaries/:id", s.GetSummary)
	router.GET("/videos", s.ListVideos)
	router.GET("/videos/:id", s.GetVideo)

	router.GET("/chat/:id", s.GetChatHistory)
	router.POST("/chat/:id/send", s.SendChatMessage)
	router.GET("/chat/:id/subscribe", s.SubscribeChat)

	router.GET("/healthz", s.Healthz)

	return router
}

// Start begins serving on addr and blocks until the listener exits.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting connections and waits for in-flight
// requests, bounded by ctx. Open event streams keep the server busy
// until the deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Healthz handles GET /healthz.
func (s *Server) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Version: version.Full(),
	})
}
