package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/vidsum/pkg/pipeline"
)

// EnqueueJob handles POST /summarize/:id.
func (s *Server) EnqueueJob(c *gin.Context) {
	videoID := c.Param("id")

	if err := s.pipeline.Enqueue(videoID); err != nil {
		if errors.Is(err, pipeline.ErrIntakeFull) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "summarization queue is full"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "queued", "video_id": videoID})
}

// GetJob handles GET /summarize/:id.
func (s *Server) GetJob(c *gin.Context) {
	videoID := c.Param("id")

	job, ok := s.registry.Get(videoID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no job for video " + videoID})
		return
	}

	c.JSON(http.StatusOK, job.Clone())
}

// SubscribeJobs handles GET /summarize/jobs/subscribe. The connection
// stays open until the client disconnects; frames are pushed by the
// jobs hub.
func (s *Server) SubscribeJobs(c *gin.Context) {
	sseHeaders(c)

	id := s.jobsHub.Subscribe(c.Writer)
	defer s.jobsHub.Unsubscribe(id)

	<-c.Request.Context().Done()
}

// sseHeaders marks the response as a server-sent event stream. The
// first frame write sends them to the client.
func sseHeaders(c *gin.Context) {
	header := c.Writer.Header()
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	header.Set("Connection", "keep-alive")
	header.Set("Access-Control-Expose-Headers", "Content-Type")
}
