package api

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/vidsum/pkg/models"
)

// GetSummary handles GET /summaries/:id. A job still moving through
// the pipeline reports in_progress; a video with no summary artifact
// reports not_found; otherwise the Markdown is returned.
func (s *Server) GetSummary(c *gin.Context) {
	videoID := c.Param("id")

	if job, ok := s.registry.Get(videoID); ok && job.Status() != models.StatusFinished {
		c.JSON(http.StatusOK, SummaryResponse{NoSummaryReason: "in_progress"})
		return
	}

	data, err := os.ReadFile(s.paths.SummaryFile(videoID))
	if os.IsNotExist(err) {
		c.JSON(http.StatusOK, SummaryResponse{NoSummaryReason: "not_found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, SummaryResponse{Summary: string(data)})
}

// ListVideos handles GET /videos.
func (s *Server) ListVideos(c *gin.Context) {
	c.JSON(http.StatusOK, s.videos.ReadAll())
}

// GetVideo handles GET /videos/:id.
func (s *Server) GetVideo(c *gin.Context) {
	videoID := c.Param("id")

	entry, ok := s.videos.Read(videoID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown video " + videoID})
		return
	}

	c.JSON(http.StatusOK, entry)
}
