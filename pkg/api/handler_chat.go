package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/codeready-toolchain/vidsum/pkg/chat"
)

// GetChatHistory handles GET /chat/:id. Videos without a transcript
// yield an empty array.
func (s *Server) GetChatHistory(c *gin.Context) {
	videoID := c.Param("id")

	history, err := s.transcripts.Load(videoID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load chat history"})
		return
	}

	c.JSON(http.StatusOK, history)
}

// SendChatMessage handles POST /chat/:id/send.
func (s *Server) SendChatMessage(c *gin.Context) {
	videoID := c.Param("id")

	var req SendChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch err := s.chat.Send(videoID, req.Message); {
	case err == nil:
		c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})
	case errors.Is(err, chat.ErrShuttingDown):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		// Busy room or nobody subscribed; the client retries once the
		// in-flight response completes.
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	}
}

// SubscribeChat handles GET /chat/:id/subscribe. Subscribing creates
// the room when it does not exist yet; disconnecting releases it.
func (s *Server) SubscribeChat(c *gin.Context) {
	videoID := c.Param("id")

	sseHeaders(c)

	id := s.chatHub.Subscribe(videoID, c.Writer)
	defer s.chatHub.Unsubscribe(id)

	<-c.Request.Context().Done()
}
