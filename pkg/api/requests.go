package api

// SendChatRequest is the HTTP request body for POST /chat/:id/send.
type SendChatRequest struct {
	Message string `json:"message" binding:"required"`
}
