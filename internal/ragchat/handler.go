package ragchat

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"prospector/pkg/llm"
	"prospector/pkg/logging"
)

type chatRequest struct {
	Messages []chatMessage `json:"messages" binding:"required"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Handler exposes the chat pipeline over HTTP.
type Handler struct {
	answerer *Answerer
	logger   logging.Logger
}

func NewHandler(answerer *Answerer, logger logging.Logger) *Handler {
	return &Handler{answerer: answerer, logger: logger}
}

// Chat handles POST /v1/chat. The caller never sees raw pipeline errors:
// the response is an answer, the refusal sentence, or a generic failure.
func (h *Handler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "messages are required"})
		return
	}

	messages := make([]llm.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Content})
	}

	result, err := h.answerer.Answer(c.Request.Context(), messages)
	if err != nil {
		if h.logger != nil {
			h.logger.WithError(err).Error("Chat turn failed")
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unable to answer right now"})
		return
	}

	c.JSON(http.StatusOK, result)
}
