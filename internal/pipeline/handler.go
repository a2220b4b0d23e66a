package pipeline

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"prospector/internal/models"
	"prospector/pkg/logging"
)

type scanRequest struct {
	Articles []scanArticle `json:"articles" binding:"required"`
}

type scanArticle struct {
	Headline  string `json:"headline" binding:"required"`
	Body      string `json:"body"`
	Country   string `json:"country"`
	Newspaper string `json:"newspaper"`
	Link      string `json:"link" binding:"required"`
}

// Handler exposes scan runs over HTTP.
type Handler struct {
	runner *Runner
	logger logging.Logger
}

func NewHandler(runner *Runner, logger logging.Logger) *Handler {
	return &Handler{runner: runner, logger: logger}
}

// Scan handles POST /v1/scan.
func (h *Handler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "articles with headline and link are required"})
		return
	}

	articles := make([]models.Article, 0, len(req.Articles))
	for _, a := range req.Articles {
		articles = append(articles, models.Article{
			ID:        uuid.NewString(),
			Headline:  a.Headline,
			Body:      a.Body,
			Country:   a.Country,
			Newspaper: a.Newspaper,
			Link:      a.Link,
			Status:    models.StatusNew,
		})
	}

	report, err := h.runner.Run(c.Request.Context(), articles)
	if err != nil {
		if h.logger != nil {
			h.logger.WithError(err).Error("Scan run failed")
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "scan failed"})
		return
	}

	c.JSON(http.StatusOK, report)
}
