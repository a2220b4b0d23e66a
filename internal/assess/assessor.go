// Package assess implements deep article assessment: structured extraction
// of the event type, relevance, and the individuals named in the text.
package assess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"prospector/internal/metering"
	"prospector/internal/models"
	"prospector/pkg/llm"
	"prospector/pkg/logging"
	"prospector/pkg/retry"
)

// Judgment is the validated result of one deep assessment.
type Judgment struct {
	EventType        string
	IsLiquidityEvent bool
	Beneficiary      string
	Score            int
	Rationale        string
	Individuals      []models.Individual
}

// Config configures the assessor.
type Config struct {
	Provider llm.Provider
	Logger   logging.Logger
	Retry    *retry.Policy
}

// Assessor runs one structured-extraction call per article and strictly
// validates the response before anything downstream sees it.
type Assessor struct {
	provider llm.Provider
	logger   logging.Logger
	retry    *retry.Policy
}

func NewAssessor(cfg Config) *Assessor {
	retryPolicy := cfg.Retry
	if retryPolicy == nil {
		retryPolicy = retry.NewPolicy(retry.DefaultConfig())
	}
	return &Assessor{
		provider: cfg.Provider,
		logger:   cfg.Logger,
		retry:    retryPolicy,
	}
}

// Assess extracts a structured judgment from one article's headline and
// body. An invalid or undecodable response is an error; the caller skips
// the article rather than persisting a partial judgment.
func (a *Assessor) Assess(ctx context.Context, article models.Article) (Judgment, error) {
	prompt := fmt.Sprintf("Headline: %s\n\nArticle:\n%s", article.Headline, article.Body)

	return retry.Get(ctx, a.retry, func() (Judgment, error) {
		text, err := llm.CompleteText(ctx, a.provider, []llm.Message{
			{Role: "system", Content: assessSystemPrompt},
			{Role: "user", Content: prompt},
		})
		if err != nil {
			return Judgment{}, fmt.Errorf("assessment call: %w", err)
		}
		metering.RecordLLMUsage(ctx, llm.EstimateTokens(prompt), llm.EstimateTokens(text))

		judgment, err := decodeJudgment(text)
		if err != nil {
			invalidResponsesTotal.Inc()
			return Judgment{}, err
		}
		return judgment, nil
	})
}

type wireJudgment struct {
	EventType        string           `json:"event_type"`
	IsLiquidityEvent *bool            `json:"is_liquidity_event"`
	Beneficiary      string           `json:"beneficiary"`
	Relevance        *float64         `json:"relevance"`
	Rationale        string           `json:"rationale"`
	Individuals      []wireIndividual `json:"individuals"`
}

type wireIndividual struct {
	Name    string  `json:"name"`
	Role    string  `json:"role"`
	Company string  `json:"company"`
	Contact *string `json:"contact_or_null"`
}

// decodeJudgment strictly validates the extraction response right after the
// call. Individuals without a real name are dropped; a contact without a
// company affiliation is discarded rather than trusted.
func decodeJudgment(text string) (Judgment, error) {
	var wire wireJudgment
	if err := json.Unmarshal([]byte(stripCodeFences(text)), &wire); err != nil {
		return Judgment{}, fmt.Errorf("decode assessment response: %w", err)
	}
	if strings.TrimSpace(wire.EventType) == "" {
		return Judgment{}, errors.New("assessment response missing event_type")
	}
	if wire.IsLiquidityEvent == nil {
		return Judgment{}, errors.New("assessment response missing is_liquidity_event")
	}
	if strings.TrimSpace(wire.Rationale) == "" {
		return Judgment{}, errors.New("assessment response missing rationale")
	}

	judgment := Judgment{
		EventType:        strings.TrimSpace(wire.EventType),
		IsLiquidityEvent: *wire.IsLiquidityEvent,
		Beneficiary:      strings.TrimSpace(wire.Beneficiary),
		Score:            normalizeScore(wire.Relevance),
		Rationale:        strings.TrimSpace(wire.Rationale),
	}

	for _, ind := range wire.Individuals {
		name := strings.TrimSpace(ind.Name)
		if name == "" || isGenericDescription(name) {
			continue
		}
		contact := ind.Contact
		if contact != nil && strings.TrimSpace(ind.Company) == "" {
			// No explicit company affiliation, so no basis for inferring a
			// corporate address.
			contact = nil
		}
		judgment.Individuals = append(judgment.Individuals, models.Individual{
			Name:    name,
			Role:    strings.TrimSpace(ind.Role),
			Company: strings.TrimSpace(ind.Company),
			Contact: contact,
		})
	}
	return judgment, nil
}

// genericDescriptions are placeholder names models emit when the source
// text names nobody. They are rejected, not persisted.
var genericDescriptions = []string{
	"unknown",
	"unnamed",
	"n/a",
	"the owner",
	"the founder",
	"the family",
	"the shareholders",
	"private individual",
}

func isGenericDescription(name string) bool {
	lowered := strings.ToLower(name)
	for _, generic := range genericDescriptions {
		if lowered == generic {
			return true
		}
	}
	return false
}

func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func normalizeScore(score *float64) int {
	if score == nil {
		return 0
	}
	v := int(*score)
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
