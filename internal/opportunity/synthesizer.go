// Package opportunity turns researched context into structured opportunity
// records and merges them into the existing set.
package opportunity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"prospector/internal/metering"
	"prospector/internal/models"
	"prospector/internal/research"
	"prospector/pkg/llm"
	"prospector/pkg/logging"
)

const synthesizePrompt = `You write one structured wealth-opportunity record from the research context below.
The record concerns exactly the named person. Use only facts present in the context.

Respond with JSON only:
{"reach_out_to": "<person's full name>", "profile": {"biography": "...", "wealth_estimate": "...", "investments": ["..."], "family": "...", "contact": "..."}}

Leave any field you cannot support from the context empty. If the context contains nothing useful about the person, respond with exactly: {"reach_out_to": ""}`

// Config configures the synthesizer.
type Config struct {
	Provider llm.Provider
	Logger   logging.Logger
}

// Synthesizer produces zero or one opportunity per researched subject.
// Malformed or empty output is logged and skipped; it never fails the batch.
type Synthesizer struct {
	provider llm.Provider
	logger   logging.Logger
}

func NewSynthesizer(cfg Config) *Synthesizer {
	return &Synthesizer{provider: cfg.Provider, logger: cfg.Logger}
}

// SynthesizeAll produces opportunities for every context that yields a valid
// record. Contexts carrying research error markers are skipped up front.
func (s *Synthesizer) SynthesizeAll(ctx context.Context, contexts []research.Context) []models.Opportunity {
	opportunities := make([]models.Opportunity, 0, len(contexts))
	for _, rc := range contexts {
		if rc.Err != nil {
			continue
		}
		opp, err := s.synthesizeOne(ctx, rc)
		if err != nil {
			skippedTotal.Inc()
			if s.logger != nil {
				s.logger.WithError(err).WithField("subject", rc.Subject.Individual.Name).Warn("Opportunity synthesis skipped")
			}
			continue
		}
		if opp == nil {
			continue
		}
		opportunities = append(opportunities, *opp)
	}
	return opportunities
}

// synthesizeOne returns (nil, nil) when the model deliberately declines the
// subject, an error when the output is malformed, and a record otherwise.
func (s *Synthesizer) synthesizeOne(ctx context.Context, rc research.Context) (*models.Opportunity, error) {
	prompt := fmt.Sprintf("Person: %s\n\nResearch context:\n%s", rc.Subject.Individual.Name, rc.Text)
	text, err := llm.CompleteText(ctx, s.provider, []llm.Message{
		{Role: "system", Content: synthesizePrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return nil, fmt.Errorf("synthesis call: %w", err)
	}
	metering.RecordLLMUsage(ctx, llm.EstimateTokens(prompt), llm.EstimateTokens(text))

	var wire struct {
		ReachOutTo string                    `json:"reach_out_to"`
		Profile    models.OpportunityProfile `json:"profile"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(text)), &wire); err != nil {
		return nil, fmt.Errorf("decode synthesis response: %w", err)
	}
	if strings.TrimSpace(wire.ReachOutTo) == "" {
		// Deliberate decline, not a failure.
		declinedTotal.Inc()
		return nil, nil
	}
	if strings.TrimSpace(wire.Profile.Biography) == "" && wire.Profile.WealthEstimate == "" && len(wire.Profile.Investments) == 0 {
		return nil, errors.New("synthesis response has a name but an empty profile")
	}

	return &models.Opportunity{
		ReachOutTo: strings.TrimSpace(wire.ReachOutTo),
		EventKey:   rc.Subject.EventKey,
		Profile:    wire.Profile,
	}, nil
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
