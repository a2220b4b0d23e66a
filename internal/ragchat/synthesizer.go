package ragchat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"prospector/internal/metering"
	"prospector/pkg/llm"
)

// Synthesizer produces a provenance-marked answer from the assembled
// context.
type Synthesizer struct {
	provider llm.Provider
}

func NewSynthesizer(provider llm.Provider) *Synthesizer {
	return &Synthesizer{provider: provider}
}

// Synthesize writes the candidate answer. Every factual claim carries a
// source marker ([KB], [ENC], or [WEB]) identifying where it came from.
func (s *Synthesizer) Synthesize(ctx context.Context, plan Plan, assembled AssembledContext, question string) (string, error) {
	prompt := fmt.Sprintf("Question: %s\n\nPlan reasoning: %s\n\nContext:\n%s", question, plan.Reasoning, assembled.Text)
	text, err := llm.CompleteText(ctx, s.provider, []llm.Message{
		{Role: "system", Content: synthesizePrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return "", fmt.Errorf("synthesis call: %w", err)
	}
	metering.RecordLLMUsage(ctx, llm.EstimateTokens(prompt), llm.EstimateTokens(text))

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("synthesis produced an empty answer")
	}
	return text, nil
}

// Verdict is the groundedness check result for one candidate answer.
type Verdict struct {
	IsGrounded        bool     `json:"is_grounded"`
	UnsupportedClaims []string `json:"unsupported_claims"`
}

// Verifier re-reads the assembled context and the candidate answer and
// judges claim-by-claim support.
type Verifier struct {
	provider llm.Provider
}

func NewVerifier(provider llm.Provider) *Verifier {
	return &Verifier{provider: provider}
}

func (v *Verifier) Verify(ctx context.Context, assembledContext, candidate string) (Verdict, error) {
	prompt := fmt.Sprintf("Context:\n%s\n\nCandidate answer:\n%s", assembledContext, candidate)
	text, err := llm.CompleteText(ctx, v.provider, []llm.Message{
		{Role: "system", Content: verifyPrompt},
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("verification call: %w", err)
	}
	metering.RecordLLMUsage(ctx, llm.EstimateTokens(prompt), llm.EstimateTokens(text))

	var wire struct {
		IsGrounded        *bool    `json:"is_grounded"`
		UnsupportedClaims []string `json:"unsupported_claims"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(text)), &wire); err != nil {
		return Verdict{}, fmt.Errorf("decode verification response: %w", err)
	}
	if wire.IsGrounded == nil {
		return Verdict{}, errors.New("verification response missing is_grounded")
	}
	return Verdict{
		IsGrounded:        *wire.IsGrounded,
		UnsupportedClaims: wire.UnsupportedClaims,
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
