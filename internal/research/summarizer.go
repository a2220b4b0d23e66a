package research

import (
	"context"
	"fmt"
	"time"

	"prospector/internal/metering"
	"prospector/pkg/llm"
	"prospector/pkg/logging"
)

// summaryDeadline bounds the summarization call. Summaries that miss the
// deadline are discarded and the raw context is used instead.
const summaryDeadline = 20 * time.Second

const summarizePrompt = `Condense the research context below into a fact-dense profile of the named person (at most 250 words).
Keep: career history, sources of wealth, company ownership stakes, family and business relationships, and concrete figures.
Discard: generic news filler, unrelated people, speculation.
Output only the profile text.`

// Summarizer compresses a subject's raw research context under a hard
// deadline, degrading to the raw context on failure.
type Summarizer struct {
	provider llm.Provider
	logger   logging.Logger
	deadline time.Duration
}

// SummarizerConfig configures the summarizer. A zero Deadline means the
// default 20 seconds.
type SummarizerConfig struct {
	Provider llm.Provider
	Logger   logging.Logger
	Deadline time.Duration
}

func NewSummarizer(cfg SummarizerConfig) *Summarizer {
	deadline := cfg.Deadline
	if deadline <= 0 {
		deadline = summaryDeadline
	}
	return &Summarizer{
		provider: cfg.Provider,
		logger:   cfg.Logger,
		deadline: deadline,
	}
}

// Summarize returns a bounded-length synthesis of the raw context, or the
// raw context unchanged when the call errors or misses the deadline.
func (s *Summarizer) Summarize(ctx context.Context, name, rawContext string) string {
	result := llm.CompleteTextWithDeadline(ctx, s.provider, []llm.Message{
		{Role: "system", Content: summarizePrompt},
		{Role: "user", Content: fmt.Sprintf("Person: %s\n\nContext:\n%s", name, rawContext)},
	}, s.deadline)

	switch result.Status {
	case llm.CallCompleted:
		metering.RecordLLMUsage(ctx, llm.EstimateTokens(rawContext), llm.EstimateTokens(result.Text))
		if result.Text == "" {
			return rawContext
		}
		summariesTotal.WithLabelValues("completed").Inc()
		return result.Text
	case llm.CallDeadlineExceeded:
		summariesTotal.WithLabelValues("deadline_exceeded").Inc()
		if s.logger != nil {
			s.logger.WithField("subject", name).Warn("Summarization missed its deadline, using raw context")
		}
		return rawContext
	default:
		summariesTotal.WithLabelValues("failed").Inc()
		if s.logger != nil {
			s.logger.WithError(result.Err).WithField("subject", name).Warn("Summarization failed, using raw context")
		}
		return rawContext
	}
}
