package ragchat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"prospector/internal/metering"
	"prospector/pkg/llm"
	"prospector/pkg/logging"
)

// RefusalSentence is returned verbatim whenever a candidate answer fails
// the groundedness check. It is never paraphrased and never mixed with
// fragments of the discarded answer.
const RefusalSentence = "I cannot answer that reliably based on the information available to me."

// Result is one answered turn. Thoughts is a human-readable audit trace of
// the plan, retrieval, and verification; it is never shown as the answer.
type Result struct {
	Answer   string `json:"answer"`
	Thoughts string `json:"thoughts"`
}

// AnswererConfig configures the answerer.
type AnswererConfig struct {
	Planner     *Planner
	Assembler   *Assembler
	Synthesizer *Synthesizer
	Verifier    *Verifier
	Logger      logging.Logger
}

// Answerer runs the full plan → retrieve → synthesize → verify sequence for
// one conversation turn.
type Answerer struct {
	planner     *Planner
	assembler   *Assembler
	synthesizer *Synthesizer
	verifier    *Verifier
	logger      logging.Logger
}

func NewAnswerer(cfg AnswererConfig) *Answerer {
	return &Answerer{
		planner:     cfg.Planner,
		assembler:   cfg.Assembler,
		synthesizer: cfg.Synthesizer,
		verifier:    cfg.Verifier,
		logger:      cfg.Logger,
	}
}

// Answer answers the latest user message. A failed plan is a hard error;
// an ungrounded or unverifiable candidate produces the fixed refusal
// sentence instead of an error.
func (a *Answerer) Answer(ctx context.Context, messages []llm.Message) (Result, error) {
	question := latestUserMessage(messages)
	if question == "" {
		return Result{}, errors.New("conversation has no user message")
	}

	plan, err := a.planner.Plan(ctx, messages)
	if err != nil {
		return Result{}, err
	}

	assembled := a.assembler.Assemble(ctx, plan)

	candidate, err := a.synthesizer.Synthesize(ctx, plan, assembled, question)
	if err != nil {
		return Result{}, err
	}

	var thoughts strings.Builder
	fmt.Fprintf(&thoughts, "Plan: %s\nQueries: %s\n", plan.Reasoning, strings.Join(plan.Queries, "; "))
	fmt.Fprintf(&thoughts, "Sources: knowledge=%t encyclopedia=%t web=%t\n", assembled.KnowledgeHit, assembled.Encyclopedia, assembled.WebHit)

	verdict, err := a.verifier.Verify(ctx, assembled.Text, candidate)
	if err != nil {
		// An unverifiable answer is treated like an ungrounded one: the
		// candidate is never shown without a passing check.
		answersTotal.WithLabelValues("unverifiable").Inc()
		metering.RecordRefusal(ctx)
		if a.logger != nil {
			a.logger.WithError(err).Warn("Groundedness check failed, refusing answer")
		}
		thoughts.WriteString("Verification: failed, answer withheld\n")
		return Result{Answer: RefusalSentence, Thoughts: thoughts.String()}, nil
	}

	if !verdict.IsGrounded {
		answersTotal.WithLabelValues("refused").Inc()
		metering.RecordRefusal(ctx)
		if a.logger != nil {
			a.logger.WithField("unsupported_claims", len(verdict.UnsupportedClaims)).Info("Candidate answer not grounded, refusing")
		}
		fmt.Fprintf(&thoughts, "Verification: not grounded (%d unsupported claims), answer withheld\n", len(verdict.UnsupportedClaims))
		return Result{Answer: RefusalSentence, Thoughts: thoughts.String()}, nil
	}

	answersTotal.WithLabelValues("answered").Inc()
	thoughts.WriteString("Verification: grounded\n")
	return Result{Answer: candidate, Thoughts: thoughts.String()}, nil
}

func latestUserMessage(messages []llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return strings.TrimSpace(messages[i].Content)
		}
	}
	return ""
}
