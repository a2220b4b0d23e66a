// Package ragchat answers natural-language questions against the knowledge
// base with a groundedness gate: plan, retrieve, synthesize, verify.
package ragchat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"prospector/internal/metering"
	"prospector/pkg/llm"
	"prospector/pkg/logging"
)

// ErrPlanUnparseable is returned when the planner response cannot be parsed
// even after the repair pass. Without a plan nothing downstream can proceed
// safely, so this is a hard error.
var ErrPlanUnparseable = errors.New("plan response unparseable")

const (
	maxPlanQueries  = 3
	maxHistoryTurns = 6
)

// Plan is the retrieval plan for one user turn.
type Plan struct {
	Reasoning string   `json:"reasoning"`
	Steps     []string `json:"steps"`
	Queries   []string `json:"search_queries"`
}

// Planner turns the conversation into a retrieval plan.
type Planner struct {
	provider llm.Provider
	logger   logging.Logger
}

func NewPlanner(provider llm.Provider, logger logging.Logger) *Planner {
	return &Planner{provider: provider, logger: logger}
}

// Plan produces a retrieval plan from the recent conversation history and
// the latest user query.
func (p *Planner) Plan(ctx context.Context, messages []llm.Message) (Plan, error) {
	history := recentHistory(messages)
	if strings.TrimSpace(history) == "" {
		return Plan{}, errors.New("conversation has no user message")
	}

	text, err := llm.CompleteText(ctx, p.provider, []llm.Message{
		{Role: "system", Content: planPrompt},
		{Role: "user", Content: history},
	})
	if err != nil {
		return Plan{}, fmt.Errorf("plan call: %w", err)
	}
	metering.RecordLLMUsage(ctx, llm.EstimateTokens(history), llm.EstimateTokens(text))

	plan, err := parsePlan(text)
	if err != nil {
		planFailuresTotal.Inc()
		if p.logger != nil {
			p.logger.WithError(err).Warn("Plan response unparseable after repair")
		}
		return Plan{}, err
	}
	return plan, nil
}

func recentHistory(messages []llm.Message) string {
	start := 0
	if len(messages) > maxHistoryTurns {
		start = len(messages) - maxHistoryTurns
	}
	var b strings.Builder
	for _, msg := range messages[start:] {
		if msg.Role != "user" && msg.Role != "assistant" {
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n\n", msg.Role, msg.Content)
	}
	return strings.TrimSpace(b.String())
}

// parsePlan first attempts strict parsing, then one repair pass, then gives
// up. This is the one structured-output consumer that does not degrade.
func parsePlan(text string) (Plan, error) {
	plan, err := decodePlan(text)
	if err == nil {
		return plan, nil
	}

	planRepairsTotal.Inc()
	plan, repairErr := decodePlan(repairPlanJSON(text))
	if repairErr != nil {
		return Plan{}, fmt.Errorf("%w: %v", ErrPlanUnparseable, err)
	}
	return plan, nil
}

func decodePlan(text string) (Plan, error) {
	var plan Plan
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &plan); err != nil {
		return Plan{}, err
	}
	queries := make([]string, 0, len(plan.Queries))
	for _, q := range plan.Queries {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	if len(queries) == 0 {
		return Plan{}, errors.New("plan has no search queries")
	}
	if len(queries) > maxPlanQueries {
		queries = queries[:maxPlanQueries]
	}
	plan.Queries = queries
	return plan, nil
}

// repairPlanJSON rescues the two failure modes models actually produce:
// prose or code fences wrapped around the object, and unescaped quotes
// embedded inside query strings. It trims the text to the outermost brace
// span, then re-escapes quotes that cannot be string delimiters.
func repairPlanJSON(text string) string {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start == -1 || end <= start {
		return text
	}
	text = text[start : end+1]

	var b strings.Builder
	b.Grow(len(text) + 8)
	runes := []rune(text)
	inString := false
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\\' && inString && i+1 < len(runes) {
			b.WriteRune(r)
			b.WriteRune(runes[i+1])
			i++
			continue
		}
		if r != '"' {
			b.WriteRune(r)
			continue
		}
		if !inString {
			inString = true
			b.WriteRune(r)
			continue
		}
		// Inside a string: a quote only closes it when followed by a
		// structural character. Anything else is an embedded quote the
		// model forgot to escape.
		if isClosingQuote(runes, i+1) {
			inString = false
			b.WriteRune(r)
			continue
		}
		b.WriteString(`\"`)
	}
	return b.String()
}

func isClosingQuote(runes []rune, next int) bool {
	for ; next < len(runes); next++ {
		if unicode.IsSpace(runes[next]) {
			continue
		}
		switch runes[next] {
		case ',', ':', '}', ']':
			return true
		}
		return false
	}
	return true
}
