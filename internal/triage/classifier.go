// Package triage implements headline batch classification with per-item
// fallback and one-shot re-assessment of ambiguous items.
package triage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"prospector/internal/metering"
	"prospector/pkg/llm"
	"prospector/pkg/logging"
	"prospector/pkg/retry"
)

const defaultBatchSize = 10

// Item is one classification input.
type Item struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Result is one classification outcome. Score is always 0-100, never null.
type Result struct {
	ID        string `json:"id"`
	Score     int    `json:"relevance"`
	Rationale string `json:"rationale"`

	// ViaFallback marks items that were already classified individually
	// after a batch failure. Such items are not re-assessed again: no item
	// sees more than two classification attempts in total.
	ViaFallback bool `json:"-"`
}

// Config configures the classifier.
type Config struct {
	Provider  llm.Provider
	Logger    logging.Logger
	Retry     *retry.Policy
	BatchSize int
}

// Classifier partitions items into fixed-size batches and classifies each
// batch with one external call, recovering per item when a batch fails.
type Classifier struct {
	provider  llm.Provider
	logger    logging.Logger
	retry     *retry.Policy
	batchSize int
}

func NewClassifier(cfg Config) *Classifier {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	retryPolicy := cfg.Retry
	if retryPolicy == nil {
		retryPolicy = retry.NewPolicy(retry.DefaultConfig())
	}
	return &Classifier{
		provider:  cfg.Provider,
		logger:    cfg.Logger,
		retry:     retryPolicy,
		batchSize: batchSize,
	}
}

// ClassifyAll classifies every item and returns exactly one result per
// input, in input order. Items are never dropped: when both the batch call
// and the individual fallback fail, the item gets score 0 and an explicit
// failure rationale.
func (c *Classifier) ClassifyAll(ctx context.Context, items []Item) []Result {
	results := make([]Result, len(items))
	position := make(map[string]int, len(items))
	for i, item := range items {
		position[item.ID] = i
		results[i] = Result{ID: item.ID}
	}

	var fallback []Item

	// Batches run sequentially: one external call in flight at a time.
	for start := 0; start < len(items); start += c.batchSize {
		end := start + c.batchSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		assessed, err := c.classifyBatch(ctx, batch)
		if err != nil {
			// Whole-batch failure: every item goes to single-item fallback.
			batchesTotal.WithLabelValues("error").Inc()
			if c.logger != nil {
				c.logger.WithError(err).WithField("batch_size", len(batch)).Warn("Batch classification failed, falling back per item")
			}
			fallback = append(fallback, batch...)
			continue
		}
		batchesTotal.WithLabelValues("success").Inc()

		for _, item := range batch {
			result, ok := assessed[item.ID]
			if !ok {
				// Partial omission: the call succeeded but dropped this id.
				omittedItemsTotal.Inc()
				fallback = append(fallback, item)
				continue
			}
			results[position[item.ID]] = result
		}
	}

	for _, item := range fallback {
		results[position[item.ID]] = c.classifyWithFallback(ctx, item)
	}

	for i := range results {
		results[i].Score = clampScore(results[i].Score)
	}
	return results
}

func (c *Classifier) classifyWithFallback(ctx context.Context, item Item) Result {
	result, err := retry.Get(ctx, c.retry, func() (Result, error) {
		return c.classifySingle(ctx, item)
	})
	if err != nil {
		fallbackFailuresTotal.Inc()
		if c.logger != nil {
			c.logger.WithError(err).WithField("item_id", item.ID).Warn("Single-item classification failed")
		}
		return Result{
			ID:          item.ID,
			Score:       0,
			Rationale:   "assessment failed",
			ViaFallback: true,
		}
	}
	result.ViaFallback = true
	return result
}

// classifyBatch submits one batch and returns assessments keyed by item id.
// A structurally invalid response is a whole-batch failure; an id missing
// from an otherwise valid response is a partial omission handled by the
// caller.
func (c *Classifier) classifyBatch(ctx context.Context, batch []Item) (map[string]Result, error) {
	payload, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("marshal batch: %w", err)
	}

	text, err := llm.CompleteText(ctx, c.provider, []llm.Message{
		{Role: "system", Content: classifySystemPrompt},
		{Role: "user", Content: string(payload)},
	})
	if err != nil {
		return nil, err
	}
	metering.RecordLLMUsage(ctx, llm.EstimateTokens(string(payload)), llm.EstimateTokens(text))

	response, err := decodeBatchResponse(text)
	if err != nil {
		return nil, err
	}

	assessed := make(map[string]Result, len(response.Assessments))
	for _, a := range response.Assessments {
		assessed[a.ID] = Result{
			ID:        a.ID,
			Score:     normalizeScore(a.Relevance),
			Rationale: strings.TrimSpace(a.Rationale),
		}
	}
	return assessed, nil
}

func (c *Classifier) classifySingle(ctx context.Context, item Item) (Result, error) {
	assessed, err := c.classifyBatch(ctx, []Item{item})
	if err != nil {
		return Result{}, err
	}
	result, ok := assessed[item.ID]
	if !ok {
		return Result{}, fmt.Errorf("response omitted item %s", item.ID)
	}
	return result, nil
}

type batchResponse struct {
	Assessments []batchAssessment `json:"assessments"`
}

type batchAssessment struct {
	ID        string   `json:"id"`
	Relevance *float64 `json:"relevance"`
	Rationale string   `json:"rationale"`
}

// decodeBatchResponse strictly validates the external response immediately
// after the call so downstream code never branches on missing fields.
func decodeBatchResponse(text string) (batchResponse, error) {
	var response batchResponse
	if err := json.Unmarshal([]byte(stripCodeFences(text)), &response); err != nil {
		return batchResponse{}, fmt.Errorf("decode classification response: %w", err)
	}
	if response.Assessments == nil {
		return batchResponse{}, errors.New("classification response missing assessments")
	}
	for _, a := range response.Assessments {
		if strings.TrimSpace(a.ID) == "" {
			return batchResponse{}, errors.New("classification response contains assessment without id")
		}
	}
	return response, nil
}

// stripCodeFences removes a surrounding markdown code fence if present.
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

// normalizeScore coerces an absent score to 0; reported scores are never
// null.
func normalizeScore(score *float64) int {
	if score == nil {
		return 0
	}
	return clampScore(int(*score))
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
