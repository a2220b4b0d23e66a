package triage

import (
	"context"
	"strings"
)

// DefaultAcceptThreshold is the relevance score below which an item is
// considered ambiguous and eligible for escalation.
const DefaultAcceptThreshold = 50

// highSignalTerms escalate a low-scoring item to re-assessment even without
// a watchlist hit. Matched case-insensitively as substrings; these phrases
// rarely appear in irrelevant headlines.
var highSignalTerms = []string{
	"acquisition",
	"acquires",
	"merger",
	"ipo",
	"divestment",
	"sells stake",
	"sold stake",
	"takeover",
	"buyout",
	"exit",
	"fortune",
	"billionaire",
	"inheritance",
	"family office",
}

// Reassess re-runs single-item classification for items that scored below
// the threshold but carry a watchlist hit or a high-signal term, and
// overwrites their score and rationale with the new result. Escalation is
// one-shot: items that already went through single-item fallback are
// skipped, so no item is classified more than twice in total.
func (c *Classifier) Reassess(ctx context.Context, items []Item, results []Result, watchlistHits map[string]bool, threshold int) []Result {
	if threshold <= 0 {
		threshold = DefaultAcceptThreshold
	}
	byID := make(map[string]Item, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}

	for i, result := range results {
		if result.Score >= threshold || result.ViaFallback {
			continue
		}
		item, ok := byID[result.ID]
		if !ok {
			continue
		}
		if !watchlistHits[result.ID] && !hasHighSignalTerm(item.Text) {
			continue
		}

		reassessmentsTotal.Inc()
		updated, err := c.classifySingle(ctx, reassessItem(item))
		if err != nil {
			if c.logger != nil {
				c.logger.WithError(err).WithField("item_id", item.ID).Warn("Re-assessment failed, keeping original score")
			}
			continue
		}
		updated.ID = result.ID
		updated.ViaFallback = true
		results[i] = updated
	}
	return results
}

func reassessItem(item Item) Item {
	return Item{
		ID:   item.ID,
		Text: reassessNote + "\n\n" + item.Text,
	}
}

func hasHighSignalTerm(text string) bool {
	text = strings.ToLower(text)
	for _, term := range highSignalTerms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// BoostForWatchlistHits raises a headline score when the text mentions a
// watched entity, capped at 100. The boost keeps watched names above the
// relevance cut even when the model is lukewarm.
const watchlistBoost = 25

func BoostForWatchlistHits(score int, hitCount int) int {
	if hitCount <= 0 {
		return clampScore(score)
	}
	return clampScore(score + watchlistBoost)
}
