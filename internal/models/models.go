// Package models holds the shared domain types of the prospecting pipeline.
package models

import "strings"

// ArticleStatus tracks an article's position in the pipeline lifecycle.
type ArticleStatus string

const (
	StatusNew          ArticleStatus = "new"
	StatusAssessed     ArticleStatus = "assessed"
	StatusDeepAssessed ArticleStatus = "deep_assessed"
)

// Article is a single ingested news item. It is created on ingestion and
// mutated by each pipeline stage; the core never deletes articles.
type Article struct {
	ID        string        `json:"id"`
	Headline  string        `json:"headline"`
	Body      string        `json:"body,omitempty"`
	Country   string        `json:"country"`
	Newspaper string        `json:"newspaper"`
	Link      string        `json:"link"`
	Status    ArticleStatus `json:"status"`

	// Relevance scores are 0-100 and never null; absent or invalid values
	// are coerced to 0 before the article is reported or persisted.
	HeadlineScore     int    `json:"headline_relevance"`
	ArticleScore      int    `json:"article_relevance"`
	HeadlineRationale string `json:"headline_rationale,omitempty"`
	ArticleRationale  string `json:"article_rationale,omitempty"`

	EventType        string         `json:"event_type,omitempty"`
	IsLiquidityEvent bool           `json:"is_liquidity_event,omitempty"`
	Individuals      []Individual   `json:"individuals,omitempty"`
	WatchlistHits    []WatchlistHit `json:"watchlist_hits,omitempty"`

	// StageTrace records the pipeline stages the article passed through,
	// in order.
	StageTrace []string `json:"stage_trace,omitempty"`
}

// Touch appends a stage name to the article's trace.
func (a *Article) Touch(stage string) {
	a.StageTrace = append(a.StageTrace, stage)
}

// WatchlistEntity is a configured person, family, or organization the
// pipeline specifically detects mentions of. Owned by an external
// administrative store; read-only here.
type WatchlistEntity struct {
	Name        string   `json:"name"`
	SearchTerms []string `json:"search_terms"`
	Country     string   `json:"country,omitempty"`
	Active      bool     `json:"active"`
}

// WatchlistHit records which entity matched and through which term.
type WatchlistHit struct {
	Entity      string `json:"entity"`
	MatchedTerm string `json:"matched_term"`
}

// Individual is a person extracted from an article. Contact is nil unless a
// plausible corporate address can be inferred from an explicit company
// affiliation in the source text; it is never fabricated.
type Individual struct {
	Name    string  `json:"name"`
	Role    string  `json:"role_in_event"`
	Company string  `json:"company,omitempty"`
	Contact *string `json:"email_suggestion"`
}

// Opportunity is a verified wealth-opportunity record produced by research
// synthesis. ReachOutTo, lowercased, is the dedup key.
type Opportunity struct {
	ReachOutTo string             `json:"reach_out_to"`
	EventKey   string             `json:"event_key"`
	Profile    OpportunityProfile `json:"profile"`
}

// Key returns the normalized dedup key.
func (o Opportunity) Key() string {
	return strings.ToLower(strings.TrimSpace(o.ReachOutTo))
}

// OpportunityProfile is the nested research profile of an opportunity.
type OpportunityProfile struct {
	Biography      string   `json:"biography,omitempty"`
	WealthEstimate string   `json:"wealth_estimate,omitempty"`
	Investments    []string `json:"investments,omitempty"`
	Family         string   `json:"family,omitempty"`
	Contact        string   `json:"contact,omitempty"`
}

// MergeOpportunities merges newer opportunities into existing ones using a
// map keyed by the lowercased reach-out name. On key collision the later
// entry fully replaces the earlier one; there is no field-level merge.
func MergeOpportunities(existing, incoming []Opportunity) []Opportunity {
	merged := make([]Opportunity, 0, len(existing)+len(incoming))
	index := make(map[string]int, len(existing))
	for _, opp := range existing {
		key := opp.Key()
		if pos, ok := index[key]; ok {
			merged[pos] = opp
			continue
		}
		index[key] = len(merged)
		merged = append(merged, opp)
	}
	for _, opp := range incoming {
		key := opp.Key()
		if pos, ok := index[key]; ok {
			merged[pos] = opp
			continue
		}
		index[key] = len(merged)
		merged = append(merged, opp)
	}
	return merged
}
