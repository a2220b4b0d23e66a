package models

import "testing"

func TestMergeOpportunities_LastWriteWins(t *testing.T) {
	existing := []Opportunity{
		{
			ReachOutTo: "Jane Doe",
			EventKey:   "https://example.com/a",
			Profile: OpportunityProfile{
				Biography:      "Founder of Example A/S with a long career in retail.",
				WealthEstimate: "DKK 2bn",
				Investments:    []string{"Example A/S", "Holdings ApS"},
				Family:         "Married, two children",
			},
		},
	}
	incoming := []Opportunity{
		{
			ReachOutTo: "jane doe",
			EventKey:   "https://example.com/b",
			Profile:    OpportunityProfile{Biography: "Founder of Example A/S."},
		},
	}

	merged := MergeOpportunities(existing, incoming)

	count := 0
	for _, opp := range merged {
		if opp.Key() == "jane doe" {
			count++
			if opp.EventKey != "https://example.com/b" {
				t.Fatalf("expected later entry to win, got event key %q", opp.EventKey)
			}
			if opp.Profile.WealthEstimate != "" {
				t.Fatalf("expected full replacement, found earlier field %q", opp.Profile.WealthEstimate)
			}
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one opportunity for key, got %d", count)
	}
}

func TestMergeOpportunities_DistinctKeysPreserved(t *testing.T) {
	existing := []Opportunity{{ReachOutTo: "Jane Doe"}}
	incoming := []Opportunity{{ReachOutTo: "John Roe"}}

	merged := MergeOpportunities(existing, incoming)
	if len(merged) != 2 {
		t.Fatalf("expected 2 opportunities, got %d", len(merged))
	}
}

func TestArticleTouch(t *testing.T) {
	article := Article{}
	article.Touch("triage")
	article.Touch("deep_assess")
	if len(article.StageTrace) != 2 || article.StageTrace[0] != "triage" {
		t.Fatalf("unexpected trace %v", article.StageTrace)
	}
}
