package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"prospector/internal/models"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestUpsertArticle_KeyedByLink(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO prospector.articles").
		WithArgs(
			"art-1", "Founder sells company", "Body text", "DK", "Borsen",
			"https://example.com/a", "assessed", 85, 0, "clear sale", "",
			"", false, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.UpsertArticle(context.Background(), models.Article{
		ID:                "art-1",
		Headline:          "Founder sells company",
		Body:              "Body text",
		Country:           "DK",
		Newspaper:         "Borsen",
		Link:              "https://example.com/a",
		Status:            models.StatusAssessed,
		HeadlineScore:     85,
		HeadlineRationale: "clear sale",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpsertArticle_MissingLinkRejected(t *testing.T) {
	store, _ := newMockStore(t)
	if err := store.UpsertArticle(context.Background(), models.Article{ID: "art-1"}); err == nil {
		t.Fatal("expected error for missing link")
	}
}

func TestIsArticleAssessed(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT status FROM prospector.articles").
		WithArgs("https://example.com/a").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("assessed"))

	assessed, err := store.IsArticleAssessed(context.Background(), "https://example.com/a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !assessed {
		t.Fatal("expected assessed article to be reported")
	}

	mock.ExpectQuery("SELECT status FROM prospector.articles").
		WithArgs("https://example.com/unseen").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))

	assessed, err = store.IsArticleAssessed(context.Background(), "https://example.com/unseen")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assessed {
		t.Fatal("unseen article must not be reported as assessed")
	}
}

func TestUpsertOpportunities_LowercasedKeyInTransaction(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO prospector.opportunities")
	mock.ExpectExec("INSERT INTO prospector.opportunities").
		WithArgs("jane doe", "Jane Doe", "evt-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := store.UpsertOpportunities(context.Background(), []models.Opportunity{{
		ReachOutTo: "Jane Doe",
		EventKey:   "evt-1",
		Profile:    models.OpportunityProfile{Biography: "bio"},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestUpsertOpportunities_RollsBackOnFailure(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectPrepare("INSERT INTO prospector.opportunities")
	mock.ExpectExec("INSERT INTO prospector.opportunities").
		WillReturnError(fmt.Errorf("constraint violation"))
	mock.ExpectRollback()

	err := store.UpsertOpportunities(context.Background(), []models.Opportunity{{
		ReachOutTo: "Jane Doe",
		EventKey:   "evt-1",
	}})
	if err == nil {
		t.Fatal("expected error to propagate")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadWatchlist_DecodesTerms(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT name, search_terms").
		WillReturnRows(sqlmock.NewRows([]string{"name", "search_terms", "country", "active"}).
			AddRow("Bestseller", []byte(`["bestseller", "holch povlsen"]`), "DK", true))

	entities, err := store.LoadWatchlist(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entities) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(entities))
	}
	if len(entities[0].SearchTerms) != 2 || entities[0].Country != "DK" {
		t.Fatalf("entity decoded wrong: %+v", entities[0])
	}
}

func TestLoadOpportunities_DecodesProfile(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT reach_out_to, event_key, profile").
		WillReturnRows(sqlmock.NewRows([]string{"reach_out_to", "event_key", "profile"}).
			AddRow("Jane Doe", "evt-1", []byte(`{"biography": "bio", "wealth_estimate": "USD 1bn"}`)))

	opportunities, err := store.LoadOpportunities(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(opportunities) != 1 || opportunities[0].Profile.WealthEstimate != "USD 1bn" {
		t.Fatalf("profile decoded wrong: %+v", opportunities)
	}
}
