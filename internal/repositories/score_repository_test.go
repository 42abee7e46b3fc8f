package repositories

import (
	"testing"

	"speakmatch/internal/models"
	"speakmatch/internal/testhelpers"
)

func newScoreRepo(t *testing.T) *ScoreRepository {
	t.Helper()
	return &ScoreRepository{DB: testhelpers.SetupTestDB(t)}
}

func TestScoreRepository_Create(t *testing.T) {
	repo := newScoreRepo(t)

	score := &models.Score{
		SessionID:     "s1",
		ScorerID:      "alice",
		CandidateID:   "bob",
		Fluency:       7,
		Vocabulary:    8,
		Grammar:       6,
		Pronunciation: 7,
	}
	if err := repo.Create(score); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if score.Overall != 7.0 {
		t.Fatalf("expected overall 7.0, got %v", score.Overall)
	}
	if score.ID == 0 {
		t.Fatalf("expected score ID to be set")
	}
}

func TestScoreRepository_Create_InvalidMetrics(t *testing.T) {
	repo := newScoreRepo(t)

	tests := []struct {
		name  string
		score models.Score
	}{
		{"metric above range", models.Score{SessionID: "s1", ScorerID: "a", CandidateID: "b", Fluency: 11}},
		{"metric below range", models.Score{SessionID: "s1", ScorerID: "a", CandidateID: "b", Grammar: -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := repo.Create(&tt.score); err != ErrInvalidScore {
				t.Fatalf("expected ErrInvalidScore, got %v", err)
			}
		})
	}
}

func TestScoreRepository_ListBySession(t *testing.T) {
	repo := newScoreRepo(t)

	// One row per rotation: alice scores bob, then roles flip and bob scores
	// alice.
	rotations := []models.Score{
		{SessionID: "s1", ScorerID: "alice", CandidateID: "bob", Fluency: 6, Vocabulary: 6, Grammar: 6, Pronunciation: 6},
		{SessionID: "s1", ScorerID: "bob", CandidateID: "alice", Fluency: 8, Vocabulary: 8, Grammar: 8, Pronunciation: 8},
		{SessionID: "other", ScorerID: "carol", CandidateID: "dave", Fluency: 5, Vocabulary: 5, Grammar: 5, Pronunciation: 5},
	}
	for i := range rotations {
		if err := repo.Create(&rotations[i]); err != nil {
			t.Fatalf("failed to seed score %d: %v", i, err)
		}
	}

	scores, err := repo.ListBySession("s1")
	if err != nil {
		t.Fatalf("ListBySession returned error: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("expected 2 scores, got %d", len(scores))
	}
	if scores[0].ScorerID != "alice" || scores[1].ScorerID != "bob" {
		t.Fatalf("expected submission order preserved, got %s then %s", scores[0].ScorerID, scores[1].ScorerID)
	}
}
