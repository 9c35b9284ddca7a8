// Package store persists questions, game results, vocabulary, masteries and passages.
package store

import (
	"context"

	"wordgames/internal/models"
)

// QuestionStore reads and writes a game kind's question bank
type QuestionStore interface {
	// ListQuestions returns the kind's questions whose id is not in excluded.
	// A non-empty words list keeps only questions whose source text contains at least one of them.
	ListQuestions(ctx context.Context, kind models.GameKind, excluded []int, words []string) ([]models.Question, error)
	GetQuestion(ctx context.Context, kind models.GameKind, id int) (*models.Question, error)
	// SaveQuestion inserts q and sets its ID and timestamps
	SaveQuestion(ctx context.Context, kind models.GameKind, q *models.Question) error
}

// ResultStore records finished games
type ResultStore interface {
	// ListResults returns the user's results for kind, oldest first
	ListResults(ctx context.Context, userID int, kind models.GameKind) ([]models.ResultRecord, error)
	CreateGameResult(ctx context.Context, r *models.GameResult) error
	CreateResult(ctx context.Context, r *models.ResultRecord) error
}

// WordStore looks up vocabulary entries by text
type WordStore interface {
	FindWords(ctx context.Context, texts []string) ([]models.Word, error)
}

// MasteryStore reads and writes per-user word mastery
type MasteryStore interface {
	ListMasteries(ctx context.Context, userID int, wordIDs []int) ([]models.MasteryEntry, error)
	ListUserMasteries(ctx context.Context, userID int) ([]models.MasteryEntry, error)
	// LockMasteries is ListMasteries holding row locks until the surrounding transaction ends
	LockMasteries(ctx context.Context, userID int, wordIDs []int) ([]models.MasteryEntry, error)
	// UpsertMastery creates or updates the (user, word) entry and sets its ID
	UpsertMastery(ctx context.Context, m *models.MasteryEntry) error
}

// PassageStore reads reading passages
type PassageStore interface {
	GetPassage(ctx context.Context, id int) (*models.Passage, error)
}

// Store is every store contract plus transactions
type Store interface {
	QuestionStore
	ResultStore
	WordStore
	MasteryStore
	PassageStore

	// WithTx runs fn against a transactional view of the store.
	// fn's error rolls everything back; nested calls join the outer transaction.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}
