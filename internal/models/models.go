// Package models defines data structures used throughout the word games backend.
package models

import (
	"bytes"
	"encoding/json"
	"time"

	contextutils "wordgames/internal/utils"
)

// Mastery bounds
const (
	MinMastery = 0
	MaxMastery = 10
)

// Question is one drill item of a game kind's question bank
type Question struct {
	ID         int             `json:"id" yaml:"id"`
	SourceText string          `json:"source_text" yaml:"source_text"`
	Words      []string        `json:"words" yaml:"words"`
	Payload    json.RawMessage `json:"payload,omitempty" yaml:"-"`
	CreatedAt  time.Time       `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at" yaml:"updated_at"`
}

// QuestionPayload is a question as served by a play request.
// Difficulty and NewWords are only set for questions drawn by difficulty.
type QuestionPayload struct {
	ID         int             `json:"id"`
	SourceText string          `json:"source_text"`
	Words      []string        `json:"words"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Difficulty *int            `json:"difficulty,omitempty"`
	NewWords   []Word          `json:"new_words,omitempty"`
}

// NewQuestionPayload copies the served fields of q
func NewQuestionPayload(q Question) QuestionPayload {
	return QuestionPayload{
		ID:         q.ID,
		SourceText: q.SourceText,
		Words:      q.Words,
		Payload:    q.Payload,
	}
}

// Word is a vocabulary entry, unique by Text
type Word struct {
	ID            int    `json:"id"`
	Text          string `json:"text"`
	Translation   string `json:"translation"`
	Pronunciation string `json:"pronunciation"`
}

// GameResult is the generic record of a finished game
type GameResult struct {
	ID        int       `json:"id"`
	UserID    int       `json:"user_id"`
	Game      int       `json:"game"`
	Score     int       `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// ResultRecord is the per-kind record of a finished game. Append-only.
type ResultRecord struct {
	ID                 int       `json:"id"`
	GameID             int       `json:"game_id"`
	UserID             int       `json:"user_id"`
	Kind               GameKind  `json:"kind"`
	CorrectAnswers     int       `json:"correct_answers"`
	WrongAnswers       int       `json:"wrong_answers"`
	CorrectQuestionIDs []int     `json:"correct_question_ids"`
	WrongQuestionIDs   []int     `json:"wrong_question_ids"`
	Timestamp          time.Time `json:"timestamp"`
}

// MasteryEntry is a user's familiarity with one word, in [MinMastery, MaxMastery]
type MasteryEntry struct {
	ID      int    `json:"id"`
	UserID  int    `json:"user_id"`
	WordID  int    `json:"word_id"`
	Word    string `json:"word"`
	Mastery int    `json:"mastery"`
}

// Passage is a reading passage; only its new-word list drives practice
type Passage struct {
	ID       int      `json:"id"`
	NewWords []string `json:"new_words"`
}

// AnswerTally is an answer count sent either as a number or as the list of answers
type AnswerTally int

// UnmarshalJSON accepts an integer or an array, whose length becomes the tally
func (a *AnswerTally) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*a = AnswerTally(len(items))
		return nil
	}

	var n int
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "answer tally must be an integer or an array: %w", err)
	}
	if n < 0 {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "answer tally must not be negative: %d", n)
	}
	*a = AnswerTally(n)
	return nil
}

// FinishGameRequest is the body of a finish request
type FinishGameRequest struct {
	Correct            AnswerTally `json:"correct"`
	CorrectQuestionIDs []int       `json:"correct_question_ids"`
	CorrectWords       []string    `json:"correct_words"`
	Wrong              AnswerTally `json:"wrong"`
	WrongQuestionIDs   []int       `json:"wrong_question_ids"`
	WrongWords         []string    `json:"wrong_words"`
}
