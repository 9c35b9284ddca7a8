package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"wordgames/internal/models"
	"wordgames/internal/observability"
	contextutils "wordgames/internal/utils"

	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// PostgresStore implements Store on database/sql with the lib/pq driver
type PostgresStore struct {
	db     *sql.DB
	q      querier
	logger *observability.Logger
}

// NewPostgresStore creates a store over an open database handle
func NewPostgresStore(db *sql.DB, logger *observability.Logger) *PostgresStore {
	return &PostgresStore{db: db, q: db, logger: logger}
}

// WithTx implements Store
func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Store) error) (err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "with_tx")
	defer observability.FinishSpan(span, &err)

	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseTransaction, "failed to begin transaction: %w", err)
	}
	finished := false
	defer func() {
		if finished {
			return
		}
		// Also runs while a panic in fn unwinds
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			s.logger.Error(ctx, "Failed to rollback transaction", rollbackErr)
		}
	}()

	if err = fn(&PostgresStore{q: tx, logger: s.logger}); err != nil {
		return err
	}

	// A failed commit ends the transaction too
	finished = true
	if err = tx.Commit(); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseTransaction, "failed to commit transaction: %w", err)
	}
	return nil
}

func questionTable(kind models.GameKind) (string, error) {
	spec, ok := kind.Spec()
	if !ok {
		return "", contextutils.WrapErrorf(contextutils.ErrUnknownGame, "unknown game %q", kind)
	}
	if !spec.Playable() {
		return "", contextutils.WrapErrorf(contextutils.ErrGameNotPlayable, "game %q has no questions", kind)
	}
	return spec.QuestionTable, nil
}

func resultTable(kind models.GameKind) (string, error) {
	spec, ok := kind.Spec()
	if !ok {
		return "", contextutils.WrapErrorf(contextutils.ErrUnknownGame, "unknown game %q", kind)
	}
	if spec.ResultTable == "" {
		return "", contextutils.WrapErrorf(contextutils.ErrGameNotPlayable, "game %q keeps no detailed results", kind)
	}
	return spec.ResultTable, nil
}

func toInt64s(ids []int) []int64 {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		out = append(out, int64(id))
	}
	return out
}

func toInts(ids pq.Int64Array) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		out = append(out, int(id))
	}
	return out
}

// likePattern matches word anywhere in a LIKE operand
func likePattern(word string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(word) + "%"
}

func queryFailed(err error, what string) error {
	return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to %s: %v", what, err)
}

// ListQuestions implements QuestionStore
func (s *PostgresStore) ListQuestions(ctx context.Context, kind models.GameKind, excluded []int, words []string) (result0 []models.Question, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "list_questions",
		observability.AttributeGameKind(kind.String()),
		attribute.Int("excluded.count", len(excluded)),
		attribute.Int("words.count", len(words)),
	)
	defer observability.FinishSpan(span, &err)

	table, err := questionTable(kind)
	if err != nil {
		return nil, err
	}

	// table comes from the fixed game lookup table
	query := fmt.Sprintf(`
		SELECT id, source_text, words, payload, created_at, updated_at
		FROM %s
		WHERE NOT (id = ANY($1))`, table)
	args := []interface{}{pq.Array(toInt64s(excluded))}

	if len(words) > 0 {
		patterns := make([]string, 0, len(words))
		for _, w := range words {
			patterns = append(patterns, likePattern(w))
		}
		query += ` AND source_text LIKE ANY($2)`
		args = append(args, pq.Array(patterns))
	}
	query += ` ORDER BY id`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryFailed(err, "list questions")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var questions []models.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailed(err, "list questions")
	}

	return questions, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQuestion(row rowScanner) (*models.Question, error) {
	var q models.Question
	var words, payload []byte
	if err := row.Scan(&q.ID, &q.SourceText, &words, &payload, &q.CreatedAt, &q.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.ErrRecordNotFound
		}
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to scan question: %v", err)
	}
	if len(words) > 0 {
		if err := json.Unmarshal(words, &q.Words); err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to decode words of question %d: %v", q.ID, err)
		}
	}
	if len(payload) > 0 && string(payload) != "null" {
		q.Payload = append(json.RawMessage(nil), payload...)
	}
	return &q, nil
}

// GetQuestion implements QuestionStore
func (s *PostgresStore) GetQuestion(ctx context.Context, kind models.GameKind, id int) (result0 *models.Question, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "get_question",
		observability.AttributeGameKind(kind.String()),
		observability.AttributeQuestionID(id),
	)
	defer observability.FinishSpan(span, &err)

	table, err := questionTable(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT id, source_text, words, payload, created_at, updated_at FROM %s WHERE id = $1`, table)
	return scanQuestion(s.q.QueryRowContext(ctx, query, id))
}

// SaveQuestion implements QuestionStore
func (s *PostgresStore) SaveQuestion(ctx context.Context, kind models.GameKind, q *models.Question) (err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "save_question", observability.AttributeGameKind(kind.String()))
	defer observability.FinishSpan(span, &err)

	table, err := questionTable(kind)
	if err != nil {
		return err
	}

	words := q.Words
	if words == nil {
		words = []string{}
	}
	wordsJSON, err := json.Marshal(words)
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrInvalidInput, "failed to encode words: %v", err)
	}
	var payload interface{}
	if len(q.Payload) > 0 {
		payload = []byte(q.Payload)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (source_text, words, payload)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`, table)
	err = s.q.QueryRowContext(ctx, query, q.SourceText, wordsJSON, payload).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return queryFailed(err, "save question")
	}
	return nil
}

// ListResults implements ResultStore
func (s *PostgresStore) ListResults(ctx context.Context, userID int, kind models.GameKind) (result0 []models.ResultRecord, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "list_results",
		observability.AttributeUserID(userID),
		observability.AttributeGameKind(kind.String()),
	)
	defer observability.FinishSpan(span, &err)

	table, err := resultTable(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT id, game_id, user_id, correct_answers, wrong_answers, correct_question_ids, wrong_question_ids, timestamp
		FROM %s
		WHERE user_id = $1
		ORDER BY timestamp ASC, id ASC`, table)

	rows, err := s.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, queryFailed(err, "list results")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var results []models.ResultRecord
	for rows.Next() {
		var r models.ResultRecord
		var correctIDs, wrongIDs pq.Int64Array
		if err := rows.Scan(&r.ID, &r.GameID, &r.UserID, &r.CorrectAnswers, &r.WrongAnswers, &correctIDs, &wrongIDs, &r.Timestamp); err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to scan result: %v", err)
		}
		r.Kind = kind
		r.CorrectQuestionIDs = toInts(correctIDs)
		r.WrongQuestionIDs = toInts(wrongIDs)
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailed(err, "list results")
	}

	return results, nil
}

// CreateGameResult implements ResultStore
func (s *PostgresStore) CreateGameResult(ctx context.Context, r *models.GameResult) (err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "create_game_result", observability.AttributeUserID(r.UserID))
	defer observability.FinishSpan(span, &err)

	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}

	query := `INSERT INTO game_results (user_id, game, score, timestamp) VALUES ($1, $2, $3, $4) RETURNING id`
	if err = s.q.QueryRowContext(ctx, query, r.UserID, r.Game, r.Score, r.Timestamp).Scan(&r.ID); err != nil {
		return queryFailed(err, "create game result")
	}
	return nil
}

// CreateResult implements ResultStore
func (s *PostgresStore) CreateResult(ctx context.Context, r *models.ResultRecord) (err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "create_result",
		observability.AttributeUserID(r.UserID),
		observability.AttributeGameKind(r.Kind.String()),
	)
	defer observability.FinishSpan(span, &err)

	table, err := resultTable(r.Kind)
	if err != nil {
		return err
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (game_id, user_id, correct_answers, wrong_answers, correct_question_ids, wrong_question_ids, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`, table)
	err = s.q.QueryRowContext(ctx, query,
		r.GameID, r.UserID, r.CorrectAnswers, r.WrongAnswers,
		pq.Array(toInt64s(r.CorrectQuestionIDs)), pq.Array(toInt64s(r.WrongQuestionIDs)), r.Timestamp,
	).Scan(&r.ID)
	if err != nil {
		return queryFailed(err, "create result")
	}
	return nil
}

// FindWords implements WordStore
func (s *PostgresStore) FindWords(ctx context.Context, texts []string) (result0 []models.Word, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "find_words", attribute.Int("words.count", len(texts)))
	defer observability.FinishSpan(span, &err)

	if len(texts) == 0 {
		return nil, nil
	}

	query := `SELECT id, text, translation, pronunciation FROM entries WHERE text = ANY($1) ORDER BY id`
	rows, err := s.q.QueryContext(ctx, query, pq.Array(texts))
	if err != nil {
		return nil, queryFailed(err, "find words")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var words []models.Word
	for rows.Next() {
		var w models.Word
		var translation, pronunciation sql.NullString
		if err := rows.Scan(&w.ID, &w.Text, &translation, &pronunciation); err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to scan word: %v", err)
		}
		w.Translation = translation.String
		w.Pronunciation = pronunciation.String
		words = append(words, w)
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailed(err, "find words")
	}
	return words, nil
}

const masterySelect = `
	SELECT m.id, m.user_id, m.word_id, e.text, m.mastery
	FROM masteries m
	JOIN entries e ON e.id = m.word_id
	WHERE m.user_id = $1`

func (s *PostgresStore) queryMasteries(ctx context.Context, query string, args ...interface{}) ([]models.MasteryEntry, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, queryFailed(err, "list masteries")
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close rows", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	var entries []models.MasteryEntry
	for rows.Next() {
		var m models.MasteryEntry
		if err := rows.Scan(&m.ID, &m.UserID, &m.WordID, &m.Word, &m.Mastery); err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to scan mastery: %v", err)
		}
		entries = append(entries, m)
	}
	if err := rows.Err(); err != nil {
		return nil, queryFailed(err, "list masteries")
	}
	return entries, nil
}

// ListMasteries implements MasteryStore
func (s *PostgresStore) ListMasteries(ctx context.Context, userID int, wordIDs []int) (result0 []models.MasteryEntry, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "list_masteries", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	if len(wordIDs) == 0 {
		return nil, nil
	}
	return s.queryMasteries(ctx, masterySelect+` AND m.word_id = ANY($2) ORDER BY m.word_id`, userID, pq.Array(toInt64s(wordIDs)))
}

// ListUserMasteries implements MasteryStore
func (s *PostgresStore) ListUserMasteries(ctx context.Context, userID int) (result0 []models.MasteryEntry, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "list_user_masteries", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	return s.queryMasteries(ctx, masterySelect+` ORDER BY e.text`, userID)
}

// LockMasteries implements MasteryStore
func (s *PostgresStore) LockMasteries(ctx context.Context, userID int, wordIDs []int) (result0 []models.MasteryEntry, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "lock_masteries", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	if len(wordIDs) == 0 {
		return nil, nil
	}
	return s.queryMasteries(ctx, masterySelect+` AND m.word_id = ANY($2) ORDER BY m.word_id FOR UPDATE OF m`, userID, pq.Array(toInt64s(wordIDs)))
}

// UpsertMastery implements MasteryStore
func (s *PostgresStore) UpsertMastery(ctx context.Context, m *models.MasteryEntry) (err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "upsert_mastery",
		observability.AttributeUserID(m.UserID),
		attribute.Int("word.id", m.WordID),
	)
	defer observability.FinishSpan(span, &err)

	query := `
		INSERT INTO masteries (user_id, word_id, mastery)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, word_id) DO UPDATE SET mastery = EXCLUDED.mastery, updated_at = NOW()
		RETURNING id`
	if err = s.q.QueryRowContext(ctx, query, m.UserID, m.WordID, m.Mastery).Scan(&m.ID); err != nil {
		return queryFailed(err, "upsert mastery")
	}
	return nil
}

// GetPassage implements PassageStore
func (s *PostgresStore) GetPassage(ctx context.Context, id int) (result0 *models.Passage, err error) {
	ctx, span := observability.TraceStoreFunction(ctx, "get_passage", observability.AttributePassageID(id))
	defer observability.FinishSpan(span, &err)

	var p models.Passage
	var newWords []byte
	err = s.q.QueryRowContext(ctx, `SELECT id, new_words FROM passages WHERE id = $1`, id).Scan(&p.ID, &newWords)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, contextutils.WrapErrorf(contextutils.ErrPassageNotFound, "passage %d not found", id)
		}
		return nil, queryFailed(err, "get passage")
	}
	if len(newWords) > 0 {
		if err := json.Unmarshal(newWords, &p.NewWords); err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to decode new words of passage %d: %v", id, err)
		}
	}
	return &p, nil
}
