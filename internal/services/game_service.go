package services

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"wordgames/internal/config"
	"wordgames/internal/models"
	"wordgames/internal/observability"
	"wordgames/internal/store"
	contextutils "wordgames/internal/utils"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// GameServiceInterface defines the interface for game operations
type GameServiceInterface interface {
	PlayGame(ctx context.Context, userID int, kind models.GameKind, words []string) ([]models.QuestionPayload, error)
	PlayPassage(ctx context.Context, userID int, kind models.GameKind, passageID int) ([]models.QuestionPayload, error)
	FinishGame(ctx context.Context, userID int, kind models.GameKind, req *models.FinishGameRequest) (*models.ResultRecord, error)
	ListMasteries(ctx context.Context, userID int) ([]models.MasteryEntry, error)
}

// RandSource returns the random source for one selection call
type RandSource func() *rand.Rand

// timeSeeded gives every call its own source
func timeSeeded() *rand.Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// GameService selects question batches and ingests finished games
type GameService struct {
	store     store.Store
	questions store.QuestionStore
	config    *config.Config
	logger    *observability.Logger
	metrics   *observability.GameMetrics
	newRand   RandSource
}

// NewGameService creates a GameService. questions may decorate st's question
// store (for caching); nil uses st directly.
func NewGameService(st store.Store, questions store.QuestionStore, cfg *config.Config, logger *observability.Logger) *GameService {
	if st == nil {
		panic("GameService requires a store")
	}
	if questions == nil {
		questions = st
	}
	return &GameService{
		store:     st,
		questions: questions,
		config:    cfg,
		logger:    logger,
		metrics:   observability.DefaultGameMetrics(),
		newRand:   timeSeeded,
	}
}

// WithRandSource replaces the per-call random source
func (s *GameService) WithRandSource(src RandSource) *GameService {
	s.newRand = src
	return s
}

// WithMetrics replaces the metric instruments
func (s *GameService) WithMetrics(m *observability.GameMetrics) *GameService {
	s.metrics = m
	return s
}

func (s *GameService) playableSpec(kind models.GameKind) (models.GameSpec, error) {
	spec, ok := kind.Spec()
	if !ok {
		return models.GameSpec{}, contextutils.WrapErrorf(contextutils.ErrUnknownGame, "unknown game %q", kind)
	}
	if !spec.Playable() {
		return models.GameSpec{}, contextutils.WrapErrorf(contextutils.ErrGameNotPlayable, "game %q has no questions to play", kind)
	}
	return spec, nil
}

func normalizeWords(words []string) []string {
	var out []string
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}

// PlayGame selects a batch of questions for the user
func (s *GameService) PlayGame(ctx context.Context, userID int, kind models.GameKind, words []string) (result0 []models.QuestionPayload, err error) {
	ctx, span := observability.TraceGameFunction(ctx, "play_game",
		observability.AttributeUserID(userID),
		observability.AttributeGameKind(kind.String()),
	)
	defer observability.FinishSpan(span, &err)

	spec, err := s.playableSpec(kind)
	if err != nil {
		return nil, err
	}
	policy := PolicyFor(s.config.Games, spec)
	rng := s.newRand()
	words = normalizeWords(words)

	results, err := s.store.ListResults(ctx, userID, kind)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to load game history")
	}
	state := ReplayHistory(results)
	due := selectDue(state, policy, rng)

	resurfaced := make(map[int]bool, len(due))
	for _, id := range due {
		resurfaced[id] = true
	}
	excluded := make([]int, 0, len(state))
	for id := range state {
		if !resurfaced[id] {
			excluded = append(excluded, id)
		}
	}

	candidates, err := s.questions.ListQuestions(ctx, kind, excluded, words)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to load questions")
	}

	var toShow, pool []models.Question
	for _, q := range candidates {
		if resurfaced[q.ID] {
			toShow = append(toShow, q)
		} else {
			pool = append(pool, q)
		}
	}

	scored, err := s.scorePool(ctx, userID, pool)
	if err != nil {
		return nil, err
	}

	remaining := policy.NumQuestions - len(toShow)
	targets := drawTargets(rng, remaining, policy.DifficultyMean, policy.DifficultyStdDev)
	picked := sampleByDifficulty(scored, targets)

	batch := make([]models.QuestionPayload, 0, len(toShow)+len(picked))
	for _, q := range toShow {
		batch = append(batch, models.NewQuestionPayload(q))
	}
	for _, sq := range picked {
		p := models.NewQuestionPayload(sq.question)
		difficulty := sq.difficulty
		p.Difficulty = &difficulty
		p.NewWords = sq.newWords
		batch = append(batch, p)
	}
	rng.Shuffle(len(batch), func(i, j int) { batch[i], batch[j] = batch[j], batch[i] })

	span.SetAttributes(
		attribute.Int("history.games", len(results)),
		attribute.Int("questions.resurfaced", len(toShow)),
		attribute.Int("questions.pool", len(pool)),
		attribute.Int("questions.served", len(batch)),
	)
	s.metrics.QuestionsServed(ctx, kind.String(), len(batch))
	s.logger.Debug(ctx, "Selected question batch", map[string]interface{}{
		"user_id":    userID,
		"kind":       kind.String(),
		"resurfaced": len(toShow),
		"pool":       len(pool),
		"served":     len(batch),
	})

	return batch, nil
}

// scorePool computes every pool question's difficulty for the user
func (s *GameService) scorePool(ctx context.Context, userID int, pool []models.Question) ([]scoredQuestion, error) {
	if len(pool) == 0 {
		return nil, nil
	}

	seen := map[string]bool{}
	var texts []string
	for _, q := range pool {
		for _, w := range q.Words {
			if !seen[w] {
				seen[w] = true
				texts = append(texts, w)
			}
		}
	}

	entries, err := s.store.FindWords(ctx, texts)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to look up words")
	}
	vocabulary := make(map[string]models.Word, len(entries))
	wordIDs := make([]int, 0, len(entries))
	for _, e := range entries {
		vocabulary[e.Text] = e
		wordIDs = append(wordIDs, e.ID)
	}

	masteries, err := s.store.ListMasteries(ctx, userID, wordIDs)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to load masteries")
	}
	mastery := make(map[int]int, len(masteries))
	for _, m := range masteries {
		mastery[m.WordID] = m.Mastery
	}

	return scoreDifficulty(pool, vocabulary, mastery), nil
}

// PlayPassage plays a game restricted to the new words of a reading passage
func (s *GameService) PlayPassage(ctx context.Context, userID int, kind models.GameKind, passageID int) (result0 []models.QuestionPayload, err error) {
	ctx, span := observability.TraceGameFunction(ctx, "play_passage",
		observability.AttributeUserID(userID),
		observability.AttributeGameKind(kind.String()),
		observability.AttributePassageID(passageID),
	)
	defer observability.FinishSpan(span, &err)

	if _, err = s.playableSpec(kind); err != nil {
		return nil, err
	}

	passage, err := s.store.GetPassage(ctx, passageID)
	if err != nil {
		return nil, err
	}

	return s.PlayGame(ctx, userID, kind, passage.NewWords)
}

// FinishGame records a finished game and updates the user's word masteries in one transaction
func (s *GameService) FinishGame(ctx context.Context, userID int, kind models.GameKind, req *models.FinishGameRequest) (result0 *models.ResultRecord, err error) {
	ctx, span := observability.TraceGameFunction(ctx, "finish_game",
		observability.AttributeUserID(userID),
		observability.AttributeGameKind(kind.String()),
	)
	defer observability.FinishSpan(span, &err)

	spec, ok := kind.Spec()
	if !ok {
		return nil, contextutils.WrapErrorf(contextutils.ErrUnknownGame, "unknown game %q", kind)
	}
	if req == nil {
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "finish request body is required")
	}

	record := &models.ResultRecord{
		UserID:             userID,
		Kind:               kind,
		CorrectAnswers:     int(req.Correct),
		WrongAnswers:       int(req.Wrong),
		CorrectQuestionIDs: append([]int{}, req.CorrectQuestionIDs...),
		WrongQuestionIDs:   append([]int{}, req.WrongQuestionIDs...),
	}

	var unresolved []string
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		game := &models.GameResult{UserID: userID, Game: spec.Code}
		if err := tx.CreateGameResult(ctx, game); err != nil {
			return contextutils.WrapError(err, "failed to save game result")
		}
		record.GameID = game.ID
		record.Timestamp = game.Timestamp

		if spec.ResultTable != "" {
			if err := tx.CreateResult(ctx, record); err != nil {
				return contextutils.WrapError(err, "failed to save detailed game result")
			}
		}

		var err error
		unresolved, err = s.updateMasteries(ctx, tx, userID, req.CorrectWords, req.WrongWords)
		return err
	})
	if err != nil {
		return nil, err
	}

	if len(unresolved) > 0 {
		span.AddEvent("unresolved_words", trace.WithAttributes(attribute.StringSlice("words", unresolved)))
		s.metrics.UnresolvedWords(ctx, kind.String(), len(unresolved))
		s.logger.Warn(ctx, "Words could not be found for mastery update", map[string]interface{}{
			"user_id": userID,
			"kind":    kind.String(),
			"words":   unresolved,
		})
	}
	s.metrics.GameFinished(ctx, kind.String())

	return record, nil
}

// updateMasteries applies word deltas under row locks and returns the words missing from the vocabulary
func (s *GameService) updateMasteries(ctx context.Context, tx store.Store, userID int, correctWords, wrongWords []string) ([]string, error) {
	deltas, order := computeDeltas(correctWords, wrongWords)
	if len(order) == 0 {
		return nil, nil
	}

	entries, err := tx.FindWords(ctx, order)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to look up answered words")
	}
	vocabulary := make(map[string]models.Word, len(entries))
	wordIDs := make([]int, 0, len(entries))
	for _, e := range entries {
		vocabulary[e.Text] = e
		wordIDs = append(wordIDs, e.ID)
	}

	existing, err := tx.LockMasteries(ctx, userID, wordIDs)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to lock masteries")
	}
	current := make(map[int]models.MasteryEntry, len(existing))
	for _, m := range existing {
		current[m.WordID] = m
	}

	var unresolved []string
	for _, text := range order {
		word, ok := vocabulary[text]
		if !ok {
			unresolved = append(unresolved, text)
			continue
		}

		entry, had := current[word.ID]
		if !had {
			entry = models.MasteryEntry{UserID: userID, WordID: word.ID, Word: word.Text}
		}
		updated := clampMastery(entry.Mastery + deltas[text])
		if had && updated == entry.Mastery {
			continue
		}
		entry.Mastery = updated

		if err := tx.UpsertMastery(ctx, &entry); err != nil {
			return nil, contextutils.WrapError(err, "failed to save mastery")
		}
	}

	return unresolved, nil
}

// ListMasteries returns the user's mastery entries ordered by word
func (s *GameService) ListMasteries(ctx context.Context, userID int) (result0 []models.MasteryEntry, err error) {
	ctx, span := observability.TraceGameFunction(ctx, "list_masteries", observability.AttributeUserID(userID))
	defer observability.FinishSpan(span, &err)

	entries, err := s.store.ListUserMasteries(ctx, userID)
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to list masteries")
	}
	if entries == nil {
		entries = []models.MasteryEntry{}
	}
	return entries, nil
}
