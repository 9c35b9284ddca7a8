package services

import (
	"math"
	"math/rand"
	"sort"

	"wordgames/internal/config"
	"wordgames/internal/models"
)

// wrongStreak marks a question whose latest answer was wrong
const wrongStreak = -1

// Policy holds the selection limits for one game kind
type Policy struct {
	NumQuestions                int
	MaxWrongResurface           int
	MaxCorrectResurface         int
	MaxCorrectResurfaceFewWrong int
	DifficultyMean              float64
	DifficultyStdDev            float64
}

// PolicyFor resolves the selection policy for a game from configuration
func PolicyFor(cfg config.GamesConfig, spec models.GameSpec) Policy {
	p := Policy{
		NumQuestions:                cfg.NumQuestionsFor(spec.Kind.String(), spec.NumQuestions),
		MaxWrongResurface:           cfg.MaxWrongResurface,
		MaxCorrectResurface:         cfg.MaxCorrectResurface,
		MaxCorrectResurfaceFewWrong: cfg.MaxCorrectResurfaceFewWrong,
		DifficultyMean:              cfg.DifficultyMean,
		DifficultyStdDev:            cfg.DifficultyStdDev,
	}
	if p.MaxWrongResurface == 0 {
		p.MaxWrongResurface = config.DefaultMaxWrongResurface
	}
	if p.MaxCorrectResurface == 0 {
		p.MaxCorrectResurface = config.DefaultMaxCorrectResurface
	}
	if p.MaxCorrectResurfaceFewWrong == 0 {
		p.MaxCorrectResurfaceFewWrong = config.DefaultMaxCorrectResurfaceFewWrong
	}
	if p.DifficultyMean == 0 {
		p.DifficultyMean = config.DefaultDifficultyMean
	}
	if p.DifficultyStdDev == 0 {
		p.DifficultyStdDev = config.DefaultDifficultyStdDev
	}
	return p
}

// QuestionState is what a user's history says about one question
type QuestionState struct {
	// Streak counts consecutive correct answers; wrongStreak after a wrong one
	Streak int
	// GamesAgo counts games since the question was last answered
	GamesAgo int
}

// SelectionState maps every question id the user has answered to its state
type SelectionState map[int]QuestionState

// ReplayHistory folds results, oldest first, into per-question state.
// A wrong answer resets the streak to wrongStreak; a correct one increments
// whatever value the accumulator holds.
func ReplayHistory(results []models.ResultRecord) SelectionState {
	state := SelectionState{}
	total := len(results)

	for idx, r := range results {
		gamesAgo := total - idx

		for _, id := range r.CorrectQuestionIDs {
			qs, ok := state[id]
			if ok {
				qs.Streak++
			} else {
				qs.Streak = 1
			}
			qs.GamesAgo = gamesAgo
			state[id] = qs
		}

		for _, id := range r.WrongQuestionIDs {
			state[id] = QuestionState{Streak: wrongStreak, GamesAgo: gamesAgo}
		}
	}

	return state
}

// Due reports whether a correctly answered question has waited long enough:
// k correct answers in a row need at least k² games.
func (qs QuestionState) Due() bool {
	return qs.Streak >= 0 && qs.GamesAgo >= qs.Streak*qs.Streak
}

// selectDue samples the resurfacing questions: missed ones first, then due ones.
func selectDue(state SelectionState, policy Policy, rng *rand.Rand) []int {
	var wrong, correct []int
	for id, qs := range state {
		switch {
		case qs.Streak == wrongStreak:
			wrong = append(wrong, id)
		case qs.Due():
			correct = append(correct, id)
		}
	}
	// Map order is random; sort so a seeded source gives repeatable picks
	sort.Ints(wrong)
	sort.Ints(correct)

	maxCorrect := policy.MaxCorrectResurface
	if len(wrong) < policy.MaxWrongResurface {
		maxCorrect = policy.MaxCorrectResurfaceFewWrong
	}

	due := sampleIDs(rng, wrong, policy.MaxWrongResurface)
	due = append(due, sampleIDs(rng, correct, maxCorrect)...)

	if len(due) > policy.NumQuestions {
		due = due[:policy.NumQuestions]
	}
	return due
}

// sampleIDs draws up to k ids uniformly without replacement
func sampleIDs(rng *rand.Rand, ids []int, k int) []int {
	if k <= 0 || len(ids) == 0 {
		return nil
	}
	if k > len(ids) {
		k = len(ids)
	}
	pool := append([]int(nil), ids...)
	for i := 0; i < k; i++ {
		j := i + rng.Intn(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k]
}

// scoredQuestion is a pool question with its difficulty for this user
type scoredQuestion struct {
	question   models.Question
	difficulty int
	newWords   []models.Word
}

// wordScore is the unfamiliarity of a word: 10 when unknown or never practised
func wordScore(mastery int, practised bool) int {
	if !practised {
		return models.MaxMastery
	}
	return models.MaxMastery - mastery
}

// scoreDifficulty sums word scores per question. vocabulary maps text to entries
// that exist; mastery maps word id to the user's mastery. Words in the vocabulary
// without a mastery entry are reported as new.
func scoreDifficulty(pool []models.Question, vocabulary map[string]models.Word, mastery map[int]int) []scoredQuestion {
	scored := make([]scoredQuestion, 0, len(pool))
	for _, q := range pool {
		sq := scoredQuestion{question: q}
		seenNew := map[string]bool{}

		for _, text := range q.Words {
			word, known := vocabulary[text]
			if !known {
				sq.difficulty += wordScore(0, false)
				continue
			}
			m, practised := mastery[word.ID]
			sq.difficulty += wordScore(m, practised)
			if !practised && !seenNew[text] {
				seenNew[text] = true
				sq.newWords = append(sq.newWords, word)
			}
		}

		scored = append(scored, sq)
	}
	return scored
}

// drawTargets draws n target difficulties from N(mean, stdev), floored
func drawTargets(rng *rand.Rand, n int, mean, stdev float64) []int {
	if n <= 0 {
		return nil
	}
	targets := make([]int, 0, n)
	for i := 0; i < n; i++ {
		targets = append(targets, int(math.Floor(rng.NormFloat64()*stdev+mean)))
	}
	return targets
}

// sampleByDifficulty picks one question per target from the pool sorted by
// difficulty. The pick is the first question at the target difficulty, or the
// first one above it, or the hardest one when every question is easier.
// Picked questions leave the pool, and sampling stops when the pool is empty.
func sampleByDifficulty(pool []scoredQuestion, targets []int) []scoredQuestion {
	remaining := append([]scoredQuestion(nil), pool...)
	sort.SliceStable(remaining, func(i, j int) bool {
		return remaining[i].difficulty < remaining[j].difficulty
	})

	picked := make([]scoredQuestion, 0, len(targets))
	for _, target := range targets {
		if len(remaining) == 0 {
			break
		}
		idx := sort.Search(len(remaining), func(i int) bool {
			return remaining[i].difficulty >= target
		})
		if idx == len(remaining) {
			idx = len(remaining) - 1
		}
		picked = append(picked, remaining[idx])
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	return picked
}
