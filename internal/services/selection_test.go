package services

import (
	"math/rand"
	"testing"

	"wordgames/internal/config"
	"wordgames/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPolicy() Policy {
	return Policy{
		NumQuestions:                10,
		MaxWrongResurface:           3,
		MaxCorrectResurface:         2,
		MaxCorrectResurfaceFewWrong: 3,
		DifficultyMean:              17.5,
		DifficultyStdDev:            5,
	}
}

func TestPolicyFor(t *testing.T) {
	scribe, _ := models.GameScribe.Spec()
	speaker, _ := models.GameSpeaker.Spec()

	p := PolicyFor(config.GamesConfig{}, scribe)
	assert.Equal(t, testPolicy(), p)

	assert.Equal(t, 3, PolicyFor(config.GamesConfig{}, speaker).NumQuestions)

	custom := config.GamesConfig{
		NumQuestions:       6,
		NumQuestionsByKind: map[string]int{"speaker": 4},
		MaxWrongResurface:  1,
	}
	assert.Equal(t, 6, PolicyFor(custom, scribe).NumQuestions)
	assert.Equal(t, 4, PolicyFor(custom, speaker).NumQuestions)
	assert.Equal(t, 1, PolicyFor(custom, scribe).MaxWrongResurface)
}

func TestReplayHistory(t *testing.T) {
	results := []models.ResultRecord{
		{CorrectQuestionIDs: []int{1, 2}, WrongQuestionIDs: []int{3}},
		{CorrectQuestionIDs: []int{1, 3}, WrongQuestionIDs: []int{2}},
		{CorrectQuestionIDs: []int{1}},
	}

	state := ReplayHistory(results)

	require.Len(t, state, 3)
	assert.Equal(t, QuestionState{Streak: 3, GamesAgo: 1}, state[1])
	assert.Equal(t, QuestionState{Streak: wrongStreak, GamesAgo: 2}, state[2])
	// A correct answer after a miss climbs from the miss marker
	assert.Equal(t, QuestionState{Streak: 0, GamesAgo: 2}, state[3])
}

func TestReplayHistory_Empty(t *testing.T) {
	assert.Empty(t, ReplayHistory(nil))
}

func TestQuestionState_Due(t *testing.T) {
	tests := []struct {
		name  string
		state QuestionState
		want  bool
	}{
		{"missed", QuestionState{Streak: wrongStreak, GamesAgo: 9}, false},
		{"zero streak", QuestionState{Streak: 0, GamesAgo: 1}, true},
		{"one correct last game", QuestionState{Streak: 1, GamesAgo: 1}, true},
		{"two correct, one game ago", QuestionState{Streak: 2, GamesAgo: 3}, false},
		{"two correct, four games ago", QuestionState{Streak: 2, GamesAgo: 4}, true},
		{"three correct, eight games ago", QuestionState{Streak: 3, GamesAgo: 8}, false},
		{"three correct, nine games ago", QuestionState{Streak: 3, GamesAgo: 9}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.state.Due())
		})
	}
}

func TestSelectDue_Limits(t *testing.T) {
	state := SelectionState{}
	for id := 1; id <= 5; id++ {
		state[id] = QuestionState{Streak: wrongStreak, GamesAgo: 1}
	}
	for id := 11; id <= 15; id++ {
		state[id] = QuestionState{Streak: 1, GamesAgo: 1}
	}
	// Not due yet
	state[20] = QuestionState{Streak: 2, GamesAgo: 1}

	due := selectDue(state, testPolicy(), rand.New(rand.NewSource(1)))

	require.Len(t, due, 5)
	for _, id := range due[:3] {
		assert.LessOrEqual(t, id, 5)
	}
	for _, id := range due[3:] {
		assert.GreaterOrEqual(t, id, 11)
		assert.LessOrEqual(t, id, 15)
	}
	assert.NotContains(t, due, 20)
}

func TestSelectDue_FewWrongAllowsMoreCorrect(t *testing.T) {
	state := SelectionState{1: {Streak: wrongStreak, GamesAgo: 1}}
	for id := 11; id <= 15; id++ {
		state[id] = QuestionState{Streak: 1, GamesAgo: 2}
	}

	due := selectDue(state, testPolicy(), rand.New(rand.NewSource(7)))

	require.Len(t, due, 4)
	assert.Equal(t, 1, due[0])
}

func TestSelectDue_TruncatedToBatchSize(t *testing.T) {
	state := SelectionState{}
	for id := 1; id <= 5; id++ {
		state[id] = QuestionState{Streak: wrongStreak, GamesAgo: 1}
	}
	policy := testPolicy()
	policy.NumQuestions = 2

	due := selectDue(state, policy, rand.New(rand.NewSource(3)))
	assert.Len(t, due, 2)
}

func TestSelectDue_Repeatable(t *testing.T) {
	state := SelectionState{}
	for id := 1; id <= 30; id++ {
		state[id] = QuestionState{Streak: wrongStreak, GamesAgo: 1}
	}

	first := selectDue(state, testPolicy(), rand.New(rand.NewSource(42)))
	second := selectDue(state, testPolicy(), rand.New(rand.NewSource(42)))
	assert.Equal(t, first, second)
}

func TestSampleIDs(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	ids := []int{1, 2, 3, 4, 5, 6}

	picked := sampleIDs(rng, ids, 4)
	require.Len(t, picked, 4)
	seen := map[int]bool{}
	for _, id := range picked {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
		assert.Contains(t, ids, id)
	}
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, ids, "input must not be reordered")

	assert.Len(t, sampleIDs(rng, ids, 10), 6)
	assert.Empty(t, sampleIDs(rng, ids, 0))
	assert.Empty(t, sampleIDs(rng, nil, 3))
}

func TestScoreDifficulty(t *testing.T) {
	vocabulary := map[string]models.Word{
		"你好": {ID: 1, Text: "你好"},
		"谢谢": {ID: 2, Text: "谢谢"},
		"再见": {ID: 3, Text: "再见"},
	}
	mastery := map[int]int{1: 10, 2: 4}
	pool := []models.Question{
		{ID: 1, Words: []string{"你好"}},
		{ID: 2, Words: []string{"谢谢", "你好"}},
		{ID: 3, Words: []string{"再见", "陌生", "再见"}},
		{ID: 4},
	}

	scored := scoreDifficulty(pool, vocabulary, mastery)

	require.Len(t, scored, 4)
	assert.Equal(t, 0, scored[0].difficulty)
	assert.Empty(t, scored[0].newWords)
	assert.Equal(t, 6, scored[1].difficulty)
	assert.Equal(t, 30, scored[2].difficulty)
	assert.Equal(t, []models.Word{{ID: 3, Text: "再见"}}, scored[2].newWords)
	assert.Equal(t, 0, scored[3].difficulty)
}

func TestScoreDifficulty_UnknownWordsScoreTen(t *testing.T) {
	pool := []models.Question{{ID: 1, Words: []string{"a", "b", "c", "d"}}}

	scored := scoreDifficulty(pool, map[string]models.Word{}, map[int]int{})

	assert.Equal(t, 40, scored[0].difficulty)
	assert.Empty(t, scored[0].newWords)
}

func TestDrawTargets(t *testing.T) {
	targets := drawTargets(rand.New(rand.NewSource(1)), 4, 17.5, 0)
	assert.Equal(t, []int{17, 17, 17, 17}, targets)

	assert.Empty(t, drawTargets(rand.New(rand.NewSource(1)), 0, 17.5, 5))
	assert.Empty(t, drawTargets(rand.New(rand.NewSource(1)), -2, 17.5, 5))

	a := drawTargets(rand.New(rand.NewSource(9)), 5, 17.5, 5)
	b := drawTargets(rand.New(rand.NewSource(9)), 5, 17.5, 5)
	assert.Equal(t, a, b)
}

func scoredPool(pairs ...int) []scoredQuestion {
	var out []scoredQuestion
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, scoredQuestion{question: models.Question{ID: pairs[i]}, difficulty: pairs[i+1]})
	}
	return out
}

func pickedIDs(picked []scoredQuestion) []int {
	ids := make([]int, 0, len(picked))
	for _, p := range picked {
		ids = append(ids, p.question.ID)
	}
	return ids
}

func TestSampleByDifficulty(t *testing.T) {
	// id, difficulty
	pool := scoredPool(1, 30, 2, 10, 3, 20, 4, 10, 5, 20)

	tests := []struct {
		name    string
		targets []int
		want    []int
	}{
		{"exact match takes first of ties", []int{10}, []int{2}},
		{"ties drain in pool order", []int{10, 10, 10}, []int{2, 4, 3}},
		{"between values takes next harder", []int{15}, []int{3}},
		{"below all takes easiest", []int{-4}, []int{2}},
		{"above all takes hardest", []int{99}, []int{1}},
		{"above all repeatedly walks down", []int{99, 99}, []int{1, 5}},
		{"stops when pool is empty", []int{0, 0, 0, 0, 0, 0, 0}, []int{2, 4, 3, 5, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			picked := sampleByDifficulty(pool, tt.targets)
			assert.Equal(t, tt.want, pickedIDs(picked))
		})
	}

	assert.Equal(t, []int{1, 2, 3, 4, 5}, pickedIDs(pool), "input pool must be untouched")
}

func TestSampleByDifficulty_EmptyPool(t *testing.T) {
	assert.Empty(t, sampleByDifficulty(nil, []int{10, 20}))
}
