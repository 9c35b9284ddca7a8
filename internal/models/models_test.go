package models

import (
	"encoding/json"
	"testing"

	contextutils "wordgames/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGameKind(t *testing.T) {
	kind, err := ParseGameKind("Scribe")
	require.NoError(t, err)
	assert.Equal(t, GameScribe, kind)

	kind, err = ParseGameKind(" copy_edit ")
	require.NoError(t, err)
	assert.Equal(t, GameCopyEdit, kind)

	_, err = ParseGameKind("flashcard")
	require.Error(t, err)
	assert.True(t, contextutils.IsError(err, contextutils.ErrUnknownGame))
}

func TestGameSpecs(t *testing.T) {
	kinds := AllGameKinds()
	require.Len(t, kinds, 7)
	for i, k := range kinds {
		spec, ok := k.Spec()
		require.True(t, ok)
		assert.Equal(t, i+1, spec.Code, "kind %s", k)
	}

	madMinute, _ := GameMadMinute.Spec()
	assert.False(t, madMinute.Playable())

	speaker, _ := GameSpeaker.Spec()
	scribe, _ := GameScribe.Spec()
	assert.True(t, speaker.Playable())
	assert.Equal(t, scribe.QuestionTable, speaker.QuestionTable)
	assert.Equal(t, 3, speaker.NumQuestions)
	assert.NotEqual(t, scribe.ResultTable, speaker.ResultTable)

	tables := QuestionTables()
	assert.Equal(t, []string{"scribe_questions", "compound_questions", "copy_edit_questions", "narrative_questions", "expressions_questions"}, tables)
}

func TestFinishGameRequest_UnmarshalTallies(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		correct int
		wrong   int
		wantErr bool
	}{
		{"integer tallies", `{"correct": 4, "wrong": 1}`, 4, 1, false},
		{"array tallies", `{"correct": ["a", "b"], "wrong": []}`, 2, 0, false},
		{"mixed", `{"correct": [1, 2, 3], "wrong": 2}`, 3, 2, false},
		{"string rejected", `{"correct": "two", "wrong": 0}`, 0, 0, true},
		{"negative rejected", `{"correct": -1, "wrong": 0}`, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req FinishGameRequest
			err := json.Unmarshal([]byte(tt.body), &req)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, AnswerTally(tt.correct), req.Correct)
			assert.Equal(t, AnswerTally(tt.wrong), req.Wrong)
		})
	}
}

func TestQuestionPayload_OmitsUnscoredFields(t *testing.T) {
	q := Question{ID: 7, SourceText: "你好", Words: []string{"你好"}, Payload: json.RawMessage(`{"english":"hello"}`)}

	data, err := json.Marshal(NewQuestionPayload(q))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"source_text":"你好","words":["你好"],"payload":{"english":"hello"}}`, string(data))

	difficulty := 10
	p := NewQuestionPayload(q)
	p.Difficulty = &difficulty
	p.NewWords = []Word{{ID: 1, Text: "你好", Translation: "hello", Pronunciation: "nǐ hǎo"}}
	data, err = json.Marshal(p)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"difficulty":10`)
	assert.Contains(t, string(data), `"new_words":[{"id":1`)
}
