package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"wordgames/internal/models"
	"wordgames/internal/segment"
	"wordgames/internal/store"
	contextutils "wordgames/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGameService struct {
	mock.Mock
}

func (m *mockGameService) PlayGame(ctx context.Context, userID int, kind models.GameKind, words []string) ([]models.QuestionPayload, error) {
	args := m.Called(ctx, userID, kind, words)
	batch, _ := args.Get(0).([]models.QuestionPayload)
	return batch, args.Error(1)
}

func (m *mockGameService) PlayPassage(ctx context.Context, userID int, kind models.GameKind, passageID int) ([]models.QuestionPayload, error) {
	args := m.Called(ctx, userID, kind, passageID)
	batch, _ := args.Get(0).([]models.QuestionPayload)
	return batch, args.Error(1)
}

func (m *mockGameService) FinishGame(ctx context.Context, userID int, kind models.GameKind, req *models.FinishGameRequest) (*models.ResultRecord, error) {
	args := m.Called(ctx, userID, kind, req)
	record, _ := args.Get(0).(*models.ResultRecord)
	return record, args.Error(1)
}

func (m *mockGameService) ListMasteries(ctx context.Context, userID int) ([]models.MasteryEntry, error) {
	args := m.Called(ctx, userID)
	entries, _ := args.Get(0).([]models.MasteryEntry)
	return entries, args.Error(1)
}

func TestParseQuestionFile(t *testing.T) {
	input := `
- source_text: "  我喜欢猫。 "
  payload:
    translation: I like cats.
- source_text: 你好
  words: [你好]
`
	entries, err := parseQuestionFile(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "我喜欢猫。", entries[0].SourceText)
	assert.Equal(t, "I like cats.", entries[0].Payload["translation"])
	assert.Equal(t, []string{"你好"}, entries[1].Words)
}

func TestParseQuestionFile_Empty(t *testing.T) {
	entries, err := parseQuestionFile(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestParseQuestionFile_Errors(t *testing.T) {
	_, err := parseQuestionFile(strings.NewReader("- source_text: ok\n- payload: {a: 1}\n"))
	assert.True(t, contextutils.IsError(err, contextutils.ErrMissingRequired))

	_, err = parseQuestionFile(strings.NewReader("source_text: [unterminated"))
	assert.True(t, contextutils.IsError(err, contextutils.ErrInvalidInput))
}

func TestImportQuestions(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	seg := segment.NewRuneSegmenter(segment.NewExceptions(nil))

	entries := []questionEntry{
		{SourceText: "我爱你。", Payload: map[string]interface{}{"translation": "I love you."}},
		{SourceText: "你好吗", Words: []string{"你好", "吗"}},
	}

	saved, err := importQuestions(ctx, st, seg, models.GameScribe, entries)
	require.NoError(t, err)
	assert.Equal(t, 2, saved)

	questions, err := st.ListQuestions(ctx, models.GameScribe, nil, nil)
	require.NoError(t, err)
	require.Len(t, questions, 2)

	byText := map[string]models.Question{}
	for _, q := range questions {
		byText[q.SourceText] = q
	}
	assert.Equal(t, []string{"我", "爱", "你"}, byText["我爱你。"].Words)
	assert.JSONEq(t, `{"translation":"I love you."}`, string(byText["我爱你。"].Payload))
	assert.Equal(t, []string{"你好", "吗"}, byText["你好吗"].Words)
	assert.Empty(t, byText["你好吗"].Payload)
}

func TestImportQuestions_NoQuestionBank(t *testing.T) {
	ctx := context.Background()
	seg := segment.NewRuneSegmenter(segment.NewExceptions(nil))

	saved, err := importQuestions(ctx, store.NewMemoryStore(), seg, models.GameMadMinute, []questionEntry{{SourceText: "你好"}})
	assert.Error(t, err)
	assert.Equal(t, 0, saved)
}

func TestRunPlay(t *testing.T) {
	svc := &mockGameService{}
	diff := 12
	batch := []models.QuestionPayload{{ID: 4, SourceText: "你好", Words: []string{"你好"}, Difficulty: &diff}}
	svc.On("PlayGame", mock.Anything, 7, models.GameCompound, []string{"你好"}).Return(batch, nil)

	var out bytes.Buffer
	require.NoError(t, runPlay(context.Background(), &out, svc, 7, models.GameCompound, []string{"你好"}))

	var decoded []models.QuestionPayload
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, 4, decoded[0].ID)
	assert.Contains(t, out.String(), "你好")
	svc.AssertExpectations(t)
}

func TestRunPlay_Error(t *testing.T) {
	svc := &mockGameService{}
	svc.On("PlayGame", mock.Anything, 7, models.GameMadMinute, []string(nil)).Return(nil, contextutils.ErrGameNotPlayable)

	var out bytes.Buffer
	err := runPlay(context.Background(), &out, svc, 7, models.GameMadMinute, nil)
	assert.True(t, contextutils.IsError(err, contextutils.ErrGameNotPlayable))
	assert.Empty(t, out.String())
}

func TestRunShowMastery(t *testing.T) {
	svc := &mockGameService{}
	svc.On("ListMasteries", mock.Anything, 3).Return([]models.MasteryEntry{
		{ID: 1, UserID: 3, WordID: 10, Word: "猫", Mastery: 4},
	}, nil)
	svc.On("ListMasteries", mock.Anything, 4).Return([]models.MasteryEntry{}, nil)
	svc.On("ListMasteries", mock.Anything, 5).Return(nil, errors.New("boom"))

	var out bytes.Buffer
	require.NoError(t, runShowMastery(context.Background(), &out, svc, 3))
	assert.Contains(t, out.String(), "WORD")
	assert.Contains(t, out.String(), "猫")

	out.Reset()
	require.NoError(t, runShowMastery(context.Background(), &out, svc, 4))
	assert.Equal(t, "No masteries for user 4\n", out.String())

	assert.Error(t, runShowMastery(context.Background(), &out, svc, 5))
}

func TestMaskDatabaseURL(t *testing.T) {
	assert.Equal(t, "postgres://***:***@db:5432/wordgames?sslmode=disable",
		maskDatabaseURL("postgres://admin:secret@db:5432/wordgames?sslmode=disable"))
	assert.Equal(t, "postgres://db/wordgames", maskDatabaseURL("postgres://db/wordgames"))
}

func TestSplitWords(t *testing.T) {
	assert.Equal(t, []string{"你好", "猫"}, splitWords(" 你好, ,猫 "))
	assert.Nil(t, splitWords(""))
}

func TestStatTables(t *testing.T) {
	tables := statTables()
	assert.Contains(t, tables, "game_results")
	assert.Contains(t, tables, "scribe_questions")
	assert.Contains(t, tables, "speaker_results")
}
