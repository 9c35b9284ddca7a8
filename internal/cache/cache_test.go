package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"wordgames/internal/config"
	"wordgames/internal/models"
	"wordgames/internal/observability"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *goredis.StringCmd {
	if f.getErr != nil {
		return goredis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return goredis.NewStringResult("", goredis.Nil)
	}
	return goredis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = expiration
	return goredis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *goredis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return goredis.NewIntResult(n, nil)
}

type mockQuestionStore struct {
	mock.Mock
}

func (m *mockQuestionStore) ListQuestions(ctx context.Context, kind models.GameKind, excluded []int, words []string) ([]models.Question, error) {
	args := m.Called(ctx, kind, excluded, words)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Question), args.Error(1)
}

func (m *mockQuestionStore) GetQuestion(ctx context.Context, kind models.GameKind, id int) (*models.Question, error) {
	args := m.Called(ctx, kind, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Question), args.Error(1)
}

func (m *mockQuestionStore) SaveQuestion(ctx context.Context, kind models.GameKind, q *models.Question) error {
	args := m.Called(ctx, kind, q)
	return args.Error(0)
}

func testLogger() *observability.Logger {
	return observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
}

var bank = []models.Question{
	{ID: 1, SourceText: "你好", Words: []string{"你好"}},
	{ID: 2, SourceText: "谢谢你", Words: []string{"谢谢", "你"}},
	{ID: 3, SourceText: "再见", Words: []string{"再见"}},
}

func TestQuestionCache_MissThenHit(t *testing.T) {
	next := &mockQuestionStore{}
	next.On("ListQuestions", mock.Anything, models.GameScribe, []int(nil), []string(nil)).Return(bank, nil).Once()
	rdb := newFakeRedis()
	c := NewQuestionCache(next, rdb, config.CacheConfig{TTL: time.Minute, KeyPrefix: "test"}, testLogger())

	first, err := c.ListQuestions(context.Background(), models.GameScribe, []int{1}, nil)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 2, first[0].ID)
	assert.Contains(t, rdb.data, "test:questions:scribe_questions")
	assert.Equal(t, time.Minute, rdb.ttls["test:questions:scribe_questions"])

	// Speaker shares the scribe bank and must be served from the same entry.
	second, err := c.ListQuestions(context.Background(), models.GameSpeaker, nil, []string{"你"})
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, []string{"谢谢", "你"}, second[1].Words)

	next.AssertExpectations(t)
}

func TestQuestionCache_RedisErrorFallsBackToStore(t *testing.T) {
	next := &mockQuestionStore{}
	next.On("ListQuestions", mock.Anything, models.GameScribe, []int{2}, []string{"再"}).Return(bank[2:], nil).Once()
	rdb := newFakeRedis()
	rdb.getErr = errors.New("connection refused")
	c := NewQuestionCache(next, rdb, config.CacheConfig{}, testLogger())

	got, err := c.ListQuestions(context.Background(), models.GameScribe, []int{2}, []string{"再"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].ID)
	assert.Empty(t, rdb.data)
	next.AssertExpectations(t)
}

func TestQuestionCache_CorruptEntryIsReloaded(t *testing.T) {
	next := &mockQuestionStore{}
	next.On("ListQuestions", mock.Anything, models.GameScribe, []int(nil), []string(nil)).Return(bank, nil).Once()
	rdb := newFakeRedis()
	rdb.data["wordgames:questions:scribe_questions"] = "not json"
	c := NewQuestionCache(next, rdb, config.CacheConfig{}, testLogger())

	got, err := c.ListQuestions(context.Background(), models.GameScribe, nil, nil)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	next.AssertExpectations(t)
}

func TestQuestionCache_SaveInvalidates(t *testing.T) {
	next := &mockQuestionStore{}
	q := &models.Question{SourceText: "加油"}
	next.On("SaveQuestion", mock.Anything, models.GameSpeaker, q).Return(nil).Once()
	rdb := newFakeRedis()
	rdb.data["wordgames:questions:scribe_questions"] = "[]"
	c := NewQuestionCache(next, rdb, config.CacheConfig{}, testLogger())

	require.NoError(t, c.SaveQuestion(context.Background(), models.GameSpeaker, q))
	assert.NotContains(t, rdb.data, "wordgames:questions:scribe_questions")
	next.AssertExpectations(t)
}

func TestQuestionCache_NotPlayablePassesThrough(t *testing.T) {
	next := &mockQuestionStore{}
	next.On("ListQuestions", mock.Anything, models.GameMadMinute, []int(nil), []string(nil)).Return(nil, errors.New("not playable")).Once()
	c := NewQuestionCache(next, newFakeRedis(), config.CacheConfig{}, testLogger())

	_, err := c.ListQuestions(context.Background(), models.GameMadMinute, nil, nil)
	require.Error(t, err)
	next.AssertExpectations(t)
}
