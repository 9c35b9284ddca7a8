package segment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wordgames/internal/config"
	"wordgames/internal/observability"
	contextutils "wordgames/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *observability.Logger {
	return observability.NewLogger(&config.OpenTelemetryConfig{EnableLogging: false})
}

func TestExceptions_Apply(t *testing.T) {
	e := NewExceptions(map[string][]string{
		"学中文":  {"学", "中文"},
		"中,文":  {"中文"},
		"你,好,吗": {"你好", "吗"},
		"你,好":   {"你好"},
	})

	tests := []struct {
		name  string
		words []string
		want  []string
	}{
		{"drops punctuation", []string{"你好", "，", "朋友", "。", "!"}, []string{"你好", "朋友"}},
		{"splits word", []string{"我", "学中文"}, []string{"我", "学", "中文"}},
		{"merges run", []string{"学", "中", "文"}, []string{"学", "中文"}},
		{"longest run wins", []string{"你", "好", "吗", "？"}, []string{"你好", "吗"}},
		{"no rule", []string{"谢谢"}, []string{"谢谢"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.Apply(tt.words))
		})
	}
}

func TestNewExceptions_MergeRuleOrder(t *testing.T) {
	e := NewExceptions(map[string][]string{
		"中,文":   {"中文"},
		"你,好,吗": {"你好", "吗"},
		"一,下":   {"一下"},
		"你,好":   {"你好"},
		"一,下,子": {"一下子"},
	})

	var runs []string
	for _, rule := range e.merge {
		runs = append(runs, strings.Join(rule.run, ","))
	}
	assert.Equal(t, []string{"一,下,子", "你,好,吗", "一,下", "中,文", "你,好"}, runs)
}

func TestExceptions_NilAppliesPunctuationOnly(t *testing.T) {
	var e *Exceptions
	assert.Equal(t, []string{"a", "b"}, e.Apply([]string{"a", ",", " ", "b"}))
}

func TestRuneSegmenter(t *testing.T) {
	s := NewRuneSegmenter(NewExceptions(map[string][]string{"你,好": {"你好"}}))

	words, err := s.Segment(context.Background(), "你好，I'm Li 2024！")
	require.NoError(t, err)
	assert.Equal(t, []string{"你好", "I'm", "Li", "2024"}, words)
}

func TestHTTPSegmenter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req segmentRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "我学中文。", req.Text)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_ = json.NewEncoder(w).Encode(segmentResponse{Words: []string{"我", "学中文", "。"}})
	}))
	defer server.Close()

	s := New(config.SegmenterConfig{URL: server.URL, Exceptions: map[string][]string{"学中文": {"学", "中文"}}}, testLogger())
	words, err := s.Segment(context.Background(), "我学中文。")
	require.NoError(t, err)
	assert.Equal(t, []string{"我", "学", "中文"}, words)
}

func TestHTTPSegmenter_ServiceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	s := NewHTTPSegmenter(config.SegmenterConfig{URL: server.URL}, nil, testLogger())
	_, err := s.Segment(context.Background(), "你好")
	require.Error(t, err)
	assert.True(t, contextutils.IsError(err, contextutils.ErrSegmentationFailed))
	assert.Contains(t, err.Error(), "503")
}

func TestNew_DefaultsToRuneSegmenter(t *testing.T) {
	_, ok := New(config.SegmenterConfig{}, testLogger()).(*RuneSegmenter)
	assert.True(t, ok)
}
