// Package segment splits question source text into vocabulary words.
package segment

import (
	"context"
	"sort"
	"strings"
	"unicode"

	"wordgames/internal/config"
	"wordgames/internal/observability"
)

// Segmenter splits text into words, without punctuation
type Segmenter interface {
	Segment(ctx context.Context, text string) ([]string, error)
}

var punctuation = map[string]bool{
	"。": true, "？": true, "！": true, "，": true,
	".": true, "!": true, "?": true, ",": true,
}

// Exceptions rewrites segmenter output.
// A plain key replaces one word with its replacement words; a key containing
// commas matches that run of consecutive words.
type Exceptions struct {
	split map[string][]string
	merge []mergeRule
}

type mergeRule struct {
	run         []string
	replacement []string
}

// NewExceptions builds exception rules from the segmenter config table
func NewExceptions(table map[string][]string) *Exceptions {
	e := &Exceptions{split: map[string][]string{}}
	for word, replacement := range table {
		if strings.Contains(word, ",") {
			e.merge = append(e.merge, mergeRule{run: strings.Split(word, ","), replacement: replacement})
			continue
		}
		e.split[word] = replacement
	}
	// Longest runs first so overlapping rules resolve the same way every time
	sort.Slice(e.merge, func(i, j int) bool { return lessRule(e.merge[i], e.merge[j]) })
	return e
}

func lessRule(a, b mergeRule) bool {
	if len(a.run) != len(b.run) {
		return len(a.run) > len(b.run)
	}
	return strings.Join(a.run, ",") < strings.Join(b.run, ",")
}

// Apply drops punctuation, then applies split rules, then merge rules
func (e *Exceptions) Apply(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" || punctuation[w] {
			continue
		}
		if e != nil {
			if replacement, ok := e.split[w]; ok {
				out = append(out, replacement...)
				continue
			}
		}
		out = append(out, w)
	}

	if e == nil || len(e.merge) == 0 {
		return out
	}

	merged := make([]string, 0, len(out))
	for i := 0; i < len(out); {
		rule, ok := e.matchAt(out, i)
		if !ok {
			merged = append(merged, out[i])
			i++
			continue
		}
		merged = append(merged, rule.replacement...)
		i += len(rule.run)
	}
	return merged
}

func (e *Exceptions) matchAt(words []string, i int) (mergeRule, bool) {
	for _, rule := range e.merge {
		if i+len(rule.run) > len(words) {
			continue
		}
		match := true
		for k, part := range rule.run {
			if words[i+k] != part {
				match = false
				break
			}
		}
		if match {
			return rule, true
		}
	}
	return mergeRule{}, false
}

// RuneSegmenter is the built-in segmenter. Each Han character is a word, other
// letters and digits group into words, and everything else separates words.
type RuneSegmenter struct {
	exceptions *Exceptions
}

// NewRuneSegmenter creates a RuneSegmenter
func NewRuneSegmenter(exceptions *Exceptions) *RuneSegmenter {
	return &RuneSegmenter{exceptions: exceptions}
}

// Segment implements Segmenter
func (s *RuneSegmenter) Segment(_ context.Context, text string) ([]string, error) {
	var words []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			words = append(words, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'':
			current.WriteRune(r)
		default:
			flush()
		}
	}
	flush()

	return s.exceptions.Apply(words), nil
}

// New returns the HTTP segmenter when a service URL is configured, else the built-in one
func New(cfg config.SegmenterConfig, logger *observability.Logger) Segmenter {
	exceptions := NewExceptions(cfg.Exceptions)
	if cfg.URL == "" {
		return NewRuneSegmenter(exceptions)
	}
	return NewHTTPSegmenter(cfg, exceptions, logger)
}
