package models

import (
	"sort"
	"strings"

	contextutils "wordgames/internal/utils"
)

// GameKind identifies a vocabulary drill game
type GameKind string

// Game kinds
const (
	GameMadMinute   GameKind = "mad_minute"
	GameScribe      GameKind = "scribe"
	GameCompound    GameKind = "compound"
	GameCopyEdit    GameKind = "copy_edit"
	GameSpeaker     GameKind = "speaker"
	GameNarrative   GameKind = "narrative"
	GameExpressions GameKind = "expressions"
)

// GameSpec is the per-kind configuration record
type GameSpec struct {
	Kind GameKind
	// Code is stored in game_results.game
	Code int
	// NumQuestions is the kind's batch size; zero means the configured default
	NumQuestions  int
	QuestionTable string
	ResultTable   string
}

// Playable reports whether the kind has a question bank to draw from
func (s GameSpec) Playable() bool {
	return s.QuestionTable != ""
}

// Speaker shares the scribe question bank but serves shorter batches.
var gameSpecs = map[GameKind]GameSpec{
	GameMadMinute:   {Kind: GameMadMinute, Code: 1},
	GameScribe:      {Kind: GameScribe, Code: 2, QuestionTable: "scribe_questions", ResultTable: "scribe_results"},
	GameCompound:    {Kind: GameCompound, Code: 3, QuestionTable: "compound_questions", ResultTable: "compound_results"},
	GameCopyEdit:    {Kind: GameCopyEdit, Code: 4, QuestionTable: "copy_edit_questions", ResultTable: "copy_edit_results"},
	GameSpeaker:     {Kind: GameSpeaker, Code: 5, NumQuestions: 3, QuestionTable: "scribe_questions", ResultTable: "speaker_results"},
	GameNarrative:   {Kind: GameNarrative, Code: 6, QuestionTable: "narrative_questions", ResultTable: "narrative_results"},
	GameExpressions: {Kind: GameExpressions, Code: 7, QuestionTable: "expressions_questions", ResultTable: "expressions_results"},
}

// ParseGameKind resolves a kind name case-insensitively
func ParseGameKind(name string) (GameKind, error) {
	kind := GameKind(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := gameSpecs[kind]; !ok {
		return "", contextutils.WrapErrorf(contextutils.ErrUnknownGame, "unknown game %q", name)
	}
	return kind, nil
}

// Spec returns the configuration record for the kind
func (k GameKind) Spec() (GameSpec, bool) {
	spec, ok := gameSpecs[k]
	return spec, ok
}

// String returns the kind name
func (k GameKind) String() string {
	return string(k)
}

// AllGameKinds returns every kind ordered by code
func AllGameKinds() []GameKind {
	kinds := make([]GameKind, 0, len(gameSpecs))
	for k := range gameSpecs {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool {
		return gameSpecs[kinds[i]].Code < gameSpecs[kinds[j]].Code
	})
	return kinds
}

// QuestionTables returns the distinct question tables in code order
func QuestionTables() []string {
	seen := map[string]bool{}
	var tables []string
	for _, k := range AllGameKinds() {
		t := gameSpecs[k].QuestionTable
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tables = append(tables, t)
	}
	return tables
}
