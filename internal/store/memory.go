package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"wordgames/internal/models"
	contextutils "wordgames/internal/utils"
)

type masteryKey struct {
	userID int
	wordID int
}

type memoryState struct {
	questions   map[string][]models.Question // by question table
	results     map[string][]models.ResultRecord
	gameResults []models.GameResult
	words       map[string]models.Word
	masteries   map[masteryKey]models.MasteryEntry
	passages    map[int]models.Passage
	nextID      int
}

func (st *memoryState) clone() *memoryState {
	c := &memoryState{
		questions:   make(map[string][]models.Question, len(st.questions)),
		results:     make(map[string][]models.ResultRecord, len(st.results)),
		gameResults: append([]models.GameResult(nil), st.gameResults...),
		words:       make(map[string]models.Word, len(st.words)),
		masteries:   make(map[masteryKey]models.MasteryEntry, len(st.masteries)),
		passages:    make(map[int]models.Passage, len(st.passages)),
		nextID:      st.nextID,
	}
	for k, v := range st.questions {
		c.questions[k] = append([]models.Question(nil), v...)
	}
	for k, v := range st.results {
		c.results[k] = append([]models.ResultRecord(nil), v...)
	}
	for k, v := range st.words {
		c.words[k] = v
	}
	for k, v := range st.masteries {
		c.masteries[k] = v
	}
	for k, v := range st.passages {
		c.passages[k] = v
	}
	return c
}

// MemoryStore is a Store kept in process memory.
// Transactions are serialized and roll back by restoring a snapshot.
type MemoryStore struct {
	mu    *sync.Mutex
	txMu  *sync.Mutex
	state *memoryState
	inTx  bool
	clock func() time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mu:   &sync.Mutex{},
		txMu: &sync.Mutex{},
		state: &memoryState{
			questions: map[string][]models.Question{},
			results:   map[string][]models.ResultRecord{},
			words:     map[string]models.Word{},
			masteries: map[masteryKey]models.MasteryEntry{},
			passages:  map[int]models.Passage{},
		},
		clock: time.Now,
	}
}

// SetClock overrides the timestamp source for created records
func (s *MemoryStore) SetClock(clock func() time.Time) {
	s.clock = clock
}

func (s *MemoryStore) id() int {
	s.state.nextID++
	return s.state.nextID
}

// WithTx implements Store
func (s *MemoryStore) WithTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.state.clone()
	s.mu.Unlock()

	tx := &MemoryStore{mu: s.mu, txMu: s.txMu, state: s.state, inTx: true, clock: s.clock}
	if err := fn(tx); err != nil {
		s.mu.Lock()
		*s.state = *snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// AddWord seeds a vocabulary entry and returns it with its ID
func (s *MemoryStore) AddWord(w models.Word) models.Word {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.state.words[w.Text]; ok {
		return existing
	}
	w.ID = s.id()
	s.state.words[w.Text] = w
	return w
}

// AddPassage seeds a passage and returns its ID
func (s *MemoryStore) AddPassage(p models.Passage) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	s.state.passages[p.ID] = p
	return p.ID
}

// GameResults returns every generic game result recorded
func (s *MemoryStore) GameResults() []models.GameResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.GameResult(nil), s.state.gameResults...)
}

// ListQuestions implements QuestionStore
func (s *MemoryStore) ListQuestions(_ context.Context, kind models.GameKind, excluded []int, words []string) ([]models.Question, error) {
	table, err := questionTable(kind)
	if err != nil {
		return nil, err
	}

	skip := make(map[int]bool, len(excluded))
	for _, id := range excluded {
		skip[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Question
	for _, q := range s.state.questions[table] {
		if skip[q.ID] || !MatchesWords(q.SourceText, words) {
			continue
		}
		out = append(out, q)
	}
	return out, nil
}

// MatchesWords reports whether text contains any of words; no words matches everything
func MatchesWords(text string, words []string) bool {
	if len(words) == 0 {
		return true
	}
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// GetQuestion implements QuestionStore
func (s *MemoryStore) GetQuestion(_ context.Context, kind models.GameKind, id int) (*models.Question, error) {
	table, err := questionTable(kind)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.state.questions[table] {
		if q.ID == id {
			found := q
			return &found, nil
		}
	}
	return nil, contextutils.ErrRecordNotFound
}

// SaveQuestion implements QuestionStore
func (s *MemoryStore) SaveQuestion(_ context.Context, kind models.GameKind, q *models.Question) error {
	table, err := questionTable(kind)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	q.ID = s.id()
	q.CreatedAt = s.clock()
	q.UpdatedAt = q.CreatedAt
	s.state.questions[table] = append(s.state.questions[table], *q)
	return nil
}

// ListResults implements ResultStore
func (s *MemoryStore) ListResults(_ context.Context, userID int, kind models.GameKind) ([]models.ResultRecord, error) {
	table, err := resultTable(kind)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.ResultRecord
	for _, r := range s.state.results[table] {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

// CreateGameResult implements ResultStore
func (s *MemoryStore) CreateGameResult(_ context.Context, r *models.GameResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.id()
	if r.Timestamp.IsZero() {
		r.Timestamp = s.clock()
	}
	s.state.gameResults = append(s.state.gameResults, *r)
	return nil
}

// CreateResult implements ResultStore
func (s *MemoryStore) CreateResult(_ context.Context, r *models.ResultRecord) error {
	table, err := resultTable(r.Kind)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	r.ID = s.id()
	if r.Timestamp.IsZero() {
		r.Timestamp = s.clock()
	}
	stored := *r
	stored.CorrectQuestionIDs = append([]int(nil), r.CorrectQuestionIDs...)
	stored.WrongQuestionIDs = append([]int(nil), r.WrongQuestionIDs...)
	s.state.results[table] = append(s.state.results[table], stored)
	return nil
}

// FindWords implements WordStore
func (s *MemoryStore) FindWords(_ context.Context, texts []string) ([]models.Word, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.Word
	seen := map[string]bool{}
	for _, t := range texts {
		if w, ok := s.state.words[t]; ok && !seen[t] {
			seen[t] = true
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) wordText(id int) string {
	for _, w := range s.state.words {
		if w.ID == id {
			return w.Text
		}
	}
	return ""
}

// ListMasteries implements MasteryStore
func (s *MemoryStore) ListMasteries(_ context.Context, userID int, wordIDs []int) ([]models.MasteryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.MasteryEntry
	for _, id := range wordIDs {
		if m, ok := s.state.masteries[masteryKey{userID, id}]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// ListUserMasteries implements MasteryStore
func (s *MemoryStore) ListUserMasteries(_ context.Context, userID int) ([]models.MasteryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.MasteryEntry
	for k, m := range s.state.masteries {
		if k.userID == userID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Word < out[j].Word })
	return out, nil
}

// LockMasteries implements MasteryStore; transactions are already serialized
func (s *MemoryStore) LockMasteries(ctx context.Context, userID int, wordIDs []int) ([]models.MasteryEntry, error) {
	return s.ListMasteries(ctx, userID, wordIDs)
}

// UpsertMastery implements MasteryStore
func (s *MemoryStore) UpsertMastery(_ context.Context, m *models.MasteryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := masteryKey{m.UserID, m.WordID}
	if existing, ok := s.state.masteries[key]; ok {
		m.ID = existing.ID
	} else {
		m.ID = s.id()
	}
	if m.Word == "" {
		m.Word = s.wordText(m.WordID)
	}
	s.state.masteries[key] = *m
	return nil
}

// GetPassage implements PassageStore
func (s *MemoryStore) GetPassage(_ context.Context, id int) (*models.Passage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.passages[id]
	if !ok {
		return nil, contextutils.WrapErrorf(contextutils.ErrPassageNotFound, "passage %d not found", id)
	}
	return &p, nil
}
