// Package questionbank implements the read-only question catalog the
// session engine selects questions from, grounded on the reference
// implementation's select_questions_for_session (difficulty exact-match
// plus theme-set intersection, Fisher-Yates via math/rand).
package questionbank

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/hactazia/quiznet/internal/quiznet"
)

// Bank is the in-memory question catalog used by the session engine. Load
// replaces its contents under the write lock; every read takes the read
// lock.
type Bank struct {
	mu        sync.RWMutex
	themes    []quiznet.Theme
	questions map[int]quiznet.Question
	byOrder   []int // question IDs in load order, for stable iteration
}

// New returns an empty bank. Use Load or LoadFile to populate it.
func New() *Bank {
	return &Bank{questions: make(map[int]quiznet.Question)}
}

// Load replaces the bank's contents. Themes are taken as given (already
// assigned dense ids by the caller's loader); questions are indexed by id.
func (b *Bank) Load(themes []quiznet.Theme, questions []quiznet.Question) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.themes = append([]quiznet.Theme(nil), themes...)
	b.questions = make(map[int]quiznet.Question, len(questions))
	b.byOrder = make([]int, 0, len(questions))
	for _, q := range questions {
		b.questions[q.ID] = q
		b.byOrder = append(b.byOrder, q.ID)
	}
}

// Themes returns the immutable theme list.
func (b *Bank) Themes() []quiznet.Theme {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]quiznet.Theme(nil), b.themes...)
}

// Get looks up a question by id.
func (b *Bank) Get(id int) (quiznet.Question, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	q, ok := b.questions[id]
	return q, ok
}

// Size returns the number of loaded questions.
func (b *Bank) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byOrder)
}

// ErrInsufficientQuestions is returned by Select when fewer than count
// questions match the requested difficulty/theme filter.
var ErrInsufficientQuestions = fmt.Errorf("insufficient questions matching criteria")

// Select filters the bank to questions whose difficulty matches exactly
// and whose theme-id set intersects themeIDs, then returns a uniformly
// shuffled prefix of length count. Returns ErrInsufficientQuestions if
// fewer than count questions match.
func (b *Bank) Select(themeIDs []int, difficulty quiznet.Difficulty, count int) ([]int, error) {
	b.mu.RLock()
	matching := make([]int, 0)
	for _, id := range b.byOrder {
		q := b.questions[id]
		if q.Difficulty == difficulty && q.HasTheme(themeIDs) {
			matching = append(matching, id)
		}
	}
	b.mu.RUnlock()

	if len(matching) < count {
		return nil, ErrInsufficientQuestions
	}

	rand.Shuffle(len(matching), func(i, j int) {
		matching[i], matching[j] = matching[j], matching[i]
	})
	return matching[:count], nil
}
