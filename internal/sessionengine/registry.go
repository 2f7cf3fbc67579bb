package sessionengine

import (
	"sync"
	"time"

	"github.com/hactazia/quiznet/internal/apperr"
	"github.com/hactazia/quiznet/internal/questionbank"
	"github.com/hactazia/quiznet/internal/quiznet"
)

// Registry is the process-wide session table: slot allocation, id
// assignment and membership lookup, guarded by its own lock per
// SPEC_FULL.md §5's lock order (clients → sessions → accounts). Mutation
// of an individual session's internal state never happens here — it is
// handed off to that session's own goroutine via submit.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[int]*Session
	// finished holds the ids of sessions whose Status has transitioned to
	// Finished, kept in sync by each session's onFinished callback rather
	// than by reading Status from outside that session's own goroutine —
	// Status itself is only ever safe to read from inside a submit job.
	finished  map[int]bool
	nextID    int
	maxActive int
	bank      *questionbank.Bank
	broadcast Broadcaster
	metrics   Metrics
	engineCfg Config
}

// NewRegistry builds a session registry bounded to maxActive concurrent
// non-finished sessions (SPEC_FULL.md §4.5.2: "up to 20 concurrent
// sessions are supported").
func NewRegistry(maxActive int, bank *questionbank.Bank, broadcaster Broadcaster, cfg Config) *Registry {
	return &Registry{
		sessions:  make(map[int]*Session),
		finished:  make(map[int]bool),
		maxActive: maxActive,
		bank:      bank,
		broadcast: broadcaster,
		metrics:   noopMetrics{},
		engineCfg: cfg,
	}
}

// markFinished records that session id has reached Finished. Called from
// that session's own goroutine via its onFinished callback, never from
// the registry itself, so it must take its own lock rather than assume
// one of the registry's callers already holds it.
func (r *Registry) markFinished(id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished[id] = true
}

// SetMetrics wires m in place of the no-op default. Must be called
// before the registry starts creating sessions.
func (r *Registry) SetMetrics(m Metrics) {
	r.metrics = m
}

// CreateParams mirrors POST session/create's body, already validated by
// the dispatcher's field presence/type checks.
type CreateParams struct {
	Name        string
	ThemeIDs    []int
	Difficulty  quiznet.Difficulty
	NbQuestions int
	TimeLimit   int // seconds
	Mode        quiznet.Mode
	MaxPlayers  int
	Lives       int
	CreatorID   uint64
}

// CreateResult is returned to the dispatcher on a successful create.
type CreateResult struct {
	SessionID int
}

// activeCount must be called with r.mu held. It counts sessions whose id
// is not in the finished set, per markFinished's bookkeeping, rather than
// reading any Session's Status field directly.
func (r *Registry) activeCount() int {
	return len(r.sessions) - len(r.finished)
}

// ActiveSessions reports the number of non-finished sessions, for the
// admin surface's /stats endpoint.
func (r *Registry) ActiveSessions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeCount()
}

// reuseFinishedSlotLocked must be called with r.mu held. It claims one
// finished slot's id for reuse, removing it from the finished set so the
// fresh Session that replaces it in r.sessions is never mistaken for the
// tombstone it overwrites.
func (r *Registry) reuseFinishedSlotLocked() (int, bool) {
	for id := range r.finished {
		delete(r.finished, id)
		return id, true
	}
	return 0, false
}

// Create allocates a session slot and selects its question sequence.
// The creator is deliberately NOT added as a player here — SPEC_FULL.md
// §4.5.2/§9 keeps create and the creator's own join as two explicit
// steps, issued back to back by the dispatcher.
func (r *Registry) Create(p CreateParams) (CreateResult, error) {
	if p.NbQuestions < 10 || p.NbQuestions > 50 {
		return CreateResult{}, apperr.ErrValidation
	}
	if p.TimeLimit < 10 || p.TimeLimit > 60 {
		return CreateResult{}, apperr.ErrValidation
	}
	if p.MaxPlayers < 2 {
		return CreateResult{}, apperr.ErrValidation
	}
	if r.engineCfg.MaxPlayersPerSession > 0 && p.MaxPlayers > r.engineCfg.MaxPlayersPerSession {
		return CreateResult{}, apperr.ErrValidation
	}
	if p.Mode == quiznet.Battle && (p.Lives < 1 || p.Lives > 10) {
		return CreateResult{}, apperr.ErrValidation
	}
	if len(p.ThemeIDs) == 0 {
		return CreateResult{}, apperr.ErrValidation
	}

	questionIDs, err := r.bank.Select(p.ThemeIDs, p.Difficulty, p.NbQuestions)
	if err != nil {
		return CreateResult{}, apperr.ErrValidation
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.activeCount() >= r.maxActive {
		return CreateResult{}, apperr.ErrCapacity
	}

	id, reused := r.reuseFinishedSlotLocked()
	if !reused {
		r.nextID++
		id = r.nextID
	}

	s := newSession(id, r.bank, r.broadcast, r.metrics, r.engineCfg, func() { r.markFinished(id) })
	s.Name = p.Name
	s.CreatorID = p.CreatorID
	s.ThemeIDs = p.ThemeIDs
	s.Difficulty = p.Difficulty
	s.Nq = p.NbQuestions
	s.Tq = time.Duration(p.TimeLimit) * time.Second
	s.Mode = p.Mode
	s.MaxPlayers = p.MaxPlayers
	s.QuestionIDs = questionIDs
	if p.Mode == quiznet.Battle {
		s.LivesInit = p.Lives
	}
	r.sessions[id] = s
	r.metrics.SessionStarted()
	return CreateResult{SessionID: id}, nil
}

// Get returns the live session for id under the registry's read lock.
// The returned Session must only be mutated via its own submit/job
// machinery, never directly.
func (r *Registry) Get(id int) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// List returns a lightweight summary of every non-finished session, for
// GET sessions/list.
type Summary struct {
	ID         int
	Name       string
	Mode       quiznet.Mode
	Difficulty quiznet.Difficulty
	Players    int
	MaxPlayers int
	Status     quiznet.SessionStatus
}

// Shutdown stops every session's goroutine. Callers must ensure no
// further Join/Leave/Start/Answer calls are in flight — the connection
// manager's listener is closed before this runs, per SPEC_FULL.md §5's
// cooperative shutdown order.
func (r *Registry) Shutdown() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		s.closeOnce.Do(func() { close(s.done) })
	}
}

// List snapshots the session table under r.mu, then releases it before
// calling into any session's own goroutine — holding r.mu across a
// submit would let a session's onFinished callback (which itself takes
// r.mu from inside that goroutine) deadlock against this read lock.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	snapshot := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		snapshot = append(snapshot, s)
	}
	r.mu.RUnlock()

	out := make([]Summary, 0, len(snapshot))
	for _, s := range snapshot {
		var summary Summary
		var finished bool
		s.submit(func(s *Session) {
			finished = s.Status == quiznet.Finished
			summary = Summary{
				ID:         s.ID,
				Name:       s.Name,
				Mode:       s.Mode,
				Difficulty: s.Difficulty,
				Players:    len(s.Players),
				MaxPlayers: s.MaxPlayers,
				Status:     s.Status,
			}
		})
		if finished {
			continue
		}
		out = append(out, summary)
	}
	return out
}
