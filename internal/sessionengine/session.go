// Package sessionengine is the heart of the server: session lifecycle,
// the waiting/playing/finished state machine, question dispatch, answer
// intake, scoring, jokers, timeouts and end-of-game ranking.
//
// Concurrency is message-passing rather than lock-per-session: each
// Session runs its own goroutine draining an inbox channel of jobs, so
// every mutation of a session's state is linearized by construction
// (SPEC_FULL.md §5, generalizing the teacher's per-quiz goroutine in
// internal/service/quizmanager/scheduler.go from one global quiz to many
// independent sessions). Delayed work (start countdown, inter-question
// delay, question timeout) is a time.AfterFunc whose fired callback
// resubmits an event onto the same inbox rather than sleeping inline, so
// it can be cancelled cleanly when the session ends.
package sessionengine

import (
	"math/rand"
	"sync"
	"time"

	"github.com/hactazia/quiznet/internal/questionbank"
	"github.com/hactazia/quiznet/internal/quiznet"
)

// SkipAnswer is the sentinel last-answer value recorded when a player
// uses the skip joker, per SPEC_FULL.md §4.5.12.
const SkipAnswer = -2

// Broadcaster delivers an already-encoded event payload to one client by
// its protocol id, and clears a client's session membership once its
// session has finished. Implemented by *connmgr.Manager; the engine only
// depends on this narrow interface to stay free of connmgr and wire.
type Broadcaster interface {
	Send(clientID uint64, payload []byte) bool
	ClearSession(clientID uint64)
}

// Metrics is the narrow set of observability hooks the session engine
// records against. Implemented by an adapter over *admin.Metrics; the
// engine depends only on this interface so it never imports admin.
type Metrics interface {
	AnswerProcessed()
	QuestionDispatchDuration(d time.Duration)
	SessionStarted()
	SessionEnded()
}

type noopMetrics struct{}

func (noopMetrics) AnswerProcessed()                       {}
func (noopMetrics) QuestionDispatchDuration(time.Duration) {}
func (noopMetrics) SessionStarted()                        {}
func (noopMetrics) SessionEnded()                          {}

// Player is one SessionPlayer from SPEC_FULL.md's data model.
type Player struct {
	ClientID   uint64
	Pseudo     string
	Score      int
	Correct    int
	Lives      int
	Eliminated bool
	ElimAt     int
	// eliminatedThisRound flags a player newly eliminated during the
	// results phase currently being broadcast, cleared once that
	// session/player/eliminated event has gone out.
	eliminatedThisRound bool

	HasAnswered bool
	WasCorrect  bool
	LastAnswer  interface{} // int, string, bool, or SkipAnswer
	UsedSkip    bool
	RespTime    float64

	FiftyUsed bool
	SkipUsed  bool
}

// job is one unit of work run exclusively on a Session's own goroutine.
type job func(s *Session)

// Session is one game instance. All mutable fields below are only ever
// touched from the session's own goroutine (run); everything else reads
// them through the job/inbox indirection, so no field needs its own lock.
type Session struct {
	ID         int
	Name       string
	CreatorID  uint64
	ThemeIDs   []int
	Difficulty quiznet.Difficulty
	Mode       quiznet.Mode
	Nq         int
	Tq         time.Duration
	LivesInit  int
	MaxPlayers int

	Status        quiznet.SessionStatus
	Players       []*Player
	QuestionIDs   []int
	CurrentIndex  int
	QuestionStart time.Time
	// questionGen increments every time dispatchQuestion arms a fresh
	// question and again when runResults resolves it. A timeout callback
	// captures the generation it was armed for and compares against this
	// before acting, so a timer that fires just after Answer already drove
	// the same question to results (via runResults/advanceOrEnd) finds a
	// mismatch and no-ops instead of delivering a duplicate
	// question/results broadcast.
	questionGen int

	bank        *questionbank.Bank
	broadcaster Broadcaster
	metrics     Metrics
	cfg         Config
	// onFinished is called exactly once, from this session's own
	// goroutine, the moment Status transitions to Finished. The registry
	// uses it to track active/finished slots under its own lock instead
	// of reading Status directly from outside the session goroutine.
	onFinished func()

	inbox     chan job
	done      chan struct{}
	closeOnce sync.Once
	timer     *time.Timer
}

// Config carries the session engine's tunables, sourced from
// config.SessionConfig at wiring time.
type Config struct {
	StartCountdown       time.Duration
	InterQuestionDelay   time.Duration
	LastPlayerPenalty    bool
	MaxPlayersPerSession int
}

func newSession(id int, bank *questionbank.Bank, broadcaster Broadcaster, metrics Metrics, cfg Config, onFinished func()) *Session {
	s := &Session{
		ID:           id,
		Status:       quiznet.Waiting,
		CurrentIndex: -1,
		bank:         bank,
		broadcaster:  broadcaster,
		metrics:      metrics,
		cfg:          cfg,
		onFinished:   onFinished,
		inbox:        make(chan job, 64),
		done:         make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Session) run() {
	for {
		select {
		case j := <-s.inbox:
			j(s)
		case <-s.done:
			s.stopTimer()
			// Drain anything already buffered so a submit() racing the
			// shutdown signal still gets its job run instead of blocking
			// forever on its own reply channel.
			for {
				select {
				case j := <-s.inbox:
					j(s)
				default:
					return
				}
			}
		}
	}
}

// submit enqueues j and blocks until it has executed (or the session's
// done channel has been closed by Registry.Shutdown; a finished session
// still runs submitted jobs), giving the dispatcher a synchronous call even though
// the mutation happens on the session's own goroutine.
func (s *Session) submit(j job) {
	done := make(chan struct{})
	wrapped := func(s *Session) {
		j(s)
		close(done)
	}
	select {
	case s.inbox <- wrapped:
		<-done
	case <-s.done:
	}
}

// end marks the session finished and stops its timer. It deliberately
// does not stop the session's own goroutine: a submit() racing against a
// closed done channel could block its caller forever if the goroutine
// had already exited without draining a just-queued job. The goroutine
// for a finished session simply idles on an empty inbox until the
// process shuts down (Registry.Shutdown closes every session's done
// channel once no further submits can occur).
func (s *Session) end() {
	if s.Status == quiznet.Finished {
		return
	}
	s.Status = quiznet.Finished
	s.stopTimer()
	s.metrics.SessionEnded()
	if s.onFinished != nil {
		s.onFinished()
	}
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// scheduleSelf arms a timer that, on firing, submits fn back onto this
// session's own inbox. Any previously armed timer is stopped first, so
// only the most recent delayed action can ever run.
func (s *Session) scheduleSelf(d time.Duration, fn func(s *Session)) {
	s.stopTimer()
	s.timer = time.AfterFunc(d, func() {
		s.submit(fn)
	})
}

func (s *Session) playerByClient(clientID uint64) *Player {
	for _, p := range s.Players {
		if p.ClientID == clientID {
			return p
		}
	}
	return nil
}

func (s *Session) nonEliminatedCount() int {
	n := 0
	for _, p := range s.Players {
		if !p.Eliminated {
			n++
		}
	}
	return n
}

func (s *Session) resetForQuestion() {
	for _, p := range s.Players {
		if p.Eliminated {
			continue
		}
		p.HasAnswered = false
		p.WasCorrect = false
		p.LastAnswer = nil
		p.RespTime = 0
		p.UsedSkip = false
	}
}

func (s *Session) allAnswered() bool {
	for _, p := range s.Players {
		if p.Eliminated {
			continue
		}
		if !p.HasAnswered {
			return false
		}
	}
	return true
}

func shuffleDecoys(wrongIdx []int) []int {
	idx := append([]int(nil), wrongIdx...)
	rand.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	return idx
}
