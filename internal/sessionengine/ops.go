package sessionengine

import (
	"time"

	"github.com/hactazia/quiznet/internal/apperr"
	"github.com/hactazia/quiznet/internal/quiznet"
)

// JoinResult is returned to the dispatcher on a successful join.
type JoinResult struct {
	Players    []string
	IsCreator  bool
	MaxPlayers int
}

// Join admits clientID/pseudo to the session per SPEC_FULL.md §4.5.3.
func (r *Registry) Join(sessionID int, clientID uint64, pseudo string) (JoinResult, error) {
	s, ok := r.Get(sessionID)
	if !ok {
		return JoinResult{}, apperr.ErrNotFound
	}

	var res JoinResult
	var opErr error
	s.submit(func(s *Session) {
		if s.Status != quiznet.Waiting {
			opErr = apperr.ErrValidation
			return
		}
		if s.playerByClient(clientID) != nil {
			opErr = apperr.ErrValidation
			return
		}
		if len(s.Players) >= s.MaxPlayers {
			opErr = apperr.ErrForbidden
			return
		}

		lives := 0
		if s.Mode == quiznet.Battle {
			lives = s.LivesInit
		}
		s.Players = append(s.Players, &Player{ClientID: clientID, Pseudo: pseudo, Lives: lives})

		names := make([]string, len(s.Players))
		for i, p := range s.Players {
			names[i] = p.Pseudo
		}
		res = JoinResult{Players: names, IsCreator: s.CreatorID == clientID, MaxPlayers: s.MaxPlayers}

		s.broadcastExcept("session/player/joined", playerJoinedEvent{
			Pseudo:    pseudo,
			NbPlayers: len(s.Players),
		}, clientID)
	})
	if opErr != nil {
		return JoinResult{}, opErr
	}
	return res, nil
}

// Leave removes clientID from the session per SPEC_FULL.md §4.5.4.
func (r *Registry) Leave(sessionID int, clientID uint64) error {
	s, ok := r.Get(sessionID)
	if !ok {
		return apperr.ErrNotFound
	}

	var opErr error
	s.submit(func(s *Session) {
		idx := -1
		for i, p := range s.Players {
			if p.ClientID == clientID {
				idx = i
				break
			}
		}
		if idx == -1 {
			opErr = apperr.ErrValidation
			return
		}
		leaver := s.Players[idx]
		s.Players = append(s.Players[:idx], s.Players[idx+1:]...)

		if s.CreatorID == clientID && len(s.Players) > 0 {
			s.CreatorID = s.Players[0].ClientID
		}

		s.broadcastAll("session/player/left", playerLeftEvent{
			Pseudo:    leaver.Pseudo,
			NbPlayers: len(s.Players),
		})

		switch {
		case len(s.Players) == 0:
			s.end()
		case len(s.Players) == 1 && s.Status == quiznet.Playing:
			s.finishSession()
		}
	})
	return opErr
}

// Start transitions the session to playing. Only the creator may call
// it, and only once at least two players are present (§4.5.5).
func (r *Registry) Start(sessionID int, clientID uint64) error {
	s, ok := r.Get(sessionID)
	if !ok {
		return apperr.ErrNotFound
	}

	var opErr error
	s.submit(func(s *Session) {
		if s.Status != quiznet.Waiting {
			opErr = apperr.ErrValidation
			return
		}
		if s.CreatorID != clientID {
			opErr = apperr.ErrForbidden
			return
		}
		if len(s.Players) < 2 {
			opErr = apperr.ErrValidation
			return
		}

		s.Status = quiznet.Playing
		s.CurrentIndex = -1
		s.broadcastAll("session/started", sessionStartedEvent{Countdown: int(s.cfg.StartCountdown.Seconds())})

		s.scheduleSelf(s.cfg.StartCountdown, func(s *Session) {
			if s.Status != quiznet.Playing {
				return
			}
			s.CurrentIndex = 0
			s.dispatchQuestion()
		})
	})
	return opErr
}

// dispatchQuestion sends question/new for CurrentIndex and arms the
// per-question timeout, per §4.5.6.
func (s *Session) dispatchQuestion() {
	s.resetForQuestion()
	s.QuestionStart = time.Now()
	s.questionGen++
	gen := s.questionGen

	q, ok := s.bank.Get(s.QuestionIDs[s.CurrentIndex])
	if !ok {
		s.finishSession()
		return
	}

	payload := questionNewEvent{
		Number:     s.CurrentIndex + 1,
		NbQuestion: s.Nq,
		Kind:       q.Kind.String(),
		Difficulty: q.Difficulty.String(),
		Prompt:     q.Prompt,
		TimeLimit:  int(s.Tq.Seconds()),
	}
	if q.Kind == quiznet.MultiChoice {
		payload.Options = append([]string(nil), q.Options[:]...)
	}
	s.broadcastNonEliminated("question/new", payload)

	s.scheduleSelf(s.Tq, func(s *Session) {
		if s.Status != quiznet.Playing || s.questionGen != gen {
			return
		}
		s.handleTimeout()
	})
}

// handleTimeout records every non-answerer as unanswered, per §4.5.8.
func (s *Session) handleTimeout() {
	for _, p := range s.Players {
		if p.Eliminated || p.HasAnswered {
			continue
		}
		p.HasAnswered = true
		p.WasCorrect = false
		p.LastAnswer = nil
		p.RespTime = s.Tq.Seconds() + 1
	}
	s.runResults()
}

// AnswerResult is returned to the dispatcher on a successful
// question/answer submission.
type AnswerResult struct {
	Correct bool
	Points  int
}

// Answer records a client's answer for the current question (§4.5.7).
func (r *Registry) Answer(sessionID int, clientID uint64, answer interface{}, responseTime float64) (AnswerResult, error) {
	s, ok := r.Get(sessionID)
	if !ok {
		return AnswerResult{}, apperr.ErrNotFound
	}

	var res AnswerResult
	var opErr error
	s.submit(func(s *Session) {
		if s.Status != quiznet.Playing {
			opErr = apperr.ErrValidation
			return
		}
		p := s.playerByClient(clientID)
		if p == nil || p.Eliminated {
			opErr = apperr.ErrValidation
			return
		}
		if p.HasAnswered {
			// Idempotent: second answer for the same question is a no-op.
			res = AnswerResult{Correct: p.WasCorrect}
			return
		}

		if responseTime < 0 || responseTime > s.Tq.Seconds()+1 {
			responseTime = s.Tq.Seconds() + 1
		}

		q, ok := s.bank.Get(s.QuestionIDs[s.CurrentIndex])
		if !ok {
			opErr = apperr.ErrValidation
			return
		}

		idx, text, b := decodeAnswer(answer)
		correct := q.CheckAnswer(idx, text, b)

		p.HasAnswered = true
		p.WasCorrect = correct
		p.LastAnswer = answer
		p.RespTime = responseTime
		s.metrics.AnswerProcessed()

		points := 0
		if correct {
			points = q.Difficulty.BasePoints()
			if responseTime <= s.Tq.Seconds()/2 {
				points += q.Difficulty.SpeedBonus()
			}
			p.Score += points
			p.Correct++
		}
		res = AnswerResult{Correct: correct, Points: points}

		if s.allAnswered() {
			s.stopTimer()
			s.runResults()
		}
	})
	if opErr != nil {
		return AnswerResult{}, opErr
	}
	return res, nil
}

func decodeAnswer(answer interface{}) (idx int, text string, b bool) {
	switch v := answer.(type) {
	case float64:
		return int(v), "", false
	case int:
		return v, "", false
	case string:
		return 0, v, false
	case bool:
		return 0, "", v
	default:
		return 0, "", false
	}
}

// runResults applies battle-mode penalties, broadcasts question/results
// and session/player/eliminated, then decides whether to advance or end
// the session (§4.5.9/§4.5.10).
func (s *Session) runResults() {
	s.metrics.QuestionDispatchDuration(time.Since(s.QuestionStart))
	// Retire the current question's generation so a timeout job already
	// queued for it no-ops instead of producing a second results phase.
	s.questionGen++

	var slowest *Player
	if s.Mode == quiznet.Battle {
		for _, p := range s.Players {
			if p.Eliminated || p.UsedSkip || !p.HasAnswered {
				continue
			}
			if slowest == nil || p.RespTime > slowest.RespTime {
				slowest = p
			}
		}

		for _, p := range s.Players {
			if p.Eliminated || p.UsedSkip || !p.HasAnswered {
				continue
			}
			if !p.WasCorrect {
				s.applyLifeLoss(p, s.CurrentIndex+1)
			}
		}

		if s.cfg.LastPlayerPenalty && slowest != nil && slowest.WasCorrect && !slowest.Eliminated {
			s.applyLifeLoss(slowest, s.CurrentIndex+1)
		}
	}

	q, _ := s.bank.Get(s.QuestionIDs[s.CurrentIndex])

	entries := make([]resultPlayerEntry, 0, len(s.Players))
	var newlyEliminated []*Player
	for _, p := range s.Players {
		entry := resultPlayerEntry{
			Pseudo:  p.Pseudo,
			Answer:  p.LastAnswer,
			Correct: p.WasCorrect,
			Points:  0,
			Score:   p.Score,
		}
		if p.WasCorrect {
			entry.Points = q.Difficulty.BasePoints()
			if p.RespTime <= s.Tq.Seconds()/2 {
				entry.Points += q.Difficulty.SpeedBonus()
			}
		}
		if s.Mode == quiznet.Battle {
			rt := p.RespTime
			entry.ResponseTime = &rt
			lives := p.Lives
			entry.Lives = &lives
		}
		entries = append(entries, entry)
		if p.eliminatedThisRound {
			newlyEliminated = append(newlyEliminated, p)
		}
	}

	slowestPseudo := ""
	if slowest != nil {
		slowestPseudo = slowest.Pseudo
	}

	s.broadcastAll("question/results", questionResultsEvent{
		CorrectAnswer: correctAnswerLiteral(q),
		Explanation:   q.Explanation,
		Players:       entries,
		SlowestPseudo: slowestPseudo,
	})

	for _, p := range newlyEliminated {
		p.eliminatedThisRound = false
		s.broadcastAll("session/player/eliminated", playerEliminatedEvent{
			Pseudo:       p.Pseudo,
			EliminatedAt: p.ElimAt,
		})
	}

	s.advanceOrEnd()
}

func correctAnswerLiteral(q quiznet.Question) interface{} {
	switch q.Kind {
	case quiznet.MultiChoice:
		return q.CorrectIdx
	case quiznet.Boolean:
		return q.CorrectBool
	case quiznet.Text:
		if len(q.AcceptedAns) > 0 {
			return q.AcceptedAns[0]
		}
		return ""
	default:
		return nil
	}
}

func (s *Session) applyLifeLoss(p *Player, questionNumber int) {
	p.Lives--
	if p.Lives <= 0 && !p.Eliminated {
		p.Eliminated = true
		p.ElimAt = questionNumber
		p.eliminatedThisRound = true
	}
}

// advanceOrEnd decides the next transition per §4.5.10.
func (s *Session) advanceOrEnd() {
	if s.Mode == quiznet.Battle && s.nonEliminatedCount() <= 1 {
		s.finishSession()
		return
	}
	if s.CurrentIndex+1 >= s.Nq {
		s.finishSession()
		return
	}

	s.scheduleSelf(s.cfg.InterQuestionDelay, func(s *Session) {
		if s.Status != quiznet.Playing {
			return
		}
		s.CurrentIndex++
		s.dispatchQuestion()
	})
}

// finishSession computes the ranking and broadcasts session/finished,
// per §4.5.11.
func (s *Session) finishSession() {
	if s.Status == quiznet.Finished {
		return
	}
	s.Status = quiznet.Finished
	s.stopTimer()
	s.metrics.SessionEnded()
	if s.onFinished != nil {
		s.onFinished()
	}

	ranked := append([]*Player(nil), s.Players...)
	if s.Mode == quiznet.Battle {
		sortPlayersBattle(ranked)
	} else {
		sortPlayersSolo(ranked)
	}

	ranking := make([]rankingEntry, len(ranked))
	for i, p := range ranked {
		entry := rankingEntry{Rank: i + 1, Pseudo: p.Pseudo, Score: p.Score, Correct: p.Correct}
		if s.Mode == quiznet.Battle {
			lives := p.Lives
			elim := p.ElimAt
			entry.Lives = &lives
			entry.EliminatedAt = &elim
		}
		ranking[i] = entry
	}

	winner := ""
	if len(ranked) > 0 {
		winner = ranked[0].Pseudo
	}

	s.broadcastAll("session/finished", sessionFinishedEvent{
		Mode:    s.Mode.String(),
		Winner:  winner,
		Ranking: ranking,
	})

	// §4.5.11: clear each member's current-session-id so a later reuse of
	// this slot by Registry.Create never leaves a stale client routed into
	// a session it no longer belongs to.
	for _, p := range s.Players {
		s.broadcaster.ClearSession(p.ClientID)
	}
}

func sortPlayersSolo(p []*Player) {
	for i := 1; i < len(p); i++ {
		for j := i; j > 0 && p[j].Score > p[j-1].Score; j-- {
			p[j], p[j-1] = p[j-1], p[j]
		}
	}
}

func sortPlayersBattle(p []*Player) {
	for i := 1; i < len(p); i++ {
		for j := i; j > 0 && battleLess(p[j-1], p[j]); j-- {
			p[j], p[j-1] = p[j-1], p[j]
		}
	}
}

// battleLess reports whether b ranks strictly ahead of a: higher lives,
// then higher eliminated-at, then higher score.
func battleLess(a, b *Player) bool {
	if a.Lives != b.Lives {
		return b.Lives > a.Lives
	}
	if a.ElimAt != b.ElimAt {
		return b.ElimAt > a.ElimAt
	}
	return b.Score > a.Score
}

// JokerFiftyResult is returned to the dispatcher on a successful fifty.
type JokerFiftyResult struct {
	RemainingAnswers []string
}

// UseFifty implements the 50/50 joker (§4.5.12).
func (r *Registry) UseFifty(sessionID int, clientID uint64) (JokerFiftyResult, error) {
	s, ok := r.Get(sessionID)
	if !ok {
		return JokerFiftyResult{}, apperr.ErrNotFound
	}

	var res JokerFiftyResult
	var opErr error
	s.submit(func(s *Session) {
		if s.Status != quiznet.Playing {
			opErr = apperr.ErrValidation
			return
		}
		p := s.playerByClient(clientID)
		if p == nil || p.Eliminated {
			opErr = apperr.ErrValidation
			return
		}
		if p.FiftyUsed || p.HasAnswered {
			opErr = apperr.ErrValidation
			return
		}
		q, ok := s.bank.Get(s.QuestionIDs[s.CurrentIndex])
		if !ok || q.Kind != quiznet.MultiChoice {
			opErr = apperr.ErrValidation
			return
		}

		var wrong []int
		for i := 0; i < 4; i++ {
			if i != q.CorrectIdx {
				wrong = append(wrong, i)
			}
		}
		shuffled := shuffleDecoys(wrong)
		decoy := shuffled[0]

		p.FiftyUsed = true
		res = JokerFiftyResult{RemainingAnswers: []string{q.Options[q.CorrectIdx], q.Options[decoy]}}
	})
	if opErr != nil {
		return JokerFiftyResult{}, opErr
	}
	return res, nil
}

// UseSkip implements the skip joker (§4.5.12).
func (r *Registry) UseSkip(sessionID int, clientID uint64) error {
	s, ok := r.Get(sessionID)
	if !ok {
		return apperr.ErrNotFound
	}

	var opErr error
	s.submit(func(s *Session) {
		if s.Status != quiznet.Playing {
			opErr = apperr.ErrValidation
			return
		}
		p := s.playerByClient(clientID)
		if p == nil || p.Eliminated {
			opErr = apperr.ErrValidation
			return
		}
		if p.SkipUsed || p.HasAnswered {
			opErr = apperr.ErrValidation
			return
		}

		p.SkipUsed = true
		p.UsedSkip = true
		p.HasAnswered = true
		p.WasCorrect = false
		p.LastAnswer = SkipAnswer
		p.RespTime = 0

		if s.allAnswered() {
			s.stopTimer()
			s.runResults()
		}
	})
	return opErr
}
