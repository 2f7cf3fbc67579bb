package sessionengine

import (
	"sync"
	"testing"
	"time"

	"github.com/hactazia/quiznet/internal/questionbank"
	"github.com/hactazia/quiznet/internal/quiznet"
	"github.com/hactazia/quiznet/internal/wire"
	"github.com/stretchr/testify/require"
)

type capturedEvent struct {
	clientID uint64
	action   string
}

type fakeBroadcaster struct {
	mu          sync.Mutex
	events      []capturedEvent
	clearedByID map[uint64]bool
}

func (f *fakeBroadcaster) Send(clientID uint64, payload []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ev wire.Event
	_ = ev // action decoded loosely below without importing encoding/json twice
	f.events = append(f.events, capturedEvent{clientID: clientID, action: decodeAction(payload)})
	return true
}

func (f *fakeBroadcaster) ClearSession(clientID uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clearedByID == nil {
		f.clearedByID = make(map[uint64]bool)
	}
	f.clearedByID[clientID] = true
}

func (f *fakeBroadcaster) wasCleared(clientID uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clearedByID[clientID]
}

func (f *fakeBroadcaster) count(action string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, e := range f.events {
		if e.action == action {
			n++
		}
	}
	return n
}

func decodeAction(payload []byte) string {
	// cheap scan avoiding a second json import: {"action":"...",
	const key = `"action":"`
	s := string(payload)
	i := indexOf(s, key)
	if i < 0 {
		return ""
	}
	i += len(key)
	j := i
	for j < len(s) && s[j] != '"' {
		j++
	}
	return s[i:j]
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func testBank(t *testing.T) *questionbank.Bank {
	t.Helper()
	b := questionbank.New()
	var qs []quiznet.Question
	for i := 0; i < 15; i++ {
		qs = append(qs, quiznet.Question{
			ID:         i,
			ThemeIDs:   []int{0},
			Difficulty: quiznet.Medium,
			Kind:       quiznet.MultiChoice,
			Prompt:     "prompt",
			Options:    [4]string{"a", "b", "c", "d"},
			CorrectIdx: 2,
		})
	}
	b.Load([]quiznet.Theme{{ID: 0, Name: "general"}}, qs)
	return b
}

func fastConfig() Config {
	return Config{
		StartCountdown:     10 * time.Millisecond,
		InterQuestionDelay: 10 * time.Millisecond,
		LastPlayerPenalty:  true,
	}
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.True(t, cond(), "condition never became true")
}

func TestCreateRequiresCreatorJoinSeparately(t *testing.T) {
	bc := &fakeBroadcaster{}
	r := NewRegistry(20, testBank(t), bc, fastConfig())

	res, err := r.Create(CreateParams{
		Name: "quiz", ThemeIDs: []int{0}, Difficulty: quiznet.Medium,
		NbQuestions: 10, TimeLimit: 20, Mode: quiznet.Solo, MaxPlayers: 4, CreatorID: 1,
	})
	require.NoError(t, err)

	s, ok := r.Get(res.SessionID)
	require.True(t, ok)
	require.Empty(t, s.Players)
}

func TestJoinAndBroadcast(t *testing.T) {
	bc := &fakeBroadcaster{}
	r := NewRegistry(20, testBank(t), bc, fastConfig())

	res, err := r.Create(CreateParams{
		Name: "quiz", ThemeIDs: []int{0}, Difficulty: quiznet.Medium,
		NbQuestions: 10, TimeLimit: 20, Mode: quiznet.Solo, MaxPlayers: 4, CreatorID: 1,
	})
	require.NoError(t, err)

	jr, err := r.Join(res.SessionID, 1, "alice")
	require.NoError(t, err)
	require.True(t, jr.IsCreator)

	jr2, err := r.Join(res.SessionID, 2, "bob")
	require.NoError(t, err)
	require.False(t, jr2.IsCreator)
	require.ElementsMatch(t, []string{"alice", "bob"}, jr2.Players)

	require.Equal(t, 1, bc.count("session/player/joined"))
}

func TestStartRequiresCreatorAndTwoPlayers(t *testing.T) {
	bc := &fakeBroadcaster{}
	r := NewRegistry(20, testBank(t), bc, fastConfig())
	res, _ := r.Create(CreateParams{
		Name: "quiz", ThemeIDs: []int{0}, Difficulty: quiznet.Medium,
		NbQuestions: 10, TimeLimit: 20, Mode: quiznet.Solo, MaxPlayers: 4, CreatorID: 1,
	})
	r.Join(res.SessionID, 1, "alice")

	require.Error(t, r.Start(res.SessionID, 1))

	r.Join(res.SessionID, 2, "bob")
	require.Error(t, r.Start(res.SessionID, 2))
	require.NoError(t, r.Start(res.SessionID, 1))

	waitUntil(t, func() bool { return bc.count("question/new") >= 1 })
}

func TestAnswerScoringAndIdempotence(t *testing.T) {
	bc := &fakeBroadcaster{}
	cfg := fastConfig()
	r := NewRegistry(20, testBank(t), bc, cfg)
	res, _ := r.Create(CreateParams{
		Name: "quiz", ThemeIDs: []int{0}, Difficulty: quiznet.Medium,
		NbQuestions: 10, TimeLimit: 20, Mode: quiznet.Solo, MaxPlayers: 4, CreatorID: 1,
	})
	r.Join(res.SessionID, 1, "alice")
	r.Join(res.SessionID, 2, "bob")
	require.NoError(t, r.Start(res.SessionID, 1))
	waitUntil(t, func() bool { return bc.count("question/new") >= 1 })

	ar, err := r.Answer(res.SessionID, 1, float64(2), 5.0)
	require.NoError(t, err)
	require.True(t, ar.Correct)
	require.Equal(t, 13, ar.Points) // base 10 + speed bonus 3 (Tq=20, half=10, 5<=10)

	ar2, err := r.Answer(res.SessionID, 1, float64(0), 1.0)
	require.NoError(t, err)
	require.True(t, ar2.Correct) // idempotent: reflects first answer's correctness
	require.Equal(t, 0, ar2.Points)
}

func TestBattleEliminationEndsSession(t *testing.T) {
	bc := &fakeBroadcaster{}
	cfg := fastConfig()
	r := NewRegistry(20, testBank(t), bc, cfg)
	res, _ := r.Create(CreateParams{
		Name: "quiz", ThemeIDs: []int{0}, Difficulty: quiznet.Medium,
		NbQuestions: 10, TimeLimit: 20, Mode: quiznet.Battle, MaxPlayers: 4, Lives: 1, CreatorID: 1,
	})
	r.Join(res.SessionID, 1, "alice")
	r.Join(res.SessionID, 2, "bob")
	require.NoError(t, r.Start(res.SessionID, 1))
	waitUntil(t, func() bool { return bc.count("question/new") >= 1 })

	_, err := r.Answer(res.SessionID, 1, float64(0), 5.0)
	require.NoError(t, err)
	_, err = r.Answer(res.SessionID, 2, float64(0), 5.0)
	require.NoError(t, err)

	waitUntil(t, func() bool { return bc.count("session/finished") >= 1 })

	s, _ := r.Get(res.SessionID)
	require.Equal(t, quiznet.Finished, s.Status)

	waitUntil(t, func() bool { return bc.wasCleared(1) && bc.wasCleared(2) })
}

func TestFiftyJokerReturnsTwoOptionsIncludingCorrect(t *testing.T) {
	bc := &fakeBroadcaster{}
	r := NewRegistry(20, testBank(t), bc, fastConfig())
	res, _ := r.Create(CreateParams{
		Name: "quiz", ThemeIDs: []int{0}, Difficulty: quiznet.Medium,
		NbQuestions: 10, TimeLimit: 20, Mode: quiznet.Solo, MaxPlayers: 4, CreatorID: 1,
	})
	r.Join(res.SessionID, 1, "alice")
	r.Join(res.SessionID, 2, "bob")
	require.NoError(t, r.Start(res.SessionID, 1))
	waitUntil(t, func() bool { return bc.count("question/new") >= 1 })

	fr, err := r.UseFifty(res.SessionID, 1)
	require.NoError(t, err)
	require.Len(t, fr.RemainingAnswers, 2)
	require.Contains(t, fr.RemainingAnswers, "c") // CorrectIdx=2 -> "c"

	_, err = r.UseFifty(res.SessionID, 1)
	require.Error(t, err)
}

func TestSkipJokerExemptsFromBattlePenalty(t *testing.T) {
	bc := &fakeBroadcaster{}
	cfg := fastConfig()
	r := NewRegistry(20, testBank(t), bc, cfg)
	res, _ := r.Create(CreateParams{
		Name: "quiz", ThemeIDs: []int{0}, Difficulty: quiznet.Medium,
		NbQuestions: 10, TimeLimit: 20, Mode: quiznet.Battle, MaxPlayers: 4, Lives: 2, CreatorID: 1,
	})
	r.Join(res.SessionID, 1, "alice")
	r.Join(res.SessionID, 2, "bob")
	require.NoError(t, r.Start(res.SessionID, 1))
	waitUntil(t, func() bool { return bc.count("question/new") >= 1 })

	require.NoError(t, r.UseSkip(res.SessionID, 1))
	_, err := r.Answer(res.SessionID, 2, float64(2), 5.0)
	require.NoError(t, err)

	waitUntil(t, func() bool { return bc.count("question/results") >= 1 })

	s, _ := r.Get(res.SessionID)
	var alice *Player
	s.submit(func(s *Session) { alice = s.playerByClient(1) })
	require.NotNil(t, alice)
	require.Equal(t, 2, alice.Lives, "skip exempts alice from the wrong-answer life loss")
}

func TestLeaveLastPlayerDuringWaitingFinishesSession(t *testing.T) {
	bc := &fakeBroadcaster{}
	r := NewRegistry(20, testBank(t), bc, fastConfig())
	res, _ := r.Create(CreateParams{
		Name: "quiz", ThemeIDs: []int{0}, Difficulty: quiznet.Medium,
		NbQuestions: 10, TimeLimit: 20, Mode: quiznet.Solo, MaxPlayers: 4, CreatorID: 1,
	})
	r.Join(res.SessionID, 1, "alice")
	require.NoError(t, r.Leave(res.SessionID, 1))

	s, _ := r.Get(res.SessionID)
	require.Equal(t, quiznet.Finished, s.Status)
}
