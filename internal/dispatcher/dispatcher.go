// Package dispatcher routes parsed wire requests to the account store,
// question bank and session registry, enforcing the auth and
// session-membership preconditions from SPEC_FULL.md §4.6 before handing
// off to those collaborators. It implements connmgr.Dispatcher, so the
// connection manager never needs to know about sessions or accounts.
package dispatcher

import (
	"encoding/json"
	"log"

	"github.com/hactazia/quiznet/internal/accounts"
	"github.com/hactazia/quiznet/internal/apperr"
	"github.com/hactazia/quiznet/internal/connmgr"
	"github.com/hactazia/quiznet/internal/questionbank"
	"github.com/hactazia/quiznet/internal/quiznet"
	"github.com/hactazia/quiznet/internal/sessionengine"
	"github.com/hactazia/quiznet/internal/wire"
)

// Dispatcher wires the three collaborators together behind the method +
// endpoint routing table from SPEC_FULL.md §6.
type Dispatcher struct {
	accounts *accounts.Store
	bank     *questionbank.Bank
	sessions *sessionengine.Registry
	handlers map[string]handlerFunc
}

type handlerFunc struct {
	requiresAuth   bool
	requiresInGame bool
	fn             func(d *Dispatcher, c *connmgr.Client, body json.RawMessage) (interface{}, error)
}

// New builds a Dispatcher and registers every endpoint from §6.
func New(store *accounts.Store, bank *questionbank.Bank, sessions *sessionengine.Registry) *Dispatcher {
	d := &Dispatcher{accounts: store, bank: bank, sessions: sessions}
	d.handlers = map[string]handlerFunc{
		"POST player/register": {fn: (*Dispatcher).handleRegister},
		"POST player/login":    {fn: (*Dispatcher).handleLogin},
		"GET themes/list":      {fn: (*Dispatcher).handleThemesList},
		"GET sessions/list":    {fn: (*Dispatcher).handleSessionsList},
		"POST session/create":  {requiresAuth: true, fn: (*Dispatcher).handleSessionCreate},
		"POST session/join":    {requiresAuth: true, fn: (*Dispatcher).handleSessionJoin},
		"POST session/start":   {requiresAuth: true, requiresInGame: true, fn: (*Dispatcher).handleSessionStart},
		"POST question/answer": {requiresAuth: true, requiresInGame: true, fn: (*Dispatcher).handleQuestionAnswer},
		"POST joker/use":       {requiresAuth: true, requiresInGame: true, fn: (*Dispatcher).handleJokerUse},
	}
	return d
}

// Dispatch implements connmgr.Dispatcher.
func (d *Dispatcher) Dispatch(c *connmgr.Client, req wire.Request) wire.Response {
	if req.Method != "GET" && req.Method != "POST" {
		return errorResponse(req.Endpoint, apperr.ErrValidation)
	}

	key := req.Method + " " + req.Endpoint
	h, ok := d.handlers[key]
	if !ok {
		return errorResponse(req.Endpoint, apperr.ErrUnknownEndpoint)
	}
	if h.requiresAuth && !c.IsAuthenticated() {
		return errorResponse(req.Endpoint, apperr.ErrUnauthorized)
	}
	if h.requiresInGame && c.SessionID() == 0 {
		return errorResponse(req.Endpoint, apperr.ErrValidation)
	}

	msg, err := h.fn(d, c, req.Body)
	if err != nil {
		return errorResponse(req.Endpoint, err)
	}
	statut := apperr.StatutFor(nil)
	if req.Endpoint == "player/register" || req.Endpoint == "session/create" || req.Endpoint == "session/join" {
		statut = "201"
	}
	return wire.Response{Action: req.Endpoint, Statut: statut, Message: msg}
}

// HandleDisconnect implements connmgr.Dispatcher: a disconnecting client
// leaves any session it was a member of (SPEC_FULL.md §4.2).
func (d *Dispatcher) HandleDisconnect(c *connmgr.Client) {
	if sid := c.SessionID(); sid != 0 {
		if err := d.sessions.Leave(sid, c.ID); err != nil {
			log.Printf("[Dispatcher] client %d leave on disconnect: %v", c.ID, err)
		}
	}
}

func errorResponse(endpoint string, err error) wire.Response {
	return wire.Response{Action: endpoint, Statut: apperr.StatutFor(err), Message: err.Error()}
}

func decodeBody(body json.RawMessage, v interface{}) error {
	if err := wire.Decode(body, v); err != nil {
		return apperr.ErrValidation
	}
	return nil
}

type registerBody struct {
	Pseudo   string `json:"pseudo"`
	Password string `json:"password"`
}

func (d *Dispatcher) handleRegister(c *connmgr.Client, body json.RawMessage) (interface{}, error) {
	var req registerBody
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	if req.Pseudo == "" || req.Password == "" || len(req.Pseudo) > 31 {
		return nil, apperr.ErrValidation
	}
	if err := d.accounts.Register(req.Pseudo, req.Password); err != nil {
		return nil, err
	}
	return map[string]string{"pseudo": req.Pseudo}, nil
}

func (d *Dispatcher) handleLogin(c *connmgr.Client, body json.RawMessage) (interface{}, error) {
	var req registerBody
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	if err := d.accounts.Login(req.Pseudo, req.Password); err != nil {
		return nil, err
	}
	c.SetPseudo(req.Pseudo)
	return map[string]string{"pseudo": req.Pseudo}, nil
}

func (d *Dispatcher) handleThemesList(c *connmgr.Client, body json.RawMessage) (interface{}, error) {
	themes := d.bank.Themes()
	out := make([]map[string]interface{}, len(themes))
	for i, th := range themes {
		out[i] = map[string]interface{}{"id": th.ID, "name": th.Name}
	}
	return map[string]interface{}{"nbThemes": len(themes), "themes": out}, nil
}

func (d *Dispatcher) handleSessionsList(c *connmgr.Client, body json.RawMessage) (interface{}, error) {
	list := d.sessions.List()
	out := make([]map[string]interface{}, len(list))
	for i, s := range list {
		out[i] = map[string]interface{}{
			"sessionId":  s.ID,
			"name":       s.Name,
			"mode":       s.Mode.String(),
			"difficulty": s.Difficulty.String(),
			"players":    s.Players,
			"maxPlayers": s.MaxPlayers,
			"status":     s.Status.String(),
		}
	}
	return map[string]interface{}{"sessions": out}, nil
}

type createBody struct {
	Name        string `json:"name"`
	ThemeIDs    []int  `json:"themeIds"`
	Difficulty  string `json:"difficulty"`
	NbQuestions int    `json:"nbQuestions"`
	TimeLimit   int    `json:"timeLimit"`
	Mode        string `json:"mode"`
	MaxPlayers  int    `json:"maxPlayers"`
	Lives       int    `json:"lives"`
}

func (d *Dispatcher) handleSessionCreate(c *connmgr.Client, body json.RawMessage) (interface{}, error) {
	var req createBody
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	res, err := d.sessions.Create(sessionengine.CreateParams{
		Name:        req.Name,
		ThemeIDs:    req.ThemeIDs,
		Difficulty:  quiznet.ParseDifficulty(req.Difficulty),
		NbQuestions: req.NbQuestions,
		TimeLimit:   req.TimeLimit,
		Mode:        quiznet.ParseMode(req.Mode),
		MaxPlayers:  req.MaxPlayers,
		Lives:       req.Lives,
		CreatorID:   c.ID,
	})
	if err != nil {
		return nil, err
	}

	// The creator is not auto-joined by Create; the dispatcher issues the
	// join itself immediately after, per SPEC_FULL.md §4.5.2/§9.
	jr, err := d.sessions.Join(res.SessionID, c.ID, c.Pseudo())
	if err != nil {
		return nil, err
	}
	c.SetSessionID(res.SessionID)
	return map[string]interface{}{
		"sessionId":  res.SessionID,
		"isCreator":  true,
		"players":    jr.Players,
		"maxPlayers": jr.MaxPlayers,
	}, nil
}

type joinBody struct {
	SessionID int `json:"sessionId"`
}

func (d *Dispatcher) handleSessionJoin(c *connmgr.Client, body json.RawMessage) (interface{}, error) {
	var req joinBody
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	jr, err := d.sessions.Join(req.SessionID, c.ID, c.Pseudo())
	if err != nil {
		return nil, err
	}
	c.SetSessionID(req.SessionID)
	return map[string]interface{}{
		"sessionId":  req.SessionID,
		"isCreator":  jr.IsCreator,
		"players":    jr.Players,
		"maxPlayers": jr.MaxPlayers,
	}, nil
}

func (d *Dispatcher) handleSessionStart(c *connmgr.Client, body json.RawMessage) (interface{}, error) {
	if err := d.sessions.Start(c.SessionID(), c.ID); err != nil {
		return nil, err
	}
	return map[string]string{"status": "starting"}, nil
}

type answerBody struct {
	Answer       interface{} `json:"answer"`
	ResponseTime float64     `json:"responseTime"`
}

func (d *Dispatcher) handleQuestionAnswer(c *connmgr.Client, body json.RawMessage) (interface{}, error) {
	var req answerBody
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	res, err := d.sessions.Answer(c.SessionID(), c.ID, req.Answer, req.ResponseTime)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"correct": res.Correct, "points": res.Points}, nil
}

type jokerBody struct {
	Type string `json:"type"`
}

func (d *Dispatcher) handleJokerUse(c *connmgr.Client, body json.RawMessage) (interface{}, error) {
	var req jokerBody
	if err := decodeBody(body, &req); err != nil {
		return nil, err
	}
	switch req.Type {
	case "fifty":
		res, err := d.sessions.UseFifty(c.SessionID(), c.ID)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"remainingAnswers": res.RemainingAnswers}, nil
	case "skip":
		if err := d.sessions.UseSkip(c.SessionID(), c.ID); err != nil {
			return nil, err
		}
		return map[string]string{"status": "skipped"}, nil
	default:
		return nil, apperr.ErrValidation
	}
}
