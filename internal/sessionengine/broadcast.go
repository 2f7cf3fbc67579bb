package sessionengine

import (
	"log"

	"github.com/hactazia/quiznet/internal/wire"
)

// broadcast builds the event payload once, then fans it out to
// recipients without holding any session state lock — SPEC_FULL.md §9's
// "build the payload, drop the lock, then submit to each recipient's
// send queue" rule. Because this runs inside a job on the session's own
// goroutine, "drop the lock" here means simply: encode first, then call
// out to the broadcaster, never the reverse.
func (s *Session) broadcast(action string, message interface{}, recipients []uint64) {
	line, err := wire.EncodeEvent(wire.Event{Action: action, Message: message})
	if err != nil {
		log.Printf("[SessionEngine] session %d: encode %s: %v", s.ID, action, err)
		return
	}
	for _, id := range recipients {
		s.broadcaster.Send(id, line)
	}
}

// broadcastAll sends to every current player.
func (s *Session) broadcastAll(action string, message interface{}) {
	ids := make([]uint64, 0, len(s.Players))
	for _, p := range s.Players {
		ids = append(ids, p.ClientID)
	}
	s.broadcast(action, message, ids)
}

// broadcastExcept sends to every current player except excludeID.
func (s *Session) broadcastExcept(action string, message interface{}, excludeID uint64) {
	ids := make([]uint64, 0, len(s.Players))
	for _, p := range s.Players {
		if p.ClientID == excludeID {
			continue
		}
		ids = append(ids, p.ClientID)
	}
	s.broadcast(action, message, ids)
}

// broadcastNonEliminated sends only to players still in the game.
func (s *Session) broadcastNonEliminated(action string, message interface{}) {
	ids := make([]uint64, 0, len(s.Players))
	for _, p := range s.Players {
		if !p.Eliminated {
			ids = append(ids, p.ClientID)
		}
	}
	s.broadcast(action, message, ids)
}
