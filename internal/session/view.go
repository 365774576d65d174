package session

import (
	"time"

	"go.uber.org/zap"

	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/game"
)

type EventKind string

const (
	KindSnapshot   EventKind = "StateSnapshot"
	KindError      EventKind = "Error"
	KindRoomClosed EventKind = "RoomClosed"
)

// Event is what the session emits to its client.
type Event struct {
	Kind    EventKind
	Version int
	View    *View
	Err     string
}

// PlayerSummary is the shared, non-secret slice of another player's state.
type PlayerSummary struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Submitted bool   `json:"submitted"`
}

// View is one derived snapshot of the room as this client should see it.
// Rankings other than the client's own are withheld until the game
// completes.
type View struct {
	Code         string              `json:"code"`
	Status       game.Status         `json:"status"`
	TopicID      string              `json:"topicId"`
	TopicName    string              `json:"topicName"`
	CurrentIndex int                 `json:"currentIndex"`
	CurrentItem  string              `json:"currentItem,omitempty"`
	RoundEndsAt  int64               `json:"roundEndsAt,omitempty"`
	RemainingMS  int64               `json:"remainingMs"`
	IsHost       bool                `json:"isHost"`
	PlayerID     string              `json:"playerId"`
	Players      []PlayerSummary     `json:"players"`
	Ranking      []string            `json:"ranking"`
	RevealOrder  []string            `json:"revealOrder,omitempty"`
	TrueOrder    []string            `json:"trueOrder,omitempty"`
	Scoreboard   []game.ScoreRow     `json:"scoreboard,omitempty"`
	Rankings     map[string][]string `json:"rankings,omitempty"`
}

// broadcast derives a fresh view and pushes it; no-op before the first room
// snapshot has landed.
func (s *Session) broadcast() {
	if s.room == nil {
		return
	}
	s.version++
	view := s.buildView()
	s.send(Event{Kind: KindSnapshot, Version: s.version, View: &view})
}

func (s *Session) buildView() View {
	room := *s.room
	view := View{
		Code:         room.Code,
		Status:       room.Status,
		TopicID:      room.TopicID,
		CurrentIndex: room.CurrentIndex,
		RoundEndsAt:  room.RoundEndsAt,
		IsHost:       s.isHost(),
		PlayerID:     s.playerID,
	}
	if t, ok := s.cfg.Topics.Get(room.TopicID); ok {
		view.TopicName = t.Name
		if room.Status == game.StatusComplete {
			view.TrueOrder = t.Items
			view.Scoreboard = game.Scoreboard(t.Items, s.players)
		}
	} else {
		s.log.Warn("room references unknown topic", zap.String("topic", room.TopicID))
	}

	item, live := room.CurrentItem()
	if live {
		view.CurrentItem = item
		if deadline := room.Deadline(); s.cfg.Clock.Now().Before(deadline) {
			view.RemainingMS = int64(deadline.Sub(s.cfg.Clock.Now()) / time.Millisecond)
		}
	}

	for _, p := range s.players {
		view.Players = append(view.Players, PlayerSummary{
			ID:        p.ID,
			Name:      p.Name,
			Submitted: live && game.Placed(p.Ranking, item),
		})
		if p.ID == s.playerID {
			view.Ranking = p.Ranking
		}
	}
	if room.Status == game.StatusComplete {
		view.RevealOrder = room.Order
		view.Rankings = make(map[string][]string, len(s.players))
		for _, p := range s.players {
			view.Rankings[p.ID] = p.Ranking
		}
	}
	return view
}

// send pushes one event without blocking the loop. A client that cannot
// keep up gets its channel closed, which ends the connection; it can
// resubscribe with the same identity.
func (s *Session) send(ev Event) {
	if s.closed {
		return
	}
	select {
	case s.outbox <- ev:
	default:
		s.log.Warn("client too slow, dropping connection")
		s.closed = true
		close(s.outbox)
		s.cancel()
	}
}
