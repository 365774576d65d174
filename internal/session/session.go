// Package session runs one connected client's view of a room: a single
// goroutine consuming store snapshots, timer events, and client commands,
// re-deriving state and pushing versioned views to the client. A session
// whose player is the room's host also evaluates the advancement policy on
// every event; the serial loop bounds local attempts to one at a time while
// the coordinator's transaction provides the actual safety.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/game"
	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/round"
	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/store"
	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/topic"
)

type Msg interface{ isSessionMsg() }

type roomChanged struct{ snap store.Snapshot }

func (roomChanged) isSessionMsg() {}

type playersChanged struct{ snap store.CollectionSnapshot }

func (playersChanged) isSessionMsg() {}

type timerTick struct{}

func (timerTick) isSessionMsg() {}

type timerExpired struct{ key round.Key }

func (timerExpired) isSessionMsg() {}

// FromClient carries one client command into the loop.
type FromClient struct{ Cmd Command }

func (FromClient) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

// GetState reflects internal state without data races; test hook.
type GetState struct{ Reply chan State }

func (GetState) isSessionMsg() {}

type CommandType string

const (
	CmdSubmitChoice CommandType = "SubmitChoice"
	CmdStartRound   CommandType = "StartRound"
)

type Command struct {
	Type CommandType
	Slot int // slot index for SubmitChoice; -1 when the client chose none
}

type State struct {
	Version int
	IsHost  bool
	Room    *game.Room
	Players []game.Player
}

type Config struct {
	Store        store.Store
	Coordinator  *round.Coordinator
	Topics       *topic.Catalog
	Clock        clockwork.Clock
	TickInterval time.Duration
	Log          *zap.Logger
}

type Session struct {
	ID string

	cfg      Config
	code     string
	playerID string

	inbox  chan Msg
	outbox chan<- Event
	closed bool

	ctx    context.Context
	cancel context.CancelFunc

	timer       *round.Timer
	unsubRoom   store.Unsubscribe
	unsubPeople store.Unsubscribe

	room    *game.Room
	players []game.Player
	version int
	log     *zap.Logger
}

// New subscribes to the room and its players and starts the loop. The
// initial store deliveries arrive through the inbox like any later change.
func New(parent context.Context, cfg Config, code, playerID string, outbox chan<- Event) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		ID:       uuid.NewString(),
		cfg:      cfg,
		code:     code,
		playerID: playerID,
		inbox:    make(chan Msg, 64),
		outbox:   outbox,
		ctx:      ctx,
		cancel:   cancel,
		log: cfg.Log.With(
			zap.String("room", code),
			zap.String("player", playerID),
		),
	}
	s.timer = round.NewTimer(cfg.Clock, cfg.TickInterval, s.log,
		func(time.Duration) { s.post(timerTick{}) },
		func(key round.Key) { s.post(timerExpired{key: key}) },
	)
	s.unsubRoom = cfg.Store.SubscribeDoc(game.RoomPath(code), func(snap store.Snapshot) {
		s.post(roomChanged{snap: snap})
	})
	s.unsubPeople = cfg.Store.SubscribeCollection(game.PlayersPath(code), func(snap store.CollectionSnapshot) {
		s.post(playersChanged{snap: snap})
	})
	go s.loop()
	return s
}

// Inbox accepts messages for the loop; used by the transport layer and tests.
func (s *Session) Inbox() chan<- Msg { return s.inbox }

// post feeds the loop from subscription and timer goroutines. It blocks
// until the loop takes the message, but never outlives the session.
func (s *Session) post(m Msg) {
	select {
	case s.inbox <- m:
	case <-s.ctx.Done():
	}
}

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.teardown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case roomChanged:
				if !s.handleRoomChanged(msg.snap) {
					s.teardown()
					return
				}

			case playersChanged:
				s.handlePlayersChanged(msg.snap)

			case timerTick:
				// Push a fresh view; it recomputes remaining from the deadline.
				s.broadcast()
				s.evaluate()

			case timerExpired:
				// Ignore fires from a superseded deadline.
				if s.room != nil && s.currentKey() == msg.key {
					s.evaluate()
				}

			case FromClient:
				s.handleCommand(msg.Cmd)

			case GetState:
				msg.Reply <- State{
					Version: s.version,
					IsHost:  s.isHost(),
					Room:    s.room,
					Players: s.players,
				}

			case Shutdown:
				s.teardown()
				return
			}
		}
	}
}

// handleRoomChanged returns false when the room is gone and the session
// must end.
func (s *Session) handleRoomChanged(snap store.Snapshot) bool {
	if !snap.Exists {
		s.log.Info("room removed")
		s.send(Event{Kind: KindRoomClosed})
		return false
	}
	var room game.Room
	if err := json.Unmarshal(snap.Data, &room); err != nil {
		s.log.Error("bad room document", zap.Error(err))
		return true
	}
	s.room = &room
	s.syncTimer()
	s.broadcast()
	s.evaluate()
	return true
}

func (s *Session) handlePlayersChanged(snap store.CollectionSnapshot) {
	players := make([]game.Player, 0, len(snap.Docs))
	for _, doc := range snap.Docs {
		var p game.Player
		if err := json.Unmarshal(doc.Data, &p); err != nil {
			s.log.Error("bad player document", zap.String("path", doc.Path), zap.Error(err))
			continue
		}
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool {
		if players[i].JoinedAt != players[j].JoinedAt {
			return players[i].JoinedAt < players[j].JoinedAt
		}
		return players[i].ID < players[j].ID
	})
	s.players = players
	s.broadcast()
	s.evaluate()
}

// syncTimer arms the countdown while a round is live and cancels it
// otherwise. Arming with an unchanged key is a no-op inside the timer.
func (s *Session) syncTimer() {
	if s.room.Status == game.StatusInRound && s.room.RoundEndsAt > 0 {
		s.timer.Arm(s.currentKey())
		return
	}
	s.timer.Stop()
}

func (s *Session) currentKey() round.Key {
	return round.Key{Code: s.room.Code, Index: s.room.CurrentIndex, Deadline: s.room.RoundEndsAt}
}

func (s *Session) isHost() bool {
	return s.room != nil && s.room.HostID == s.playerID
}

// evaluate is the host-side triggering policy: past the deadline, auto-fill
// stragglers and advance unconditionally; otherwise advance early once
// everyone has answered. Non-host sessions never attempt a transition.
func (s *Session) evaluate() {
	if s.room == nil || s.room.Status != game.StatusInRound || !s.isHost() {
		return
	}
	item, ok := s.room.CurrentItem()
	if !ok {
		return
	}

	if !s.cfg.Clock.Now().Before(s.room.Deadline()) {
		var missing []string
		for _, p := range s.players {
			if !game.Placed(p.Ranking, item) {
				missing = append(missing, p.ID)
			}
		}
		if err := s.cfg.Coordinator.AutoFill(s.ctx, s.code, item, missing); err != nil {
			// Partial fills are tolerated; the transition does not depend on them.
			s.log.Warn("auto-fill incomplete", zap.Error(err))
		}
		if err := s.cfg.Coordinator.Advance(s.ctx, s.code, s.room.CurrentIndex); err != nil {
			s.log.Error("advance failed", zap.Error(err))
			s.send(Event{Kind: KindError, Err: "could not advance the round, retrying on next change"})
		}
		return
	}

	if game.AllSubmitted(s.players, item) {
		if err := s.cfg.Coordinator.Advance(s.ctx, s.code, s.room.CurrentIndex); err != nil {
			s.log.Error("advance failed", zap.Error(err))
			s.send(Event{Kind: KindError, Err: "could not advance the round, retrying on next change"})
		}
	}
}

func (s *Session) handleCommand(cmd Command) {
	var err error
	switch cmd.Type {
	case CmdSubmitChoice:
		err = s.submitChoice(cmd.Slot)
	case CmdStartRound:
		err = s.startRound()
	default:
		err = errors.New("unknown command")
	}
	if err != nil {
		// Validation failures end the triggering action only.
		s.send(Event{Kind: KindError, Err: err.Error()})
	}
}

// submitChoice writes the revealed item into the player's chosen slot.
// Only this session's own player record is ever written here.
func (s *Session) submitChoice(slot int) error {
	if s.room == nil || s.room.Status != game.StatusInRound {
		return game.ErrWrongStatus
	}
	item, ok := s.room.CurrentItem()
	if !ok {
		return game.ErrWrongStatus
	}
	me, ok := s.me()
	if !ok {
		return game.ErrRoomNotFound
	}
	if game.Placed(me.Ranking, item) {
		return game.ErrAlreadyPlaced
	}
	if slot < 0 || slot >= len(me.Ranking) {
		return game.ErrNoSlotChosen
	}
	if me.Ranking[slot] != "" {
		return game.ErrSlotTaken
	}

	ranking := make([]string, len(me.Ranking))
	copy(ranking, me.Ranking)
	ranking[slot] = item
	if err := s.cfg.Store.Update(s.ctx, game.PlayerPath(s.code, s.playerID), map[string]any{
		"ranking": ranking,
	}); err != nil {
		s.log.Error("submit failed", zap.Int("slot", slot), zap.Error(err))
		return errors.New("could not save your answer, try again")
	}
	s.log.Info("choice submitted", zap.Int("slot", slot), zap.String("item", item))
	return nil
}

func (s *Session) startRound() error {
	if !s.isHost() {
		return game.ErrNotHost
	}
	if err := s.cfg.Coordinator.Start(s.ctx, s.code, s.playerID); err != nil {
		if errors.Is(err, game.ErrNotHost) || errors.Is(err, game.ErrWrongStatus) {
			return err
		}
		s.log.Error("start failed", zap.Error(err))
		return errors.New("could not start the game, try again")
	}
	return nil
}

func (s *Session) me() (game.Player, bool) {
	for _, p := range s.players {
		if p.ID == s.playerID {
			return p, true
		}
	}
	return game.Player{}, false
}

func (s *Session) teardown() {
	s.cancel()
	s.unsubRoom()
	s.unsubPeople()
	s.timer.Stop()
	if !s.closed {
		s.closed = true
		close(s.outbox)
	}
}
