// Package game holds the domain records and pure rules of the ranking game:
// room and player shapes, the scoring function, the submission predicate,
// and room-code handling. Nothing here touches the store or the clock.
package game

import (
	"math/rand"
	"time"

	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/store"
)

type Status string

const (
	StatusLobby    Status = "lobby"
	StatusInRound  Status = "in_round"
	StatusComplete Status = "complete"
)

// Room is the shared round state for one game, keyed by its code.
// Status only ever moves lobby -> in_round -> complete. CurrentIndex is -1
// until the first round starts and RoundEndsAt (unix millis) is zero
// whenever no round is active.
type Room struct {
	Code         string   `json:"code"`
	TopicID      string   `json:"topicId"`
	Status       Status   `json:"status"`
	Order        []string `json:"order"`
	CurrentIndex int      `json:"currentIndex"`
	RoundEndsAt  int64    `json:"roundEndsAt"`
	HostID       string   `json:"hostId"`
	CreatedAt    int64    `json:"createdAt"`
}

// Player is one participant's identity and private ranking. An empty string
// marks an open slot; a filled slot is never cleared or reordered.
type Player struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Ranking  []string `json:"ranking"`
	JoinedAt int64    `json:"joinedAt"`
}

// NewRoom fixes the reveal order (a random permutation of the topic's
// items) at creation. The topic's canonical item order stays the true
// ranking; the permutation only controls reveal sequence.
func NewRoom(code, topicID string, items []string, hostID string, now time.Time) Room {
	return Room{
		Code:         code,
		TopicID:      topicID,
		Status:       StatusLobby,
		Order:        ShuffleOrder(items),
		CurrentIndex: -1,
		RoundEndsAt:  0,
		HostID:       hostID,
		CreatedAt:    now.UnixMilli(),
	}
}

func NewPlayer(id, name string, slots int, now time.Time) Player {
	return Player{
		ID:       id,
		Name:     name,
		Ranking:  make([]string, slots),
		JoinedAt: now.UnixMilli(),
	}
}

// CurrentItem returns the item revealed this round, if any.
func (r Room) CurrentItem() (string, bool) {
	if r.Status != StatusInRound || r.CurrentIndex < 0 || r.CurrentIndex >= len(r.Order) {
		return "", false
	}
	return r.Order[r.CurrentIndex], true
}

func (r Room) Deadline() time.Time {
	return time.UnixMilli(r.RoundEndsAt)
}

// ShuffleOrder returns a Fisher-Yates shuffled copy of items.
func ShuffleOrder(items []string) []string {
	order := make([]string, len(items))
	copy(order, items)
	rand.Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return order
}

func RoomPath(code string) string {
	return store.PathJoin("rooms", code)
}

func PlayersPath(code string) string {
	return store.PathJoin("rooms", code, "players")
}

func PlayerPath(code, playerID string) string {
	return store.PathJoin("rooms", code, "players", playerID)
}
