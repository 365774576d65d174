package round

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/game"
	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/store"
)

const roundDuration = 20 * time.Second

func newTestCoordinator(t *testing.T) (*Coordinator, *store.MemStore, clockwork.Clock) {
	t.Helper()
	st := store.NewMemStore()
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_000_000))
	return NewCoordinator(st, clock, roundDuration, zap.NewNop()), st, clock
}

func seedRoom(t *testing.T, st *store.MemStore, room game.Room) {
	t.Helper()
	if err := st.Set(context.Background(), game.RoomPath(room.Code), room); err != nil {
		t.Fatalf("seed room: %v", err)
	}
}

func seedPlayer(t *testing.T, st *store.MemStore, code string, p game.Player) {
	t.Helper()
	if err := st.Set(context.Background(), game.PlayerPath(code, p.ID), p); err != nil {
		t.Fatalf("seed player: %v", err)
	}
}

func getRoom(t *testing.T, st *store.MemStore, code string) game.Room {
	t.Helper()
	raw, err := st.Get(context.Background(), game.RoomPath(code))
	if err != nil {
		t.Fatalf("get room: %v", err)
	}
	var room game.Room
	if err := json.Unmarshal(raw, &room); err != nil {
		t.Fatalf("decode room: %v", err)
	}
	return room
}

func getPlayer(t *testing.T, st *store.MemStore, code, id string) game.Player {
	t.Helper()
	raw, err := st.Get(context.Background(), game.PlayerPath(code, id))
	if err != nil {
		t.Fatalf("get player: %v", err)
	}
	var p game.Player
	if err := json.Unmarshal(raw, &p); err != nil {
		t.Fatalf("decode player: %v", err)
	}
	return p
}

func TestStartMovesLobbyIntoFirstRound(t *testing.T) {
	c, st, clock := newTestCoordinator(t)
	seedRoom(t, st, game.Room{
		Code: "ABCD", Status: game.StatusLobby, CurrentIndex: -1,
		Order: []string{"A", "B"}, HostID: "host",
	})

	if err := c.Start(context.Background(), "ABCD", "host"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	room := getRoom(t, st, "ABCD")
	if room.Status != game.StatusInRound || room.CurrentIndex != 0 {
		t.Fatalf("want in_round at index 0, got %s/%d", room.Status, room.CurrentIndex)
	}
	want := clock.Now().Add(roundDuration).UnixMilli()
	if room.RoundEndsAt != want {
		t.Fatalf("deadline: got %d, want %d", room.RoundEndsAt, want)
	}
}

func TestStartRejections(t *testing.T) {
	cases := []struct {
		name    string
		room    game.Room
		caller  string
		wantErr error
	}{
		{
			name:    "non-host may not start",
			room:    game.Room{Code: "ABCD", Status: game.StatusLobby, HostID: "host", Order: []string{"A"}},
			caller:  "guest",
			wantErr: game.ErrNotHost,
		},
		{
			name:    "already started",
			room:    game.Room{Code: "ABCD", Status: game.StatusInRound, HostID: "host", Order: []string{"A"}},
			caller:  "host",
			wantErr: game.ErrWrongStatus,
		},
		{
			name:    "completed room stays completed",
			room:    game.Room{Code: "ABCD", Status: game.StatusComplete, HostID: "host", Order: []string{"A"}},
			caller:  "host",
			wantErr: game.ErrWrongStatus,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, st, _ := newTestCoordinator(t)
			seedRoom(t, st, tc.room)
			err := c.Start(context.Background(), "ABCD", tc.caller)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("want %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestAdvanceBumpsIndexAndDeadline(t *testing.T) {
	c, st, clock := newTestCoordinator(t)
	seedRoom(t, st, game.Room{
		Code: "ABCD", Status: game.StatusInRound, CurrentIndex: 0,
		Order: []string{"A", "B", "C"}, HostID: "host", RoundEndsAt: 1,
	})

	if err := c.Advance(context.Background(), "ABCD", 0); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	room := getRoom(t, st, "ABCD")
	if room.Status != game.StatusInRound || room.CurrentIndex != 1 {
		t.Fatalf("want in_round at index 1, got %s/%d", room.Status, room.CurrentIndex)
	}
	if want := clock.Now().Add(roundDuration).UnixMilli(); room.RoundEndsAt != want {
		t.Fatalf("deadline: got %d, want %d", room.RoundEndsAt, want)
	}
}

func TestAdvanceIsIdempotentPerRound(t *testing.T) {
	c, st, _ := newTestCoordinator(t)
	seedRoom(t, st, game.Room{
		Code: "ABCD", Status: game.StatusInRound, CurrentIndex: 0,
		Order: []string{"A", "B", "C"}, HostID: "host", RoundEndsAt: 1,
	})

	// Two rapid attempts against the same pre-state: exactly one wins.
	if err := c.Advance(context.Background(), "ABCD", 0); err != nil {
		t.Fatalf("first attempt: %v", err)
	}
	if err := c.Advance(context.Background(), "ABCD", 0); err != nil {
		t.Fatalf("second attempt: %v", err)
	}

	room := getRoom(t, st, "ABCD")
	if room.CurrentIndex != 1 {
		t.Fatalf("index advanced twice: got %d, want 1", room.CurrentIndex)
	}
}

func TestAdvanceAbortsOutsideInRound(t *testing.T) {
	for _, status := range []game.Status{game.StatusLobby, game.StatusComplete} {
		c, st, _ := newTestCoordinator(t)
		seedRoom(t, st, game.Room{
			Code: "ABCD", Status: status, CurrentIndex: -1,
			Order: []string{"A", "B"}, HostID: "host",
		})

		if err := c.Advance(context.Background(), "ABCD", -1); err != nil {
			t.Fatalf("status %s: unexpected err: %v", status, err)
		}
		room := getRoom(t, st, "ABCD")
		if room.Status != status || room.CurrentIndex != -1 {
			t.Fatalf("status %s: advance must be a no-op, got %s/%d", status, room.Status, room.CurrentIndex)
		}
	}
}

func TestAdvancePastLastItemCompletesRoom(t *testing.T) {
	c, st, _ := newTestCoordinator(t)
	order := []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}
	seedRoom(t, st, game.Room{
		Code: "ABCD", Status: game.StatusInRound, CurrentIndex: 9,
		Order: order, HostID: "host", RoundEndsAt: 1,
	})

	if err := c.Advance(context.Background(), "ABCD", 9); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	room := getRoom(t, st, "ABCD")
	if room.Status != game.StatusComplete {
		t.Fatalf("want complete, got %s", room.Status)
	}
	if room.CurrentIndex != 9 {
		t.Fatalf("index must not run out of bounds: got %d", room.CurrentIndex)
	}
	if room.RoundEndsAt != 0 {
		t.Fatalf("completed room must have no deadline, got %d", room.RoundEndsAt)
	}
}

func TestAdvanceMissingRoomIsSilent(t *testing.T) {
	c, _, _ := newTestCoordinator(t)
	if err := c.Advance(context.Background(), "GONE", 0); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestAutoFill(t *testing.T) {
	c, st, _ := newTestCoordinator(t)
	seedRoom(t, st, game.Room{
		Code: "ABCD", Status: game.StatusInRound, CurrentIndex: 0,
		Order: []string{"X", "Y", "Z"}, HostID: "host", RoundEndsAt: 1,
	})
	seedPlayer(t, st, "ABCD", game.Player{ID: "p1", Ranking: []string{"", "", ""}})
	seedPlayer(t, st, "ABCD", game.Player{ID: "p2", Ranking: []string{"Y", "X", ""}})
	seedPlayer(t, st, "ABCD", game.Player{ID: "p3", Ranking: []string{"Y", "Z", "Q"}})

	err := c.AutoFill(context.Background(), "ABCD", "X", []string{"p1", "p2", "p3", "ghost"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if got := getPlayer(t, st, "ABCD", "p1").Ranking; got[0] != "X" {
		t.Fatalf("p1: want X in first open slot, got %v", got)
	}
	// p2 already placed X: untouched.
	if got := getPlayer(t, st, "ABCD", "p2").Ranking; got[0] != "Y" || got[1] != "X" || got[2] != "" {
		t.Fatalf("p2 must be left unmodified, got %v", got)
	}
	// p3 has no open slot: benign no-op.
	if got := getPlayer(t, st, "ABCD", "p3").Ranking; got[0] != "Y" || got[1] != "Z" || got[2] != "Q" {
		t.Fatalf("p3 must be left unmodified, got %v", got)
	}
}
