package round

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/game"
	"github.com/jonathanedwardrollins-ops/Blind-Rankings/internal/store"
)

// Coordinator owns the room status transitions. Advance runs as a single
// atomic read-modify-write against the store, so any number of concurrent
// callers collapse into one effective transition per round: losers re-read
// a state that fails the precondition and abort without writing.
type Coordinator struct {
	store         store.Store
	clock         clockwork.Clock
	roundDuration time.Duration
	log           *zap.Logger
}

func NewCoordinator(st store.Store, clock clockwork.Clock, roundDuration time.Duration, log *zap.Logger) *Coordinator {
	return &Coordinator{store: st, clock: clock, roundDuration: roundDuration, log: log}
}

func (c *Coordinator) RoundDuration() time.Duration {
	return c.roundDuration
}

// Start moves a lobby room into its first round. Only the host acts in the
// lobby, so this is a plain authorized merge-write, not a transaction.
func (c *Coordinator) Start(ctx context.Context, code, callerID string) error {
	raw, err := c.store.Get(ctx, game.RoomPath(code))
	if errors.Is(err, store.ErrNotFound) {
		return game.ErrRoomNotFound
	}
	if err != nil {
		return fmt.Errorf("start room %s: %w", code, err)
	}
	var room game.Room
	if err := json.Unmarshal(raw, &room); err != nil {
		return fmt.Errorf("start room %s: %w", code, err)
	}
	if room.HostID != callerID {
		return game.ErrNotHost
	}
	if room.Status != game.StatusLobby {
		return game.ErrWrongStatus
	}

	err = c.store.Update(ctx, game.RoomPath(code), map[string]any{
		"status":       game.StatusInRound,
		"currentIndex": 0,
		"roundEndsAt":  c.clock.Now().Add(c.roundDuration).UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("start room %s: %w", code, err)
	}
	c.log.Info("round started", zap.String("room", code), zap.Int("round", 0))
	return nil
}

// Advance attempts the transition out of round fromIndex. Inside the
// transaction the room is re-read fresh; the attempt aborts with no write
// unless the room is still in_round at that same index. On the last item
// the room completes and the deadline clears; otherwise the index bumps and
// a fresh deadline is set.
func (c *Coordinator) Advance(ctx context.Context, code string, fromIndex int) error {
	advancedTo := -1
	err := c.store.RunAtomic(ctx, func(tx store.Tx) error {
		advancedTo = -1
		raw, err := tx.Get(game.RoomPath(code))
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var room game.Room
		if err := json.Unmarshal(raw, &room); err != nil {
			return err
		}
		// A concurrent attempt already won, or the round never started.
		if room.Status != game.StatusInRound || room.CurrentIndex != fromIndex {
			return nil
		}

		nextIndex := room.CurrentIndex + 1
		if nextIndex >= len(room.Order) {
			advancedTo = len(room.Order)
			return tx.Update(game.RoomPath(code), map[string]any{
				"status":      game.StatusComplete,
				"roundEndsAt": 0,
			})
		}
		advancedTo = nextIndex
		return tx.Update(game.RoomPath(code), map[string]any{
			"currentIndex": nextIndex,
			"roundEndsAt":  c.clock.Now().Add(c.roundDuration).UnixMilli(),
		})
	})
	if err != nil {
		return fmt.Errorf("advance room %s: %w", code, err)
	}
	if advancedTo >= 0 {
		c.log.Info("round advanced",
			zap.String("room", code), zap.Int("from", fromIndex), zap.Int("to", advancedTo))
	}
	return nil
}

// AutoFill places item into the first open slot of every listed player who
// still lacks it. Each fill is its own transaction that re-reads the
// ranking, so a last-moment manual submission wins and the fill becomes a
// no-op. A ranking with no open slot is left alone. Fills run concurrently
// and independently; partial success is fine, the first error is reported.
func (c *Coordinator) AutoFill(ctx context.Context, code, item string, playerIDs []string) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, playerID := range playerIDs {
		playerID := playerID
		g.Go(func() error {
			return c.autoFillOne(ctx, code, item, playerID)
		})
	}
	return g.Wait()
}

func (c *Coordinator) autoFillOne(ctx context.Context, code, item, playerID string) error {
	filled := -1
	err := c.store.RunAtomic(ctx, func(tx store.Tx) error {
		filled = -1
		raw, err := tx.Get(game.PlayerPath(code, playerID))
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var player game.Player
		if err := json.Unmarshal(raw, &player); err != nil {
			return err
		}
		if game.Placed(player.Ranking, item) {
			return nil
		}
		slot, ok := game.FirstEmptySlot(player.Ranking)
		if !ok {
			// Ranking full without containing the item: slot count drifted
			// from the topic somewhere. Benign for the round, but worth a log.
			c.log.Warn("auto-fill found no open slot",
				zap.String("room", code), zap.String("player", playerID), zap.String("item", item))
			return nil
		}
		player.Ranking[slot] = item
		filled = slot
		return tx.Update(game.PlayerPath(code, playerID), map[string]any{
			"ranking": player.Ranking,
		})
	})
	if err != nil {
		return fmt.Errorf("auto-fill player %s in room %s: %w", playerID, code, err)
	}
	if filled >= 0 {
		c.log.Info("auto-filled slot",
			zap.String("room", code), zap.String("player", playerID),
			zap.String("item", item), zap.Int("slot", filled))
	}
	return nil
}
