package game

import "slices"

// Placed reports whether the ranking already contains item.
func Placed(ranking []string, item string) bool {
	return item != "" && slices.Contains(ranking, item)
}

// AllSubmitted is true iff there is at least one player and every player
// has placed the revealed item. The empty player set is false so a room
// can never advance vacuously before anyone joined.
func AllSubmitted(players []Player, item string) bool {
	if item == "" || len(players) == 0 {
		return false
	}
	for _, p := range players {
		if !Placed(p.Ranking, item) {
			return false
		}
	}
	return true
}

// FirstEmptySlot returns the index of the first open slot, if any.
func FirstEmptySlot(ranking []string) (int, bool) {
	for i, slot := range ranking {
		if slot == "" {
			return i, true
		}
	}
	return 0, false
}
