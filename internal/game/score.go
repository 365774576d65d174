package game

import (
	"slices"
	"sort"
)

// Score computes a player's penalty against the true order: the sum over
// all items of the distance between guessed and actual position. An item
// the player never placed scores as if guessed dead-last.
func Score(trueOrder []string, ranking []string) int {
	n := len(trueOrder)
	points := 0
	for actual, item := range trueOrder {
		guessed := slices.Index(ranking, item)
		if guessed < 0 {
			guessed = n - 1
		}
		d := guessed - actual
		if d < 0 {
			d = -d
		}
		points += d
	}
	return points
}

type ScoreRow struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Points   int    `json:"points"`
	Rank     int    `json:"rank"`
}

// Scoreboard ranks players ascending by penalty. Ties share a display rank.
func Scoreboard(trueOrder []string, players []Player) []ScoreRow {
	rows := make([]ScoreRow, 0, len(players))
	for _, p := range players {
		rows = append(rows, ScoreRow{
			PlayerID: p.ID,
			Name:     p.Name,
			Points:   Score(trueOrder, p.Ranking),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Points < rows[j].Points })
	for i := range rows {
		if i > 0 && rows[i].Points == rows[i-1].Points {
			rows[i].Rank = rows[i-1].Rank
			continue
		}
		rows[i].Rank = i + 1
	}
	return rows
}
