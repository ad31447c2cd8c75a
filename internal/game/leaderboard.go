package game

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"
)

// ScoreEntry is one row of a room's ranking
type ScoreEntry struct {
	Rank     int    `json:"rank"`
	Identity string `json:"identity"`
	Name     string `json:"name"`
	Kills    int    `json:"kills"`
	Deaths   int    `json:"deaths"`
}

// compareScore is the composite ranking key: kill difference plus death
// difference in the opposite order. Negative means a ranks above b.
// Equivalent to ordering by kills-deaths descending.
func compareScore(a, b ScoreEntry) int {
	return (b.Kills - a.Kills) + (a.Deaths - b.Deaths)
}

// rankEntries sorts entries in place and assigns ranks. Ties keep their
// input order.
func rankEntries(entries []ScoreEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return compareScore(entries[i], entries[j]) < 0
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}

// ranking returns the members ranked by score. Caller must hold r.mu.
func (r *Room) ranking() []ScoreEntry {
	entries := make([]ScoreEntry, 0, len(r.members))
	for _, m := range r.members {
		entries = append(entries, ScoreEntry{
			Identity: m.Identity,
			Name:     m.Name,
			Kills:    m.Kills,
			Deaths:   m.Deaths,
		})
	}
	rankEntries(entries)
	return entries
}

// RenderScoreTable lays out a ranking as a fixed-width text table. The
// name column grows with the longest display name.
//
//	+--------+-------+--------+
//	| Name   | Score | Deaths |
//	+--------+-------+--------+
//	| alice  | 3     | 1      |
//	+--------+-------+--------+
func RenderScoreTable(entries []ScoreEntry) string {
	longest := 0
	for _, e := range entries {
		if w := runewidth.StringWidth(e.Name); w > longest {
			longest = w
		}
	}

	expand := longest - 3
	if expand <= 0 {
		expand = 1
	}

	border := "+-----" + strings.Repeat("-", expand) + "+-------+--------+\n"

	var sb strings.Builder
	sb.WriteString(border)
	sb.WriteString("| Name" + strings.Repeat(" ", expand) + "| Score | Deaths |\n")
	sb.WriteString(border)

	for _, e := range entries {
		kills := fmt.Sprint(e.Kills)
		deaths := fmt.Sprint(e.Deaths)

		sb.WriteString("| " + e.Name)
		sb.WriteString(pad(4 + expand - runewidth.StringWidth(e.Name)))
		sb.WriteString("| " + kills + pad(6-len(kills)))
		sb.WriteString("| " + deaths + pad(7-len(deaths)))
		sb.WriteString("|\n")
	}

	sb.WriteString(border)
	return sb.String()
}

func pad(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(" ", n)
}
