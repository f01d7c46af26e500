package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// GroupObservations groups round-tagged observation strings ("Round N: text")
// by round and formats one block per round, ordered by round number. Entries
// that do not carry a round tag are skipped.
func GroupObservations(observations []string) []string {
	grouped := make(map[int][]string)
	for _, obs := range observations {
		round, text, ok := splitObservation(obs)
		if !ok {
			continue
		}
		grouped[round] = append(grouped[round], text)
	}

	rounds := make([]int, 0, len(grouped))
	for round := range grouped {
		rounds = append(rounds, round)
	}
	sort.Ints(rounds)

	formatted := make([]string, 0, len(rounds))
	for _, round := range rounds {
		var b strings.Builder
		fmt.Fprintf(&b, "Round %d:\n", round)
		for i, text := range grouped[round] {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString("   - " + text)
		}
		formatted = append(formatted, b.String())
	}
	return formatted
}

func splitObservation(obs string) (round int, text string, ok bool) {
	head, tail, found := strings.Cut(obs, ":")
	if !found {
		return 0, "", false
	}
	fields := strings.Fields(head)
	if len(fields) != 2 || fields[0] != "Round" {
		return 0, "", false
	}
	round, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, "", false
	}
	text = strings.ReplaceAll(strings.TrimSpace(tail), `"`, "")
	return round, text, true
}
