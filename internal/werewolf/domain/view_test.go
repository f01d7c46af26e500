package domain

import (
	"errors"
	"testing"
)

func TestGameViewCopiesRoster(t *testing.T) {
	roster := []string{"Ana", "Bela", "Cora"}
	view := NewGameView(0, roster, "")

	roster[0] = "mutated"
	if view.CurrentPlayers[0] != "Ana" {
		t.Fatalf("view shares caller roster: %v", view.CurrentPlayers)
	}
}

func TestGameViewRemovePlayer(t *testing.T) {
	view := NewGameView(0, []string{"Ana", "Bela", "Cora"}, "")

	if err := view.RemovePlayer("Bela"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got, want := len(view.CurrentPlayers), 2; got != want {
		t.Fatalf("got %d players, want %d", got, want)
	}
	if view.Contains("Bela") {
		t.Fatal("removed player still present")
	}

	// A name removed once must never be removable again.
	err := view.RemovePlayer("Bela")
	if !errors.Is(err, ErrPlayerNotInView) {
		t.Fatalf("got %v, want ErrPlayerNotInView", err)
	}
}

func TestGameViewDebateLifecycle(t *testing.T) {
	view := NewGameView(1, []string{"Ana", "Bela"}, "")

	view.UpdateDebate("Ana", "I suspect Bela.")
	view.UpdateDebate("Bela", "That is absurd.")
	if got, want := len(view.Debate), 2; got != want {
		t.Fatalf("got %d debate turns, want %d", got, want)
	}
	if view.Debate[0].Speaker != "Ana" {
		t.Fatalf("unexpected first speaker %q", view.Debate[0].Speaker)
	}

	view.ClearDebate()
	if len(view.Debate) != 0 {
		t.Fatalf("debate not cleared: %v", view.Debate)
	}
}
