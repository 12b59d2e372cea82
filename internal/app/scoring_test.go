package app

import (
	"testing"
	"time"

	"github.com/knowandlove/animal-genius-backend-sub004/internal/domain"
)

func TestCalculatePointsIncorrectAlwaysZero(t *testing.T) {
	for _, remaining := range []int{0, 5, 10, 20} {
		if got := CalculatePoints(false, remaining, 20); got != 0 {
			t.Fatalf("incorrect answer with %ds remaining scored %d, want 0", remaining, got)
		}
	}
}

func TestCalculatePointsSpeedScaling(t *testing.T) {
	if got := CalculatePoints(true, 20, 20); got != maxPoints {
		t.Fatalf("instant answer scored %d, want %d", got, maxPoints)
	}
	if got := CalculatePoints(true, 0, 20); got != maxPoints/2 {
		t.Fatalf("last-moment answer scored %d, want %d", got, maxPoints/2)
	}

	// Faster correct answers earn strictly more points.
	prev := -1
	for remaining := 0; remaining <= 20; remaining++ {
		got := CalculatePoints(true, remaining, 20)
		if got <= prev {
			t.Fatalf("points not strictly increasing at %ds remaining: %d then %d", remaining, prev, got)
		}
		prev = got
	}
}

func TestCalculatePointsClampsOutOfRangeInputs(t *testing.T) {
	if got := CalculatePoints(true, -5, 20); got != maxPoints/2 {
		t.Fatalf("negative remaining scored %d, want %d", got, maxPoints/2)
	}
	if got := CalculatePoints(true, 99, 20); got != maxPoints {
		t.Fatalf("overreported remaining scored %d, want %d", got, maxPoints)
	}
	if got := CalculatePoints(true, 10, 0); got != 0 {
		t.Fatalf("zero-length question scored %d, want 0", got)
	}
}

func TestBuildLeaderboardOrdering(t *testing.T) {
	base := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	players := []domain.Player{
		{ID: "p1", Name: "Ava", Score: 500, JoinedAt: base.Add(2 * time.Second)},
		{ID: "p2", Name: "Ben", Score: 900, JoinedAt: base},
		{ID: "p3", Name: "Cyd", Score: 500, JoinedAt: base.Add(time.Second)},
	}

	lb := BuildLeaderboard(players, domain.ModeIndividual, base)
	got := []string{lb.Individual[0].PlayerID, lb.Individual[1].PlayerID, lb.Individual[2].PlayerID}
	want := []string{"p2", "p3", "p1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("position %d: got %s, want %s (full order %v)", i, got[i], want[i], got)
		}
	}
	if lb.Teams != nil {
		t.Fatalf("individual mode should not aggregate teams")
	}
}

func TestBuildLeaderboardTeamTotals(t *testing.T) {
	base := time.Now()
	players := []domain.Player{
		{ID: "p1", Name: "Ava", Team: "red", Score: 700, JoinedAt: base},
		{ID: "p2", Name: "Ben", Team: "blue", Score: 500, JoinedAt: base},
		{ID: "p3", Name: "Cyd", Team: "red", Score: 300, JoinedAt: base},
		{ID: "p4", Name: "Dee", Score: 999, JoinedAt: base}, // no team yet
	}

	lb := BuildLeaderboard(players, domain.ModeTeam, base)
	if len(lb.Teams) != 2 {
		t.Fatalf("expected 2 teams, got %d", len(lb.Teams))
	}
	if lb.Teams[0].Team != "red" || lb.Teams[0].Score != 1000 || lb.Teams[0].Members != 2 {
		t.Fatalf("unexpected leading team: %+v", lb.Teams[0])
	}
	if lb.Teams[1].Team != "blue" || lb.Teams[1].Score != 500 {
		t.Fatalf("unexpected second team: %+v", lb.Teams[1])
	}
}
