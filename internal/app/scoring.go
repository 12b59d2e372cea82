package app

import (
	"math"
	"sort"
	"time"

	"github.com/knowandlove/animal-genius-backend-sub004/internal/domain"
)

// maxPoints is the score for an instant correct answer. The curve is a
// tunable, not a compatibility contract.
const maxPoints = 1000

// CalculatePoints scores one submission. Incorrect answers always score
// zero. Correct answers scale continuously with the time remaining at
// submission, so a correct-but-slow answer still earns half credit.
func CalculatePoints(correct bool, secondsRemaining, secondsTotal int) int {
	if !correct || secondsTotal <= 0 {
		return 0
	}
	if secondsRemaining < 0 {
		secondsRemaining = 0
	}
	if secondsRemaining > secondsTotal {
		secondsRemaining = secondsTotal
	}
	fraction := float64(secondsRemaining) / float64(secondsTotal)
	return int(math.Round(maxPoints * (0.5 + 0.5*fraction)))
}

// BuildLeaderboard orders players by score descending, breaking ties by
// earlier join time. Team standings are aggregated only in team mode.
func BuildLeaderboard(players []domain.Player, mode domain.GameMode, now time.Time) domain.Leaderboard {
	sorted := make([]domain.Player, len(players))
	copy(sorted, players)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		if !sorted[i].JoinedAt.Equal(sorted[j].JoinedAt) {
			return sorted[i].JoinedAt.Before(sorted[j].JoinedAt)
		}
		return sorted[i].Name < sorted[j].Name
	})

	entries := make([]domain.LeaderboardEntry, 0, len(sorted))
	for _, p := range sorted {
		entries = append(entries, domain.LeaderboardEntry{
			PlayerID: p.ID,
			Name:     p.Name,
			Team:     p.Team,
			Score:    p.Score,
		})
	}

	lb := domain.Leaderboard{Individual: entries, UpdatedAt: now}
	if mode != domain.ModeTeam {
		return lb
	}

	totals := make(map[string]*domain.TeamStanding)
	order := make([]string, 0)
	for _, p := range sorted {
		if p.Team == "" {
			continue
		}
		standing, ok := totals[p.Team]
		if !ok {
			standing = &domain.TeamStanding{Team: p.Team}
			totals[p.Team] = standing
			order = append(order, p.Team)
		}
		standing.Score += p.Score
		standing.Members++
	}
	teams := make([]domain.TeamStanding, 0, len(order))
	for _, team := range order {
		teams = append(teams, *totals[team])
	}
	sort.Slice(teams, func(i, j int) bool {
		if teams[i].Score != teams[j].Score {
			return teams[i].Score > teams[j].Score
		}
		return teams[i].Team < teams[j].Team
	})
	lb.Teams = teams
	return lb
}
