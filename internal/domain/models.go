package domain

import "time"

// GameMode selects how the leaderboard is aggregated.
type GameMode string

const (
	ModeIndividual GameMode = "individual"
	ModeTeam       GameMode = "team"
)

// SessionStatus is the session lifecycle state.
type SessionStatus string

const (
	StatusLobby    SessionStatus = "lobby"
	StatusPlaying  SessionStatus = "playing"
	StatusFinished SessionStatus = "finished"
)

// Settings are fixed at session creation and never change afterwards.
type Settings struct {
	Mode               GameMode `json:"mode"`
	QuestionCount      int      `json:"questionCount"`
	SecondsPerQuestion int      `json:"secondsPerQuestion"`
}

// GameQuestion is an immutable multiple-choice question.
type GameQuestion struct {
	ID            string   `json:"id"`
	Prompt        string   `json:"prompt"`
	Choices       []string `json:"choices"`
	CorrectChoice int      `json:"correctChoice"`
}

// PublicQuestion is the client-facing view of a question with the
// correct choice withheld.
type PublicQuestion struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Choices []string `json:"choices"`
}

// Public strips the answer key from a question.
func (q GameQuestion) Public() PublicQuestion {
	return PublicQuestion{ID: q.ID, Prompt: q.Prompt, Choices: q.Choices}
}

// AnswerRecord holds a player's submission for the current question.
// It is cleared whenever a new question becomes current.
type AnswerRecord struct {
	QuestionID       string    `json:"questionId"`
	Choice           int       `json:"choice"`
	SecondsRemaining int       `json:"secondsRemaining"`
	ElapsedSeconds   int       `json:"elapsedSeconds"`
	SubmittedAt      time.Time `json:"submittedAt"`
}

// Player is one student participant within exactly one session.
type Player struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Team          string        `json:"team,omitempty"`
	Score         int           `json:"score"`
	Ready         bool          `json:"ready"`
	Connected     bool          `json:"connected"`
	CurrentAnswer *AnswerRecord `json:"-"`
	JoinedAt      time.Time     `json:"joinedAt"`
}

// LeaderboardEntry is a snapshot-friendly view of one player.
type LeaderboardEntry struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Team     string `json:"team,omitempty"`
	Score    int    `json:"score"`
}

// TeamStanding aggregates the scores of one team's members.
type TeamStanding struct {
	Team    string `json:"team"`
	Score   int    `json:"score"`
	Members int    `json:"members"`
}

// Leaderboard captures the ordered standings for a session. Teams is
// nil unless the session runs in team mode.
type Leaderboard struct {
	Individual []LeaderboardEntry `json:"individual"`
	Teams      []TeamStanding     `json:"teams,omitempty"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

// PlayerResult summarizes one player's outcome for a revealed question.
type PlayerResult struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Answered bool   `json:"answered"`
	Correct  bool   `json:"correct"`
	Awarded  int    `json:"awarded"`
}

// RevealSummary is broadcast when the current question's results are
// disclosed, whether by the host or by the clock running out.
type RevealSummary struct {
	QuestionID    string         `json:"questionId"`
	QuestionIndex int            `json:"questionIndex"`
	CorrectChoice int            `json:"correctChoice"`
	Results       []PlayerResult `json:"results"`
	Leaderboard   Leaderboard    `json:"leaderboard"`
}

// SessionSnapshot is a copy of session state safe to hand to transport
// and persistence layers without holding the session lock.
type SessionSnapshot struct {
	ID                   string        `json:"id"`
	Code                 string        `json:"code"`
	HostID               string        `json:"hostId"`
	Settings             Settings      `json:"settings"`
	Status               SessionStatus `json:"status"`
	CurrentQuestionIndex int           `json:"currentQuestionIndex"`
	TotalQuestions       int           `json:"totalQuestions"`
	Players              []Player      `json:"players"`
	CreatedAt            time.Time     `json:"createdAt"`
	StartedAt            *time.Time    `json:"startedAt,omitempty"`
	FinishedAt           *time.Time    `json:"finishedAt,omitempty"`
}
