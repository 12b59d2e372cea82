package app

import "github.com/knowandlove/animal-genius-backend-sub004/internal/domain"

// Event is one outbound notification fanned out to every connection
// subscribed to a session.
type Event struct {
	Type string
	Data any
}

// Broadcast event types. Direct (single-connection) replies such as
// "joined" or "answer-accepted" are owned by the transport layer.
const (
	EvtPlayerJoined       = "player-joined"
	EvtPlayerUpdated      = "player-updated"
	EvtPlayerReady        = "player-ready"
	EvtStarted            = "started"
	EvtTick               = "tick"
	EvtPlayerAnswered     = "player-answered"
	EvtRevealed           = "revealed"
	EvtAdvanced           = "advanced"
	EvtEnded              = "ended"
	EvtPlayerDisconnected = "player-disconnected"
	EvtPlayerLeft         = "player-left"
	EvtKicked             = "kicked"
)

// QuestionPayload announces a question becoming current ("started" and
// "advanced" share the shape).
type QuestionPayload struct {
	Question           domain.PublicQuestion `json:"question"`
	QuestionIndex      int                   `json:"questionIndex"`
	TotalQuestions     int                   `json:"totalQuestions"`
	SecondsPerQuestion int                   `json:"secondsPerQuestion"`
}

// TickPayload carries the countdown broadcast once per second.
type TickPayload struct {
	QuestionIndex    int `json:"questionIndex"`
	SecondsRemaining int `json:"secondsRemaining"`
}

// AnsweredPayload tells the host how many players have answered. It
// never carries answer content.
type AnsweredPayload struct {
	AnsweredCount int `json:"answeredCount"`
	PlayerCount   int `json:"playerCount"`
}

// EndedPayload carries the final standings.
type EndedPayload struct {
	Leaderboard domain.Leaderboard `json:"leaderboard"`
}

// PlayerRefPayload identifies a player in lifecycle broadcasts.
type PlayerRefPayload struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}
