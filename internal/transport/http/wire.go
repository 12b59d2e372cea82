package http

import (
	"encoding/json"
	"errors"

	"github.com/knowandlove/animal-genius-backend-sub004/internal/domain"
)

// Envelope is the bidirectional wire frame: {"type": ..., "data": ...}.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type outbound struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type errorPayload struct {
	Code   string `json:"code"`
	Detail string `json:"detail,omitempty"`
}

// Stable wire error codes. Clients branch on Code; Detail is a
// human-readable hint only.
const (
	codeAuthRequired    = "AUTH_REQUIRED"
	codeInvalidTicket   = "INVALID_TICKET"
	codeSessionNotFound = "SESSION_NOT_FOUND"
	codeSessionStarted  = "SESSION_STARTED"
	codeSessionFull     = "SESSION_FULL"
	codeNoPlayers       = "NO_PLAYERS"
	codeNoQuestions     = "NO_QUESTIONS"
	codeInvalidName     = "INVALID_NAME"
	codeNotInSession    = "NOT_IN_SESSION"
	codeInvalidState    = "INVALID_STATE"
	codeAlreadyAnswered = "ALREADY_ANSWERED"
	codeStaleQuestion   = "STALE_QUESTION"
	codeRateLimited     = "RATE_LIMITED"
	codePlayerNotFound  = "PLAYER_NOT_FOUND"
	codeMalformed       = "MALFORMED"
	codeUnknownType     = "UNKNOWN_TYPE"
	codeInternal        = "INTERNAL"
)

// errorFor maps domain sentinels onto stable codes with student- or
// host-friendly detail text. Unrecognized errors become a generic
// internal error rather than leaking internals.
func errorFor(err error) errorPayload {
	switch {
	case errors.Is(err, domain.ErrAuthRequired):
		return errorPayload{Code: codeAuthRequired, Detail: "this action requires an authenticated host"}
	case errors.Is(err, domain.ErrInvalidTicket):
		return errorPayload{Code: codeInvalidTicket, Detail: "the ticket is invalid or expired"}
	case errors.Is(err, domain.ErrSessionNotFound):
		return errorPayload{Code: codeSessionNotFound, Detail: "this code doesn't match an active game"}
	case errors.Is(err, domain.ErrSessionStarted):
		return errorPayload{Code: codeSessionStarted, Detail: "this game has already started"}
	case errors.Is(err, domain.ErrSessionFull):
		return errorPayload{Code: codeSessionFull, Detail: "this game is full"}
	case errors.Is(err, domain.ErrNoPlayers):
		return errorPayload{Code: codeNoPlayers, Detail: "add at least one player before starting"}
	case errors.Is(err, domain.ErrNoQuestions):
		return errorPayload{Code: codeNoQuestions, Detail: "this game has no questions"}
	case errors.Is(err, domain.ErrInvalidName):
		return errorPayload{Code: codeInvalidName, Detail: "pick a name between 1 and 30 printable characters"}
	case errors.Is(err, domain.ErrNotInSession):
		return errorPayload{Code: codeNotInSession, Detail: "join a game first"}
	case errors.Is(err, domain.ErrInvalidState):
		return errorPayload{Code: codeInvalidState, Detail: "the game is not in a state that allows this"}
	case errors.Is(err, domain.ErrAlreadyAnswered):
		return errorPayload{Code: codeAlreadyAnswered, Detail: "you've already answered"}
	case errors.Is(err, domain.ErrStaleQuestion):
		return errorPayload{Code: codeStaleQuestion, Detail: "that question is no longer open"}
	case errors.Is(err, domain.ErrRateLimited):
		return errorPayload{Code: codeRateLimited, Detail: "too many attempts, slow down"}
	case errors.Is(err, domain.ErrInvalidChoice):
		return errorPayload{Code: codeMalformed, Detail: "that choice does not exist"}
	case errors.Is(err, domain.ErrPlayerNotFound):
		return errorPayload{Code: codePlayerNotFound, Detail: "no such player in this game"}
	default:
		return errorPayload{Code: codeInternal, Detail: "something went wrong"}
	}
}
