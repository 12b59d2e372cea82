package domain

import "errors"

var (
	// ErrAuthRequired is returned when a privileged action arrives on an unauthenticated connection.
	ErrAuthRequired = errors.New("authentication required")
	// ErrInvalidTicket is returned when a host ticket is unknown, expired, or already used.
	ErrInvalidTicket = errors.New("invalid ticket")
	// ErrSessionNotFound is returned when no active session matches the given id or code.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionStarted is returned when a new player tries to join a session that is already playing.
	ErrSessionStarted = errors.New("session already started")
	// ErrSessionFull is returned when a join would exceed the player limit.
	ErrSessionFull = errors.New("session is full")
	// ErrNoPlayers is returned when starting a session with an empty lobby.
	ErrNoPlayers = errors.New("session has no players")
	// ErrNoQuestions is returned when starting a session without questions.
	ErrNoQuestions = errors.New("session has no questions")
	// ErrInvalidName is returned when a display name is empty after sanitization or too long.
	ErrInvalidName = errors.New("invalid player name")
	// ErrNotInSession is returned when a connection acts before joining a session.
	ErrNotInSession = errors.New("connection not associated with a session")
	// ErrInvalidState is returned when the session state does not permit the requested action.
	ErrInvalidState = errors.New("invalid state for requested action")
	// ErrAlreadyAnswered is returned on a second submission for the same question.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrStaleQuestion is returned when a submission references a non-current question.
	ErrStaleQuestion = errors.New("submission for a non-current question")
	// ErrRateLimited is returned when a player exceeds the submission attempt budget.
	ErrRateLimited = errors.New("too many submission attempts")
	// ErrInvalidChoice is returned when a submitted choice index is out of range.
	ErrInvalidChoice = errors.New("choice out of range")
	// ErrPlayerNotFound is returned when a player id does not exist in the session.
	ErrPlayerNotFound = errors.New("player not found in session")
	// ErrCodeSpaceExhausted indicates code generation could not find a free code.
	ErrCodeSpaceExhausted = errors.New("session code space exhausted")
	// ErrQuestionBankEmpty indicates the question source has nothing to draw from.
	ErrQuestionBankEmpty = errors.New("question bank is empty")
)
