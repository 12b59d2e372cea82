package app

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/knowandlove/animal-genius-backend-sub004/internal/domain"
	"github.com/knowandlove/animal-genius-backend-sub004/internal/guard"
)

// SessionRegistry owns the table of active sessions and its indices.
type SessionRegistry interface {
	// Insert adds a session; it fails when the code is already in use
	// by another active session.
	Insert(s *Session) bool
	ByID(id string) (*Session, bool)
	ByCode(code string) (*Session, bool)
	Remove(id string)
	Sessions() []*Session
}

// QuestionSource supplies the fixed question list drawn at session creation.
type QuestionSource interface {
	DrawQuestions(ctx context.Context, count int) ([]domain.GameQuestion, error)
}

// TicketStore mints and validates the short-lived host tickets. A
// ticket is opaque to clients and single-use: Consume invalidates it.
type TicketStore interface {
	Mint(ctx context.Context, hostID, sessionID string, ttl time.Duration) (string, error)
	Consume(ctx context.Context, ticket string) (hostID, sessionID string, err error)
}

// AnswerEvent is the mirrored record of one accepted submission.
type AnswerEvent struct {
	SessionID        string
	PlayerID         string
	QuestionID       string
	Choice           int
	SecondsRemaining int
	Awarded          int
	Correct          bool
}

// Mirror receives best-effort persistence writes. Implementations must
// never block; gameplay is identical when every write fails.
type Mirror interface {
	SessionCreated(snap domain.SessionSnapshot)
	PlayerJoined(sessionID string, p domain.Player)
	AnswerAccepted(evt AnswerEvent)
	SessionFinished(snap domain.SessionSnapshot, lb domain.Leaderboard)
}

// NopMirror discards every write.
type NopMirror struct{}

func (NopMirror) SessionCreated(domain.SessionSnapshot)                      {}
func (NopMirror) PlayerJoined(string, domain.Player)                         {}
func (NopMirror) AnswerAccepted(AnswerEvent)                                 {}
func (NopMirror) SessionFinished(domain.SessionSnapshot, domain.Leaderboard) {}

// Options tune the engine. Zero values fall back to defaults.
type Options struct {
	MaxPlayers                int
	AnswerAttempts            int
	CodeLength                int
	CodeAttempts              int
	TicketTTL                 time.Duration
	TickInterval              time.Duration
	ReapInterval              time.Duration
	FinishedGrace             time.Duration
	IdleGrace                 time.Duration
	DefaultQuestionCount      int
	DefaultSecondsPerQuestion int
	Now                       func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxPlayers <= 0 {
		o.MaxPlayers = 100
	}
	if o.AnswerAttempts <= 0 {
		o.AnswerAttempts = 3
	}
	if o.CodeLength <= 0 {
		o.CodeLength = 6
	}
	if o.CodeAttempts <= 0 {
		o.CodeAttempts = 50
	}
	if o.TicketTTL <= 0 {
		o.TicketTTL = 2 * time.Minute
	}
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.ReapInterval <= 0 {
		o.ReapInterval = 30 * time.Minute
	}
	if o.FinishedGrace <= 0 {
		o.FinishedGrace = 30 * time.Minute
	}
	if o.IdleGrace <= 0 {
		o.IdleGrace = 15 * time.Minute
	}
	if o.DefaultQuestionCount <= 0 {
		o.DefaultQuestionCount = 10
	}
	if o.DefaultSecondsPerQuestion <= 0 {
		o.DefaultSecondsPerQuestion = 20
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Engine wires the session registry, question source, ticket store and
// persistence mirror into the game use cases. It is the single
// injectable owner of all live session state; Shutdown releases it.
type Engine struct {
	registry  SessionRegistry
	questions QuestionSource
	tickets   TicketStore
	mirror    Mirror
	opts      Options

	rndMu sync.Mutex
	rnd   *rand.Rand

	reaperMu   sync.Mutex
	reaperStop chan struct{}
}

func NewEngine(registry SessionRegistry, questions QuestionSource, tickets TicketStore, mirror Mirror, opts Options) *Engine {
	if mirror == nil {
		mirror = NopMirror{}
	}
	return &Engine{
		registry:  registry,
		questions: questions,
		tickets:   tickets,
		mirror:    mirror,
		opts:      opts.withDefaults(),
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// codeAlphabet omits characters that are easy to mistype from a
// projector (0/O, 1/I/L).
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

func (e *Engine) newCode() string {
	e.rndMu.Lock()
	defer e.rndMu.Unlock()
	buf := make([]byte, e.opts.CodeLength)
	for i := range buf {
		buf[i] = codeAlphabet[e.rnd.Intn(len(codeAlphabet))]
	}
	return string(buf)
}

func normalizeSettings(settings domain.Settings, opts Options) domain.Settings {
	if settings.Mode != domain.ModeTeam {
		settings.Mode = domain.ModeIndividual
	}
	if settings.QuestionCount <= 0 {
		settings.QuestionCount = opts.DefaultQuestionCount
	}
	if settings.SecondsPerQuestion <= 0 {
		settings.SecondsPerQuestion = opts.DefaultSecondsPerQuestion
	}
	return settings
}

// CreateSession draws questions, allocates a unique join code with a
// bounded number of attempts, and mints the host's first ticket.
func (e *Engine) CreateSession(ctx context.Context, hostID string, settings domain.Settings) (domain.SessionSnapshot, string, error) {
	if hostID == "" {
		return domain.SessionSnapshot{}, "", domain.ErrAuthRequired
	}
	settings = normalizeSettings(settings, e.opts)

	questions, err := e.questions.DrawQuestions(ctx, settings.QuestionCount)
	if err != nil {
		return domain.SessionSnapshot{}, "", fmt.Errorf("draw questions: %w", err)
	}
	if len(questions) == 0 {
		return domain.SessionSnapshot{}, "", domain.ErrQuestionBankEmpty
	}

	var session *Session
	for attempt := 0; attempt < e.opts.CodeAttempts; attempt++ {
		candidate := newSession(sessionParams{
			id:           uuid.NewString(),
			code:         e.newCode(),
			hostID:       hostID,
			settings:     settings,
			questions:    questions,
			maxPlayers:   e.opts.MaxPlayers,
			attemptLimit: e.opts.AnswerAttempts,
			tickInterval: e.opts.TickInterval,
			now:          e.opts.Now,
		})
		if e.registry.Insert(candidate) {
			session = candidate
			break
		}
	}
	if session == nil {
		return domain.SessionSnapshot{}, "", domain.ErrCodeSpaceExhausted
	}

	ticket, err := e.tickets.Mint(ctx, hostID, session.ID(), e.opts.TicketTTL)
	if err != nil {
		e.registry.Remove(session.ID())
		session.Close()
		return domain.SessionSnapshot{}, "", fmt.Errorf("mint ticket: %w", err)
	}

	snap := session.Snapshot()
	e.mirror.SessionCreated(snap)
	return snap, ticket, nil
}

// MintTicket issues a fresh ticket for an existing session, used when
// the host's connection dropped and must reauthenticate.
func (e *Engine) MintTicket(ctx context.Context, sessionID, hostID string) (string, error) {
	session, ok := e.registry.ByID(sessionID)
	if !ok {
		return "", domain.ErrSessionNotFound
	}
	if session.HostID() != hostID {
		return "", domain.ErrInvalidTicket
	}
	return e.tickets.Mint(ctx, hostID, sessionID, e.opts.TicketTTL)
}

// Authenticate consumes a ticket and resolves the session it grants
// host privileges on.
func (e *Engine) Authenticate(ctx context.Context, ticket string) (*Session, error) {
	hostID, sessionID, err := e.tickets.Consume(ctx, ticket)
	if err != nil {
		return nil, domain.ErrInvalidTicket
	}
	session, ok := e.registry.ByID(sessionID)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if session.HostID() != hostID {
		return nil, domain.ErrInvalidTicket
	}
	return session, nil
}

// SessionByID looks a session up by its opaque id.
func (e *Engine) SessionByID(id string) (*Session, error) {
	session, ok := e.registry.ByID(id)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// SessionByCode looks a session up by its human-typable code.
func (e *Engine) SessionByCode(code string) (*Session, error) {
	session, ok := e.registry.ByCode(code)
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// Join sanitizes the display name and admits (or reconnects) a player
// in the session matching code.
func (e *Engine) Join(ctx context.Context, code, rawName string) (*Session, domain.Player, bool, error) {
	name, err := guard.SanitizeName(rawName)
	if err != nil {
		return nil, domain.Player{}, false, err
	}
	session, ok := e.registry.ByCode(code)
	if !ok {
		return nil, domain.Player{}, false, domain.ErrSessionNotFound
	}
	player, rejoined, err := session.Join(name)
	if err != nil {
		return nil, domain.Player{}, false, err
	}
	if !rejoined {
		e.mirror.PlayerJoined(session.ID(), player)
	}
	return session, player, rejoined, nil
}

// StartSession begins play on a lobby session.
func (e *Engine) StartSession(sessionID string) (QuestionPayload, error) {
	session, err := e.SessionByID(sessionID)
	if err != nil {
		return QuestionPayload{}, err
	}
	return session.Start()
}

// SubmitAnswer scores a submission and mirrors the accepted answer.
func (e *Engine) SubmitAnswer(sessionID, playerID, questionID string, choice, secondsRemaining int) (int, error) {
	session, err := e.SessionByID(sessionID)
	if err != nil {
		return 0, err
	}
	points, err := session.SubmitAnswer(playerID, questionID, choice, secondsRemaining)
	if err != nil {
		return 0, err
	}
	e.mirror.AnswerAccepted(AnswerEvent{
		SessionID:        sessionID,
		PlayerID:         playerID,
		QuestionID:       questionID,
		Choice:           choice,
		SecondsRemaining: secondsRemaining,
		Awarded:          points,
		Correct:          points > 0,
	})
	return points, nil
}

// Reveal discloses the current question's results.
func (e *Engine) Reveal(sessionID string) (domain.RevealSummary, error) {
	session, err := e.SessionByID(sessionID)
	if err != nil {
		return domain.RevealSummary{}, err
	}
	return session.Reveal()
}

// Advance moves to the next question; when questions are exhausted the
// session finishes and the final standings are mirrored.
func (e *Engine) Advance(sessionID string) (*QuestionPayload, bool, error) {
	session, err := e.SessionByID(sessionID)
	if err != nil {
		return nil, false, err
	}
	payload, finished, err := session.AdvanceQuestion()
	if err != nil {
		return nil, false, err
	}
	if finished {
		e.mirror.SessionFinished(session.Snapshot(), session.Leaderboard())
	}
	return payload, finished, nil
}

// EndSession is the host's early stop.
func (e *Engine) EndSession(sessionID string) (domain.Leaderboard, error) {
	session, err := e.SessionByID(sessionID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	lb, err := session.End()
	if err != nil {
		return domain.Leaderboard{}, err
	}
	e.mirror.SessionFinished(session.Snapshot(), lb)
	return lb, nil
}

// Kick removes a player at the host's request. Emptying a lobby this
// way removes the session immediately.
func (e *Engine) Kick(sessionID, playerID string) (domain.Player, error) {
	session, err := e.SessionByID(sessionID)
	if err != nil {
		return domain.Player{}, err
	}
	player, emptied, err := session.RemovePlayer(playerID)
	if err != nil {
		return domain.Player{}, err
	}
	if emptied {
		e.evict(session, "lobby emptied by kick")
	}
	return player, nil
}

// Disconnect flags a player offline; empty lobbies with no host are
// cleaned up immediately instead of waiting for the reaper.
func (e *Engine) Disconnect(sessionID, playerID string) error {
	session, err := e.SessionByID(sessionID)
	if err != nil {
		return err
	}
	removable, err := session.DisconnectPlayer(playerID)
	if err != nil {
		return err
	}
	if removable {
		e.evict(session, "empty lobby")
	}
	return nil
}

// SetPlayerTeam assigns a player to a team.
func (e *Engine) SetPlayerTeam(sessionID, playerID, team string) (domain.Player, error) {
	session, err := e.SessionByID(sessionID)
	if err != nil {
		return domain.Player{}, err
	}
	return session.SetPlayerTeam(playerID, team)
}

// SetPlayerReady flags a lobby player as ready.
func (e *Engine) SetPlayerReady(sessionID, playerID string) (domain.Player, error) {
	session, err := e.SessionByID(sessionID)
	if err != nil {
		return domain.Player{}, err
	}
	return session.SetPlayerReady(playerID)
}

func (e *Engine) evict(session *Session, reason string) {
	e.registry.Remove(session.ID())
	session.Close()
	log.Printf("session %s (%s) removed: %s", session.ID(), session.Code(), reason)
}

// Shutdown stops the reaper and releases every live session, cancelling
// their clocks and closing all subscriptions.
func (e *Engine) Shutdown() {
	e.StopReaper()
	for _, session := range e.registry.Sessions() {
		e.registry.Remove(session.ID())
		session.Close()
	}
}
