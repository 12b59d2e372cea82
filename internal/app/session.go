package app

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/knowandlove/animal-genius-backend-sub004/internal/domain"
	"github.com/knowandlove/animal-genius-backend-sub004/internal/guard"
)

// Session is one live trivia game. All mutable state is guarded by mu;
// every operation runs quickly and without I/O so concurrent inbound
// messages for the same session serialize cleanly.
type Session struct {
	id        string
	code      string
	hostID    string
	settings  domain.Settings
	questions []domain.GameQuestion
	createdAt time.Time

	maxPlayers   int
	attemptLimit int
	tickInterval time.Duration
	now          func() time.Time

	mu               sync.Mutex
	status           domain.SessionStatus
	currentIndex     int
	currentStartedAt time.Time
	revealed         bool
	players          map[string]*domain.Player
	limiters         map[string]*guard.SubmissionLimiter
	hostConnID       string
	startedAt        *time.Time
	finishedAt       *time.Time
	lastActivity     time.Time
	clockStop        chan struct{}
	subscribers      map[chan Event]struct{}
	closed           bool
}

type sessionParams struct {
	id           string
	code         string
	hostID       string
	settings     domain.Settings
	questions    []domain.GameQuestion
	maxPlayers   int
	attemptLimit int
	tickInterval time.Duration
	now          func() time.Time
}

func newSession(p sessionParams) *Session {
	now := p.now
	if now == nil {
		now = time.Now
	}
	return &Session{
		id:           p.id,
		code:         p.code,
		hostID:       p.hostID,
		settings:     p.settings,
		questions:    p.questions,
		createdAt:    now(),
		maxPlayers:   p.maxPlayers,
		attemptLimit: p.attemptLimit,
		tickInterval: p.tickInterval,
		now:          now,
		status:       domain.StatusLobby,
		currentIndex: -1,
		players:      make(map[string]*domain.Player),
		limiters:     make(map[string]*guard.SubmissionLimiter),
		lastActivity: now(),
		subscribers:  make(map[chan Event]struct{}),
	}
}

func (s *Session) ID() string                { return s.id }
func (s *Session) Code() string              { return s.code }
func (s *Session) HostID() string            { return s.hostID }
func (s *Session) Settings() domain.Settings { return s.settings }
func (s *Session) CreatedAt() time.Time      { return s.createdAt }

// Snapshot copies the session state for transport and persistence use.
func (s *Session) Snapshot() domain.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() domain.SessionSnapshot {
	players := make([]domain.Player, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, *p)
	}
	return domain.SessionSnapshot{
		ID:                   s.id,
		Code:                 s.code,
		HostID:               s.hostID,
		Settings:             s.settings,
		Status:               s.status,
		CurrentQuestionIndex: s.currentIndex,
		TotalQuestions:       len(s.questions),
		Players:              players,
		CreatedAt:            s.createdAt,
		StartedAt:            s.startedAt,
		FinishedAt:           s.finishedAt,
	}
}

// Subscribe returns a channel receiving every broadcast for this
// session. The caller must invoke cancel to avoid leaks.
func (s *Session) Subscribe() (<-chan Event, func(), error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, domain.ErrSessionNotFound
	}
	ch := make(chan Event, 16)
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

// publishLocked fans an event out to all subscribers. Slow consumers
// have their oldest pending event dropped rather than blocking the
// session lock.
func (s *Session) publishLocked(evt Event) {
	for ch := range s.subscribers {
		select {
		case ch <- evt:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- evt
		}
	}
}

// Join admits a new player while in the lobby, or reconnects an
// existing player matched by display name once the game has begun.
// Name matching is the documented reconnection mechanism; two players
// sharing a name can have a reconnect misrouted.
func (s *Session) Join(name string) (domain.Player, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.Player{}, false, domain.ErrSessionNotFound
	}
	s.lastActivity = s.now()

	if existing := s.findByNameLocked(name); existing != nil && (s.status != domain.StatusLobby || !existing.Connected) {
		if s.status == domain.StatusFinished {
			return domain.Player{}, false, domain.ErrSessionStarted
		}
		existing.Connected = true
		s.publishLocked(Event{Type: EvtPlayerUpdated, Data: *existing})
		return *existing, true, nil
	}
	if s.status != domain.StatusLobby {
		return domain.Player{}, false, domain.ErrSessionStarted
	}
	if len(s.players) >= s.maxPlayers {
		return domain.Player{}, false, domain.ErrSessionFull
	}

	p := &domain.Player{
		ID:        uuid.NewString(),
		Name:      name,
		Connected: true,
		JoinedAt:  s.now(),
	}
	s.players[p.ID] = p
	window := time.Duration(s.settings.SecondsPerQuestion) * time.Second
	s.limiters[p.ID] = guard.NewSubmissionLimiter(s.attemptLimit, window)
	s.publishLocked(Event{Type: EvtPlayerJoined, Data: *p})
	return *p, false, nil
}

func (s *Session) findByNameLocked(name string) *domain.Player {
	for _, p := range s.players {
		if strings.EqualFold(p.Name, name) {
			return p
		}
	}
	return nil
}

// AttachHost binds the host's current connection to the session. The
// host may drop and reattach without ending the session.
func (s *Session) AttachHost(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hostConnID = connID
	s.lastActivity = s.now()
}

// DetachHost clears the host connection if connID still owns it.
func (s *Session) DetachHost(connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hostConnID == connID {
		s.hostConnID = ""
		s.lastActivity = s.now()
	}
}

// SetPlayerTeam assigns a player to a team any time before the session ends.
func (s *Session) SetPlayerTeam(playerID, team string) (domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == domain.StatusFinished {
		return domain.Player{}, domain.ErrInvalidState
	}
	p, ok := s.players[playerID]
	if !ok {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	p.Team = team
	s.lastActivity = s.now()
	s.publishLocked(Event{Type: EvtPlayerUpdated, Data: *p})
	return *p, nil
}

// SetPlayerReady flags a lobby player as ready.
func (s *Session) SetPlayerReady(playerID string) (domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	p.Ready = true
	s.lastActivity = s.now()
	s.publishLocked(Event{Type: EvtPlayerReady, Data: PlayerRefPayload{PlayerID: p.ID, Name: p.Name}})
	return *p, nil
}

// DisconnectPlayer marks a player offline, retaining their score and
// team. It reports whether the session became eligible for immediate
// removal (an empty lobby with no host attached).
func (s *Session) DisconnectPlayer(playerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return false, domain.ErrPlayerNotFound
	}
	p.Connected = false
	s.lastActivity = s.now()
	s.publishLocked(Event{Type: EvtPlayerDisconnected, Data: PlayerRefPayload{PlayerID: p.ID, Name: p.Name}})

	removable := s.status == domain.StatusLobby && s.hostConnID == "" && s.connectedCountLocked() == 0
	return removable, nil
}

// ReconnectPlayer marks a player online again.
func (s *Session) ReconnectPlayer(playerID string) (domain.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	p.Connected = true
	s.lastActivity = s.now()
	s.publishLocked(Event{Type: EvtPlayerUpdated, Data: *p})
	return *p, nil
}

// RemovePlayer deletes a player (host kick). It reports whether the
// removal emptied a lobby session.
func (s *Session) RemovePlayer(playerID string) (domain.Player, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok {
		return domain.Player{}, false, domain.ErrPlayerNotFound
	}
	delete(s.players, playerID)
	delete(s.limiters, playerID)
	s.lastActivity = s.now()
	s.publishLocked(Event{Type: EvtKicked, Data: PlayerRefPayload{PlayerID: p.ID, Name: p.Name}})
	s.publishLocked(Event{Type: EvtPlayerLeft, Data: PlayerRefPayload{PlayerID: p.ID, Name: p.Name}})

	emptied := s.status == domain.StatusLobby && len(s.players) == 0
	return *p, emptied, nil
}

// Start transitions lobby -> playing and makes the first question
// current. It requires at least one player and a non-empty question list.
func (s *Session) Start() (QuestionPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != domain.StatusLobby {
		return QuestionPayload{}, domain.ErrInvalidState
	}
	if len(s.players) == 0 {
		return QuestionPayload{}, domain.ErrNoPlayers
	}
	if len(s.questions) == 0 {
		return QuestionPayload{}, domain.ErrNoQuestions
	}

	now := s.now()
	s.status = domain.StatusPlaying
	s.startedAt = &now
	s.currentIndex = 0
	s.currentStartedAt = now
	s.revealed = false
	s.lastActivity = now
	s.startClockLocked()

	payload := s.questionPayloadLocked()
	s.publishLocked(Event{Type: EvtStarted, Data: payload})
	return payload, nil
}

func (s *Session) questionPayloadLocked() QuestionPayload {
	return QuestionPayload{
		Question:           s.questions[s.currentIndex].Public(),
		QuestionIndex:      s.currentIndex,
		TotalQuestions:     len(s.questions),
		SecondsPerQuestion: s.settings.SecondsPerQuestion,
	}
}

// SubmitAnswer validates, rate-limits, and scores one submission.
// Only the first submission per question counts; stale question ids
// and post-reveal submissions are rejected.
func (s *Session) SubmitAnswer(playerID, questionID string, choice, secondsRemaining int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != domain.StatusPlaying {
		return 0, domain.ErrInvalidState
	}
	p, ok := s.players[playerID]
	if !ok {
		return 0, domain.ErrPlayerNotFound
	}
	if limiter, ok := s.limiters[playerID]; ok && !limiter.Allow(s.now()) {
		return 0, domain.ErrRateLimited
	}
	if s.revealed {
		return 0, domain.ErrStaleQuestion
	}
	question := s.questions[s.currentIndex]
	if questionID != question.ID {
		return 0, domain.ErrStaleQuestion
	}
	if p.CurrentAnswer != nil {
		return 0, domain.ErrAlreadyAnswered
	}
	if choice < 0 || choice >= len(question.Choices) {
		return 0, domain.ErrInvalidChoice
	}

	now := s.now()
	total := s.settings.SecondsPerQuestion
	if secondsRemaining < 0 {
		secondsRemaining = 0
	}
	if secondsRemaining > total {
		secondsRemaining = total
	}
	elapsed := int(now.Sub(s.currentStartedAt).Seconds())

	correct := choice == question.CorrectChoice
	points := CalculatePoints(correct, secondsRemaining, total)
	p.Score += points
	p.CurrentAnswer = &domain.AnswerRecord{
		QuestionID:       question.ID,
		Choice:           choice,
		SecondsRemaining: secondsRemaining,
		ElapsedSeconds:   elapsed,
		SubmittedAt:      now,
	}
	s.lastActivity = now

	s.publishLocked(Event{Type: EvtPlayerAnswered, Data: AnsweredPayload{
		AnsweredCount: s.answeredCountLocked(),
		PlayerCount:   len(s.players),
	}})
	return points, nil
}

func (s *Session) answeredCountLocked() int {
	count := 0
	for _, p := range s.players {
		if p.CurrentAnswer != nil {
			count++
		}
	}
	return count
}

func (s *Session) connectedCountLocked() int {
	count := 0
	for _, p := range s.players {
		if p.Connected {
			count++
		}
	}
	return count
}

// Reveal discloses the current question's results. The host action and
// the clock expiry funnel through this one method; whichever arrives
// first wins and the loser gets ErrInvalidState.
func (s *Session) Reveal() (domain.RevealSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revealLocked()
}

func (s *Session) revealLocked() (domain.RevealSummary, error) {
	if s.status != domain.StatusPlaying || s.revealed {
		return domain.RevealSummary{}, domain.ErrInvalidState
	}
	s.revealed = true
	s.stopClockLocked()

	question := s.questions[s.currentIndex]
	results := make([]domain.PlayerResult, 0, len(s.players))
	for _, p := range s.players {
		result := domain.PlayerResult{PlayerID: p.ID, Name: p.Name}
		if ans := p.CurrentAnswer; ans != nil {
			result.Answered = true
			result.Correct = ans.Choice == question.CorrectChoice
			if result.Correct {
				result.Awarded = CalculatePoints(true, ans.SecondsRemaining, s.settings.SecondsPerQuestion)
			}
		}
		results = append(results, result)
	}

	summary := domain.RevealSummary{
		QuestionID:    question.ID,
		QuestionIndex: s.currentIndex,
		CorrectChoice: question.CorrectChoice,
		Results:       results,
		Leaderboard:   s.leaderboardLocked(),
	}
	s.lastActivity = s.now()
	s.publishLocked(Event{Type: EvtRevealed, Data: summary})
	return summary, nil
}

// AdvanceQuestion clears per-question state and makes the next question
// current, or finishes the session when questions are exhausted. The
// returned payload is nil on the finishing call.
func (s *Session) AdvanceQuestion() (*QuestionPayload, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != domain.StatusPlaying {
		return nil, false, domain.ErrInvalidState
	}

	for _, p := range s.players {
		p.CurrentAnswer = nil
	}
	for _, limiter := range s.limiters {
		limiter.Reset()
	}

	next := s.currentIndex + 1
	if next >= len(s.questions) {
		s.finishLocked()
		return nil, true, nil
	}

	s.currentIndex = next
	s.currentStartedAt = s.now()
	s.revealed = false
	s.lastActivity = s.currentStartedAt
	s.startClockLocked()

	payload := s.questionPayloadLocked()
	s.publishLocked(Event{Type: EvtAdvanced, Data: payload})
	return &payload, false, nil
}

// End forces the session to finished regardless of question progress.
func (s *Session) End() (domain.Leaderboard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == domain.StatusFinished {
		return domain.Leaderboard{}, domain.ErrInvalidState
	}
	s.finishLocked()
	return s.leaderboardLocked(), nil
}

func (s *Session) finishLocked() {
	now := s.now()
	s.status = domain.StatusFinished
	s.finishedAt = &now
	s.lastActivity = now
	s.stopClockLocked()
	s.publishLocked(Event{Type: EvtEnded, Data: EndedPayload{Leaderboard: s.leaderboardLocked()}})
}

// Leaderboard computes current standings.
func (s *Session) Leaderboard() domain.Leaderboard {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leaderboardLocked()
}

func (s *Session) leaderboardLocked() domain.Leaderboard {
	players := make([]domain.Player, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, *p)
	}
	return BuildLeaderboard(players, s.settings.Mode, s.now())
}

// CurrentQuestion reports the question open for answers right now,
// with an estimate of the seconds left, for mid-game reconnect syncs.
func (s *Session) CurrentQuestion() (QuestionPayload, int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != domain.StatusPlaying || s.revealed {
		return QuestionPayload{}, 0, false
	}
	elapsed := int(s.now().Sub(s.currentStartedAt).Seconds())
	remaining := s.settings.SecondsPerQuestion - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return s.questionPayloadLocked(), remaining, true
}

// Close stops the clock and tears down all subscriptions. The session
// must not be used afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.stopClockLocked()
	for ch := range s.subscribers {
		close(ch)
	}
	s.subscribers = make(map[chan Event]struct{})
}

// Reaper views.

func (s *Session) Status() domain.SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) PlayerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.players)
}

func (s *Session) AllDisconnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.players) > 0 && s.connectedCountLocked() == 0 && s.hostConnID == ""
}

func (s *Session) FinishedAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finishedAt == nil {
		return time.Time{}, false
	}
	return *s.finishedAt, true
}

func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}
