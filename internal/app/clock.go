package app

import (
	"time"

	"github.com/knowandlove/animal-genius-backend-sub004/internal/domain"
)

// The question clock is a per-session countdown goroutine. Starting a
// clock always cancels the previous one under the session lock, so two
// timers can never race on one session. On expiry the clock triggers
// the same Reveal path the host uses; it never advances the question.

// startClockLocked replaces any running clock with a fresh countdown
// for the current question. Callers must hold s.mu.
func (s *Session) startClockLocked() {
	s.stopClockLocked()
	stop := make(chan struct{})
	s.clockStop = stop
	go s.runClock(stop, s.settings.SecondsPerQuestion)
}

// stopClockLocked cancels the running clock, if any. Callers must hold s.mu.
func (s *Session) stopClockLocked() {
	if s.clockStop != nil {
		close(s.clockStop)
		s.clockStop = nil
	}
}

func (s *Session) runClock(stop chan struct{}, total int) {
	interval := s.tickInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	remaining := total
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			remaining--
			if !s.broadcastTick(stop, remaining) {
				return
			}
			if remaining <= 0 {
				// Losing the race against a manual reveal is fine.
				_ = s.revealFromClock(stop)
				return
			}
		}
	}
}

// revealFromClock is the expiry path. The stop channel identifies the
// clock asking: a clock cancelled between its final tick and this call
// belongs to an earlier question and must not reveal whichever question
// is current now.
func (s *Session) revealFromClock(stop chan struct{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clockStop != stop {
		return domain.ErrInvalidState
	}
	_, err := s.revealLocked()
	return err
}

// broadcastTick publishes the remaining seconds unless the clock was
// replaced, the question has already been revealed, or the session left
// the playing state.
func (s *Session) broadcastTick(stop chan struct{}, remaining int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.clockStop != stop || s.revealed || s.status != domain.StatusPlaying {
		return false
	}
	s.publishLocked(Event{Type: EvtTick, Data: TickPayload{
		QuestionIndex:    s.currentIndex,
		SecondsRemaining: remaining,
	}})
	return true
}
