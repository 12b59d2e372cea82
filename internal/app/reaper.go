package app

import (
	"log"
	"time"
)

// StartReaper launches the periodic sweep that evicts abandoned
// sessions. Calling it twice is a no-op until StopReaper runs.
func (e *Engine) StartReaper() {
	e.reaperMu.Lock()
	defer e.reaperMu.Unlock()
	if e.reaperStop != nil {
		return
	}
	stop := make(chan struct{})
	e.reaperStop = stop
	go func() {
		ticker := time.NewTicker(e.opts.ReapInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if n := e.ReapOnce(e.opts.Now()); n > 0 {
					log.Printf("reaper evicted %d session(s)", n)
				}
			}
		}
	}()
}

// StopReaper halts the periodic sweep.
func (e *Engine) StopReaper() {
	e.reaperMu.Lock()
	defer e.reaperMu.Unlock()
	if e.reaperStop != nil {
		close(e.reaperStop)
		e.reaperStop = nil
	}
}

// ReapOnce sweeps the registry once and returns how many sessions were
// evicted. Eviction frees the session's code for reuse and detaches
// all connection subscriptions.
func (e *Engine) ReapOnce(now time.Time) int {
	evicted := 0
	for _, session := range e.registry.Sessions() {
		if reason, ok := e.reapable(session, now); ok {
			e.evict(session, reason)
			evicted++
		}
	}
	return evicted
}

func (e *Engine) reapable(session *Session, now time.Time) (string, bool) {
	if finishedAt, ok := session.FinishedAt(); ok {
		if now.Sub(finishedAt) > e.opts.FinishedGrace {
			return "finished past grace window", true
		}
		return "", false
	}
	if session.PlayerCount() == 0 {
		if now.Sub(session.CreatedAt()) > e.opts.IdleGrace {
			return "empty lobby past grace window", true
		}
		return "", false
	}
	if session.AllDisconnected() && now.Sub(session.LastActivity()) > e.opts.IdleGrace {
		return "all players disconnected past grace window", true
	}
	return "", false
}
