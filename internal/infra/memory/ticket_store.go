package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/knowandlove/animal-genius-backend-sub004/internal/domain"
)

// TicketStore keeps host tickets in process memory, used when Redis is
// not configured.
type TicketStore struct {
	clock func() time.Time

	mu      sync.Mutex
	tickets map[string]ticketEntry
}

type ticketEntry struct {
	hostID    string
	sessionID string
	expiresAt time.Time
}

func NewTicketStore() *TicketStore {
	return &TicketStore{
		clock:   time.Now,
		tickets: make(map[string]ticketEntry),
	}
}

func (s *TicketStore) Mint(_ context.Context, hostID, sessionID string, ttl time.Duration) (string, error) {
	ticket := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()
	s.tickets[ticket] = ticketEntry{
		hostID:    hostID,
		sessionID: sessionID,
		expiresAt: s.clock().Add(ttl),
	}
	return ticket, nil
}

// Consume validates a ticket and invalidates it in the same step.
func (s *TicketStore) Consume(_ context.Context, ticket string) (string, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.tickets[ticket]
	if !ok {
		return "", "", domain.ErrInvalidTicket
	}
	delete(s.tickets, ticket)
	if s.clock().Before(entry.expiresAt) {
		return entry.hostID, entry.sessionID, nil
	}
	return "", "", domain.ErrInvalidTicket
}

func (s *TicketStore) pruneLocked() {
	now := s.clock()
	for ticket, entry := range s.tickets {
		if !entry.expiresAt.After(now) {
			delete(s.tickets, ticket)
		}
	}
}
