package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/knowandlove/animal-genius-backend-sub004/internal/domain"
)

// TicketStore keeps host tickets in Redis so a host can reauthenticate
// against any freshly minted ticket even after the process that minted
// it restarted. Tickets are stored as:
//
//	SET game:ticket:{ticket} {"hostId":...,"sessionId":...} EX ttl
//
// and consumed with GETDEL, which makes them single-use.
type TicketStore struct {
	client *redis.Client
}

type ticketClaims struct {
	HostID    string `json:"hostId"`
	SessionID string `json:"sessionId"`
}

func NewTicketStore(client *redis.Client) *TicketStore {
	return &TicketStore{client: client}
}

func (s *TicketStore) Mint(ctx context.Context, hostID, sessionID string, ttl time.Duration) (string, error) {
	ticket := uuid.NewString()
	payload, err := json.Marshal(ticketClaims{HostID: hostID, SessionID: sessionID})
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, s.key(ticket), payload, ttl).Err(); err != nil {
		return "", err
	}
	return ticket, nil
}

// Consume validates and invalidates a ticket in one round trip.
func (s *TicketStore) Consume(ctx context.Context, ticket string) (string, string, error) {
	payload, err := s.client.GetDel(ctx, s.key(ticket)).Result()
	if err == redis.Nil {
		return "", "", domain.ErrInvalidTicket
	}
	if err != nil {
		return "", "", err
	}
	var claims ticketClaims
	if err := json.Unmarshal([]byte(payload), &claims); err != nil {
		return "", "", domain.ErrInvalidTicket
	}
	return claims.HostID, claims.SessionID, nil
}

func (s *TicketStore) key(ticket string) string {
	return "game:ticket:" + ticket
}
