package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/knowandlove/animal-genius-backend-sub004/internal/domain"
)

func TestTicketStoreMintAndConsume(t *testing.T) {
	store := NewTicketStore()
	ctx := context.Background()

	ticket, err := store.Mint(ctx, "host-1", "session-1", time.Minute)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	hostID, sessionID, err := store.Consume(ctx, ticket)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if hostID != "host-1" || sessionID != "session-1" {
		t.Fatalf("wrong claims: host=%s session=%s", hostID, sessionID)
	}

	if _, _, err := store.Consume(ctx, ticket); !errors.Is(err, domain.ErrInvalidTicket) {
		t.Fatalf("reused ticket: got %v, want ErrInvalidTicket", err)
	}
}

func TestTicketStoreUnknownTicket(t *testing.T) {
	store := NewTicketStore()
	if _, _, err := store.Consume(context.Background(), "nope"); !errors.Is(err, domain.ErrInvalidTicket) {
		t.Fatalf("got %v, want ErrInvalidTicket", err)
	}
}

func TestTicketStoreExpiry(t *testing.T) {
	store := NewTicketStore()
	now := time.Now()
	store.clock = func() time.Time { return now }
	ctx := context.Background()

	ticket, err := store.Mint(ctx, "host-1", "session-1", time.Minute)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, _, err := store.Consume(ctx, ticket); !errors.Is(err, domain.ErrInvalidTicket) {
		t.Fatalf("expired ticket: got %v, want ErrInvalidTicket", err)
	}
}
