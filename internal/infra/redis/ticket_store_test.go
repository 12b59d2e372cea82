package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/knowandlove/animal-genius-backend-sub004/internal/domain"
)

func TestTicketMintAndConsume(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewTicketStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	ticket, err := store.Mint(ctx, "teacher-1", "session-1", time.Minute)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	hostID, sessionID, err := store.Consume(ctx, ticket)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if hostID != "teacher-1" || sessionID != "session-1" {
		t.Fatalf("expected claims teacher-1/session-1, got %s/%s", hostID, sessionID)
	}
}

func TestTicketIsSingleUse(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewTicketStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	ticket, err := store.Mint(ctx, "teacher-1", "session-1", time.Minute)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, _, err := store.Consume(ctx, ticket); err != nil {
		t.Fatalf("first consume: %v", err)
	}
	if _, _, err := store.Consume(ctx, ticket); err != domain.ErrInvalidTicket {
		t.Fatalf("expected ErrInvalidTicket on reuse, got %v", err)
	}
}

func TestTicketExpires(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewTicketStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	ctx := context.Background()

	ticket, err := store.Mint(ctx, "teacher-1", "session-1", time.Minute)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, _, err := store.Consume(ctx, ticket); err != domain.ErrInvalidTicket {
		t.Fatalf("expected ErrInvalidTicket after expiry, got %v", err)
	}
}

func TestUnknownTicketRejected(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewTicketStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	if _, _, err := store.Consume(context.Background(), "nope"); err != domain.ErrInvalidTicket {
		t.Fatalf("expected ErrInvalidTicket, got %v", err)
	}
}
