package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/knowandlove/animal-genius-backend-sub004/internal/domain"
)

// BankLoader fetches the full question bank from a backing store.
type BankLoader interface {
	LoadBank(ctx context.Context) ([]domain.GameQuestion, error)
}

// QuestionBank caches the loaded bank with a TTL to avoid repeated DB
// hits and samples a random subset for each new session.
type QuestionBank struct {
	loader BankLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu        sync.RWMutex
	cached    []domain.GameQuestion
	expiresAt time.Time
}

func NewQuestionBank(loader BankLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// DrawQuestions returns up to count questions sampled without
// replacement from the bank.
func (b *QuestionBank) DrawQuestions(ctx context.Context, count int) ([]domain.GameQuestion, error) {
	bank, err := b.bank(ctx)
	if err != nil {
		return nil, err
	}
	if len(bank) == 0 {
		return nil, domain.ErrQuestionBankEmpty
	}

	drawn := make([]domain.GameQuestion, len(bank))
	copy(drawn, bank)
	b.rndMu.Lock()
	b.rnd.Shuffle(len(drawn), func(i, j int) {
		drawn[i], drawn[j] = drawn[j], drawn[i]
	})
	b.rndMu.Unlock()

	if count < len(drawn) {
		drawn = drawn[:count]
	}
	return drawn, nil
}

func (b *QuestionBank) bank(ctx context.Context) ([]domain.GameQuestion, error) {
	now := b.clock()

	b.mu.RLock()
	if b.cached != nil && b.expiresAt.After(now) {
		cached := b.cached
		b.mu.RUnlock()
		return cached, nil
	}
	b.mu.RUnlock()

	result, err, _ := b.sf.Do("bank", func() (interface{}, error) {
		now := b.clock()
		b.mu.RLock()
		if b.cached != nil && b.expiresAt.After(now) {
			cached := b.cached
			b.mu.RUnlock()
			return cached, nil
		}
		b.mu.RUnlock()

		bank, err := b.loader.LoadBank(ctx)
		if err != nil {
			return nil, err
		}

		b.mu.Lock()
		b.cached = bank
		b.expiresAt = now.Add(b.ttlWithJitter())
		b.mu.Unlock()
		return bank, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.GameQuestion), nil
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(b.ttl) / 10
	b.rndMu.Lock()
	defer b.rndMu.Unlock()
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}

// StaticBankLoader serves a fixed question list (useful for tests/demos).
type StaticBankLoader struct {
	questions []domain.GameQuestion
}

func NewStaticBankLoader(questions []domain.GameQuestion) *StaticBankLoader {
	return &StaticBankLoader{questions: questions}
}

func (l *StaticBankLoader) LoadBank(_ context.Context) ([]domain.GameQuestion, error) {
	return l.questions, nil
}
