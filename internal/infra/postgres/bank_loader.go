package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/knowandlove/animal-genius-backend-sub004/internal/domain"
)

// BankLoader loads the question bank JSONB from Postgres.
type BankLoader struct {
	pool *pgxpool.Pool
}

func NewBankLoader(pool *pgxpool.Pool) *BankLoader {
	return &BankLoader{pool: pool}
}

func (l *BankLoader) LoadBank(ctx context.Context) ([]domain.GameQuestion, error) {
	rows, err := l.pool.Query(ctx, `SELECT id, data FROM question_bank`)
	if err != nil {
		return nil, fmt.Errorf("load question bank: %w", err)
	}
	defer rows.Close()

	var questions []domain.GameQuestion
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var q domain.GameQuestion
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("unmarshal question %s: %w", id, err)
		}
		q.ID = id
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate question bank: %w", err)
	}
	return questions, nil
}
