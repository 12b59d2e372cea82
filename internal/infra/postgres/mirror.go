package postgres

import (
	"context"
	"log"
	"time"

	"github.com/uptrace/bun"

	"github.com/knowandlove/animal-genius-backend-sub004/internal/app"
	"github.com/knowandlove/animal-genius-backend-sub004/internal/domain"
)

type sessionRow struct {
	bun.BaseModel `bun:"table:game_sessions"`

	ID                 string     `bun:"id,pk"`
	Code               string     `bun:"code"`
	HostID             string     `bun:"host_id"`
	Mode               string     `bun:"mode"`
	QuestionCount      int        `bun:"question_count"`
	SecondsPerQuestion int        `bun:"seconds_per_question"`
	Status             string     `bun:"status"`
	CreatedAt          time.Time  `bun:"created_at"`
	FinishedAt         *time.Time `bun:"finished_at"`
}

type playerRow struct {
	bun.BaseModel `bun:"table:game_players"`

	ID         string    `bun:"id,pk"`
	SessionID  string    `bun:"session_id"`
	Name       string    `bun:"name"`
	Team       string    `bun:"team"`
	FinalScore int       `bun:"final_score"`
	JoinedAt   time.Time `bun:"joined_at"`
}

type answerRow struct {
	bun.BaseModel `bun:"table:game_answers"`

	ID               int64     `bun:"id,pk,autoincrement"`
	SessionID        string    `bun:"session_id"`
	PlayerID         string    `bun:"player_id"`
	QuestionID       string    `bun:"question_id"`
	Choice           int       `bun:"choice"`
	SecondsRemaining int       `bun:"seconds_remaining"`
	Awarded          int       `bun:"awarded"`
	Correct          bool      `bun:"correct"`
	CreatedAt        time.Time `bun:"created_at"`
}

// Mirror writes gameplay events to Postgres for post-hoc analytics.
// Every write is fire-and-forget: enqueue never blocks, a full buffer
// drops the write, and failures are logged. Gameplay is identical when
// every write fails.
type Mirror struct {
	db   *bun.DB
	ops  chan func(ctx context.Context, db *bun.DB) error
	stop chan struct{}
	done chan struct{}
}

func NewMirror(db *bun.DB, buffer int) *Mirror {
	if buffer <= 0 {
		buffer = 256
	}
	m := &Mirror{
		db:   db,
		ops:  make(chan func(ctx context.Context, db *bun.DB) error, buffer),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go m.run()
	return m
}

func (m *Mirror) run() {
	defer close(m.done)
	for {
		select {
		case <-m.stop:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case op := <-m.ops:
					m.apply(op)
				default:
					return
				}
			}
		case op := <-m.ops:
			m.apply(op)
		}
	}
}

func (m *Mirror) apply(op func(ctx context.Context, db *bun.DB) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := op(ctx, m.db); err != nil {
		log.Printf("mirror write failed: %v", err)
	}
}

func (m *Mirror) enqueue(op func(ctx context.Context, db *bun.DB) error) {
	select {
	case m.ops <- op:
	default:
		log.Printf("mirror buffer full, dropping write")
	}
}

// Stop flushes queued writes and stops the worker.
func (m *Mirror) Stop() {
	close(m.stop)
	<-m.done
}

func (m *Mirror) SessionCreated(snap domain.SessionSnapshot) {
	row := &sessionRow{
		ID:                 snap.ID,
		Code:               snap.Code,
		HostID:             snap.HostID,
		Mode:               string(snap.Settings.Mode),
		QuestionCount:      snap.Settings.QuestionCount,
		SecondsPerQuestion: snap.Settings.SecondsPerQuestion,
		Status:             string(snap.Status),
		CreatedAt:          snap.CreatedAt,
	}
	m.enqueue(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewInsert().Model(row).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx)
		return err
	})
}

func (m *Mirror) PlayerJoined(sessionID string, p domain.Player) {
	row := &playerRow{
		ID:        p.ID,
		SessionID: sessionID,
		Name:      p.Name,
		Team:      p.Team,
		JoinedAt:  p.JoinedAt,
	}
	m.enqueue(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewInsert().Model(row).
			On("CONFLICT (id) DO NOTHING").
			Exec(ctx)
		return err
	})
}

func (m *Mirror) AnswerAccepted(evt app.AnswerEvent) {
	row := &answerRow{
		SessionID:        evt.SessionID,
		PlayerID:         evt.PlayerID,
		QuestionID:       evt.QuestionID,
		Choice:           evt.Choice,
		SecondsRemaining: evt.SecondsRemaining,
		Awarded:          evt.Awarded,
		Correct:          evt.Correct,
		CreatedAt:        time.Now(),
	}
	m.enqueue(func(ctx context.Context, db *bun.DB) error {
		_, err := db.NewInsert().Model(row).Exec(ctx)
		return err
	})
}

func (m *Mirror) SessionFinished(snap domain.SessionSnapshot, lb domain.Leaderboard) {
	session := &sessionRow{
		ID:                 snap.ID,
		Code:               snap.Code,
		HostID:             snap.HostID,
		Mode:               string(snap.Settings.Mode),
		QuestionCount:      snap.Settings.QuestionCount,
		SecondsPerQuestion: snap.Settings.SecondsPerQuestion,
		Status:             string(snap.Status),
		CreatedAt:          snap.CreatedAt,
		FinishedAt:         snap.FinishedAt,
	}
	players := make([]*playerRow, 0, len(snap.Players))
	for _, p := range snap.Players {
		players = append(players, &playerRow{
			ID:         p.ID,
			SessionID:  snap.ID,
			Name:       p.Name,
			Team:       p.Team,
			FinalScore: p.Score,
			JoinedAt:   p.JoinedAt,
		})
	}
	m.enqueue(func(ctx context.Context, db *bun.DB) error {
		if _, err := db.NewInsert().Model(session).
			On("CONFLICT (id) DO UPDATE").
			Set("status = EXCLUDED.status").
			Set("finished_at = EXCLUDED.finished_at").
			Exec(ctx); err != nil {
			return err
		}
		if len(players) == 0 {
			return nil
		}
		_, err := db.NewInsert().Model(&players).
			On("CONFLICT (id) DO UPDATE").
			Set("final_score = EXCLUDED.final_score").
			Set("team = EXCLUDED.team").
			Exec(ctx)
		return err
	})
}
