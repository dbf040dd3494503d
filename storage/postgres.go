package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNoScores             = errors.New("no recorded scores")
	UnexpectedDatabaseError = errors.New("unexpected database error")
)

// MatchResult is one finished run from one player's perspective.
type MatchResult struct {
	PlayerId string
	RoomCode string
	Score    int
	Outcome  string // WIN, LOSE or DRAW
	Forfeit  bool
}

type ScoreEntry struct {
	PlayerId  string
	BestScore int
	Wins      int
	Matches   int
}

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresRepo(ctx context.Context, connString string) (*PostgresRepo, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	return &PostgresRepo{pool: pool}, nil
}

func (pgr *PostgresRepo) Close() {
	pgr.pool.Close()
}

func (pgr *PostgresRepo) RecordResult(ctx context.Context, result MatchResult) error {
	_, err := pgr.pool.Exec(ctx,
		"INSERT INTO match_results(player_id, room_code, score, outcome, forfeit) VALUES($1, $2, $3, $4, $5)",
		result.PlayerId, result.RoomCode, result.Score, result.Outcome, result.Forfeit,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			// "23514" is the PostgreSQL error code for check_violation
			if pgErr.Code == "23514" {
				return fmt.Errorf("%w: rejected result row: %w", UnexpectedDatabaseError, err)
			}
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		return fmt.Errorf("%w: %w", UnexpectedDatabaseError, err)
	}

	return nil
}

func (pgr *PostgresRepo) BestScore(ctx context.Context, playerId string) (int, error) {
	row := pgr.pool.QueryRow(ctx,
		"SELECT MAX(score) FROM match_results WHERE player_id = $1", playerId)

	var best *int
	err := row.Scan(&best)

	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return 0, ErrNoScores
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return 0, err
		default:
			return 0, fmt.Errorf("%w: %w", UnexpectedDatabaseError, err)
		}
	}

	if best == nil {
		return 0, ErrNoScores
	}

	return *best, nil
}

func (pgr *PostgresRepo) TopScores(ctx context.Context, limit int) ([]ScoreEntry, error) {
	query := `SELECT player_id,
	                 MAX(score) AS best_score,
	                 COUNT(*) FILTER (WHERE outcome = 'WIN') AS wins,
	                 COUNT(*) AS matches
	          FROM match_results
	          GROUP BY player_id
	          ORDER BY best_score DESC
	          LIMIT $1`

	rows, err := pgr.pool.Query(ctx, query, limit)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", UnexpectedDatabaseError, err)
	}
	defer rows.Close()

	entries := make([]ScoreEntry, 0, limit)
	for rows.Next() {
		var entry ScoreEntry
		if err := rows.Scan(&entry.PlayerId, &entry.BestScore, &entry.Wins, &entry.Matches); err != nil {
			return nil, fmt.Errorf("%w: %w", UnexpectedDatabaseError, err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", UnexpectedDatabaseError, err)
	}

	return entries, nil
}

// RecentResults returns a player's latest runs, newest first.
func (pgr *PostgresRepo) RecentResults(ctx context.Context, playerId string, limit int) ([]MatchResult, error) {
	rows, err := pgr.pool.Query(ctx,
		"SELECT player_id, room_code, score, outcome, forfeit FROM match_results WHERE player_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2",
		playerId, limit,
	)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", UnexpectedDatabaseError, err)
	}
	defer rows.Close()

	results := make([]MatchResult, 0, limit)
	for rows.Next() {
		var r MatchResult
		if err := rows.Scan(&r.PlayerId, &r.RoomCode, &r.Score, &r.Outcome, &r.Forfeit); err != nil {
			return nil, fmt.Errorf("%w: %w", UnexpectedDatabaseError, err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", UnexpectedDatabaseError, err)
	}

	return results, nil
}

// PruneOlderThan removes results past the retention window. Meant to run
// from a periodic job in main.
func (pgr *PostgresRepo) PruneOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	tag, err := pgr.pool.Exec(ctx,
		"DELETE FROM match_results WHERE created_at < now() - $1::interval",
		fmt.Sprintf("%d seconds", int(age.Seconds())),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", UnexpectedDatabaseError, err)
	}
	return tag.RowsAffected(), nil
}
