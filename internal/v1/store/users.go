// Package store persists user registrations. Everything else in the server is
// per-process in-memory state.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sony/gobreaker"

	"github.com/openconquer/generals-server/internal/v1/room"
)

var (
	ErrConflict      = errors.New("user id or username already taken")
	ErrNotFound      = errors.New("user not found")
	ErrForbiddenName = errors.New("username contains a forbidden word")
)

// User is one registration row.
type User struct {
	ID        string    `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// Users wraps the registration table behind a circuit breaker so a slow or
// down database degrades the HTTP surface instead of piling up connections.
type Users struct {
	db      *pgxpool.Pool
	breaker *gobreaker.CircuitBreaker
}

// NewUsers creates the store over an existing pool.
func NewUsers(db *pgxpool.Pool) *Users {
	return &Users{
		db: db,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "postgres-users",
			Timeout: 10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			// Caller mistakes are not database trouble.
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound)
			},
		}),
	}
}

// Create inserts a registration. Both columns are unique; either collision
// reports ErrConflict.
func (s *Users) Create(ctx context.Context, userID, username string) (*User, error) {
	if err := room.ValidateName(username); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrForbiddenName, err)
	}

	result, err := s.breaker.Execute(func() (any, error) {
		var u User
		err := s.db.QueryRow(ctx,
			`INSERT INTO users (user_id, username)
			 VALUES ($1, $2)
			 RETURNING user_id, username, created_at`,
			userID, username,
		).Scan(&u.ID, &u.Username, &u.CreatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return nil, ErrConflict
			}
			return nil, err
		}
		return &u, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*User), nil
}

// GetByID looks a registration up.
func (s *Users) GetByID(ctx context.Context, userID string) (*User, error) {
	result, err := s.breaker.Execute(func() (any, error) {
		var u User
		err := s.db.QueryRow(ctx,
			`SELECT user_id, username, created_at
			 FROM users
			 WHERE user_id = $1`,
			userID,
		).Scan(&u.ID, &u.Username, &u.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, err
		}
		return &u, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*User), nil
}

// Ping reports database reachability for readiness checks.
func (s *Users) Ping(ctx context.Context) error {
	_, err := s.breaker.Execute(func() (any, error) {
		return nil, s.db.Ping(ctx)
	})
	return err
}
