package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/message-scheduler/internal/schedule"
)

const messageColumns = `id, owner_id, channel, recipient, subject, body, scheduled_for, status, created_at, sent_at`

const insertMessage = `
INSERT INTO scheduled_messages (` + messageColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
`

// id, owner_id and created_at never change after insert. Only pending rows
// are written.
const updateMessage = `
UPDATE scheduled_messages
SET channel = $2, recipient = $3, subject = $4, body = $5, scheduled_for = $6, status = $7, sent_at = $8
WHERE id = $1 AND status = 'pending'
`

const recordOutcome = `
UPDATE scheduled_messages
SET status = $2, sent_at = $3
WHERE id = $1 AND status = 'pending'
RETURNING ` + messageColumns + `
`

const messageExists = `SELECT EXISTS (SELECT 1 FROM scheduled_messages WHERE id = $1)`

const deleteMessage = `DELETE FROM scheduled_messages WHERE id = $1`

const selectMessage = `SELECT ` + messageColumns + ` FROM scheduled_messages WHERE id = $1`

const selectOwnerMessages = `
SELECT ` + messageColumns + `
FROM scheduled_messages
WHERE owner_id = $1
ORDER BY created_at DESC, id DESC
`

const selectAllMessages = `
SELECT ` + messageColumns + `
FROM scheduled_messages
ORDER BY created_at DESC, id DESC
`

const selectUsers = `SELECT id, email, name, role FROM users ORDER BY id`

const selectUser = `SELECT id, email, name, role FROM users WHERE id = $1`

const uniqueViolation = "23505"

type PostgresStore struct {
	pool *pgxpool.Pool
}

var ErrNotConfigured = errors.New("postgres store requires a non-nil pool")

func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, ErrNotConfigured
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Create(ctx context.Context, msg schedule.Message) error {
	_, err := s.pool.Exec(ctx, insertMessage,
		msg.ID,
		msg.OwnerID,
		string(msg.Channel),
		msg.Recipient,
		msg.Subject,
		msg.Body,
		msg.ScheduledFor,
		string(msg.Status),
		msg.CreatedAt,
		msg.SentAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicate
		}
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, msg schedule.Message) error {
	tag, err := s.pool.Exec(ctx, updateMessage,
		msg.ID,
		string(msg.Channel),
		msg.Recipient,
		msg.Subject,
		msg.Body,
		msg.ScheduledFor,
		string(msg.Status),
		msg.SentAt,
	)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missOrNotPending(ctx, msg.ID)
	}
	return nil
}

func (s *PostgresStore) RecordOutcome(ctx context.Context, id string, status schedule.Status, at time.Time) (schedule.Message, error) {
	// the pending check itself happens in the UPDATE
	outcome, err := schedule.RecordOutcome(schedule.Message{Status: schedule.StatusPending}, status, at)
	if err != nil {
		return schedule.Message{}, err
	}
	msg, err := scanMessage(s.pool.QueryRow(ctx, recordOutcome, id, string(outcome.Status), outcome.SentAt))
	if errors.Is(err, pgx.ErrNoRows) {
		return schedule.Message{}, s.missOrNotPending(ctx, id)
	}
	if err != nil {
		return schedule.Message{}, fmt.Errorf("record outcome: %w", err)
	}
	return msg, nil
}

// missOrNotPending explains a conditional write that matched no rows.
func (s *PostgresStore) missOrNotPending(ctx context.Context, id string) error {
	var exists bool
	if err := s.pool.QueryRow(ctx, messageExists, id).Scan(&exists); err != nil {
		return fmt.Errorf("check message: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return schedule.ErrNotPending
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, deleteMessage, id)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (schedule.Message, error) {
	msg, err := scanMessage(s.pool.QueryRow(ctx, selectMessage, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return schedule.Message{}, ErrNotFound
	}
	if err != nil {
		return schedule.Message{}, fmt.Errorf("fetch message: %w", err)
	}
	return msg, nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID string) ([]schedule.Message, error) {
	return s.list(ctx, selectOwnerMessages, ownerID)
}

func (s *PostgresStore) List(ctx context.Context) ([]schedule.Message, error) {
	return s.list(ctx, selectAllMessages)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]schedule.Message, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := []schedule.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]schedule.User, error) {
	rows, err := s.pool.Query(ctx, selectUsers)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := []schedule.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (schedule.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, selectUser, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return schedule.User{}, ErrNotFound
	}
	if err != nil {
		return schedule.User{}, fmt.Errorf("fetch user: %w", err)
	}
	return u, nil
}

func scanMessage(row pgx.Row) (schedule.Message, error) {
	var (
		msg     schedule.Message
		channel string
		status  string
		sentAt  *time.Time
	)
	if err := row.Scan(
		&msg.ID,
		&msg.OwnerID,
		&channel,
		&msg.Recipient,
		&msg.Subject,
		&msg.Body,
		&msg.ScheduledFor,
		&status,
		&msg.CreatedAt,
		&sentAt,
	); err != nil {
		return schedule.Message{}, err
	}
	msg.Channel = schedule.Channel(channel)
	msg.Status = schedule.Status(status)
	msg.SentAt = sentAt
	return msg, nil
}

func scanUser(row pgx.Row) (schedule.User, error) {
	var (
		u    schedule.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &role); err != nil {
		return schedule.User{}, err
	}
	u.Role = schedule.Role(role)
	return u, nil
}
