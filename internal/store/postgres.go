package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PratikDhanave/identity-sync-service/internal/models"
)

// schemaSQL is embedded so the service can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

const userColumns = `email, id, name, admin, last_login, password_changed, status_changed, user_events`

// PostgresStore is the durable persistence layer for identity records.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schemaSQL)
	return err
}

// Ping is used by readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

// GetUser reads one record, mapping pgx.ErrNoRows to ErrNotFound.
func (p *PostgresStore) GetUser(ctx context.Context, email string) (models.UserRecord, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM identity_users WHERE email=$1`, email)

	rec, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.UserRecord{}, ErrNotFound
	}
	return rec, err
}

// PutUser writes the full record. The conflict clause turns the insert into
// an overwrite, so the last writer for an email wins.
func (p *PostgresStore) PutUser(ctx context.Context, rec models.UserRecord) error {
	if rec.Email == "" {
		return errors.New("email required")
	}

	events := rec.UserEvents
	if events == nil {
		events = []models.UserEvent{}
	}
	eventsJSON, err := json.Marshal(events)
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO identity_users(`+userColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (email) DO UPDATE SET
			id = EXCLUDED.id,
			name = EXCLUDED.name,
			admin = EXCLUDED.admin,
			last_login = EXCLUDED.last_login,
			password_changed = EXCLUDED.password_changed,
			status_changed = EXCLUDED.status_changed,
			user_events = EXCLUDED.user_events,
			updated_at = now()
	`, rec.Email, rec.ID, rec.Name, rec.Admin, rec.LastLogin, rec.PasswordChanged, rec.StatusChanged, string(eventsJSON))
	return err
}

// ScanUsers returns matching records ordered by email.
func (p *PostgresStore) ScanUsers(ctx context.Context, filter ScanFilter) ([]models.UserRecord, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+userColumns+`
		FROM identity_users
		WHERE ($1 = false OR admin)
		ORDER BY email
	`, filter.AdminOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.UserRecord
	for rows.Next() {
		rec, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanUser(row pgx.Row) (models.UserRecord, error) {
	var (
		rec        models.UserRecord
		eventsJSON []byte
	)
	err := row.Scan(
		&rec.Email,
		&rec.ID,
		&rec.Name,
		&rec.Admin,
		&rec.LastLogin,
		&rec.PasswordChanged,
		&rec.StatusChanged,
		&eventsJSON,
	)
	if err != nil {
		return models.UserRecord{}, err
	}
	if len(eventsJSON) > 0 {
		if err := json.Unmarshal(eventsJSON, &rec.UserEvents); err != nil {
			return models.UserRecord{}, fmt.Errorf("decode user_events for %s: %w", rec.Email, err)
		}
	}
	return rec, nil
}
