package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fastpanel/fastpanel/internal/models"
)

const userColumns = `id, username, password_hash, role, email, whatsapp, created_by_id, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Email, &u.WhatsApp, &u.CreatedByID, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func (p *Postgres) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	u, err := scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
	if err != nil {
		return nil, mapErr("GetUserByUsername", err)
	}
	return u, nil
}

func (p *Postgres) GetUser(ctx context.Context, id int64) (*models.User, error) {
	u, err := scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr("GetUser", err)
	}
	return u, nil
}

func (p *Postgres) ListUsers(ctx context.Context, role *models.Role) ([]models.User, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE $1::text IS NULL OR role = $1
		 ORDER BY id`, role)
	if err != nil {
		return nil, mapErr("ListUsers", err)
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, mapErr("ListUsers", err)
		}
		out = append(out, *u)
	}
	return out, mapErr("ListUsers", rows.Err())
}

// rowQuerier is satisfied by both the pool and a transaction.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertUser(ctx context.Context, q rowQuerier, u *models.User) (int64, error) {
	var id int64
	err := q.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, role, email, whatsapp, created_by_id)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		u.Username, u.PasswordHash, u.Role, u.Email, u.WhatsApp, u.CreatedByID,
	).Scan(&id)
	return id, err
}

func (p *Postgres) CreateUser(ctx context.Context, u *models.User) (int64, error) {
	id, err := insertUser(ctx, p.pool, u)
	if err != nil {
		return 0, mapErr("CreateUser", err)
	}
	return id, nil
}

func (p *Postgres) UpdateUser(ctx context.Context, id int64, username, passwordHash string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE users SET username = $2,
		        password_hash = COALESCE(NULLIF($3, ''), password_hash)
		 WHERE id = $1`, id, username, passwordHash)
	return expectOne("UpdateUser", tag, err)
}

func (p *Postgres) DeleteUser(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return expectOne("DeleteUser", tag, err)
}

// --- registration tokens ---

const tokenColumns = `id, token, role, expires_at, used_at, created_by_id`

func scanToken(row pgx.Row) (*models.RegistrationToken, error) {
	var t models.RegistrationToken
	if err := row.Scan(&t.ID, &t.Token, &t.Role, &t.ExpiresAt, &t.UsedAt, &t.CreatedByID); err != nil {
		return nil, err
	}
	return &t, nil
}

func (p *Postgres) CreateRegistrationToken(ctx context.Context, t *models.RegistrationToken) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO registration_tokens (token, role, expires_at, created_by_id)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		t.Token, t.Role, t.ExpiresAt, t.CreatedByID,
	).Scan(&id)
	if err != nil {
		return 0, mapErr("CreateRegistrationToken", err)
	}
	return id, nil
}

func (p *Postgres) GetRegistrationToken(ctx context.Context, token string) (*models.RegistrationToken, error) {
	t, err := scanToken(p.pool.QueryRow(ctx,
		`SELECT `+tokenColumns+` FROM registration_tokens WHERE token = $1`, token))
	if err != nil {
		return nil, mapErr("GetRegistrationToken", err)
	}
	return t, nil
}

// RedeemRegistrationToken locks the token row so two concurrent
// registrations cannot both use it.
func (p *Postgres) RedeemRegistrationToken(ctx context.Context, token string, u *models.User, now time.Time) (int64, error) {
	var id int64
	err := pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		t, err := scanToken(tx.QueryRow(ctx,
			`SELECT `+tokenColumns+` FROM registration_tokens WHERE token = $1 FOR UPDATE`, token))
		if err != nil {
			return err
		}
		switch {
		case t.UsedAt != nil:
			return ErrTokenUsed
		case !now.Before(t.ExpiresAt):
			return ErrTokenExpired
		}
		nu := *u
		nu.Role = t.Role
		nu.CreatedByID = &t.CreatedByID
		if id, err = insertUser(ctx, tx, &nu); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		_, err = tx.Exec(ctx, `UPDATE registration_tokens SET used_at = $2 WHERE id = $1`, t.ID, now)
		return err
	})
	if err != nil {
		return 0, mapErr("RedeemRegistrationToken", err)
	}
	return id, nil
}
